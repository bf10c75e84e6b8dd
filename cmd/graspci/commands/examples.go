package commands

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/eegrasp/graspci/internal/config"
	"github.com/eegrasp/graspci/internal/datasets"
	"github.com/eegrasp/graspci/internal/eventstore"
	"github.com/eegrasp/graspci/internal/examples"
	"github.com/eegrasp/graspci/internal/process"
)

// ExamplesCmd implements the 'examples' command.
type ExamplesCmd struct {
	SkipInstall   bool `help:"Do not run the editable install first"`
	FetchDatasets bool `help:"Warm the EEGBCI dataset cache before running"`
}

func (e *ExamplesCmd) Run(g *Global, root *CLI) (err error) {
	cfg, err := root.LoadConfig()
	if err != nil {
		return err
	}
	ctx := g.ctx()
	r := startRun(ctx, cfg, eventstore.RunStartedData{Pipeline: "examples", Trigger: trigger()})
	defer func() { r.close("", err) }()

	_, err = runExamples(ctx, cfg, g.runner(), r, e.SkipInstall, e.FetchDatasets)
	return err
}

// runExamples is the smoke test shared by 'examples', 'pr' and 'watch'.
func runExamples(ctx context.Context, cfg *config.Config, runner process.Runner, r *run, skipInstall, fetch bool) (*examples.Report, error) {
	if fetch {
		f := datasets.NewFetcher(cfg.Datasets, cfg.Resolve(cfg.Datasets.Dir),
			datasets.WithObserver(r), datasets.WithRecorder(r.recorder()))
		if _, err := f.Fetch(ctx); err != nil {
			return nil, err
		}
	}

	er := examples.NewRunner(cfg, runner, r)
	if !skipInstall {
		if err := er.Install(ctx); err != nil {
			return nil, err
		}
	}
	report, err := er.Run(ctx)
	printExamplesReport(report)
	return report, err
}

func printExamplesReport(report *examples.Report) {
	if report == nil {
		return
	}
	for _, s := range report.Executed {
		status := "ok"
		if s.ExitCode != 0 {
			status = fmt.Sprintf("FAILED (exit %d)", s.ExitCode)
		}
		fmt.Fprintf(os.Stdout, "%-60s %-18s %s\n", s.Script, status, s.Duration.Round(time.Millisecond))
	}
	if report.Failed != nil {
		fmt.Fprintf(os.Stdout, "example %s failed; remaining scripts were not run\n", report.Failed.Script)
		return
	}
	fmt.Fprintf(os.Stdout, "%d example(s) passed in %s\n", len(report.Executed), report.Duration.Round(time.Millisecond))
}
