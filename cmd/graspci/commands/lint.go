package commands

import (
	"os"

	"github.com/eegrasp/graspci/internal/errors"
	"github.com/eegrasp/graspci/internal/eventstore"
	"github.com/eegrasp/graspci/internal/lint"
)

// LintCmd implements the 'lint' command.
type LintCmd struct {
	Format string   `short:"f" default:"text" help:"Output format (text or json)" enum:"text,json"`
	Fix    bool     `help:"Rewrite misspellings that have exactly one correction"`
	Paths  []string `arg:"" optional:"" help:"Paths to check (default: lint.paths from the configuration)"`
}

func (l *LintCmd) Run(g *Global, root *CLI) (err error) {
	cfg, err := root.LoadConfig()
	if err != nil {
		return err
	}
	ctx := g.ctx()
	r := startRun(ctx, cfg, eventstore.RunStartedData{Pipeline: "lint", Trigger: trigger()})
	defer func() { r.close("", err) }()

	engine, err := lint.NewEngine(cfg.Lint, cfg.Project.Root, g.runner())
	if err != nil {
		return err
	}
	paths := l.Paths
	if len(paths) == 0 {
		paths = cfg.Lint.Paths
	}

	var result *lint.Result
	if err := r.Step(engine.Name(), func() error {
		result, err = engine.Run(ctx, paths, l.Fix)
		return err
	}); err != nil {
		return err
	}
	r.recorder().ObserveLintIssues(result.Remaining())

	if err := lint.NewFormatter(l.Format).Format(os.Stdout, result); err != nil {
		return errors.InternalError("failed to write lint report").WithCause(err).Build()
	}
	if result.HasIssues() {
		return lint.ErrMisspellings.WithContext("count", result.Remaining())
	}
	return nil
}
