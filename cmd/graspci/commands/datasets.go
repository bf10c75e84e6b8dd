package commands

import (
	"fmt"
	"os"
	"time"

	"github.com/eegrasp/graspci/internal/datasets"
	"github.com/eegrasp/graspci/internal/eventstore"
)

// DatasetsCmd groups the dataset cache commands.
type DatasetsCmd struct {
	Fetch DatasetsFetchCmd `cmd:"" help:"Download the configured EEGBCI recordings"`
	List  DatasetsListCmd  `cmd:"" help:"List the recordings and whether they are cached"`
}

// DatasetsFetchCmd implements 'datasets fetch'.
type DatasetsFetchCmd struct{}

func (DatasetsFetchCmd) Run(g *Global, root *CLI) (err error) {
	cfg, err := root.LoadConfig()
	if err != nil {
		return err
	}
	ctx := g.ctx()
	r := startRun(ctx, cfg, eventstore.RunStartedData{Pipeline: "datasets", Trigger: trigger()})
	defer func() { r.close("", err) }()

	f := datasets.NewFetcher(cfg.Datasets, cfg.Resolve(cfg.Datasets.Dir),
		datasets.WithRecorder(r.recorder()), datasets.WithObserver(r))
	report, err := f.Fetch(ctx)
	if report != nil {
		fmt.Fprintf(os.Stdout, "%d downloaded (%d bytes), %d cached in %s\n",
			len(report.Downloaded), report.Bytes, len(report.Cached), report.Duration.Round(time.Millisecond))
	}
	return err
}

// DatasetsListCmd implements 'datasets list'.
type DatasetsListCmd struct{}

func (DatasetsListCmd) Run(_ *Global, root *CLI) error {
	cfg, err := root.LoadConfig()
	if err != nil {
		return err
	}
	for _, f := range datasets.NewFetcher(cfg.Datasets, cfg.Resolve(cfg.Datasets.Dir)).Plan() {
		status := "missing"
		if _, serr := os.Stat(f.Path); serr == nil {
			status = "cached"
		}
		fmt.Fprintf(os.Stdout, "%-8s %s\n", status, f.Path)
	}
	return nil
}
