package commands

import (
	"context"
	"log/slog"
	"os"
	"strings"

	"github.com/alecthomas/kong"
	prom "github.com/prometheus/client_golang/prometheus"

	"github.com/eegrasp/graspci/internal/config"
	"github.com/eegrasp/graspci/internal/eventstore"
	"github.com/eegrasp/graspci/internal/logfields"
	"github.com/eegrasp/graspci/internal/metrics"
	"github.com/eegrasp/graspci/internal/process"
	"github.com/eegrasp/graspci/internal/runlog"
)

// Global context passed to subcommands.
type Global struct {
	Logger *slog.Logger
	// Context is cancelled on SIGINT/SIGTERM.
	Context context.Context
	// Runner executes external tools; tests replace it with a process.FakeRunner.
	Runner process.Runner
}

// ctx returns the signal-aware context, or Background when unset.
func (g *Global) ctx() context.Context {
	if g == nil || g.Context == nil {
		return context.Background()
	}
	return g.Context
}

func (g *Global) runner() process.Runner {
	if g == nil || g.Runner == nil {
		return process.NewExecRunner()
	}
	return g.Runner
}

// CLI definition & global flags.
type CLI struct {
	Config  string           `short:"c" help:"Configuration file path" default:"graspci.yaml" env:"GRASPCI_CONFIG"`
	Verbose bool             `short:"v" help:"Enable verbose logging"`
	Version kong.VersionFlag `name:"version" help:"Show version and exit"`

	Init      InitCmd      `cmd:"" help:"Write an example graspci.yaml"`
	Lint      LintCmd      `cmd:"" help:"Spell-check the tree (codespell dictionary)"`
	Examples  ExamplesCmd  `cmd:"" help:"Install the package and run every example script"`
	PR        PRCmd        `cmd:"" name:"pr" help:"Pull request workflow: run examples, then auto-merge non-main PRs"`
	AutoMerge AutoMergeCmd `cmd:"" name:"automerge" help:"Label, merge and clean up a green pull request"`
	Release   ReleaseCmd   `cmd:"" help:"Tag-triggered release: rewrite version, build, check, upload"`
	Ver       VersionCmd   `cmd:"" name:"version" help:"Inspect or synchronise the package version"`
	Task      TaskCmd      `cmd:"" help:"Run a developer task (clean, lint, test, doc, dist, release)"`
	Datasets  DatasetsCmd  `cmd:"" help:"Manage the EEGBCI dataset cache"`
	History   HistoryCmd   `cmd:"" help:"Show recent pipeline runs"`
	Watch     WatchCmd     `cmd:"" help:"Re-run a task when sources change"`
}

// AfterApply runs after flag parsing; setup logging once.
// nolint:unparam // AfterApply currently never returns an error.
func (c *CLI) AfterApply() error {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: c.LogLevel()})))
	return nil
}

// LogLevel is debug with -v or GRASPCI_LOG_LEVEL=debug, otherwise info (or the level named by the variable).
func (c *CLI) LogLevel() slog.Level {
	if c.Verbose {
		return slog.LevelDebug
	}
	var level slog.Level
	if raw := strings.TrimSpace(os.Getenv("GRASPCI_LOG_LEVEL")); raw != "" {
		if err := level.UnmarshalText([]byte(raw)); err == nil {
			return level
		}
	}
	return slog.LevelInfo
}

// LoadConfig reads --config, falling back to defaults when the file does not exist.
func (c *CLI) LoadConfig() (*config.Config, error) {
	return config.LoadOrDefault(c.Config)
}

// run is the shared plumbing of every pipeline command: history, metrics and run tracking.
type run struct {
	*runlog.Tracker
	store    eventstore.Store
	rec      metrics.Recorder
	registry *prom.Registry
	textfile string
}

// startRun opens history and metrics as configured and starts tracking pipeline.
func startRun(ctx context.Context, cfg *config.Config, data eventstore.RunStartedData) *run {
	r := &run{textfile: cfg.Metrics.Textfile}

	var store eventstore.Store
	if !cfg.History.Disabled {
		s, err := eventstore.NewSQLiteStore(cfg.Resolve(cfg.History.Path))
		if err != nil {
			slog.Warn("Run history unavailable", logfields.Path(cfg.History.Path), logfields.Error(err))
		} else {
			store = s
		}
	}
	r.store = store

	r.rec = metrics.NoopRecorder{}
	if r.textfile != "" {
		r.registry = prom.NewRegistry()
		r.rec = metrics.NewPrometheusRecorder(r.registry)
	}

	r.Tracker = runlog.Start(ctx, store, r.rec, data)
	return r
}

// close finishes the run with state and err, then flushes metrics and history.
func (r *run) close(state string, err error) {
	r.Finish(state, err)
	if r.registry != nil {
		if werr := metrics.WriteTextfile(r.registry, r.textfile); werr != nil {
			slog.Warn("Failed to write metrics textfile", logfields.Path(r.textfile), logfields.Error(werr))
		}
	}
	if r.store != nil {
		if cerr := r.store.Close(); cerr != nil {
			slog.Warn("Failed to close run history", logfields.Error(cerr))
		}
	}
}

// recorder returns the metrics recorder of the run.
func (r *run) recorder() metrics.Recorder { return r.rec }

// trigger names what started the run for the history.
func trigger() string {
	if os.Getenv("GITHUB_ACTIONS") == "true" {
		if ev := os.Getenv("GITHUB_EVENT_NAME"); ev != "" {
			return ev
		}
		return "ci"
	}
	return "local"
}
