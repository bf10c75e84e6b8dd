// Package examples smoke-tests the example scripts of the Python package.
package examples

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/eegrasp/graspci/internal/config"
	"github.com/eegrasp/graspci/internal/errors"
	"github.com/eegrasp/graspci/internal/logfields"
	"github.com/eegrasp/graspci/internal/process"
	"github.com/eegrasp/graspci/internal/runlog"
)

// ErrNoExamples signals that the example glob matched nothing.
var ErrNoExamples = errors.ExampleError("no example scripts found").Build()

// Discover returns the regular files in dir matching pattern, sorted lexically.
func Discover(dir, pattern string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, pattern))
	if err != nil {
		return nil, errors.ConfigError("invalid example pattern").WithCause(err).WithContext("pattern", pattern).Build()
	}
	var scripts []string
	for _, m := range matches {
		info, err := os.Stat(m)
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		scripts = append(scripts, m)
	}
	if len(scripts) == 0 {
		return nil, ErrNoExamples.WithContext("path", dir).WithContext("pattern", pattern)
	}
	sort.Strings(scripts)
	return scripts, nil
}

// ScriptResult is the outcome of one script.
type ScriptResult struct {
	Script   string
	ExitCode int
	Duration time.Duration
}

// Report summarizes a smoke-test run.
type Report struct {
	Executed []ScriptResult
	Failed   *ScriptResult
	Duration time.Duration
}

// Runner installs the package and runs every example script in sequence.
type Runner struct {
	cfg      *config.Config
	runner   process.Runner
	observer runlog.Observer
}

// NewRunner creates a smoke-test runner. observer may be nil.
func NewRunner(cfg *config.Config, runner process.Runner, observer runlog.Observer) *Runner {
	if observer == nil {
		observer = runlog.Nop{}
	}
	return &Runner{cfg: cfg, runner: runner, observer: observer}
}

// Install runs the editable install command. An empty install command is a no-op.
func (r *Runner) Install(ctx context.Context) error {
	if len(r.cfg.Examples.Install) == 0 {
		return nil
	}
	cmd, err := process.FromArgv(r.cfg.Examples.Install)
	if err != nil {
		return errors.ConfigError("invalid install command").WithCause(err).Build()
	}
	cmd.Dir = r.cfg.Project.Root

	start := time.Now()
	_, err = r.runner.Run(ctx, cmd)
	r.observer.StepCompleted("install", time.Since(start), err)
	if err != nil {
		return errors.PackageError("editable install failed").
			WithCause(err).
			WithContext("command", cmd.String()).
			WithContext("exit_code", process.ExitCode(err)).
			Build()
	}
	return nil
}

// Run executes each discovered script with the project interpreter, stopping at the first failure.
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	start := time.Now()
	report := &Report{}
	defer func() { report.Duration = time.Since(start) }()

	scripts, err := Discover(r.cfg.Resolve(r.cfg.Examples.Dir), r.cfg.Examples.Pattern)
	if err != nil {
		return report, err
	}

	for _, script := range scripts {
		res, err := r.runScript(ctx, script)
		report.Executed = append(report.Executed, res)
		if err != nil {
			report.Failed = &report.Executed[len(report.Executed)-1]
			return report, err
		}
	}
	slog.Info("All examples passed", slog.Int("count", len(scripts)))
	return report, nil
}

func (r *Runner) runScript(ctx context.Context, script string) (ScriptResult, error) {
	rel, relErr := filepath.Rel(r.cfg.Project.Root, script)
	if relErr != nil {
		rel = script
	}
	runCtx := ctx
	if t := r.cfg.Examples.Timeout; t > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, t)
		defer cancel()
	}

	slog.Info("Running example", logfields.Script(rel))
	cmd := process.Command{Name: r.cfg.Project.Python, Args: []string{rel}, Dir: r.cfg.Project.Root}
	res, err := r.runner.Run(runCtx, cmd)
	out := ScriptResult{Script: rel, ExitCode: res.ExitCode, Duration: res.Duration}
	r.observer.StepCompleted(rel, res.Duration, err)
	if err != nil {
		slog.Error("Example failed", logfields.Script(rel), logfields.ExitCode(res.ExitCode), logfields.Error(err))
		return out, errors.ExampleError("example script failed").
			WithCause(err).
			WithContext("script", rel).
			WithContext("exit_code", res.ExitCode).
			Build()
	}
	return out, nil
}
