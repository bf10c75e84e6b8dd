// Package tasks implements the fixed developer tasks: clean, lint, test, doc, dist and release.
package tasks

import (
	"context"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/eegrasp/graspci/internal/config"
	"github.com/eegrasp/graspci/internal/display"
	"github.com/eegrasp/graspci/internal/errors"
	"github.com/eegrasp/graspci/internal/lint"
	"github.com/eegrasp/graspci/internal/logfields"
	"github.com/eegrasp/graspci/internal/process"
	"github.com/eegrasp/graspci/internal/release"
	"github.com/eegrasp/graspci/internal/runlog"
)

// Task names accepted by Run.
const (
	Clean   = "clean"
	Lint    = "lint"
	Test    = "test"
	Doc     = "doc"
	Dist    = "dist"
	Release = "release"
)

// Names lists every task in the order they are usually run.
var Names = []string{Clean, Lint, Test, Doc, Dist, Release}

// ErrUnknownTask is returned by Run for a name outside Names.
var ErrUnknownTask = errors.ValidationError("unknown task").Build()

// DisplayFunc scopes a virtual display around fn. display.With is the production implementation.
type DisplayFunc func(ctx context.Context, opts display.Options, fn func(context.Context, display.Display) error) error

// Runner executes tasks against one project configuration.
type Runner struct {
	cfg      *config.Config
	runner   process.Runner
	observer runlog.Observer
	display  DisplayFunc
	out      io.Writer
}

// Option configures a Runner.
type Option func(*Runner)

// WithObserver reports each task step.
func WithObserver(o runlog.Observer) Option {
	return func(r *Runner) { r.observer = o }
}

// WithDisplay replaces display.With.
func WithDisplay(fn DisplayFunc) Option {
	return func(r *Runner) { r.display = fn }
}

// WithOutput sets where lint reports are written.
func WithOutput(w io.Writer) Option {
	return func(r *Runner) { r.out = w }
}

// New creates a task runner.
func New(cfg *config.Config, runner process.Runner, opts ...Option) *Runner {
	r := &Runner{
		cfg:      cfg,
		runner:   runner,
		observer: runlog.Nop{},
		display:  display.With,
		out:      os.Stdout,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run dispatches a task by name.
func (r *Runner) Run(ctx context.Context, name string) error {
	switch name {
	case Clean:
		_, err := r.Clean(ctx)
		return err
	case Lint:
		_, err := r.Lint(ctx, false)
		return err
	case Test:
		return r.Test(ctx)
	case Doc:
		return r.Doc(ctx)
	case Dist:
		_, err := r.Dist(ctx)
		return err
	case Release:
		return r.Release(ctx)
	default:
		return ErrUnknownTask.WithContext("task", name).WithContext("valid", strings.Join(Names, ", "))
	}
}

func (r *Runner) step(name string, fn func() error) error {
	start := time.Now()
	err := fn()
	r.observer.StepCompleted(name, time.Since(start), err)
	return err
}

// Clean removes build outputs matching the configured globs. Patterns match
// the path relative to the root; a "**/" prefix matches a base name anywhere
// in the tree. Virtualenvs and .git are never entered.
func (r *Runner) Clean(ctx context.Context) ([]string, error) {
	var removed []string
	err := r.step(Clean, func() error {
		var err error
		removed, err = r.clean(ctx)
		return err
	})
	return removed, err
}

func (r *Runner) clean(ctx context.Context) ([]string, error) {
	root := r.cfg.Project.Root
	var targets []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if path == root {
			return nil
		}
		if d.IsDir() && isEnvDir(d.Name()) {
			return fs.SkipDir
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		if matchesClean(r.cfg.Tasks.Clean.Paths, filepath.ToSlash(rel), d.Name()) {
			targets = append(targets, path)
			if d.IsDir() {
				return fs.SkipDir
			}
		}
		return nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, errors.FileSystemError("failed to scan for build outputs").WithCause(err).WithContext("path", root).Build()
	}

	sort.Strings(targets)
	removed := make([]string, 0, len(targets))
	for _, t := range targets {
		if err := os.RemoveAll(t); err != nil {
			return removed, errors.FileSystemError("failed to remove build output").WithCause(err).WithContext("path", t).Build()
		}
		rel, _ := filepath.Rel(root, t)
		removed = append(removed, filepath.ToSlash(rel))
		slog.Debug("Removed", logfields.Path(t))
	}
	slog.Info("Cleaned build outputs", slog.Int("removed", len(removed)))
	return removed, nil
}

// envDirs hold checkouts and interpreters that are never build outputs.
var envDirs = map[string]struct{}{".git": {}, ".venv": {}, "venv": {}, "env": {}, ".tox": {}, ".nox": {}}

func isEnvDir(name string) bool {
	_, ok := envDirs[name]
	return ok
}

func matchesClean(patterns []string, rel, base string) bool {
	for _, p := range patterns {
		p = strings.TrimSuffix(filepath.ToSlash(p), "/")
		if nested, ok := strings.CutPrefix(p, "**/"); ok {
			if m, _ := path.Match(nested, base); m {
				return true
			}
			continue
		}
		if m, _ := path.Match(strings.TrimPrefix(p, "/"), rel); m {
			return true
		}
	}
	return false
}

// Lint runs the configured spelling engine over lint.paths and writes a text report.
// Remaining misspellings yield lint.ErrMisspellings.
func (r *Runner) Lint(ctx context.Context, fix bool) (*lint.Result, error) {
	var result *lint.Result
	err := r.step(Lint, func() error {
		engine, err := lint.NewEngine(r.cfg.Lint, r.cfg.Project.Root, r.runner)
		if err != nil {
			return err
		}
		result, err = engine.Run(ctx, r.cfg.Lint.Paths, fix)
		if err != nil {
			return err
		}
		if err := lint.NewFormatter("text").Format(r.out, result); err != nil {
			return errors.InternalError("failed to write lint report").WithCause(err).Build()
		}
		if result.HasIssues() {
			return lint.ErrMisspellings.WithContext("count", result.Remaining())
		}
		return nil
	})
	return result, err
}

// Test runs the test commands with MPLBACKEND=agg, inside a scoped virtual display when enabled.
func (r *Runner) Test(ctx context.Context) error {
	t := r.cfg.Tasks.Test
	env := []string{"MPLBACKEND=agg"}
	keys := make([]string, 0, len(t.Env))
	for k := range t.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		env = append(env, k+"="+t.Env[k])
	}

	if !t.Display.IsEnabled() {
		return r.runCommands(ctx, Test, t.Commands, env)
	}
	return r.display(ctx, display.FromConfig(t.Display), func(ctx context.Context, d display.Display) error {
		return r.runCommands(ctx, Test, t.Commands, append(env, d.Env()...))
	})
}

// Doc builds the documentation.
func (r *Runner) Doc(ctx context.Context) error {
	return r.runCommands(ctx, Doc, r.cfg.Tasks.Doc.Commands, nil)
}

func (r *Runner) runCommands(ctx context.Context, task string, commands [][]string, env []string) error {
	for i, argv := range commands {
		cmd, err := process.FromArgv(argv)
		if err != nil {
			return errors.ConfigError("task command is empty").
				WithCause(err).
				WithContext("task", task).
				WithContext("index", i).
				Build()
		}
		cmd.Dir = r.cfg.Project.Root
		cmd.Env = env
		err = r.step(task+": "+cmd.Name, func() error {
			slog.Info("Running task command", logfields.Task(task), logfields.Command(cmd.String()))
			_, err := r.runner.Run(ctx, cmd)
			return err
		})
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return errors.RuntimeError("task command failed").
				WithCause(err).
				WithContext("task", task).
				WithContext("command", cmd.String()).
				WithContext("exit_code", process.ExitCode(err)).
				Build()
		}
	}
	return nil
}

// Dist builds the sdist and wheel and checks them.
func (r *Runner) Dist(ctx context.Context) ([]string, error) {
	p := release.NewPackager(r.cfg, r.runner)
	var artifacts []string
	if err := r.step("build", func() error {
		var err error
		artifacts, err = p.Build(ctx)
		return err
	}); err != nil {
		return nil, err
	}
	if err := r.step("check", func() error { return p.Check(ctx, artifacts) }); err != nil {
		return nil, err
	}
	return artifacts, nil
}

// Release runs Dist, then uploads the artifacts.
func (r *Runner) Release(ctx context.Context) error {
	artifacts, err := r.Dist(ctx)
	if err != nil {
		return err
	}
	p := release.NewPackager(r.cfg, r.runner)
	return r.step("upload", func() error { return p.Upload(ctx, artifacts) })
}
