// Package release implements the tag-triggered release state machine:
// not-a-tag is rejected, otherwise tag-detected -> version-rewritten -> built -> checked -> published.
package release

import (
	"context"
	"log/slog"
	"time"

	"github.com/eegrasp/graspci/internal/config"
	"github.com/eegrasp/graspci/internal/logfields"
	"github.com/eegrasp/graspci/internal/process"
	"github.com/eegrasp/graspci/internal/pyversion"
	"github.com/eegrasp/graspci/internal/runlog"
)

// Result is what a pipeline run reached.
type Result struct {
	Ref       string
	Tag       Tag
	State     State
	Artifacts []string
	DryRun    bool
}

// Pipeline walks a release from ref to published package.
type Pipeline struct {
	cfg      *config.Config
	packager *Packager
	observer runlog.Observer
	dryRun   bool
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithObserver reports each step to o.
func WithObserver(o runlog.Observer) Option {
	return func(p *Pipeline) { p.observer = o }
}

// DryRun stops the pipeline after the version rewrite.
func DryRun(enabled bool) Option {
	return func(p *Pipeline) { p.dryRun = enabled }
}

// NewPipeline creates a release pipeline running tools through runner.
func NewPipeline(cfg *config.Config, runner process.Runner, opts ...Option) *Pipeline {
	p := &Pipeline{cfg: cfg, packager: NewPackager(cfg, runner), observer: runlog.Nop{}}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Run executes the state machine for ref. On error the result holds the last state reached.
func (p *Pipeline) Run(ctx context.Context, ref string) (*Result, error) {
	res := &Result{Ref: ref, State: StateNotATag, DryRun: p.dryRun}

	tag, err := ParseTagRef(ref)
	if err != nil {
		p.observer.StepCompleted("guard", 0, err)
		return res, err
	}
	res.Tag = tag
	res.State = StateTagDetected
	log := slog.With(logfields.Tag(tag.Name), logfields.Version(tag.Version))
	log.Info("Release tag detected", logfields.Ref(ref))

	if err := p.step("version", func() error {
		_, err := pyversion.Sync(p.cfg.Project.Root, p.cfg.Version, tag.Version)
		return err
	}); err != nil {
		return res, err
	}
	res.State = StateVersionRewritten

	if p.dryRun {
		log.Info("Dry run: stopping before build", logfields.State(string(res.State)))
		return res, nil
	}

	if err := p.step("build", func() (err error) {
		res.Artifacts, err = p.packager.Build(ctx)
		return err
	}); err != nil {
		return res, err
	}
	res.State = StateBuilt

	if err := p.step("check", func() error {
		return p.packager.Check(ctx, res.Artifacts)
	}); err != nil {
		return res, err
	}
	res.State = StateChecked

	if err := p.step("upload", func() error {
		return p.packager.Upload(ctx, res.Artifacts)
	}); err != nil {
		return res, err
	}
	res.State = StatePublished
	log.Info("Release published", slog.Int("artifacts", len(res.Artifacts)))
	return res, nil
}

func (p *Pipeline) step(name string, fn func() error) error {
	start := time.Now()
	err := fn()
	p.observer.StepCompleted(name, time.Since(start), err)
	return err
}
