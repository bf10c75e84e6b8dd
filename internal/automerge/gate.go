// Package automerge turns a green example run on a non-main pull request into a merge.
package automerge

import (
	"context"
	stderrors "errors"
	"log/slog"
	"slices"
	"time"

	"github.com/eegrasp/graspci/internal/config"
	"github.com/eegrasp/graspci/internal/errors"
	"github.com/eegrasp/graspci/internal/forge"
	"github.com/eegrasp/graspci/internal/logfields"
	"github.com/eegrasp/graspci/internal/runlog"
)

// DefaultProtectedBranches are never deleted after a merge.
var DefaultProtectedBranches = []string{"main", "latest", "testing"}

// Decision is the gate's verdict for a pull request.
type Decision struct {
	Proceed bool
	Reason  string
}

// Outcome records what the gate did.
type Outcome struct {
	Skipped       bool
	SkipReason    string
	Labeled       bool
	Merged        bool
	MergeSHA      string
	BranchDeleted bool
	// DeletionSkipped explains why the head branch was kept, empty when it was deleted.
	DeletionSkipped string
}

// Gate labels, merges and cleans up a pull request.
type Gate struct {
	client    forge.Client
	cfg       config.AutoMergeConfig
	observer  runlog.Observer
	protected []string
}

// Option configures a Gate.
type Option func(*Gate)

// WithObserver reports each gate step to o.
func WithObserver(o runlog.Observer) Option {
	return func(g *Gate) { g.observer = o }
}

// NewGate creates a gate using client for all API calls.
func NewGate(client forge.Client, cfg config.AutoMergeConfig, opts ...Option) *Gate {
	g := &Gate{client: client, cfg: cfg, observer: runlog.Nop{}}
	g.protected = cfg.ProtectedBranches
	if g.protected == nil {
		g.protected = DefaultProtectedBranches
	}
	if g.cfg.Label == "" {
		g.cfg.Label = "automerge"
	}
	if g.cfg.MergeMethod == "" {
		g.cfg.MergeMethod = config.MergeMethodMerge
	}
	if g.cfg.MainBranch == "" {
		g.cfg.MainBranch = "main"
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

// IsProtected reports whether name is one of the protected branches. The match is exact and case-sensitive.
func (g *Gate) IsProtected(name string) bool {
	return slices.Contains(g.protected, name)
}

// IsProtected checks name against DefaultProtectedBranches.
func IsProtected(name string) bool {
	return slices.Contains(DefaultProtectedBranches, name)
}

// Evaluate decides whether pr qualifies for auto-merge.
func (g *Gate) Evaluate(pr forge.PullRequest) Decision {
	switch {
	case pr.Number <= 0:
		return Decision{Reason: "no pull request number"}
	case pr.Base == g.cfg.MainBranch:
		return Decision{Reason: "pull request targets " + g.cfg.MainBranch}
	case pr.Merged:
		return Decision{Reason: "pull request already merged"}
	}
	return Decision{Proceed: true}
}

// Run labels and merges pr, then deletes its head branch unless protected, kept, or in a fork.
func (g *Gate) Run(ctx context.Context, pr forge.PullRequest) (*Outcome, error) {
	log := slog.With(logfields.PullRequest(pr.Number), logfields.Branch(pr.Head))
	out := &Outcome{}

	if d := g.Evaluate(pr); !d.Proceed {
		out.Skipped = true
		out.SkipReason = d.Reason
		log.Info("Auto-merge skipped", slog.String("reason", d.Reason))
		return out, nil
	}

	if err := g.step("label", func() error {
		return g.client.AddLabels(ctx, pr.Number, g.cfg.Label)
	}); err != nil {
		return out, errors.WrapError(err, errors.GetCategory(err), "failed to label pull request").
			WithContext("pull_request", pr.Number).
			WithContext("label", g.cfg.Label).
			Build()
	}
	out.Labeled = true
	log.Info("Labeled pull request", logfields.Label(g.cfg.Label))

	if err := g.step("merge", func() error {
		res, err := g.client.MergePullRequest(ctx, pr.Number, string(g.cfg.MergeMethod))
		if res != nil {
			out.MergeSHA = res.SHA
		}
		return err
	}); err != nil {
		return out, err
	}
	out.Merged = true
	log.Info("Merged pull request", slog.String("method", string(g.cfg.MergeMethod)), slog.String("sha", out.MergeSHA))

	switch {
	case g.cfg.KeepBranch:
		out.DeletionSkipped = "keep_branch is set"
	case g.IsProtected(pr.Head):
		out.DeletionSkipped = "branch is protected"
	case pr.IsFork():
		out.DeletionSkipped = "branch lives in fork " + pr.HeadRepo
	}
	if out.DeletionSkipped != "" {
		log.Info("Keeping head branch", slog.String("reason", out.DeletionSkipped))
		return out, nil
	}

	err := g.step("delete-branch", func() error {
		return g.client.DeleteBranch(ctx, pr.Head)
	})
	switch {
	case err == nil:
		out.BranchDeleted = true
		log.Info("Deleted head branch")
	case stderrors.Is(err, forge.ErrBranchNotFound):
		out.DeletionSkipped = "branch already deleted"
		log.Warn("Head branch already gone")
	default:
		return out, errors.WrapError(err, errors.GetCategory(err), "failed to delete head branch").
			WithContext("branch", pr.Head).
			Build()
	}
	return out, nil
}

func (g *Gate) step(name string, fn func() error) error {
	start := time.Now()
	err := fn()
	g.observer.StepCompleted(name, time.Since(start), err)
	return err
}
