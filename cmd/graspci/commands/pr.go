package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/eegrasp/graspci/internal/automerge"
	"github.com/eegrasp/graspci/internal/cienv"
	"github.com/eegrasp/graspci/internal/config"
	"github.com/eegrasp/graspci/internal/eventstore"
	"github.com/eegrasp/graspci/internal/forge"
	"github.com/eegrasp/graspci/internal/logfields"
)

// newForgeClient builds the GitHub client; tests swap it for a fake.
var newForgeClient = func(cfg config.ForgeConfig) (forge.Client, error) {
	c, err := forge.NewGitHubClient(cfg)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// PullRequestFlags identify a pull request outside of a GitHub Actions run.
type PullRequestFlags struct {
	Number   int    `name:"pr" help:"Pull request number"`
	Base     string `help:"Target branch of the pull request"`
	Head     string `help:"Source branch of the pull request"`
	HeadRepo string `help:"owner/name of the repository holding the head branch (forks)"`
}

// resolve finds the pull request: the API when a number and token are known,
// then the Actions event payload, then the flags alone.
func (f PullRequestFlags) resolve(ctx context.Context, cfg *config.Config) (*forge.PullRequest, error) {
	if f.Number > 0 && cfg.Forge.Token != "" {
		client, err := newForgeClient(cfg.Forge)
		if err != nil {
			return nil, err
		}
		return client.GetPullRequest(ctx, f.Number)
	}

	if env := cienv.FromEnvironment(); env.IsPullRequest() {
		pr, err := env.PullRequest()
		if err == nil {
			return pr, nil
		}
		if f.Number == 0 {
			return nil, err
		}
		slog.Warn("Ignoring pull request event payload", logfields.Error(err))
	}

	if f.Number > 0 && f.Base != "" && f.Head != "" {
		return &forge.PullRequest{
			Number:   f.Number,
			Base:     f.Base,
			Head:     f.Head,
			BaseRepo: cfg.Forge.Repository,
			HeadRepo: f.HeadRepo,
			State:    "open",
		}, nil
	}
	return nil, cienv.ErrNotPullRequest
}

// PRCmd implements the 'pr' command: the pull request workflow.
type PRCmd struct {
	PullRequestFlags
	SkipInstall bool `help:"Do not run the editable install first"`
}

func (p *PRCmd) Run(g *Global, root *CLI) (err error) {
	cfg, err := root.LoadConfig()
	if err != nil {
		return err
	}
	ctx := g.ctx()

	pr, err := p.resolve(ctx, cfg)
	if err != nil {
		return err
	}
	r := startRun(ctx, cfg, eventstore.RunStartedData{
		Pipeline: "pr",
		Trigger:  trigger(),
		Ref:      fmt.Sprintf("refs/pull/%d/head", pr.Number),
	})
	defer func() { r.close("", err) }()
	r.Logger().Info("Pull request", logfields.PullRequest(pr.Number), slog.String("base", pr.Base), logfields.Branch(pr.Head))

	if _, err = runExamples(ctx, cfg, g.runner(), r, p.SkipInstall, false); err != nil {
		return err
	}

	if pr.Base == cfg.AutoMerge.MainBranch {
		r.Logger().Info("Pull request targets the main branch, leaving it for review", logfields.Branch(pr.Base))
		r.Skip("pull request targets " + pr.Base + ", left for review")
		return nil
	}
	return mergePullRequest(ctx, cfg, r, *pr)
}

// mergePullRequest runs the auto-merge gate and prints the outcome.
func mergePullRequest(ctx context.Context, cfg *config.Config, r *run, pr forge.PullRequest) error {
	client, err := newForgeClient(cfg.Forge)
	if err != nil {
		return err
	}
	out, err := automerge.NewGate(client, cfg.AutoMerge, automerge.WithObserver(r)).Run(ctx, pr)
	printOutcome(pr, out)
	if err == nil && out != nil && out.Skipped {
		r.Skip(out.SkipReason)
	}
	return err
}

func printOutcome(pr forge.PullRequest, out *automerge.Outcome) {
	if out == nil {
		return
	}
	switch {
	case out.Skipped:
		fmt.Fprintf(os.Stdout, "#%d not merged: %s\n", pr.Number, out.SkipReason)
		return
	case out.Merged:
		fmt.Fprintf(os.Stdout, "#%d merged into %s (%s)\n", pr.Number, pr.Base, out.MergeSHA)
	case out.Labeled:
		fmt.Fprintf(os.Stdout, "#%d labeled but not merged\n", pr.Number)
	}
	if out.BranchDeleted {
		fmt.Fprintf(os.Stdout, "deleted branch %s\n", pr.Head)
	} else if out.DeletionSkipped != "" {
		fmt.Fprintf(os.Stdout, "kept branch %s: %s\n", pr.Head, out.DeletionSkipped)
	}
}
