package commands

import (
	"fmt"

	"github.com/eegrasp/graspci/internal/eventstore"
)

// AutoMergeCmd implements the 'automerge' command. It assumes the checks already passed.
type AutoMergeCmd struct {
	PullRequestFlags
}

func (a *AutoMergeCmd) Run(g *Global, root *CLI) (err error) {
	cfg, err := root.LoadConfig()
	if err != nil {
		return err
	}
	ctx := g.ctx()

	pr, err := a.resolve(ctx, cfg)
	if err != nil {
		return err
	}
	r := startRun(ctx, cfg, eventstore.RunStartedData{
		Pipeline: "automerge",
		Trigger:  trigger(),
		Ref:      fmt.Sprintf("refs/pull/%d/head", pr.Number),
	})
	defer func() { r.close("", err) }()

	return mergePullRequest(ctx, cfg, r, *pr)
}
