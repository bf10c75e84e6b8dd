package commands

import (
	"fmt"
	"os"
	"strings"

	"github.com/eegrasp/graspci/internal/cienv"
	"github.com/eegrasp/graspci/internal/eventstore"
	"github.com/eegrasp/graspci/internal/git"
	"github.com/eegrasp/graspci/internal/release"
)

// ReleaseCmd implements the 'release' command.
type ReleaseCmd struct {
	Ref    string `help:"Triggering ref (refs/tags/v1.2.3 or v1.2.3); defaults to GITHUB_REF, then the checkout HEAD"`
	DryRun bool   `help:"Rewrite the version, then stop before building"`
}

func (rc *ReleaseCmd) Run(g *Global, root *CLI) (err error) {
	cfg, err := root.LoadConfig()
	if err != nil {
		return err
	}
	ctx := g.ctx()

	ref, err := rc.resolveRef(cfg.Project.Root)
	if err != nil {
		return err
	}
	r := startRun(ctx, cfg, eventstore.RunStartedData{Pipeline: "release", Trigger: trigger(), Ref: ref})
	var state release.State
	defer func() { r.close(string(state), err) }()

	res, err := release.NewPipeline(cfg, g.runner(), release.WithObserver(r), release.DryRun(rc.DryRun)).Run(ctx, ref)
	if res != nil {
		state = res.State
	}
	if err != nil {
		return err
	}

	if res.DryRun {
		fmt.Fprintf(os.Stdout, "%s: version set to %s (dry run, nothing built)\n", res.Tag.Name, res.Tag.Version)
		return nil
	}
	fmt.Fprintf(os.Stdout, "%s: published %d artifact(s)\n", res.Tag.Name, len(res.Artifacts))
	for _, a := range res.Artifacts {
		fmt.Fprintf(os.Stdout, "  %s\n", a)
	}
	return nil
}

func (rc *ReleaseCmd) resolveRef(root string) (string, error) {
	if rc.Ref != "" {
		return normalizeRef(rc.Ref), nil
	}
	if ref := cienv.FromEnvironment().Ref; ref != "" {
		return ref, nil
	}
	head, err := git.ReadHead(root)
	if err != nil {
		return "", err
	}
	return head.Ref(), nil
}

// normalizeRef qualifies a bare name: v-prefixed names are tags, anything else a branch.
func normalizeRef(ref string) string {
	switch {
	case strings.HasPrefix(ref, "refs/"):
		return ref
	case strings.HasPrefix(ref, "v"):
		return "refs/tags/" + ref
	default:
		return "refs/heads/" + ref
	}
}
