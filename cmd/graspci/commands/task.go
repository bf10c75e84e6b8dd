package commands

import (
	"fmt"
	"os"

	"github.com/eegrasp/graspci/internal/eventstore"
	"github.com/eegrasp/graspci/internal/tasks"
)

// TaskCmd implements the 'task' command.
type TaskCmd struct {
	Name string `arg:"" enum:"clean,lint,test,doc,dist,release" help:"Task to run (clean, lint, test, doc, dist, release)"`
}

func (t *TaskCmd) Run(g *Global, root *CLI) (err error) {
	cfg, err := root.LoadConfig()
	if err != nil {
		return err
	}
	ctx := g.ctx()
	r := startRun(ctx, cfg, eventstore.RunStartedData{Pipeline: "task:" + t.Name, Trigger: trigger()})
	defer func() { r.close("", err) }()

	runner := tasks.New(cfg, g.runner(), tasks.WithObserver(r))
	switch t.Name {
	case tasks.Clean:
		removed, cerr := runner.Clean(ctx)
		for _, p := range removed {
			fmt.Fprintf(os.Stdout, "removed %s\n", p)
		}
		return cerr
	case tasks.Dist:
		artifacts, derr := runner.Dist(ctx)
		for _, a := range artifacts {
			fmt.Fprintf(os.Stdout, "built %s\n", a)
		}
		return derr
	default:
		return runner.Run(ctx, t.Name)
	}
}
