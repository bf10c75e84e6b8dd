package commands

import (
	"context"
	"slices"

	"github.com/eegrasp/graspci/internal/eventstore"
	"github.com/eegrasp/graspci/internal/tasks"
	"github.com/eegrasp/graspci/internal/watch"
)

// WatchCmd implements the 'watch' command.
type WatchCmd struct {
	Task      string `help:"Task to re-run: examples or a developer task (defaults to watch.task)"`
	NoInitial bool   `help:"Wait for the first change instead of running immediately"`
}

func (w *WatchCmd) Run(g *Global, root *CLI) error {
	cfg, err := root.LoadConfig()
	if err != nil {
		return err
	}
	name := w.Task
	if name == "" {
		name = cfg.Watch.Task
	}
	if name != "examples" && !slices.Contains(tasks.Names, name) {
		return tasks.ErrUnknownTask.WithContext("task", name)
	}

	task := func(ctx context.Context) (err error) {
		r := startRun(ctx, cfg, eventstore.RunStartedData{Pipeline: "watch:" + name, Trigger: "watch"})
		defer func() { r.close("", err) }()
		if name == "examples" {
			_, err = runExamples(ctx, cfg, g.runner(), r, true, false)
			return err
		}
		return tasks.New(cfg, g.runner(), tasks.WithObserver(r)).Run(ctx, name)
	}

	paths := make([]string, 0, len(cfg.Watch.Paths))
	for _, p := range cfg.Watch.Paths {
		paths = append(paths, cfg.Resolve(p))
	}
	var opts []watch.Option
	if !w.NoInitial {
		opts = append(opts, watch.WithInitialRun())
	}
	watcher, err := watch.New(paths, cfg.Watch.Debounce, task, opts...)
	if err != nil {
		return err
	}
	return watcher.Run(g.ctx())
}
