package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/eegrasp/graspci/internal/errors"
	"github.com/eegrasp/graspci/internal/eventstore"
)

// HistoryCmd implements the 'history' command.
type HistoryCmd struct {
	Limit int    `short:"n" default:"20" help:"Number of runs to show"`
	JSON  bool   `help:"Print the runs as JSON"`
	RunID string `name:"run" help:"Show the steps of one run ID"`
}

func (h *HistoryCmd) Run(g *Global, root *CLI) error {
	cfg, err := root.LoadConfig()
	if err != nil {
		return err
	}
	path := cfg.Resolve(cfg.History.Path)
	if _, serr := os.Stat(path); os.IsNotExist(serr) {
		fmt.Fprintln(os.Stdout, "no runs recorded")
		return nil
	}

	store, err := eventstore.NewSQLiteStore(path)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	limit := h.Limit
	if h.RunID != "" {
		limit = 0
	}
	proj := eventstore.NewRunHistoryProjection(store, limit)
	if err := proj.Rebuild(g.ctx()); err != nil {
		return err
	}

	if h.RunID != "" {
		summary, ok := proj.Get(h.RunID)
		if !ok {
			return errors.NewError(errors.CategoryNotFound, "run not found").WithContext("run_id", h.RunID).Build()
		}
		if h.JSON {
			return writeJSON(os.Stdout, summary)
		}
		printRunDetail(os.Stdout, summary)
		return nil
	}

	runs := proj.Recent()
	if h.JSON {
		return writeJSON(os.Stdout, runs)
	}
	printRuns(os.Stdout, runs)
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printRuns(w io.Writer, runs []*eventstore.RunSummary) {
	if len(runs) == 0 {
		fmt.Fprintln(w, "no runs recorded")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN\tPIPELINE\tSTATUS\tSTATE\tSTARTED\tDURATION\tFAILED STEP")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			r.RunID, r.Pipeline, r.Status, dash(r.State),
			r.StartedAt.Local().Format(time.DateTime), r.Duration.Round(time.Millisecond), dash(r.FailedStep))
	}
	_ = tw.Flush()
}

func printRunDetail(w io.Writer, r *eventstore.RunSummary) {
	fmt.Fprintf(w, "run      %s\npipeline %s\ntrigger  %s\nref      %s\nstatus   %s\n",
		r.RunID, r.Pipeline, dash(r.Trigger), dash(r.Ref), r.Status)
	if r.State != "" {
		fmt.Fprintf(w, "state    %s\n", r.State)
	}
	if r.Error != "" {
		fmt.Fprintf(w, "error    %s\n", r.Error)
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, s := range r.Steps {
		status := "ok"
		if s.Error != "" {
			status = "failed: " + s.Error
		}
		fmt.Fprintf(tw, "  %s\t%s\t%s\n", s.Name, s.Duration.Round(time.Millisecond), status)
	}
	_ = tw.Flush()
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
