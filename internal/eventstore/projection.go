package eventstore

import (
	"context"
	"encoding/json"
	"sort"
	"time"
)

// StepSummary is one finished step of a run.
type StepSummary struct {
	Name     string        `json:"name"`
	Duration time.Duration `json:"duration"`
	Error    string        `json:"error,omitempty"`
}

// RunSummary is a read model of one pipeline run.
type RunSummary struct {
	RunID       string        `json:"run_id"`
	Pipeline    string        `json:"pipeline"`
	Trigger     string        `json:"trigger,omitempty"`
	Ref         string        `json:"ref,omitempty"`
	Status      string        `json:"status"`
	State       string        `json:"state,omitempty"`
	StartedAt   time.Time     `json:"started_at"`
	CompletedAt *time.Time    `json:"completed_at,omitempty"`
	Duration    time.Duration `json:"duration,omitempty"`
	Steps       []StepSummary `json:"steps,omitempty"`
	FailedStep  string        `json:"failed_step,omitempty"`
	Error       string        `json:"error,omitempty"`
}

// RunHistoryProjection rebuilds run summaries from stored events.
type RunHistoryProjection struct {
	store   Store
	runs    map[string]*RunSummary
	maxSize int
}

// NewRunHistoryProjection creates a projection keeping at most maxSize runs (default 20).
func NewRunHistoryProjection(store Store, maxSize int) *RunHistoryProjection {
	if maxSize <= 0 {
		maxSize = 20
	}
	return &RunHistoryProjection{store: store, runs: make(map[string]*RunSummary), maxSize: maxSize}
}

// Rebuild replays every stored event.
func (p *RunHistoryProjection) Rebuild(ctx context.Context) error {
	events, err := p.store.GetRange(ctx, time.Time{}, time.Now().Add(time.Hour))
	if err != nil {
		return err
	}
	p.runs = make(map[string]*RunSummary)
	for _, e := range events {
		p.Apply(e)
	}
	return nil
}

// Apply folds a single event into the projection.
func (p *RunHistoryProjection) Apply(e Event) {
	runID := e.RunID()
	if runID == "" {
		return
	}
	run, ok := p.runs[runID]
	if !ok {
		run = &RunSummary{RunID: runID, Status: StatusRunning, StartedAt: e.Timestamp()}
		p.runs[runID] = run
	}

	switch e.Type() {
	case TypeRunStarted:
		var data RunStartedData
		if json.Unmarshal(e.Payload(), &data) == nil {
			run.Pipeline = data.Pipeline
			run.Trigger = data.Trigger
			run.Ref = data.Ref
		}
		run.StartedAt = e.Timestamp()
	case TypeStepCompleted:
		var data StepCompletedData
		if json.Unmarshal(e.Payload(), &data) == nil {
			run.Steps = append(run.Steps, StepSummary{
				Name:     data.Step,
				Duration: time.Duration(data.DurationMS) * time.Millisecond,
				Error:    data.Error,
			})
			if data.Error != "" && run.FailedStep == "" {
				run.FailedStep = data.Step
			}
		}
	case TypeRunCompleted:
		var data RunCompletedData
		if json.Unmarshal(e.Payload(), &data) == nil {
			run.Status = data.Status
			run.State = data.State
			run.Error = data.Error
			run.Duration = time.Duration(data.DurationMS) * time.Millisecond
		}
		at := e.Timestamp()
		run.CompletedAt = &at
	}
}

// Recent returns runs newest first, bounded by the projection size.
func (p *RunHistoryProjection) Recent() []*RunSummary {
	out := make([]*RunSummary, 0, len(p.runs))
	for _, r := range p.runs {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].RunID > out[j].RunID
		}
		return out[i].StartedAt.After(out[j].StartedAt)
	})
	if len(out) > p.maxSize {
		out = out[:p.maxSize]
	}
	return out
}

// Get returns the summary for runID.
func (p *RunHistoryProjection) Get(runID string) (*RunSummary, bool) {
	r, ok := p.runs[runID]
	return r, ok
}
