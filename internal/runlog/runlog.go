// Package runlog tracks a pipeline run: it logs, records metrics and appends run history events.
package runlog

import (
	"context"
	stderrors "errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/eegrasp/graspci/internal/eventstore"
	"github.com/eegrasp/graspci/internal/logfields"
	"github.com/eegrasp/graspci/internal/metrics"
)

// Observer receives step completions from a pipeline.
type Observer interface {
	StepCompleted(step string, d time.Duration, err error)
}

// Nop discards step completions.
type Nop struct{}

func (Nop) StepCompleted(string, time.Duration, error) {}

// Tracker is the Observer for one run. History write failures are logged, never returned.
type Tracker struct {
	ctx      context.Context
	runID    string
	pipeline string
	start    time.Time
	store    eventstore.Store
	recorder metrics.Recorder
	log      *slog.Logger
	finished bool
}

// Start begins tracking a run of pipeline. store may be nil to disable history.
func Start(ctx context.Context, store eventstore.Store, rec metrics.Recorder, data eventstore.RunStartedData) *Tracker {
	if rec == nil {
		rec = metrics.NoopRecorder{}
	}
	t := &Tracker{
		ctx:      ctx,
		runID:    uuid.NewString(),
		pipeline: data.Pipeline,
		start:    time.Now(),
		store:    store,
		recorder: rec,
	}
	t.log = slog.With(logfields.RunID(t.runID), logfields.Pipeline(data.Pipeline))
	t.log.Info("Run started", logfields.Ref(data.Ref), slog.String("trigger", data.Trigger))

	payload, err := eventstore.NewRunStarted(t.runID, data)
	t.append(eventstore.TypeRunStarted, payload, err)
	return t
}

// RunID returns the run's UUID.
func (t *Tracker) RunID() string { return t.runID }

// Logger returns a logger carrying the run ID and pipeline.
func (t *Tracker) Logger() *slog.Logger { return t.log }

// StepCompleted implements Observer.
func (t *Tracker) StepCompleted(step string, d time.Duration, err error) {
	result := metrics.ResultFor(err, isCanceled(err))
	t.recorder.ObserveStepDuration(t.pipeline, step, d)
	t.recorder.IncStepResult(t.pipeline, step, result)
	if err != nil {
		t.log.Warn("Step failed", logfields.Step(step), logfields.Duration(d), logfields.Error(err))
	} else {
		t.log.Info("Step completed", logfields.Step(step), logfields.Duration(d))
	}

	payload, encErr := eventstore.NewStepCompleted(t.runID, step, d, err)
	t.append(eventstore.TypeStepCompleted, payload, encErr)
}

// Step runs fn and reports it as a step.
func (t *Tracker) Step(name string, fn func() error) error {
	start := time.Now()
	err := fn()
	t.StepCompleted(name, time.Since(start), err)
	return err
}

// Skip finishes the run as skipped.
func (t *Tracker) Skip(reason string) {
	t.finish(eventstore.StatusSkipped, "", nil, reason)
}

// Finish records the run outcome. state names the last pipeline state reached, if any.
func (t *Tracker) Finish(state string, err error) {
	status := eventstore.StatusSucceeded
	if err != nil {
		status = eventstore.StatusFailed
	}
	t.finish(status, state, err, "")
}

func (t *Tracker) finish(status, state string, err error, reason string) {
	if t.finished {
		return
	}
	t.finished = true
	d := time.Since(t.start)

	result := metrics.ResultFor(err, isCanceled(err))
	if status == eventstore.StatusSkipped {
		result = metrics.ResultSkipped
	}
	t.recorder.ObserveRunDuration(t.pipeline, d)
	t.recorder.IncRunOutcome(t.pipeline, result)

	data := eventstore.RunCompletedData{Status: status, State: state, DurationMS: d.Milliseconds()}
	attrs := []any{slog.String("status", status), logfields.Duration(d)}
	if state != "" {
		attrs = append(attrs, logfields.State(state))
	}
	if reason != "" {
		attrs = append(attrs, slog.String("reason", reason))
		data.Error = reason
	}
	if err != nil {
		data.Error = err.Error()
		attrs = append(attrs, logfields.Error(err))
		t.log.Error("Run failed", attrs...)
	} else {
		t.log.Info("Run finished", attrs...)
	}

	payload, encErr := eventstore.NewRunCompleted(t.runID, data)
	t.append(eventstore.TypeRunCompleted, payload, encErr)
}

func (t *Tracker) append(eventType string, payload []byte, encErr error) {
	if t.store == nil {
		return
	}
	if encErr != nil {
		t.log.Warn("Failed to encode run event", slog.String("event_type", eventType), logfields.Error(encErr))
		return
	}
	// The run context may already be cancelled; history is still written.
	ctx := context.WithoutCancel(t.ctx)
	if err := t.store.Append(ctx, t.runID, eventType, payload, nil); err != nil {
		t.log.Warn("Failed to record run event", slog.String("event_type", eventType), logfields.Error(err))
	}
}

func isCanceled(err error) bool {
	return err != nil && (stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded))
}
