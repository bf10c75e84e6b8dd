package runlog

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eegrasp/graspci/internal/eventstore"
	"github.com/eegrasp/graspci/internal/metrics"
)

type countingRecorder struct {
	metrics.NoopRecorder
	outcomes []metrics.ResultLabel
	steps    []metrics.ResultLabel
}

func (c *countingRecorder) IncRunOutcome(_ string, r metrics.ResultLabel) { c.outcomes = append(c.outcomes, r) }
func (c *countingRecorder) IncStepResult(_, _ string, r metrics.ResultLabel) {
	c.steps = append(c.steps, r)
}

func TestTrackerRecordsHistory(t *testing.T) {
	store, err := eventstore.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	rec := &countingRecorder{}
	tr := Start(context.Background(), store, rec, eventstore.RunStartedData{Pipeline: "examples", Trigger: "local"})
	require.NoError(t, tr.Step("install", func() error { return nil }))
	stepErr := errors.New("boom")
	require.ErrorIs(t, tr.Step("run", func() error { return stepErr }), stepErr)
	tr.Finish("", stepErr)
	tr.Finish("", nil) // second call ignored

	events, err := store.GetByRunID(context.Background(), tr.RunID())
	require.NoError(t, err)
	require.Len(t, events, 4)
	assert.Equal(t, eventstore.TypeRunStarted, events[0].Type())
	assert.Equal(t, eventstore.TypeRunCompleted, events[3].Type())

	assert.Equal(t, []metrics.ResultLabel{metrics.ResultSuccess, metrics.ResultFailed}, rec.steps)
	assert.Equal(t, []metrics.ResultLabel{metrics.ResultFailed}, rec.outcomes)

	p := eventstore.NewRunHistoryProjection(store, 5)
	require.NoError(t, p.Rebuild(context.Background()))
	run, ok := p.Get(tr.RunID())
	require.True(t, ok)
	assert.Equal(t, eventstore.StatusFailed, run.Status)
	assert.Equal(t, "run", run.FailedStep)
}

func TestTrackerWithoutStore(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	tr := Start(ctx, nil, nil, eventstore.RunStartedData{Pipeline: "lint"})
	cancel()
	tr.StepCompleted("walk", time.Millisecond, context.Canceled)
	tr.Skip("nothing to do")
	assert.NotEmpty(t, tr.RunID())
}

func TestNopObserver(t *testing.T) {
	var o Observer = Nop{}
	o.StepCompleted("x", time.Second, nil)
}
