package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func value(t *testing.T, m prom.Metric) float64 {
	t.Helper()
	var out dto.Metric
	require.NoError(t, m.Write(&out))
	switch {
	case out.Counter != nil:
		return out.Counter.GetValue()
	case out.Gauge != nil:
		return out.Gauge.GetValue()
	}
	return 0
}

func TestPrometheusRecorder(t *testing.T) {
	reg := prom.NewRegistry()
	pr := NewPrometheusRecorder(reg)
	pr.ObserveStepDuration("release", "build", 1500*time.Millisecond)
	pr.IncStepResult("release", "build", ResultSuccess)
	pr.IncStepResult("release", "check", ResultFailed)
	pr.ObserveRunDuration("release", 2*time.Second)
	pr.IncRunOutcome("release", ResultFailed)
	pr.IncRunOutcome("examples", ResultSuccess)
	pr.IncDownloadRetry()
	pr.ObserveLintIssues(4)

	assert.InDelta(t, 1, value(t, pr.stepResults.WithLabelValues("release", "check", "failed")), 0)
	assert.InDelta(t, 1, value(t, pr.retries), 0)
	assert.InDelta(t, 4, value(t, pr.lintIssues), 0)
	assert.Positive(t, value(t, pr.runLastSuccess.WithLabelValues("examples")))

	mfs, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, mfs)
}

func TestWriteTextfile(t *testing.T) {
	reg := prom.NewRegistry()
	pr := NewPrometheusRecorder(reg)
	pr.IncRunOutcome("lint", ResultSuccess)

	path := filepath.Join(t.TempDir(), "textfile", "graspci.prom")
	require.NoError(t, WriteTextfile(reg, path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), `graspci_run_outcomes_total{pipeline="lint",result="success"} 1`))
}

func TestNoopRecorder(t *testing.T) {
	var r Recorder = NoopRecorder{}
	r.ObserveStepDuration("x", "y", time.Second)
	r.IncRunOutcome("x", ResultSuccess)
}

func TestResultForClosedErr(t *testing.T) {
	assert.Equal(t, ResultSuccess, ResultFor(nil, false))
	assert.Equal(t, ResultCanceled, ResultFor(os.ErrClosed, true))
	assert.Equal(t, ResultFailed, ResultFor(os.ErrClosed, false))
}
