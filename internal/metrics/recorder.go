package metrics

import "time"

// ResultLabel enumerates step and run result categories for counters.
type ResultLabel string

const (
	ResultSuccess  ResultLabel = "success"
	ResultFailed   ResultLabel = "failed"
	ResultSkipped  ResultLabel = "skipped"
	ResultCanceled ResultLabel = "canceled"
)

// Recorder defines observability hooks for pipeline runs.
type Recorder interface {
	ObserveStepDuration(pipeline, step string, d time.Duration)
	IncStepResult(pipeline, step string, result ResultLabel)
	ObserveRunDuration(pipeline string, d time.Duration)
	IncRunOutcome(pipeline string, result ResultLabel)
	IncDownloadRetry()
	ObserveLintIssues(n int)
}

// NoopRecorder is a Recorder that does nothing (default when metrics are not configured).
type NoopRecorder struct{}

func (NoopRecorder) ObserveStepDuration(string, string, time.Duration) {}
func (NoopRecorder) IncStepResult(string, string, ResultLabel)         {}
func (NoopRecorder) ObserveRunDuration(string, time.Duration)          {}
func (NoopRecorder) IncRunOutcome(string, ResultLabel)                 {}
func (NoopRecorder) IncDownloadRetry()                                 {}
func (NoopRecorder) ObserveLintIssues(int)                             {}

// ResultFor maps an error to a result label.
func ResultFor(err error, canceled bool) ResultLabel {
	switch {
	case err == nil:
		return ResultSuccess
	case canceled:
		return ResultCanceled
	default:
		return ResultFailed
	}
}
