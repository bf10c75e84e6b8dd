package eventstore

import (
	"encoding/json"
	"time"

	"github.com/eegrasp/graspci/internal/errors"
)

// Event type names.
const (
	TypeRunStarted    = "RunStarted"
	TypeStepCompleted = "StepCompleted"
	TypeRunCompleted  = "RunCompleted"
)

// Run statuses used by RunCompleted and the projection.
const (
	StatusRunning   = "running"
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
	StatusSkipped   = "skipped"
)

// RunStartedData is the payload of RunStarted.
type RunStartedData struct {
	Pipeline string `json:"pipeline"`
	Trigger  string `json:"trigger,omitempty"` // e.g. "pull_request", "push", "local"
	Ref      string `json:"ref,omitempty"`
}

// StepCompletedData is the payload of StepCompleted.
type StepCompletedData struct {
	Step       string `json:"step"`
	DurationMS int64  `json:"duration_ms"`
	Error      string `json:"error,omitempty"`
}

// RunCompletedData is the payload of RunCompleted.
type RunCompletedData struct {
	Status     string `json:"status"`
	State      string `json:"state,omitempty"` // last pipeline state reached
	DurationMS int64  `json:"duration_ms"`
	Error      string `json:"error,omitempty"`
}

func marshal(runID, eventType string, v any) ([]byte, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return nil, errors.EventStoreError("failed to marshal " + eventType + " payload").
			WithCause(err).
			WithContext("run_id", runID).
			Build()
	}
	return payload, nil
}

// NewRunStarted encodes a RunStarted payload.
func NewRunStarted(runID string, data RunStartedData) ([]byte, error) {
	return marshal(runID, TypeRunStarted, data)
}

// NewStepCompleted encodes a StepCompleted payload.
func NewStepCompleted(runID, step string, d time.Duration, stepErr error) ([]byte, error) {
	data := StepCompletedData{Step: step, DurationMS: d.Milliseconds()}
	if stepErr != nil {
		data.Error = stepErr.Error()
	}
	return marshal(runID, TypeStepCompleted, data)
}

// NewRunCompleted encodes a RunCompleted payload.
func NewRunCompleted(runID string, data RunCompletedData) ([]byte, error) {
	return marshal(runID, TypeRunCompleted, data)
}
