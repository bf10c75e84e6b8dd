package eventstore

import (
	"encoding/json"
	stderrors "errors"
	"testing"
	"time"
)

func TestRunEventPayloads(t *testing.T) {
	started, err := NewRunStarted("run-1", RunStartedData{Pipeline: "release", Trigger: "push", Ref: "refs/tags/v1.2.3"})
	if err != nil {
		t.Fatalf("encode RunStarted: %v", err)
	}
	var rs RunStartedData
	if err := json.Unmarshal(started, &rs); err != nil {
		t.Fatalf("decode RunStarted: %v", err)
	}
	if rs.Pipeline != "release" || rs.Ref != "refs/tags/v1.2.3" {
		t.Errorf("unexpected RunStarted payload: %+v", rs)
	}

	step, err := NewStepCompleted("run-1", "build", 1500*time.Millisecond, stderrors.New("exit status 1"))
	if err != nil {
		t.Fatalf("encode StepCompleted: %v", err)
	}
	var sc StepCompletedData
	if err := json.Unmarshal(step, &sc); err != nil {
		t.Fatalf("decode StepCompleted: %v", err)
	}
	if sc.Step != "build" || sc.DurationMS != 1500 || sc.Error != "exit status 1" {
		t.Errorf("unexpected StepCompleted payload: %+v", sc)
	}

	ok, err := NewStepCompleted("run-1", "check", time.Second, nil)
	if err != nil {
		t.Fatalf("encode StepCompleted: %v", err)
	}
	var raw map[string]any
	if err := json.Unmarshal(ok, &raw); err != nil {
		t.Fatalf("decode StepCompleted: %v", err)
	}
	if _, present := raw["error"]; present {
		t.Errorf("successful step should omit error, got %v", raw)
	}
}

func TestRunCompletedPayload(t *testing.T) {
	payload, err := NewRunCompleted("run-2", RunCompletedData{Status: StatusFailed, State: "built", DurationMS: 42, Error: "twine check failed"})
	if err != nil {
		t.Fatalf("encode RunCompleted: %v", err)
	}
	var rc RunCompletedData
	if err := json.Unmarshal(payload, &rc); err != nil {
		t.Fatalf("decode RunCompleted: %v", err)
	}
	if rc.Status != StatusFailed || rc.State != "built" || rc.DurationMS != 42 {
		t.Errorf("unexpected RunCompleted payload: %+v", rc)
	}
}
