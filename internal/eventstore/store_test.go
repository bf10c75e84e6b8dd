package eventstore

import (
	"context"
	stderrors "errors"
	"path/filepath"
	"testing"
	"time"
)

func TestSQLiteStore_AppendAndGet(t *testing.T) {
	store, err := NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	defer func() { _ = store.Close() }()

	ctx := context.Background()
	runID := "run-123"

	payload, err := NewRunStarted(runID, RunStartedData{Pipeline: "examples", Trigger: "local"})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if err := store.Append(ctx, runID, TypeRunStarted, payload, map[string]string{"host": "ci"}); err != nil {
		t.Fatalf("failed to append: %v", err)
	}
	if err := store.Append(ctx, "other", TypeRunStarted, payload, nil); err != nil {
		t.Fatalf("failed to append: %v", err)
	}

	events, err := store.GetByRunID(ctx, runID)
	if err != nil {
		t.Fatalf("failed to get events: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].Type() != TypeRunStarted {
		t.Errorf("expected type %s, got %s", TypeRunStarted, events[0].Type())
	}
	if events[0].Metadata()["host"] != "ci" {
		t.Errorf("expected metadata host=ci, got %v", events[0].Metadata())
	}
}

func TestSQLiteStore_GetRange(t *testing.T) {
	store, err := NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	defer func() { _ = store.Close() }()

	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	ctx := context.Background()
	for i := range 3 {
		at := base.Add(time.Duration(i) * time.Hour)
		store.now = func() time.Time { return at }
		if err := store.Append(ctx, "r", TypeStepCompleted, nil, nil); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}

	events, err := store.GetRange(ctx, base.Add(30*time.Minute), base.Add(3*time.Hour))
	if err != nil {
		t.Fatalf("range: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events in range, got %d", len(events))
	}
}

func TestSQLiteStore_PersistsToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "history.db")
	store, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := store.Append(context.Background(), "r1", TypeRunStarted, nil, nil); err != nil {
		t.Fatalf("append: %v", err)
	}
	_ = store.Close()

	reopened, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer func() { _ = reopened.Close() }()
	events, err := reopened.GetByRunID(context.Background(), "r1")
	if err != nil || len(events) != 1 {
		t.Fatalf("expected persisted event, got %d (%v)", len(events), err)
	}
}

func TestSQLiteStore_ClosedStoreErrorsAreClassified(t *testing.T) {
	store, err := NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	_ = store.Close()

	err = store.Append(context.Background(), "r", TypeRunStarted, nil, nil)
	if !stderrors.Is(err, ErrEventAppendFailed) {
		t.Fatalf("expected ErrEventAppendFailed, got %v", err)
	}
	_, err = store.GetByRunID(context.Background(), "r")
	if !stderrors.Is(err, ErrEventQueryFailed) {
		t.Fatalf("expected ErrEventQueryFailed, got %v", err)
	}
}
