// Package eventstore persists pipeline run events and projects them into run history.
package eventstore

import (
	"context"
	"time"
)

// Event is one stored run event.
type Event interface {
	ID() int64
	RunID() string
	Type() string
	Timestamp() time.Time
	Payload() []byte
	Metadata() map[string]string
}

// Store appends run events and reads them back in insertion order.
type Store interface {
	Append(ctx context.Context, runID, eventType string, payload []byte, metadata map[string]string) error
	GetByRunID(ctx context.Context, runID string) ([]Event, error)
	// GetRange returns events with start <= timestamp <= end.
	GetRange(ctx context.Context, start, end time.Time) ([]Event, error)
	Close() error
}

// record is the Event read from a row.
type record struct {
	id       int64
	runID    string
	typ      string
	at       time.Time
	payload  []byte
	metadata map[string]string
}

func (r *record) ID() int64                   { return r.id }
func (r *record) RunID() string               { return r.runID }
func (r *record) Type() string                { return r.typ }
func (r *record) Timestamp() time.Time        { return r.at }
func (r *record) Payload() []byte             { return r.payload }
func (r *record) Metadata() map[string]string { return r.metadata }
