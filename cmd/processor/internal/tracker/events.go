package tracker

import (
	"context"
	"time"
)

// Lifecycle event kinds.
const (
	EventRegistered = "registered"
	EventConfirmed  = "confirmed"
	EventRejected   = "rejected"
	EventExpired    = "expired"
)

// Event describes one transition of a pending delivery.
type Event struct {
	Kind          string    `json:"kind"`
	CorrelationID string    `json:"correlation_id"`
	ArtifactRefs  []string  `json:"artifact_refs,omitempty"`
	DocumentID    string    `json:"document_id,omitempty"`
	Message       string    `json:"message,omitempty"`
	At            time.Time `json:"at"`
}

// EventSink receives lifecycle events. Sinks must not block the tracker.
type EventSink interface {
	Publish(ctx context.Context, ev Event)
}
