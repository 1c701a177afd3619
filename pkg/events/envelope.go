// Package events provides the event envelope and sinks used to record the
// progress of pipeline runs.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EnvelopeVersion is the schema version stamped on new envelopes.
const EnvelopeVersion = "1.0.0"

// Envelope wraps a domain event with routing and deduplication metadata.
type Envelope struct {
	// ID uniquely identifies this event instance.
	ID string `json:"id"`

	// Type identifies the event, e.g. "pipeline.candidate_judged".
	Type string `json:"type"`

	// Source names the emitting component, e.g. "orchestrator" or "evolution-activity".
	Source string `json:"source"`

	Version   string    `json:"version"`
	Timestamp time.Time `json:"timestamp"`

	// IdempotencyKey is deterministic per logical event. Sinks drop
	// envelopes whose key they have already stored.
	IdempotencyKey string `json:"idempotency_key"`

	TenantID string `json:"tenant_id"`

	// WorkflowID is the Temporal workflow or in-process run that produced the event.
	WorkflowID string `json:"workflow_id"`
	RunID      string `json:"run_id"`

	// Payload is the JSON encoded event body. Its schema depends on Type.
	Payload json.RawMessage `json:"payload"`
}

// NewEnvelope marshals payload and fills the envelope metadata.
func NewEnvelope(eventType, source, idempotencyKey, workflowID, runID string, payload any) (Envelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("failed to marshal %s payload: %w", eventType, err)
	}
	return Envelope{
		ID:             uuid.New().String(),
		Type:           eventType,
		Source:         source,
		Version:        EnvelopeVersion,
		Timestamp:      time.Now().UTC(),
		IdempotencyKey: idempotencyKey,
		TenantID:       "default",
		WorkflowID:     workflowID,
		RunID:          runID,
		Payload:        data,
	}, nil
}

// EventSink receives emitted events.
// Implementations must treat a repeated idempotency key as a no-op and return
// quickly. Callers never fail their primary operation on a sink error.
type EventSink interface {
	Append(ctx context.Context, envelope Envelope) error
}

// NoOpEventSink discards every event.
type NoOpEventSink struct{}

// Append implements EventSink.
func (n *NoOpEventSink) Append(_ context.Context, _ Envelope) error {
	return nil
}

// NewNoOpEventSink creates a new no-op event sink.
func NewNoOpEventSink() EventSink {
	return &NoOpEventSink{}
}
