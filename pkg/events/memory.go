package events

import (
	"context"
	"sync"
)

// MemorySink keeps events in memory, deduplicated by idempotency key.
// It is safe for concurrent use.
type MemorySink struct {
	mu     sync.Mutex
	events []Envelope
	seen   map[string]struct{}
}

// NewMemorySink creates an empty MemorySink.
func NewMemorySink() *MemorySink {
	return &MemorySink{seen: make(map[string]struct{})}
}

// Append implements EventSink.
func (m *MemorySink) Append(_ context.Context, envelope Envelope) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if envelope.IdempotencyKey != "" {
		if _, dup := m.seen[envelope.IdempotencyKey]; dup {
			return nil
		}
		m.seen[envelope.IdempotencyKey] = struct{}{}
	}
	m.events = append(m.events, envelope)
	return nil
}

// Events returns a copy of the stored events in append order.
func (m *MemorySink) Events() []Envelope {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Envelope(nil), m.events...)
}

// ByType returns the stored events of the given type.
func (m *MemorySink) ByType(eventType string) []Envelope {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []Envelope
	for _, e := range m.events {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}
