package events_test

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jcolano/SDG-simplified-evolution-generation/pkg/events"
)

func TestNewEnvelope(t *testing.T) {
	env, err := events.NewEnvelope("pipeline.run_completed", "orchestrator", "key-1", "wf", "run",
		map[string]int{"accepted": 2})
	require.NoError(t, err)

	assert.NotEmpty(t, env.ID)
	assert.Equal(t, events.EnvelopeVersion, env.Version)
	assert.Equal(t, "default", env.TenantID)
	assert.False(t, env.Timestamp.IsZero())

	var payload map[string]int
	require.NoError(t, json.Unmarshal(env.Payload, &payload))
	assert.Equal(t, 2, payload["accepted"])

	_, err = events.NewEnvelope("bad", "x", "k", "wf", "run", make(chan int))
	assert.Error(t, err)
}

func TestMemorySink_Deduplicates(t *testing.T) {
	sink := events.NewMemorySink()
	ctx := context.Background()

	require.NoError(t, sink.Append(ctx, events.Envelope{Type: "a", IdempotencyKey: "k1"}))
	require.NoError(t, sink.Append(ctx, events.Envelope{Type: "a", IdempotencyKey: "k1"}))
	require.NoError(t, sink.Append(ctx, events.Envelope{Type: "b", IdempotencyKey: "k2"}))

	assert.Len(t, sink.Events(), 2)
	assert.Len(t, sink.ByType("a"), 1)
	assert.Empty(t, sink.ByType("c"))
}

func TestMemorySink_Concurrent(t *testing.T) {
	sink := events.NewMemorySink()
	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = sink.Append(context.Background(), events.Envelope{IdempotencyKey: string(rune('a' + i%10))})
		}()
	}
	wg.Wait()

	assert.Len(t, sink.Events(), 10)
}

func TestNoOpEventSink(t *testing.T) {
	assert.NoError(t, events.NewNoOpEventSink().Append(context.Background(), events.Envelope{}))
}
