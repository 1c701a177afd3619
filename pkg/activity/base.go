// Package activity provides infrastructure shared by Temporal activity
// implementations: workflow context extraction, logging that is safe outside
// an activity, heartbeats and best-effort event emission.
package activity

import (
	"context"
	"fmt"
	"time"

	"go.temporal.io/sdk/activity"

	"github.com/jcolano/SDG-simplified-evolution-generation/pkg/events"
)

// Fallback identifiers used when ctx is not an activity context.
const (
	FallbackWorkflowID = "local"
	FallbackTenantID   = "default"
)

// Event emission retry settings.
const (
	emitAttempts   = 2
	emitRetryDelay = 200 * time.Millisecond
)

// WorkflowContext identifies the workflow execution running an activity.
type WorkflowContext struct {
	WorkflowID string
	RunID      string
	TenantID   string
	ActivityID string
}

// BaseActivities is embedded by activity structs.
type BaseActivities struct {
	eventSink events.EventSink
}

// NewBaseActivities creates a BaseActivities that emits to sink.
// A nil sink disables event emission.
func NewBaseActivities(sink events.EventSink) BaseActivities {
	return BaseActivities{eventSink: sink}
}

// GetWorkflowContext extracts the execution identifiers from ctx.
// Outside an activity context, where activity.GetInfo panics, it returns
// the fallback identifiers.
func (b *BaseActivities) GetWorkflowContext(ctx context.Context) WorkflowContext {
	wfCtx := WorkflowContext{
		WorkflowID: FallbackWorkflowID,
		RunID:      FallbackWorkflowID,
		TenantID:   FallbackTenantID,
	}

	func() {
		defer func() { _ = recover() }()

		info := activity.GetInfo(ctx)
		wfCtx.WorkflowID = info.WorkflowExecution.ID
		wfCtx.RunID = info.WorkflowExecution.RunID
		wfCtx.ActivityID = info.ActivityID
	}()

	return wfCtx
}

// EmitEventSafe appends envelope to the sink, retrying once after a short
// delay. Failures are logged and never returned.
func (b *BaseActivities) EmitEventSafe(ctx context.Context, envelope events.Envelope, description string) {
	if b.eventSink == nil {
		return
	}

	var lastErr error
	for attempt := range emitAttempts {
		if attempt > 0 {
			select {
			case <-time.After(emitRetryDelay):
			case <-ctx.Done():
				SafeLogError(ctx, fmt.Sprintf("Event emission cancelled: %s", description),
					"event_type", envelope.Type)
				return
			}
		}

		if err := b.eventSink.Append(ctx, envelope); err != nil {
			lastErr = err
			continue
		}

		SafeLog(ctx, fmt.Sprintf("Event emitted: %s", description),
			"event_type", envelope.Type,
			"idempotency_key", envelope.IdempotencyKey)
		return
	}

	SafeLogError(ctx, fmt.Sprintf("Failed to emit %s after %d attempts", description, emitAttempts),
		"event_type", envelope.Type,
		"error", lastErr)
}

// RecordHeartbeat records a heartbeat when ctx is an activity context.
func (b *BaseActivities) RecordHeartbeat(ctx context.Context, details ...any) {
	RecordHeartbeat(ctx, details...)
}

// SafeLog logs at INFO through the activity logger. Outside an activity
// context the call is ignored.
func SafeLog(ctx context.Context, msg string, keyvals ...any) {
	defer func() { _ = recover() }()
	activity.GetLogger(ctx).Info(msg, keyvals...)
}

// SafeLogError is SafeLog at ERROR level.
func SafeLogError(ctx context.Context, msg string, keyvals ...any) {
	defer func() { _ = recover() }()
	activity.GetLogger(ctx).Error(msg, keyvals...)
}

// RecordHeartbeat records an activity heartbeat. Outside an activity context
// the call is ignored.
func RecordHeartbeat(ctx context.Context, details ...any) {
	defer func() { _ = recover() }()
	activity.RecordHeartbeat(ctx, details...)
}
