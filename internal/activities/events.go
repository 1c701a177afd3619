package activities

import (
	"context"

	"github.com/jcolano/SDG-simplified-evolution-generation/internal/domain"
	"github.com/jcolano/SDG-simplified-evolution-generation/pkg/activity"
	"github.com/jcolano/SDG-simplified-evolution-generation/pkg/events"
)

// EventEmitter builds pipeline events from the workflow context of the
// running activity. Idempotency keys derive from the workflow ID so that
// activity retries and workflow replays do not duplicate events.
type EventEmitter struct {
	base activity.BaseActivities
}

// NewEventEmitter creates an EventEmitter on top of base.
func NewEventEmitter(base activity.BaseActivities) *EventEmitter {
	return &EventEmitter{base: base}
}

// EmitSegmentSynthesized records whether a segment produced a baseline.
func (e *EventEmitter) EmitSegmentSynthesized(ctx context.Context, wfCtx activity.WorkflowContext, index int, q *domain.BaselineQuestion) {
	payload := domain.SegmentSynthesizedPayload{SegmentIndex: index, Produced: q != nil}
	if q != nil {
		payload.Question = q.Text
	}
	e.emit(ctx, wfCtx, domain.EventSegmentSynthesized, "synthesis-activity",
		domain.SegmentIdempotencyKey(wfCtx.WorkflowID, index), payload)
}

// EmitQuestionEvolved records which policies produced a candidate.
func (e *EventEmitter) EmitQuestionEvolved(ctx context.Context, wfCtx activity.WorkflowContext, evo domain.Evolution) {
	e.emit(ctx, wfCtx, domain.EventQuestionEvolved, "evolution-activity",
		domain.EvolutionIdempotencyKey(wfCtx.WorkflowID, evo.Baseline.SegmentIndex),
		domain.NewQuestionEvolvedPayload(evo))
}

// EmitCandidateJudged records a verdict.
func (e *EventEmitter) EmitCandidateJudged(ctx context.Context, wfCtx activity.WorkflowContext, v domain.Verdict) {
	c := domain.Candidate{SegmentIndex: v.SegmentIndex, Policy: v.Policy}
	payload := domain.CandidateJudgedPayload{SegmentIndex: v.SegmentIndex, Policy: v.Policy, Accepted: v.Accepted}
	e.emit(ctx, wfCtx, domain.EventCandidateJudged, "critic-activity",
		domain.VerdictIdempotencyKey(wfCtx.WorkflowID, c), payload)
}

func (e *EventEmitter) emit(ctx context.Context, wfCtx activity.WorkflowContext, eventType, source, key string, payload any) {
	env, err := events.NewEnvelope(eventType, source, key, wfCtx.WorkflowID, wfCtx.RunID, payload)
	if err != nil {
		activity.SafeLogError(ctx, "Failed to build event", "event_type", eventType, "error", err)
		return
	}
	env.TenantID = wfCtx.TenantID
	e.base.EmitEventSafe(ctx, env, eventType)
}
