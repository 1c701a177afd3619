package pipeline

import (
	"context"
	"log/slog"

	"github.com/jcolano/SDG-simplified-evolution-generation/internal/domain"
	"github.com/jcolano/SDG-simplified-evolution-generation/pkg/events"
)

const eventSource = "orchestrator"

// emitter writes pipeline events on a best-effort basis.
type emitter struct {
	sink   events.EventSink
	logger *slog.Logger
}

func (e *emitter) segmentSynthesized(ctx context.Context, runID string, index int, q *domain.BaselineQuestion) {
	payload := domain.SegmentSynthesizedPayload{SegmentIndex: index, Produced: q != nil}
	if q != nil {
		payload.Question = q.Text
	}
	e.emit(ctx, domain.EventSegmentSynthesized, domain.SegmentIdempotencyKey(runID, index), runID, payload)
}

func (e *emitter) questionEvolved(ctx context.Context, runID string, evo domain.Evolution) {
	e.emit(ctx, domain.EventQuestionEvolved,
		domain.EvolutionIdempotencyKey(runID, evo.Baseline.SegmentIndex), runID, domain.NewQuestionEvolvedPayload(evo))
}

func (e *emitter) candidateJudged(ctx context.Context, runID string, v domain.Verdict) {
	c := domain.Candidate{SegmentIndex: v.SegmentIndex, Policy: v.Policy}
	payload := domain.CandidateJudgedPayload{SegmentIndex: v.SegmentIndex, Policy: v.Policy, Accepted: v.Accepted}
	e.emit(ctx, domain.EventCandidateJudged, domain.VerdictIdempotencyKey(runID, c), runID, payload)
}

func (e *emitter) runCompleted(ctx context.Context, runID string, result *domain.RunResult) {
	payload := domain.RunCompletedPayload{Stats: result.Stats, Accepted: result.Accepted}
	e.emit(ctx, domain.EventRunCompleted, domain.RunCompletedIdempotencyKey(runID), runID, payload)
}

func (e *emitter) emit(ctx context.Context, eventType, key, runID string, payload any) {
	env, err := events.NewEnvelope(eventType, eventSource, key, runID, runID, payload)
	if err != nil {
		e.logger.WarnContext(ctx, "failed to build event", "event_type", eventType, "error", err)
		return
	}
	if err := e.sink.Append(ctx, env); err != nil {
		e.logger.WarnContext(ctx, "failed to emit event", "event_type", eventType, "error", err)
	}
}
