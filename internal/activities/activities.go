// Package activities implements the Temporal activities of the evolution
// workflow: one activity per pipeline stage.
//
// Activities wrap the same stage components the in-process orchestrator
// uses. A generation failure is a successful activity execution whose output
// reports absence, so Temporal never retries a call the pipeline treats as
// soft. Only malformed input fails an activity, and never retryably.
package activities

import (
	"context"
	"errors"
	"fmt"

	"github.com/jcolano/SDG-simplified-evolution-generation/internal/chunking"
	"github.com/jcolano/SDG-simplified-evolution-generation/internal/critic"
	"github.com/jcolano/SDG-simplified-evolution-generation/internal/domain"
	"github.com/jcolano/SDG-simplified-evolution-generation/internal/evolution"
	"github.com/jcolano/SDG-simplified-evolution-generation/internal/synthesis"
	"github.com/jcolano/SDG-simplified-evolution-generation/pkg/activity"
)

// Activities holds the stage components shared by all activity executions.
type Activities struct {
	activity.BaseActivities
	synthesizer *synthesis.Synthesizer
	engine      *evolution.Engine
	critic      *critic.Critic
	events      *EventEmitter
}

// NewActivities creates the evolution workflow activities.
func NewActivities(
	base activity.BaseActivities,
	synthesizer *synthesis.Synthesizer,
	engine *evolution.Engine,
	critic *critic.Critic,
) *Activities {
	return &Activities{
		BaseActivities: base,
		synthesizer:    synthesizer,
		engine:         engine,
		critic:         critic,
		events:         NewEventEmitter(base),
	}
}

// ChunkDocument splits the document into segments.
// A non-positive chunk size fails with a non-retryable InvalidConfiguration error.
func (a *Activities) ChunkDocument(ctx context.Context, input domain.ChunkDocumentInput) (*domain.ChunkDocumentOutput, error) {
	segments, err := chunking.Chunk(input.Document, input.ChunkSize)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidConfiguration) {
			return nil, nonRetryable(ErrorTypeInvalidConfiguration, err, "invalid chunk size")
		}
		return nil, nonRetryable(ErrorTypeValidation, err, "failed to chunk document")
	}

	activity.SafeLog(ctx, "Document chunked", "segments", len(segments), "chunk_size", input.ChunkSize)
	return &domain.ChunkDocumentOutput{Segments: segments}, nil
}

// SynthesizeQuestion derives the baseline question of one segment.
func (a *Activities) SynthesizeQuestion(ctx context.Context, input domain.SynthesizeQuestionInput) (*domain.SynthesizeQuestionOutput, error) {
	if err := input.Validate(); err != nil {
		return nil, invalidInput("SynthesizeQuestion", err)
	}

	wfCtx := a.GetWorkflowContext(ctx)
	q, ok := a.synthesizer.Synthesize(ctx, input.Segment)
	if !ok {
		activity.SafeLog(ctx, "Baseline question not generated", "segment_index", input.Segment.Index)
		q = nil
	}

	a.events.EmitSegmentSynthesized(ctx, wfCtx, input.Segment.Index, q)
	return &domain.SynthesizeQuestionOutput{Baseline: q}, nil
}

// EvolveQuestion applies every configured policy to one baseline question.
func (a *Activities) EvolveQuestion(ctx context.Context, input domain.EvolveQuestionInput) (*domain.EvolveQuestionOutput, error) {
	if err := input.Validate(); err != nil {
		return nil, invalidInput("EvolveQuestion", err)
	}

	wfCtx := a.GetWorkflowContext(ctx)
	a.RecordHeartbeat(ctx, input.Baseline.SegmentIndex)
	evo := a.engine.EvolveWithProgress(ctx, input.Baseline, func(slot domain.CandidateSlot) {
		a.RecordHeartbeat(ctx, input.Baseline.SegmentIndex, slot.Policy)
	})

	a.events.EmitQuestionEvolved(ctx, wfCtx, evo)
	return &domain.EvolveQuestionOutput{Evolution: evo}, nil
}

// JudgeCandidate returns the critic's verdict for one candidate.
func (a *Activities) JudgeCandidate(ctx context.Context, input domain.JudgeCandidateInput) (*domain.JudgeCandidateOutput, error) {
	if err := input.Validate(); err != nil {
		return nil, invalidInput("JudgeCandidate", err)
	}
	if input.Candidate.SegmentIndex != input.Baseline.SegmentIndex {
		return nil, invalidInput("JudgeCandidate", fmt.Errorf(
			"candidate segment %d does not match baseline segment %d",
			input.Candidate.SegmentIndex, input.Baseline.SegmentIndex))
	}

	wfCtx := a.GetWorkflowContext(ctx)
	v := a.critic.Judge(ctx, input.Baseline, input.Candidate)

	a.events.EmitCandidateJudged(ctx, wfCtx, v)
	return &domain.JudgeCandidateOutput{Verdict: v}, nil
}

func invalidInput(name string, err error) error {
	return nonRetryable(ErrorTypeValidation, fmt.Errorf("%w: %w", ErrActivityValidation, err), name+": invalid input")
}
