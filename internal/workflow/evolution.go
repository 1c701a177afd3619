package workflow

import (
	"errors"
	"time"

	"go.temporal.io/sdk/log"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/jcolano/SDG-simplified-evolution-generation/internal/activities"
	"github.com/jcolano/SDG-simplified-evolution-generation/internal/domain"
	"github.com/jcolano/SDG-simplified-evolution-generation/internal/pipeline"
)

// TaskQueue is the default task queue of the evolution worker.
const TaskQueue = "sdg-evolution"

// Activity timeouts. A single activity makes at most one generator call per
// policy, each bounded by the client's own timeout and retries.
// EvolveQuestion heartbeats after every policy, so its heartbeat timeout must
// exceed one generator call including client retries.
const (
	activityStartToClose = 5 * time.Minute
	evolveHeartbeat      = 2 * time.Minute
	chunkStartToClose    = 30 * time.Second
)

// EvolutionWorkflow runs chunking, synthesis, evolution and judgment as
// activities and aggregates the accepted candidates.
// Segments, baselines and candidates are dispatched in parallel; results are
// collected in segment and policy order so the output is deterministic.
// A non-positive chunk size fails with a non-retryable InvalidConfiguration
// error before any activity is scheduled.
//
// A synthesis, evolution or judgment activity that still fails after its
// retries only shrinks its stage: the segment or baseline is dropped and a
// failed judgment is a rejection. Validation errors, configuration errors and
// cancellation fail the run.
func EvolutionWorkflow(ctx workflow.Context, req domain.RunRequest) (*domain.RunResult, error) {
	const currentVersion = 1
	_ = workflow.GetVersion(ctx, "evolution.v", workflow.DefaultVersion, currentVersion)

	if err := req.Validate(); err != nil {
		return nil, temporal.NewNonRetryableApplicationError(
			"invalid run request",
			activities.ErrorTypeInvalidConfiguration,
			err,
		)
	}

	logger := workflow.GetLogger(ctx)
	runID := workflow.GetInfo(ctx).WorkflowExecution.ID

	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: activityStartToClose,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:        time.Second,
			BackoffCoefficient:     2.0,
			MaximumInterval:        time.Minute,
			MaximumAttempts:        3,
			NonRetryableErrorTypes: []string{activities.ErrorTypeValidation, activities.ErrorTypeInvalidConfiguration},
		},
	})

	var a *activities.Activities

	var chunked domain.ChunkDocumentOutput
	chunkCtx := workflow.WithStartToCloseTimeout(ctx, chunkStartToClose)
	if err := workflow.ExecuteActivity(chunkCtx, a.ChunkDocument,
		domain.ChunkDocumentInput(req)).Get(ctx, &chunked); err != nil {
		return nil, err
	}
	logger.Info("Stage completed", "stage", domain.StageChunked, "segments", len(chunked.Segments))

	baselines, err := synthesize(ctx, logger, a, chunked.Segments)
	if err != nil {
		return nil, err
	}
	logger.Info("Stage completed", "stage", domain.StageSynthesized, "baselines", len(baselines))

	evolutions, err := evolve(ctx, logger, a, baselines)
	if err != nil {
		return nil, err
	}
	logger.Info("Stage completed", "stage", domain.StageEvolved, "baselines", len(evolutions))

	trace, err := judge(ctx, logger, a, evolutions)
	if err != nil {
		return nil, err
	}
	logger.Info("Stage completed", "stage", domain.StageJudged)

	result := pipeline.Aggregate(runID, len(chunked.Segments), trace)
	logger.Info("Stage completed", "stage", result.Stage, "accepted", len(result.Accepted))
	return result, nil
}

func synthesize(ctx workflow.Context, logger log.Logger, a *activities.Activities, segments []domain.Segment) ([]domain.BaselineQuestion, error) {
	futures := make([]workflow.Future, len(segments))
	for i, seg := range segments {
		futures[i] = workflow.ExecuteActivity(ctx, a.SynthesizeQuestion, domain.SynthesizeQuestionInput{Segment: seg})
	}

	baselines := make([]domain.BaselineQuestion, 0, len(segments))
	for i, f := range futures {
		var out domain.SynthesizeQuestionOutput
		if err := f.Get(ctx, &out); err != nil {
			if isFatal(err) {
				return nil, err
			}
			logger.Warn("Synthesis failed, segment dropped", "segment_index", segments[i].Index, "error", err)
			continue
		}
		if out.Baseline != nil {
			baselines = append(baselines, *out.Baseline)
		}
	}
	return baselines, nil
}

func evolve(ctx workflow.Context, logger log.Logger, a *activities.Activities, baselines []domain.BaselineQuestion) ([]domain.Evolution, error) {
	ctx = workflow.WithHeartbeatTimeout(ctx, evolveHeartbeat)
	futures := make([]workflow.Future, len(baselines))
	for i, b := range baselines {
		futures[i] = workflow.ExecuteActivity(ctx, a.EvolveQuestion, domain.EvolveQuestionInput{Baseline: b})
	}

	evolutions := make([]domain.Evolution, 0, len(baselines))
	for i, f := range futures {
		var out domain.EvolveQuestionOutput
		if err := f.Get(ctx, &out); err != nil {
			if isFatal(err) {
				return nil, err
			}
			logger.Warn("Evolution failed, baseline dropped", "segment_index", baselines[i].SegmentIndex, "error", err)
			continue
		}
		evolutions = append(evolutions, out.Evolution)
	}
	return evolutions, nil
}

func judge(ctx workflow.Context, logger log.Logger, a *activities.Activities, evolutions []domain.Evolution) ([]domain.TraceEntry, error) {
	type pending struct {
		entry, slot int
		future      workflow.Future
	}

	trace := make([]domain.TraceEntry, len(evolutions))
	var jobs []pending
	for i, evo := range evolutions {
		trace[i] = domain.TraceEntry{Baseline: evo.Baseline, Slots: make([]domain.JudgedSlot, len(evo.Slots))}
		for j, slot := range evo.Slots {
			trace[i].Slots[j] = domain.JudgedSlot{Policy: slot.Policy, Candidate: slot.Candidate}
			if slot.Candidate == nil {
				continue
			}
			f := workflow.ExecuteActivity(ctx, a.JudgeCandidate,
				domain.JudgeCandidateInput{Baseline: evo.Baseline, Candidate: *slot.Candidate})
			jobs = append(jobs, pending{entry: i, slot: j, future: f})
		}
	}

	for _, job := range jobs {
		slot := &trace[job.entry].Slots[job.slot]
		var out domain.JudgeCandidateOutput
		if err := job.future.Get(ctx, &out); err != nil {
			if isFatal(err) {
				return nil, err
			}
			logger.Warn("Judgment failed, candidate rejected",
				"segment_index", slot.Candidate.SegmentIndex, "policy", slot.Policy, "error", err)
			out.Verdict = domain.VerdictFor(*slot.Candidate, false)
		}
		v := out.Verdict
		slot.Verdict = &v
	}
	return trace, nil
}

// isFatal reports whether an activity error must fail the run rather than
// shrink the stage output.
func isFatal(err error) bool {
	if temporal.IsCanceledError(err) {
		return true
	}
	var appErr *temporal.ApplicationError
	if errors.As(err, &appErr) {
		switch appErr.Type() {
		case activities.ErrorTypeValidation, activities.ErrorTypeInvalidConfiguration:
			return true
		}
	}
	return false
}
