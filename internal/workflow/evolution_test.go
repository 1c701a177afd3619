package workflow_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/converter"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/testsuite"

	"github.com/jcolano/SDG-simplified-evolution-generation/internal/activities"
	"github.com/jcolano/SDG-simplified-evolution-generation/internal/critic"
	"github.com/jcolano/SDG-simplified-evolution-generation/internal/domain"
	"github.com/jcolano/SDG-simplified-evolution-generation/internal/evolution"
	"github.com/jcolano/SDG-simplified-evolution-generation/internal/llm"
	"github.com/jcolano/SDG-simplified-evolution-generation/internal/pipeline"
	"github.com/jcolano/SDG-simplified-evolution-generation/internal/prompt"
	"github.com/jcolano/SDG-simplified-evolution-generation/internal/synthesis"
	"github.com/jcolano/SDG-simplified-evolution-generation/internal/workflow"
	pkgactivity "github.com/jcolano/SDG-simplified-evolution-generation/pkg/activity"
)

// fixtureGen answers tagged prompts:
// BASELINE::<segment> → Q<first word>?, POLICY::<question> → <policy prefix><question body>?,
// JUDGE::<candidate> → VALID for Co* and R* candidates.
var fixtureGen = llm.GeneratorFunc(func(_ context.Context, p string) (string, error) {
	category, body, _ := strings.Cut(p, "::")
	n := strings.TrimSuffix(strings.TrimPrefix(body, "Q"), "?")
	switch category {
	case "BASELINE":
		switch body {
		case "Alpha beta":
			return "Q1?", nil
		case "gamma delta":
			return "Q2?", nil
		}
		return "", errors.New("unknown segment")
	case "COMPLEXITY":
		return "C" + n + "?", nil
	case "COMPRESSION":
		return "Co" + n + "?", nil
	case "REPHRASE":
		return "R" + n + "?", nil
	case "JUDGE":
		if strings.HasPrefix(body, "Co") || strings.HasPrefix(body, "R") {
			return "VALID", nil
		}
		return "INVALID", nil
	}
	return "", errors.New("unexpected prompt")
})

type fixture struct {
	table     *evolution.PolicyTable
	synthesis *prompt.Template
	critic    *prompt.Template
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	table, err := evolution.ParsePolicyTable([]evolution.PolicyDef{
		{Name: "complexity", Template: "COMPLEXITY::{{.Question}}"},
		{Name: "compression", Template: "COMPRESSION::{{.Question}}"},
		{Name: "rephrase", Template: "REPHRASE::{{.Question}}"},
	})
	require.NoError(t, err)
	return fixture{
		table:     table,
		synthesis: prompt.MustParse("synthesis", "BASELINE::{{.Segment}}", prompt.SynthesisData{}),
		critic:    prompt.MustParse("critic", "JUDGE::{{.Candidate}}", prompt.JudgmentData{}),
	}
}

func (f fixture) activities(gen llm.Generator) *activities.Activities {
	return activities.NewActivities(
		pkgactivity.NewBaseActivities(nil),
		synthesis.New(gen, synthesis.WithTemplate(f.synthesis)),
		evolution.New(gen, evolution.WithPolicyTable(f.table)),
		critic.New(gen, critic.WithTemplate(f.critic)),
	)
}

func TestEvolutionWorkflow(t *testing.T) {
	var suite testsuite.WorkflowTestSuite
	f := newFixture(t)

	t.Run("end to end", func(t *testing.T) {
		env := suite.NewTestWorkflowEnvironment()
		activities.Register(env, f.activities(fixtureGen))

		env.ExecuteWorkflow(workflow.EvolutionWorkflow, domain.RunRequest{Document: "Alpha beta gamma delta", ChunkSize: 2})

		require.True(t, env.IsWorkflowCompleted())
		require.NoError(t, env.GetWorkflowError())

		var result domain.RunResult
		require.NoError(t, env.GetWorkflowResult(&result))
		assert.Equal(t, []string{"Co1?", "R1?", "Co2?", "R2?"}, result.Accepted)
		assert.Equal(t, domain.StageDone, result.Stage)
		assert.Equal(t, domain.RunStats{Segments: 2, Baselines: 2, Candidates: 6, Accepted: 4}, result.Stats)
	})

	t.Run("matches in-process orchestrator", func(t *testing.T) {
		env := suite.NewTestWorkflowEnvironment()
		activities.Register(env, f.activities(fixtureGen))
		env.ExecuteWorkflow(workflow.EvolutionWorkflow, domain.RunRequest{Document: "Alpha beta gamma delta", ChunkSize: 2})

		var fromWorkflow domain.RunResult
		require.NoError(t, env.GetWorkflowResult(&fromWorkflow))

		orch := pipeline.New(fixtureGen,
			pipeline.WithPolicyTable(f.table),
			pipeline.WithSynthesisTemplate(f.synthesis),
			pipeline.WithCriticTemplate(f.critic))
		fromOrchestrator, err := orch.Run(context.Background(), "Alpha beta gamma delta", 2)
		require.NoError(t, err)

		assert.Equal(t, fromOrchestrator.Accepted, fromWorkflow.Accepted)
		assert.Equal(t, fromOrchestrator.Trace, fromWorkflow.Trace)
	})

	t.Run("invalid configuration schedules no activity", func(t *testing.T) {
		env := suite.NewTestWorkflowEnvironment()
		calls := 0
		gen := llm.GeneratorFunc(func(ctx context.Context, p string) (string, error) {
			calls++
			return fixtureGen(ctx, p)
		})
		activities.Register(env, f.activities(gen))

		env.ExecuteWorkflow(workflow.EvolutionWorkflow, domain.RunRequest{Document: "Alpha beta", ChunkSize: 0})

		require.True(t, env.IsWorkflowCompleted())
		err := env.GetWorkflowError()
		require.Error(t, err)

		var appErr *temporal.ApplicationError
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, activities.ErrorTypeInvalidConfiguration, appErr.Type())
		assert.True(t, appErr.NonRetryable())
		assert.Zero(t, calls)
	})

	t.Run("empty document", func(t *testing.T) {
		env := suite.NewTestWorkflowEnvironment()
		activities.Register(env, f.activities(fixtureGen))

		env.ExecuteWorkflow(workflow.EvolutionWorkflow, domain.RunRequest{Document: "", ChunkSize: 5})

		require.NoError(t, env.GetWorkflowError())
		var result domain.RunResult
		require.NoError(t, env.GetWorkflowResult(&result))
		assert.Empty(t, result.Accepted)
		assert.Zero(t, result.Stats.Segments)
	})
}

// TestEvolutionWorkflow_MockedActivities drives the workflow with mocked
// activity results: one segment without a baseline and one failed policy.
func TestEvolutionWorkflow_MockedActivities(t *testing.T) {
	var suite testsuite.WorkflowTestSuite
	env := suite.NewTestWorkflowEnvironment()
	defer env.AssertExpectations(t)

	var a *activities.Activities
	activities.Register(env, a)

	segments := []domain.Segment{{Index: 0, Text: "a b"}, {Index: 1, Text: "c d"}}
	baseline := domain.BaselineQuestion{SegmentIndex: 1, Text: "Q2?"}
	rephrase := domain.Candidate{SegmentIndex: 1, Policy: domain.PolicyRephrase, Text: "R2?"}

	env.OnActivity(a.ChunkDocument, mock.Anything, mock.Anything).
		Return(&domain.ChunkDocumentOutput{Segments: segments}, nil).Once()
	env.OnActivity(a.SynthesizeQuestion, mock.Anything, domain.SynthesizeQuestionInput{Segment: segments[0]}).
		Return(&domain.SynthesizeQuestionOutput{}, nil).Once()
	env.OnActivity(a.SynthesizeQuestion, mock.Anything, domain.SynthesizeQuestionInput{Segment: segments[1]}).
		Return(&domain.SynthesizeQuestionOutput{Baseline: &baseline}, nil).Once()
	env.OnActivity(a.EvolveQuestion, mock.Anything, mock.Anything).
		Return(&domain.EvolveQuestionOutput{Evolution: domain.Evolution{
			Baseline: baseline,
			Slots: []domain.CandidateSlot{
				{Policy: domain.PolicyComplexity},
				{Policy: domain.PolicyRephrase, Candidate: &rephrase},
			},
		}}, nil).Once()
	env.OnActivity(a.JudgeCandidate, mock.Anything, domain.JudgeCandidateInput{Baseline: baseline, Candidate: rephrase}).
		Return(&domain.JudgeCandidateOutput{Verdict: domain.VerdictFor(rephrase, true)}, nil).Once()

	env.ExecuteWorkflow(workflow.EvolutionWorkflow, domain.RunRequest{Document: "a b c d", ChunkSize: 2})

	require.NoError(t, env.GetWorkflowError())
	var result domain.RunResult
	require.NoError(t, env.GetWorkflowResult(&result))
	assert.Equal(t, []string{"R2?"}, result.Accepted)
	require.Len(t, result.Trace, 1)
	assert.Nil(t, result.Trace[0].Slots[0].Verdict)
	assert.Equal(t, domain.RunStats{Segments: 2, Baselines: 1, Candidates: 1, Accepted: 1}, result.Stats)
}

func TestEvolutionWorkflow_ActivityFailure(t *testing.T) {
	var suite testsuite.WorkflowTestSuite
	env := suite.NewTestWorkflowEnvironment()

	var a *activities.Activities
	activities.Register(env, a)
	env.OnActivity(a.ChunkDocument, mock.Anything, mock.Anything).
		Return(nil, temporal.NewNonRetryableApplicationError("bad", activities.ErrorTypeValidation, nil))

	env.ExecuteWorkflow(workflow.EvolutionWorkflow, domain.RunRequest{Document: "a", ChunkSize: 1})

	require.True(t, env.IsWorkflowCompleted())
	var appErr *temporal.ApplicationError
	require.ErrorAs(t, env.GetWorkflowError(), &appErr)
	assert.Equal(t, activities.ErrorTypeValidation, appErr.Type())
}

func TestEvolutionWorkflow_Deterministic(t *testing.T) {
	var suite testsuite.WorkflowTestSuite
	f := newFixture(t)

	var results [][]string
	for range 3 {
		env := suite.NewTestWorkflowEnvironment()
		activities.Register(env, f.activities(fixtureGen))
		env.ExecuteWorkflow(workflow.EvolutionWorkflow, domain.RunRequest{Document: "Alpha beta gamma delta", ChunkSize: 2})

		var result domain.RunResult
		require.NoError(t, env.GetWorkflowResult(&result))
		results = append(results, result.Accepted)
	}

	assert.Equal(t, results[0], results[1])
	assert.Equal(t, results[0], results[2])
}

// TestEvolutionWorkflow_ActivityFailuresShrinkOutput makes one activity fail
// past its retries and checks that only that unit is lost.
func TestEvolutionWorkflow_ActivityFailuresShrinkOutput(t *testing.T) {
	f := newFixture(t)
	errHung := errors.New("provider hung")

	failJudgment := func(text string) func(*testsuite.TestWorkflowEnvironment, *activities.Activities) {
		return func(env *testsuite.TestWorkflowEnvironment, acts *activities.Activities) {
			env.OnActivity(acts.JudgeCandidate, mock.Anything, mock.Anything).Return(
				func(ctx context.Context, in domain.JudgeCandidateInput) (*domain.JudgeCandidateOutput, error) {
					if in.Candidate.Text == text {
						return nil, errHung
					}
					return acts.JudgeCandidate(ctx, in)
				})
		}
	}

	tests := []struct {
		name      string
		setup     func(*testsuite.TestWorkflowEnvironment, *activities.Activities)
		want      []string
		wantStats domain.RunStats
	}{
		{
			name:      "judgment of a rejected candidate",
			setup:     failJudgment("C1?"),
			want:      []string{"Co1?", "R1?", "Co2?", "R2?"},
			wantStats: domain.RunStats{Segments: 2, Baselines: 2, Candidates: 6, Accepted: 4},
		},
		{
			name:      "judgment of an acceptable candidate is a rejection",
			setup:     failJudgment("Co1?"),
			want:      []string{"R1?", "Co2?", "R2?"},
			wantStats: domain.RunStats{Segments: 2, Baselines: 2, Candidates: 6, Accepted: 3},
		},
		{
			name: "synthesis drops the segment",
			setup: func(env *testsuite.TestWorkflowEnvironment, acts *activities.Activities) {
				env.OnActivity(acts.SynthesizeQuestion, mock.Anything, mock.Anything).Return(
					func(ctx context.Context, in domain.SynthesizeQuestionInput) (*domain.SynthesizeQuestionOutput, error) {
						if in.Segment.Index == 0 {
							return nil, errHung
						}
						return acts.SynthesizeQuestion(ctx, in)
					})
			},
			want:      []string{"Co2?", "R2?"},
			wantStats: domain.RunStats{Segments: 2, Baselines: 1, Candidates: 3, Accepted: 2},
		},
		{
			name: "evolution drops the baseline",
			setup: func(env *testsuite.TestWorkflowEnvironment, acts *activities.Activities) {
				env.OnActivity(acts.EvolveQuestion, mock.Anything, mock.Anything).Return(
					func(ctx context.Context, in domain.EvolveQuestionInput) (*domain.EvolveQuestionOutput, error) {
						if in.Baseline.Text == "Q2?" {
							return nil, errHung
						}
						return acts.EvolveQuestion(ctx, in)
					})
			},
			want:      []string{"Co1?", "R1?"},
			wantStats: domain.RunStats{Segments: 2, Baselines: 1, Candidates: 3, Accepted: 2},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var suite testsuite.WorkflowTestSuite
			env := suite.NewTestWorkflowEnvironment()
			acts := f.activities(fixtureGen)
			activities.Register(env, acts)
			tt.setup(env, acts)

			env.ExecuteWorkflow(workflow.EvolutionWorkflow, domain.RunRequest{Document: "Alpha beta gamma delta", ChunkSize: 2})

			require.True(t, env.IsWorkflowCompleted())
			require.NoError(t, env.GetWorkflowError())
			var result domain.RunResult
			require.NoError(t, env.GetWorkflowResult(&result))
			assert.Equal(t, tt.want, result.Accepted)
			assert.Equal(t, tt.wantStats, result.Stats)
			for _, entry := range result.Trace {
				for _, slot := range entry.Slots {
					assert.Equal(t, slot.Candidate == nil, slot.Verdict == nil)
				}
			}
		})
	}
}

// TestEvolutionWorkflow_JudgmentValidationFails checks that malformed
// judgment input still fails the run.
func TestEvolutionWorkflow_JudgmentValidationFails(t *testing.T) {
	f := newFixture(t)
	var suite testsuite.WorkflowTestSuite
	env := suite.NewTestWorkflowEnvironment()
	acts := f.activities(fixtureGen)
	activities.Register(env, acts)
	env.OnActivity(acts.JudgeCandidate, mock.Anything, mock.Anything).
		Return(nil, temporal.NewNonRetryableApplicationError("bad", activities.ErrorTypeValidation, nil))

	env.ExecuteWorkflow(workflow.EvolutionWorkflow, domain.RunRequest{Document: "Alpha beta", ChunkSize: 2})

	require.True(t, env.IsWorkflowCompleted())
	var appErr *temporal.ApplicationError
	require.ErrorAs(t, env.GetWorkflowError(), &appErr)
	assert.Equal(t, activities.ErrorTypeValidation, appErr.Type())
}

// TestEvolutionWorkflow_HeartbeatTimeout checks that only the heartbeating
// evolution activity runs with a heartbeat timeout.
func TestEvolutionWorkflow_HeartbeatTimeout(t *testing.T) {
	f := newFixture(t)
	var suite testsuite.WorkflowTestSuite
	env := suite.NewTestWorkflowEnvironment()
	activities.Register(env, f.activities(fixtureGen))

	var (
		mu       sync.Mutex
		timeouts = map[string]time.Duration{}
	)
	env.SetOnActivityStartedListener(func(info *activity.Info, _ context.Context, _ converter.EncodedValues) {
		mu.Lock()
		defer mu.Unlock()
		timeouts[info.ActivityType.Name] = info.HeartbeatTimeout
	})

	env.ExecuteWorkflow(workflow.EvolutionWorkflow, domain.RunRequest{Document: "Alpha beta", ChunkSize: 2})
	require.NoError(t, env.GetWorkflowError())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 2*time.Minute, timeouts["EvolveQuestion"])
	assert.Zero(t, timeouts["SynthesizeQuestion"])
	assert.Zero(t, timeouts["JudgeCandidate"])
}
