package activities_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/testsuite"

	"github.com/jcolano/SDG-simplified-evolution-generation/internal/activities"
	"github.com/jcolano/SDG-simplified-evolution-generation/internal/critic"
	"github.com/jcolano/SDG-simplified-evolution-generation/internal/domain"
	"github.com/jcolano/SDG-simplified-evolution-generation/internal/evolution"
	"github.com/jcolano/SDG-simplified-evolution-generation/internal/llm"
	"github.com/jcolano/SDG-simplified-evolution-generation/internal/synthesis"
	pkgactivity "github.com/jcolano/SDG-simplified-evolution-generation/pkg/activity"
	"github.com/jcolano/SDG-simplified-evolution-generation/pkg/events"
)

func newActivities(gen llm.Generator, sink events.EventSink) *activities.Activities {
	return activities.NewActivities(
		pkgactivity.NewBaseActivities(sink),
		synthesis.New(gen),
		evolution.New(gen),
		critic.New(gen),
	)
}

func fixed(text string, err error) llm.GeneratorFunc {
	return func(context.Context, string) (string, error) { return text, err }
}

// TestRegister verifies that each activity is registered under its method
// name and can be executed by that name.
func TestRegister(t *testing.T) {
	var suite testsuite.WorkflowTestSuite
	env := suite.NewTestActivityEnvironment()
	acts := newActivities(fixed("", nil), nil)

	require.NotPanics(t, func() { activities.Register(env, acts) })

	val, err := env.ExecuteActivity("ChunkDocument", domain.ChunkDocumentInput{Document: "a b c", ChunkSize: 2})
	require.NoError(t, err)

	var out domain.ChunkDocumentOutput
	require.NoError(t, val.Get(&out))
	assert.Len(t, out.Segments, 2)
}

func TestChunkDocument(t *testing.T) {
	var suite testsuite.WorkflowTestSuite
	env := suite.NewTestActivityEnvironment()
	acts := newActivities(fixed("", nil), nil)
	activities.Register(env, acts)

	t.Run("segments", func(t *testing.T) {
		val, err := env.ExecuteActivity(acts.ChunkDocument,
			domain.ChunkDocumentInput{Document: "Alpha beta gamma delta", ChunkSize: 2})
		require.NoError(t, err)

		var out domain.ChunkDocumentOutput
		require.NoError(t, val.Get(&out))
		require.Len(t, out.Segments, 2)
		assert.Equal(t, "gamma delta", out.Segments[1].Text)
	})

	t.Run("invalid chunk size", func(t *testing.T) {
		_, err := env.ExecuteActivity(acts.ChunkDocument, domain.ChunkDocumentInput{Document: "a", ChunkSize: 0})
		require.Error(t, err)

		var appErr *temporal.ApplicationError
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, activities.ErrorTypeInvalidConfiguration, appErr.Type())
		assert.True(t, appErr.NonRetryable())
	})
}

func TestSynthesizeQuestion(t *testing.T) {
	tests := []struct {
		name string
		gen  llm.GeneratorFunc
		want *domain.BaselineQuestion
	}{
		{"produced", fixed(" Q1? ", nil), &domain.BaselineQuestion{SegmentIndex: 4, Text: "Q1?"}},
		{"generation failure is absence", fixed("", errors.New("down")), nil},
		{"blank is absence", fixed("  ", nil), nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var suite testsuite.WorkflowTestSuite
			env := suite.NewTestActivityEnvironment()
			sink := events.NewMemorySink()
			acts := newActivities(tt.gen, sink)
			activities.Register(env, acts)

			val, err := env.ExecuteActivity(acts.SynthesizeQuestion,
				domain.SynthesizeQuestionInput{Segment: domain.Segment{Index: 4, Text: "Alpha beta"}})
			require.NoError(t, err)

			var out domain.SynthesizeQuestionOutput
			require.NoError(t, val.Get(&out))
			assert.Equal(t, tt.want, out.Baseline)

			emitted := sink.ByType(domain.EventSegmentSynthesized)
			require.Len(t, emitted, 1)
			assert.Equal(t, "synthesis-activity", emitted[0].Source)
		})
	}
}

func TestSynthesizeQuestion_InvalidInput(t *testing.T) {
	var suite testsuite.WorkflowTestSuite
	env := suite.NewTestActivityEnvironment()
	acts := newActivities(fixed("Q?", nil), nil)
	activities.Register(env, acts)

	_, err := env.ExecuteActivity(acts.SynthesizeQuestion, domain.SynthesizeQuestionInput{})

	var appErr *temporal.ApplicationError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, activities.ErrorTypeValidation, appErr.Type())
	assert.True(t, appErr.NonRetryable())
}

func TestEvolveQuestion(t *testing.T) {
	gen := llm.GeneratorFunc(func(_ context.Context, p string) (string, error) {
		if strings.Contains(p, "concisely") {
			return "", errors.New("compression failed")
		}
		return "evolved?", nil
	})

	var suite testsuite.WorkflowTestSuite
	env := suite.NewTestActivityEnvironment()
	sink := events.NewMemorySink()
	acts := newActivities(gen, sink)
	activities.Register(env, acts)

	val, err := env.ExecuteActivity(acts.EvolveQuestion,
		domain.EvolveQuestionInput{Baseline: domain.BaselineQuestion{SegmentIndex: 1, Text: "Q2?"}})
	require.NoError(t, err)

	var out domain.EvolveQuestionOutput
	require.NoError(t, val.Get(&out))
	require.Len(t, out.Evolution.Slots, 3)
	assert.True(t, out.Evolution.Slots[0].Present())
	assert.False(t, out.Evolution.Slots[1].Present())
	assert.True(t, out.Evolution.Slots[2].Present())
	assert.Equal(t, 1, out.Evolution.Slots[2].Candidate.SegmentIndex)

	emitted := sink.ByType(domain.EventQuestionEvolved)
	require.Len(t, emitted, 1)
	assert.Contains(t, string(emitted[0].Payload), `"missing":["compression"]`)
}

func TestJudgeCandidate(t *testing.T) {
	baseline := domain.BaselineQuestion{SegmentIndex: 0, Text: "Q1?"}
	candidate := domain.Candidate{SegmentIndex: 0, Policy: domain.PolicyRephrase, Text: "R1?"}

	tests := []struct {
		name string
		gen  llm.GeneratorFunc
		want bool
	}{
		{"accepted", fixed("VALID", nil), true},
		{"rejected", fixed("INVALID", nil), false},
		{"near miss rejected", fixed("Valid.", nil), false},
		{"failure rejected", fixed("", errors.New("x")), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var suite testsuite.WorkflowTestSuite
			env := suite.NewTestActivityEnvironment()
			acts := newActivities(tt.gen, nil)
			activities.Register(env, acts)

			val, err := env.ExecuteActivity(acts.JudgeCandidate,
				domain.JudgeCandidateInput{Baseline: baseline, Candidate: candidate})
			require.NoError(t, err)

			var out domain.JudgeCandidateOutput
			require.NoError(t, val.Get(&out))
			assert.Equal(t, domain.VerdictFor(candidate, tt.want), out.Verdict)
		})
	}

	t.Run("mismatched provenance", func(t *testing.T) {
		var suite testsuite.WorkflowTestSuite
		env := suite.NewTestActivityEnvironment()
		acts := newActivities(fixed("VALID", nil), nil)
		activities.Register(env, acts)

		other := candidate
		other.SegmentIndex = 3
		_, err := env.ExecuteActivity(acts.JudgeCandidate,
			domain.JudgeCandidateInput{Baseline: baseline, Candidate: other})

		var appErr *temporal.ApplicationError
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, activities.ErrorTypeValidation, appErr.Type())
	})
}
