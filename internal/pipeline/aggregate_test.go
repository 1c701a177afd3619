package pipeline_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jcolano/SDG-simplified-evolution-generation/internal/domain"
	"github.com/jcolano/SDG-simplified-evolution-generation/internal/pipeline"
)

func TestAggregate(t *testing.T) {
	mk := func(seg int, p domain.Policy, text string, accepted bool) domain.JudgedSlot {
		c := domain.Candidate{SegmentIndex: seg, Policy: p, Text: text}
		v := domain.VerdictFor(c, accepted)
		return domain.JudgedSlot{Policy: p, Candidate: &c, Verdict: &v}
	}

	trace := []domain.TraceEntry{
		{
			Baseline: domain.BaselineQuestion{SegmentIndex: 0, Text: "Q1?"},
			Slots: []domain.JudgedSlot{
				mk(0, domain.PolicyComplexity, "C1?", false),
				{Policy: domain.PolicyCompression},
				mk(0, domain.PolicyRephrase, "R1?", true),
			},
		},
		{
			Baseline: domain.BaselineQuestion{SegmentIndex: 2, Text: "Q3?"},
			Slots: []domain.JudgedSlot{
				mk(2, domain.PolicyComplexity, "C3?", false),
			},
		},
		{
			Baseline: domain.BaselineQuestion{SegmentIndex: 3, Text: "Q4?"},
			Slots: []domain.JudgedSlot{
				mk(3, domain.PolicyComplexity, "C4?", true),
				mk(3, domain.PolicyCompression, "Co4?", true),
			},
		},
	}

	result := pipeline.Aggregate("run", 4, trace)

	assert.Equal(t, []string{"R1?", "C4?", "Co4?"}, result.Accepted)
	assert.Equal(t, domain.RunStats{Segments: 4, Baselines: 3, Candidates: 5, Accepted: 3}, result.Stats)
	assert.Equal(t, domain.StageDone, result.Stage)
}

func TestAggregate_Empty(t *testing.T) {
	result := pipeline.Aggregate("run", 0, nil)
	assert.NotNil(t, result.Accepted)
	assert.Empty(t, result.Accepted)
}
