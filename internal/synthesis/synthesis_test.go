package synthesis_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jcolano/SDG-simplified-evolution-generation/internal/domain"
	"github.com/jcolano/SDG-simplified-evolution-generation/internal/llm"
	"github.com/jcolano/SDG-simplified-evolution-generation/internal/llm/transport"
	"github.com/jcolano/SDG-simplified-evolution-generation/internal/prompt"
	"github.com/jcolano/SDG-simplified-evolution-generation/internal/synthesis"
)

func TestSynthesize(t *testing.T) {
	seg := domain.Segment{Index: 3, Text: "Alpha beta"}

	tests := []struct {
		name   string
		gen    llm.GeneratorFunc
		want   string
		wantOK bool
	}{
		{"trimmed response", func(context.Context, string) (string, error) { return "  Q1?\n", nil }, "Q1?", true},
		{"error", func(context.Context, string) (string, error) { return "", errors.New("timeout") }, "", false},
		{"empty", func(context.Context, string) (string, error) { return "", nil }, "", false},
		{"whitespace", func(context.Context, string) (string, error) { return "\n ", nil }, "", false},
		{"panic", func(context.Context, string) (string, error) { panic("provider crashed") }, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := synthesis.New(tt.gen)

			q, ok := s.Synthesize(context.Background(), seg)

			assert.Equal(t, tt.wantOK, ok)
			if !tt.wantOK {
				assert.Nil(t, q)
				return
			}
			require.NotNil(t, q)
			assert.Equal(t, tt.want, q.Text)
			assert.Equal(t, 3, q.SegmentIndex)
		})
	}
}

func TestSynthesize_PromptAndOperation(t *testing.T) {
	tmpl, err := prompt.Parse("synthesis", "BASELINE::{{.Segment}}", prompt.SynthesisData{})
	require.NoError(t, err)

	var gotPrompt string
	var gotOp transport.OperationType
	gen := llm.GeneratorFunc(func(ctx context.Context, p string) (string, error) {
		gotPrompt = p
		gotOp = transport.OperationFromContext(ctx)
		return "Q?", nil
	})

	s := synthesis.New(gen, synthesis.WithTemplate(tmpl))
	_, ok := s.Synthesize(context.Background(), domain.Segment{Text: "gamma delta"})

	require.True(t, ok)
	assert.Equal(t, "BASELINE::gamma delta", gotPrompt)
	assert.Equal(t, transport.OpSynthesis, gotOp)
}

// TestSynthesize_SingleCall verifies there is no retry at this layer.
func TestSynthesize_SingleCall(t *testing.T) {
	calls := 0
	gen := llm.GeneratorFunc(func(context.Context, string) (string, error) {
		calls++
		return "", errors.New("fail")
	})

	_, ok := synthesis.New(gen).Synthesize(context.Background(), domain.Segment{Text: "x"})

	assert.False(t, ok)
	assert.Equal(t, 1, calls)
}
