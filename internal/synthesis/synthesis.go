// Package synthesis derives one baseline question per document segment.
package synthesis

import (
	"context"
	"log/slog"

	"github.com/jcolano/SDG-simplified-evolution-generation/internal/domain"
	"github.com/jcolano/SDG-simplified-evolution-generation/internal/llm"
	"github.com/jcolano/SDG-simplified-evolution-generation/internal/prompt"
)

// Synthesizer turns a segment into a baseline question with a single
// generation call. It does not retry; a failed call drops the segment.
type Synthesizer struct {
	gen      llm.Generator
	template *prompt.Template
	logger   *slog.Logger
}

// Option configures a Synthesizer.
type Option func(*Synthesizer)

// WithTemplate replaces the built-in synthesis template.
func WithTemplate(t *prompt.Template) Option {
	return func(s *Synthesizer) {
		if t != nil {
			s.template = t
		}
	}
}

// WithLogger sets the logger used for soft failures.
func WithLogger(l *slog.Logger) Option {
	return func(s *Synthesizer) {
		if l != nil {
			s.logger = l
		}
	}
}

// New creates a Synthesizer that calls gen.
func New(gen llm.Generator, opts ...Option) *Synthesizer {
	s := &Synthesizer{
		gen:      gen,
		template: prompt.Synthesis(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "synthesizer")
	return s
}

// Synthesize returns the trimmed generated question for seg.
// It reports false when the generator errors, panics or returns blank text.
func (s *Synthesizer) Synthesize(ctx context.Context, seg domain.Segment) (*domain.BaselineQuestion, bool) {
	p, err := s.template.Render(prompt.SynthesisData{Segment: seg.Text})
	if err != nil {
		s.logger.WarnContext(ctx, "failed to render synthesis prompt",
			"segment_index", seg.Index, "error", err)
		return nil, false
	}

	text, ok, err := llm.SafeGenerate(llm.WithOperation(ctx, llm.OpSynthesis), s.gen, p)
	if !ok {
		s.logger.WarnContext(ctx, "baseline question not generated, dropping segment",
			"segment_index", seg.Index, "error", err)
		return nil, false
	}

	return &domain.BaselineQuestion{SegmentIndex: seg.Index, Text: text}, true
}
