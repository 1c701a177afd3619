// Package evolution applies the policy table to baseline questions.
package evolution

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/jcolano/SDG-simplified-evolution-generation/internal/domain"
	"github.com/jcolano/SDG-simplified-evolution-generation/internal/llm"
	"github.com/jcolano/SDG-simplified-evolution-generation/internal/prompt"
)

// Engine produces one candidate per policy for a baseline question.
// Policy calls are independent: a failure leaves that policy's slot empty and
// never affects the other slots.
type Engine struct {
	gen         llm.Generator
	table       *PolicyTable
	concurrency int
	logger      *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithPolicyTable replaces the built-in policy table.
func WithPolicyTable(t *PolicyTable) Option {
	return func(e *Engine) {
		if t != nil {
			e.table = t
		}
	}
}

// WithConcurrency bounds the number of policy calls in flight per baseline.
// Values below 1 are treated as 1 (sequential, table order).
func WithConcurrency(n int) Option {
	return func(e *Engine) { e.concurrency = max(n, 1) }
}

// WithLogger sets the logger used for soft failures.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// New creates an Engine that calls gen.
func New(gen llm.Generator, opts ...Option) *Engine {
	e := &Engine{
		gen:         gen,
		table:       DefaultPolicyTable(),
		concurrency: 1,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With("component", "evolution_engine")
	return e
}

// Table returns the engine's policy table.
func (e *Engine) Table() *PolicyTable { return e.table }

// Evolve applies every policy of the table to baseline.
// The result has exactly one slot per policy, in table order, whatever the
// completion order of the calls.
func (e *Engine) Evolve(ctx context.Context, baseline domain.BaselineQuestion) domain.Evolution {
	return e.EvolveWithProgress(ctx, baseline, nil)
}

// EvolveWithProgress is Evolve with a callback invoked once per finished
// slot, in completion order. With concurrency above 1 the callback may run
// concurrently. A nil callback is ignored.
func (e *Engine) EvolveWithProgress(ctx context.Context, baseline domain.BaselineQuestion, onSlot func(domain.CandidateSlot)) domain.Evolution {
	entries := e.table.entries
	slots := make([]domain.CandidateSlot, len(entries))

	var g errgroup.Group
	g.SetLimit(e.concurrency)
	for i, entry := range entries {
		g.Go(func() error {
			slots[i] = domain.CandidateSlot{Policy: entry.Policy}
			if c, ok := e.apply(ctx, baseline, entry); ok {
				slots[i].Candidate = c
			}
			if onSlot != nil {
				onSlot(slots[i])
			}
			return nil
		})
	}
	_ = g.Wait()

	return domain.Evolution{Baseline: baseline, Slots: slots}
}

// EvolvePolicy applies a single policy of the table to baseline.
// It reports false when the policy is unknown or generation failed.
func (e *Engine) EvolvePolicy(ctx context.Context, baseline domain.BaselineQuestion, policy domain.Policy) (*domain.Candidate, bool) {
	entry, ok := e.table.Lookup(policy)
	if !ok {
		e.logger.WarnContext(ctx, "unknown evolution policy", "policy", policy)
		return nil, false
	}
	return e.apply(ctx, baseline, entry)
}

func (e *Engine) apply(ctx context.Context, baseline domain.BaselineQuestion, entry PolicyEntry) (*domain.Candidate, bool) {
	p, err := entry.Template.Render(prompt.EvolutionData{Question: baseline.Text})
	if err != nil {
		e.logger.WarnContext(ctx, "failed to render evolution prompt",
			"segment_index", baseline.SegmentIndex, "policy", entry.Policy, "error", err)
		return nil, false
	}

	text, ok, err := llm.SafeGenerate(llm.WithOperation(ctx, llm.OpEvolution), e.gen, p)
	if !ok {
		e.logger.WarnContext(ctx, "candidate not generated",
			"segment_index", baseline.SegmentIndex, "policy", entry.Policy, "error", err)
		return nil, false
	}

	return &domain.Candidate{
		SegmentIndex: baseline.SegmentIndex,
		Policy:       entry.Policy,
		Text:         text,
	}, true
}
