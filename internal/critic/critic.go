// Package critic judges evolved questions against their baseline.
//
// The critic delegates the judgment to the text generator and only parses
// the categorical answer. It is fail-closed: a candidate is accepted only
// when the trimmed, upper-cased response is exactly AcceptToken. Errors,
// panics, blank output and near misses such as "Valid." are rejections.
package critic

import (
	"context"
	"log/slog"
	"strings"

	"github.com/jcolano/SDG-simplified-evolution-generation/internal/domain"
	"github.com/jcolano/SDG-simplified-evolution-generation/internal/llm"
	"github.com/jcolano/SDG-simplified-evolution-generation/internal/prompt"
)

// Response tokens the judgment prompt asks for.
const (
	AcceptToken = "VALID"
	RejectToken = "INVALID"
)

// Critic issues one judgment call per candidate.
type Critic struct {
	gen      llm.Generator
	template *prompt.Template
	logger   *slog.Logger
}

// Option configures a Critic.
type Option func(*Critic)

// WithTemplate replaces the built-in judgment template.
func WithTemplate(t *prompt.Template) Option {
	return func(c *Critic) {
		if t != nil {
			c.template = t
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Critic) {
		if l != nil {
			c.logger = l
		}
	}
}

// New creates a Critic that calls gen.
func New(gen llm.Generator, opts ...Option) *Critic {
	c := &Critic{gen: gen, template: prompt.Critic(), logger: slog.Default()}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "critic")
	return c
}

// Judge returns the verdict for candidate evolved from baseline.
func (c *Critic) Judge(ctx context.Context, baseline domain.BaselineQuestion, candidate domain.Candidate) domain.Verdict {
	p, err := c.template.Render(prompt.JudgmentData{Baseline: baseline.Text, Candidate: candidate.Text})
	if err != nil {
		c.logger.WarnContext(ctx, "failed to render judgment prompt",
			"segment_index", candidate.SegmentIndex, "policy", candidate.Policy, "error", err)
		return domain.VerdictFor(candidate, false)
	}

	resp, ok, err := llm.SafeGenerate(llm.WithOperation(ctx, llm.OpJudgment), c.gen, p)
	if !ok {
		c.logger.WarnContext(ctx, "judgment not generated, rejecting candidate",
			"segment_index", candidate.SegmentIndex, "policy", candidate.Policy, "error", err)
		return domain.VerdictFor(candidate, false)
	}

	accepted := IsAccept(resp)
	if !accepted && strings.ToUpper(resp) != RejectToken {
		c.logger.DebugContext(ctx, "ambiguous judgment treated as rejection",
			"segment_index", candidate.SegmentIndex, "policy", candidate.Policy, "response", resp)
	}
	return domain.VerdictFor(candidate, accepted)
}

// IsAccept reports whether resp is the accept token after trimming and case
// normalization.
func IsAccept(resp string) bool {
	return strings.ToUpper(strings.TrimSpace(resp)) == AcceptToken
}
