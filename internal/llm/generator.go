// Package llm exposes the text generation port used by every pipeline stage
// and the Client that implements it on top of the provider middleware chain.
package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/jcolano/SDG-simplified-evolution-generation/internal/llm/transport"
)

// Generator produces text from a prompt.
// An error, an empty string and a whitespace-only string all mean that no
// usable output was produced. Implementations must be safe for concurrent use.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// GeneratorFunc adapts a function to the Generator interface.
type GeneratorFunc func(ctx context.Context, prompt string) (string, error)

// Generate implements Generator.
func (f GeneratorFunc) Generate(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

// Operation tags the pipeline stage that issues a generation call.
type Operation = transport.OperationType

// Pipeline operations.
const (
	OpSynthesis = transport.OpSynthesis
	OpEvolution = transport.OpEvolution
	OpJudgment  = transport.OpJudgment
)

// WithOperation tags ctx so that calls made with it are attributed to op in
// logs, metrics, rate-limit buckets and cache keys.
func WithOperation(ctx context.Context, op Operation) context.Context {
	return transport.WithOperation(ctx, op)
}

// SafeGenerate calls g and folds every failure mode into absence.
// It returns the trimmed text and true only when g returned a non-blank
// string without error. A panic inside g is recovered and reported as err.
func SafeGenerate(ctx context.Context, g Generator, prompt string) (text string, ok bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			text, ok, err = "", false, fmt.Errorf("generator panic: %v", r)
		}
	}()

	out, genErr := g.Generate(ctx, prompt)
	if genErr != nil {
		return "", false, genErr
	}

	out = strings.TrimSpace(out)
	if out == "" {
		return "", false, nil
	}
	return out, true, nil
}
