package transport

import (
	"context"
	"net/http"
	"time"
)

// OperationType tags a request with the pipeline stage that issued it.
// It drives metrics labels, rate-limit keys and cache partitioning.
type OperationType string

// Operation types issued by the evolution pipeline.
const (
	// OpGeneration is an untagged free-form generation.
	OpGeneration OperationType = "generation"

	// OpSynthesis derives a baseline question from a segment.
	OpSynthesis OperationType = "synthesis"

	// OpEvolution rewrites a baseline question under one policy.
	OpEvolution OperationType = "evolution"

	// OpJudgment asks the critic model for a VALID/INVALID verdict.
	OpJudgment OperationType = "judgment"
)

// IsValid reports whether op is a known operation.
func (op OperationType) IsValid() bool {
	switch op {
	case OpGeneration, OpSynthesis, OpEvolution, OpJudgment:
		return true
	default:
		return false
	}
}

// FinishReason is the normalized reason a provider stopped generating.
type FinishReason string

// Normalized finish reasons.
const (
	FinishStop          FinishReason = "stop"
	FinishLength        FinishReason = "length"
	FinishContentFilter FinishReason = "content_filter"
	FinishToolUse       FinishReason = "tool_use"
)

// Request is the provider-agnostic form of a single prompt completion.
type Request struct {
	// Operation type affects routing, metrics, and rate limiting.
	Operation OperationType `json:"operation"`

	// Provider identifies which LLM service to use.
	Provider string `json:"provider"` // "openai"|"anthropic"|"google"

	// Model specifies the exact model version to use.
	Model string `json:"model"`

	// TenantID enables per-tenant isolation and tracking.
	TenantID string `json:"tenant_id"`

	// Prompt is the user message sent to the model.
	Prompt string `json:"prompt"`

	// System prompt provides instructions to the model.
	SystemPrompt string `json:"system_prompt,omitempty"`

	// Generation parameters control model behavior.
	MaxTokens   int64   `json:"max_tokens"`
	Temperature float64 `json:"temperature"`
	Seed        *int64  `json:"seed,omitempty"`

	// Control fields for resilience and observability.
	Timeout        time.Duration `json:"timeout"`
	IdempotencyKey string        `json:"idempotency_key"`
	TraceID        string        `json:"trace_id"`
}

// NormalizedUsage is token accounting reported by a provider.
type NormalizedUsage struct {
	PromptTokens     int64 `json:"prompt_tokens"`
	CompletionTokens int64 `json:"completion_tokens"`
	TotalTokens      int64 `json:"total_tokens"`
	LatencyMs        int64 `json:"latency_ms"`
}

// Response is the provider-agnostic result of a completion.
type Response struct {
	Content            string          `json:"content"`
	FinishReason       FinishReason    `json:"finish_reason"`
	ProviderRequestIDs []string        `json:"provider_request_ids,omitempty"`
	Usage              NormalizedUsage `json:"usage"`
	Headers            http.Header     `json:"-"`
	CacheHit           bool            `json:"-"`
}

type operationKey struct{}

type tenantKey struct{}

type traceKey struct{}

// WithOperation tags ctx so that requests built from it carry op.
func WithOperation(ctx context.Context, op OperationType) context.Context {
	return context.WithValue(ctx, operationKey{}, op)
}

// OperationFromContext returns the operation tag of ctx, defaulting to OpGeneration.
func OperationFromContext(ctx context.Context) OperationType {
	if op, ok := ctx.Value(operationKey{}).(OperationType); ok && op.IsValid() {
		return op
	}
	return OpGeneration
}

// WithTenant tags ctx with a tenant identifier.
func WithTenant(ctx context.Context, tenantID string) context.Context {
	return context.WithValue(ctx, tenantKey{}, tenantID)
}

// ExtractTenantID returns the tenant of ctx or "default".
func ExtractTenantID(ctx context.Context) string {
	if id, ok := ctx.Value(tenantKey{}).(string); ok && id != "" {
		return id
	}
	return "default"
}

// WithTraceID tags ctx with a trace identifier propagated to request logs.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceKey{}, traceID)
}

// ExtractTraceID returns the trace identifier of ctx, if any.
func ExtractTraceID(ctx context.Context) string {
	id, _ := ctx.Value(traceKey{}).(string)
	return id
}
