// Package resilience provides the observability middleware of the LLM client
// chain: structured request logging through log/slog and metric collection
// through the Metrics interface.
package resilience

import (
	"context"
	"log/slog"
	"maps"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jcolano/SDG-simplified-evolution-generation/internal/llm/configuration"
	llmerrors "github.com/jcolano/SDG-simplified-evolution-generation/internal/llm/errors"
	"github.com/jcolano/SDG-simplified-evolution-generation/internal/llm/transport"
)

// ContentTruncationLimit is the number of response characters kept in
// unredacted logs.
const ContentTruncationLimit = 200

// Metrics collects observability data from LLM calls.
// Tags are low-cardinality dimensions such as provider, model and operation.
type Metrics interface {
	IncrementCounter(name string, tags map[string]string, value float64)
	RecordHistogram(name string, tags map[string]string, value float64)
	SetGauge(name string, tags map[string]string, value float64)
}

// NoOpMetrics discards all data.
type NoOpMetrics struct{}

// NewNoOpMetrics returns a new no-op metrics collector.
func NewNoOpMetrics() *NoOpMetrics {
	return &NoOpMetrics{}
}

// IncrementCounter does nothing.
func (n *NoOpMetrics) IncrementCounter(_ string, _ map[string]string, _ float64) {}

// RecordHistogram does nothing.
func (n *NoOpMetrics) RecordHistogram(_ string, _ map[string]string, _ float64) {}

// SetGauge does nothing.
func (n *NoOpMetrics) SetGauge(_ string, _ map[string]string, _ float64) {}

// LoggingMiddleware logs the lifecycle of every LLM call and records request,
// error, latency and token metrics. Prompt and response bodies are replaced
// by their lengths when redaction is enabled.
type LoggingMiddleware struct {
	logger        *slog.Logger
	metrics       Metrics
	redactPrompts bool
}

// NewLoggingMiddleware creates the observability middleware.
// A nil logger falls back to slog.Default and nil metrics to NoOpMetrics.
func NewLoggingMiddleware(config configuration.ObservabilityConfig, logger *slog.Logger, metrics Metrics) transport.Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = NewNoOpMetrics()
	}

	lm := &LoggingMiddleware{
		logger:        logger.With("component", "llm"),
		metrics:       metrics,
		redactPrompts: config.RedactPrompts,
	}
	return lm.Middleware()
}

// Middleware returns the transport.Middleware form of m.
func (m *LoggingMiddleware) Middleware() transport.Middleware {
	return func(next transport.Handler) transport.Handler {
		return transport.HandlerFunc(func(ctx context.Context, req *transport.Request) (*transport.Response, error) {
			requestID := req.TraceID
			if requestID == "" {
				requestID = uuid.New().String()
			}

			baseTags := map[string]string{
				"provider":  req.Provider,
				"model":     req.Model,
				"operation": string(req.Operation),
			}

			m.logRequest(ctx, req, requestID)
			m.metrics.IncrementCounter("llm.requests.total", baseTags, 1)

			start := time.Now()
			resp, err := next.Handle(ctx, req)
			duration := time.Since(start)

			m.metrics.RecordHistogram("llm.request.duration_ms", baseTags, float64(duration.Milliseconds()))

			if err != nil {
				m.handleError(ctx, req, err, requestID, duration, baseTags)
			} else if resp != nil {
				m.handleSuccess(ctx, req, resp, requestID, duration, baseTags)
			}

			return resp, err
		})
	}
}

func (m *LoggingMiddleware) logRequest(ctx context.Context, req *transport.Request, requestID string) {
	fields := []any{
		"request_id", requestID,
		"provider", req.Provider,
		"model", req.Model,
		"operation", req.Operation,
		"tenant_id", req.TenantID,
		"max_tokens", req.MaxTokens,
		"temperature", req.Temperature,
	}

	if m.redactPrompts {
		fields = append(fields, "prompt_length", len(req.Prompt))
	} else {
		fields = append(fields, "prompt", req.Prompt)
	}

	m.logger.DebugContext(ctx, "LLM request started", fields...)
}

func (m *LoggingMiddleware) handleError(
	ctx context.Context,
	req *transport.Request,
	err error,
	requestID string,
	duration time.Duration,
	baseTags map[string]string,
) {
	errorType := string(llmerrors.ErrorTypeUnknown)
	if wfErr := llmerrors.Classify(err); wfErr != nil {
		errorType = string(wfErr.Type)
	}

	errorTags := maps.Clone(baseTags)
	errorTags["error_type"] = errorType
	m.metrics.IncrementCounter("llm.requests.errors", errorTags, 1)

	m.logger.WarnContext(ctx, "LLM request failed",
		"request_id", requestID,
		"provider", req.Provider,
		"model", req.Model,
		"operation", req.Operation,
		"duration_ms", duration.Milliseconds(),
		"error_type", errorType,
		"error", err.Error(),
	)
}

func (m *LoggingMiddleware) handleSuccess(
	ctx context.Context,
	req *transport.Request,
	resp *transport.Response,
	requestID string,
	duration time.Duration,
	baseTags map[string]string,
) {
	m.metrics.IncrementCounter("llm.requests.success", baseTags, 1)
	if resp.CacheHit {
		m.metrics.IncrementCounter("llm.cache.hits", baseTags, 1)
	}
	m.metrics.RecordHistogram("llm.tokens.prompt", baseTags, float64(resp.Usage.PromptTokens))
	m.metrics.RecordHistogram("llm.tokens.completion", baseTags, float64(resp.Usage.CompletionTokens))

	fields := []any{
		"request_id", requestID,
		"provider", req.Provider,
		"model", req.Model,
		"operation", req.Operation,
		"duration_ms", duration.Milliseconds(),
		"cache_hit", resp.CacheHit,
		"finish_reason", resp.FinishReason,
		"prompt_tokens", resp.Usage.PromptTokens,
		"completion_tokens", resp.Usage.CompletionTokens,
		"provider_request_ids", strings.Join(resp.ProviderRequestIDs, ","),
	}

	if m.redactPrompts {
		fields = append(fields, "response_length", len(resp.Content))
	} else {
		content := resp.Content
		if len(content) > ContentTruncationLimit {
			content = content[:ContentTruncationLimit] + "..."
		}
		fields = append(fields, "response_preview", content)
	}

	m.logger.DebugContext(ctx, "LLM request completed", fields...)
}
