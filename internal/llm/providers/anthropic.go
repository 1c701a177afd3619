package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/jcolano/SDG-simplified-evolution-generation/internal/llm/configuration"
	llmerrors "github.com/jcolano/SDG-simplified-evolution-generation/internal/llm/errors"
	"github.com/jcolano/SDG-simplified-evolution-generation/internal/llm/transport"
)

const anthropicAPIVersion = "2023-06-01"

// AnthropicAdapter speaks the Anthropic messages API.
// The system prompt travels in its own field rather than as a message.
type AnthropicAdapter struct {
	config configuration.ProviderConfig
}

// NewAnthropicAdapter creates an Anthropic adapter, defaulting to the production endpoint.
func NewAnthropicAdapter(cfg configuration.ProviderConfig) *AnthropicAdapter {
	if cfg.Endpoint == "" {
		cfg.Endpoint = "https://api.anthropic.com/v1"
	}
	return &AnthropicAdapter{config: cfg}
}

// Name returns the provider name.
func (a *AnthropicAdapter) Name() string {
	return ProviderAnthropic
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	Messages    []anthropicMessage `json:"messages"`
	System      string             `json:"system,omitempty"`
	MaxTokens   int64              `json:"max_tokens"`
	Temperature float64            `json:"temperature"`
}

// Build constructs a messages request with Anthropic's authentication and
// versioning headers.
func (a *AnthropicAdapter) Build(ctx context.Context, req *transport.Request) (*http.Request, error) {
	endpoint := strings.TrimRight(a.config.Endpoint, "/") + "/messages"

	body := anthropicRequest{
		Model:       req.Model,
		Messages:    []anthropicMessage{{Role: "user", Content: req.Prompt}},
		System:      req.SystemPrompt,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	}

	jsonBody, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", a.config.APIKey)
	httpReq.Header.Set("anthropic-version", anthropicAPIVersion)

	if req.IdempotencyKey != "" {
		httpReq.Header.Set("Idempotency-Key", req.IdempotencyKey)
	}

	for k, v := range a.config.Headers {
		httpReq.Header.Set(k, v)
	}

	return httpReq, nil
}

// Parse extracts the concatenated text blocks, usage and stop reason.
func (a *AnthropicAdapter) Parse(httpResp *http.Response) (*transport.Response, error) {
	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if httpResp.StatusCode != http.StatusOK {
		return nil, parseAnthropicError(httpResp, body)
	}

	var resp struct {
		ID      string `json:"id"`
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
		StopReason string `json:"stop_reason"`
		Usage      struct {
			InputTokens  int64 `json:"input_tokens"`
			OutputTokens int64 `json:"output_tokens"`
		} `json:"usage"`
	}

	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: %w", llmerrors.ErrInvalidResponse, err)
	}

	var sb strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}

	var requestIDs []string
	if reqID := httpResp.Header.Get("request-id"); reqID != "" {
		requestIDs = append(requestIDs, reqID)
	}

	return &transport.Response{
		Content:            sb.String(),
		FinishReason:       mapAnthropicStopReason(resp.StopReason),
		ProviderRequestIDs: requestIDs,
		Usage: transport.NormalizedUsage{
			PromptTokens:     resp.Usage.InputTokens,
			CompletionTokens: resp.Usage.OutputTokens,
			TotalTokens:      resp.Usage.InputTokens + resp.Usage.OutputTokens,
		},
		Headers: httpResp.Header,
	}, nil
}

func mapAnthropicStopReason(reason string) transport.FinishReason {
	switch reason {
	case "max_tokens":
		return transport.FinishLength
	case "refusal":
		return transport.FinishContentFilter
	case "tool_use":
		return transport.FinishToolUse
	default:
		return transport.FinishStop
	}
}

// parseAnthropicError converts Anthropic's {"type":"error","error":{...}} body to a ProviderError.
func parseAnthropicError(httpResp *http.Response, body []byte) error {
	var errResp struct {
		Error struct {
			Type    string `json:"type"`
			Message string `json:"message"`
		} `json:"error"`
	}

	provErr := &llmerrors.ProviderError{
		Provider:   ProviderAnthropic,
		StatusCode: httpResp.StatusCode,
		Message:    string(body),
		RetryAfter: retryAfterSeconds(httpResp.Header),
	}
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error.Message != "" {
		provErr.Message = errResp.Error.Message
		provErr.Code = errResp.Error.Type
	}
	provErr.Type = classifyErrorType(httpResp.StatusCode, provErr.Code)

	return provErr
}
