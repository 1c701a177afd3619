package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/jcolano/SDG-simplified-evolution-generation/internal/llm/configuration"
	llmerrors "github.com/jcolano/SDG-simplified-evolution-generation/internal/llm/errors"
	"github.com/jcolano/SDG-simplified-evolution-generation/internal/llm/transport"
)

// GoogleAdapter speaks the Gemini generateContent API.
type GoogleAdapter struct {
	config configuration.ProviderConfig
}

// NewGoogleAdapter creates a Gemini adapter, defaulting to the production endpoint.
func NewGoogleAdapter(cfg configuration.ProviderConfig) *GoogleAdapter {
	if cfg.Endpoint == "" {
		cfg.Endpoint = "https://generativelanguage.googleapis.com/v1beta"
	}
	return &GoogleAdapter{config: cfg}
}

// Name returns the provider name.
func (a *GoogleAdapter) Name() string {
	return ProviderGoogle
}

type googlePart struct {
	Text string `json:"text"`
}

type googleContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []googlePart `json:"parts"`
}

type googleRequest struct {
	Contents          []googleContent `json:"contents"`
	SystemInstruction *googleContent  `json:"systemInstruction,omitempty"`
	GenerationConfig  struct {
		Temperature     float64 `json:"temperature"`
		MaxOutputTokens int64   `json:"maxOutputTokens,omitempty"`
	} `json:"generationConfig"`
}

// Build constructs a generateContent request. The API key travels in the
// x-goog-api-key header so it never appears in logged URLs.
func (a *GoogleAdapter) Build(ctx context.Context, req *transport.Request) (*http.Request, error) {
	endpoint := fmt.Sprintf("%s/models/%s:generateContent",
		strings.TrimRight(a.config.Endpoint, "/"), url.PathEscape(req.Model))

	body := googleRequest{
		Contents: []googleContent{{Role: "user", Parts: []googlePart{{Text: req.Prompt}}}},
	}
	body.GenerationConfig.Temperature = req.Temperature
	body.GenerationConfig.MaxOutputTokens = req.MaxTokens
	if req.SystemPrompt != "" {
		body.SystemInstruction = &googleContent{Parts: []googlePart{{Text: req.SystemPrompt}}}
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
	httpReq.Header.Set("x-goog-api-key", a.config.APIKey)

	for k, v := range a.config.Headers {
		httpReq.Header.Set(k, v)
	}

	return httpReq, nil
}

// Parse extracts the first candidate's text parts, usage metadata and finish reason.
func (a *GoogleAdapter) Parse(httpResp *http.Response) (*transport.Response, error) {
	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if httpResp.StatusCode != http.StatusOK {
		return nil, parseGoogleError(httpResp, body)
	}

	var resp struct {
		Candidates []struct {
			Content struct {
				Parts []googlePart `json:"parts"`
			} `json:"content"`
			FinishReason string `json:"finishReason"`
		} `json:"candidates"`
		UsageMetadata struct {
			PromptTokenCount     int64 `json:"promptTokenCount"`
			CandidatesTokenCount int64 `json:"candidatesTokenCount"`
			TotalTokenCount      int64 `json:"totalTokenCount"`
		} `json:"usageMetadata"`
	}

	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: %w", llmerrors.ErrInvalidResponse, err)
	}

	var sb strings.Builder
	finishReason := transport.FinishStop
	if len(resp.Candidates) > 0 {
		for _, part := range resp.Candidates[0].Content.Parts {
			sb.WriteString(part.Text)
		}
		finishReason = mapGoogleFinishReason(resp.Candidates[0].FinishReason)
	}

	var requestIDs []string
	if reqID := httpResp.Header.Get("x-goog-request-id"); reqID != "" {
		requestIDs = append(requestIDs, reqID)
	}

	return &transport.Response{
		Content:            sb.String(),
		FinishReason:       finishReason,
		ProviderRequestIDs: requestIDs,
		Usage: transport.NormalizedUsage{
			PromptTokens:     resp.UsageMetadata.PromptTokenCount,
			CompletionTokens: resp.UsageMetadata.CandidatesTokenCount,
			TotalTokens:      resp.UsageMetadata.TotalTokenCount,
		},
		Headers: httpResp.Header,
	}, nil
}

func mapGoogleFinishReason(reason string) transport.FinishReason {
	switch strings.ToUpper(reason) {
	case "MAX_TOKENS":
		return transport.FinishLength
	case "SAFETY", "BLOCKLIST", "PROHIBITED_CONTENT", "RECITATION":
		return transport.FinishContentFilter
	default:
		return transport.FinishStop
	}
}

// parseGoogleError converts Google's {"error":{code,message,status}} body to a ProviderError.
func parseGoogleError(httpResp *http.Response, body []byte) error {
	var errResp struct {
		Error struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
			Status  string `json:"status"`
		} `json:"error"`
	}

	provErr := &llmerrors.ProviderError{
		Provider:   ProviderGoogle,
		StatusCode: httpResp.StatusCode,
		Message:    string(body),
		RetryAfter: retryAfterSeconds(httpResp.Header),
	}
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error.Message != "" {
		provErr.Message = errResp.Error.Message
		provErr.Code = errResp.Error.Status
	}
	provErr.Type = classifyErrorType(httpResp.StatusCode, provErr.Code)

	return provErr
}
