package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/jcolano/SDG-simplified-evolution-generation/internal/llm/configuration"
	llmerrors "github.com/jcolano/SDG-simplified-evolution-generation/internal/llm/errors"
	"github.com/jcolano/SDG-simplified-evolution-generation/internal/llm/transport"
)

// OpenAIAdapter implements transport.Provider on top of the go-openai client.
// Setting Endpoint points it at any OpenAI-compatible server.
type OpenAIAdapter struct {
	client *openai.Client
}

// NewOpenAIAdapter creates an OpenAI adapter. Custom headers from the
// configuration are injected through the HTTP transport.
func NewOpenAIAdapter(cfg configuration.ProviderConfig, httpClient *http.Client) *OpenAIAdapter {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.Endpoint != "" {
		clientCfg.BaseURL = strings.TrimRight(cfg.Endpoint, "/")
	}
	if httpClient != nil {
		clientCfg.HTTPClient = withHeaders(httpClient, cfg.Headers)
	}
	return &OpenAIAdapter{client: openai.NewClientWithConfig(clientCfg)}
}

// Name returns the provider name.
func (a *OpenAIAdapter) Name() string {
	return ProviderOpenAI
}

// Complete issues a single chat completion.
func (a *OpenAIAdapter) Complete(ctx context.Context, req *transport.Request) (*transport.Response, error) {
	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if req.SystemPrompt != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.SystemPrompt,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: req.Prompt,
	})

	chatReq := openai.ChatCompletionRequest{
		Model:       req.Model,
		Messages:    messages,
		Temperature: float32(req.Temperature),
	}
	if req.MaxTokens > 0 {
		chatReq.MaxCompletionTokens = int(req.MaxTokens)
	}
	if req.Seed != nil {
		seed := int(*req.Seed)
		chatReq.Seed = &seed
	}

	resp, err := a.client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		return nil, parseOpenAIError(err)
	}

	var content string
	finishReason := transport.FinishStop
	if len(resp.Choices) > 0 {
		content = resp.Choices[0].Message.Content
		finishReason = mapOpenAIFinishReason(resp.Choices[0].FinishReason)
	}

	var requestIDs []string
	if resp.ID != "" {
		requestIDs = append(requestIDs, resp.ID)
	}

	return &transport.Response{
		Content:            content,
		FinishReason:       finishReason,
		ProviderRequestIDs: requestIDs,
		Usage: transport.NormalizedUsage{
			PromptTokens:     int64(resp.Usage.PromptTokens),
			CompletionTokens: int64(resp.Usage.CompletionTokens),
			TotalTokens:      int64(resp.Usage.TotalTokens),
		},
		Headers: resp.Header(),
	}, nil
}

func mapOpenAIFinishReason(reason openai.FinishReason) transport.FinishReason {
	switch reason {
	case openai.FinishReasonLength:
		return transport.FinishLength
	case openai.FinishReasonContentFilter:
		return transport.FinishContentFilter
	case openai.FinishReasonToolCalls, openai.FinishReasonFunctionCall:
		return transport.FinishToolUse
	default:
		return transport.FinishStop
	}
}

// parseOpenAIError converts go-openai errors to ProviderError.
func parseOpenAIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		code := apiErr.Type
		if s, ok := apiErr.Code.(string); ok && s != "" {
			code = s
		}
		return &llmerrors.ProviderError{
			Provider:   ProviderOpenAI,
			StatusCode: apiErr.HTTPStatusCode,
			Message:    apiErr.Message,
			Code:       code,
			Type:       classifyErrorType(apiErr.HTTPStatusCode, code),
		}
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return &llmerrors.ProviderError{
			Provider:   ProviderOpenAI,
			StatusCode: reqErr.HTTPStatusCode,
			Message:    fmt.Sprintf("request failed: %v", reqErr.Err),
			Type:       classifyErrorType(reqErr.HTTPStatusCode, ""),
		}
	}

	return transportError(ProviderOpenAI, err)
}

// headerTransport adds static headers to every outgoing request.
type headerTransport struct {
	base    http.RoundTripper
	headers map[string]string
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	for k, v := range t.headers {
		req.Header.Set(k, v)
	}
	return t.base.RoundTrip(req)
}

func withHeaders(client *http.Client, headers map[string]string) *http.Client {
	if len(headers) == 0 {
		return client
	}
	base := client.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	wrapped := *client
	wrapped.Transport = &headerTransport{base: base, headers: headers}
	return &wrapped
}
