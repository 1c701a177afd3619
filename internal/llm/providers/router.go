// Package providers adapts the normalized transport request to concrete LLM
// services. Each adapter implements transport.Provider.
package providers

import (
	"fmt"
	"net/http"
	"os"

	"github.com/jcolano/SDG-simplified-evolution-generation/internal/llm/configuration"
	llmerrors "github.com/jcolano/SDG-simplified-evolution-generation/internal/llm/errors"
	"github.com/jcolano/SDG-simplified-evolution-generation/internal/llm/transport"
)

// Supported LLM provider identifiers.
// These constants must match the provider names used in configuration.
const (
	ProviderOpenAI    = "openai"    // OpenAI chat completions and compatible servers
	ProviderAnthropic = "anthropic" // Anthropic messages API
	ProviderGoogle    = "google"    // Google Gemini generateContent API
)

// NewRouter creates a router with one adapter per configured provider.
// API keys missing from the configuration are read from APIKeyEnv.
func NewRouter(configs map[string]configuration.ProviderConfig, client *http.Client) (transport.Router, error) {
	if client == nil {
		client = http.DefaultClient
	}

	adapters := make(map[string]transport.Provider, len(configs))
	for name, cfg := range configs {
		if cfg.APIKey == "" && cfg.APIKeyEnv != "" {
			cfg.APIKey = os.Getenv(cfg.APIKeyEnv)
		}

		var adapter transport.Provider
		switch name {
		case ProviderOpenAI:
			adapter = NewOpenAIAdapter(cfg, client)
		case ProviderAnthropic:
			adapter = newHTTPProvider(NewAnthropicAdapter(cfg), client)
		case ProviderGoogle:
			adapter = newHTTPProvider(NewGoogleAdapter(cfg), client)
		default:
			return nil, fmt.Errorf("%w: %s", llmerrors.ErrUnknownProvider, name)
		}
		adapters[name] = adapter
	}

	return &router{adapters: adapters}, nil
}

// router implements transport.Router with a provider registry.
type router struct {
	adapters map[string]transport.Provider
}

// Pick selects the provider for the given name. The model is validated by
// the provider itself.
func (r *router) Pick(provider, _ string) (transport.Provider, error) {
	adapter, ok := r.adapters[provider]
	if !ok {
		return nil, fmt.Errorf("%w: %s", llmerrors.ErrUnknownProvider, provider)
	}
	return adapter, nil
}
