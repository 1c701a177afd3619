package providers

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/jcolano/SDG-simplified-evolution-generation/internal/llm/transport"
)

// httpAdapter abstracts provider-specific HTTP communication patterns.
// Build and Parse are kept apart so that wire formats can be tested without
// a network round trip.
type httpAdapter interface {
	// Build constructs the provider HTTP request from a normalized request.
	Build(ctx context.Context, req *transport.Request) (*http.Request, error)

	// Parse extracts normalized data from the provider HTTP response.
	Parse(httpResp *http.Response) (*transport.Response, error)

	Name() string
}

// httpProvider turns an httpAdapter into a transport.Provider.
type httpProvider struct {
	adapter httpAdapter
	client  *http.Client
}

func newHTTPProvider(adapter httpAdapter, client *http.Client) *httpProvider {
	return &httpProvider{adapter: adapter, client: client}
}

// Name returns the adapter's provider name.
func (p *httpProvider) Name() string { return p.adapter.Name() }

// Complete builds, sends and parses a single HTTP round trip.
func (p *httpProvider) Complete(ctx context.Context, req *transport.Request) (*transport.Response, error) {
	httpReq, err := p.adapter.Build(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to build %s request: %w", p.adapter.Name(), err)
	}

	httpResp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, transportError(p.adapter.Name(), err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, httpResp.Body)
		_ = httpResp.Body.Close()
	}()

	return p.adapter.Parse(httpResp)
}
