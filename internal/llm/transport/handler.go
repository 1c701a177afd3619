package transport

import (
	"context"
	"fmt"
	"time"
)

// Router selects the provider that serves a request.
// This interface is implemented by the providers package.
type Router interface {
	Pick(provider, model string) (Provider, error)
}

// Provider performs a single completion against one LLM service.
// Implementations translate the normalized Request into the provider wire
// format and translate the reply back into a Response.
type Provider interface {
	Complete(ctx context.Context, req *Request) (*Response, error)
	Name() string
}

// Handler processes LLM requests through composable middleware pipeline.
// Core abstraction enabling request preprocessing, response postprocessing,
// and cross-cutting concerns like caching, rate limiting, and observability.
type Handler interface {
	Handle(ctx context.Context, req *Request) (*Response, error)
}

// HandlerFunc adapts a function to the Handler interface.
// Enables middleware composition with function-based handlers.
type HandlerFunc func(context.Context, *Request) (*Response, error)

// Handle implements the Handler interface.
func (f HandlerFunc) Handle(ctx context.Context, req *Request) (*Response, error) {
	return f(ctx, req)
}

// Middleware transforms Handler into enhanced Handler for composable behavior.
// Applied in reverse order with last middleware closest to core handler,
// enabling layered request processing and response transformation.
type Middleware func(Handler) Handler

// Chain builds a middleware pipeline around a core handler.
// Middleware executes in the order provided with first middleware outermost,
// enabling request preprocessing and response postprocessing in proper order.
func Chain(h Handler, middlewares ...Middleware) Handler {
	for i := len(middlewares) - 1; i >= 0; i-- {
		h = middlewares[i](h)
	}
	return h
}

// NewHandler creates the core handler that dispatches to a routed provider.
func NewHandler(router Router) Handler {
	return &coreHandler{router: router}
}

// coreHandler is the innermost handler of every chain.
type coreHandler struct {
	router Router
}

// Handle selects the provider, applies the per-request timeout and records latency.
func (h *coreHandler) Handle(ctx context.Context, req *Request) (*Response, error) {
	provider, err := h.router.Pick(req.Provider, req.Model)
	if err != nil {
		return nil, fmt.Errorf("failed to select provider: %w", err)
	}

	reqCtx := ctx
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		reqCtx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	start := time.Now()
	resp, err := provider.Complete(reqCtx, req)
	if err != nil {
		return nil, err
	}
	if resp == nil {
		return nil, fmt.Errorf("%s returned no response", provider.Name())
	}
	resp.Usage.LatencyMs = time.Since(start).Milliseconds()

	return resp, nil
}
