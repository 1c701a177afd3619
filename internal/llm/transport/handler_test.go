package transport_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jcolano/SDG-simplified-evolution-generation/internal/llm/transport"
)

var errRouting = errors.New("no such provider")

// stubProvider records the deadline it observed and returns a fixed response.
type stubProvider struct {
	resp        *transport.Response
	err         error
	sawDeadline bool
}

func (p *stubProvider) Complete(ctx context.Context, _ *transport.Request) (*transport.Response, error) {
	_, p.sawDeadline = ctx.Deadline()
	return p.resp, p.err
}

func (p *stubProvider) Name() string { return "stub" }

type stubRouter struct {
	provider transport.Provider
	err      error
}

func (r stubRouter) Pick(_, _ string) (transport.Provider, error) { return r.provider, r.err }

// TestChain_Order verifies that the first middleware is the outermost wrapper.
func TestChain_Order(t *testing.T) {
	var order []string
	mw := func(name string) transport.Middleware {
		return func(next transport.Handler) transport.Handler {
			return transport.HandlerFunc(func(ctx context.Context, req *transport.Request) (*transport.Response, error) {
				order = append(order, name+":before")
				resp, err := next.Handle(ctx, req)
				order = append(order, name+":after")
				return resp, err
			})
		}
	}
	core := transport.HandlerFunc(func(context.Context, *transport.Request) (*transport.Response, error) {
		order = append(order, "core")
		return &transport.Response{Content: "ok"}, nil
	})

	h := transport.Chain(core, mw("outer"), mw("inner"))
	resp, err := h.Handle(context.Background(), &transport.Request{})

	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Content)
	assert.Equal(t, []string{"outer:before", "inner:before", "core", "inner:after", "outer:after"}, order)
}

// TestCoreHandler verifies routing, timeout propagation and error passthrough.
func TestCoreHandler(t *testing.T) {
	t.Run("applies per-request timeout", func(t *testing.T) {
		p := &stubProvider{resp: &transport.Response{Content: "hi"}}
		h := transport.NewHandler(stubRouter{provider: p})

		resp, err := h.Handle(context.Background(), &transport.Request{Timeout: time.Second})

		require.NoError(t, err)
		assert.Equal(t, "hi", resp.Content)
		assert.True(t, p.sawDeadline)
	})

	t.Run("no timeout leaves context untouched", func(t *testing.T) {
		p := &stubProvider{resp: &transport.Response{Content: "hi"}}
		h := transport.NewHandler(stubRouter{provider: p})

		_, err := h.Handle(context.Background(), &transport.Request{})

		require.NoError(t, err)
		assert.False(t, p.sawDeadline)
	})

	t.Run("routing failure", func(t *testing.T) {
		h := transport.NewHandler(stubRouter{err: errRouting})

		_, err := h.Handle(context.Background(), &transport.Request{Provider: "nope"})

		require.Error(t, err)
		assert.ErrorIs(t, err, errRouting)
	})

	t.Run("nil response is an error", func(t *testing.T) {
		h := transport.NewHandler(stubRouter{provider: &stubProvider{}})

		_, err := h.Handle(context.Background(), &transport.Request{})

		assert.Error(t, err)
	})
}

// TestContextTags verifies operation, tenant and trace propagation through context.
func TestContextTags(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, transport.OpGeneration, transport.OperationFromContext(ctx))
	assert.Equal(t, "default", transport.ExtractTenantID(ctx))
	assert.Empty(t, transport.ExtractTraceID(ctx))

	ctx = transport.WithOperation(ctx, transport.OpJudgment)
	ctx = transport.WithTenant(ctx, "acme")
	ctx = transport.WithTraceID(ctx, "trace-1")

	assert.Equal(t, transport.OpJudgment, transport.OperationFromContext(ctx))
	assert.Equal(t, "acme", transport.ExtractTenantID(ctx))
	assert.Equal(t, "trace-1", transport.ExtractTraceID(ctx))
}
