package logging

import (
	"context"
	"log/slog"
	"sync/atomic"
)

// ContextProvider returns attributes computed at log time, such as the
// number of constructs under control.
type ContextProvider func() []slog.Attr

// ContextHandler wraps another handler and appends the attributes of its
// provider to every record. Handlers derived with WithAttrs or WithGroup share
// the provider, so a provider set later reaches loggers built earlier.
type ContextHandler struct {
	inner    slog.Handler
	provider *atomic.Pointer[ContextProvider]
}

func NewContextHandler(inner slog.Handler, provider ContextProvider) *ContextHandler {
	h := &ContextHandler{inner: inner, provider: new(atomic.Pointer[ContextProvider])}
	h.SetProvider(provider)
	return h
}

// SetProvider replaces the provider of h and every handler derived from it. nil removes it.
func (h *ContextHandler) SetProvider(p ContextProvider) {
	if p == nil {
		h.provider.Store(nil)
		return
	}
	h.provider.Store(&p)
}

func (h *ContextHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *ContextHandler) Handle(ctx context.Context, r slog.Record) error {
	if p := h.provider.Load(); p != nil {
		r.AddAttrs((*p)()...)
	}
	return h.inner.Handle(ctx, r)
}

func (h *ContextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &ContextHandler{inner: h.inner.WithAttrs(attrs), provider: h.provider}
}

func (h *ContextHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return &ContextHandler{inner: h.inner.WithGroup(name), provider: h.provider}
}

// EntityCount is a ContextProvider reporting how many constructs count returns.
func EntityCount(count func() int) ContextProvider {
	return func() []slog.Attr {
		return []slog.Attr{slog.Int("constructs", count())}
	}
}
