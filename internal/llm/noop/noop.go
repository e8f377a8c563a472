package noop

import (
	"context"
	"errors"

	"crowdalpha/internal/interfaces"
	"crowdalpha/internal/llm"
	"crowdalpha/internal/logger"
)

// Backend fills a backend slot that has no usable provider. Every call fails as
// unavailable, so the gateway moves on to the next slot or the sentinel.
type Backend struct {
	name   string
	reason error
}

var _ interfaces.Completer = (*Backend)(nil)

func New(name, reason string) *Backend {
	if name == "" {
		name = "noop"
	}
	if reason == "" {
		reason = "no inference provider configured"
	}
	return &Backend{name: name, reason: errors.New(reason)}
}

func (b *Backend) Name() string {
	return b.name
}

func (b *Backend) Complete(ctx context.Context, prompt string) (string, error) {
	logger.Debug(ctx, "Noop backend called", "backend", b.name)
	return "", llm.NewBackendError(b.name, llm.KindUnavailable, b.reason)
}
