package llm

import (
	"context"
	"errors"
	"strings"
	"time"

	"crowdalpha/internal/interfaces"
	"crowdalpha/internal/logger"
	"crowdalpha/internal/ratelimit"
	"crowdalpha/internal/types"
)

// SentinelPayload stands in for a completion when every backend failed. It is
// well-formed and parses to "no ticker, neutral, error reason".
const SentinelPayload = `{"ticker": [], "sentiment": "neutral", "reason": ["LLM error or invalid response format"]}`

// SentinelBackend is reported as the backend of a degraded completion.
const SentinelBackend = "sentinel"

const DefaultTimeout = 60 * time.Second

type attemptState int

const (
	tryingPrimary attemptState = iota
	tryingSecondary
	exhausted
)

func (s attemptState) String() string {
	switch s {
	case tryingPrimary:
		return "primary"
	case tryingSecondary:
		return "secondary"
	default:
		return "exhausted"
	}
}

func (s attemptState) next() attemptState {
	if s >= exhausted {
		return exhausted
	}
	return s + 1
}

// Gateway puts a primary and a secondary Completer behind one call. Each backend
// gets exactly one attempt; the sentinel payload is returned when both fail.
type Gateway struct {
	backends [2]interfaces.Completer
	timeout  time.Duration
	limiter  *ratelimit.RateLimiter
}

var _ interfaces.Gateway = (*Gateway)(nil)

type Option func(*Gateway)

// WithTimeout bounds every single backend attempt.
func WithTimeout(d time.Duration) Option {
	return func(g *Gateway) {
		if d > 0 {
			g.timeout = d
		}
	}
}

// WithRateLimiter makes every Complete call take a token before its first attempt.
func WithRateLimiter(rl *ratelimit.RateLimiter) Option {
	return func(g *Gateway) {
		g.limiter = rl
	}
}

// NewGateway builds a gateway; either backend may be nil, which counts as a failed attempt.
func NewGateway(primary, secondary interfaces.Completer, opts ...Option) *Gateway {
	g := &Gateway{
		backends: [2]interfaces.Completer{primary, secondary},
		timeout:  DefaultTimeout,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Complete never fails. Backend failures are logged and the caller gets either
// the first successful completion or the sentinel payload marked Degraded.
func (g *Gateway) Complete(ctx context.Context, prompt string) types.Completion {
	if err := g.limiter.Wait(ctx); err != nil {
		logger.Warn(ctx, "Rate gate wait aborted", "error", err)
		return sentinel()
	}

	for state := tryingPrimary; state != exhausted; state = state.next() {
		backend := g.backends[state]
		if backend == nil {
			logger.Debug(ctx, "No backend configured", "slot", state.String())
			continue
		}

		text, err := g.attempt(ctx, backend, prompt)
		if err == nil {
			return types.Completion{Text: text, Backend: backend.Name()}
		}

		logger.Warn(ctx, "Inference backend failed",
			"slot", state.String(),
			"backend", backend.Name(),
			"kind", string(KindOf(err)),
			"error", err,
		)

		if ctx.Err() != nil {
			break
		}
	}

	logger.Error(ctx, "All inference backends failed, substituting sentinel payload")
	return sentinel()
}

func (g *Gateway) attempt(ctx context.Context, backend interfaces.Completer, prompt string) (string, error) {
	actx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	text, err := backend.Complete(actx, prompt)
	if err != nil {
		var be *BackendError
		if !errors.As(err, &be) && errors.Is(actx.Err(), context.DeadlineExceeded) {
			return "", NewBackendError(backend.Name(), KindTimeout, err)
		}
		return "", err
	}
	if strings.TrimSpace(text) == "" {
		return "", NewBackendError(backend.Name(), KindMalformed, errors.New("empty completion"))
	}
	return text, nil
}

func sentinel() types.Completion {
	return types.Completion{
		Text:     SentinelPayload,
		Backend:  SentinelBackend,
		Degraded: true,
	}
}
