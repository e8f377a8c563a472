package llmobs

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"crowdalpha/internal/interfaces"
	"crowdalpha/internal/llm"
	"crowdalpha/internal/logger"
	"crowdalpha/internal/trace"
)

// observableCompleter wraps a Completer with logging and tracing
type observableCompleter struct {
	completer interfaces.Completer
}

var _ interfaces.Completer = (*observableCompleter)(nil)

// Wrap wraps a completer with observability middleware
func Wrap(completer interfaces.Completer) interfaces.Completer {
	return &observableCompleter{completer: completer}
}

func (oc *observableCompleter) Name() string {
	return oc.completer.Name()
}

func (oc *observableCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	ctx, span := trace.StartSpan(ctx, "llm.Complete")
	defer span.End()
	span.SetAttributes(attribute.String("backend", oc.completer.Name()))

	// Skip(1) so the reported caller is the gateway, not this wrapper
	logger.DebugSkip(ctx, 1, "Requesting completion",
		"backend", oc.completer.Name(),
		"prompt_chars", len(prompt),
	)

	start := time.Now()
	text, err := oc.completer.Complete(ctx, prompt)
	latency := time.Since(start)

	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Completion failed", err,
			"backend", oc.completer.Name(),
			"kind", string(llm.KindOf(err)),
			"latency_ms", latency.Milliseconds(),
		)
		return "", err
	}

	logger.DebugSkip(ctx, 1, "Completion received",
		"backend", oc.completer.Name(),
		"response_chars", len(text),
		"latency_ms", latency.Milliseconds(),
	)
	return text, nil
}
