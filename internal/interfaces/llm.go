package interfaces

import (
	"context"

	"crowdalpha/internal/types"
)

// Completer is a single text-completion backend.
type Completer interface {
	Name() string
	Complete(ctx context.Context, prompt string) (string, error)
}

// Gateway submits a prompt across one or more backends and always returns a completion.
type Gateway interface {
	Complete(ctx context.Context, prompt string) types.Completion
}
