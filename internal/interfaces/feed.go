package interfaces

import (
	"context"

	"crowdalpha/internal/types"
)

// PostFetcher retrieves a bounded batch of candidate posts from a feed source.
// Fetch failures are logged by the implementation and yield an empty slice.
type PostFetcher interface {
	Fetch(ctx context.Context, source string, limit int) []types.Post
}
