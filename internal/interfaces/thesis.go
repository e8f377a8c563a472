package interfaces

import (
	"context"

	"crowdalpha/internal/types"
)

// ResultCache maps post fingerprints to previously extracted theses
type ResultCache interface {
	Get(fingerprint string) (types.ThesisResult, bool)
	Put(fingerprint string, result types.ThesisResult) error
}

// Extractor turns one post into a thesis
type Extractor interface {
	// Extract returns a result for every modelled failure; the error is reserved
	// for a caller context that is already done.
	Extract(ctx context.Context, post types.Post) (types.ThesisResult, error)
}
