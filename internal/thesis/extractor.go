package thesis

import (
	"context"

	"golang.org/x/sync/singleflight"

	"crowdalpha/internal/interfaces"
	"crowdalpha/internal/logger"
	"crowdalpha/internal/types"
)

// Where the tickers of an extracted thesis came from.
const (
	originModel     = "model"
	originHeuristic = "heuristic"
	originNone      = "none"
	originCache     = "cache"
)

// Extractor turns posts into theses: fingerprint, cache lookup, inference,
// tolerant parse, heuristic fallback and cache write-through.
type Extractor struct {
	gateway interfaces.Gateway
	cache   interfaces.ResultCache
	flights singleflight.Group
}

var _ interfaces.Extractor = (*Extractor)(nil)

func NewExtractor(gateway interfaces.Gateway, cache interfaces.ResultCache) *Extractor {
	return &Extractor{
		gateway: gateway,
		cache:   cache,
	}
}

// Extract never fails for inference or parse problems; those degrade to a neutral
// result carrying a diagnostic reason. The error is only ever ctx.Err().
func (e *Extractor) Extract(ctx context.Context, post types.Post) (types.ThesisResult, error) {
	if err := ctx.Err(); err != nil {
		return types.ThesisResult{}, err
	}

	text := post.Text()
	fp := Fingerprint(text)

	if cached, ok := e.cache.Get(fp); ok {
		logger.Thesis(ctx, fp, cached.Tickers, string(cached.Sentiment), originCache)
		return cached, nil
	}

	// Identical posts in one batch share a single inference call.
	v, _, shared := e.flights.Do(fp, func() (any, error) {
		return e.infer(ctx, fp, text), nil
	})
	if shared {
		logger.Debug(ctx, "Shared in-flight extraction", "fingerprint", fp[:12])
	}

	if err := ctx.Err(); err != nil {
		return types.ThesisResult{}, err
	}
	return v.(types.ThesisResult), nil
}

func (e *Extractor) infer(ctx context.Context, fp, text string) types.ThesisResult {
	// A flight that finished just before this one started may already have stored it.
	if cached, ok := e.cache.Get(fp); ok {
		return cached
	}

	op := logger.StartOperation(ctx, "thesis.extract", "fingerprint", fp[:12])
	ctx = op.GetContext()

	completion := e.gateway.Complete(ctx, BuildPrompt(text))
	cacheable := !completion.Degraded

	result, err := ParseResponse(completion.Text)
	if err != nil {
		logger.Warn(ctx, "Unparseable model output", "fingerprint", fp[:12],
			"backend", completion.Backend, "error", err)
		result = ParseFailureResult()
		cacheable = false
	}
	result.Reasons = FilterReasons(result.Reasons)

	origin := originModel
	if len(result.Tickers) == 0 {
		result.Tickers = ExtractTickers(text)
		origin = originHeuristic
		if len(result.Tickers) == 0 {
			origin = originNone
		}
	}

	if cacheable {
		if err := e.cache.Put(fp, result); err != nil {
			logger.ErrorWithErr(ctx, "Failed to persist thesis", err, "fingerprint", fp[:12])
		}
	}

	logger.Thesis(ctx, fp, result.Tickers, string(result.Sentiment), origin,
		"backend", completion.Backend, "degraded", completion.Degraded)
	op.End("origin", origin, "cached", cacheable)

	return result
}
