package providers

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/i474232898/prayer-times/internal/prayer"
)

// RateLimitedRegional wraps a RegionalSource with a token bucket; the
// regional API enforces a small per-key quota.
type RateLimitedRegional struct {
	source  prayer.RegionalSource
	limiter *rate.Limiter
}

// NewRateLimitedRegional allows rps requests per second with the given burst.
func NewRateLimitedRegional(source prayer.RegionalSource, rps float64, burst int) *RateLimitedRegional {
	return &RateLimitedRegional{
		source:  source,
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
	}
}

func (r *RateLimitedRegional) Name() string {
	return r.source.Name()
}

func (r *RateLimitedRegional) Coverage() prayer.Region {
	return r.source.Coverage()
}

func (r *RateLimitedRegional) Fetch(ctx context.Context, q prayer.Query) (prayer.SourceResult, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return prayer.SourceResult{}, fmt.Errorf("rate limit wait canceled: %w", err)
	}
	return r.source.Fetch(ctx, q)
}

var _ prayer.RegionalSource = (*RateLimitedRegional)(nil)
