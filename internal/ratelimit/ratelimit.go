package ratelimit

import (
	"context"
	"sync"
	"time"
)

// RateLimiter is a token bucket shared by every caller that must respect one
// provider-wide request rate. A nil *RateLimiter never blocks.
type RateLimiter struct {
	mu         sync.Mutex
	tokens     int
	maxTokens  int
	interval   time.Duration
	lastRefill time.Time
	now        func() time.Time
}

// New returns a bucket holding up to burst tokens, refilled one per interval.
// interval <= 0 disables limiting and returns nil.
func New(burst int, interval time.Duration) *RateLimiter {
	if interval <= 0 {
		return nil
	}
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{
		tokens:     burst,
		maxTokens:  burst,
		interval:   interval,
		lastRefill: time.Now(),
		now:        time.Now,
	}
}

// Wait blocks until a token is taken or ctx is done.
func (rl *RateLimiter) Wait(ctx context.Context) error {
	if rl == nil {
		return ctx.Err()
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		delay, ok := rl.reserve()
		if ok {
			return nil
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// reserve takes a token if one is available, otherwise reports how long until the next refill.
func (rl *RateLimiter) reserve() (time.Duration, bool) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.refill()
	if rl.tokens > 0 {
		rl.tokens--
		return 0, true
	}
	return rl.interval - rl.now().Sub(rl.lastRefill), false
}

func (rl *RateLimiter) refill() {
	now := rl.now()
	elapsed := now.Sub(rl.lastRefill)
	add := int(elapsed / rl.interval)
	if add <= 0 {
		return
	}

	rl.tokens += add
	if rl.tokens >= rl.maxTokens {
		rl.tokens = rl.maxTokens
		rl.lastRefill = now
		return
	}
	// keep the partial interval so refills do not drift
	rl.lastRefill = rl.lastRefill.Add(time.Duration(add) * rl.interval)
}

// Available reports the tokens currently in the bucket.
func (rl *RateLimiter) Available() int {
	if rl == nil {
		return 0
	}
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.refill()
	return rl.tokens
}
