package multiratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// ErrRateLimited is returned by Acquire when the wait for a token would exceed MaxWait
type ErrRateLimited struct {
	Key  string
	Wait time.Duration
}

func (e *ErrRateLimited) Error() string {
	return fmt.Sprintf("ratelimited on %s, would have to wait %s", e.Key, e.Wait.Round(time.Millisecond))
}

// MultiRatelimiter keeps one token bucket per key, created on first use
type MultiRatelimiter[T comparable] struct {
	mu       sync.Mutex
	limiters map[T]*rate.Limiter

	maxPerSecond float64
	maxBurst     int

	// MaxWait is the longest Acquire will suspend the caller, 0 means no ceiling
	MaxWait time.Duration
}

func NewMultiRatelimiter[T comparable](maxPerSecond float64, maxBurst int) *MultiRatelimiter[T] {
	multiLimiter := &MultiRatelimiter[T]{
		limiters: make(map[T]*rate.Limiter),

		maxPerSecond: maxPerSecond,
		maxBurst:     maxBurst,
	}

	return multiLimiter
}

func (multi *MultiRatelimiter[T]) findCreateLimiter(key T) *rate.Limiter {
	multi.mu.Lock()
	defer multi.mu.Unlock()

	if current, ok := multi.limiters[key]; ok {
		return current
	}

	// not found, create it
	multi.limiters[key] = rate.NewLimiter(rate.Limit(multi.maxPerSecond), multi.maxBurst)
	return multi.limiters[key]
}

// Acquire suspends the caller until an action on key is permitted.
// It fails with ErrRateLimited without waiting if the required wait exceeds MaxWait,
// and with the context error if ctx ends first. In both cases the token is given back.
func (multi *MultiRatelimiter[T]) Acquire(ctx context.Context, key T) error {
	r := multi.findCreateLimiter(key).Reserve()
	if !r.OK() {
		return &ErrRateLimited{Key: fmt.Sprint(key)}
	}

	delay := r.Delay()
	if delay <= 0 {
		return nil
	}

	if multi.MaxWait > 0 && delay > multi.MaxWait {
		r.Cancel()
		return &ErrRateLimited{Key: fmt.Sprint(key), Wait: delay}
	}

	t := time.NewTimer(delay)
	defer t.Stop()

	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		r.Cancel()
		return ctx.Err()
	}
}
