package crawler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// DefaultMaxPending bounds how many callers may wait on one Throttle.
const DefaultMaxPending = 16

// ErrThrottleQueueFull is returned when a caller arrives while every pending
// slot of the throttle is taken.
var ErrThrottleQueueFull = errors.New("throttle queue is full")

// Throttle spaces the starts of consecutive operations by at least a fixed
// interval. Waiting callers are served in arrival order and each exactly once;
// at most maxPending callers can wait at the same time.
type Throttle struct {
	wait    time.Duration
	limiter *rate.Limiter
	pending *semaphore.Weighted
}

// NewThrottle creates a throttle with the given minimum spacing. A zero or
// negative wait disables pacing. maxPending <= 0 uses DefaultMaxPending.
func NewThrottle(wait time.Duration, maxPending int) *Throttle {
	if maxPending <= 0 {
		maxPending = DefaultMaxPending
	}

	limit := rate.Inf
	if wait > 0 {
		limit = rate.Every(wait)
	}

	return &Throttle{
		wait:    wait,
		limiter: rate.NewLimiter(limit, 1),
		pending: semaphore.NewWeighted(int64(maxPending)),
	}
}

// Interval returns the configured minimum spacing.
func (t *Throttle) Interval() time.Duration {
	return t.wait
}

// Wait blocks until the caller may start its operation.
// An idle throttle lets the caller through immediately.
func (t *Throttle) Wait(ctx context.Context) error {
	if !t.pending.TryAcquire(1) {
		return ErrThrottleQueueFull
	}
	defer t.pending.Release(1)

	start := time.Now()
	if err := t.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("throttle wait cancelled: %w", err)
	}

	if waited := time.Since(start); waited > time.Millisecond {
		log.Debug().
			Dur("waited", waited).
			Dur("interval", t.wait).
			Msg("Throttle delayed request")
	}
	return nil
}

// Do waits for the throttle and then runs fn.
func (t *Throttle) Do(ctx context.Context, fn func(context.Context) error) error {
	if err := t.Wait(ctx); err != nil {
		return err
	}
	return fn(ctx)
}

// Throttled runs fn behind the throttle and returns its result.
func Throttled[T any](ctx context.Context, t *Throttle, fn func(context.Context) (T, error)) (T, error) {
	if err := t.Wait(ctx); err != nil {
		var zero T
		return zero, err
	}
	return fn(ctx)
}
