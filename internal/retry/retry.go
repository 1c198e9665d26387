// Package retry runs an operation under a bounded exponential backoff.
package retry

import (
	"context"
	"errors"
	"time"
)

// Backoff describes the attempt budget and delay growth.
type Backoff struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int
	Initial     time.Duration
	Multiplier  float64
	// Max caps a single delay.
	Max time.Duration
}

// DefaultBackoff is three attempts waiting 1s then 2s, capped at 10s.
var DefaultBackoff = Backoff{MaxAttempts: 3, Initial: time.Second, Multiplier: 2, Max: 10 * time.Second}

// Delay returns the wait before attempt n+1, where n is the attempt that just failed (1-based).
func (b Backoff) Delay(n int) time.Duration {
	if n < 1 {
		return 0
	}
	d := float64(b.Initial)
	mult := b.Multiplier
	if mult < 1 {
		mult = 1
	}
	for i := 1; i < n; i++ {
		d *= mult
		if b.Max > 0 && d >= float64(b.Max) {
			return b.Max
		}
	}
	if b.Max > 0 && time.Duration(d) > b.Max {
		return b.Max
	}
	return time.Duration(d)
}

// Op is one attempt. attempt starts at 1.
type Op func(ctx context.Context, attempt int) error

type options struct {
	retryIf func(attempt int, err error) bool
	onRetry func(attempt int, err error, wait time.Duration)
	sleep   func(ctx context.Context, d time.Duration) error
}

// Option customises Do.
type Option func(*options)

// WithRetryIf decides whether a failed attempt is retried. Without it every error is retried.
func WithRetryIf(fn func(attempt int, err error) bool) Option {
	return func(o *options) { o.retryIf = fn }
}

// WithOnRetry is called before each wait.
func WithOnRetry(fn func(attempt int, err error, wait time.Duration)) Option {
	return func(o *options) { o.onRetry = fn }
}

// WithSleep replaces the timer used between attempts.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(o *options) { o.sleep = fn }
}

// ErrNoAttempts is returned when the backoff allows zero attempts.
var ErrNoAttempts = errors.New("retry: backoff allows no attempts")

// Do calls op until it succeeds, the budget is spent, retryIf declines, or ctx ends.
// It returns the number of attempts made and the last error.
func Do(ctx context.Context, b Backoff, op Op, opts ...Option) (int, error) {
	o := options{sleep: sleepCtx}
	for _, opt := range opts {
		opt(&o)
	}
	if b.MaxAttempts < 1 {
		return 0, ErrNoAttempts
	}

	var err error
	for attempt := 1; attempt <= b.MaxAttempts; attempt++ {
		err = op(ctx, attempt)
		if err == nil {
			return attempt, nil
		}
		if attempt == b.MaxAttempts {
			return attempt, err
		}
		if o.retryIf != nil && !o.retryIf(attempt, err) {
			return attempt, err
		}
		wait := b.Delay(attempt)
		if o.onRetry != nil {
			o.onRetry(attempt, err, wait)
		}
		if serr := o.sleep(ctx, wait); serr != nil {
			return attempt, err
		}
	}
	return b.MaxAttempts, err
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
