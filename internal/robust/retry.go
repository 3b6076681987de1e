package robust

import (
	"context"
	"fmt"
	"time"

	"github.com/avast/retry-go/v4"
)

// RetryPolicy configures exponential backoff for a unit of work.
type RetryPolicy struct {
	MaxAttempts int           // total attempts, including the first
	BaseDelay   time.Duration // delay before the second attempt
	Factor      float64       // multiplicative backoff factor
	MaxDelay    time.Duration // backoff cap
}

// DefaultRetryPolicy matches the converter defaults: 3 attempts, 1s base,
// doubling, capped at 30s.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   time.Second,
		Factor:      2.0,
		MaxDelay:    30 * time.Second,
	}
}

func (p RetryPolicy) normalized() RetryPolicy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 1
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = time.Second
	}
	if p.Factor < 1 {
		p.Factor = 2.0
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = 30 * time.Second
	}
	return p
}

// delayFor returns the backoff delay before attempt n (0-indexed retry count).
func (p RetryPolicy) delayFor(n uint) time.Duration {
	d := float64(p.BaseDelay)
	for i := uint(0); i < n; i++ {
		d *= p.Factor
		if d >= float64(p.MaxDelay) {
			return p.MaxDelay
		}
	}
	if d > float64(p.MaxDelay) {
		return p.MaxDelay
	}
	return time.Duration(d)
}

// Do runs fn with retries per policy. Only errors classified as retryable are
// retried; everything else propagates immediately. The returned error is always
// tagged with the pipeline taxonomy.
func Do[T any](ctx context.Context, policy RetryPolicy, fn func(context.Context) (T, error)) (T, error) {
	p := policy.normalized()

	result, err := retry.DoWithData(
		func() (T, error) {
			return fn(ctx)
		},
		retry.Context(ctx),
		retry.Attempts(uint(p.MaxAttempts)),
		retry.DelayType(func(n uint, _ error, _ *retry.Config) time.Duration {
			return p.delayFor(n)
		}),
		retry.RetryIf(IsRetryable),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return result, Classify(err)
	}
	return result, nil
}

// WithRetry decorates fn with the retry policy.
func WithRetry[T any](policy RetryPolicy, fn func(context.Context) (T, error)) func(context.Context) (T, error) {
	return func(ctx context.Context) (T, error) {
		return Do(ctx, policy, fn)
	}
}

// WithTimeout decorates fn with an independent per-call timeout. Expiry is
// reported as a Timeout error, which is itself retryable.
func WithTimeout[T any](timeout time.Duration, fn func(context.Context) (T, error)) func(context.Context) (T, error) {
	return func(ctx context.Context) (T, error) {
		if timeout <= 0 {
			return fn(ctx)
		}
		tctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		result, err := fn(tctx)
		if err != nil && tctx.Err() == context.DeadlineExceeded {
			return result, TimeoutError(fmt.Errorf("unit of work exceeded %s: %w", timeout, err))
		}
		return result, err
	}
}

// WithRateLimit decorates fn so it first acquires a slot from the limiter and
// always releases it, including on failure.
func WithRateLimit[T any](limiter *Limiter, fn func(context.Context) (T, error)) func(context.Context) (T, error) {
	return func(ctx context.Context) (T, error) {
		if limiter != nil {
			if err := limiter.Acquire(ctx); err != nil {
				var zero T
				return zero, err
			}
			defer limiter.Release()
		}
		return fn(ctx)
	}
}
