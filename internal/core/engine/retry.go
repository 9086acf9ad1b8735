package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/quipkit/quipkit/internal/core"
)

// Retry defaults.
const (
	DefaultRetryAttempts = 60
	DefaultRetryCooldown = 60 * time.Second
)

// GivenUpError is returned when every attempt was rejected by the rate limiter.
type GivenUpError struct {
	Attempts int
	Err      error
}

func (e *GivenUpError) Error() string {
	return fmt.Sprintf("gave up after %d rate limited attempts: %v", e.Attempts, e.Err)
}

func (e *GivenUpError) Unwrap() error {
	return e.Err
}

// RetryDriver retries operations that fail with a rate limit error, sleeping
// a fixed cooldown between attempts. Any other error is returned at once.
//
// This is a fallback behind the coordinator's proactive delay: it covers
// quota shared with other processes and hard limits the smoothing did not avoid.
type RetryDriver struct {
	MaxAttempts int
	Cooldown    time.Duration

	// NewTimer overrides the cooldown timer; nil uses a real timer.
	NewTimer func() backoff.Timer

	// OnRetry is called before each cooldown with the attempt that failed.
	OnRetry func(attempt int, err error, wait time.Duration)
}

// NewRetryDriver returns a driver using the default attempts and cooldown.
func NewRetryDriver() *RetryDriver {
	return &RetryDriver{MaxAttempts: DefaultRetryAttempts, Cooldown: DefaultRetryCooldown}
}

// Do runs op under the retry policy.
func (d *RetryDriver) Do(ctx context.Context, op func(ctx context.Context) error) error {
	_, err := Retry(ctx, d, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	})
	return err
}

// Retry runs op under d's policy and returns its result.
func Retry[T any](ctx context.Context, d *RetryDriver, op func(ctx context.Context) (T, error)) (T, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if d == nil {
		d = NewRetryDriver()
	}

	maxAttempts := d.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultRetryAttempts
	}
	cooldown := d.Cooldown
	if cooldown <= 0 {
		cooldown = DefaultRetryCooldown
	}

	attempts := 0
	operation := func() (T, error) {
		attempts++
		result, err := op(ctx)
		if err != nil && !core.IsRateLimited(err) {
			return result, backoff.Permanent(err)
		}
		return result, err
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(cooldown), uint64(maxAttempts-1)),
		ctx,
	)

	notify := func(err error, wait time.Duration) {
		if d.OnRetry != nil {
			d.OnRetry(attempts, err, wait)
		}
	}

	var timer backoff.Timer
	if d.NewTimer != nil {
		timer = d.NewTimer()
	}

	result, err := backoff.RetryNotifyWithTimerAndData(operation, policy, notify, timer)
	if err == nil {
		return result, nil
	}
	if ctx.Err() == nil && attempts >= maxAttempts && core.IsRateLimited(err) {
		return result, &GivenUpError{Attempts: attempts, Err: err}
	}
	return result, err
}
