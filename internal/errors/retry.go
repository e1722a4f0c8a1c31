package errors

import (
	"context"
	"time"
)

// RetryFunc is one attempt of a retried operation. Attempts are numbered from 1.
type RetryFunc func(ctx context.Context, attempt int) error

// Retrier runs an operation until it succeeds, the attempt budget is spent,
// or the policy declines to retry.
type Retrier struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int

	// ShouldRetry decides whether a failed attempt may be retried.
	// A nil ShouldRetry retries transient errors only.
	ShouldRetry func(err error) bool

	// Backoff returns the wait before the next attempt.
	Backoff func(attempt int, err error) time.Duration

	// OnRetry runs after the backoff and before the next attempt. A non-nil
	// return aborts the loop with that error.
	OnRetry func(ctx context.Context, attempt int, err error) error

	// Sleep waits for d or until ctx is done. Defaults to the package Sleep.
	Sleep func(ctx context.Context, d time.Duration) error
}

// RetryResult holds the result of a retry operation.
type RetryResult struct {
	Attempts  int           // Number of attempts made
	LastError error         // The last error encountered
	Duration  time.Duration // Total time spent, waits included
	Success   bool          // Whether the operation succeeded
}

// Do executes fn with retries.
func (r *Retrier) Do(ctx context.Context, fn RetryFunc) *RetryResult {
	result := &RetryResult{}
	start := time.Now()

	maxAttempts := r.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	sleep := r.Sleep
	if sleep == nil {
		sleep = Sleep
	}

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		result.Attempts = attempt

		err := fn(ctx, attempt)
		if err == nil {
			result.Success = true
			result.LastError = nil
			result.Duration = time.Since(start)
			return result
		}
		result.LastError = err

		if ctx.Err() != nil {
			result.LastError = NewCancelledError("", "retry")
			break
		}

		if attempt == maxAttempts || !r.shouldRetry(err) {
			break
		}

		if r.Backoff != nil {
			if d := r.Backoff(attempt, err); d > 0 {
				if err := sleep(ctx, d); err != nil {
					result.LastError = NewCancelledError("", "retry")
					break
				}
			}
		}

		if r.OnRetry != nil {
			if hookErr := r.OnRetry(ctx, attempt, err); hookErr != nil {
				result.LastError = hookErr
				break
			}
		}
	}

	result.Duration = time.Since(start)
	return result
}

func (r *Retrier) shouldRetry(err error) bool {
	if r.ShouldRetry != nil {
		return r.ShouldRetry(err)
	}
	return IsTransient(err)
}

// DoWithResult executes a function that returns a value and error.
func DoWithResult[T any](ctx context.Context, r *Retrier, fn func(ctx context.Context, attempt int) (T, error)) (T, *RetryResult) {
	var result T

	retryResult := r.Do(ctx, func(ctx context.Context, attempt int) error {
		v, err := fn(ctx, attempt)
		if err == nil {
			result = v
		}
		return err
	})

	return result, retryResult
}

// Sleep waits for d or until ctx is done, whichever comes first.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
