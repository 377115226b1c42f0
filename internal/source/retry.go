package source

import (
	"context"
	"time"
)

// RetryPolicy bounds how often a transient failure is retried.
type RetryPolicy struct {
	Retries int           // additional attempts after the first
	Backoff time.Duration // fixed wait between attempts

	// OnRetry, when set, is called before each retry.
	OnRetry func(attempt int, err error)
}

// DefaultRetryPolicy retries twice with a fixed half-second pause.
var DefaultRetryPolicy = RetryPolicy{Retries: 2, Backoff: 500 * time.Millisecond}

// Retry calls fn until it succeeds, fails with a non-transient error, the
// retries are used up, or ctx is done. Waiting between attempts honours ctx.
func Retry[T any](ctx context.Context, policy RetryPolicy, fn func(context.Context) (T, error)) (T, error) {
	var (
		result T
		err    error
	)

	for attempt := 0; ; attempt++ {
		result, err = fn(ctx)
		if err == nil || !IsTransient(err) || attempt >= policy.Retries {
			return result, err
		}
		// The caller's own deadline is not a reason to try again.
		if ctx.Err() != nil {
			return result, err
		}

		if policy.OnRetry != nil {
			policy.OnRetry(attempt+1, err)
		}

		if policy.Backoff > 0 {
			timer := time.NewTimer(policy.Backoff)
			select {
			case <-ctx.Done():
				timer.Stop()
				return result, err
			case <-timer.C:
			}
		}
	}
}
