package source

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/anineesan/anineesan-server/internal/domain"
	"github.com/anineesan/anineesan-server/internal/metrics"
)

// BreakerSettings configures the per-adapter circuit breaker.
type BreakerSettings struct {
	// ConsecutiveFailures trips the breaker. Zero disables it.
	ConsecutiveFailures uint32
	// OpenTimeout is how long the breaker stays open before probing again.
	OpenTimeout time.Duration
}

// Options configures a Resilient adapter.
type Options struct {
	Timeout time.Duration // per attempt
	Retry   RetryPolicy
	Breaker BreakerSettings
	Logger  *slog.Logger
}

// Resilient wraps an Adapter with a per-attempt timeout, bounded retries of
// transient failures and a circuit breaker, and absorbs every upstream failure
// into an empty result. The only error it returns is the caller's own context
// error.
type Resilient struct {
	inner   Adapter
	timeout time.Duration
	retry   RetryPolicy
	breaker *gobreaker.CircuitBreaker[any]
	logger  *slog.Logger
}

var _ Adapter = (*Resilient)(nil)

// NewResilient wraps inner.
func NewResilient(inner Adapter, opts Options) *Resilient {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	name := inner.Source().String()
	logger := opts.Logger.With("source", name)

	r := &Resilient{
		inner:   inner,
		timeout: opts.Timeout,
		retry:   opts.Retry,
		logger:  logger,
	}

	retryHook := opts.Retry.OnRetry
	r.retry.OnRetry = func(attempt int, err error) {
		metrics.AdapterRetries.WithLabelValues(name).Inc()
		logger.Debug("retrying upstream call", "attempt", attempt, "error", err)
		if retryHook != nil {
			retryHook(attempt, err)
		}
	}

	if opts.Breaker.ConsecutiveFailures > 0 {
		threshold := opts.Breaker.ConsecutiveFailures
		r.breaker = gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
			Name:        name,
			MaxRequests: 1,
			Timeout:     opts.Breaker.OpenTimeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= threshold
			},
			// Only upstream outages count against the breaker.
			IsSuccessful: func(err error) bool {
				return err == nil || !IsTransient(err)
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				metrics.BreakerState.WithLabelValues(name).Set(float64(to))
				logger.Warn("circuit breaker state changed", "from", from.String(), "to", to.String())
			},
		})
	}

	return r
}

// Source returns the wrapped adapter's source.
func (r *Resilient) Source() domain.Source {
	return r.inner.Source()
}

// FetchByQuery runs the wrapped search. Failures become an empty result.
func (r *Resilient) FetchByQuery(ctx context.Context, text string) ([]domain.RawRecord, error) {
	started := time.Now()
	records, err := call(ctx, r, func(ctx context.Context) ([]domain.RawRecord, error) {
		return r.inner.FetchByQuery(ctx, text)
	})
	if err = r.absorb(ctx, "query", text, started, len(records), err); err != nil || records == nil {
		return nil, err
	}
	return records, nil
}

// FetchByID runs the wrapped lookup. Failures become a nil record.
func (r *Resilient) FetchByID(ctx context.Context, id int) (*domain.RawRecord, error) {
	started := time.Now()
	record, err := call(ctx, r, func(ctx context.Context) (*domain.RawRecord, error) {
		return r.inner.FetchByID(ctx, id)
	})
	found := 0
	if record != nil {
		found = 1
	}
	if err = r.absorb(ctx, "id", strconv.Itoa(id), started, found, err); err != nil {
		return nil, err
	}
	return record, nil
}

func call[T any](ctx context.Context, r *Resilient, fn func(context.Context) (T, error)) (T, error) {
	return Retry(ctx, r.retry, func(ctx context.Context) (T, error) {
		attemptCtx := ctx
		if r.timeout > 0 {
			var cancel context.CancelFunc
			attemptCtx, cancel = context.WithTimeout(ctx, r.timeout)
			defer cancel()
		}

		if r.breaker == nil {
			return fn(attemptCtx)
		}

		var zero T
		out, err := r.breaker.Execute(func() (any, error) {
			return fn(attemptCtx)
		})
		if err != nil {
			return zero, err
		}
		typed, _ := out.(T)
		return typed, nil
	})
}

// absorb logs and counts the outcome of a call and decides what the caller sees.
func (r *Resilient) absorb(ctx context.Context, op, target string, started time.Time, n int, err error) error {
	name := r.inner.Source().String()

	if err == nil {
		outcome := metrics.OutcomeOK
		if n == 0 {
			outcome = metrics.OutcomeEmpty
		}
		metrics.ObserveAdapter(name, op, outcome, started)
		return nil
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		metrics.ObserveAdapter(name, op, metrics.OutcomeLate, started)
		return ctxErr
	}

	switch {
	case IsNotFound(err):
		metrics.ObserveAdapter(name, op, metrics.OutcomeNotFound, started)
		r.logger.Debug("upstream has no result", "op", op, "target", target)
	case IsParse(err):
		metrics.ObserveAdapter(name, op, metrics.OutcomeParse, started)
		r.logger.Warn("upstream response could not be parsed", "op", op, "target", target, "error", err)
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.ObserveAdapter(name, op, metrics.OutcomeOpen, started)
		r.logger.Debug("circuit open, skipping upstream", "op", op, "target", target)
	case IsTransient(err):
		metrics.ObserveAdapter(name, op, metrics.OutcomeTransient, started)
		r.logger.Warn("upstream unavailable after retries", "op", op, "target", target, "error", err)
	default:
		metrics.ObserveAdapter(name, op, metrics.OutcomeError, started)
		r.logger.Warn("upstream call failed", "op", op, "target", target, "error", err)
	}
	return nil
}
