package source

import (
	"context"
	"errors"
	"fmt"
)

// FirstOf tries candidate endpoints in order and returns the first result that
// fn produces without error. A failing candidate never stops the loop; its
// error is kept and the next one is tried.
//
// When every candidate fails the returned error joins all of them and is
// classified as ErrTransient if any candidate failed transiently, so the caller
// may retry the whole list, or ErrNotFound if every candidate reported not found.
func FirstOf[T any](ctx context.Context, endpoints []string, fn func(ctx context.Context, endpoint string) (T, error)) (T, error) {
	var zero T
	if len(endpoints) == 0 {
		return zero, errors.New("no endpoints configured")
	}

	errs := make([]error, 0, len(endpoints))
	transient, notFound := false, 0

	for _, endpoint := range endpoints {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		result, err := fn(ctx, endpoint)
		if err == nil {
			return result, nil
		}
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}

		errs = append(errs, fmt.Errorf("%s: %w", endpoint, err))
		switch {
		case IsTransient(err):
			transient = true
		case IsNotFound(err):
			notFound++
		}
	}

	joined := errors.Join(errs...)
	switch {
	case transient:
		return zero, fmt.Errorf("%w: all %d endpoints failed: %w", ErrTransient, len(endpoints), joined)
	case notFound == len(endpoints):
		return zero, fmt.Errorf("%w: %w", ErrNotFound, joined)
	default:
		return zero, joined
	}
}
