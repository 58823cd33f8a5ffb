package session

import (
	"context"
	"errors"
	"time"

	"github.com/yndnr/idbridge/internal/core/domain"
)

// callProvider runs fn bounded by d. The provider may ignore ctx, so the
// call runs in its own goroutine and is abandoned on timeout. A timeout is
// reported as ErrProviderTimeout; any other failure as ErrProviderError.
func callProvider[T any](ctx context.Context, d time.Duration, fn func(context.Context) (T, error)) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	type result struct {
		v   T
		err error
	}
	ch := make(chan result, 1)
	go func() {
		v, err := fn(ctx)
		ch <- result{v: v, err: err}
	}()

	var zero T
	select {
	case r := <-ch:
		if r.err == nil {
			return r.v, nil
		}
		return zero, classifyProviderErr(r.err)
	case <-ctx.Done():
		return zero, domain.ErrProviderTimeout.WithCause(ctx.Err())
	}
}

func classifyProviderErr(err error) error {
	switch {
	case errors.Is(err, domain.ErrProviderTimeout), errors.Is(err, domain.ErrProviderError):
		return err
	case errors.Is(err, context.DeadlineExceeded):
		return domain.ErrProviderTimeout.WithCause(err)
	default:
		return domain.ErrProviderError.WithCause(err)
	}
}
