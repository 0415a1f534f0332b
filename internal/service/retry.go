package service

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/cloo-solutions/inkwell/internal/domain"
	"github.com/cloo-solutions/inkwell/internal/metrics"
)

// RetryConfig bounds calls to external providers.
type RetryConfig struct {
	// Timeout applies to each attempt.
	Timeout         time.Duration
	MaxRetries      uint64
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultRetryConfig provides sane defaults for provider calls.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		Timeout:         60 * time.Second,
		MaxRetries:      3,
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     8 * time.Second,
	}
}

// callWithRetry runs fn under a per-attempt timeout and retries retryable
// provider errors with exponential backoff.
func callWithRetry[T any](ctx context.Context, cfg RetryConfig, operation string, fn func(ctx context.Context) (T, error)) (T, error) {
	eb := backoff.NewExponentialBackOff()
	if cfg.InitialInterval > 0 {
		eb.InitialInterval = cfg.InitialInterval
	}
	if cfg.MaxInterval > 0 {
		eb.MaxInterval = cfg.MaxInterval
	}
	eb.MaxElapsedTime = 0

	policy := backoff.WithContext(backoff.WithMaxRetries(eb, cfg.MaxRetries), ctx)

	return backoff.RetryWithData(func() (T, error) {
		attemptCtx := ctx
		cancel := func() {}
		if cfg.Timeout > 0 {
			attemptCtx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		}
		defer cancel()

		start := time.Now()
		res, err := fn(attemptCtx)
		metrics.ObserveProviderCall(operation, start, err)
		if err == nil {
			return res, nil
		}

		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return res, domain.NewProviderError(operation, true, err)
		}
		if ctx.Err() != nil || !domain.IsRetryable(err) {
			return res, backoff.Permanent(err)
		}
		return res, err
	}, policy)
}
