package providers

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"
)

// RetryPolicy configures WithRetry's exponential backoff.
type RetryPolicy struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultRetryPolicy matches the adapter contract's default: 3 attempts,
// starting at 500ms, capped at 8s, with jitter.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:     3,
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     8 * time.Second,
	}
}

// WithRetry runs fn, retrying only on ErrTransient-classified errors up to
// policy.MaxAttempts times with exponential backoff. BadRequest and
// UpstreamMalformed errors return immediately, since retrying them can't help.
func WithRetry[T any](ctx context.Context, policy RetryPolicy, provider string, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = policy.InitialInterval
	b.MaxInterval = policy.MaxInterval
	b.MaxElapsedTime = 0 // bounded by MaxAttempts below, not wall-clock

	bo := backoff.WithMaxRetries(b, uint64(policy.MaxAttempts-1))
	bo = backoff.WithContext(bo, ctx)

	var result T
	attempt := 0
	operation := func() error {
		attempt++
		var err error
		result, err = fn(ctx)
		if err == nil {
			return nil
		}

		classified := Classify(err)
		if errors.Is(classified, ErrBadRequest) || errors.Is(classified, ErrUpstreamMalformed) {
			return backoff.Permanent(classified)
		}

		log.Warn().
			Str("provider", provider).
			Int("attempt", attempt).
			Err(classified).
			Msg("provider call failed, retrying")
		return classified
	}

	if err := backoff.Retry(operation, bo); err != nil {
		return zero, err
	}
	return result, nil
}
