package providers

import (
	"context"
	"errors"
	"testing"
	"time"
)

func fastRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, InitialInterval: time.Millisecond, MaxInterval: 5 * time.Millisecond}
}

func TestWithRetry_SucceedsAfterTransientErrors(t *testing.T) {
	attempts := 0
	result, err := WithRetry(context.Background(), fastRetryPolicy(), "test", func(ctx context.Context) (string, error) {
		attempts++
		if attempts < 3 {
			return "", errors.New("503 service unavailable")
		}
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "ok" {
		t.Errorf("got %q, want %q", result, "ok")
	}
	if attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts)
	}
}

func TestWithRetry_BadRequestDoesNotRetry(t *testing.T) {
	attempts := 0
	_, err := WithRetry(context.Background(), fastRetryPolicy(), "test", func(ctx context.Context) (string, error) {
		attempts++
		return "", errors.New("400 invalid argument")
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if attempts != 1 {
		t.Errorf("expected exactly 1 attempt for a non-retryable error, got %d", attempts)
	}
	if !errors.Is(err, ErrBadRequest) {
		t.Errorf("expected ErrBadRequest, got %v", err)
	}
}

func TestWithRetry_ExhaustsMaxAttempts(t *testing.T) {
	attempts := 0
	_, err := WithRetry(context.Background(), fastRetryPolicy(), "test", func(ctx context.Context) (string, error) {
		attempts++
		return "", errors.New("503 service unavailable")
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if attempts != 3 {
		t.Errorf("expected 3 attempts (MaxAttempts), got %d", attempts)
	}
}
