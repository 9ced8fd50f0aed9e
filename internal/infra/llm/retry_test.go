package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	apperrors "github.com/yanqian/ai-helloworld/pkg/errors"
)

func noSleepPolicy() RetryPolicy {
	p := DefaultRetryPolicy()
	p.Sleep = func(time.Duration) {}
	return p
}

func TestDoRetriesOnRateLimit(t *testing.T) {
	p := noSleepPolicy()
	attempts := 0
	err := p.Do(context.Background(), func(ctx context.Context) error {
		attempts++
		if attempts < 3 {
			return apperrors.Provider(apperrors.ProviderRateLimited, "rate limited", nil)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected eventual success, got %v", err)
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
}

func TestDoFailsFastOnNonRetryable(t *testing.T) {
	p := noSleepPolicy()
	attempts := 0
	err := p.Do(context.Background(), func(ctx context.Context) error {
		attempts++
		return apperrors.Provider(apperrors.ProviderBadKey, "bad key", nil)
	})
	if err == nil {
		t.Fatalf("expected failure")
	}
	if attempts != 1 {
		t.Fatalf("expected fail-fast after 1 attempt, got %d", attempts)
	}
}

func TestDoExhaustsAfterMaxAttempts(t *testing.T) {
	p := noSleepPolicy()
	attempts := 0
	err := p.Do(context.Background(), func(ctx context.Context) error {
		attempts++
		return apperrors.Provider(apperrors.ProviderTimeout, "timeout", nil)
	})
	if err == nil {
		t.Fatalf("expected error after exhausting retries")
	}
	if attempts != p.MaxAttempts {
		t.Fatalf("expected %d attempts, got %d", p.MaxAttempts, attempts)
	}
}

func TestDoDoesNotRetryNonAppError(t *testing.T) {
	p := noSleepPolicy()
	attempts := 0
	err := p.Do(context.Background(), func(ctx context.Context) error {
		attempts++
		return errors.New("boom")
	})
	if err == nil || attempts != 1 {
		t.Fatalf("expected fail-fast on plain error, attempts=%d err=%v", attempts, err)
	}
}
