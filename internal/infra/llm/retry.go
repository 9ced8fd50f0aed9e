// Package llm holds the retry policy used by the chat pipeline's
// answer/title/suggestion calls, branching on the classified
// ProviderKind rather than sniffing error strings. The ingest pipeline's
// embedding batches do not go through it.
package llm

import (
	"context"
	"math"
	"math/rand"
	"time"

	apperrors "github.com/yanqian/ai-helloworld/pkg/errors"
)

// RetryPolicy implements the retry contract used by the chat pipeline's provider calls: up to 3
// attempts, exponential backoff with jitter, retrying only on transient
// provider signals.
type RetryPolicy struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Base         float64
	Jitter       float64
	Sleep        func(time.Duration)
}

// DefaultRetryPolicy matches the chat/upload numbers: 3 attempts, 1s initial delay,
// base-2 exponential growth capped at 30s, ±50% jitter.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:  3,
		InitialDelay: time.Second,
		MaxDelay:     30 * time.Second,
		Base:         2,
		Jitter:       0.5,
		Sleep:        time.Sleep,
	}
}

// Do runs fn up to MaxAttempts times, retrying only when the error is a
// ProviderError whose kind is retryable. Other errors fail fast.
func (p RetryPolicy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	var lastErr error
	for attempt := 0; attempt < p.MaxAttempts; attempt++ {
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if !retryable(lastErr) || attempt == p.MaxAttempts-1 {
			return lastErr
		}
		delay := p.delayFor(attempt)
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if p.Sleep != nil {
			p.Sleep(delay)
		}
	}
	return lastErr
}

func (p RetryPolicy) delayFor(attempt int) time.Duration {
	base := float64(p.InitialDelay) * math.Pow(p.Base, float64(attempt))
	if base > float64(p.MaxDelay) {
		base = float64(p.MaxDelay)
	}
	jitterRange := base * p.Jitter
	jittered := base + (rand.Float64()*2-1)*jitterRange
	if jittered < 0 {
		jittered = 0
	}
	return time.Duration(jittered)
}

// retryable reports whether err should trigger another attempt: rate-limit,
// timeout, or provider-saturation signals only.
func retryable(err error) bool {
	appErr, ok := apperrors.As(err)
	if !ok {
		return false
	}
	if appErr.Code == apperrors.CodeRateLimited {
		return true
	}
	if appErr.Code != apperrors.CodeProvider {
		return false
	}
	switch appErr.Provider {
	case apperrors.ProviderRateLimited, apperrors.ProviderTimeout:
		return true
	default:
		return false
	}
}
