// ABOUTME: Generic retry-with-policy wrapper for provider calls
// ABOUTME: Retries rate-limit errors with a configurable delay schedule

package ai

import (
	"context"
	"log/slog"
	"time"
)

// BackoffPolicy controls how rate-limited provider calls are retried.
// MaxRetries is the number of retries after the initial attempt; Delay maps
// the retry number (1-based) to a wait duration.
type BackoffPolicy struct {
	MaxRetries int
	Delay      func(retry int) time.Duration
}

// LinearBackoff returns a delay function growing by step each retry
// (step, 2*step, 3*step, ...).
func LinearBackoff(step time.Duration) func(int) time.Duration {
	return func(retry int) time.Duration {
		return time.Duration(retry) * step
	}
}

// DefaultBackoffPolicy retries rate limits three times, waiting 2s, 4s, 6s.
func DefaultBackoffPolicy() BackoffPolicy {
	return BackoffPolicy{MaxRetries: 3, Delay: LinearBackoff(2 * time.Second)}
}

// retryWithPolicy invokes fn, retrying only rate-limit errors per the
// policy. Once the budget is exhausted the error is reclassified as
// rate_limited_exhausted. Any other error class fails immediately.
// Context cancellation abandons the loop between attempts.
func retryWithPolicy(ctx context.Context, policy BackoffPolicy, logger *slog.Logger, fn func(context.Context) (string, error)) (string, error) {
	var lastErr error
	for retry := 0; ; retry++ {
		text, err := fn(ctx)
		if err == nil {
			return text, nil
		}
		if !IsRateLimited(err) {
			return "", err
		}
		lastErr = err
		if retry >= policy.MaxRetries {
			return "", wrapRateLimitExhausted(lastErr)
		}

		delay := policy.Delay(retry + 1)
		logger.Warn("provider rate limited, backing off",
			"retry", retry+1,
			"max_retries", policy.MaxRetries,
			"delay", delay,
		)
		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return "", &Error{Code: ErrTransport, Message: "generation abandoned", wrapped: ctx.Err()}
		}
	}
}

func wrapRateLimitExhausted(err error) *Error {
	return &Error{
		Code:    ErrRateLimitedExhausted,
		Message: "rate limit persisted after retries",
		wrapped: err,
	}
}
