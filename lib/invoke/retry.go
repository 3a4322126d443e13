// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package invoke

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bureau-foundation/lull/lib/clock"
)

// permanentError marks a failure that retrying cannot fix.
type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not retryable. WithRetry returns it at once.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err, or anything it wraps, was marked
// with Permanent.
func IsPermanent(err error) bool {
	var permanent *permanentError
	return errors.As(err, &permanent)
}

// RetryPolicy configures WithRetry.
type RetryPolicy struct {
	// MaxAttempts is the total number of attempts including the first.
	// Values below 1 mean 1.
	MaxAttempts int

	// InitialBackoff is the delay before the second attempt. Default:
	// 1 second.
	InitialBackoff time.Duration

	// MaxBackoff caps the doubling delay. Default: 30 seconds.
	MaxBackoff time.Duration
}

// ExhaustedError is returned when every attempt failed. Err is the last
// attempt's error.
type ExhaustedError struct {
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("downstream invocation failed after %d attempts: %v", e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error { return e.Err }

// WithRetry retries failed calls to next with exponential backoff
// measured on clk. Permanent errors and cancellation of the caller's
// context end the loop immediately. With MaxAttempts <= 1, next is
// returned unchanged.
func WithRetry(next Invoker, policy RetryPolicy, clk clock.Clock, logger *slog.Logger) Invoker {
	if policy.MaxAttempts <= 1 {
		return next
	}
	initialBackoff := policy.InitialBackoff
	if initialBackoff <= 0 {
		initialBackoff = time.Second
	}
	maxBackoff := policy.MaxBackoff
	if maxBackoff <= 0 {
		maxBackoff = 30 * time.Second
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return Func(func(ctx context.Context, input string) (string, error) {
		backoff := initialBackoff
		var err error
		for attempt := 1; ; attempt++ {
			var result string
			result, err = next.Execute(ctx, input)
			if err == nil {
				return result, nil
			}
			if IsPermanent(err) || ctx.Err() != nil {
				return "", err
			}
			if attempt == policy.MaxAttempts {
				return "", &ExhaustedError{Attempts: attempt, Err: err}
			}

			logger.Warn("downstream invocation failed, retrying",
				"attempt", attempt,
				"max_attempts", policy.MaxAttempts,
				"backoff", backoff,
				"error", err,
			)
			select {
			case <-ctx.Done():
				return "", fmt.Errorf("%w (retry abandoned: %w)", err, ctx.Err())
			case <-clk.After(backoff):
			}
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
		}
	})
}
