// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package invoke provides downstream operations for lull coordinators
// and the policies wrapped around them.
//
// A coordinator calls its invoker once per instance with the formatted
// batch and records whatever comes back. Everything between that call
// and the downstream program lives here: the per-attempt timeout, the
// retry policy, and the implementations themselves ([Echo] for offline
// runs, [Command] for an external agent program). [FromConfig] builds
// the chain the service uses:
//
//	WithRetry(WithTimeout(Command{...}, timeout), policy, clock)
//
// The coordinator never retries. Retry is a property of the invoker,
// so a failure the coordinator sees is final.
package invoke

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// DefaultTimeout bounds one downstream attempt when no timeout is
// configured.
const DefaultTimeout = 2 * time.Minute

// Invoker runs the downstream operation on one batch.
type Invoker interface {
	Execute(ctx context.Context, input string) (string, error)
}

// Func adapts a function to Invoker.
type Func func(ctx context.Context, input string) (string, error)

func (f Func) Execute(ctx context.Context, input string) (string, error) { return f(ctx, input) }

// Echo answers a batch without calling anything: the result is a
// markdown summary listing the batch lines.
type Echo struct{}

func (Echo) Execute(ctx context.Context, input string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	lines := strings.Split(input, "\n")
	var builder strings.Builder
	fmt.Fprintf(&builder, "## Processed %d %s\n\n", len(lines), plural(len(lines), "message", "messages"))
	for _, line := range lines {
		builder.WriteString("- ")
		builder.WriteString(line)
		builder.WriteByte('\n')
	}
	return builder.String(), nil
}

func plural(count int, singular, pluralForm string) string {
	if count == 1 {
		return singular
	}
	return pluralForm
}

// TimeoutError is returned when an attempt outlives its timeout.
type TimeoutError struct {
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("downstream invocation timed out after %s", e.Timeout)
}

// WithTimeout bounds every call to next with timeout, measured from the
// moment Execute is called to the moment it returns. A non-positive
// timeout uses DefaultTimeout.
func WithTimeout(next Invoker, timeout time.Duration) Invoker {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return Func(func(ctx context.Context, input string) (string, error) {
		attemptCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		result, err := next.Execute(attemptCtx, input)
		if err != nil && ctx.Err() == nil && errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
			return "", fmt.Errorf("%w: %w", &TimeoutError{Timeout: timeout}, err)
		}
		return result, err
	})
}
