// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package invoke

import (
	"fmt"
	"log/slog"

	"github.com/bureau-foundation/lull/lib/clock"
	"github.com/bureau-foundation/lull/lib/config"
)

// FromConfig builds the invoker chain described by cfg: the base
// implementation, bounded per attempt by the timeout, then wrapped in
// the retry policy.
func FromConfig(cfg config.InvokerConfig, clk clock.Clock, logger *slog.Logger) (Invoker, error) {
	durations, err := cfg.Durations()
	if err != nil {
		return nil, err
	}

	var base Invoker
	switch cfg.Kind {
	case config.InvokerEcho:
		base = Echo{}
	case config.InvokerCommand:
		if len(cfg.Command) == 0 || cfg.Command[0] == "" {
			return nil, fmt.Errorf("invoke: kind %q needs a command", cfg.Kind)
		}
		base = Command{Argv: cfg.Command}
	default:
		return nil, fmt.Errorf("invoke: unknown invoker kind %q", cfg.Kind)
	}

	return WithRetry(WithTimeout(base, durations.Timeout), RetryPolicy{
		MaxAttempts:    cfg.Retry.MaxAttempts,
		InitialBackoff: durations.InitialBackoff,
		MaxBackoff:     durations.MaxBackoff,
	}, clk, logger), nil
}
