// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"log/slog"
	"os"

	"golang.org/x/term"
)

// NewCommandLogger creates a structured logger for CLI command operations.
// When stderr is a terminal, uses slog.TextHandler for human-readable output.
// When stderr is piped or redirected (CI, scripts, tests), uses
// slog.JSONHandler for machine-parseable output matching lull-service's
// log format. LULL_LOG_LEVEL (debug, info, warn, error) sets the level.
func NewCommandLogger() *slog.Logger {
	level := slog.LevelInfo
	if configured := os.Getenv("LULL_LOG_LEVEL"); configured != "" {
		// An unparseable level keeps the default.
		_ = level.UnmarshalText([]byte(configured))
	}
	var handler slog.Handler
	options := &slog.HandlerOptions{Level: level}
	if term.IsTerminal(int(os.Stderr.Fd())) {
		handler = slog.NewTextHandler(os.Stderr, options)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, options)
	}
	return slog.New(handler)
}
