// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package commands builds the lull CLI command tree. Every command
// talks to lull-service through lullclient; none of them opens the
// journal directly.
package commands

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/bureau-foundation/lull/cmd/lull/cli"
	"github.com/bureau-foundation/lull/lib/version"
)

// defaultCallTimeout bounds calls that answer immediately.
const defaultCallTimeout = 30 * time.Second

// Root builds and returns the complete lull CLI command tree.
func Root() *cli.Command {
	return &cli.Command{
		Name: "lull",
		Description: `lull: durable debounce for slow downstream work.

Messages sent to an instance are buffered until no new message has
arrived for the instance's quiet period. Then the whole batch goes to
the downstream invoker once. lull-service journals every step, so a
restart resumes waits and never runs a batch twice.`,
		Subcommands: []*cli.Command{
			startCommand(),
			sendCommand(),
			statusCommand(),
			resultCommand(),
			cancelCommand(),
			listCommand(),
			watchCommand(),
			demoCommand(),
			{
				Name:    "version",
				Summary: "Print version information",
				Run: func(_ context.Context, args []string, _ *slog.Logger) error {
					fmt.Fprintf(cli.Stdout, "lull %s\n", version.Full())
					return nil
				},
			},
		},
	}
}

// callContext returns a context bounded by timeout, or by
// defaultCallTimeout when timeout is zero.
func callContext(parent context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		timeout = defaultCallTimeout
	}
	return context.WithTimeout(parent, timeout)
}

// requireArgs checks the positional argument count.
func requireArgs(args []string, names ...string) error {
	if len(args) < len(names) {
		return cli.Validation("missing argument <%s>", names[len(args)])
	}
	if len(args) > len(names) {
		return cli.Validation("unexpected argument %q", args[len(names)])
	}
	return nil
}
