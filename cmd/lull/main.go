// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/bureau-foundation/lull/cmd/lull/cli"
	"github.com/bureau-foundation/lull/cmd/lull/commands"
	"github.com/bureau-foundation/lull/lib/process"
)

func main() {
	if err := run(); err != nil {
		// Commands that print their own outcome (like a failed
		// "lull result") return an ExitError. Don't print a redundant
		// "error:" line for those.
		var exitErr *cli.ExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.Code)
		}
		var toolErr *cli.ToolError
		if errors.As(err, &toolErr) && toolErr.Hint != "" {
			err = &hinted{ToolError: toolErr}
		}
		process.Fatal(err)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCommand().Execute(ctx, os.Args[1:])
}

func rootCommand() *cli.Command {
	return commands.Root()
}

// hinted prints a ToolError followed by its hint.
type hinted struct {
	*cli.ToolError
}

func (h *hinted) Error() string {
	return fmt.Sprintf("%v\n\n%s", h.ToolError.Err, h.Hint)
}
