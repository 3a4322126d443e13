// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package invoke

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// Command runs an external program once per batch. The batch is
// written to its stdin; its stdout, with surrounding whitespace
// trimmed, is the result. A non-zero exit is a failure whose message
// includes the program's stderr.
type Command struct {
	// Argv is the program and its arguments. Required.
	Argv []string

	// Dir is the working directory. Empty means the service's own.
	Dir string

	// Env, when non-nil, replaces the inherited environment.
	Env []string
}

func (c Command) Execute(ctx context.Context, input string) (string, error) {
	if len(c.Argv) == 0 || c.Argv[0] == "" {
		return "", Permanent(errors.New("invoke: command has no program"))
	}

	var stdout, stderr bytes.Buffer
	command := exec.CommandContext(ctx, c.Argv[0], c.Argv[1:]...)
	command.Stdin = strings.NewReader(input)
	command.Stdout = &stdout
	command.Stderr = &stderr
	command.Dir = c.Dir
	command.Env = c.Env

	if err := command.Run(); err != nil {
		var notFound *exec.Error
		if errors.As(err, &notFound) {
			return "", Permanent(fmt.Errorf("invoke: %s: %w", c.Argv[0], err))
		}
		return "", fmt.Errorf("invoke: %s: %w (stderr: %s)",
			strings.Join(c.Argv, " "), err, strings.TrimSpace(stderr.String()))
	}
	return strings.TrimSpace(stdout.String()), nil
}
