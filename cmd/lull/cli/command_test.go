// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func run(command *Command, args ...string) error {
	return command.execute(context.Background(), args, slog.New(slog.DiscardHandler))
}

func TestCommand_Execute_DispatchesToSubcommand(t *testing.T) {
	var called string
	var receivedArgs []string

	root := &Command{
		Name: "lull",
		Subcommands: []*Command{
			{
				Name: "version",
				Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
					called = "version"
					return nil
				},
			},
			{
				Name: "status",
				Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
					called = "status"
					receivedArgs = args
					return nil
				},
			},
		},
	}

	if err := run(root, "status", "weather"); err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if called != "status" {
		t.Errorf("dispatched to %q, want %q", called, "status")
	}
	if len(receivedArgs) != 1 || receivedArgs[0] != "weather" {
		t.Errorf("args = %v, want [weather]", receivedArgs)
	}
}

type startTestParams struct {
	JSONOutput
	QuietPeriod time.Duration `flag:"quiet-period,q" desc:"quiet period" default:"5s"`
	Wait        bool          `flag:"wait" desc:"block for the result"`
}

func TestCommand_Execute_FlagParsing(t *testing.T) {
	var params startTestParams
	var receivedArgs []string

	command := &Command{
		Name:   "start",
		Params: func() any { return &params },
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			receivedArgs = args
			return nil
		},
	}

	if err := run(command, "-q", "2s", "--wait", "--json", "weather", "check SF weather"); err != nil {
		t.Fatal(err)
	}
	if params.QuietPeriod != 2*time.Second || !params.Wait || !params.OutputJSON {
		t.Errorf("params = %+v", params)
	}
	if len(receivedArgs) != 2 || receivedArgs[1] != "check SF weather" {
		t.Errorf("args = %v", receivedArgs)
	}

	// A second execution starts from the defaults again.
	if err := run(command, "weather", "x"); err != nil {
		t.Fatal(err)
	}
	if params.QuietPeriod != 5*time.Second || params.Wait {
		t.Errorf("params after re-run = %+v", params)
	}
}

func TestCommand_Execute_UnknownCommandSuggests(t *testing.T) {
	root := &Command{
		Name:        "lull",
		Subcommands: []*Command{{Name: "status"}, {Name: "start"}, {Name: "cancel"}},
	}
	err := run(root, "stauts")
	if err == nil {
		t.Fatal("unknown command accepted")
	}
	if !strings.Contains(err.Error(), `did you mean "status"`) {
		t.Errorf("error = %v", err)
	}

	err = run(root, "frobnicate")
	if err == nil || strings.Contains(err.Error(), "did you mean") {
		t.Errorf("distant command error = %v", err)
	}
}

func TestCommand_Execute_UnknownFlagSuggests(t *testing.T) {
	var params startTestParams
	command := &Command{
		Name:   "start",
		Params: func() any { return &params },
		Run:    func(ctx context.Context, args []string, logger *slog.Logger) error { return nil },
	}
	err := run(command, "--quiet-perod", "1s")
	if err == nil {
		t.Fatal("unknown flag accepted")
	}
	if !strings.Contains(err.Error(), "did you mean --quiet-period?") {
		t.Errorf("error = %v", err)
	}
}

func TestCommand_Execute_RequiredFlag(t *testing.T) {
	var params struct {
		Instance string `flag:"instance" desc:"instance ID" required:"true"`
	}
	command := &Command{
		Name:   "demo",
		Params: func() any { return &params },
		Run:    func(ctx context.Context, args []string, logger *slog.Logger) error { return nil },
	}

	err := run(command)
	var toolErr *ToolError
	if !errors.As(err, &toolErr) || toolErr.Category != CategoryValidation {
		t.Fatalf("error = %v, want a validation ToolError", err)
	}
	if !strings.Contains(err.Error(), "--instance") {
		t.Errorf("error = %v", err)
	}

	if err := run(command, "--instance", "weather"); err != nil {
		t.Errorf("with the flag: %v", err)
	}
}

func TestCommand_Execute_HelpDoesNotRun(t *testing.T) {
	ran := false
	command := &Command{
		Name: "status",
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			ran = true
			return nil
		},
	}
	for _, flag := range []string{"-h", "--help", "help"} {
		if err := run(command, flag); err != nil {
			t.Errorf("%s: %v", flag, err)
		}
	}
	if ran {
		t.Error("help flag ran the command")
	}
}

func TestCommand_Execute_SubcommandRequired(t *testing.T) {
	root := &Command{Name: "lull", Subcommands: []*Command{{Name: "status"}}}
	if err := run(root); err == nil || !strings.Contains(err.Error(), "subcommand required") {
		t.Errorf("error = %v", err)
	}
}

func TestCommand_PrintHelp(t *testing.T) {
	var params startTestParams
	root := &Command{Name: "lull"}
	command := &Command{
		Name:        "start",
		Summary:     "Start an instance",
		Description: "Start a debounce instance with its first message.",
		Usage:       "lull start <instance-id> <message> [flags]",
		Examples: []Example{
			{Description: "Batch weather checks", Command: "lull start weather 'check SF weather'"},
		},
		Params: func() any { return &params },
		parent: root,
	}

	var buffer bytes.Buffer
	command.PrintHelp(&buffer)
	output := buffer.String()
	for _, want := range []string{
		"Start a debounce instance",
		"Usage:\n  lull start <instance-id> <message> [flags]",
		"--quiet-period",
		"--json",
		"# Batch weather checks",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("help output missing %q:\n%s", want, output)
		}
	}
}
