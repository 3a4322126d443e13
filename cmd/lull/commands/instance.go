// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/bureau-foundation/lull/cmd/lull/cli"
	"github.com/bureau-foundation/lull/lib/debounce"
	"github.com/bureau-foundation/lull/lib/lullclient"
	"github.com/bureau-foundation/lull/lib/schema/lull"
)

// --- start ---

type startParams struct {
	cli.Connection
	cli.JSONOutput
	QuietPeriod time.Duration `json:"quiet_period" flag:"quiet-period,q" desc:"quiet period for this instance (default: the service's coordinator.quiet_period)"`
	Wait        bool          `json:"wait"         flag:"wait,w"         desc:"block until the batch is processed and print the result"`
	Timeout     time.Duration `json:"timeout"      flag:"timeout"        desc:"how long --wait blocks" default:"10m"`
	Raw         bool          `json:"raw"          flag:"raw"            desc:"print the result without markdown rendering"`
}

func startCommand() *cli.Command {
	var params startParams

	return &cli.Command{
		Name:    "start",
		Summary: "Start an instance with its first message",
		Description: `Create a debounce instance seeded with one message. The instance
buffers every message sent to it with "lull send" and invokes the
downstream once no message has arrived for its quiet period.

The ID of a finished instance can be started again; its old history
is replaced. Starting an ID that is still live fails.

With --wait the command blocks for the result, which makes a
single-message instance behave like a direct downstream call.`,
		Usage: "lull start <instance-id> <message> [flags]",
		Examples: []cli.Example{
			{
				Description: "Batch weather checks that arrive within 5 seconds of each other",
				Command:     "lull start weather 'check SF weather' --quiet-period 5s",
			},
			{
				Description: "Run one message through the downstream and wait",
				Command:     "lull start once 'summarize today' --wait",
			},
		},
		Params: func() any { return &params },
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if err := requireArgs(args, "instance-id", "message"); err != nil {
				return err
			}
			if params.QuietPeriod < 0 {
				return cli.Validation("--quiet-period must not be negative")
			}
			client, err := params.Connect()
			if err != nil {
				return err
			}

			callCtx, cancel := callContext(ctx, 0)
			status, err := client.Start(callCtx, args[0], args[1], params.QuietPeriod)
			cancel()
			if err != nil {
				return cli.Classify(err, client.SocketPath())
			}
			logger.Debug("instance started", "instance_id", status.InstanceID, "deadline", status.Deadline)

			if !params.Wait {
				if done, err := params.EmitJSON(status); done {
					return err
				}
				newPrinter(cli.Stdout).writeStatus(status)
				return nil
			}
			return waitAndPrint(ctx, client, args[0], params.Timeout, params.Raw, &params.JSONOutput)
		},
	}
}

// --- send ---

type sendParams struct {
	cli.Connection
	cli.JSONOutput
	Quiet bool `json:"quiet" flag:"quiet" desc:"print nothing on success"`
}

func sendCommand() *cli.Command {
	var params sendParams

	return &cli.Command{
		Name:    "send",
		Summary: "Add a message to an accumulating instance",
		Description: `Append a message to an instance's buffer. The instance's quiet period
restarts from now, so the downstream runs only after the senders go
quiet.

Sending to an instance that is already processing or finished fails
with a late-intake error: the message belongs to no batch, and
nothing is changed.`,
		Usage: "lull send <instance-id> <message> [flags]",
		Examples: []cli.Example{
			{
				Description: "Add a second city to the pending weather batch",
				Command:     "lull send weather 'check NYC weather'",
			},
		},
		Params: func() any { return &params },
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if err := requireArgs(args, "instance-id", "message"); err != nil {
				return err
			}
			client, err := params.Connect()
			if err != nil {
				return err
			}

			callCtx, cancel := callContext(ctx, 0)
			defer cancel()
			status, err := client.AddMessage(callCtx, args[0], args[1])
			if err != nil {
				return cli.Classify(err, client.SocketPath())
			}
			if done, err := params.EmitJSON(status); done {
				return err
			}
			if !params.Quiet {
				printer := newPrinter(cli.Stdout)
				fmt.Fprintf(cli.Stdout, "%s: %d buffered, flush %s\n",
					status.InstanceID, status.BufferedMessages, printer.remaining(status.Deadline))
			}
			return nil
		},
	}
}

// --- status ---

type statusParams struct {
	cli.Connection
	cli.JSONOutput
}

func statusCommand() *cli.Command {
	var params statusParams

	return &cli.Command{
		Name:    "status",
		Summary: "Show an instance's state and buffer",
		Description: `Print a snapshot of one instance: its state, buffered messages, wait
deadline, and outcome once done. Status never waits and never changes
the instance.`,
		Usage: "lull status <instance-id> [flags]",
		Examples: []cli.Example{
			{
				Description: "Check the weather batch",
				Command:     "lull status weather",
			},
		},
		Params: func() any { return &params },
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if err := requireArgs(args, "instance-id"); err != nil {
				return err
			}
			client, err := params.Connect()
			if err != nil {
				return err
			}

			callCtx, cancel := callContext(ctx, 0)
			defer cancel()
			status, err := client.Status(callCtx, args[0])
			if err != nil {
				return cli.Classify(err, client.SocketPath())
			}
			if done, err := params.EmitJSON(status); done {
				return err
			}
			newPrinter(cli.Stdout).writeStatus(status)
			return nil
		},
	}
}

// --- result ---

type resultParams struct {
	cli.Connection
	cli.JSONOutput
	Timeout time.Duration `json:"timeout" flag:"timeout" desc:"how long to wait for the instance to finish" default:"10m"`
	Raw     bool          `json:"raw"     flag:"raw"     desc:"print the result without markdown rendering"`
}

func resultCommand() *cli.Command {
	var params resultParams

	return &cli.Command{
		Name:    "result",
		Summary: "Wait for an instance and print its result",
		Description: `Block until the instance is done and print the downstream result.
Results are markdown; on a terminal they are rendered with styling and
syntax-highlighted code blocks.

A failed, cancelled, or interrupted invocation is printed to stderr
and the command exits 1.`,
		Usage: "lull result <instance-id> [flags]",
		Examples: []cli.Example{
			{
				Description: "Wait for the weather batch",
				Command:     "lull result weather",
			},
			{
				Description: "Give up after a minute",
				Command:     "lull result weather --timeout 1m",
			},
		},
		Params: func() any { return &params },
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if err := requireArgs(args, "instance-id"); err != nil {
				return err
			}
			client, err := params.Connect()
			if err != nil {
				return err
			}
			return waitAndPrint(ctx, client, args[0], params.Timeout, params.Raw, &params.JSONOutput)
		},
	}
}

// resultOutput is the --json form of a finished instance's outcome.
type resultOutput struct {
	InstanceID string `json:"instance_id"`
	Result     string `json:"result,omitempty"`
	Error      string `json:"error,omitempty"`
	ErrorCode  string `json:"error_code,omitempty"`
}

// waitAndPrint blocks for an instance's result and prints it. A
// downstream failure is reported on stderr and becomes exit code 1.
func waitAndPrint(ctx context.Context, client *lullclient.Client, instanceID string, timeout time.Duration, raw bool, output *cli.JSONOutput) error {
	callCtx, cancel := callContext(ctx, timeout)
	defer cancel()

	result, err := client.Result(callCtx, instanceID)
	var invocationErr *debounce.InvocationError
	if errors.As(err, &invocationErr) {
		done, emitErr := output.EmitJSON(resultOutput{
			InstanceID: instanceID,
			Error:      invocationErr.Err.Error(),
			ErrorCode:  invocationErr.ErrorCode(),
		})
		if emitErr != nil {
			return emitErr
		}
		if !done {
			fmt.Fprintf(cli.Stderr, "%s: %v\n", instanceID, invocationErr.Err)
		}
		return &cli.ExitError{Code: 1}
	}
	if err != nil {
		return cli.Classify(err, client.SocketPath())
	}

	if done, err := output.EmitJSON(resultOutput{InstanceID: instanceID, Result: result}); done {
		return err
	}
	if raw {
		fmt.Fprintln(cli.Stdout, strings.TrimRight(result, "\n"))
		return nil
	}
	fmt.Fprintln(cli.Stdout, newPrinter(cli.Stdout).markdown(result))
	return nil
}

// --- cancel ---

type cancelParams struct {
	cli.Connection
	cli.JSONOutput
	Reason string `json:"reason" flag:"reason,r" desc:"why the batch was abandoned (recorded in the journal)"`
}

func cancelCommand() *cli.Command {
	var params cancelParams

	return &cli.Command{
		Name:    "cancel",
		Summary: "Abandon an accumulating instance",
		Description: `End an instance without invoking the downstream. Only accumulating
instances can be cancelled: once the batch is handed to the downstream
it runs to completion. The buffered messages stay visible in status.`,
		Usage: "lull cancel <instance-id> [flags]",
		Examples: []cli.Example{
			{
				Description: "Drop the pending weather batch",
				Command:     "lull cancel weather --reason 'trip postponed'",
			},
		},
		Params: func() any { return &params },
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if err := requireArgs(args, "instance-id"); err != nil {
				return err
			}
			client, err := params.Connect()
			if err != nil {
				return err
			}

			callCtx, cancel := callContext(ctx, 0)
			defer cancel()
			status, err := client.Cancel(callCtx, args[0], params.Reason)
			if err != nil {
				return cli.Classify(err, client.SocketPath())
			}
			logger.Info("instance cancelled", "instance_id", status.InstanceID, "messages", status.BufferedMessages)
			if done, err := params.EmitJSON(status); done {
				return err
			}
			newPrinter(cli.Stdout).writeStatus(status)
			return nil
		},
	}
}

// --- list ---

type listParams struct {
	cli.Connection
	cli.JSONOutput
	State string `json:"state" flag:"state,s" desc:"only show instances in this state (accumulating, flushing, done, failed)"`
}

func listCommand() *cli.Command {
	var params listParams

	return &cli.Command{
		Name:    "list",
		Summary: "List every instance the service knows",
		Description: `List all instances, sorted by ID. Finished instances stay listed until
the service's retention period prunes them.`,
		Usage: "lull list [flags]",
		Examples: []cli.Example{
			{
				Description: "Show only batches still collecting messages",
				Command:     "lull list --state accumulating",
			},
		},
		Params: func() any { return &params },
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if err := requireArgs(args); err != nil {
				return err
			}
			if params.State != "" && params.State != "failed" && !lull.State(params.State).IsKnown() {
				return cli.Validation("unknown --state %q (want accumulating, flushing, done, or failed)", params.State)
			}
			client, err := params.Connect()
			if err != nil {
				return err
			}

			callCtx, cancel := callContext(ctx, 0)
			defer cancel()
			statuses, err := client.List(callCtx)
			if err != nil {
				return cli.Classify(err, client.SocketPath())
			}
			statuses = filterState(statuses, params.State)

			if done, err := params.EmitJSON(statuses); done {
				return err
			}
			if len(statuses) == 0 {
				logger.Info("no instances")
				return nil
			}
			newPrinter(cli.Stdout).writeList(statuses)
			return nil
		},
	}
}

// filterState keeps the statuses in state. "failed" selects every
// instance with an error code. "" keeps everything.
func filterState(statuses []lull.Status, state string) []lull.Status {
	if state == "" {
		return statuses
	}
	var kept []lull.Status
	for _, status := range statuses {
		failed := status.ErrorCode != ""
		if (state == "failed" && failed) || (state != "failed" && !failed && string(status.State) == state) {
			kept = append(kept, status)
		}
	}
	return kept
}
