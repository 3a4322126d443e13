// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/tidwall/jsonc"

	"github.com/bureau-foundation/lull/cmd/lull/cli"
	"github.com/bureau-foundation/lull/lib/clock"
	"github.com/bureau-foundation/lull/lib/lullclient"
)

type demoParams struct {
	cli.Connection
	Scenario string        `json:"scenario" flag:"scenario" desc:"JSONC scenario file (default: the built-in weather scenario)"`
	Instance string        `json:"instance" flag:"instance" desc:"instance ID (overrides the scenario's)"`
	Timeout  time.Duration `json:"timeout"  flag:"timeout"  desc:"how long to wait for the final result" default:"5m"`
	Raw      bool          `json:"raw"      flag:"raw"      desc:"print the result without markdown rendering"`
}

func demoCommand() *cli.Command {
	var params demoParams

	return &cli.Command{
		Name:    "demo",
		Summary: "Replay a scripted burst of messages",
		Description: `Start an instance and send it messages on a schedule, then query its
status while the quiet period runs and print the final result.

The built-in scenario asks about the weather in four cities, with the
follow-ups arriving 1s, 2s, and 2s apart. Each one resets the 5s quiet
period, so the downstream runs once for all four. A scenario file is
JSONC:

  {
    "instance_id": "weather-demo",
    "quiet_period": "5s",
    "status_after": "2s",   // status query after the last message
    "steps": [
      {"message": "What's the weather like in San Francisco?"},
      {"after": "1s", "message": "Also check the weather in New York"}
    ]
  }`,
		Usage: "lull demo [flags]",
		Examples: []cli.Example{
			{
				Description: "Run the built-in weather scenario",
				Command:     "lull demo",
			},
			{
				Description: "Replay a recorded burst",
				Command:     "lull demo --scenario burst.jsonc",
			},
		},
		Params: func() any { return &params },
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if err := requireArgs(args); err != nil {
				return err
			}
			scenario := builtinScenario()
			if params.Scenario != "" {
				loaded, err := loadScenario(params.Scenario)
				if err != nil {
					return err
				}
				scenario = loaded
			}
			if params.Instance != "" {
				scenario.InstanceID = params.Instance
			}

			client, err := params.Connect()
			if err != nil {
				return err
			}
			runner := demoRunner{
				client:  client,
				clock:   clock.Real(),
				out:     cli.Stdout,
				printer: newPrinter(cli.Stdout),
				timeout: params.Timeout,
				raw:     params.Raw,
			}
			if err := runner.run(ctx, scenario); err != nil {
				return cli.Classify(err, client.SocketPath())
			}
			return nil
		},
	}
}

// duration is a time.Duration written as a Go duration string.
type duration time.Duration

func (d *duration) UnmarshalJSON(data []byte) error {
	var text string
	if err := json.Unmarshal(data, &text); err != nil {
		return fmt.Errorf("durations are strings like \"2s\": %w", err)
	}
	parsed, err := time.ParseDuration(text)
	if err != nil {
		return err
	}
	if parsed < 0 {
		return fmt.Errorf("duration %q is negative", text)
	}
	*d = duration(parsed)
	return nil
}

// demoStep sends Message After the previous step.
type demoStep struct {
	After   duration `json:"after"`
	Message string   `json:"message"`
}

// demoScenario is a scripted burst. The first step starts the instance.
type demoScenario struct {
	InstanceID  string     `json:"instance_id"`
	QuietPeriod duration   `json:"quiet_period"`
	StatusAfter duration   `json:"status_after"`
	Steps       []demoStep `json:"steps"`
}

func builtinScenario() demoScenario {
	return demoScenario{
		InstanceID:  "weather-demo",
		QuietPeriod: duration(5 * time.Second),
		StatusAfter: duration(2 * time.Second),
		Steps: []demoStep{
			{Message: "What's the weather like in San Francisco?"},
			{After: duration(time.Second), Message: "Also check the weather in New York"},
			{After: duration(2 * time.Second), Message: "And what about Los Angeles?"},
			{After: duration(2 * time.Second), Message: "Finally, check Chicago weather"},
		},
	}
}

// loadScenario reads a JSONC scenario file.
func loadScenario(path string) (demoScenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return demoScenario{}, cli.Validation("reading scenario: %w", err)
	}
	return parseScenario(data)
}

func parseScenario(data []byte) (demoScenario, error) {
	var scenario demoScenario
	decoder := json.NewDecoder(bytes.NewReader(jsonc.ToJSON(data)))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&scenario); err != nil {
		return demoScenario{}, cli.Validation("parsing scenario: %w", err)
	}
	if strings.TrimSpace(scenario.InstanceID) == "" {
		scenario.InstanceID = "demo"
	}
	if len(scenario.Steps) == 0 {
		return demoScenario{}, cli.Validation("scenario has no steps")
	}
	for index, step := range scenario.Steps {
		if step.Message == "" {
			return demoScenario{}, cli.Validation("scenario step %d has no message", index+1)
		}
	}
	return scenario, nil
}

// demoRunner plays a scenario against the service. Waits use clock so
// tests can drive them.
type demoRunner struct {
	client  *lullclient.Client
	clock   clock.Clock
	out     io.Writer
	printer printer
	timeout time.Duration
	raw     bool
}

func (r demoRunner) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	select {
	case <-r.clock.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r demoRunner) run(ctx context.Context, scenario demoScenario) error {
	id := scenario.InstanceID
	first := scenario.Steps[0]
	if err := r.sleep(ctx, time.Duration(first.After)); err != nil {
		return err
	}

	fmt.Fprintf(r.out, "Starting %s with: %s\n", id, first.Message)
	callCtx, cancel := callContext(ctx, 0)
	status, err := r.client.Start(callCtx, id, first.Message, time.Duration(scenario.QuietPeriod))
	cancel()
	if err != nil {
		return err
	}
	fmt.Fprintf(r.out, "Quiet period: %s\n", status.QuietPeriod)

	for index, step := range scenario.Steps[1:] {
		if err := r.sleep(ctx, time.Duration(step.After)); err != nil {
			return err
		}
		fmt.Fprintf(r.out, "Sending message %d: %s\n", index+1, step.Message)
		callCtx, cancel := callContext(ctx, 0)
		_, err := r.client.AddMessage(callCtx, id, step.Message)
		cancel()
		if err != nil {
			return err
		}
	}

	fmt.Fprintln(r.out, "\nNo more messages. Waiting for the quiet period to pass...")
	if err := r.sleep(ctx, time.Duration(scenario.StatusAfter)); err != nil {
		return err
	}
	callCtx, cancel = callContext(ctx, 0)
	status, err = r.client.Status(callCtx, id)
	cancel()
	if err != nil {
		return err
	}
	fmt.Fprintln(r.out)
	r.printer.writeStatus(status)

	fmt.Fprintln(r.out, "\nWaiting for the result...")
	callCtx, cancel = callContext(ctx, r.timeout)
	defer cancel()
	result, err := r.client.Result(callCtx, id)
	if err != nil {
		return err
	}

	rule := strings.Repeat("=", 60)
	fmt.Fprintf(r.out, "\n%s\nRESULT\n%s\n", rule, rule)
	if r.raw {
		fmt.Fprintln(r.out, strings.TrimRight(result, "\n"))
	} else {
		fmt.Fprintln(r.out, r.printer.markdown(result))
	}
	fmt.Fprintln(r.out, rule)
	return nil
}
