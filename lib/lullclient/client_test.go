// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package lullclient

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/bureau-foundation/lull/lib/codec"
	"github.com/bureau-foundation/lull/lib/debounce"
	"github.com/bureau-foundation/lull/lib/schema/lull"
	"github.com/bureau-foundation/lull/lib/service"
	"github.com/bureau-foundation/lull/lib/testutil"
)

const testTimeout = 5 * time.Second

// serve starts a socket server with the given handlers and returns a
// client connected to it.
func serve(t *testing.T, handlers map[string]service.ActionFunc) *Client {
	t.Helper()
	socketPath := filepath.Join(testutil.SocketDir(t), "lull.sock")
	server := service.NewSocketServer(socketPath, nil)
	for action, handler := range handlers {
		server.Handle(action, handler)
	}
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan error, 1)
	go func() { stopped <- server.Serve(ctx) }()
	testutil.RequireClosed(t, server.Ready(), testTimeout, "server listening")
	t.Cleanup(func() {
		cancel()
		testutil.RequireReceive(t, stopped, testTimeout, "server stops")
	})

	client, err := New(socketPath)
	if err != nil {
		t.Fatal(err)
	}
	return client
}

func TestNewRequiresSocketPath(t *testing.T) {
	if _, err := New(""); err == nil {
		t.Error("New with empty socket path succeeded")
	}
}

func TestClientRoundTrip(t *testing.T) {
	client := serve(t, map[string]service.ActionFunc{
		lull.ActionStart: func(ctx context.Context, raw []byte) (any, error) {
			var request lull.StartRequest
			if err := codec.Unmarshal(raw, &request); err != nil {
				return nil, err
			}
			return lull.Status{
				InstanceID:       request.InstanceID,
				State:            lull.StateAccumulating,
				BufferedMessages: 1,
				Messages:         []string{request.Message},
				QuietPeriod:      request.QuietPeriod,
			}, nil
		},
		lull.ActionResult: func(ctx context.Context, raw []byte) (any, error) {
			var request lull.InstanceRequest
			if err := codec.Unmarshal(raw, &request); err != nil {
				return nil, err
			}
			return lull.ResultResponse{InstanceID: request.InstanceID, Result: "## Processed 1 message"}, nil
		},
		lull.ActionList: func(ctx context.Context, raw []byte) (any, error) {
			return lull.ListResponse{Instances: []lull.Status{{InstanceID: "a"}, {InstanceID: "b"}}}, nil
		},
		lull.ActionHealth: func(ctx context.Context, raw []byte) (any, error) {
			return lull.HealthResponse{Version: "test", Accumulating: 2, Done: 1}, nil
		},
	})
	ctx := context.Background()

	status, err := client.Start(ctx, "weather", "check SF weather", 10*time.Second)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if status.InstanceID != "weather" || status.QuietPeriod != 10*time.Second ||
		len(status.Messages) != 1 || status.Messages[0] != "check SF weather" {
		t.Errorf("Start status = %+v", status)
	}

	result, err := client.Result(ctx, "weather")
	if err != nil || result != "## Processed 1 message" {
		t.Errorf("Result = %q, %v", result, err)
	}

	instances, err := client.List(ctx)
	if err != nil || len(instances) != 2 || instances[1].InstanceID != "b" {
		t.Errorf("List = %+v, %v", instances, err)
	}

	health, err := client.Health(ctx)
	if err != nil || health.Version != "test" || health.Accumulating != 2 || health.Done != 1 {
		t.Errorf("Health = %+v, %v", health, err)
	}
}

func TestClientTranslatesErrorCodes(t *testing.T) {
	failWith := func(err error) service.ActionFunc {
		return func(ctx context.Context, raw []byte) (any, error) { return nil, err }
	}
	invocationErr := func(cause error) error {
		return &debounce.InvocationError{InstanceID: "weather", Err: cause}
	}
	client := serve(t, map[string]service.ActionFunc{
		lull.ActionAddMessage: failWith(&debounce.LateIntakeError{InstanceID: "weather", State: lull.StateDone}),
		lull.ActionStatus:     failWith(fmt.Errorf("%w: %q", debounce.ErrUnknownInstance, "weather")),
		lull.ActionStart:      failWith(fmt.Errorf("%w: %q", debounce.ErrInstanceExists, "weather")),
		lull.ActionCancel:     failWith(debounce.ErrNotCancellable),
		lull.ActionList: failWith(&debounce.ReplayError{
			InstanceID: "weather", Seq: 3, Err: errors.New("bad record"),
		}),
	})
	ctx := context.Background()

	tests := []struct {
		name     string
		call     func() error
		sentinel error
		code     string
	}{
		{
			name:     "late intake",
			call:     func() error { _, err := client.AddMessage(ctx, "weather", "x"); return err },
			sentinel: debounce.ErrLateIntake,
			code:     lull.CodeLateIntake,
		},
		{
			name:     "unknown instance",
			call:     func() error { _, err := client.Status(ctx, "weather"); return err },
			sentinel: debounce.ErrUnknownInstance,
			code:     lull.CodeUnknownInstance,
		},
		{
			name:     "instance exists",
			call:     func() error { _, err := client.Start(ctx, "weather", "x", 0); return err },
			sentinel: debounce.ErrInstanceExists,
			code:     lull.CodeInstanceExists,
		},
		{
			name:     "not cancellable",
			call:     func() error { _, err := client.Cancel(ctx, "weather", ""); return err },
			sentinel: debounce.ErrNotCancellable,
			code:     lull.CodeNotCancellable,
		},
		{
			name: "replay failed",
			call: func() error { _, err := client.List(ctx); return err },
			code: lull.CodeReplayFailed,
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			err := test.call()
			var remote *RemoteError
			if !errors.As(err, &remote) {
				t.Fatalf("error = %v, want *RemoteError", err)
			}
			if test.sentinel != nil && !errors.Is(err, test.sentinel) {
				t.Errorf("error %v does not match %v", err, test.sentinel)
			}
			if got := debounce.ErrorCode(err); got != test.code {
				t.Errorf("ErrorCode = %q, want %q", got, test.code)
			}
			var serviceErr *service.ServiceError
			if !errors.As(err, &serviceErr) {
				t.Error("RemoteError does not unwrap to *service.ServiceError")
			}
		})
	}

	t.Run("outcomes", func(t *testing.T) {
		outcomes := []struct {
			cause    error
			sentinel error
			code     string
		}{
			{errors.New("503 from weather API"), nil, lull.CodeInvocationFailed},
			{debounce.ErrInvocationInterrupted, debounce.ErrInvocationInterrupted, lull.CodeInvocationInterrupted},
			{fmt.Errorf("%w: operator", debounce.ErrCancelled), debounce.ErrCancelled, lull.CodeCancelled},
		}
		for _, outcome := range outcomes {
			client := serve(t, map[string]service.ActionFunc{
				lull.ActionResult: failWith(invocationErr(outcome.cause)),
			})
			_, err := client.Result(ctx, "weather")
			var invocation *debounce.InvocationError
			if !errors.As(err, &invocation) || invocation.InstanceID != "weather" {
				t.Errorf("Result error = %v, want *debounce.InvocationError", err)
				continue
			}
			if outcome.sentinel != nil && !errors.Is(err, outcome.sentinel) {
				t.Errorf("error %v does not match %v", err, outcome.sentinel)
			}
			if got := debounce.ErrorCode(err); got != outcome.code {
				t.Errorf("ErrorCode = %q, want %q", got, outcome.code)
			}
		}
	})
}

func TestClientTransportErrorsPassThrough(t *testing.T) {
	client, err := New(filepath.Join(testutil.SocketDir(t), "absent.sock"))
	if err != nil {
		t.Fatal(err)
	}
	_, err = client.Status(context.Background(), "weather")
	if err == nil {
		t.Fatal("Status against a missing socket succeeded")
	}
	var remote *RemoteError
	if errors.As(err, &remote) {
		t.Errorf("transport failure reported as *RemoteError: %v", err)
	}
}
