// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bureau-foundation/lull/lib/clock"
	"github.com/bureau-foundation/lull/lib/config"
	"github.com/bureau-foundation/lull/lib/debounce"
	"github.com/bureau-foundation/lull/lib/lockfile"
	"github.com/bureau-foundation/lull/lib/lullclient"
	"github.com/bureau-foundation/lull/lib/schema/lull"
	"github.com/bureau-foundation/lull/lib/service"
	"github.com/bureau-foundation/lull/lib/testutil"
)

const testTimeout = 5 * time.Second

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	root := t.TempDir()
	cfg := config.Default()
	cfg.Paths.Root = root
	cfg.Paths.State = filepath.Join(root, "state")
	cfg.Paths.Socket = filepath.Join(testutil.SocketDir(t), "lull.sock")
	cfg.Journal.Compression = "lz4"
	cfg.Journal.CompressionThreshold = 16
	if err := cfg.Validate(); err != nil {
		t.Fatalf("test config invalid: %v", err)
	}
	return cfg
}

// running is one serve call in the background.
type running struct {
	client *lullclient.Client
	stop   func() error
}

func startService(t *testing.T, cfg *config.Config, clk clock.Clock) running {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	ready := make(chan *service.SocketServer, 1)
	stopped := make(chan error, 1)
	logger := slog.New(slog.DiscardHandler)
	go func() { stopped <- serve(ctx, cfg, clk, logger, ready) }()

	select {
	case <-ready:
	case err := <-stopped:
		cancel()
		t.Fatalf("serve returned before listening: %v", err)
	case <-time.After(testTimeout):
		cancel()
		t.Fatal("service did not start listening")
	}

	client, err := lullclient.New(cfg.Paths.Socket)
	if err != nil {
		t.Fatal(err)
	}

	var stoppedErr error
	var done bool
	stop := func() error {
		if done {
			return stoppedErr
		}
		done = true
		cancel()
		stoppedErr = testutil.RequireReceive(t, stopped, testTimeout, "serve returns")
		return stoppedErr
	}
	t.Cleanup(func() { stop() })
	return running{client: client, stop: stop}
}

func callContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	t.Cleanup(cancel)
	return ctx
}

func TestServiceLifecycle(t *testing.T) {
	fakeClock := clock.Fake(epoch)
	client := startService(t, testConfig(t), fakeClock).client

	status, err := client.Start(callContext(t), "weather", "check SF weather", 5*time.Second)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if status.State != lull.StateAccumulating || status.BufferedMessages != 1 {
		t.Errorf("Start status = %+v", status)
	}
	// The retention ticker and the quiet-period timer.
	fakeClock.WaitForTimers(2)

	fakeClock.Advance(time.Second)
	status, err = client.AddMessage(callContext(t), "weather", "check NYC weather")
	if err != nil {
		t.Fatalf("AddMessage: %v", err)
	}
	if status.BufferedMessages != 2 {
		t.Errorf("AddMessage status = %+v", status)
	}

	fakeClock.Advance(5 * time.Second)
	result, err := client.Result(callContext(t), "weather")
	if err != nil {
		t.Fatalf("Result: %v", err)
	}
	for _, want := range []string{"Processed 2 messages", "check SF weather", "check NYC weather"} {
		if !strings.Contains(result, want) {
			t.Errorf("result %q does not contain %q", result, want)
		}
	}

	status, err = client.Status(callContext(t), "weather")
	if err != nil {
		t.Fatal(err)
	}
	if status.State != lull.StateDone || !status.ProcessingComplete || status.Result != result {
		t.Errorf("final status = %+v", status)
	}

	_, err = client.AddMessage(callContext(t), "weather", "check LA weather")
	if !errors.Is(err, debounce.ErrLateIntake) {
		t.Errorf("AddMessage after done = %v, want ErrLateIntake", err)
	}

	health, err := client.Health(callContext(t))
	if err != nil {
		t.Fatal(err)
	}
	if health.Done != 1 || health.Accumulating != 0 || health.Version == "" {
		t.Errorf("health = %+v", health)
	}

	instances, err := client.List(callContext(t))
	if err != nil {
		t.Fatal(err)
	}
	if len(instances) != 1 || instances[0].InstanceID != "weather" {
		t.Errorf("list = %+v", instances)
	}
}

func TestServiceCancel(t *testing.T) {
	fakeClock := clock.Fake(epoch)
	client := startService(t, testConfig(t), fakeClock).client

	if _, err := client.Start(callContext(t), "errand", "buy milk", time.Minute); err != nil {
		t.Fatal(err)
	}
	status, err := client.Cancel(callContext(t), "errand", "changed my mind")
	if err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if status.State != lull.StateDone || status.ErrorCode != lull.CodeCancelled {
		t.Errorf("cancel status = %+v", status)
	}
	if len(status.Messages) != 1 || status.Messages[0] != "buy milk" {
		t.Errorf("cancelled messages = %v", status.Messages)
	}

	_, err = client.Result(callContext(t), "errand")
	var invocationErr *debounce.InvocationError
	if !errors.As(err, &invocationErr) || !errors.Is(err, debounce.ErrCancelled) {
		t.Errorf("Result = %v, want a cancelled *InvocationError", err)
	}

	_, err = client.Cancel(callContext(t), "errand", "again")
	if !errors.Is(err, debounce.ErrNotCancellable) {
		t.Errorf("second Cancel = %v, want ErrNotCancellable", err)
	}
}

func TestServiceRequestErrors(t *testing.T) {
	client := startService(t, testConfig(t), clock.Fake(epoch)).client

	_, err := client.Status(callContext(t), "nobody")
	if !errors.Is(err, debounce.ErrUnknownInstance) {
		t.Errorf("Status of unknown = %v", err)
	}

	if _, err := client.Start(callContext(t), "weather", "one", time.Minute); err != nil {
		t.Fatal(err)
	}
	_, err = client.Start(callContext(t), "weather", "two", time.Minute)
	if !errors.Is(err, debounce.ErrInstanceExists) {
		t.Errorf("duplicate Start = %v", err)
	}

	tests := []struct {
		name string
		call func(ctx context.Context) error
	}{
		{"start without id", func(ctx context.Context) error {
			_, err := client.Start(ctx, " ", "hello", 0)
			return err
		}},
		{"negative quiet period", func(ctx context.Context) error {
			_, err := client.Start(ctx, "negative", "hello", -time.Second)
			return err
		}},
		{"status without id", func(ctx context.Context) error {
			_, err := client.Status(ctx, "")
			return err
		}},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			err := test.call(callContext(t))
			if service.ErrorCode(err) != lull.CodeInvalidRequest {
				t.Errorf("error = %v, want code %s", err, lull.CodeInvalidRequest)
			}
		})
	}
}

func TestServiceResultHonorsDeadline(t *testing.T) {
	client := startService(t, testConfig(t), clock.Fake(epoch)).client
	if _, err := client.Start(callContext(t), "slow", "hello", time.Hour); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, err := client.Result(ctx, "slow")
	if err == nil {
		t.Fatal("Result of an accumulating instance returned before its deadline")
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("error = %v, want context.DeadlineExceeded", err)
	}
}

func TestServiceResumesAfterRestart(t *testing.T) {
	cfg := testConfig(t)
	fakeClock := clock.Fake(epoch)

	first := startService(t, cfg, fakeClock)
	if _, err := first.client.Start(callContext(t), "weather", "check SF weather", 5*time.Second); err != nil {
		t.Fatal(err)
	}
	fakeClock.WaitForTimers(2)
	fakeClock.Advance(2 * time.Second)
	if err := first.stop(); err != nil {
		t.Fatalf("first serve: %v", err)
	}

	second := startService(t, cfg, fakeClock)
	status, err := second.client.Status(callContext(t), "weather")
	if err != nil {
		t.Fatal(err)
	}
	if status.State != lull.StateAccumulating || status.BufferedMessages != 1 {
		t.Fatalf("recovered status = %+v", status)
	}
	if want := epoch.Add(5 * time.Second).UnixNano(); status.Deadline != want {
		t.Errorf("recovered deadline = %d, want %d", status.Deadline, want)
	}

	fakeClock.WaitForTimers(2)
	fakeClock.Advance(3 * time.Second)
	result, err := second.client.Result(callContext(t), "weather")
	if err != nil || !strings.Contains(result, "check SF weather") {
		t.Errorf("Result after restart = %q, %v", result, err)
	}
}

func TestServeLocksStateDirectory(t *testing.T) {
	cfg := testConfig(t)
	startService(t, cfg, clock.Fake(epoch))

	second := *cfg
	second.Paths.Socket = filepath.Join(testutil.SocketDir(t), "other.sock")
	err := serve(context.Background(), &second, clock.Fake(epoch), slog.New(slog.DiscardHandler), nil)
	if !errors.Is(err, lockfile.ErrLocked) {
		t.Errorf("second serve = %v, want ErrLocked", err)
	}
}
