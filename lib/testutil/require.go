// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"fmt"
	"time"
)

// Fataler is the part of testing.TB the helpers need.
type Fataler interface {
	Helper()
	Fatalf(format string, args ...any)
}

// RequireReceive reads one value from ch within timeout, or fails the
// test. A closed channel is a failure: the caller expected a value.
//
//	outcome := testutil.RequireReceive(t, results, 5*time.Second, "instance %s finishes", id)
func RequireReceive[T any](t Fataler, ch <-chan T, timeout time.Duration, msgAndArgs ...any) T {
	t.Helper()
	var value T
	var open bool
	received := within(t, timeout, msgAndArgs, func(deadline <-chan time.Time) bool {
		select {
		case value, open = <-ch:
			return true
		case <-deadline:
			return false
		}
	})
	if received && !open {
		t.Fatalf("channel closed without sending a value: %s", describe(msgAndArgs))
	}
	return value
}

// RequireClosed waits for ch to be closed, or to deliver a value,
// within timeout. Use it for readiness channels such as
// service.SocketServer.Ready.
//
//	testutil.RequireClosed(t, server.Ready(), 5*time.Second, "server listening")
func RequireClosed(t Fataler, ch <-chan struct{}, timeout time.Duration, msgAndArgs ...any) {
	t.Helper()
	within(t, timeout, msgAndArgs, func(deadline <-chan time.Time) bool {
		select {
		case <-ch:
			return true
		case <-deadline:
			return false
		}
	})
}

// within runs wait against a wall-clock deadline and fails the test
// when wait reports that the deadline won. This is hang prevention
// only; anything a test measures runs on clock.FakeClock.
func within(t Fataler, timeout time.Duration, msgAndArgs []any, wait func(deadline <-chan time.Time) bool) bool {
	t.Helper()
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	if !wait(timer.C) {
		t.Fatalf("timed out after %v: %s", timeout, describe(msgAndArgs))
		return false
	}
	return true
}

// describe formats the optional message: a plain value, or a format
// string followed by its arguments.
func describe(msgAndArgs []any) string {
	switch {
	case len(msgAndArgs) == 0:
		return "(no message)"
	case len(msgAndArgs) == 1:
		return fmt.Sprint(msgAndArgs[0])
	}
	if format, ok := msgAndArgs[0].(string); ok {
		return fmt.Sprintf(format, msgAndArgs[1:]...)
	}
	return fmt.Sprint(msgAndArgs...)
}
