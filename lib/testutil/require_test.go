// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"fmt"
	"strings"
	"testing"
	"time"
)

// recorder captures Fatalf instead of stopping the test.
type recorder struct {
	failure string
}

func (r *recorder) Helper() {}

func (r *recorder) Fatalf(format string, args ...any) {
	r.failure = fmt.Sprintf(format, args...)
}

func TestRequireReceive(t *testing.T) {
	ch := make(chan int, 1)
	ch <- 7
	if got := RequireReceive(t, ch, time.Second, "value"); got != 7 {
		t.Errorf("got %d, want 7", got)
	}

	var r recorder
	RequireReceive(&r, make(chan int), 10*time.Millisecond, "instance %s flushes", "weather")
	if !strings.Contains(r.failure, "timed out") || !strings.Contains(r.failure, "instance weather flushes") {
		t.Errorf("failure = %q", r.failure)
	}

	closed := make(chan int)
	close(closed)
	r = recorder{}
	RequireReceive(&r, closed, time.Second)
	if !strings.Contains(r.failure, "channel closed") || !strings.Contains(r.failure, "(no message)") {
		t.Errorf("failure = %q", r.failure)
	}
}

func TestRequireClosed(t *testing.T) {
	ready := make(chan struct{})
	close(ready)
	RequireClosed(t, ready, time.Second, "ready")

	var r recorder
	RequireClosed(&r, make(chan struct{}), 10*time.Millisecond, "server listening")
	if !strings.Contains(r.failure, "server listening") {
		t.Errorf("failure = %q", r.failure)
	}
}

func TestSocketDirIsShort(t *testing.T) {
	directory := SocketDir(t)
	if !strings.HasPrefix(directory, "/tmp/lull-test-") {
		t.Errorf("SocketDir = %q", directory)
	}
	if len(directory+"/lull.sock") >= 108 {
		t.Errorf("socket path %q exceeds sun_path", directory)
	}
}
