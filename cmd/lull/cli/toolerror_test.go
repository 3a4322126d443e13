// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"syscall"
	"testing"

	"github.com/bureau-foundation/lull/lib/debounce"
	"github.com/bureau-foundation/lull/lib/lullclient"
	"github.com/bureau-foundation/lull/lib/schema/lull"
	"github.com/bureau-foundation/lull/lib/service"
)

func TestToolErrorWrapping(t *testing.T) {
	inner := errors.New("bad quiet period")
	toolErr := &ToolError{Category: CategoryValidation, Err: inner}
	hinted := toolErr.WithHint("use a Go duration like 5s")
	if hinted != toolErr {
		t.Error("WithHint should return the same pointer")
	}

	wrapped := fmt.Errorf("starting: %w", toolErr)
	var found *ToolError
	if !errors.As(wrapped, &found) || found.Hint != "use a Go duration like 5s" {
		t.Errorf("errors.As through wrapping = %+v", found)
	}
	if !errors.Is(wrapped, inner) {
		t.Error("inner error not reachable")
	}
	if toolErr.Error() != "bad quiet period" {
		t.Errorf("Error() = %q", toolErr.Error())
	}
}

func TestToolErrorExitCodes(t *testing.T) {
	tests := []struct {
		err  *ToolError
		want int
	}{
		{Validation("x"), 2},
		{NotFound("x"), 3},
		{Conflict("x"), 4},
		{Transient("x"), 5},
		{Internal("x"), 1},
		{&ToolError{Category: "mystery", Err: errors.New("x")}, 1},
	}
	for _, test := range tests {
		if got := test.err.ExitCode(); got != test.want {
			t.Errorf("%s ExitCode = %d, want %d", test.err.Category, got, test.want)
		}
	}
}

// remote builds the error lullclient returns for a coded failure.
func remote(code string) error {
	return &lullclient.RemoteError{
		Sentinel: sentinelFor(code),
		Service:  &service.ServiceError{Action: "test", Message: code + " happened", Code: code},
	}
}

func sentinelFor(code string) error {
	switch code {
	case lull.CodeUnknownInstance:
		return debounce.ErrUnknownInstance
	case lull.CodeLateIntake:
		return debounce.ErrLateIntake
	case lull.CodeInstanceExists:
		return debounce.ErrInstanceExists
	case lull.CodeNotCancellable:
		return debounce.ErrNotCancellable
	}
	return nil
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		category ErrorCategory
		hint     string
	}{
		{"unknown instance", remote(lull.CodeUnknownInstance), CategoryNotFound, "lull list"},
		{"late intake", remote(lull.CodeLateIntake), CategoryConflict, "lull start"},
		{"instance exists", remote(lull.CodeInstanceExists), CategoryConflict, "lull send"},
		{"not cancellable", remote(lull.CodeNotCancellable), CategoryConflict, ""},
		{"invalid request", remote(lull.CodeInvalidRequest), CategoryValidation, ""},
		{"replay failed", remote(lull.CodeReplayFailed), CategoryInternal, "journal"},
		{"no server", fmt.Errorf("connecting: %w", syscall.ENOENT), CategoryTransient, "/run/lull.sock"},
		{"refused", fmt.Errorf("connecting: %w", syscall.ECONNREFUSED), CategoryTransient, "lull-service running"},
		{"permission", fmt.Errorf("connecting: %w", syscall.EACCES), CategoryValidation, "permissions"},
		{"deadline", fmt.Errorf("reading response: %w", context.DeadlineExceeded), CategoryTransient, "--timeout"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			err := Classify(test.err, "/run/lull.sock")
			var toolErr *ToolError
			if !errors.As(err, &toolErr) {
				t.Fatalf("Classify = %v, want a ToolError", err)
			}
			if toolErr.Category != test.category {
				t.Errorf("category = %s, want %s", toolErr.Category, test.category)
			}
			if !strings.Contains(toolErr.Hint, test.hint) {
				t.Errorf("hint = %q, want it to mention %q", toolErr.Hint, test.hint)
			}
			if !errors.Is(err, test.err) {
				t.Error("classified error lost the original")
			}
		})
	}
}

func TestClassifyPassThrough(t *testing.T) {
	if Classify(nil, "") != nil {
		t.Error("Classify(nil) != nil")
	}
	plain := errors.New("something else")
	if Classify(plain, "") != plain {
		t.Error("uncoded error was wrapped")
	}
	already := NotFound("gone")
	if Classify(already, "") != error(already) {
		t.Error("ToolError was rewrapped")
	}
	failed := &debounce.InvocationError{InstanceID: "weather", Err: remote(lull.CodeInvocationFailed)}
	if Classify(failed, "") != error(failed) {
		t.Error("invocation outcome was rewrapped")
	}
}
