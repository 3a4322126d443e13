// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"context"
	"errors"
	"fmt"
	"syscall"

	"github.com/bureau-foundation/lull/lib/debounce"
	"github.com/bureau-foundation/lull/lib/schema/lull"
	"github.com/bureau-foundation/lull/lib/service"
)

// ErrorCategory classifies command errors so that scripts can decide
// whether to retry, fix their input, or give up without parsing
// message text. The category is printed by "--json" callers only
// through the exit code; humans see the hint.
type ErrorCategory string

const (
	// CategoryValidation indicates the caller provided invalid input:
	// missing required parameters, wrong argument count, unparseable
	// values. The caller should fix the input and retry.
	CategoryValidation ErrorCategory = "validation"

	// CategoryNotFound indicates the named instance does not exist.
	CategoryNotFound ErrorCategory = "not_found"

	// CategoryConflict indicates the operation conflicts with the
	// instance's state: late intake, a duplicate start, cancelling an
	// instance that is already flushing.
	CategoryConflict ErrorCategory = "conflict"

	// CategoryTransient indicates a temporary failure: the service is
	// not running, or a wait timed out. Retrying may help.
	CategoryTransient ErrorCategory = "transient"

	// CategoryInternal indicates an unexpected error: a corrupted
	// journal, an undecodable response. Report rather than retry.
	CategoryInternal ErrorCategory = "internal"
)

// exitCodes are the process exit codes per category. 1 stays the
// generic failure.
var exitCodes = map[ErrorCategory]int{
	CategoryValidation: 2,
	CategoryNotFound:   3,
	CategoryConflict:   4,
	CategoryTransient:  5,
	CategoryInternal:   1,
}

// ToolError is a categorized error returned by CLI commands. It wraps
// an inner error, preserving the full chain for errors.Is and
// errors.As, and adds a category and an optional hint for humans.
type ToolError struct {
	// Category classifies the error for programmatic handling.
	Category ErrorCategory

	// Err is the underlying error with the human-readable message.
	Err error

	// Hint is an actionable suggestion printed after the error.
	Hint string
}

// Error returns the underlying error message. Neither the category
// nor the hint is included.
func (e *ToolError) Error() string { return e.Err.Error() }

// Unwrap returns the underlying error.
func (e *ToolError) Unwrap() error { return e.Err }

// ExitCode maps the category to the process exit status.
func (e *ToolError) ExitCode() int {
	if code, ok := exitCodes[e.Category]; ok {
		return code
	}
	return 1
}

// WithHint sets the hint and returns the same error for chaining.
func (e *ToolError) WithHint(hint string) *ToolError {
	e.Hint = hint
	return e
}

// Validation creates a validation error: the caller provided bad input.
func Validation(format string, args ...any) *ToolError {
	return &ToolError{Category: CategoryValidation, Err: fmt.Errorf(format, args...)}
}

// NotFound creates a not-found error: a referenced instance does not exist.
func NotFound(format string, args ...any) *ToolError {
	return &ToolError{Category: CategoryNotFound, Err: fmt.Errorf(format, args...)}
}

// Conflict creates a conflict error: the operation conflicts with existing state.
func Conflict(format string, args ...any) *ToolError {
	return &ToolError{Category: CategoryConflict, Err: fmt.Errorf(format, args...)}
}

// Transient creates a transient error: a temporary failure that may succeed on retry.
func Transient(format string, args ...any) *ToolError {
	return &ToolError{Category: CategoryTransient, Err: fmt.Errorf(format, args...)}
}

// Internal creates an internal error: an unexpected failure, bug, or I/O error.
func Internal(format string, args ...any) *ToolError {
	return &ToolError{Category: CategoryInternal, Err: fmt.Errorf(format, args...)}
}

// Classify wraps an error from lullclient.Client in a ToolError
// whose category follows the error's code. Errors that already carry
// a category, and nil, are returned unchanged. socketPath is named in
// the hint when the service cannot be reached.
func Classify(err error, socketPath string) error {
	if err == nil {
		return nil
	}
	var toolErr *ToolError
	if errors.As(err, &toolErr) {
		return err
	}

	switch {
	case errors.Is(err, debounce.ErrUnknownInstance):
		return &ToolError{Category: CategoryNotFound, Err: err,
			Hint: "Run 'lull list' to see the instances the service knows."}
	case errors.Is(err, debounce.ErrLateIntake):
		return &ToolError{Category: CategoryConflict, Err: err,
			Hint: "The batch already closed. Start a new instance with 'lull start'."}
	case errors.Is(err, debounce.ErrInstanceExists):
		return &ToolError{Category: CategoryConflict, Err: err,
			Hint: "Send more messages with 'lull send', or wait for it to finish and start again."}
	case errors.Is(err, debounce.ErrNotCancellable):
		return &ToolError{Category: CategoryConflict, Err: err}
	case errors.Is(err, syscall.ENOENT), errors.Is(err, syscall.ECONNREFUSED):
		return &ToolError{Category: CategoryTransient, Err: err,
			Hint: fmt.Sprintf("Nothing is listening on %s. Is lull-service running?", socketPath)}
	case errors.Is(err, context.DeadlineExceeded):
		return &ToolError{Category: CategoryTransient, Err: err,
			Hint: "The service did not answer in time. Raise --timeout to wait longer."}
	case errors.Is(err, syscall.EACCES), errors.Is(err, syscall.EPERM):
		return &ToolError{Category: CategoryValidation, Err: err,
			Hint: fmt.Sprintf("Check the ownership and permissions of %s and its directory.", socketPath)}
	}

	switch service.ErrorCode(err) {
	case lull.CodeInvalidRequest:
		return &ToolError{Category: CategoryValidation, Err: err}
	case lull.CodeReplayFailed:
		return &ToolError{Category: CategoryInternal, Err: err,
			Hint: "The instance's journal history failed verification. Inspect the journal before reusing the ID."}
	}
	return err
}
