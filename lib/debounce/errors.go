// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package debounce

import (
	"errors"
	"fmt"

	"github.com/bureau-foundation/lull/lib/schema/lull"
)

// codedError is a sentinel that carries a wire error code.
type codedError struct {
	code    string
	message string
}

func (e *codedError) Error() string     { return e.message }
func (e *codedError) ErrorCode() string { return e.code }

var (
	// ErrLateIntake matches every *LateIntakeError.
	ErrLateIntake error = &codedError{lull.CodeLateIntake, "debounce: late intake"}

	// ErrUnknownInstance is returned by Manager operations on an ID
	// with no instance.
	ErrUnknownInstance error = &codedError{lull.CodeUnknownInstance, "debounce: unknown instance"}

	// ErrInstanceExists is returned when starting an ID that belongs
	// to a live instance.
	ErrInstanceExists error = &codedError{lull.CodeInstanceExists, "debounce: instance already exists"}

	// ErrNotCancellable is returned by Cancel once flushing began.
	ErrNotCancellable error = &codedError{lull.CodeNotCancellable, "debounce: instance is no longer accumulating"}

	// ErrInvocationInterrupted is the outcome of an instance whose
	// process stopped after the downstream invocation started and
	// before its outcome was recorded. The invocation is not issued
	// again.
	ErrInvocationInterrupted = errors.New("downstream invocation interrupted before its outcome was recorded")

	// ErrCancelled is the outcome of a cancelled instance.
	ErrCancelled = errors.New("cancelled before flush")

	// ErrShutdown is returned by Manager.Start after Shutdown.
	ErrShutdown = errors.New("debounce: manager is shut down")
)

// LateIntakeError rejects a message sent to an instance that is
// flushing or done. The instance is unaffected.
type LateIntakeError struct {
	InstanceID string
	State      lull.State
}

func (e *LateIntakeError) Error() string {
	return fmt.Sprintf("debounce: instance %q is %s and no longer accepts messages", e.InstanceID, e.State)
}

func (e *LateIntakeError) Is(target error) bool { return target == ErrLateIntake }

func (e *LateIntakeError) ErrorCode() string { return lull.CodeLateIntake }

// InvocationError is the failed outcome of an instance: the downstream
// invocation failed, was interrupted by a restart, or the instance was
// cancelled before flushing.
type InvocationError struct {
	InstanceID string
	Err        error
}

func (e *InvocationError) Error() string {
	return fmt.Sprintf("debounce: instance %q: %v", e.InstanceID, e.Err)
}

func (e *InvocationError) Unwrap() error { return e.Err }

func (e *InvocationError) ErrorCode() string {
	switch {
	case errors.Is(e.Err, ErrCancelled):
		return lull.CodeCancelled
	case errors.Is(e.Err, ErrInvocationInterrupted):
		return lull.CodeInvocationInterrupted
	default:
		return lull.CodeInvocationFailed
	}
}

// ReplayError reports an instance whose journal history cannot be
// turned back into coordinator state. The instance is unusable.
type ReplayError struct {
	InstanceID string
	Seq        uint64
	Err        error
}

func (e *ReplayError) Error() string {
	return fmt.Sprintf("debounce: replaying instance %q at record %d: %v", e.InstanceID, e.Seq, e.Err)
}

func (e *ReplayError) Unwrap() error { return e.Err }

func (e *ReplayError) ErrorCode() string { return lull.CodeReplayFailed }

// ErrorCode returns the wire code of err, or "" when err carries none.
func ErrorCode(err error) string {
	var coded interface{ ErrorCode() string }
	if errors.As(err, &coded) {
		return coded.ErrorCode()
	}
	return ""
}

// cancellation builds the error recorded for a cancelled instance.
func cancellation(reason string) error {
	if reason == "" {
		return ErrCancelled
	}
	return fmt.Errorf("%w: %s", ErrCancelled, reason)
}
