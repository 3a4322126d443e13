// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package lullclient

import (
	"errors"

	"github.com/bureau-foundation/lull/lib/debounce"
	"github.com/bureau-foundation/lull/lib/schema/lull"
	"github.com/bureau-foundation/lull/lib/service"
)

// RemoteError is a coded failure reported by the service. It matches
// the debounce sentinel for its code with errors.Is and still unwraps
// to the *service.ServiceError.
type RemoteError struct {
	Sentinel error
	Service  *service.ServiceError
}

func (e *RemoteError) Error() string { return e.Service.Message }

func (e *RemoteError) Unwrap() []error {
	if e.Sentinel == nil {
		return []error{e.Service}
	}
	return []error{e.Sentinel, e.Service}
}

// ErrorCode returns the code the service sent.
func (e *RemoteError) ErrorCode() string { return e.Service.Code }

// sentinels maps wire codes to the errors they stand for.
var sentinels = map[string]error{
	lull.CodeLateIntake:            debounce.ErrLateIntake,
	lull.CodeUnknownInstance:       debounce.ErrUnknownInstance,
	lull.CodeInstanceExists:        debounce.ErrInstanceExists,
	lull.CodeNotCancellable:        debounce.ErrNotCancellable,
	lull.CodeInvocationInterrupted: debounce.ErrInvocationInterrupted,
	lull.CodeCancelled:             debounce.ErrCancelled,
}

// translate rebuilds a typed error from a service failure. Outcomes of
// done instances become *debounce.InvocationError; other coded
// failures become *RemoteError. Transport errors pass through.
func translate(instanceID string, err error) error {
	var serviceErr *service.ServiceError
	if !errors.As(err, &serviceErr) || serviceErr.Code == "" {
		return err
	}
	remote := &RemoteError{Sentinel: sentinels[serviceErr.Code], Service: serviceErr}
	switch serviceErr.Code {
	case lull.CodeInvocationFailed, lull.CodeInvocationInterrupted, lull.CodeCancelled:
		return &debounce.InvocationError{InstanceID: instanceID, Err: remote}
	}
	return remote
}
