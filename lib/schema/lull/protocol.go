// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package lull

import "time"

// Socket actions served by lull-service.
const (
	ActionStart      = "start"
	ActionAddMessage = "add-message"
	ActionStatus     = "status"
	ActionResult     = "result"
	ActionCancel     = "cancel"
	ActionList       = "list"
	ActionHealth     = "health"
)

// Error codes carried in the response envelope next to the error
// message, so clients can rebuild typed errors.
const (
	CodeLateIntake            = "late_intake"
	CodeUnknownInstance       = "unknown_instance"
	CodeInstanceExists        = "instance_exists"
	CodeNotCancellable        = "not_cancellable"
	CodeInvocationFailed      = "invocation_failed"
	CodeInvocationInterrupted = "invocation_interrupted"
	CodeCancelled             = "cancelled"
	CodeReplayFailed          = "replay_failed"
	CodeInvalidRequest        = "invalid_request"
)

// StartRequest creates an instance seeded with Message.
type StartRequest struct {
	InstanceID string `json:"instance_id"`
	Message    string `json:"message"`

	// QuietPeriod is in nanoseconds. Zero uses the service default.
	QuietPeriod time.Duration `json:"quiet_period,omitempty"`
}

// AddMessageRequest appends Message to an accumulating instance.
type AddMessageRequest struct {
	InstanceID string `json:"instance_id"`
	Message    string `json:"message"`
}

// InstanceRequest names an instance. Used by "status" and "result".
type InstanceRequest struct {
	InstanceID string `json:"instance_id"`
}

// CancelRequest ends an accumulating instance without invoking
// downstream.
type CancelRequest struct {
	InstanceID string `json:"instance_id"`
	Reason     string `json:"reason,omitempty"`
}

// ResultResponse is the successful outcome of "result". The action
// blocks until the instance is done; a failed instance is reported as
// an error response with a Code.
type ResultResponse struct {
	InstanceID string `json:"instance_id"`
	Result     string `json:"result"`
}

// ListResponse holds a status snapshot of every known instance, sorted
// by instance ID.
type ListResponse struct {
	Instances []Status `json:"instances"`
}

// HealthResponse reports instance counts by state.
type HealthResponse struct {
	Version      string `json:"version"`
	Accumulating int    `json:"accumulating"`
	Flushing     int    `json:"flushing"`
	Done         int    `json:"done"`

	// Failed counts instances whose journal history could not be
	// replayed.
	Failed int `json:"failed"`
}
