// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package lull

import "time"

// State is the lifecycle phase of a coordinator instance.
type State string

const (
	// StateAccumulating buffers intake and waits for a quiet period.
	StateAccumulating State = "accumulating"

	// StateFlushing has frozen the buffer and owns the single
	// downstream invocation.
	StateFlushing State = "flushing"

	// StateDone is terminal. Intake is rejected.
	StateDone State = "done"
)

// IsKnown reports whether s is one of the defined states.
func (s State) IsKnown() bool {
	switch s {
	case StateAccumulating, StateFlushing, StateDone:
		return true
	}
	return false
}

// Status is a read-only snapshot of one instance.
type Status struct {
	InstanceID string `json:"instance_id"`
	State      State  `json:"state"`

	// BufferedMessages is len(Messages).
	BufferedMessages int `json:"buffered_messages"`

	// Messages is the buffer in arrival order. After completion it is
	// the batch that was flushed.
	Messages []string `json:"messages"`

	ProcessingComplete bool `json:"processing_complete"`

	// QuietPeriod is in nanoseconds on the wire.
	QuietPeriod time.Duration `json:"quiet_period"`

	// Deadline is when the current wait expires if no more messages
	// arrive, in Unix nanoseconds. Zero outside StateAccumulating.
	Deadline int64 `json:"deadline,omitempty"`

	// Result is the downstream output. Set only on success.
	Result string `json:"result,omitempty"`

	// Error describes the failure, cancellation, or replay problem
	// that ended the instance.
	Error string `json:"error,omitempty"`

	// ErrorCode classifies Error for programmatic callers. See the
	// Code constants.
	ErrorCode string `json:"error_code,omitempty"`
}
