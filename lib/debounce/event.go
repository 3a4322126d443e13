// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package debounce

import (
	"errors"
	"fmt"
	"time"

	"github.com/bureau-foundation/lull/lib/codec"
	"github.com/bureau-foundation/lull/lib/journal"
	"github.com/bureau-foundation/lull/lib/schema/lull"
)

// EventKind names a journaled transition. The values are persisted.
type EventKind string

const (
	EventStarted             EventKind = "started"
	EventMessage             EventKind = "message"
	EventWaitExpired         EventKind = "wait_expired"
	EventInvocationStarted   EventKind = "invocation_started"
	EventInvocationCompleted EventKind = "invocation_completed"
	EventInvocationFailed    EventKind = "invocation_failed"
	EventCancelled           EventKind = "cancelled"
)

// Terminal reports whether the event ends the instance.
func (k EventKind) Terminal() bool {
	switch k {
	case EventInvocationCompleted, EventInvocationFailed, EventCancelled:
		return true
	}
	return false
}

// eventPayload is the CBOR body of every event kind. Each kind uses a
// subset of the fields.
type eventPayload struct {
	Message     string        `cbor:"message,omitempty"`
	QuietPeriod time.Duration `cbor:"quiet_period,omitempty"`
	Messages    int           `cbor:"messages,omitempty"`
	Result      string        `cbor:"result,omitempty"`
	Error       string        `cbor:"error,omitempty"`
	Code        string        `cbor:"code,omitempty"`
	Reason      string        `cbor:"reason,omitempty"`
}

// instanceState is everything replay reconstructs. Live transitions and
// replay both go through apply, so a coordinator rebuilt from its
// journal is identical to the one that wrote it.
type instanceState struct {
	id           string
	seq          uint64
	state        lull.State
	quietPeriod  time.Duration
	messages     []string
	lastActivity time.Time

	// invocationStarted is set between invocation_started and the
	// outcome. A coordinator restored in that window must not invoke.
	invocationStarted bool

	result string
	err    error
}

func (s *instanceState) deadline() time.Time {
	return s.lastActivity.Add(s.quietPeriod)
}

// apply advances the state by one journal record. cause, when non-nil,
// replaces the error decoded from an invocation_failed payload so that
// live callers keep the original error chain.
func (s *instanceState) apply(record journal.Record, cause error) error {
	kind := EventKind(record.Kind)
	if record.InstanceID != s.id {
		return fmt.Errorf("record belongs to instance %q", record.InstanceID)
	}
	if record.Seq != s.seq+1 {
		return fmt.Errorf("expected seq %d, got %d", s.seq+1, record.Seq)
	}
	if record.Terminal != kind.Terminal() {
		return fmt.Errorf("%s record has terminal=%v", kind, record.Terminal)
	}

	var payload eventPayload
	if err := codec.Unmarshal(record.Payload, &payload); err != nil {
		return fmt.Errorf("decoding %s payload: %w", kind, err)
	}

	if s.seq == 0 && kind != EventStarted {
		return fmt.Errorf("history begins with %s, want %s", kind, EventStarted)
	}

	switch kind {
	case EventStarted:
		if s.seq != 0 {
			return fmt.Errorf("%s at seq %d", kind, record.Seq)
		}
		if payload.QuietPeriod <= 0 {
			return fmt.Errorf("non-positive quiet period %v", payload.QuietPeriod)
		}
		s.state = lull.StateAccumulating
		s.quietPeriod = payload.QuietPeriod
		s.messages = []string{payload.Message}
		s.lastActivity = record.RecordedAt

	case EventMessage:
		if err := s.require(kind, lull.StateAccumulating); err != nil {
			return err
		}
		s.messages = append(s.messages, payload.Message)
		s.lastActivity = record.RecordedAt

	case EventWaitExpired:
		if err := s.require(kind, lull.StateAccumulating); err != nil {
			return err
		}
		s.state = lull.StateFlushing

	case EventInvocationStarted:
		if err := s.require(kind, lull.StateFlushing); err != nil {
			return err
		}
		if s.invocationStarted {
			return errors.New("invocation started twice")
		}
		s.invocationStarted = true

	case EventInvocationCompleted, EventInvocationFailed:
		if err := s.require(kind, lull.StateFlushing); err != nil {
			return err
		}
		if !s.invocationStarted {
			return fmt.Errorf("%s without %s", kind, EventInvocationStarted)
		}
		s.invocationStarted = false
		s.state = lull.StateDone
		if kind == EventInvocationCompleted {
			s.result = payload.Result
			break
		}
		if cause == nil {
			cause = decodeFailure(payload)
		}
		s.err = &InvocationError{InstanceID: s.id, Err: cause}

	case EventCancelled:
		if err := s.require(kind, lull.StateAccumulating); err != nil {
			return err
		}
		s.state = lull.StateDone
		s.err = &InvocationError{InstanceID: s.id, Err: cancellation(payload.Reason)}

	default:
		return fmt.Errorf("unknown event kind %q", record.Kind)
	}

	s.seq = record.Seq
	return nil
}

func (s *instanceState) require(kind EventKind, state lull.State) error {
	if s.state != state {
		return fmt.Errorf("%s in state %s", kind, s.state)
	}
	return nil
}

// decodeFailure rebuilds the error of a replayed invocation_failed
// record. Only the interruption sentinel survives as an identity; other
// downstream errors come back as their message.
func decodeFailure(payload eventPayload) error {
	if payload.Code == lull.CodeInvocationInterrupted {
		return ErrInvocationInterrupted
	}
	return errors.New(payload.Error)
}
