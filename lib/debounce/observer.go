// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package debounce

import (
	"context"
	"log/slog"
	"time"

	"github.com/bureau-foundation/lull/lib/schema/lull"
)

// Transition describes one journaled state change, delivered to the
// Observer after the record is durable.
type Transition struct {
	InstanceID string
	Seq        uint64
	Event      EventKind
	From       lull.State
	To         lull.State
	At         time.Time

	BufferedMessages int

	// Deadline is the wait deadline after the transition. Zero once
	// the instance left StateAccumulating.
	Deadline time.Time

	// Err is the outcome of a terminal failure or cancellation.
	Err error
}

// Observer receives transitions for tracing and logging. Observe is
// called outside the coordinator lock, from whichever goroutine made
// the transition, so implementations must be safe for concurrent use.
type Observer interface {
	Observe(Transition)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Transition)

func (f ObserverFunc) Observe(transition Transition) { f(transition) }

// Observers fans a transition out to each non-nil observer in order.
type Observers []Observer

func (o Observers) Observe(transition Transition) {
	for _, observer := range o {
		if observer != nil {
			observer.Observe(transition)
		}
	}
}

// LogObserver logs every transition. Failures and cancellations are
// logged at warn; everything else at info, except intake, which is
// debug because a busy instance produces one per message.
type LogObserver struct {
	Logger *slog.Logger
}

func (o LogObserver) Observe(transition Transition) {
	level := slog.LevelInfo
	attributes := []any{
		"instance_id", transition.InstanceID,
		"event", string(transition.Event),
		"seq", transition.Seq,
		"from", string(transition.From),
		"to", string(transition.To),
		"buffered_messages", transition.BufferedMessages,
	}
	if !transition.Deadline.IsZero() {
		attributes = append(attributes, "deadline", transition.Deadline)
	}
	switch {
	case transition.Err != nil:
		level = slog.LevelWarn
		attributes = append(attributes, "error", transition.Err)
	case transition.Event == EventMessage:
		level = slog.LevelDebug
	}
	o.Logger.Log(context.Background(), level, "coordinator transition", attributes...)
}
