// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package debounce

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bureau-foundation/lull/lib/clock"
	"github.com/bureau-foundation/lull/lib/codec"
	"github.com/bureau-foundation/lull/lib/journal"
	"github.com/bureau-foundation/lull/lib/schema/lull"
)

// DefaultQuietPeriod is used when a start request names none.
const DefaultQuietPeriod = 5 * time.Second

// Invoker is the downstream operation. It is called at most once per
// instance with the formatted batch.
type Invoker interface {
	Execute(ctx context.Context, input string) (string, error)
}

// Appender durably records transitions. *journal.Journal implements
// it.
type Appender interface {
	Append(ctx context.Context, record journal.Record) error
}

// Config holds the collaborators of one coordinator.
type Config struct {
	// ID names the instance. Required.
	ID string

	// QuietPeriod is used by Start. Restore takes the quiet period
	// from the journal. Defaults to DefaultQuietPeriod.
	QuietPeriod time.Duration

	Invoker  Invoker
	Journal  Appender
	Clock    clock.Clock
	Observer Observer
	Logger   *slog.Logger
}

// Coordinator is one debounce instance. Intake, status, and
// cancellation are safe to call from any goroutine; Run drives the
// wait and the flush and must be called exactly once.
//
// Every transition is appended to the journal under the coordinator
// mutex before it takes effect in memory, so the in-memory state never
// runs ahead of what a restart would replay.
type Coordinator struct {
	id       string
	invoker  Invoker
	journal  Appender
	clock    clock.Clock
	observer Observer
	logger   *slog.Logger

	mu    sync.Mutex
	state instanceState

	// timer is the quiet-period timer while Run is waiting. Intake
	// resets it to the new deadline under mu, so the wait observes
	// every message accepted before it checks for expiry.
	timer *clock.Timer

	// halted is the journal error that stopped the run loop, if any.
	halted error

	// wake interrupts the wait when the instance leaves
	// StateAccumulating by another path than expiry.
	wake chan struct{}

	done       chan struct{}
	doneClosed bool
	running    atomic.Bool

	// snapshot is replaced on every transition. Readers never take mu.
	snapshot atomic.Pointer[lull.Status]
}

func newCoordinator(cfg Config) (*Coordinator, error) {
	if cfg.ID == "" {
		return nil, errors.New("debounce: instance ID is required")
	}
	if cfg.Invoker == nil {
		return nil, errors.New("debounce: Invoker is required")
	}
	if cfg.Journal == nil {
		return nil, errors.New("debounce: Journal is required")
	}
	if cfg.Clock == nil {
		return nil, errors.New("debounce: Clock is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	observer := cfg.Observer
	if observer == nil {
		observer = Observers(nil)
	}
	return &Coordinator{
		id:       cfg.ID,
		invoker:  cfg.Invoker,
		journal:  cfg.Journal,
		clock:    cfg.Clock,
		observer: observer,
		logger:   logger.With("instance_id", cfg.ID),
		state:    instanceState{id: cfg.ID},
		wake:     make(chan struct{}, 1),
		done:     make(chan struct{}),
	}, nil
}

// Start creates a new instance seeded with initialMessage and records
// it in the journal. The instance accumulates until Run is called.
func Start(ctx context.Context, cfg Config, initialMessage string) (*Coordinator, error) {
	coordinator, err := newCoordinator(cfg)
	if err != nil {
		return nil, err
	}
	quietPeriod := cfg.QuietPeriod
	if quietPeriod <= 0 {
		quietPeriod = DefaultQuietPeriod
	}

	coordinator.mu.Lock()
	transition, err := coordinator.recordLocked(ctx, EventStarted,
		eventPayload{Message: initialMessage, QuietPeriod: quietPeriod}, nil)
	coordinator.mu.Unlock()
	if err != nil {
		if errors.Is(err, journal.ErrInstanceExists) {
			return nil, fmt.Errorf("%w: %q", ErrInstanceExists, cfg.ID)
		}
		return nil, err
	}
	coordinator.observer.Observe(transition)
	return coordinator, nil
}

// Restore rebuilds an instance from its journal history. Replay is a
// pure function of the records: the same history always yields the
// same state. Failures are *ReplayError.
//
// The restored coordinator resumes where the history stops once Run is
// called: a wait continues toward lastActivity+quietPeriod (expiring at
// once if that is already past), a flush that had not invoked yet
// invokes, and a flush whose invocation started without a recorded
// outcome finishes with ErrInvocationInterrupted instead of invoking
// again.
func Restore(cfg Config, records []journal.Record) (*Coordinator, error) {
	coordinator, err := newCoordinator(cfg)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, &ReplayError{InstanceID: cfg.ID, Err: errors.New("empty history")}
	}
	for _, record := range records {
		if err := coordinator.state.apply(record, nil); err != nil {
			return nil, &ReplayError{InstanceID: cfg.ID, Seq: record.Seq, Err: err}
		}
	}

	coordinator.mu.Lock()
	coordinator.publishLocked()
	if coordinator.state.state == lull.StateDone {
		coordinator.closeDoneLocked()
	}
	coordinator.mu.Unlock()
	return coordinator, nil
}

// ID returns the instance ID.
func (c *Coordinator) ID() string { return c.id }

// Run waits for the quiet period, flushes, and returns once the
// instance is done. It returns ctx.Err() if ctx is cancelled while
// waiting: the instance stays accumulating and a later Restore resumes
// it. Once the downstream invocation has started, cancelling ctx no
// longer interrupts it; the invoker's own timeout bounds it instead.
func (c *Coordinator) Run(ctx context.Context) error {
	if !c.running.CompareAndSwap(false, true) {
		return errors.New("debounce: Run called twice")
	}
	for {
		c.mu.Lock()
		state, halted := c.state.state, c.halted
		c.mu.Unlock()
		if halted != nil {
			return halted
		}

		var err error
		switch state {
		case lull.StateAccumulating:
			err = c.wait(ctx)
		case lull.StateFlushing:
			err = c.flush(context.WithoutCancel(ctx))
		case lull.StateDone:
			return nil
		}
		if err != nil {
			return err
		}
	}
}

// wait blocks until the deadline passes with no intake, then records
// wait_expired. It returns nil early if the instance is cancelled.
func (c *Coordinator) wait(ctx context.Context) error {
	c.mu.Lock()
	timer := c.clock.NewTimer(c.state.deadline().Sub(c.clock.Now()))
	c.timer = timer
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.timer = nil
		c.mu.Unlock()
		timer.Stop()
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.wake:
		case <-timer.C:
		}

		c.mu.Lock()
		if c.state.state != lull.StateAccumulating {
			c.mu.Unlock()
			return nil
		}
		// A fire for a deadline that intake has since moved. The
		// intake already re-armed the timer.
		if c.clock.Now().Before(c.state.deadline()) {
			c.mu.Unlock()
			continue
		}
		transition, err := c.recordLocked(ctx, EventWaitExpired, eventPayload{}, nil)
		c.mu.Unlock()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return c.halt(err)
		}
		c.observer.Observe(transition)
		return nil
	}
}

// flush invokes downstream with the frozen buffer and records the
// outcome. invocation_started is durable before the invoker is called.
func (c *Coordinator) flush(ctx context.Context) error {
	c.mu.Lock()
	if c.state.invocationStarted {
		transition, err := c.recordLocked(ctx, EventInvocationFailed, eventPayload{
			Error: ErrInvocationInterrupted.Error(),
			Code:  lull.CodeInvocationInterrupted,
		}, nil)
		c.mu.Unlock()
		if err != nil {
			return c.halt(err)
		}
		c.logger.Warn("invocation interrupted by restart; not invoking again")
		c.observer.Observe(transition)
		return nil
	}

	batch := FormatBatch(c.state.messages)
	transition, err := c.recordLocked(ctx, EventInvocationStarted,
		eventPayload{Messages: len(c.state.messages)}, nil)
	c.mu.Unlock()
	if err != nil {
		return c.halt(err)
	}
	c.observer.Observe(transition)

	result, invokeErr := c.invoker.Execute(ctx, batch)

	c.mu.Lock()
	if invokeErr != nil {
		transition, err = c.recordLocked(ctx, EventInvocationFailed, eventPayload{
			Error: invokeErr.Error(),
			Code:  lull.CodeInvocationFailed,
		}, invokeErr)
	} else {
		transition, err = c.recordLocked(ctx, EventInvocationCompleted, eventPayload{Result: result}, nil)
	}
	c.mu.Unlock()
	if err != nil {
		return c.halt(err)
	}
	c.observer.Observe(transition)
	return nil
}

// AddMessage appends message to the buffer and moves the deadline to
// now+quietPeriod. Once the instance is flushing or done it returns a
// *LateIntakeError and changes nothing.
func (c *Coordinator) AddMessage(ctx context.Context, message string) error {
	c.mu.Lock()
	if c.halted != nil {
		c.mu.Unlock()
		return c.halted
	}
	if c.state.state != lull.StateAccumulating {
		state := c.state.state
		c.mu.Unlock()
		return &LateIntakeError{InstanceID: c.id, State: state}
	}
	transition, err := c.recordLocked(ctx, EventMessage, eventPayload{Message: message}, nil)
	if err == nil && c.timer != nil {
		c.timer.Reset(c.state.quietPeriod)
	}
	c.mu.Unlock()
	if err != nil {
		return err
	}
	c.observer.Observe(transition)
	return nil
}

// Cancel ends an accumulating instance without invoking downstream. The
// outcome is an *InvocationError wrapping ErrCancelled. The buffer stays
// visible in Status.
func (c *Coordinator) Cancel(ctx context.Context, reason string) error {
	c.mu.Lock()
	if c.halted != nil {
		c.mu.Unlock()
		return c.halted
	}
	if c.state.state != lull.StateAccumulating {
		state := c.state.state
		c.mu.Unlock()
		return fmt.Errorf("%w: instance %q is %s", ErrNotCancellable, c.id, state)
	}
	transition, err := c.recordLocked(ctx, EventCancelled, eventPayload{Reason: reason}, nil)
	c.mu.Unlock()
	if err != nil {
		return err
	}
	select {
	case c.wake <- struct{}{}:
	default:
	}
	c.observer.Observe(transition)
	return nil
}

// Status returns the current snapshot. It never blocks on the
// coordinator lock. The returned Messages slice belongs to the caller.
func (c *Coordinator) Status() lull.Status {
	status := *c.snapshot.Load()
	status.Messages = slices.Clone(status.Messages)
	return status
}

// Done is closed when the instance reaches StateDone or its run loop
// halts on a journal failure.
func (c *Coordinator) Done() <-chan struct{} { return c.done }

// Result returns the outcome of a done instance. Before Done is closed
// it returns an error.
func (c *Coordinator) Result() (string, error) {
	select {
	case <-c.done:
	default:
		return "", fmt.Errorf("debounce: instance %q is not done", c.id)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.halted != nil {
		return "", c.halted
	}
	return c.state.result, c.state.err
}

// Wait blocks until the instance is done and returns its outcome.
func (c *Coordinator) Wait(ctx context.Context) (string, error) {
	select {
	case <-c.done:
		return c.Result()
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// recordLocked journals one transition and applies it. Caller holds mu.
func (c *Coordinator) recordLocked(ctx context.Context, kind EventKind, payload eventPayload, cause error) (Transition, error) {
	data, err := codec.Marshal(payload)
	if err != nil {
		return Transition{}, fmt.Errorf("debounce: encoding %s: %w", kind, err)
	}
	record := journal.Record{
		InstanceID: c.id,
		Seq:        c.state.seq + 1,
		Kind:       string(kind),
		RecordedAt: c.clock.Now(),
		Payload:    data,
		Terminal:   kind.Terminal(),
	}
	if err := c.journal.Append(ctx, record); err != nil {
		return Transition{}, fmt.Errorf("debounce: recording %s for %q: %w", kind, c.id, err)
	}

	from := c.state.state
	if err := c.state.apply(record, cause); err != nil {
		// The record is durable but memory refuses it: the journal
		// and the state machine disagree, and only replay can say
		// which is right.
		return Transition{}, &ReplayError{InstanceID: c.id, Seq: record.Seq, Err: err}
	}
	c.publishLocked()
	if c.state.state == lull.StateDone {
		c.closeDoneLocked()
	}

	transition := Transition{
		InstanceID:       c.id,
		Seq:              record.Seq,
		Event:            kind,
		From:             from,
		To:               c.state.state,
		At:               record.RecordedAt,
		BufferedMessages: len(c.state.messages),
		Err:              c.state.err,
	}
	if c.state.state == lull.StateAccumulating {
		transition.Deadline = c.state.deadline()
	}
	return transition, nil
}

// halt stops the run loop after a journal failure. Memory keeps the
// last durable state; a restart replays from there.
func (c *Coordinator) halt(err error) error {
	c.mu.Lock()
	c.halted = err
	c.publishLocked()
	c.closeDoneLocked()
	c.mu.Unlock()
	c.logger.Error("coordinator halted", "error", err)
	return err
}

// publishLocked replaces the snapshot. The messages slice is shared
// with the buffer, capped at its current length: later appends never
// write inside it, so the snapshot cannot change after publication.
func (c *Coordinator) publishLocked() {
	count := len(c.state.messages)
	status := &lull.Status{
		InstanceID:         c.id,
		State:              c.state.state,
		BufferedMessages:   count,
		Messages:           c.state.messages[:count:count],
		ProcessingComplete: c.state.state == lull.StateDone,
		QuietPeriod:        c.state.quietPeriod,
		Result:             c.state.result,
	}
	if c.state.state == lull.StateAccumulating {
		status.Deadline = c.state.deadline().UnixNano()
	}
	outcome := c.state.err
	if c.halted != nil {
		outcome = c.halted
	}
	if outcome != nil {
		status.Error = outcome.Error()
		status.ErrorCode = ErrorCode(outcome)
	}
	c.snapshot.Store(status)
}

func (c *Coordinator) closeDoneLocked() {
	if !c.doneClosed {
		c.doneClosed = true
		close(c.done)
	}
}
