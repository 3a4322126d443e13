// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package debounce

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/bureau-foundation/lull/lib/clock"
	"github.com/bureau-foundation/lull/lib/codec"
	"github.com/bureau-foundation/lull/lib/journal"
	"github.com/bureau-foundation/lull/lib/testutil"
)

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

const testTimeout = 5 * time.Second

func openJournal(t *testing.T) *journal.Journal {
	t.Helper()
	store, err := journal.Open(journal.Config{Path: filepath.Join(t.TempDir(), "journal.db")})
	if err != nil {
		t.Fatalf("journal.Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

// invocation is one recorded call to recordingInvoker.
type invocation struct {
	input string
	at    time.Time
}

// recordingInvoker records every call with the fake time it happened
// at. When release is non-nil, Execute blocks until it is closed.
type recordingInvoker struct {
	clock   *clock.FakeClock
	result  string
	err     error
	release chan struct{}
	started chan string

	mu    sync.Mutex
	calls []invocation
}

func newRecordingInvoker(fakeClock *clock.FakeClock) *recordingInvoker {
	return &recordingInvoker{
		clock:   fakeClock,
		result:  "ok",
		started: make(chan string, 16),
	}
}

func (r *recordingInvoker) Execute(ctx context.Context, input string) (string, error) {
	r.mu.Lock()
	r.calls = append(r.calls, invocation{input: input, at: r.clock.Now()})
	r.mu.Unlock()
	r.started <- input
	if r.release != nil {
		<-r.release
	}
	return r.result, r.err
}

func (r *recordingInvoker) Calls() []invocation {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]invocation(nil), r.calls...)
}

// harness bundles the collaborators of coordinator tests.
type harness struct {
	t       *testing.T
	clock   *clock.FakeClock
	journal *journal.Journal
	invoker *recordingInvoker
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	fakeClock := clock.Fake(epoch)
	return &harness{
		t:       t,
		clock:   fakeClock,
		journal: openJournal(t),
		invoker: newRecordingInvoker(fakeClock),
	}
}

func (h *harness) config(id string, quietPeriod time.Duration) Config {
	return Config{
		ID:          id,
		QuietPeriod: quietPeriod,
		Invoker:     h.invoker,
		Journal:     h.journal,
		Clock:       h.clock,
	}
}

func (h *harness) start(id, message string, quietPeriod time.Duration) *Coordinator {
	h.t.Helper()
	coordinator, err := Start(context.Background(), h.config(id, quietPeriod), message)
	if err != nil {
		h.t.Fatalf("Start(%q): %v", id, err)
	}
	return coordinator
}

// run starts coordinator.Run in a goroutine and returns its result
// channel.
func run(ctx context.Context, coordinator *Coordinator) <-chan error {
	result := make(chan error, 1)
	go func() { result <- coordinator.Run(ctx) }()
	return result
}

func (h *harness) add(coordinator *Coordinator, message string) {
	h.t.Helper()
	if err := coordinator.AddMessage(context.Background(), message); err != nil {
		h.t.Fatalf("AddMessage(%q): %v", message, err)
	}
}

func (h *harness) wait(coordinator *Coordinator) (string, error) {
	h.t.Helper()
	testutil.RequireClosed(h.t, coordinator.Done(), testTimeout, "instance %q done", coordinator.ID())
	return coordinator.Result()
}

// faultyJournal fails appends of one event kind.
type faultyJournal struct {
	*journal.Journal
	failKind EventKind
}

var errInjected = errors.New("injected journal failure")

func (f *faultyJournal) Append(ctx context.Context, record journal.Record) error {
	if EventKind(record.Kind) == f.failKind {
		return errInjected
	}
	return f.Journal.Append(ctx, record)
}

// eventRecord builds a journal record for replay tests.
func eventRecord(t *testing.T, id string, seq uint64, kind EventKind, payload eventPayload, at time.Duration) journal.Record {
	t.Helper()
	data, err := codec.Marshal(payload)
	if err != nil {
		t.Fatalf("encoding payload: %v", err)
	}
	return journal.Record{
		InstanceID: id,
		Seq:        seq,
		Kind:       string(kind),
		RecordedAt: epoch.Add(at),
		Payload:    data,
		Terminal:   kind.Terminal(),
	}
}
