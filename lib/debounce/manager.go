// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package debounce

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/bureau-foundation/lull/lib/clock"
	"github.com/bureau-foundation/lull/lib/journal"
	"github.com/bureau-foundation/lull/lib/schema/lull"
)

// Journal is the storage the Manager needs. *journal.Journal
// implements it.
type Journal interface {
	Appender
	Load(ctx context.Context, instanceID string) ([]journal.Record, error)
	Instances(ctx context.Context) ([]journal.Instance, error)
	Delete(ctx context.Context, instanceID string) error
	Prune(ctx context.Context, cutoff time.Time) ([]string, error)
}

// ManagerConfig holds the parameters for NewManager.
type ManagerConfig struct {
	Journal Journal
	Invoker Invoker
	Clock   clock.Clock

	// Observer receives every transition of every instance.
	Observer Observer

	Logger *slog.Logger

	// DefaultQuietPeriod applies to Start calls with a zero quiet
	// period. Defaults to DefaultQuietPeriod.
	DefaultQuietPeriod time.Duration

	// Retention is how long a done instance stays queryable before
	// RunRetention prunes it. Defaults to 24 hours.
	Retention time.Duration

	// SweepInterval is the RunRetention period. Defaults to one
	// minute.
	SweepInterval time.Duration
}

// Manager owns every coordinator of one journal: it starts them,
// routes operations to them by ID, runs each in its own goroutine,
// and rebuilds them from the journal after a restart.
type Manager struct {
	journal            Journal
	invoker            Invoker
	clock              clock.Clock
	observer           Observer
	logger             *slog.Logger
	defaultQuietPeriod time.Duration
	retention          time.Duration
	sweepInterval      time.Duration

	// runContext is the parent of every run loop. Shutdown cancels
	// it; it is independent of request contexts.
	runContext context.Context
	cancelRuns context.CancelFunc
	runs       sync.WaitGroup

	mu        sync.Mutex
	instances map[string]*managedInstance
	shutdown  bool
}

// managedInstance is a working coordinator, the replay error that
// prevented building one, or a reservation held by a Start whose
// journal writes are in flight.
type managedInstance struct {
	coordinator *Coordinator
	replayErr   *ReplayError
	pending     bool
}

// NewManager validates cfg and returns a Manager with no instances.
// Call Recover before serving requests to load the journal.
func NewManager(cfg ManagerConfig) (*Manager, error) {
	if cfg.Journal == nil {
		return nil, errors.New("debounce: manager Journal is required")
	}
	if cfg.Invoker == nil {
		return nil, errors.New("debounce: manager Invoker is required")
	}
	if cfg.Clock == nil {
		return nil, errors.New("debounce: manager Clock is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	manager := &Manager{
		journal:            cfg.Journal,
		invoker:            cfg.Invoker,
		clock:              cfg.Clock,
		observer:           cfg.Observer,
		logger:             logger,
		defaultQuietPeriod: cfg.DefaultQuietPeriod,
		retention:          cfg.Retention,
		sweepInterval:      cfg.SweepInterval,
		instances:          make(map[string]*managedInstance),
	}
	if manager.defaultQuietPeriod <= 0 {
		manager.defaultQuietPeriod = DefaultQuietPeriod
	}
	if manager.retention <= 0 {
		manager.retention = 24 * time.Hour
	}
	if manager.sweepInterval <= 0 {
		manager.sweepInterval = time.Minute
	}
	manager.runContext, manager.cancelRuns = context.WithCancel(context.Background())
	return manager, nil
}

func (m *Manager) coordinatorConfig(id string, quietPeriod time.Duration) Config {
	return Config{
		ID:          id,
		QuietPeriod: quietPeriod,
		Invoker:     m.invoker,
		Journal:     m.journal,
		Clock:       m.clock,
		Observer:    m.observer,
		Logger:      m.logger,
	}
}

// Recover replays every instance in the journal. Live instances resume
// their run loops; done ones stay queryable. An instance whose history
// cannot be replayed is kept with its *ReplayError, which every later
// operation on that ID returns. Only storage failures are returned.
func (m *Manager) Recover(ctx context.Context) error {
	instances, err := m.journal.Instances(ctx)
	if err != nil {
		return fmt.Errorf("debounce: recover: %w", err)
	}

	var resumed, finished, failed int
	for _, instance := range instances {
		records, err := m.journal.Load(ctx, instance.ID)
		var corruption *journal.CorruptionError
		if errors.As(err, &corruption) {
			m.keepReplayError(&ReplayError{InstanceID: instance.ID, Seq: corruption.Seq, Err: err})
			failed++
			continue
		}
		if err != nil {
			return fmt.Errorf("debounce: recover %q: %w", instance.ID, err)
		}

		coordinator, err := Restore(m.coordinatorConfig(instance.ID, 0), records)
		if err != nil {
			var replayErr *ReplayError
			if !errors.As(err, &replayErr) {
				return err
			}
			m.keepReplayError(replayErr)
			failed++
			continue
		}

		m.mu.Lock()
		m.instances[instance.ID] = &managedInstance{coordinator: coordinator}
		m.mu.Unlock()

		if coordinator.Status().State == lull.StateDone {
			finished++
			continue
		}
		m.launch(coordinator)
		resumed++
	}

	m.logger.Info("journal recovered",
		"instances", len(instances),
		"resumed", resumed,
		"done", finished,
		"failed", failed,
	)
	return nil
}

func (m *Manager) keepReplayError(replayErr *ReplayError) {
	m.logger.Error("instance history cannot be replayed",
		"instance_id", replayErr.InstanceID,
		"seq", replayErr.Seq,
		"error", replayErr.Err,
	)
	m.mu.Lock()
	m.instances[replayErr.InstanceID] = &managedInstance{replayErr: replayErr}
	m.mu.Unlock()
}

func (m *Manager) launch(coordinator *Coordinator) {
	m.runs.Add(1)
	go func() {
		defer m.runs.Done()
		err := coordinator.Run(m.runContext)
		if err != nil && !errors.Is(err, context.Canceled) {
			m.logger.Error("coordinator run failed", "instance_id", coordinator.ID(), "error", err)
		}
	}()
}

// Start creates an instance and starts its run loop. A zero
// quietPeriod uses the manager default. Starting the ID of a done
// instance deletes the old history first; starting a live one fails
// with ErrInstanceExists.
//
// The ID is reserved under the manager lock and the journal writes run
// without it, so operations on other instances never wait for this
// one's storage.
func (m *Manager) Start(ctx context.Context, id, initialMessage string, quietPeriod time.Duration) (lull.Status, error) {
	if strings.TrimSpace(id) == "" {
		return lull.Status{}, errors.New("debounce: instance ID is required")
	}
	if quietPeriod <= 0 {
		quietPeriod = m.defaultQuietPeriod
	}

	reservation, previous, err := m.reserve(id)
	if err != nil {
		return lull.Status{}, err
	}

	historyDeleted := false
	if previous != nil {
		err = m.journal.Delete(ctx, id)
		if err != nil {
			err = fmt.Errorf("debounce: replacing done instance %q: %w", id, err)
		} else {
			historyDeleted = true
			m.logger.Info("replacing done instance", "instance_id", id)
		}
	}
	var coordinator *Coordinator
	if err == nil {
		coordinator, err = Start(ctx, m.coordinatorConfig(id, quietPeriod), initialMessage)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err != nil {
		if m.instances[id] == reservation {
			if previous != nil && !historyDeleted {
				m.instances[id] = previous
			} else {
				delete(m.instances, id)
			}
		}
		return lull.Status{}, err
	}
	m.instances[id] = &managedInstance{coordinator: coordinator}
	// After Shutdown the instance stays accumulating in the journal and
	// resumes on the next Recover.
	if !m.shutdown {
		m.launch(coordinator)
	}
	return coordinator.Status(), nil
}

// reserve claims id for a Start in progress. previous is the done
// instance being replaced, if any.
func (m *Manager) reserve(id string) (reservation, previous *managedInstance, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.shutdown {
		return nil, nil, ErrShutdown
	}
	if existing, ok := m.instances[id]; ok {
		switch {
		case existing.pending:
			return nil, nil, fmt.Errorf("%w: %q", ErrInstanceExists, id)
		case existing.replayErr != nil:
			return nil, nil, existing.replayErr
		case existing.coordinator.Status().State != lull.StateDone:
			return nil, nil, fmt.Errorf("%w: %q", ErrInstanceExists, id)
		}
		previous = existing
	}
	reservation = &managedInstance{pending: true}
	m.instances[id] = reservation
	return reservation, previous, nil
}

// lookup returns the coordinator for id, or the error every operation
// on that ID reports.
func (m *Manager) lookup(id string) (*Coordinator, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	instance, ok := m.instances[id]
	if !ok || instance.pending {
		return nil, fmt.Errorf("%w: %q", ErrUnknownInstance, id)
	}
	if instance.replayErr != nil {
		return nil, instance.replayErr
	}
	return instance.coordinator, nil
}

// AddMessage delivers message to an instance and returns the snapshot
// that includes it.
func (m *Manager) AddMessage(ctx context.Context, id, message string) (lull.Status, error) {
	coordinator, err := m.lookup(id)
	if err != nil {
		return lull.Status{}, err
	}
	if err := coordinator.AddMessage(ctx, message); err != nil {
		return lull.Status{}, err
	}
	return coordinator.Status(), nil
}

// Status returns an instance's snapshot. For an instance that failed
// replay it returns a snapshot describing the failure together with the
// *ReplayError.
func (m *Manager) Status(id string) (lull.Status, error) {
	m.mu.Lock()
	instance, ok := m.instances[id]
	m.mu.Unlock()
	if !ok || instance.pending {
		return lull.Status{}, fmt.Errorf("%w: %q", ErrUnknownInstance, id)
	}
	if instance.replayErr != nil {
		return replayFailureStatus(instance.replayErr), instance.replayErr
	}
	return instance.coordinator.Status(), nil
}

func replayFailureStatus(replayErr *ReplayError) lull.Status {
	return lull.Status{
		InstanceID: replayErr.InstanceID,
		Messages:   []string{},
		Error:      replayErr.Error(),
		ErrorCode:  replayErr.ErrorCode(),
	}
}

// Result blocks until the instance is done and returns the downstream
// result or its *InvocationError.
func (m *Manager) Result(ctx context.Context, id string) (string, error) {
	coordinator, err := m.lookup(id)
	if err != nil {
		return "", err
	}
	return coordinator.Wait(ctx)
}

// Cancel ends an accumulating instance without invoking downstream.
func (m *Manager) Cancel(ctx context.Context, id, reason string) (lull.Status, error) {
	coordinator, err := m.lookup(id)
	if err != nil {
		return lull.Status{}, err
	}
	if err := coordinator.Cancel(ctx, reason); err != nil {
		return lull.Status{}, err
	}
	return coordinator.Status(), nil
}

// List returns a snapshot of every instance, sorted by ID.
func (m *Manager) List() []lull.Status {
	m.mu.Lock()
	statuses := make([]lull.Status, 0, len(m.instances))
	for _, instance := range m.instances {
		if instance.pending {
			continue
		}
		if instance.replayErr != nil {
			statuses = append(statuses, replayFailureStatus(instance.replayErr))
			continue
		}
		statuses = append(statuses, instance.coordinator.Status())
	}
	m.mu.Unlock()

	slices.SortFunc(statuses, func(a, b lull.Status) int {
		return strings.Compare(a.InstanceID, b.InstanceID)
	})
	return statuses
}

// Counts tallies instances by state. Failed counts replay failures.
type Counts struct {
	Accumulating int
	Flushing     int
	Done         int
	Failed       int
}

// Counts returns the current instance tally.
func (m *Manager) Counts() Counts {
	var counts Counts
	for _, status := range m.List() {
		switch status.State {
		case lull.StateAccumulating:
			counts.Accumulating++
		case lull.StateFlushing:
			counts.Flushing++
		case lull.StateDone:
			counts.Done++
		default:
			counts.Failed++
		}
	}
	return counts
}

// Prune removes done instances that finished more than the retention
// period ago, from the journal and from memory. Returns how many were
// removed.
func (m *Manager) Prune(ctx context.Context) (int, error) {
	// Entries are only dropped if they are still the ones that existed
	// before the journal prune. A Start that reused an ID in between
	// owns a fresh history.
	m.mu.Lock()
	before := maps.Clone(m.instances)
	m.mu.Unlock()

	pruned, err := m.journal.Prune(ctx, m.clock.Now().Add(-m.retention))
	if err != nil {
		return 0, fmt.Errorf("debounce: prune: %w", err)
	}
	m.mu.Lock()
	for _, id := range pruned {
		if instance, ok := m.instances[id]; ok && instance == before[id] {
			delete(m.instances, id)
		}
	}
	m.mu.Unlock()
	if len(pruned) > 0 {
		m.logger.Info("pruned done instances", "count", len(pruned))
	}
	return len(pruned), nil
}

// RunRetention prunes on every sweep interval until ctx is done.
func (m *Manager) RunRetention(ctx context.Context) {
	ticker := m.clock.NewTicker(m.sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := m.Prune(ctx); err != nil && ctx.Err() == nil {
				m.logger.Error("retention sweep failed", "error", err)
			}
		}
	}
}

// Shutdown stops every run loop and waits for them to return. Waiting
// instances stay accumulating in the journal and resume on the next
// Recover. Instances in the middle of a downstream invocation finish it
// first. Returns ctx.Err() if ctx ends before they do.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	m.shutdown = true
	m.mu.Unlock()
	m.cancelRuns()

	stopped := make(chan struct{})
	go func() {
		m.runs.Wait()
		close(stopped)
	}()
	select {
	case <-stopped:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("debounce: shutdown: %w", ctx.Err())
	}
}
