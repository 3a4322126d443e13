// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import (
	"slices"
	"sync"
	"time"
)

// Fake returns a FakeClock frozen at initial. Time moves only when
// Advance is called.
//
// FakeClock is safe for concurrent use.
func Fake(initial time.Time) *FakeClock {
	clock := &FakeClock{current: initial}
	clock.waitersChanged = sync.NewCond(&clock.mu)
	return clock
}

// FakeClock is a deterministic Clock for tests. Every After, NewTimer
// and NewTicker call registers a waiter that fires when Advance moves
// the clock to or past its deadline.
type FakeClock struct {
	mu             sync.Mutex
	current        time.Time
	waiters        []*fakeWaiter
	waitersChanged *sync.Cond
}

// fakeWaiter is one pending After, Timer or Ticker.
type fakeWaiter struct {
	deadline time.Time
	channel  chan time.Time

	// interval is non-zero for tickers, which are rescheduled at
	// deadline+interval after each fire instead of being removed.
	interval time.Duration

	// scheduled reports whether the waiter is in FakeClock.waiters.
	// Stop removes a waiter immediately and Reset re-inserts it at
	// most once, so a timer that is reset many times is never
	// pending twice.
	scheduled bool
}

// Now returns the current fake time.
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// After returns a channel that receives once the clock has advanced by
// d. If d <= 0 the channel is ready immediately and no waiter is
// registered.
func (c *FakeClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	channel := make(chan time.Time, 1)
	if d <= 0 {
		channel <- c.current
		return channel
	}
	c.scheduleLocked(&fakeWaiter{deadline: c.current.Add(d), channel: channel})
	return channel
}

// NewTimer returns a resettable one-shot timer. If d <= 0 the timer
// has already fired when NewTimer returns.
func (c *FakeClock) NewTimer(d time.Duration) *Timer {
	c.mu.Lock()
	defer c.mu.Unlock()

	waiter := &fakeWaiter{channel: make(chan time.Time, 1)}
	c.armLocked(waiter, d)

	return &Timer{
		C: waiter.channel,
		stopFunc: func() bool {
			c.mu.Lock()
			defer c.mu.Unlock()
			return c.unscheduleLocked(waiter)
		},
		resetFunc: func(d time.Duration) bool {
			c.mu.Lock()
			defer c.mu.Unlock()
			wasPending := c.unscheduleLocked(waiter)
			c.armLocked(waiter, d)
			return wasPending
		},
	}
}

// NewTicker returns a Ticker firing every d. Panics if d <= 0.
func (c *FakeClock) NewTicker(d time.Duration) *Ticker {
	if d <= 0 {
		panic("clock: non-positive interval for NewTicker")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	waiter := &fakeWaiter{
		deadline: c.current.Add(d),
		channel:  make(chan time.Time, 1),
		interval: d,
	}
	c.scheduleLocked(waiter)

	return &Ticker{
		C: waiter.channel,
		stopFunc: func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			c.unscheduleLocked(waiter)
		},
		resetFunc: func(d time.Duration) {
			c.mu.Lock()
			defer c.mu.Unlock()
			waiter.interval = d
			waiter.deadline = c.current.Add(d)
			c.scheduleLocked(waiter)
		},
	}
}

// Advance moves the clock forward by d and fires every waiter whose
// deadline is at or before the new time, in deadline order. Sends are
// non-blocking: a waiter whose channel is still full drops the value,
// as time.Ticker does.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.current = c.current.Add(d)
	target := c.current
	c.mu.Unlock()

	for {
		expired := c.collectExpired(target)
		if len(expired) == 0 {
			return
		}
		for _, waiter := range expired {
			select {
			case waiter.channel <- target:
			default:
			}
		}
	}
}

// collectExpired removes due one-shot waiters, reschedules due tickers,
// and returns everything due, sorted by deadline.
func (c *FakeClock) collectExpired(target time.Time) []*fakeWaiter {
	c.mu.Lock()
	defer c.mu.Unlock()

	var expired []*fakeWaiter
	remaining := c.waiters[:0]
	for _, waiter := range c.waiters {
		if waiter.deadline.After(target) {
			remaining = append(remaining, waiter)
			continue
		}
		expired = append(expired, waiter)
		if waiter.interval > 0 {
			remaining = append(remaining, waiter)
		} else {
			waiter.scheduled = false
		}
	}
	c.waiters = remaining

	slices.SortStableFunc(expired, func(a, b *fakeWaiter) int {
		return a.deadline.Compare(b.deadline)
	})
	for _, waiter := range expired {
		if waiter.interval > 0 {
			waiter.deadline = waiter.deadline.Add(waiter.interval)
		}
	}
	return expired
}

// WaitForTimers blocks until at least n waiters are pending. Call it
// before Advance to make sure the goroutine under test has armed its
// timer.
//
//	go coordinator.Run(ctx)
//	fakeClock.WaitForTimers(1)
//	fakeClock.Advance(5 * time.Second)
func (c *FakeClock) WaitForTimers(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for len(c.waiters) < n {
		c.waitersChanged.Wait()
	}
}

// PendingCount returns the number of pending waiters.
func (c *FakeClock) PendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.waiters)
}

// armLocked sets a one-shot waiter to fire after d. A non-positive d
// delivers immediately without scheduling.
func (c *FakeClock) armLocked(waiter *fakeWaiter, d time.Duration) {
	if d <= 0 {
		waiter.deadline = c.current
		select {
		case waiter.channel <- c.current:
		default:
		}
		return
	}
	waiter.deadline = c.current.Add(d)
	c.scheduleLocked(waiter)
}

func (c *FakeClock) scheduleLocked(waiter *fakeWaiter) {
	if waiter.scheduled {
		return
	}
	waiter.scheduled = true
	c.waiters = append(c.waiters, waiter)
	c.waitersChanged.Broadcast()
}

// unscheduleLocked removes waiter from the pending list and reports
// whether it was pending.
func (c *FakeClock) unscheduleLocked(waiter *fakeWaiter) bool {
	if !waiter.scheduled {
		return false
	}
	waiter.scheduled = false
	c.waiters = slices.DeleteFunc(c.waiters, func(candidate *fakeWaiter) bool {
		return candidate == waiter
	})
	return true
}
