// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import "time"

// Clock abstracts the time operations lull depends on. Production code
// injects Real(); tests inject Fake() and move time explicitly.
//
// Anything that waits (the quiet-period wait, invoker retry backoff,
// retention sweeps) takes a Clock instead of calling the time package
// directly, so that every timing property can be asserted without
// sleeping.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// After returns a channel that receives the current time once d
	// has elapsed. If d <= 0 the channel is ready immediately.
	After(d time.Duration) <-chan time.Time

	// NewTimer returns a one-shot Timer that delivers on its C channel
	// after d. Unlike After, the timer can be stopped and re-armed,
	// which is what a resettable wait needs: a stopped timer does not
	// linger as a pending waiter.
	NewTimer(d time.Duration) *Timer

	// NewTicker returns a Ticker delivering on C every d. Panics if
	// d <= 0.
	NewTicker(d time.Duration) *Ticker
}

// Timer is a one-shot, resettable timer. C has capacity 1.
type Timer struct {
	C <-chan time.Time

	stopFunc  func() bool
	resetFunc func(time.Duration) bool
}

// Stop prevents the timer from firing. It returns false if the timer
// had already fired or been stopped. A value delivered before Stop may
// still be sitting in C; callers that re-arm the timer should drain C
// without blocking after Stop.
func (t *Timer) Stop() bool { return t.stopFunc() }

// Reset re-arms the timer to fire after d. It returns true if the timer
// was still pending.
func (t *Timer) Reset(d time.Duration) bool { return t.resetFunc(d) }

// Ticker delivers periodic ticks on C. C has capacity 1; ticks are
// dropped while the consumer is behind.
type Ticker struct {
	C <-chan time.Time

	stopFunc  func()
	resetFunc func(time.Duration)
}

// Stop turns the ticker off. C is not closed.
func (t *Ticker) Stop() { t.stopFunc() }

// Reset changes the tick interval and restarts the cycle.
func (t *Ticker) Reset(d time.Duration) { t.resetFunc(d) }
