// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides the injectable time source used by lull.
//
// The debounce coordinator's correctness is entirely about time: a
// flush must happen exactly one quiet period after the last accepted
// message, never earlier. Production code takes a Clock and uses Real();
// tests use Fake() and drive time with Advance, so properties such as
// "messages at 1s, 3s and 5s with a 5s quiet period flush at exactly
// 10s" are asserted deterministically.
//
// # Wiring
//
//	type Coordinator struct {
//	    clock clock.Clock
//	    // ...
//	}
//
// In tests:
//
//	fakeClock := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
//	go coordinator.Run(ctx)
//	fakeClock.WaitForTimers(1)          // the run loop has armed its timer
//	fakeClock.Advance(5 * time.Second)  // fire it
//
// WaitForTimers closes the race between a goroutine arming a timer and
// the test advancing time.
package clock
