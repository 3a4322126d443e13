// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package tui

import (
	"time"
)

// HeatDecayDuration is how long an instance glows after a change.
// Heat starts at 1.0 and decays linearly to 0.0 over this duration.
const HeatDecayDuration = 3 * time.Second

// HeatTickInterval is the re-render interval while anything is hot.
const HeatTickInterval = 100 * time.Millisecond

// HeatTracker maps instance IDs to ignition timestamps. A change
// "ignites" an instance, which then decays from full intensity to zero
// over [HeatDecayDuration].
type HeatTracker struct {
	entries map[string]time.Time

	// seen remembers the last observed fingerprint per instance so
	// Observe only ignites on real changes.
	seen map[string]string
}

// NewHeatTracker creates an empty heat tracker.
func NewHeatTracker() *HeatTracker {
	return &HeatTracker{
		entries: make(map[string]time.Time),
		seen:    make(map[string]string),
	}
}

// Ignite records a change for an instance. Resets the decay if the
// instance was already hot.
func (tracker *HeatTracker) Ignite(instanceID string, now time.Time) {
	tracker.entries[instanceID] = now
}

// Observe ignites instanceID when fingerprint differs from the one
// seen last time. The first observation only records the fingerprint.
func (tracker *HeatTracker) Observe(instanceID, fingerprint string, now time.Time) {
	previous, known := tracker.seen[instanceID]
	tracker.seen[instanceID] = fingerprint
	if known && previous != fingerprint {
		tracker.Ignite(instanceID, now)
	}
}

// Heat returns the current intensity for an instance: 1.0 at
// ignition, linearly decaying to 0.0. Returns 0.0 for instances that
// were never ignited or have fully decayed.
func (tracker *HeatTracker) Heat(instanceID string, now time.Time) float64 {
	ignition, exists := tracker.entries[instanceID]
	if !exists {
		return 0.0
	}
	elapsed := now.Sub(ignition)
	if elapsed >= HeatDecayDuration {
		return 0.0
	}
	return 1.0 - float64(elapsed)/float64(HeatDecayDuration)
}

// HasHot reports whether any instance still has heat, meaning the tick
// timer should keep running. Fully decayed entries are dropped.
func (tracker *HeatTracker) HasHot(now time.Time) bool {
	hot := false
	for instanceID, ignition := range tracker.entries {
		if now.Sub(ignition) < HeatDecayDuration {
			hot = true
			continue
		}
		delete(tracker.entries, instanceID)
	}
	return hot
}
