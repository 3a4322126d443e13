// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package tui

import (
	"testing"
	"time"

	"github.com/bureau-foundation/lull/lib/schema/lull"
)

func TestStateColorAndLabel(t *testing.T) {
	theme := DefaultTheme
	tests := []struct {
		status    lull.Status
		wantColor string
		wantLabel string
	}{
		{lull.Status{State: lull.StateAccumulating}, string(theme.StateAccumulating), "accumulating"},
		{lull.Status{State: lull.StateFlushing}, string(theme.StateFlushing), "flushing"},
		{lull.Status{State: lull.StateDone}, string(theme.StateDone), "done"},
		{lull.Status{State: lull.StateDone, ErrorCode: lull.CodeInvocationFailed}, string(theme.StateFailed), "failed"},
		{lull.Status{State: lull.StateDone, ErrorCode: lull.CodeCancelled}, string(theme.StateFailed), "cancelled"},
		{lull.Status{ErrorCode: lull.CodeReplayFailed}, string(theme.StateFailed), "corrupt"},
		{lull.Status{}, string(theme.FaintText), "unknown"},
	}
	for _, test := range tests {
		if got := string(theme.StateColor(test.status)); got != test.wantColor {
			t.Errorf("StateColor(%+v) = %s, want %s", test.status, got, test.wantColor)
		}
		if got := StateLabel(test.status); got != test.wantLabel {
			t.Errorf("StateLabel(%+v) = %q, want %q", test.status, got, test.wantLabel)
		}
	}
}

func TestHeatTracker(t *testing.T) {
	epoch := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	tracker := NewHeatTracker()

	tracker.Observe("weather", "1", epoch)
	if tracker.Heat("weather", epoch) != 0 {
		t.Error("first observation ignited")
	}
	tracker.Observe("weather", "1", epoch)
	if tracker.HasHot(epoch) {
		t.Error("unchanged fingerprint ignited")
	}

	tracker.Observe("weather", "2", epoch)
	if heat := tracker.Heat("weather", epoch); heat != 1.0 {
		t.Errorf("heat at ignition = %v", heat)
	}
	if heat := tracker.Heat("weather", epoch.Add(HeatDecayDuration/2)); heat != 0.5 {
		t.Errorf("heat at half decay = %v", heat)
	}
	if !tracker.HasHot(epoch.Add(HeatDecayDuration - time.Millisecond)) {
		t.Error("HasHot false before decay")
	}
	if tracker.HasHot(epoch.Add(HeatDecayDuration)) {
		t.Error("HasHot true after decay")
	}
	if tracker.Heat("weather", epoch) != 0 {
		t.Error("decayed entry was not dropped")
	}
}
