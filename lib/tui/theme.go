// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/bureau-foundation/lull/lib/schema/lull"
)

// Theme defines the color palette for lull's terminal output. All
// colors use lipgloss ANSI 256-color codes for broad terminal
// compatibility.
type Theme struct {
	// Text colors.
	NormalText lipgloss.Color
	FaintText  lipgloss.Color

	// Instance state colors.
	StateAccumulating lipgloss.Color
	StateFlushing     lipgloss.Color
	StateDone         lipgloss.Color
	StateFailed       lipgloss.Color

	// UI chrome.
	HeaderForeground lipgloss.Color
	BorderColor      lipgloss.Color
	HelpText         lipgloss.Color
	LinkForeground   lipgloss.Color

	// HotAccent tints instances whose buffer just changed.
	HotAccent lipgloss.Color
}

// StateColor returns the color for an instance snapshot. Done
// instances that ended in failure or cancellation, and instances that
// could not be replayed, use StateFailed.
func (theme Theme) StateColor(status lull.Status) lipgloss.Color {
	if status.ErrorCode != "" {
		return theme.StateFailed
	}
	switch status.State {
	case lull.StateAccumulating:
		return theme.StateAccumulating
	case lull.StateFlushing:
		return theme.StateFlushing
	case lull.StateDone:
		return theme.StateDone
	default:
		return theme.FaintText
	}
}

// StateLabel is the short word shown for an instance's state.
func StateLabel(status lull.Status) string {
	switch {
	case status.ErrorCode == lull.CodeReplayFailed:
		return "corrupt"
	case status.ErrorCode == lull.CodeCancelled:
		return "cancelled"
	case status.ErrorCode != "":
		return "failed"
	case status.State == "":
		return "unknown"
	}
	return string(status.State)
}

// DefaultTheme is the built-in dark-terminal color scheme.
var DefaultTheme = Theme{
	NormalText: lipgloss.Color("252"),
	FaintText:  lipgloss.Color("245"),

	StateAccumulating: lipgloss.Color("220"), // yellow/amber
	StateFlushing:     lipgloss.Color("75"),  // blue
	StateDone:         lipgloss.Color("114"), // green
	StateFailed:       lipgloss.Color("196"), // red

	HeaderForeground: lipgloss.Color("255"),
	BorderColor:      lipgloss.Color("240"),
	HelpText:         lipgloss.Color("241"),
	LinkForeground:   lipgloss.Color("75"),

	HotAccent: lipgloss.Color("58"), // dark amber background tint
}
