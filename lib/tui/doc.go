// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package tui holds the terminal styling shared by the lull CLI: the
// color theme, the mapping from instance state to color, and the heat
// tracker that makes recently changed instances glow in "lull watch".
package tui
