// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers for lull packages.
//
// [SocketDir] creates a temporary directory in /tmp for Unix domain
// sockets, whose paths are limited to 108 bytes (sun_path) and can
// overflow under t.TempDir().
//
// [RequireReceive] and [RequireClosed] are the only places in the test
// suite that wait on the wall clock, and only to turn a hang into a
// failure. Everything a test measures (quiet periods, retry backoff,
// retention) runs on clock.FakeClock.
//
// This package has no lull-internal dependencies.
package testutil
