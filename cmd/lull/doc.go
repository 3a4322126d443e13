// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Lull is the command-line client for lull-service. It starts debounce
// instances, sends them messages, inspects and cancels them, waits for
// batch results, and shows a live view of the service (watch). The demo
// subcommand replays a scripted burst of messages end to end.
//
// Exit codes follow the error category: 2 for bad input, 3 for an
// unknown instance, 4 for a state conflict such as late intake, 5 when
// the service cannot be reached or a wait times out, and 1 otherwise.
package main
