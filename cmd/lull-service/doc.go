// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Lull-service hosts debounce coordinators. It owns one journal, takes
// an exclusive lock on its state directory, replays every instance the
// journal holds, and serves the lull socket protocol:
//
//   - start: create an instance with an initial message
//   - add-message: buffer a message and restart the quiet period
//   - status: read-only snapshot of an instance
//   - result: block until an instance is done, then return its outcome
//   - cancel: end an accumulating instance without invoking downstream
//   - list: snapshots of every instance
//   - health: version and instance counts
//
// On SIGINT or SIGTERM the socket stops accepting requests and running
// coordinators stop. Instances that are waiting stay accumulating in
// the journal and resume on the next start with the remaining part of
// their quiet period. An instance in the middle of a downstream
// invocation finishes it first, up to a shutdown grace period.
package main
