// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package journal is the durable record of coordinator state. Each
// coordinator instance owns an append-only sequence of records keyed by
// (instance_id, seq); replaying an instance's records rebuilds its
// buffer, its wait deadline, and whether the downstream invocation has
// started or finished.
//
// The journal guarantees:
//
//   - Append is atomic and fenced: a record is accepted only when its
//     seq is exactly one past the instance's last record, so a second
//     writer driving the same instance fails with ErrSequenceConflict
//     instead of forking its history.
//   - Nothing follows a terminal record.
//   - Load returns exactly what was appended or a *CorruptionError.
//     Every record carries a BLAKE3 keyed hash chained over its
//     predecessor's hash, so truncation in the middle, reordering, and
//     modified payloads are detected.
//
// Payloads are opaque to the journal. They may be compressed (zstd or
// LZ4 above a size threshold) and sealed with age before they reach
// disk; both are reversed by Load.
package journal
