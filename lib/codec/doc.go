// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec is lull's single CBOR configuration.
//
// CBOR is used for the two internal byte formats:
//
//   - journal event payloads (lib/journal, lib/debounce), where
//     deterministic encoding keeps replay and hash chaining stable;
//   - the unix socket protocol between lull-service and its clients
//     (lib/service, lib/schema/lull).
//
// JSON is reserved for human-facing output (`lull ... --json`) and JSONC
// scenario files.
//
// # Struct tags
//
//   - `cbor` tag: the type is only ever CBOR (journal payloads).
//   - `json` tag: the type is CBOR on the socket and JSON on the CLI.
//     fxamacker/cbor falls back to `json` tags when `cbor` tags are
//     absent, so one tag names the field in both formats.
//
// Never put both tags on one field.
package codec
