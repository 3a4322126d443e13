// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package lull defines the coordinator status snapshot and the wire
// types of the lull service socket protocol.
//
// Types use json struct tags. The fxamacker/cbor library falls back to
// json tags, so the same field names are used on the CBOR socket and in
// the CLI's --json output.
package lull
