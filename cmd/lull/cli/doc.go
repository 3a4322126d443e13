// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package cli provides the command-line framework for the lull CLI.
//
// The central type is [Command], which represents a named subcommand with
// optional nested [Command.Subcommands], a params struct whose tagged
// fields become flags, and a Run function. Commands are assembled into a
// tree in cmd/lull/commands and dispatched via [Command.Execute], which
// handles flag parsing, subcommand routing, and structured help output
// with examples.
//
// When a user types an unknown subcommand or flag, the framework computes
// Levenshtein edit distance against all known names and suggests the
// closest match (threshold: distance <= 3). This is implemented in
// suggest.go.
//
// [Connection] resolves the lull-service socket from --socket,
// LULL_SOCKET, or the config file, in that order, and returns a typed
// [lullclient.Client]. [Classify] turns the client's coded errors into
// categorized [ToolError] values with hints.
package cli
