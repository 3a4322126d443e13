// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package render turns downstream results, which are markdown, into
// styled terminal text for "lull result" and "lull demo".
//
// Parsing uses goldmark with the GFM extensions. The renderer walks
// the AST directly because terminal output needs accumulate-then-wrap
// semantics: inline content of a paragraph collects in a buffer and is
// word-wrapped as a unit when the paragraph closes. Fenced code blocks
// are highlighted with chroma.
//
// When the destination is not a color terminal, [ForWriter] returns an
// [Options] that makes [Markdown] pass the source through unchanged so
// piped output stays greppable.
package render
