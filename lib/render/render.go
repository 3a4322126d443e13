// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package render

import (
	"io"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"
	"golang.org/x/term"

	"github.com/bureau-foundation/lull/lib/tui"
)

// DefaultWidth is used when the terminal width cannot be read.
const DefaultWidth = 80

// Options controls rendering.
type Options struct {
	// Width is the wrap column. Values below 20 are raised to 20.
	Width int

	// Profile is the color profile of the destination. termenv.Ascii
	// disables styling and Markdown returns its input unchanged.
	Profile termenv.Profile

	Theme tui.Theme
}

// ForWriter detects the color profile and width of w. Writers that are
// not terminals get termenv.Ascii.
func ForWriter(w io.Writer) Options {
	options := Options{Width: DefaultWidth, Profile: termenv.Ascii, Theme: tui.DefaultTheme}
	file, ok := w.(*os.File)
	if !ok || !term.IsTerminal(int(file.Fd())) {
		return options
	}
	options.Profile = termenv.NewOutput(file).EnvColorProfile()
	if width, _, err := term.GetSize(int(file.Fd())); err == nil && width > 0 {
		options.Width = width
	}
	return options
}

var (
	parserInstance goldmark.Markdown
	parserOnce     sync.Once
)

func parser() goldmark.Markdown {
	parserOnce.Do(func() {
		parserInstance = goldmark.New(goldmark.WithExtensions(extension.GFM))
	})
	return parserInstance
}

// Markdown renders input as styled terminal text. Soft line breaks
// become spaces so hard-wrapped source reflows at any width.
func Markdown(input string, options Options) string {
	if input == "" {
		return ""
	}
	if options.Profile == termenv.Ascii {
		return input
	}
	if options.Width < 20 {
		options.Width = 20
	}

	source := []byte(input)
	document := parser().Parser().Parse(text.NewReader(source))

	// SetColorProfile is required: lipgloss re-detects the profile from
	// the environment unless it is set explicitly.
	styles := lipgloss.NewRenderer(io.Discard, termenv.WithProfile(options.Profile))
	styles.SetColorProfile(options.Profile)

	walker := &walker{
		source:  source,
		theme:   options.Theme,
		width:   options.Width,
		styles:  styles,
		profile: options.Profile,
	}
	ast.Walk(document, walker.walk)
	return strings.TrimRight(walker.output.String(), "\n")
}
