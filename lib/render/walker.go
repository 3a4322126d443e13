// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package render

import (
	"fmt"
	"strings"

	"github.com/alecthomas/chroma/v2/quick"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/muesli/termenv"
	"github.com/yuin/goldmark/ast"
	extast "github.com/yuin/goldmark/extension/ast"

	"github.com/bureau-foundation/lull/lib/tui"
)

// wrapBreakpoints are the characters ansi.Wrap may break after in
// addition to spaces.
const wrapBreakpoints = " ,.;-+|"

type walker struct {
	source  []byte
	theme   tui.Theme
	width   int
	styles  *lipgloss.Renderer
	profile termenv.Profile

	output strings.Builder

	// inline collects the styled fragments of the current paragraph
	// or heading until the block closes.
	inline strings.Builder

	// prefix is prepended to every emitted line; prefixWidths records
	// the visible width of each nesting level.
	prefix       string
	prefixWidths []int
	prefixTexts  []string

	// bullet replaces prefix for the next emitted line only.
	bullet string

	bold, italic, strike int

	lists []listState

	trailingNewlines int
}

type listState struct {
	ordered bool
	next    int
	tight   bool
}

func (w *walker) style() lipgloss.Style { return w.styles.NewStyle() }

func (w *walker) contentWidth() int {
	width := w.width
	for _, prefixWidth := range w.prefixWidths {
		width -= prefixWidth
	}
	return max(width, 10)
}

func (w *walker) push(prefixText string, width int) {
	w.prefixTexts = append(w.prefixTexts, prefixText)
	w.prefixWidths = append(w.prefixWidths, width)
	w.prefix += prefixText
}

func (w *walker) pop() {
	last := len(w.prefixTexts) - 1
	if last < 0 {
		return
	}
	w.prefix = w.prefix[:len(w.prefix)-len(w.prefixTexts[last])]
	w.prefixTexts = w.prefixTexts[:last]
	w.prefixWidths = w.prefixWidths[:last]
}

func (w *walker) tight() bool {
	return len(w.lists) > 0 && w.lists[len(w.lists)-1].tight
}

func (w *walker) write(s string) {
	if s == "" {
		return
	}
	w.output.WriteString(s)
	trimmed := strings.TrimRight(s, "\n")
	if trimmed == "" {
		w.trailingNewlines += len(s)
		return
	}
	w.trailingNewlines = len(s) - len(trimmed)
}

func (w *walker) newline() {
	if w.output.Len() > 0 && w.trailingNewlines < 1 {
		w.write("\n")
	}
}

func (w *walker) blankLine() {
	if w.output.Len() == 0 {
		return
	}
	for w.trailingNewlines < 2 {
		w.write("\n")
	}
}

// lines prefixes every line of content. The first line takes the
// pending bullet when there is one.
func (w *walker) lines(content string) string {
	var result strings.Builder
	for index, line := range strings.Split(content, "\n") {
		if index > 0 {
			result.WriteString("\n")
		}
		if index == 0 && w.bullet != "" {
			result.WriteString(w.bullet)
			w.bullet = ""
		} else {
			result.WriteString(w.prefix)
		}
		result.WriteString(line)
	}
	return result.String()
}

func (w *walker) styled(content string) string {
	style := w.style().Foreground(w.theme.NormalText)
	if w.bold > 0 {
		style = style.Bold(true)
	}
	if w.italic > 0 {
		style = style.Italic(true)
	}
	if w.strike > 0 {
		style = style.Strikethrough(true)
	}
	return style.Render(content)
}

func (w *walker) walk(node ast.Node, entering bool) (ast.WalkStatus, error) {
	switch node.Kind() {
	case ast.KindParagraph, ast.KindTextBlock:
		if entering {
			w.inline.Reset()
			return ast.WalkContinue, nil
		}
		content := w.inline.String()
		w.inline.Reset()
		if content == "" {
			break
		}
		w.write(w.lines(ansi.Wrap(content, w.contentWidth(), wrapBreakpoints)))
		w.newline()
		if !w.tight() {
			w.blankLine()
		}

	case ast.KindHeading:
		if entering {
			w.inline.Reset()
			return ast.WalkContinue, nil
		}
		w.heading(node.(*ast.Heading))

	case ast.KindFencedCodeBlock:
		if entering {
			block := node.(*ast.FencedCodeBlock)
			w.code(w.blockText(block), string(block.Language(w.source)))
		}
		return ast.WalkSkipChildren, nil

	case ast.KindCodeBlock:
		if entering {
			w.code(w.blockText(node), "")
		}
		return ast.WalkSkipChildren, nil

	case ast.KindBlockquote:
		if entering {
			w.push(w.style().Foreground(w.theme.BorderColor).Render("│")+" ", 2)
		} else {
			w.pop()
			w.blankLine()
		}

	case ast.KindList:
		list := node.(*ast.List)
		if entering {
			w.lists = append(w.lists, listState{ordered: list.IsOrdered(), next: list.Start, tight: list.IsTight})
		} else {
			w.lists = w.lists[:len(w.lists)-1]
			if !w.tight() {
				w.blankLine()
			}
		}

	case ast.KindListItem:
		if entering {
			w.listItem()
		} else {
			w.pop()
			if w.tight() {
				w.newline()
			} else {
				w.blankLine()
			}
		}

	case ast.KindThematicBreak:
		if entering {
			rule := w.style().Foreground(w.theme.BorderColor).Render(strings.Repeat("─", w.contentWidth()))
			w.blankLine()
			w.write(w.lines(rule))
			w.newline()
			w.blankLine()
		}

	case ast.KindHTMLBlock:
		return ast.WalkSkipChildren, nil

	case ast.KindText:
		if entering {
			textNode := node.(*ast.Text)
			w.inline.WriteString(w.styled(string(textNode.Segment.Value(w.source))))
			switch {
			case textNode.HardLineBreak():
				w.inline.WriteString("\n")
			case textNode.SoftLineBreak():
				w.inline.WriteString(" ")
			}
		}

	case ast.KindString:
		if entering {
			w.inline.WriteString(w.styled(string(node.(*ast.String).Value)))
		}

	case ast.KindEmphasis:
		counter := &w.italic
		if node.(*ast.Emphasis).Level >= 2 {
			counter = &w.bold
		}
		if entering {
			*counter++
		} else {
			*counter--
		}

	case extast.KindStrikethrough:
		if entering {
			w.strike++
		} else {
			w.strike--
		}

	case ast.KindCodeSpan:
		if !entering {
			break
		}
		var code strings.Builder
		for child := node.FirstChild(); child != nil; child = child.NextSibling() {
			switch typed := child.(type) {
			case *ast.Text:
				code.Write(typed.Segment.Value(w.source))
			case *ast.String:
				code.Write(typed.Value)
			}
		}
		w.inline.WriteString(w.style().Foreground(w.theme.FaintText).Render(code.String()))
		return ast.WalkSkipChildren, nil

	case ast.KindLink:
		if entering {
			return ast.WalkContinue, nil
		}
		destination := string(node.(*ast.Link).Destination)
		if destination != "" {
			w.inline.WriteString(" " + w.style().Foreground(w.theme.LinkForeground).Render("("+destination+")"))
		}

	case ast.KindAutoLink:
		if entering {
			url := string(node.(*ast.AutoLink).URL(w.source))
			w.inline.WriteString(w.style().Foreground(w.theme.LinkForeground).Render(url))
		}

	case extast.KindTaskCheckBox:
		if entering {
			if node.(*extast.TaskCheckBox).IsChecked {
				w.inline.WriteString(w.style().Foreground(w.theme.StateDone).Render("[x]") + " ")
			} else {
				w.inline.WriteString(w.styled("[ ] "))
			}
		}

	case extast.KindTable:
		if entering {
			w.table(node)
		}
		return ast.WalkSkipChildren, nil
	}
	return ast.WalkContinue, nil
}

func (w *walker) heading(heading *ast.Heading) {
	content := ansi.Strip(w.inline.String())
	w.inline.Reset()
	if content == "" {
		return
	}
	style := w.style().Bold(true).Foreground(w.theme.NormalText)
	if heading.Level <= 2 {
		style = style.Foreground(w.theme.HeaderForeground)
	}
	w.blankLine()
	w.write(w.lines(ansi.Wrap(style.Render(content), w.contentWidth(), wrapBreakpoints)))
	w.newline()
	w.blankLine()
}

func (w *walker) blockText(node ast.Node) string {
	var block strings.Builder
	lines := node.Lines()
	for index := 0; index < lines.Len(); index++ {
		segment := lines.At(index)
		block.Write(segment.Value(w.source))
	}
	return block.String()
}

// code writes a code block, highlighted when the language is known to
// chroma.
func (w *walker) code(code, language string) {
	highlighted := ""
	if language != "" {
		var buffer strings.Builder
		if err := quick.Highlight(&buffer, code, language, chromaFormatter(w.profile), "monokai"); err == nil {
			highlighted = buffer.String()
		}
	}
	if highlighted == "" {
		highlighted = w.style().Foreground(w.theme.FaintText).Render(strings.TrimRight(code, "\n"))
	}
	w.blankLine()
	for _, line := range strings.Split(strings.TrimRight(highlighted, "\n"), "\n") {
		w.write(w.lines(line))
		w.newline()
	}
	w.blankLine()
}

func chromaFormatter(profile termenv.Profile) string {
	switch profile {
	case termenv.TrueColor:
		return "terminal16m"
	case termenv.ANSI256:
		return "terminal256"
	default:
		return "terminal16"
	}
}

func (w *walker) listItem() {
	if len(w.lists) == 0 {
		return
	}
	top := &w.lists[len(w.lists)-1]
	marker := "• "
	if top.ordered {
		marker = fmt.Sprintf("%d. ", top.next)
		top.next++
	}
	w.bullet = w.prefix + w.style().Foreground(w.theme.FaintText).Render(marker)
	width := ansi.StringWidth(marker)
	w.push(strings.Repeat(" ", width), width)
}

// table renders a GFM table as aligned columns. Cells wider than the
// share of the width they get are truncated.
func (w *walker) table(node ast.Node) {
	var rows [][]string
	for row := node.FirstChild(); row != nil; row = row.NextSibling() {
		var cells []string
		for cell := row.FirstChild(); cell != nil; cell = cell.NextSibling() {
			cells = append(cells, w.inlineOf(cell))
		}
		rows = append(rows, cells)
	}
	if len(rows) == 0 {
		return
	}

	columns := 0
	for _, row := range rows {
		columns = max(columns, len(row))
	}
	widths := make([]int, columns)
	for _, row := range rows {
		for index, cell := range row {
			widths[index] = max(widths[index], ansi.StringWidth(cell))
		}
	}
	limit := max((w.contentWidth()-2*(columns-1))/columns, 3)
	for index := range widths {
		widths[index] = min(widths[index], limit)
	}

	border := w.style().Foreground(w.theme.BorderColor)
	w.blankLine()
	for rowIndex, row := range rows {
		parts := make([]string, columns)
		for index := range parts {
			cell := ""
			if index < len(row) {
				cell = ansi.Truncate(row[index], widths[index], "…")
			}
			parts[index] = cell + strings.Repeat(" ", widths[index]-ansi.StringWidth(cell))
		}
		line := strings.TrimRight(strings.Join(parts, "  "), " ")
		if rowIndex == 0 {
			line = w.style().Bold(true).Render(ansi.Strip(line))
		}
		w.write(w.lines(line))
		w.newline()
		if rowIndex == 0 {
			rules := make([]string, columns)
			for index, width := range widths {
				rules[index] = strings.Repeat("─", width)
			}
			w.write(w.lines(border.Render(strings.Join(rules, "  "))))
			w.newline()
		}
	}
	w.blankLine()
}

// inlineOf renders the inline children of node into a string without
// disturbing the walker's current inline buffer.
func (w *walker) inlineOf(node ast.Node) string {
	saved := w.inline.String()
	w.inline.Reset()
	for child := node.FirstChild(); child != nil; child = child.NextSibling() {
		ast.Walk(child, w.walk)
	}
	result := w.inline.String()
	w.inline.Reset()
	w.inline.WriteString(saved)
	return result
}
