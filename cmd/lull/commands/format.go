// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/bureau-foundation/lull/lib/render"
	"github.com/bureau-foundation/lull/lib/schema/lull"
	"github.com/bureau-foundation/lull/lib/tui"
)

// printer renders human output for one writer. Colors follow the
// writer: a pipe or file gets plain text.
type printer struct {
	out      io.Writer
	renderer *lipgloss.Renderer
	theme    tui.Theme
	now      func() time.Time
}

func newPrinter(out io.Writer) printer {
	return printer{
		out:      out,
		renderer: lipgloss.NewRenderer(out),
		theme:    tui.DefaultTheme,
		now:      time.Now,
	}
}

func (p printer) style(color lipgloss.Color) lipgloss.Style {
	return p.renderer.NewStyle().Foreground(color)
}

// stateLabel is the colored state word for status.
func (p printer) stateLabel(status lull.Status) string {
	return p.style(p.theme.StateColor(status)).Bold(true).Render(tui.StateLabel(status))
}

// remaining describes the time left until a wait deadline.
func (p printer) remaining(deadline int64) string {
	if deadline == 0 {
		return ""
	}
	left := time.Unix(0, deadline).Sub(p.now())
	if left <= 0 {
		return "due"
	}
	return "in " + left.Round(100*time.Millisecond).String()
}

// writeStatus prints one instance snapshot.
func (p printer) writeStatus(status lull.Status) {
	faint := p.style(p.theme.FaintText)
	label := func(name string) string { return faint.Render(fmt.Sprintf("  %-10s", name)) }

	fmt.Fprintf(p.out, "%s  %s\n", p.renderer.NewStyle().Bold(true).Render(status.InstanceID), p.stateLabel(status))
	fmt.Fprintf(p.out, "%s %d\n", label("messages"), status.BufferedMessages)
	if status.QuietPeriod > 0 {
		fmt.Fprintf(p.out, "%s %s\n", label("quiet"), status.QuietPeriod)
	}
	if status.State == lull.StateAccumulating && status.Deadline != 0 {
		deadline := time.Unix(0, status.Deadline)
		fmt.Fprintf(p.out, "%s %s (%s)\n", label("deadline"), deadline.Format(time.TimeOnly), p.remaining(status.Deadline))
	}
	if status.Error != "" {
		fmt.Fprintf(p.out, "%s %s\n", label("error"), p.style(p.theme.StateFailed).Render(status.Error))
	}
	for index, message := range status.Messages {
		fmt.Fprintf(p.out, "  %s %s\n", faint.Render(strconv.Itoa(index+1)+"."), message)
	}
	if status.Result != "" {
		fmt.Fprintf(p.out, "\n%s\n", p.markdown(status.Result))
	}
}

// markdown renders a downstream result for the printer's writer.
func (p printer) markdown(result string) string {
	return render.Markdown(result, render.ForWriter(p.out))
}

// listColumns are the headers of writeList.
var listColumns = []string{"INSTANCE", "STATE", "MSGS", "NEXT"}

// writeList prints a table of snapshots. Cells are padded by display
// width, so colored state labels stay aligned.
func (p printer) writeList(statuses []lull.Status) {
	rows := make([][]string, 0, len(statuses))
	for _, status := range statuses {
		rows = append(rows, []string{
			status.InstanceID,
			p.stateLabel(status),
			strconv.Itoa(status.BufferedMessages),
			p.next(status),
		})
	}

	widths := make([]int, len(listColumns))
	for column, header := range listColumns {
		widths[column] = len(header)
	}
	for _, row := range rows {
		for column, cell := range row {
			widths[column] = max(widths[column], ansi.StringWidth(cell))
		}
	}

	header := p.renderer.NewStyle().Bold(true).Foreground(p.theme.HeaderForeground)
	cells := make([]string, len(listColumns))
	for column, title := range listColumns {
		cells[column] = pad(header.Render(title), widths[column])
	}
	fmt.Fprintln(p.out, strings.TrimRight(strings.Join(cells, "   "), " "))
	for _, row := range rows {
		for column, cell := range row {
			cells[column] = pad(cell, widths[column])
		}
		fmt.Fprintln(p.out, strings.TrimRight(strings.Join(cells, "   "), " "))
	}
}

// next summarizes what happens next for an instance: the wait
// deadline, or the first line of the outcome.
func (p printer) next(status lull.Status) string {
	switch {
	case status.State == lull.StateAccumulating:
		return "flush " + p.remaining(status.Deadline)
	case status.State == lull.StateFlushing:
		return "invoking downstream"
	case status.Error != "":
		return ansi.Truncate(firstLine(status.Error), 50, "…")
	default:
		return ansi.Truncate(firstLine(status.Result), 50, "…")
	}
}

func firstLine(text string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(text), "\n")
	return strings.TrimLeft(line, "# ")
}

// pad right-pads cell with spaces to width display columns.
func pad(cell string, width int) string {
	if gap := width - ansi.StringWidth(cell); gap > 0 {
		return cell + strings.Repeat(" ", gap)
	}
	return cell
}
