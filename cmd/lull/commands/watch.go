// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/bureau-foundation/lull/cmd/lull/cli"
	"github.com/bureau-foundation/lull/lib/lullclient"
	"github.com/bureau-foundation/lull/lib/schema/lull"
	"github.com/bureau-foundation/lull/lib/tui"
)

type watchParams struct {
	cli.Connection
	Interval time.Duration `json:"interval" flag:"interval,i" desc:"how often to poll the service" default:"250ms"`
	Follow   bool          `json:"follow"   flag:"follow,f"   desc:"keep watching after every named instance is done"`
}

func watchCommand() *cli.Command {
	var params watchParams

	return &cli.Command{
		Name:    "watch",
		Summary: "Watch instances change live",
		Description: `Show a live view of instances: state, buffered messages, and the
countdown to the next flush. Rows glow briefly when their buffer or
state changes.

With instance IDs, only those are shown and the view exits once all
of them are done (unless --follow). Without IDs every instance is
shown until you press q.`,
		Usage: "lull watch [instance-id...] [flags]",
		Examples: []cli.Example{
			{
				Description: "Watch the weather batch until it finishes",
				Command:     "lull watch weather",
			},
		},
		Params: func() any { return &params },
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if params.Interval <= 0 {
				return cli.Validation("--interval must be positive")
			}
			client, err := params.Connect()
			if err != nil {
				return err
			}

			model := newWatchModel(ctx, statusFetcher(client, args), args, params.Interval)
			model.follow = params.Follow
			program := tea.NewProgram(model, tea.WithContext(ctx), tea.WithOutput(cli.Stdout))
			final, err := program.Run()
			if err != nil {
				return fmt.Errorf("running watch view: %w", err)
			}
			if watched, ok := final.(watchModel); ok && watched.err != nil {
				return cli.Classify(watched.err, client.SocketPath())
			}
			return nil
		},
	}
}

// statusFetcher polls the named instances, or every instance when ids
// is empty.
func statusFetcher(client *lullclient.Client, ids []string) func(context.Context) ([]lull.Status, error) {
	return func(ctx context.Context) ([]lull.Status, error) {
		if len(ids) == 0 {
			return client.List(ctx)
		}
		statuses := make([]lull.Status, 0, len(ids))
		for _, id := range ids {
			status, err := client.Status(ctx, id)
			if err != nil {
				return nil, err
			}
			statuses = append(statuses, status)
		}
		return statuses, nil
	}
}

// Messages driving the watch model.
type (
	statusesMsg struct {
		statuses []lull.Status
		err      error
	}
	pollMsg     struct{}
	heatTickMsg struct{}
)

type watchKeys struct {
	Quit key.Binding
}

var defaultWatchKeys = watchKeys{
	Quit: key.NewBinding(
		key.WithKeys("q", "esc", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
}

// watchModel is the bubbletea model behind "lull watch".
type watchModel struct {
	ctx      context.Context
	fetch    func(context.Context) ([]lull.Status, error)
	ids      []string
	interval time.Duration
	follow   bool

	keys        watchKeys
	spinner     spinner.Model
	heat        *tui.HeatTracker
	heatRunning bool
	theme       tui.Theme
	renderer    *lipgloss.Renderer
	now         func() time.Time

	statuses []lull.Status
	err      error
	loaded   bool
	finished bool
}

func newWatchModel(ctx context.Context, fetch func(context.Context) ([]lull.Status, error), ids []string, interval time.Duration) watchModel {
	renderer := lipgloss.NewRenderer(cli.Stdout)
	theme := tui.DefaultTheme
	return watchModel{
		ctx:      ctx,
		fetch:    fetch,
		ids:      ids,
		interval: interval,
		keys:     defaultWatchKeys,
		spinner: spinner.New(
			spinner.WithSpinner(spinner.Dot),
			spinner.WithStyle(renderer.NewStyle().Foreground(theme.StateAccumulating)),
		),
		heat:     tui.NewHeatTracker(),
		theme:    theme,
		renderer: renderer,
		now:      time.Now,
	}
}

func (m watchModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.poll())
}

// poll fetches statuses once.
func (m watchModel) poll() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(m.ctx, max(m.interval, time.Second)*4)
		defer cancel()
		statuses, err := m.fetch(ctx)
		return statusesMsg{statuses: statuses, err: err}
	}
}

func (m watchModel) schedulePoll() tea.Cmd {
	return tea.Tick(m.interval, func(time.Time) tea.Msg { return pollMsg{} })
}

func scheduleHeatTick() tea.Cmd {
	return tea.Tick(tui.HeatTickInterval, func(time.Time) tea.Msg { return heatTickMsg{} })
}

func (m watchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if key.Matches(msg, m.keys.Quit) {
			m.finished = true
			return m, tea.Quit
		}
		return m, nil

	case statusesMsg:
		return m.handleStatuses(msg)

	case pollMsg:
		return m, m.poll()

	case heatTickMsg:
		if m.heat.HasHot(m.now()) {
			return m, scheduleHeatTick()
		}
		m.heatRunning = false
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m watchModel) handleStatuses(msg statusesMsg) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		// A missing instance or an unreachable service ends the view;
		// the error is reported after the program exits.
		m.err = msg.err
		m.finished = true
		return m, tea.Quit
	}

	now := m.now()
	m.statuses = msg.statuses
	m.loaded = true
	for _, status := range m.statuses {
		m.heat.Observe(status.InstanceID, fingerprint(status), now)
	}

	if len(m.ids) > 0 && !m.follow && allDone(m.statuses) {
		m.finished = true
		return m, tea.Quit
	}

	cmds := []tea.Cmd{m.schedulePoll()}
	if !m.heatRunning && m.heat.HasHot(now) {
		m.heatRunning = true
		cmds = append(cmds, scheduleHeatTick())
	}
	return m, tea.Batch(cmds...)
}

// fingerprint changes whenever a row's visible content does.
func fingerprint(status lull.Status) string {
	return string(status.State) + "/" + strconv.Itoa(status.BufferedMessages) + "/" + status.ErrorCode
}

func allDone(statuses []lull.Status) bool {
	for _, status := range statuses {
		if status.State != lull.StateDone && status.ErrorCode == "" {
			return false
		}
	}
	return len(statuses) > 0
}

func (m watchModel) View() string {
	var builder strings.Builder
	header := m.renderer.NewStyle().Bold(true).Foreground(m.theme.HeaderForeground)
	help := m.renderer.NewStyle().Foreground(m.theme.HelpText)

	builder.WriteString(header.Render("lull watch"))
	builder.WriteString("\n\n")

	if !m.loaded {
		builder.WriteString(m.spinner.View() + " connecting…\n")
	} else if len(m.statuses) == 0 {
		builder.WriteString(help.Render("no instances") + "\n")
	}

	printer := printer{renderer: m.renderer, theme: m.theme, now: m.now}
	now := m.now()
	for _, status := range m.statuses {
		marker := " "
		if status.ErrorCode == "" && (status.State == lull.StateAccumulating || status.State == lull.StateFlushing) {
			marker = m.spinner.View()
		}
		name := m.renderer.NewStyle().Bold(true)
		if m.heat.Heat(status.InstanceID, now) > 0 {
			name = name.Background(m.theme.HotAccent)
		}
		fmt.Fprintf(&builder, "%s %s  %s  %s  %s\n",
			marker,
			name.Render(status.InstanceID),
			printer.stateLabel(status),
			help.Render(strconv.Itoa(status.BufferedMessages)+" msgs"),
			printer.next(status),
		)
	}

	if !m.finished {
		builder.WriteString("\n" + help.Render(m.keys.Quit.Help().Key+" "+m.keys.Quit.Help().Desc) + "\n")
	}
	return builder.String()
}
