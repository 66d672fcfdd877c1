package main

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"huddle/pkg/dispatch"
	"huddle/pkg/eventlog"
)

// tickMsg is sent by Bubble Tea on every tick interval.
// Used to trigger periodic refresh from the status socket and event log.
type tickMsg time.Time

// statusMsg carries a fetched agent status.
// ok is false when the agent is offline.
type statusMsg struct {
	status dispatch.Status
	ok     bool
}

// entriesMsg carries fetched event log rows, newest first.
// nil means the event log is not readable yet.
type entriesMsg []eventlog.Entry

// tickCmd returns a command that sends a tickMsg after 2 seconds.
func tickCmd() tea.Cmd {
	return tea.Tick(2*time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// fetchStatusCmd returns a tea.Cmd that queries the agent status socket.
func fetchStatusCmd() tea.Cmd {
	return func() tea.Msg {
		status, err := fetchStatus(context.Background(), defaultSocketPath())
		return statusMsg{status: status, ok: err == nil}
	}
}

// fetchEntriesCmd returns a tea.Cmd that reads recent event log rows.
func fetchEntriesCmd() tea.Cmd {
	return func() tea.Msg {
		entries, _ := fetchEntries(context.Background(), defaultDBPath())
		return entriesMsg(entries)
	}
}

// Model is the Bubble Tea model for the huddle dashboard.
type Model struct {
	agentOnline bool
	status      dispatch.Status
	entries     []eventlog.Entry

	events table.Model

	width  int
	height int
}

// newModel creates a new Model with an empty events table.
func newModel() Model {
	columns := []table.Column{
		{Title: "Time", Width: 19},
		{Title: "Type", Width: 18},
		{Title: "Source", Width: 12},
		{Title: "Detail", Width: 60},
	}
	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(true),
		table.WithHeight(15),
	)
	return Model{events: t}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(fetchStatusCmd(), fetchEntriesCmd(), tickCmd())
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		if msg.Height > 8 {
			m.events.SetHeight(msg.Height - 6)
		}

	case statusMsg:
		m.agentOnline = msg.ok
		if msg.ok {
			m.status = msg.status
		}

	case tickMsg:
		return m, tea.Batch(fetchStatusCmd(), fetchEntriesCmd(), tickCmd())

	case entriesMsg:
		m.entries = []eventlog.Entry(msg)
		m.events.SetRows(entryRows(m.entries))
	}

	var cmd tea.Cmd
	m.events, cmd = m.events.Update(msg)
	return m, cmd
}

// entryRows converts event log entries into table rows.
func entryRows(entries []eventlog.Entry) []table.Row {
	rows := make([]table.Row, len(entries))
	for i, e := range entries {
		ts := ""
		if !e.CreatedAt.IsZero() {
			ts = e.CreatedAt.Format("2006-01-02 15:04:05")
		}
		rows[i] = table.Row{ts, e.Type, e.Source, e.Detail}
	}
	return rows
}

// View implements tea.Model.
func (m Model) View() string {
	return m.renderStatusBar() + "\n" + m.events.View() + "\n" + m.renderHelp()
}

// renderStatusBar renders agent health, state, queue depth, and sources.
func (m Model) renderStatusBar() string {
	theme := DefaultTheme()

	var agentStatus string
	if m.agentOnline {
		agentStatus = lipgloss.NewStyle().Foreground(theme.Success).Render("agent: online")
	} else {
		agentStatus = lipgloss.NewStyle().Foreground(theme.Error).Render("agent: offline")
	}

	queue := fmt.Sprintf("%d", m.status.QueueSize)
	if m.status.DroppedEvents > 0 {
		queue = fmt.Sprintf("%d (dropped %d)", m.status.QueueSize, m.status.DroppedEvents)
	}

	return lipgloss.JoinHorizontal(
		lipgloss.Left,
		agentStatus,
		lipgloss.NewStyle().Render(" | State: "),
		lipgloss.NewStyle().Foreground(theme.Primary).Render(stateLabel(m)),
		lipgloss.NewStyle().Render(" | Queue: "),
		lipgloss.NewStyle().Foreground(theme.Warning).Render(queue),
		lipgloss.NewStyle().Render(" | Sources: "),
		lipgloss.NewStyle().Foreground(theme.Secondary).Render(fmt.Sprintf("%d", len(m.status.ActiveSources))),
		lipgloss.NewStyle().Render(" | Events: "),
		lipgloss.NewStyle().Foreground(theme.Success).Render(fmt.Sprintf("%d", m.status.EventsSeen)),
	)
}

// stateLabel returns the displayed state, or a dash when offline.
func stateLabel(m Model) string {
	if !m.agentOnline || m.status.CurrentState == "" {
		return "-"
	}
	return m.status.CurrentState
}

// renderHelp renders the key binding hint line.
func (m Model) renderHelp() string {
	theme := DefaultTheme()
	return lipgloss.NewStyle().Foreground(theme.Muted).Render("↑↓ scroll events, q to quit")
}
