package main

import (
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"

	"spine/pkg/calibration"
	"spine/pkg/config"
	"spine/pkg/event"
	"spine/pkg/query"
	"spine/pkg/spine"
)

// recentRows is how many ledger events the activity table shows.
const recentRows = 12

// tickMsg is sent on every refresh interval.
type tickMsg time.Time

// dataMsg carries a fresh snapshot of the ledger.
type dataMsg struct {
	counts query.Counts
	recent []event.Event
	report calibration.Report
	err    error
}

// tickCmd schedules the next periodic refresh.
func tickCmd() tea.Cmd {
	return tea.Tick(2*time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// fetchCmd replays the ledger off the UI goroutine.
func fetchCmd(cfg config.Config) tea.Cmd {
	return func() tea.Msg {
		svc := query.NewService(spine.NewStore(cfg.SpineDir))

		counts, _, err := svc.Counts()
		if err != nil {
			return dataMsg{err: err}
		}
		recent, _, err := svc.Recent(recentRows)
		if err != nil {
			return dataMsg{err: err}
		}
		report, _, err := svc.Calibration(time.Now().UTC())
		if err != nil {
			return dataMsg{err: err}
		}
		return dataMsg{counts: counts, recent: recent, report: report}
	}
}

// Model is the Bubble Tea model for the spine dashboard.
type Model struct {
	cfg    config.Config
	theme  Theme
	table  table.Model
	counts query.Counts
	report calibration.Report
	err    error
	watch  <-chan struct{}
	width  int
	height int
}

// newModel creates the dashboard model with an empty events table.
func newModel(cfg config.Config) Model {
	t := table.New(
		table.WithColumns([]table.Column{
			{Title: "Time", Width: 19},
			{Title: "Type", Width: 17},
			{Title: "Decision", Width: 10},
			{Title: "Agent", Width: 14},
		}),
		table.WithHeight(recentRows),
		table.WithFocused(true),
	)
	return Model{
		cfg:   cfg,
		theme: DefaultTheme(),
		table: t,
		watch: watchSpineDir(cfg.SpineDir),
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(fetchCmd(m.cfg), tickCmd(), waitForChange(m.watch))
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

	case tickMsg:
		return m, tea.Batch(fetchCmd(m.cfg), tickCmd())

	case fsChangeMsg:
		return m, tea.Batch(fetchCmd(m.cfg), waitForChange(m.watch))

	case dataMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.err = nil
		m.counts = msg.counts
		m.report = msg.report
		m.table.SetRows(eventRows(msg.recent))
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

// eventRows converts events to table rows, newest first.
func eventRows(events []event.Event) []table.Row {
	rows := make([]table.Row, 0, len(events))
	for i := len(events) - 1; i >= 0; i-- {
		e := events[i]
		id := e.DecisionID
		if len(id) > 8 {
			id = id[:8]
		}
		rows = append(rows, table.Row{
			e.Timestamp.Format("2006-01-02 15:04:05"),
			string(e.Type),
			id,
			e.Agent,
		})
	}
	return rows
}
