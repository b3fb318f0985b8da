package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"spine/pkg/event"
)

// View implements tea.Model.
func (m Model) View() string {
	title := lipgloss.NewStyle().Bold(true).Foreground(m.theme.Primary)
	muted := lipgloss.NewStyle().Foreground(m.theme.Muted)

	var b strings.Builder
	b.WriteString(title.Render("spine — decision ledger"))
	b.WriteString("\n\n")

	if m.err != nil {
		errStyle := lipgloss.NewStyle().Foreground(m.theme.Error)
		b.WriteString(errStyle.Render(fmt.Sprintf("read failed: %v", m.err)))
		b.WriteString("\n\n")
	}

	b.WriteString(m.summaryLine())
	b.WriteString("\n")
	b.WriteString(m.calibrationLine())
	b.WriteString("\n\n")

	if m.counts.Total == 0 {
		b.WriteString(muted.Render("no events in spine yet"))
	} else {
		b.WriteString(m.table.View())
	}

	b.WriteString("\n\n")
	b.WriteString(muted.Render("q quit · refreshes every 2s and on ledger writes"))
	return b.String()
}

// summaryLine renders per-type counts and the distinct decision total.
func (m Model) summaryLine() string {
	parts := make([]string, 0, len(event.Types())+1)
	parts = append(parts, fmt.Sprintf("decisions: %d", m.counts.Decisions))
	for _, t := range event.Types() {
		if n := m.counts.ByType[t]; n > 0 {
			parts = append(parts, fmt.Sprintf("%s: %d", shortType(t), n))
		}
	}
	return strings.Join(parts, "  ·  ")
}

// calibrationLine renders the resolved/unresolved split and Brier score.
func (m Model) calibrationLine() string {
	line := fmt.Sprintf("resolved: %d  ·  unresolved: %d",
		m.report.TotalDecisions, m.report.TotalUnresolved)
	if m.report.BrierScore != nil {
		style := lipgloss.NewStyle().Foreground(m.theme.Success)
		if *m.report.BrierScore > 0.25 {
			style = lipgloss.NewStyle().Foreground(m.theme.Warning)
		}
		line += "  ·  " + style.Render(fmt.Sprintf("brier: %.4f", *m.report.BrierScore))
	}
	return line
}

// shortType abbreviates event types for the one-line summary.
func shortType(t event.Type) string {
	switch t {
	case event.TypeDecisionProposed:
		return "proposed"
	case event.TypeActionDispatched:
		return "dispatched"
	case event.TypeActionExecuted:
		return "executed"
	case event.TypeActionFailed:
		return "failed"
	case event.TypeOutcomeObserved:
		return "observed"
	}
	return string(t)
}
