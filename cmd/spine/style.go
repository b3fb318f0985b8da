package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"

	"spine/pkg/calibration"
)

// Styles holds the lipgloss styles for table output. When stdout is not a
// terminal every style is a no-op so piped output stays plain.
type Styles struct {
	Header    lipgloss.Style
	Good      lipgloss.Style
	Bad       lipgloss.Style
	Muted     lipgloss.Style
	Separator lipgloss.Style
}

// newStyles builds the output styles, disabled when w is not a TTY.
func newStyles(w io.Writer) Styles {
	styled := false
	if f, ok := w.(*os.File); ok {
		styled = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	if !styled {
		plain := lipgloss.NewStyle()
		return Styles{Header: plain, Good: plain, Bad: plain, Muted: plain, Separator: plain}
	}
	return Styles{
		Header:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12")),
		Good:      lipgloss.NewStyle().Foreground(lipgloss.Color("10")),
		Bad:       lipgloss.NewStyle().Foreground(lipgloss.Color("9")),
		Muted:     lipgloss.NewStyle().Foreground(lipgloss.Color("240")),
		Separator: lipgloss.NewStyle().Foreground(lipgloss.Color("240")),
	}
}

// printCalibrationTable renders the bucketed calibration report.
func printCalibrationTable(w io.Writer, rep calibration.Report) {
	styles := newStyles(w)

	fmt.Fprintln(w, styles.Header.Render("=== Calibration Report ==="))
	fmt.Fprintf(w, "Decisions with outcomes: %d\n", rep.TotalDecisions)
	fmt.Fprintf(w, "Unresolved: %d\n", rep.TotalUnresolved)
	if rep.BrierScore != nil {
		fmt.Fprintf(w, "Brier score: %.4f\n", *rep.BrierScore)
	}
	for _, inc := range rep.Inconsistencies {
		fmt.Fprintln(w, styles.Muted.Render("inconsistent: "+inc))
	}

	if len(rep.Buckets) == 0 {
		fmt.Fprintln(w, "\nno paired decisions yet")
		return
	}

	header := fmt.Sprintf("\n%12s | %10s | %5s | %8s | %10s", "Confidence", "Win Rate", "N", "Delta", "P&L")
	fmt.Fprintln(w, styles.Header.Render(header))
	fmt.Fprintln(w, styles.Separator.Render(strings.Repeat("-", 55)))

	for _, b := range rep.Buckets {
		row := fmt.Sprintf("%11.1f%% | %9.1f%% | %5d | %+7.1f%% | $%+9.2f",
			b.AvgConfidence*100, b.WinRate*100, b.N, b.Delta*100, b.PnL)
		style := styles.Good
		if b.Delta < 0 {
			style = styles.Bad
		}
		fmt.Fprintln(w, style.Render(row))
	}
}
