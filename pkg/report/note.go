// Package report renders calibration reports for external sinks. The core
// system only produces the Report value; this package owns formatting.
package report

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"spine/pkg/calibration"
)

// Sink accepts a calibration report and persists a formatted note.
type Sink interface {
	Write(rep calibration.Report) (path string, err error)
}

// frontMatter is the YAML header of a calibration note.
type frontMatter struct {
	Date string   `yaml:"date"`
	Tags []string `yaml:"tags,flow"`
}

// MarkdownSink writes one Markdown note per day, named
// calibration-YYYY-MM-DD.md. Re-running on the same day overwrites the note;
// the ledger itself is never touched.
type MarkdownSink struct {
	dir   string
	clock func() time.Time
}

// NewMarkdownSink returns a sink writing notes under dir.
func NewMarkdownSink(dir string) *MarkdownSink {
	return &MarkdownSink{dir: dir, clock: time.Now}
}

// WithClock overrides the naming clock for tests.
func (s *MarkdownSink) WithClock(clock func() time.Time) *MarkdownSink {
	s.clock = clock
	return s
}

// Write renders rep and persists it, returning the note path.
func (s *MarkdownSink) Write(rep calibration.Report) (string, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("create notes dir: %w", err)
	}

	now := s.clock()
	date := now.Format("2006-01-02")
	path := filepath.Join(s.dir, fmt.Sprintf("calibration-%s.md", date))

	body, err := render(rep, now)
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		return "", fmt.Errorf("write note: %w", err)
	}
	return path, nil
}

func render(rep calibration.Report, now time.Time) (string, error) {
	fm, err := yaml.Marshal(frontMatter{
		Date: now.Format("2006-01-02T15:04"),
		Tags: []string{"metrics", "calibration", "eval"},
	})
	if err != nil {
		return "", fmt.Errorf("marshal front matter: %w", err)
	}

	var b strings.Builder
	b.WriteString("---\n")
	b.Write(fm)
	b.WriteString("---\n\n")
	fmt.Fprintf(&b, "# Calibration Report — %s\n\n", now.Format("2006-01-02"))
	fmt.Fprintf(&b, "**Decisions evaluated:** %d\n", rep.TotalDecisions)
	fmt.Fprintf(&b, "**Unresolved:** %d\n", rep.TotalUnresolved)
	if rep.BrierScore != nil {
		fmt.Fprintf(&b, "**Brier score:** %.4f\n", *rep.BrierScore)
	}
	b.WriteString("\n| Confidence | Win Rate | N | Delta | P&L |\n")
	b.WriteString("|-----------|---------|---|-------|-----|\n")
	for _, bucket := range rep.Buckets {
		fmt.Fprintf(&b, "| %.1f%% | %.1f%% | %d | %+.1f%% | $%+.2f |\n",
			bucket.AvgConfidence*100, bucket.WinRate*100, bucket.N,
			bucket.Delta*100, bucket.PnL)
	}
	return b.String(), nil
}
