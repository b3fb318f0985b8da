// Package query provides read-only projections over the spine for ad-hoc
// inspection: per-type counts, single-decision lifecycles, calibration and
// P&L summaries. It holds no state and never mutates the ledger; an empty or
// missing store yields empty results, not errors.
package query

import (
	"context"
	"time"

	"spine/pkg/calibration"
	"spine/pkg/event"
	"spine/pkg/ledgerindex"
	"spine/pkg/projection"
	"spine/pkg/spine"
)

// Service answers read queries against one store. An optional ledger index
// accelerates by-decision lookups; results are identical with or without it.
type Service struct {
	store *spine.Store
	index *ledgerindex.Index
}

// NewService returns a query service over store.
func NewService(store *spine.Store) *Service {
	return &Service{store: store}
}

// WithIndex attaches a secondary index used as the fast path for ByDecision.
func (s *Service) WithIndex(ix *ledgerindex.Index) *Service {
	s.index = ix
	return s
}

// Counts summarizes the whole ledger: totals per event type and the number
// of distinct decisions.
type Counts struct {
	Total     int                `json:"total"`
	ByType    map[event.Type]int `json:"by_type"`
	Decisions int                `json:"decisions"`
}

// Counts replays the ledger and tallies events by type.
func (s *Service) Counts() (Counts, []spine.MalformedRecordError, error) {
	events, warnings, err := s.store.ReadAll()
	if err != nil {
		return Counts{}, nil, err
	}
	c := Counts{ByType: make(map[event.Type]int)}
	seen := make(map[string]bool)
	for _, e := range events {
		c.Total++
		c.ByType[e.Type]++
		seen[e.DecisionID] = true
	}
	c.Decisions = len(seen)
	return c, warnings, nil
}

// ByDecision returns all events for one decision id in append order. With an
// index attached it reads only that decision's ledger lines (updating the
// index first); otherwise, or if the indexed read fails, it falls back to a
// full scan.
func (s *Service) ByDecision(ctx context.Context, decisionID string) ([]event.Event, error) {
	if s.index != nil {
		if _, err := s.index.Update(ctx); err == nil {
			if events, err := s.index.ReadDecision(ctx, decisionID); err == nil {
				return events, nil
			}
		}
	}

	events, _, err := s.store.ReadAll()
	if err != nil {
		return nil, err
	}
	var out []event.Event
	for _, e := range events {
		if e.DecisionID == decisionID {
			out = append(out, e)
		}
	}
	return out, nil
}

// Recent returns the last n events in append order.
func (s *Service) Recent(n int) ([]event.Event, []spine.MalformedRecordError, error) {
	events, warnings, err := s.store.ReadAll()
	if err != nil {
		return nil, nil, err
	}
	if len(events) > n {
		events = events[len(events)-n:]
	}
	return events, warnings, nil
}

// ByType returns all events of type t in append order.
func (s *Service) ByType(t event.Type) ([]event.Event, error) {
	events, _, err := s.store.ReadAll()
	if err != nil {
		return nil, err
	}
	var out []event.Event
	for _, e := range events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out, nil
}

// Lifecycle projects the full ledger. Exposed so operators can inspect
// derived states and anomaly flags.
func (s *Service) Lifecycle() (*projection.Ledger, []spine.MalformedRecordError, error) {
	events, warnings, err := s.store.ReadAll()
	if err != nil {
		return nil, nil, err
	}
	return projection.Project(events), warnings, nil
}

// Calibration computes the calibration report over the current snapshot.
func (s *Service) Calibration(now time.Time) (calibration.Report, []spine.MalformedRecordError, error) {
	events, warnings, err := s.store.ReadAll()
	if err != nil {
		return calibration.Report{}, nil, err
	}
	return calibration.Compute(events, now), warnings, nil
}

// PnLSummary aggregates realized P&L across all observed outcomes. Outcomes
// without a pnl value contribute to none of the fields.
type PnLSummary struct {
	Total  float64 `json:"total"`
	Wins   int     `json:"wins"`
	Losses int     `json:"losses"`
}

// WinRate returns wins/(wins+losses), or 0 when nothing settled nonzero.
func (p PnLSummary) WinRate() float64 {
	settled := p.Wins + p.Losses
	if settled == 0 {
		return 0
	}
	return float64(p.Wins) / float64(settled)
}

// PnL sums pnl over all OutcomeObserved events.
func (s *Service) PnL() (PnLSummary, error) {
	events, _, err := s.store.ReadAll()
	if err != nil {
		return PnLSummary{}, err
	}
	var sum PnLSummary
	for _, e := range events {
		out, ok := e.Payload.(*event.Outcome)
		if !ok || out.PnL == nil {
			continue
		}
		pnl := *out.PnL
		sum.Total += pnl
		switch {
		case pnl > 0:
			sum.Wins++
		case pnl < 0:
			sum.Losses++
		}
	}
	return sum, nil
}
