// Package projection derives decision lifecycles from the raw event sequence.
// It is a pure function of the replayed ledger: no I/O, no retained state.
// Every other reader (calibration, reconciliation, queries) builds on this
// grouping instead of re-deriving it.
package projection

import (
	"fmt"

	"spine/pkg/event"
)

// State is the derived lifecycle state of a decision.
type State string

// Decision states. Inconsistent marks a sequence that violates the expected
// partial order; it is a flag for operators, never a reason to reject events.
const (
	StateProposed     State = "Proposed"
	StateDispatched   State = "Dispatched"
	StateExecuted     State = "Executed"
	StateFailed       State = "Failed"
	StateResolved     State = "Resolved"
	StateInconsistent State = "Inconsistent"
)

// Decision is the logical aggregate of all events sharing one decision id,
// in append order, with its derived state.
type Decision struct {
	ID        string
	Events    []event.Event
	State     State
	Anomalies []string
}

// Has reports whether the decision carries at least one event of type t.
func (d *Decision) Has(t event.Type) bool {
	for _, e := range d.Events {
		if e.Type == t {
			return true
		}
	}
	return false
}

// Proposal returns the payload of the last DecisionProposed event, or nil.
// Last-write-wins matches the calibration engine's handling of the duplicate
// proposal anomaly.
func (d *Decision) Proposal() *event.Proposed {
	var p *event.Proposed
	for _, e := range d.Events {
		if prop, ok := e.Payload.(*event.Proposed); ok {
			p = prop
		}
	}
	return p
}

// Outcome returns the payload of the first OutcomeObserved event, or nil.
// First-write-wins: a second outcome for the same decision is an anomaly and
// the original verdict stands.
func (d *Decision) Outcome() *event.Outcome {
	for _, e := range d.Events {
		if out, ok := e.Payload.(*event.Outcome); ok {
			return out
		}
	}
	return nil
}

// Ledger is the projected view of the full event sequence: one Decision per
// decision id, iterable in first-seen order.
type Ledger struct {
	byID  map[string]*Decision
	order []string
}

// Project groups events by decision id and derives each decision's state.
func Project(events []event.Event) *Ledger {
	l := &Ledger{byID: make(map[string]*Decision)}
	for _, e := range events {
		d, ok := l.byID[e.DecisionID]
		if !ok {
			d = &Decision{ID: e.DecisionID}
			l.byID[e.DecisionID] = d
			l.order = append(l.order, e.DecisionID)
		}
		d.Events = append(d.Events, e)
	}
	for _, id := range l.order {
		derive(l.byID[id])
	}
	return l
}

// Decision returns the projected decision for id, or nil if no event bears it.
func (l *Ledger) Decision(id string) *Decision {
	return l.byID[id]
}

// Decisions returns all projected decisions in first-seen order.
func (l *Ledger) Decisions() []*Decision {
	out := make([]*Decision, 0, len(l.order))
	for _, id := range l.order {
		out = append(out, l.byID[id])
	}
	return out
}

// Len returns the number of distinct decisions.
func (l *Ledger) Len() int { return len(l.order) }

// derive computes the state and anomaly flags for one decision.
//
// Expected partial order: Proposed -> (Dispatched)? -> (Executed | Failed)?
// -> (OutcomeObserved)?. A decision may legally stop at any point. Violations
// are flagged, never dropped.
func derive(d *Decision) {
	var proposed, executed, failed, outcomes int
	for _, e := range d.Events {
		switch e.Type {
		case event.TypeDecisionProposed:
			proposed++
		case event.TypeActionExecuted:
			executed++
		case event.TypeActionFailed:
			failed++
		case event.TypeOutcomeObserved:
			outcomes++
		}
	}

	if proposed == 0 {
		d.Anomalies = append(d.Anomalies,
			fmt.Sprintf("first event is %s, no DecisionProposed", d.Events[0].Type))
	}
	if proposed > 1 {
		d.Anomalies = append(d.Anomalies,
			fmt.Sprintf("%d DecisionProposed events, expected at most one", proposed))
	}
	if len(d.Events) > 0 && proposed > 0 && d.Events[0].Type != event.TypeDecisionProposed {
		d.Anomalies = append(d.Anomalies, "events precede DecisionProposed")
	}
	if outcomes > 0 && executed == 0 && failed == 0 {
		d.Anomalies = append(d.Anomalies, "OutcomeObserved without ActionExecuted or ActionFailed")
	}
	if outcomes > 1 {
		d.Anomalies = append(d.Anomalies,
			fmt.Sprintf("%d OutcomeObserved events, first one stands", outcomes))
	}

	switch {
	case len(d.Anomalies) > 0:
		d.State = StateInconsistent
	case outcomes > 0:
		d.State = StateResolved
	case executed > 0:
		d.State = StateExecuted
	case failed > 0:
		d.State = StateFailed
	case d.Has(event.TypeActionDispatched):
		d.State = StateDispatched
	default:
		d.State = StateProposed
	}
}
