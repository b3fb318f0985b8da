// Package reconcile closes the loop between executed decisions and their
// real-world outcomes. The worker scans the projected ledger for trades that
// executed but never resolved, asks the oracle whether the market settled,
// and appends OutcomeObserved events back into the spine. Oracle failures are
// per-candidate: a bad lookup leaves that decision unresolved for the next
// pass and never aborts the batch.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"
	"sync"
	"time"

	"spine/pkg/event"
	"spine/pkg/projection"
	"spine/pkg/spine"
)

// TradeAction is the chosen_action value that makes a decision reconcilable.
const TradeAction = "place_trade"

// ResolutionSource is recorded on outcomes this worker emits.
const ResolutionSource = "oracle"

// Resolution describes one outcome the worker appended.
type Resolution struct {
	DecisionID        string
	EventID           string
	Outcome           string
	HypothesisCorrect bool
	PnL               float64
}

// Result summarizes one reconciliation pass.
type Result struct {
	Candidates int          // decisions with an execution but no resolution
	Resolved   []Resolution // outcomes appended this pass
	Skipped    int          // market open, or no market id
	Errors     int          // oracle failures, retried next pass
}

// Worker polls the oracle for unresolved trades and backfills outcomes.
// Reconcile is idempotent under re-invocation: the projected state is
// re-checked under the worker's run lock immediately before each append, so
// a decision never collects a second OutcomeObserved from this worker.
type Worker struct {
	store   *spine.Store
	emitter *spine.Emitter
	oracle  Oracle
	timeout time.Duration
	out     io.Writer

	mu sync.Mutex // serializes passes; owns the check-then-append step
}

// NewWorker returns a worker over store using oracle for market status.
// Diagnostics are discarded unless WithOutput is set.
func NewWorker(store *spine.Store, oracle Oracle) *Worker {
	return &Worker{
		store:   store,
		emitter: spine.NewEmitter(store),
		oracle:  oracle,
		timeout: DefaultOracleTimeout,
		out:     io.Discard,
	}
}

// WithOutput directs per-candidate diagnostics to w.
func (w *Worker) WithOutput(out io.Writer) *Worker {
	w.out = out
	return w
}

// WithTimeout bounds each oracle call.
func (w *Worker) WithTimeout(d time.Duration) *Worker {
	if d > 0 {
		w.timeout = d
	}
	return w
}

// Reconcile runs one pass: find executed, unresolved place_trade decisions,
// query the oracle, and append an OutcomeObserved for each settled market.
// Only a storage failure returns a non-nil error; oracle trouble is counted
// and skipped.
func (w *Worker) Reconcile(ctx context.Context) (Result, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	events, warnings, err := w.store.ReadAll()
	if err != nil {
		return Result{}, err
	}
	for _, warn := range warnings {
		fmt.Fprintf(w.out, "warning: %v\n", warn)
	}

	ledger := projection.Project(events)

	var result Result
	for _, d := range ledger.Decisions() {
		if !candidate(d) {
			continue
		}
		result.Candidates++
		w.reconcileOne(ctx, d, &result)
	}
	return result, nil
}

// Run executes Reconcile every interval until ctx is canceled. Pass failures
// are logged and the loop continues; a scheduled worker never dies over one
// bad pass. Cancellation is a clean shutdown, not an error.
func (w *Worker) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := w.Reconcile(ctx); err != nil {
			fmt.Fprintf(w.out, "reconcile pass failed: %v\n", err)
		}
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// candidate reports whether d is an executed, unresolved trade decision.
// Anomaly flags do not disqualify: a flagged decision whose trade executed
// still deserves its outcome.
func candidate(d *projection.Decision) bool {
	if !d.Has(event.TypeActionExecuted) || d.Has(event.TypeOutcomeObserved) {
		return false
	}
	prop := d.Proposal()
	return prop != nil && prop.ChosenAction == TradeAction
}

// reconcileOne handles a single candidate decision, updating result in place.
func (w *Worker) reconcileOne(ctx context.Context, d *projection.Decision, result *Result) {
	prop := d.Proposal()

	marketID := stringParam(prop.Parameters, "condition_id")
	if marketID == "" {
		fmt.Fprintf(w.out, "  %s: no condition_id, skipping\n", short(d.ID))
		result.Skipped++
		return
	}

	callCtx, cancel := context.WithTimeout(ctx, w.timeout)
	status, err := w.oracle.MarketStatus(callCtx, marketID)
	cancel()
	if err != nil {
		fmt.Fprintf(w.out, "  %s: oracle error: %v\n", short(d.ID), err)
		result.Errors++
		return
	}
	if !status.Resolved {
		fmt.Fprintf(w.out, "  %s: market still open\n", short(d.ID))
		result.Skipped++
		return
	}

	side := stringParam(prop.Parameters, "side")
	if side == "" {
		side = "YES"
	}
	size := floatParam(prop.Parameters, "size")
	price := floatParam(prop.Parameters, "price")

	correct := strings.EqualFold(status.Outcome, side)
	var pnl float64
	if correct {
		pnl = size * (1 - price)
	} else {
		pnl = -size * price
	}
	pnl = round2(pnl)

	// Re-check right before appending: another producer may have resolved
	// this decision since the pass snapshot was taken.
	if resolvedSince(w.store, d.ID) {
		fmt.Fprintf(w.out, "  %s: already resolved, skipping\n", short(d.ID))
		result.Skipped++
		return
	}

	eventID, err := w.emitter.Outcome(d.ID, spine.Observation{
		Resolution:        fmt.Sprintf("%s (side was %s)", status.Outcome, side),
		HypothesisCorrect: &correct,
		PnL:               &pnl,
		ResolutionSource:  ResolutionSource,
	})
	if err != nil {
		fmt.Fprintf(w.out, "  %s: append failed: %v\n", short(d.ID), err)
		result.Errors++
		return
	}

	fmt.Fprintf(w.out, "  %s: RESOLVED %s | correct=%t | pnl=%+.2f\n",
		short(d.ID), status.Outcome, correct, pnl)
	result.Resolved = append(result.Resolved, Resolution{
		DecisionID:        d.ID,
		EventID:           eventID,
		Outcome:           status.Outcome,
		HypothesisCorrect: correct,
		PnL:               pnl,
	})
}

// resolvedSince re-reads the store and reports whether decisionID already
// carries an OutcomeObserved. Read failures err on the side of "resolved" so
// a flaky read can never produce a duplicate outcome.
func resolvedSince(store *spine.Store, decisionID string) bool {
	events, _, err := store.ReadAll()
	if err != nil {
		return true
	}
	for _, e := range events {
		if e.DecisionID == decisionID && e.Type == event.TypeOutcomeObserved {
			return true
		}
	}
	return false
}

// stringParam extracts a string-valued key from decision parameters.
func stringParam(params map[string]any, key string) string {
	if v, ok := params[key].(string); ok {
		return v
	}
	return ""
}

// floatParam extracts a numeric key from decision parameters. JSON decoding
// yields float64; values written in-process may be int.
func floatParam(params map[string]any, key string) float64 {
	switch v := params[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	}
	return 0
}

// round2 rounds to cents.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// short abbreviates a decision id for diagnostics.
func short(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
