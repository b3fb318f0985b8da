package reconcile

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"spine/pkg/event"
	"spine/pkg/projection"
	"spine/pkg/spine"
)

// fakeOracle serves canned market statuses keyed by condition id.
type fakeOracle struct {
	markets map[string]MarketStatus
	err     error
	calls   int
}

func (f *fakeOracle) MarketStatus(ctx context.Context, conditionID string) (MarketStatus, error) {
	f.calls++
	if f.err != nil {
		return MarketStatus{}, &OracleError{ConditionID: conditionID, Err: f.err}
	}
	status, ok := f.markets[conditionID]
	if !ok {
		return MarketStatus{}, &OracleError{ConditionID: conditionID, Err: errors.New("unknown market")}
	}
	return status, nil
}

// trade seeds one executed place_trade decision and returns its id.
func trade(t *testing.T, em *spine.Emitter, params map[string]any) string {
	t.Helper()
	id, err := em.Propose(spine.Proposal{
		Hypothesis:   "market resolves YES",
		Confidence:   0.7,
		ChosenAction: TradeAction,
		Parameters:   params,
	})
	if err != nil {
		t.Fatalf("Propose: %v", err)
	}
	if _, err := em.Executed(id, true, nil, 0, ""); err != nil {
		t.Fatalf("Executed: %v", err)
	}
	return id
}

func TestReconcileResolvesTrade(t *testing.T) {
	store := spine.NewStore(t.TempDir())
	em := spine.NewEmitter(store)
	id := trade(t, em, map[string]any{
		"condition_id": "0xabc",
		"side":         "YES",
		"size":         50.0,
		"price":        0.6,
	})

	oracle := &fakeOracle{markets: map[string]MarketStatus{
		"0xabc": {Resolved: true, Outcome: "yes"},
	}}
	w := NewWorker(store, oracle)

	result, err := w.Reconcile(context.Background())
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if result.Candidates != 1 || len(result.Resolved) != 1 {
		t.Fatalf("result = %+v, want one candidate resolved", result)
	}

	res := result.Resolved[0]
	if res.DecisionID != id {
		t.Errorf("resolved decision = %s, want %s", res.DecisionID, id)
	}
	if !res.HypothesisCorrect {
		t.Error("outcome yes vs side YES should match case-insensitively")
	}
	// 50 * (1 - 0.6) = 20.00
	if math.Abs(res.PnL-20.0) > 1e-9 {
		t.Errorf("pnl = %v, want 20.00", res.PnL)
	}

	events, _, err := store.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	d := projection.Project(events).Decision(id)
	if d.State != projection.StateResolved {
		t.Errorf("state after reconcile = %s, want %s", d.State, projection.StateResolved)
	}
	out := d.Outcome()
	if out.ResolutionSource != ResolutionSource {
		t.Errorf("resolution source = %q, want %q", out.ResolutionSource, ResolutionSource)
	}
	if out.PnL == nil || *out.PnL != 20.0 {
		t.Errorf("persisted pnl = %v, want 20.00", out.PnL)
	}
}

func TestReconcileLosingSide(t *testing.T) {
	store := spine.NewStore(t.TempDir())
	trade(t, spine.NewEmitter(store), map[string]any{
		"condition_id": "0xabc",
		"side":         "YES",
		"size":         50.0,
		"price":        0.6,
	})

	oracle := &fakeOracle{markets: map[string]MarketStatus{
		"0xabc": {Resolved: true, Outcome: "NO"},
	}}
	result, err := NewWorker(store, oracle).Reconcile(context.Background())
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if len(result.Resolved) != 1 {
		t.Fatalf("result = %+v, want one resolution", result)
	}
	res := result.Resolved[0]
	if res.HypothesisCorrect {
		t.Error("side YES against outcome NO should be incorrect")
	}
	// -50 * 0.6 = -30.00
	if math.Abs(res.PnL-(-30.0)) > 1e-9 {
		t.Errorf("pnl = %v, want -30.00", res.PnL)
	}
}

func TestReconcileIdempotent(t *testing.T) {
	store := spine.NewStore(t.TempDir())
	id := trade(t, spine.NewEmitter(store), map[string]any{
		"condition_id": "0xabc", "size": 10.0, "price": 0.5,
	})

	oracle := &fakeOracle{markets: map[string]MarketStatus{
		"0xabc": {Resolved: true, Outcome: "YES"},
	}}
	w := NewWorker(store, oracle)

	for pass := 0; pass < 2; pass++ {
		if _, err := w.Reconcile(context.Background()); err != nil {
			t.Fatalf("pass %d: %v", pass, err)
		}
	}

	events, _, err := store.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	outcomes := 0
	for _, e := range events {
		if e.DecisionID == id && e.Type == event.TypeOutcomeObserved {
			outcomes++
		}
	}
	if outcomes != 1 {
		t.Errorf("got %d OutcomeObserved events, want exactly 1", outcomes)
	}
	if oracle.calls != 1 {
		t.Errorf("oracle called %d times, want 1 (resolved decisions are no longer candidates)", oracle.calls)
	}
}

func TestReconcileSkipsAndErrors(t *testing.T) {
	store := spine.NewStore(t.TempDir())
	em := spine.NewEmitter(store)

	// Open market, missing condition_id, and a non-trade action.
	trade(t, em, map[string]any{"condition_id": "0xopen", "size": 5.0, "price": 0.5})
	trade(t, em, map[string]any{"size": 5.0})
	holdID, err := em.Propose(spine.Proposal{
		Hypothesis: "h", Confidence: 0.5, ChosenAction: "hold",
	})
	if err != nil {
		t.Fatalf("Propose: %v", err)
	}
	if _, err := em.Executed(holdID, true, nil, 0, ""); err != nil {
		t.Fatalf("Executed: %v", err)
	}

	oracle := &fakeOracle{markets: map[string]MarketStatus{
		"0xopen": {Resolved: false},
	}}
	result, err := NewWorker(store, oracle).Reconcile(context.Background())
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if result.Candidates != 2 {
		t.Errorf("candidates = %d, want 2 (the hold decision is not one)", result.Candidates)
	}
	if result.Skipped != 2 {
		t.Errorf("skipped = %d, want 2 (open market, missing condition_id)", result.Skipped)
	}
	if len(result.Resolved) != 0 || result.Errors != 0 {
		t.Errorf("result = %+v, want no resolutions or errors", result)
	}
}

func TestReconcileOracleFailureLeavesCandidate(t *testing.T) {
	store := spine.NewStore(t.TempDir())
	id := trade(t, spine.NewEmitter(store), map[string]any{
		"condition_id": "0xabc", "size": 10.0, "price": 0.5,
	})

	oracle := &fakeOracle{err: errors.New("gateway down")}
	w := NewWorker(store, oracle)

	result, err := w.Reconcile(context.Background())
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if result.Errors != 1 || len(result.Resolved) != 0 {
		t.Fatalf("result = %+v, want one error and no resolutions", result)
	}

	// Oracle recovers; the same candidate resolves on the next pass.
	oracle.err = nil
	oracle.markets = map[string]MarketStatus{"0xabc": {Resolved: true, Outcome: "YES"}}
	result, err = w.Reconcile(context.Background())
	if err != nil {
		t.Fatalf("second pass: %v", err)
	}
	if len(result.Resolved) != 1 || result.Resolved[0].DecisionID != id {
		t.Errorf("second pass result = %+v, want the candidate resolved", result)
	}
}

func TestReconcileResolvesFlaggedDecision(t *testing.T) {
	store := spine.NewStore(t.TempDir())
	em := spine.NewEmitter(store)

	// Duplicate proposal flags the decision Inconsistent, but its trade
	// executed and deserves an outcome all the same.
	id := trade(t, em, map[string]any{
		"condition_id": "0xabc", "size": 10.0, "price": 0.5,
	})
	events, _, err := store.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	dup := events[0]
	dup.EventID = "dup-proposal"
	if _, err := store.Append(dup); err != nil {
		t.Fatalf("append duplicate proposal: %v", err)
	}

	oracle := &fakeOracle{markets: map[string]MarketStatus{
		"0xabc": {Resolved: true, Outcome: "YES"},
	}}
	result, err := NewWorker(store, oracle).Reconcile(context.Background())
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if len(result.Resolved) != 1 || result.Resolved[0].DecisionID != id {
		t.Fatalf("result = %+v, want the flagged decision resolved", result)
	}

	events, _, err = store.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	d := projection.Project(events).Decision(id)
	if d.Outcome() == nil {
		t.Error("no outcome persisted for the flagged decision")
	}
	if len(d.Anomalies) == 0 {
		t.Error("duplicate proposal should still be flagged")
	}
}

func TestRunStopsCleanOnCancel(t *testing.T) {
	store := spine.NewStore(t.TempDir())
	w := NewWorker(store, &fakeOracle{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := w.Run(ctx, time.Minute); err != nil {
		t.Fatalf("Run after cancel: %v, want nil", err)
	}
}

func TestReconcileDefaultsSideToYes(t *testing.T) {
	store := spine.NewStore(t.TempDir())
	trade(t, spine.NewEmitter(store), map[string]any{
		"condition_id": "0xabc", "size": 10.0, "price": 0.4,
	})

	oracle := &fakeOracle{markets: map[string]MarketStatus{
		"0xabc": {Resolved: true, Outcome: "YES"},
	}}
	result, err := NewWorker(store, oracle).Reconcile(context.Background())
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if len(result.Resolved) != 1 || !result.Resolved[0].HypothesisCorrect {
		t.Fatalf("result = %+v, want correct resolution with default YES side", result)
	}
	if math.Abs(result.Resolved[0].PnL-6.0) > 1e-9 {
		t.Errorf("pnl = %v, want 6.00", result.Resolved[0].PnL)
	}
}
