package calibration

import (
	"fmt"
	"math"
	"testing"
	"time"

	"spine/pkg/event"
)

var (
	seq     int
	testNow = time.Date(2026, 2, 19, 12, 0, 0, 0, time.UTC)
)

func nextID() string {
	seq++
	return fmt.Sprintf("ev-%d", seq)
}

func proposed(decisionID string, confidence float64) event.Event {
	return event.Event{
		EventID:    nextID(),
		DecisionID: decisionID,
		Type:       event.TypeDecisionProposed,
		Timestamp:  testNow,
		Agent:      "angus",
		Payload: &event.Proposed{
			Hypothesis:   "h",
			Confidence:   confidence,
			ChosenAction: "place_trade",
		},
	}
}

func executed(decisionID string) event.Event {
	return event.Event{
		EventID:    nextID(),
		DecisionID: decisionID,
		Type:       event.TypeActionExecuted,
		Timestamp:  testNow,
		Agent:      "tool_gateway",
		Payload:    &event.Executed{Success: true, Result: map[string]any{}},
	}
}

func observed(decisionID string, correct *bool, pnl *float64) event.Event {
	return event.Event{
		EventID:    nextID(),
		DecisionID: decisionID,
		Type:       event.TypeOutcomeObserved,
		Timestamp:  testNow,
		Agent:      "scribe",
		Payload: &event.Outcome{
			Resolution:          "resolved",
			ResolutionSource:    "manual",
			ResolutionTimestamp: testNow,
			HypothesisCorrect:   correct,
			PnL:                 pnl,
		},
	}
}

// resolved builds the three-event sequence for one fully resolved decision.
func resolved(decisionID string, confidence float64, correct bool, pnl *float64) []event.Event {
	c := correct
	return []event.Event{
		proposed(decisionID, confidence),
		executed(decisionID),
		observed(decisionID, &c, pnl),
	}
}

func floatPtr(f float64) *float64 { return &f }

func TestBucketFor(t *testing.T) {
	tests := []struct {
		confidence float64
		want       float64
	}{
		{0.0, 0.0},
		{0.04, 0.0},
		{0.05, 0.1},
		{0.72, 0.7},
		{0.75, 0.8},
		{0.78, 0.8},
		{0.95, 1.0},
		{1.0, 1.0},
	}
	for _, tt := range tests {
		if got := BucketFor(tt.confidence); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("BucketFor(%v) = %v, want %v", tt.confidence, got, tt.want)
		}
	}
}

func TestComputeEmpty(t *testing.T) {
	r := Compute(nil, testNow)
	if r.TotalProposed != 0 || r.TotalDecisions != 0 || r.TotalUnresolved != 0 {
		t.Errorf("empty ledger produced counts: %+v", r)
	}
	if r.BrierScore != nil {
		t.Error("Brier score should be nil with no pairs")
	}
	if len(r.Buckets) != 0 {
		t.Errorf("got %d buckets, want 0", len(r.Buckets))
	}
	if !r.ComputedAt.Equal(testNow) {
		t.Errorf("ComputedAt = %v, want %v", r.ComputedAt, testNow)
	}
}

func TestComputePairingRules(t *testing.T) {
	var events []event.Event
	events = append(events, resolved("dec-paired", 0.8, true, nil)...)

	// Resolved but no verdict: counted proposed, excluded from pairs.
	events = append(events,
		proposed("dec-noverdict", 0.6),
		executed("dec-noverdict"),
		observed("dec-noverdict", nil, nil),
	)

	// Proposed only: unresolved.
	events = append(events, proposed("dec-open", 0.5))

	// Orphan outcome with no proposal: ignored entirely.
	c := true
	events = append(events, observed("dec-orphan", &c, nil))

	r := Compute(events, testNow)
	if r.TotalProposed != 3 {
		t.Errorf("TotalProposed = %d, want 3", r.TotalProposed)
	}
	if r.TotalDecisions != 1 {
		t.Errorf("TotalDecisions = %d, want 1 (only the verdict-bearing pair)", r.TotalDecisions)
	}
	if r.TotalUnresolved != 2 {
		t.Errorf("TotalUnresolved = %d, want 2", r.TotalUnresolved)
	}
}

func TestComputeBucketsAndDelta(t *testing.T) {
	var events []event.Event
	// Three pairs in the 0.7 bucket: two correct, one not.
	events = append(events, resolved("dec-1", 0.72, true, floatPtr(10))...)
	events = append(events, resolved("dec-2", 0.68, true, nil)...)
	events = append(events, resolved("dec-3", 0.70, false, floatPtr(-4))...)
	// One pair at 0.75, which rounds up into the 0.8 bucket.
	events = append(events, resolved("dec-4", 0.75, true, nil)...)

	r := Compute(events, testNow)
	if len(r.Buckets) != 2 {
		t.Fatalf("got %d buckets, want 2: %+v", len(r.Buckets), r.Buckets)
	}

	b7 := r.Buckets[0]
	if b7.Bucket != 0.7 {
		t.Fatalf("first bucket = %v, want 0.7 (ascending order)", b7.Bucket)
	}
	if b7.N != 3 {
		t.Errorf("bucket 0.7 N = %d, want 3", b7.N)
	}
	if math.Abs(b7.WinRate-2.0/3.0) > 1e-9 {
		t.Errorf("bucket 0.7 win rate = %v, want 2/3", b7.WinRate)
	}
	wantAvg := (0.72 + 0.68 + 0.70) / 3
	if math.Abs(b7.AvgConfidence-wantAvg) > 1e-9 {
		t.Errorf("bucket 0.7 avg confidence = %v, want %v", b7.AvgConfidence, wantAvg)
	}
	if math.Abs(b7.Delta-(b7.WinRate-b7.AvgConfidence)) > 1e-9 {
		t.Errorf("delta = %v, want win rate minus avg confidence", b7.Delta)
	}
	if math.Abs(b7.PnL-6) > 1e-9 {
		t.Errorf("bucket 0.7 pnl = %v, want 6 (nil contributes zero)", b7.PnL)
	}

	b8 := r.Buckets[1]
	if b8.Bucket != 0.8 || b8.N != 1 {
		t.Errorf("second bucket = %+v, want 0.75 routed to the 0.8 decile", b8)
	}
}

func TestComputeBrierScore(t *testing.T) {
	var events []event.Event
	events = append(events, resolved("dec-1", 0.8, true, nil)...)
	events = append(events, resolved("dec-2", 0.3, false, nil)...)

	r := Compute(events, testNow)
	if r.BrierScore == nil {
		t.Fatal("Brier score missing")
	}
	// ((0.8-1)^2 + (0.3-0)^2) / 2 = (0.04 + 0.09) / 2
	if math.Abs(*r.BrierScore-0.065) > 1e-9 {
		t.Errorf("Brier = %v, want 0.065", *r.BrierScore)
	}
}

func TestComputeSurfacesInconsistencies(t *testing.T) {
	events := []event.Event{
		proposed("dec-dup", 0.4),
		proposed("dec-dup", 0.9),
		executed("dec-dup"),
	}
	c := true
	events = append(events, observed("dec-dup", &c, nil))

	r := Compute(events, testNow)
	if len(r.Inconsistencies) == 0 {
		t.Fatal("duplicate proposal not reported")
	}
	// Last write wins: the pair carries the 0.9 confidence.
	if len(r.Buckets) != 1 || r.Buckets[0].Bucket != 0.9 {
		t.Errorf("buckets = %+v, want a single 0.9 bucket from the later proposal", r.Buckets)
	}
}
