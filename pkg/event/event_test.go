package event

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

func validEvent(t Type, payload Payload) Event {
	return Event{
		EventID:    "ev-1",
		DecisionID: "dec-1",
		Type:       t,
		Timestamp:  time.Date(2026, 2, 19, 12, 0, 0, 0, time.UTC),
		Agent:      "angus",
		Payload:    payload,
	}
}

func boolPtr(b bool) *bool { return &b }

func floatPtr(f float64) *float64 { return &f }

func TestRoundTripAllTypes(t *testing.T) {
	cases := []struct {
		name string
		evt  Event
	}{
		{
			name: "proposed",
			evt: validEvent(TypeDecisionProposed, &Proposed{
				Trigger:      "heartbeat",
				Inputs:       []string{"price_feed"},
				Hypothesis:   "BTC closes above 95K",
				Confidence:   0.72,
				ChosenAction: "place_trade",
				Parameters:   map[string]any{"market": "btc-95k", "side": "YES", "size": 50.0},
				PreMortem:    "low volume, might not fill",
			}),
		},
		{
			name: "dispatched",
			evt:  validEvent(TypeActionDispatched, NewDispatched("polymarket_trade", map[string]any{"side": "YES"})),
		},
		{
			name: "executed",
			evt:  validEvent(TypeActionExecuted, &Executed{Success: true, Result: map[string]any{"order_id": "abc"}, LatencyMS: 450}),
		},
		{
			name: "failed",
			evt:  validEvent(TypeActionFailed, &Failed{ErrorType: "timeout", ErrorDetail: "venue unreachable", Retryable: true}),
		},
		{
			name: "outcome",
			evt: validEvent(TypeOutcomeObserved, &Outcome{
				Resolution:          "YES",
				ResolutionSource:    "oracle",
				ResolutionTimestamp: time.Date(2026, 2, 20, 9, 0, 0, 0, time.UTC),
				HypothesisCorrect:   boolPtr(true),
				PnL:                 floatPtr(20),
				PnLCurrency:         "USDC",
			}),
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			data, err := json.Marshal(tc.evt)
			if err != nil {
				t.Fatalf("marshal: %v", err)
			}

			var got Event
			if err := json.Unmarshal(data, &got); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}

			if got.Type != tc.evt.Type {
				t.Errorf("type = %s, want %s", got.Type, tc.evt.Type)
			}
			if got.Payload.EventType() != tc.evt.Type {
				t.Errorf("payload type = %s, want %s", got.Payload.EventType(), tc.evt.Type)
			}
			if err := got.Validate(); err != nil {
				t.Errorf("round-tripped event invalid: %v", err)
			}
		})
	}
}

func TestUnmarshalUnknownType(t *testing.T) {
	line := `{"event_id":"e1","decision_id":"d1","event_type":"SomethingElse","timestamp":"2026-02-19T12:00:00Z","agent":"angus","payload":{}}`

	var e Event
	err := json.Unmarshal([]byte(line), &e)
	if err == nil {
		t.Fatal("expected error for unknown event type")
	}
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Errorf("expected ValidationError, got %T", err)
	}
}

func TestUnmarshalMissingPayload(t *testing.T) {
	line := `{"event_id":"e1","decision_id":"d1","event_type":"DecisionProposed","timestamp":"2026-02-19T12:00:00Z","agent":"angus"}`

	var e Event
	if err := json.Unmarshal([]byte(line), &e); err == nil {
		t.Fatal("expected error for missing payload")
	}
}

func TestValidateConfidenceBounds(t *testing.T) {
	for _, conf := range []float64{-0.1, 1.5} {
		evt := validEvent(TypeDecisionProposed, &Proposed{
			Hypothesis:   "h",
			Confidence:   conf,
			ChosenAction: "hold",
		})
		if err := evt.Validate(); err == nil {
			t.Errorf("confidence %v: expected validation error", conf)
		}
	}

	evt := validEvent(TypeDecisionProposed, &Proposed{
		Hypothesis:   "h",
		Confidence:   1.0,
		ChosenAction: "hold",
	})
	if err := evt.Validate(); err != nil {
		t.Errorf("confidence 1.0 should be valid: %v", err)
	}
}

func TestValidatePayloadTypeMismatch(t *testing.T) {
	evt := validEvent(TypeActionExecuted, &Proposed{
		Hypothesis:   "h",
		Confidence:   0.5,
		ChosenAction: "hold",
	})
	if err := evt.Validate(); err == nil {
		t.Fatal("expected error for payload/type mismatch")
	}
}

func TestRedactStripsSensitiveKeys(t *testing.T) {
	params := map[string]any{
		"market":      "btc-95k",
		"api_key":     "abc123",
		"secret":      "shh",
		"private_key": "pk",
	}

	d := NewDispatched("polymarket_trade", params)
	if _, ok := d.Parameters["api_key"]; ok {
		t.Error("api_key survived redaction")
	}
	if _, ok := d.Parameters["secret"]; ok {
		t.Error("secret survived redaction")
	}
	if _, ok := d.Parameters["private_key"]; ok {
		t.Error("private_key survived redaction")
	}
	if d.Parameters["market"] != "btc-95k" {
		t.Error("non-sensitive key lost in redaction")
	}

	// The original map is untouched.
	if _, ok := params["api_key"]; !ok {
		t.Error("Redact mutated the caller's map")
	}

	// A marshaled dispatch event never contains the key.
	data, err := json.Marshal(validEvent(TypeActionDispatched, d))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if strings.Contains(string(data), "api_key") {
		t.Error("api_key present in persisted form")
	}
}

func TestValidateRejectsUnredactedDispatch(t *testing.T) {
	evt := validEvent(TypeActionDispatched, &Dispatched{
		Tool:       "polymarket_trade",
		Parameters: map[string]any{"api_key": "leaked"},
	})
	if err := evt.Validate(); err == nil {
		t.Fatal("expected validation error for unredacted dispatch parameters")
	}
}

func TestOutcomeOptionalFieldsAbsent(t *testing.T) {
	evt := validEvent(TypeOutcomeObserved, &Outcome{
		Resolution:          "unknown",
		ResolutionSource:    "manual",
		ResolutionTimestamp: time.Now().UTC(),
	})

	data, err := json.Marshal(evt)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if strings.Contains(string(data), "hypothesis_correct") {
		t.Error("absent hypothesis_correct serialized anyway")
	}
	if strings.Contains(string(data), `"pnl"`) {
		t.Error("absent pnl serialized anyway")
	}

	var got Event
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	out := got.Payload.(*Outcome)
	if out.HypothesisCorrect != nil {
		t.Error("hypothesis_correct should stay nil: absence is distinct from false")
	}
}
