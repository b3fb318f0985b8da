package event

import (
	"fmt"
	"time"
)

// Payload is the tagged union of per-type event payloads. The validate method
// is unexported so the set of implementations is closed to this package.
type Payload interface {
	EventType() Type
	validate() error
}

// redactedKeys are stripped from dispatch parameters before persistence.
var redactedKeys = map[string]bool{
	"api_key":     true,
	"secret":      true,
	"private_key": true,
}

// Redact returns a copy of params with sensitive keys removed. A nil map
// yields an empty map so redacted payloads always marshal as {}.
func Redact(params map[string]any) map[string]any {
	out := make(map[string]any, len(params))
	for k, v := range params {
		if redactedKeys[k] {
			continue
		}
		out[k] = v
	}
	return out
}

// Proposed is the DecisionProposed payload: the agent's stated hypothesis,
// confidence and chosen action at decision time.
type Proposed struct {
	Trigger                string         `json:"trigger"`
	Inputs                 []string       `json:"inputs"`
	Hypothesis             string         `json:"hypothesis"`
	Confidence             float64        `json:"confidence"`
	AlternativesConsidered []string       `json:"alternatives_considered"`
	ChosenAction           string         `json:"chosen_action"`
	Parameters             map[string]any `json:"parameters"`
	PreMortem              string         `json:"pre_mortem"`
	CanonNoteRef           string         `json:"canon_note_ref"`
}

// EventType implements Payload.
func (*Proposed) EventType() Type { return TypeDecisionProposed }

func (p *Proposed) validate() error {
	if p.Hypothesis == "" {
		return &ValidationError{Field: "hypothesis", Reason: "empty"}
	}
	if p.Confidence < 0 || p.Confidence > 1 {
		return &ValidationError{Field: "confidence", Reason: fmt.Sprintf("%v outside [0,1]", p.Confidence)}
	}
	if p.ChosenAction == "" {
		return &ValidationError{Field: "chosen_action", Reason: "empty"}
	}
	return nil
}

// Dispatched is the ActionDispatched payload. Parameters must already be
// redacted; construct via NewDispatched so no credential can be persisted.
type Dispatched struct {
	Tool       string         `json:"tool"`
	Parameters map[string]any `json:"parameters"`
}

// NewDispatched builds a Dispatched payload with sensitive parameter keys
// stripped.
func NewDispatched(tool string, params map[string]any) *Dispatched {
	return &Dispatched{Tool: tool, Parameters: Redact(params)}
}

// EventType implements Payload.
func (*Dispatched) EventType() Type { return TypeActionDispatched }

func (d *Dispatched) validate() error {
	if d.Tool == "" {
		return &ValidationError{Field: "tool", Reason: "empty"}
	}
	for k := range d.Parameters {
		if redactedKeys[k] {
			return &ValidationError{Field: "parameters", Reason: fmt.Sprintf("unredacted key %q", k)}
		}
	}
	return nil
}

// Executed is the ActionExecuted payload.
type Executed struct {
	Success   bool           `json:"success"`
	Result    map[string]any `json:"result"`
	LatencyMS int64          `json:"latency_ms"`
}

// EventType implements Payload.
func (*Executed) EventType() Type { return TypeActionExecuted }

func (x *Executed) validate() error {
	if x.LatencyMS < 0 {
		return &ValidationError{Field: "latency_ms", Reason: "negative"}
	}
	return nil
}

// Failed is the ActionFailed payload.
type Failed struct {
	ErrorType   string `json:"error_type"`
	ErrorDetail string `json:"error_detail"`
	Retryable   bool   `json:"retryable"`
	RetryCount  int    `json:"retry_count"`
}

// EventType implements Payload.
func (*Failed) EventType() Type { return TypeActionFailed }

func (f *Failed) validate() error {
	if f.ErrorType == "" {
		return &ValidationError{Field: "error_type", Reason: "empty"}
	}
	return nil
}

// Outcome is the OutcomeObserved payload. HypothesisCorrect and PnL are
// pointers: absence is a distinct state from false / zero and excludes the
// decision from calibration pairing.
type Outcome struct {
	Resolution          string    `json:"resolution"`
	ResolutionSource    string    `json:"resolution_source"`
	ResolutionTimestamp time.Time `json:"resolution_timestamp"`
	HypothesisCorrect   *bool     `json:"hypothesis_correct,omitempty"`
	PnL                 *float64  `json:"pnl,omitempty"`
	PnLCurrency         string    `json:"pnl_currency,omitempty"`
}

// EventType implements Payload.
func (*Outcome) EventType() Type { return TypeOutcomeObserved }

func (o *Outcome) validate() error {
	if o.Resolution == "" {
		return &ValidationError{Field: "resolution", Reason: "empty"}
	}
	if o.ResolutionSource == "" {
		return &ValidationError{Field: "resolution_source", Reason: "empty"}
	}
	return nil
}
