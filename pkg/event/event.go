// Package event defines the spine event schema: a closed set of event types,
// one strictly-typed payload per type, and the JSON wire format used by the
// append-only ledger. Payload shape is validated at construction and at decode
// time rather than at field access.
package event

import (
	"encoding/json"
	"fmt"
	"time"
)

// Type identifies the kind of event. The set is closed; decoding an unknown
// type is an error.
type Type string

// Event type constants.
const (
	TypeDecisionProposed Type = "DecisionProposed"
	TypeActionDispatched Type = "ActionDispatched"
	TypeActionExecuted   Type = "ActionExecuted"
	TypeActionFailed     Type = "ActionFailed"
	TypeOutcomeObserved  Type = "OutcomeObserved"
)

// Types lists every valid event type in lifecycle order.
func Types() []Type {
	return []Type{
		TypeDecisionProposed,
		TypeActionDispatched,
		TypeActionExecuted,
		TypeActionFailed,
		TypeOutcomeObserved,
	}
}

// Valid reports whether t is a member of the closed event-type set.
func (t Type) Valid() bool {
	switch t {
	case TypeDecisionProposed, TypeActionDispatched, TypeActionExecuted,
		TypeActionFailed, TypeOutcomeObserved:
		return true
	}
	return false
}

// Event is one immutable record in the ledger. Events sharing a DecisionID
// form a decision's lifecycle. Timestamp is producer-assigned and not
// monotonic across producers; only append order is an ordering signal.
type Event struct {
	EventID    string
	DecisionID string
	Type       Type
	Timestamp  time.Time
	Agent      string
	Payload    Payload
}

// Validate checks the envelope fields and the payload against the event type.
func (e Event) Validate() error {
	if e.EventID == "" {
		return &ValidationError{Field: "event_id", Reason: "empty"}
	}
	if e.DecisionID == "" {
		return &ValidationError{Field: "decision_id", Reason: "empty"}
	}
	if !e.Type.Valid() {
		return &ValidationError{Field: "event_type", Reason: fmt.Sprintf("unknown type %q", e.Type)}
	}
	if e.Timestamp.IsZero() {
		return &ValidationError{Field: "timestamp", Reason: "zero"}
	}
	if e.Agent == "" {
		return &ValidationError{Field: "agent", Reason: "empty"}
	}
	if e.Payload == nil {
		return &ValidationError{Field: "payload", Reason: "missing"}
	}
	if e.Payload.EventType() != e.Type {
		return &ValidationError{
			Field:  "payload",
			Reason: fmt.Sprintf("payload is %s but event_type is %s", e.Payload.EventType(), e.Type),
		}
	}
	return e.Payload.validate()
}

// envelope is the JSON wire form of an event. Payload is deferred so it can
// be decoded into the struct matching event_type.
type envelope struct {
	EventID    string          `json:"event_id"`
	DecisionID string          `json:"decision_id"`
	EventType  Type            `json:"event_type"`
	Timestamp  time.Time       `json:"timestamp"`
	Agent      string          `json:"agent"`
	Payload    json.RawMessage `json:"payload"`
}

// MarshalJSON encodes the event with its payload inline under "payload".
func (e Event) MarshalJSON() ([]byte, error) {
	raw, err := json.Marshal(e.Payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", e.Type, err)
	}
	return json.Marshal(envelope{
		EventID:    e.EventID,
		DecisionID: e.DecisionID,
		EventType:  e.Type,
		Timestamp:  e.Timestamp,
		Agent:      e.Agent,
		Payload:    raw,
	})
}

// UnmarshalJSON decodes the envelope, then dispatches the payload on
// event_type. Unknown types and mismatched payload shapes are errors.
func (e *Event) UnmarshalJSON(data []byte) error {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return err
	}
	if !env.EventType.Valid() {
		return &ValidationError{Field: "event_type", Reason: fmt.Sprintf("unknown type %q", env.EventType)}
	}

	payload, err := decodePayload(env.EventType, env.Payload)
	if err != nil {
		return err
	}

	e.EventID = env.EventID
	e.DecisionID = env.DecisionID
	e.Type = env.EventType
	e.Timestamp = env.Timestamp
	e.Agent = env.Agent
	e.Payload = payload
	return nil
}

// decodePayload unmarshals raw into the payload struct for t.
func decodePayload(t Type, raw json.RawMessage) (Payload, error) {
	if len(raw) == 0 {
		return nil, &ValidationError{Field: "payload", Reason: "missing"}
	}

	var p Payload
	switch t {
	case TypeDecisionProposed:
		p = &Proposed{}
	case TypeActionDispatched:
		p = &Dispatched{}
	case TypeActionExecuted:
		p = &Executed{}
	case TypeActionFailed:
		p = &Failed{}
	case TypeOutcomeObserved:
		p = &Outcome{}
	default:
		return nil, &ValidationError{Field: "event_type", Reason: fmt.Sprintf("unknown type %q", t)}
	}

	if err := json.Unmarshal(raw, p); err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", t, err)
	}
	return p, nil
}
