package spine

import (
	"time"

	"github.com/google/uuid"

	"spine/pkg/event"
)

// Default agent identities for each producer role.
const (
	AgentProposer = "angus"
	AgentGateway  = "tool_gateway"
	AgentScribe   = "scribe"
)

// DefaultTrigger is recorded on proposals that do not name one.
const DefaultTrigger = "heartbeat"

// DefaultCurrency is assumed when a P&L value arrives without a currency.
const DefaultCurrency = "USDC"

// Emitter builds well-formed events and appends them to a store. The clock
// and id source are injectable for tests.
type Emitter struct {
	store *Store
	clock func() time.Time
	newID func() string
}

// NewEmitter returns an Emitter writing to store with UUIDv4 ids and UTC
// wall-clock timestamps.
func NewEmitter(store *Store) *Emitter {
	return &Emitter{
		store: store,
		clock: func() time.Time { return time.Now().UTC() },
		newID: func() string { return uuid.NewString() },
	}
}

// WithClock overrides the timestamp source. Test seam.
func (em *Emitter) WithClock(clock func() time.Time) *Emitter {
	em.clock = clock
	return em
}

// WithIDSource overrides the id generator. Test seam.
func (em *Emitter) WithIDSource(newID func() string) *Emitter {
	em.newID = newID
	return em
}

func (em *Emitter) base(decisionID string, t event.Type, agent string) event.Event {
	return event.Event{
		EventID:    em.newID(),
		DecisionID: decisionID,
		Type:       t,
		Timestamp:  em.clock(),
		Agent:      agent,
	}
}

// Proposal holds the inputs to Propose. Hypothesis, Confidence and
// ChosenAction are required; the rest default.
type Proposal struct {
	Hypothesis             string
	Confidence             float64
	ChosenAction           string
	Parameters             map[string]any
	Trigger                string
	Inputs                 []string
	AlternativesConsidered []string
	PreMortem              string
	CanonNoteRef           string
	Agent                  string
}

// Propose emits a DecisionProposed event under a fresh decision id and
// returns that id.
func (em *Emitter) Propose(p Proposal) (string, error) {
	if p.Trigger == "" {
		p.Trigger = DefaultTrigger
	}
	if p.Agent == "" {
		p.Agent = AgentProposer
	}
	if p.Parameters == nil {
		p.Parameters = map[string]any{}
	}
	if p.Inputs == nil {
		p.Inputs = []string{}
	}
	if p.AlternativesConsidered == nil {
		p.AlternativesConsidered = []string{}
	}

	decisionID := em.newID()
	e := em.base(decisionID, event.TypeDecisionProposed, p.Agent)
	e.Payload = &event.Proposed{
		Trigger:                p.Trigger,
		Inputs:                 p.Inputs,
		Hypothesis:             p.Hypothesis,
		Confidence:             p.Confidence,
		AlternativesConsidered: p.AlternativesConsidered,
		ChosenAction:           p.ChosenAction,
		Parameters:             p.Parameters,
		PreMortem:              p.PreMortem,
		CanonNoteRef:           p.CanonNoteRef,
	}
	if _, err := em.store.Append(e); err != nil {
		return "", err
	}
	return decisionID, nil
}

// Dispatched emits an ActionDispatched event. Sensitive parameter keys are
// stripped before persistence.
func (em *Emitter) Dispatched(decisionID, tool string, params map[string]any, agent string) (string, error) {
	if agent == "" {
		agent = AgentGateway
	}
	e := em.base(decisionID, event.TypeActionDispatched, agent)
	e.Payload = event.NewDispatched(tool, params)
	return em.store.Append(e)
}

// Executed emits an ActionExecuted event.
func (em *Emitter) Executed(decisionID string, success bool, result map[string]any, latencyMS int64, agent string) (string, error) {
	if agent == "" {
		agent = AgentGateway
	}
	if result == nil {
		result = map[string]any{}
	}
	e := em.base(decisionID, event.TypeActionExecuted, agent)
	e.Payload = &event.Executed{Success: success, Result: result, LatencyMS: latencyMS}
	return em.store.Append(e)
}

// Failed emits an ActionFailed event. retryCount is how many retries the
// gateway has already attempted for this action.
func (em *Emitter) Failed(decisionID, errorType, errorDetail string, retryable bool, retryCount int, agent string) (string, error) {
	if agent == "" {
		agent = AgentGateway
	}
	e := em.base(decisionID, event.TypeActionFailed, agent)
	e.Payload = &event.Failed{
		ErrorType:   errorType,
		ErrorDetail: errorDetail,
		Retryable:   retryable,
		RetryCount:  retryCount,
	}
	return em.store.Append(e)
}

// Observation holds the inputs to Outcome. HypothesisCorrect and PnL are
// optional; leaving them nil records a resolution without a verdict.
type Observation struct {
	Resolution        string
	HypothesisCorrect *bool
	PnL               *float64
	PnLCurrency       string
	ResolutionSource  string
	Agent             string
}

// Outcome emits an OutcomeObserved event for decisionID.
func (em *Emitter) Outcome(decisionID string, o Observation) (string, error) {
	if o.ResolutionSource == "" {
		o.ResolutionSource = "manual"
	}
	if o.Agent == "" {
		o.Agent = AgentScribe
	}
	currency := ""
	if o.PnL != nil {
		currency = o.PnLCurrency
		if currency == "" {
			currency = DefaultCurrency
		}
	}

	e := em.base(decisionID, event.TypeOutcomeObserved, o.Agent)
	e.Payload = &event.Outcome{
		Resolution:          o.Resolution,
		ResolutionSource:    o.ResolutionSource,
		ResolutionTimestamp: em.clock(),
		HypothesisCorrect:   o.HypothesisCorrect,
		PnL:                 o.PnL,
		PnLCurrency:         currency,
	}
	return em.store.Append(e)
}
