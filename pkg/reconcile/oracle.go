package reconcile

import (
	"context"
	"fmt"
)

// MarketStatus is the oracle's answer for one market. Outcome is only
// meaningful when Resolved is true.
type MarketStatus struct {
	Resolved bool   `json:"resolved"`
	Outcome  string `json:"outcome"`
}

// Oracle is the external authority that reports whether a market has
// resolved. Production impl is the Polymarket gamma API; tests substitute a
// stub. Any transport or parse failure is an error result, treated by the
// worker as "status unknown, skip".
type Oracle interface {
	MarketStatus(ctx context.Context, conditionID string) (MarketStatus, error)
}

// OracleError represents a network, timeout or bad-response failure from the
// resolution source. Always recovered locally: the affected decision stays
// unresolved and is retried on the next pass.
type OracleError struct {
	ConditionID string
	Err         error
}

func (e *OracleError) Error() string {
	return fmt.Sprintf("oracle: market %s: %v", e.ConditionID, e.Err)
}

func (e *OracleError) Unwrap() error { return e.Err }
