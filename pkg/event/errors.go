package event

import "fmt"

// ValidationError reports an event or payload that fails schema validation.
// It enables typed error discrimination via errors.As.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid event: %s: %s", e.Field, e.Reason)
}
