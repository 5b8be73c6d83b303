package pushover

import "fmt"

// ValidationError is returned when a request violates a documented input
// constraint. It is the only error Notify produces; it always precedes any
// network traffic, so observing one means nothing was sent.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}
