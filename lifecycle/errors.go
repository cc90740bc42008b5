package lifecycle

import "fmt"

// ValidationError reports bad caller input: non-positive amounts, missing
// reason strings, unknown events.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + e.Reason
}

// PermissionError reports an actor/role/state mismatch for a requested
// transition. Reason names the required role or state.
type PermissionError struct {
	Event  Event
	Role   Role
	Reason string
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("%s not permitted for %s: %s", e.Event, e.Role, e.Reason)
}

// StaleStateError means the booking moved between the decision read and the
// conditional write. The caller should re-read and retry the user action.
type StaleStateError struct {
	Expected Status
	Actual   Status
}

func (e *StaleStateError) Error() string {
	return fmt.Sprintf("booking status changed: expected %s, now %s", e.Expected, e.Actual)
}

// PersistenceError wraps a failed store read or write. Recoverable; the
// engine retries these with backoff before giving up.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence failure during %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// GatewayError wraps a payment or notification provider failure.
type GatewayError struct {
	Op  string
	Err error
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("gateway failure during %s: %v", e.Op, e.Err)
}

func (e *GatewayError) Unwrap() error { return e.Err }
