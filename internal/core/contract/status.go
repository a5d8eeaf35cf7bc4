// Package contract contains the pure business logic for contract operations.
// This is part of the Functional Core - no I/O, only pure functions.
package contract

// Status represents the possible states of a contract.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusReview     Status = "review"
	StatusPassed     Status = "passed"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
)

// transitions is the single source of truth for the contract state machine.
// There is deliberately no edge from pending straight to review or passed:
// work must be explicitly marked in_progress first. failed only returns to
// in_progress because rework resumes execution rather than restarting
// assignment. Terminal states have no outgoing edges at all.
var transitions = map[Status][]Status{
	StatusPending:    {StatusInProgress, StatusCancelled},
	StatusInProgress: {StatusReview, StatusCancelled},
	StatusReview:     {StatusPassed, StatusFailed},
	StatusFailed:     {StatusInProgress},
	StatusPassed:     {},
	StatusCancelled:  {},
}

// All returns every defined status, in lifecycle order.
func All() []Status {
	return []Status{StatusPending, StatusInProgress, StatusReview, StatusPassed, StatusFailed, StatusCancelled}
}

// Valid reports whether s is a defined contract status.
func Valid(s Status) bool {
	_, ok := transitions[s]
	return ok
}

// IsTerminal reports whether s admits no further transitions.
func IsTerminal(s Status) bool {
	next, ok := transitions[s]
	return ok && len(next) == 0
}

// InitialStatus returns the status of a freshly created contract.
func InitialStatus() Status {
	return StatusPending
}

// CanTransition reports whether (from, to) is in the transition table.
// Self-transitions are never allowed, including on terminal states.
func CanTransition(from, to Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// AllowedNext returns the legal target statuses from the given state, so a
// rejected caller can self-correct without inspecting internal state.
// Terminal states return an empty slice.
func AllowedNext(from Status) []Status {
	next := transitions[from]
	out := make([]Status, len(next))
	copy(out, next)
	return out
}
