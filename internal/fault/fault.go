// Package fault defines the error kinds of the coordination substrate.
// Every rejected operation carries one of these sentinels so callers can
// branch on the kind with errors.Is without parsing message text.
package fault

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for the failure modes of the core.
var (
	ErrUnknownRecipient       = errors.New("unknown recipient")
	ErrNotFound               = errors.New("not found")
	ErrInvalidTransition      = errors.New("invalid transition")
	ErrParentNotFound         = errors.New("parent contract not found")
	ErrWorkspaceIncomplete    = errors.New("workspace incomplete")
	ErrProcessSpawnFailed     = errors.New("process spawn failed")
	ErrIO                     = errors.New("persistence failure")
	ErrConcurrentModification = errors.New("concurrent modification")
)

// TransitionError rejects a contract status transition and names the
// statuses that would have been legal from the current state.
type TransitionError struct {
	ContractID string
	From       string
	To         string
	Allowed    []string
}

func (e *TransitionError) Error() string {
	if len(e.Allowed) == 0 {
		return fmt.Sprintf("contract %s: cannot leave terminal state %s", e.ContractID, e.From)
	}
	return fmt.Sprintf("contract %s: cannot transition %s -> %s (allowed: %s)",
		e.ContractID, e.From, e.To, strings.Join(e.Allowed, ", "))
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }

// WorkspaceError rejects an agent start and names the missing pieces.
type WorkspaceError struct {
	AgentID string
	Missing []string
}

func (e *WorkspaceError) Error() string {
	return fmt.Sprintf("agent %s: workspace incomplete (missing: %s)",
		e.AgentID, strings.Join(e.Missing, ", "))
}

func (e *WorkspaceError) Unwrap() error { return ErrWorkspaceIncomplete }

// Kind returns the machine-parseable kind name for an error, or "Internal"
// if the error carries no known sentinel.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrUnknownRecipient):
		return "UnknownRecipient"
	case errors.Is(err, ErrParentNotFound):
		return "ParentNotFound"
	case errors.Is(err, ErrNotFound):
		return "NotFound"
	case errors.Is(err, ErrInvalidTransition):
		return "InvalidTransition"
	case errors.Is(err, ErrWorkspaceIncomplete):
		return "WorkspaceIncomplete"
	case errors.Is(err, ErrProcessSpawnFailed):
		return "ProcessSpawnFailed"
	case errors.Is(err, ErrConcurrentModification):
		return "ConcurrentModification"
	case errors.Is(err, ErrIO):
		return "IOFailure"
	default:
		return "Internal"
	}
}

// IsRetryable reports whether the error is worth retrying. Only the spawn
// path is transient; validation and persistence failures are surfaced to the
// caller immediately.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrProcessSpawnFailed)
}
