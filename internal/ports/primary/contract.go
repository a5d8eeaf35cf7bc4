package primary

import (
	"context"
	"time"
)

// ContractService defines the primary port for contract operations.
type ContractService interface {
	// Create persists a new contract in pending state and delivers a
	// contract notification to the assignee's mailbox. With ParentID set
	// the new id is the parent id plus the next unused sibling suffix.
	Create(ctx context.Context, req CreateContractRequest) (*Contract, error)

	// Transition applies a validated status change, appends exactly one
	// change-log entry, and notifies the counterparty by mail.
	Transition(ctx context.Context, req TransitionRequest) (*Contract, error)

	// Get retrieves a contract by id.
	Get(ctx context.Context, contractID string) (*Contract, error)

	// List retrieves contracts, optionally filtered by status.
	List(ctx context.Context, filterStatus string) ([]*Contract, error)

	// ChildrenPassed reports whether the contract has at least one child
	// and every child has reached passed. Parent/child status coordination
	// is an explicit caller policy; transitions never cascade.
	ChildrenPassed(ctx context.Context, parentID string) (bool, error)
}

// CreateContractRequest contains parameters for creating a contract.
type CreateContractRequest struct {
	From     string
	To       string
	ParentID string // optional
	Fields   []ContractField
}

// TransitionRequest contains parameters for a status transition.
type TransitionRequest struct {
	ContractID string
	NewStatus  string
	Note       string // optional
}

// ContractField is one key/value entry of the structured fields section.
type ContractField struct {
	Key   string
	Value string
}

// Contract is a contract at the port boundary.
type Contract struct {
	ID        string
	ParentID  string
	From      string
	To        string
	Status    string
	CreatedAt time.Time
	Version   int
	Fields    []ContractField
	Log       []ChangeLog
}

// ChangeLog is one transition entry of a contract's change log.
type ChangeLog struct {
	Timestamp  time.Time
	FromStatus string
	ToStatus   string
	Note       string
}
