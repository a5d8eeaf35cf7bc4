// Package secondary defines the secondary ports (driven adapters) for the
// application. These are the interfaces through which the application drives
// external systems.
package secondary

import (
	"context"
	"time"
)

// MessageRecord represents a message as stored in a mailbox.
type MessageRecord struct {
	ID        string
	Sender    string
	Recipient string
	Type      string
	Priority  string
	Subject   string
	Body      string
	Timestamp time.Time
	Read      bool
}

// MessageSummary is one line of a mailbox listing. Foreign entries are files
// that are not messages (e.g. a contract record dropped into the mailbox);
// they carry only the raw filename and must never be field-split.
type MessageSummary struct {
	ID        string
	Sender    string
	Type      string
	Priority  string
	Subject   string
	Timestamp time.Time
	Read      bool
	Foreign   bool
	RawName   string
}

// MessageFilters contains filter options for listing a mailbox.
type MessageFilters struct {
	UnreadOnly bool
	Type       string
}

// MailboxStore defines the secondary port for the per-agent mailbox store.
// A mailbox is partitioned into an unread and a read region; a message lives
// in exactly one region at any time.
type MailboxStore interface {
	// Exists reports whether the agent has a registered mailbox.
	Exists(ctx context.Context, agentID string) (bool, error)

	// Create provisions an empty mailbox (both regions) for the agent.
	Create(ctx context.Context, agentID string) error

	// Deliver writes one new message into the agent's unread region.
	Deliver(ctx context.Context, agentID string, rec *MessageRecord) error

	// List returns summaries of the mailbox contents in creation order.
	// Re-listing is side-effect-free.
	List(ctx context.Context, agentID string, f MessageFilters) ([]*MessageSummary, error)

	// Get retrieves a full message from either region. Read reflects the
	// region the message was found in.
	Get(ctx context.Context, agentID, messageID string) (*MessageRecord, error)

	// CommitRead atomically moves a message from the unread to the read
	// region. It fails if the message is not in the unread region.
	CommitRead(ctx context.Context, agentID, messageID string) error

	// UnreadCount returns the number of unread messages.
	UnreadCount(ctx context.Context, agentID string) (int, error)

	// Owners returns the agent ids that currently have a mailbox.
	Owners(ctx context.Context) ([]string, error)
}

// ChangeLogEntry is one append-only transition record on a contract.
type ChangeLogEntry struct {
	Timestamp  time.Time
	FromStatus string
	ToStatus   string
	Note       string
}

// Field is one entry of a contract's structured fields section. Order is
// preserved as written.
type Field struct {
	Key   string
	Value string
}

// ContractRecord represents a contract as stored in persistence. Version
// increases by one on every mutation and backs lost-update detection.
type ContractRecord struct {
	ID        string
	ParentID  string
	From      string
	To        string
	Status    string
	CreatedAt time.Time
	Version   int
	Fields    []Field
	Log       []ChangeLogEntry
}

// ContractFilters contains filter options for listing contracts.
type ContractFilters struct {
	Status string
}

// ContractStore defines the secondary port for contract persistence.
// Mutations on the same contract id are serialized by the store.
type ContractStore interface {
	// Create persists a new root contract. The caller assigns the id.
	Create(ctx context.Context, rec *ContractRecord) error

	// CreateChild persists a new child contract, allocating the next unused
	// sibling suffix under the parent. Returns the allocated id. Fails if
	// rec.ParentID does not exist.
	CreateChild(ctx context.Context, rec *ContractRecord) (string, error)

	// GetByID retrieves a contract by its id.
	GetByID(ctx context.Context, id string) (*ContractRecord, error)

	// List retrieves contracts matching the given filters, ordered by id.
	List(ctx context.Context, f ContractFilters) ([]*ContractRecord, error)

	// Children retrieves the direct children of a contract, ordered by id.
	Children(ctx context.Context, parentID string) ([]*ContractRecord, error)

	// Update replaces the stored record if its current version still equals
	// expectedVersion, bumping the version by one. A stale expectedVersion
	// fails with a concurrent-modification error and leaves the record
	// unchanged.
	Update(ctx context.Context, rec *ContractRecord, expectedVersion int) error
}

// RegistryEntry represents one known agent. Provisioning owns every field
// except ProcessState and PID, which only the orchestrator writes.
type RegistryEntry struct {
	AgentID      string `yaml:"agent_id"`
	Role         string `yaml:"role"`
	Department   string `yaml:"department,omitempty"`
	ReportsTo    string `yaml:"reports_to,omitempty"`
	Model        string `yaml:"model,omitempty"`
	Workspace    string `yaml:"workspace"`
	Interactive  bool   `yaml:"interactive,omitempty"`
	ProcessState string `yaml:"process_state"`
	PID          int    `yaml:"pid,omitempty"`
}

// RegistryStore defines the secondary port for the agent registry.
type RegistryStore interface {
	// Get retrieves an agent's registry entry.
	Get(ctx context.Context, agentID string) (*RegistryEntry, error)

	// List retrieves all registry entries, ordered by agent id.
	List(ctx context.Context) ([]*RegistryEntry, error)

	// Put creates or replaces an entry. Used by provisioning only.
	Put(ctx context.Context, entry *RegistryEntry) error

	// SetProcessState updates only the process_state and pid fields.
	SetProcessState(ctx context.Context, agentID, state string, pid int) error

	// Delete removes an entry. Fails if the agent is unknown.
	Delete(ctx context.Context, agentID string) error
}
