package primary

import "context"

// RegistryService defines the primary port for the agent registry.
type RegistryService interface {
	// Get retrieves one agent.
	Get(ctx context.Context, agentID string) (*Agent, error)

	// List retrieves all known agents, ordered by id.
	List(ctx context.Context) ([]*Agent, error)

	// Provision registers a new agent and creates its mailbox. Used by
	// external provisioning tooling and guild init.
	Provision(ctx context.Context, req ProvisionRequest) (*Agent, error)

	// Decommission removes an agent from the registry. The agent must not
	// be running. The mailbox is retained as correspondence history;
	// removeWorkspace additionally deletes the workspace directory.
	Decommission(ctx context.Context, agentID string, removeWorkspace bool) error
}

// ProvisionRequest contains parameters for registering an agent.
type ProvisionRequest struct {
	AgentID     string
	Role        string
	Department  string
	ReportsTo   string
	Model       string
	Workspace   string
	Interactive bool

	// Scaffold creates the workspace directory with a manifest carrying
	// Capabilities and a brief, instead of expecting it to exist already.
	Scaffold     bool
	Capabilities []string
}

// Agent is a registry entry at the port boundary.
type Agent struct {
	AgentID      string
	Role         string
	Department   string
	ReportsTo    string
	Model        string
	Workspace    string
	Interactive  bool
	ProcessState string
	PID          int
}
