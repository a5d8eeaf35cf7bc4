package primary

import "context"

// Process states tracked in the registry. starting is transient while a
// spawn is in flight; an activation that exits naturally returns the agent
// to stopped, which is a normal lifecycle transition and not a failure.
const (
	ProcessStopped  = "stopped"
	ProcessStarting = "starting"
	ProcessRunning  = "running"
)

// Orchestrator defines the primary port for agent process supervision.
type Orchestrator interface {
	// Start spawns the agent's worker process, recording its pid and
	// setting the registry state to running. Fails if the agent's
	// workspace is missing required files.
	Start(ctx context.Context, agentID string) (*AgentProcess, error)

	// Stop requests graceful termination and waits up to the grace period.
	// It escalates to forceful termination only when force is set; without
	// force an elapsed grace period is reported as an error and the caller
	// decides whether to re-invoke with force.
	Stop(ctx context.Context, agentID string, force bool) error

	// Dispatch wakes the agent: a stopped agent is started, a running one
	// is signaled to re-check its mailbox. Dispatch is idempotent per
	// agent; it never spawns a second process for the same agent id.
	Dispatch(ctx context.Context, agentID string) error

	// Status aggregates registry and mailbox state. It never blocks on an
	// agent process.
	Status(ctx context.Context) ([]*AgentStatus, error)
}

// AgentProcess describes one live activation.
type AgentProcess struct {
	AgentID string
	PID     int
	State   string
}

// AgentStatus is one row of the status aggregation.
type AgentStatus struct {
	AgentID      string
	Role         string
	ProcessState string
	PID          int
	UnreadCount  int
}
