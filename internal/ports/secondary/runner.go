// Package secondary defines the secondary ports (driven adapters) for the
// application.
package secondary

import "context"

// SpawnSpec describes one agent worker activation.
type SpawnSpec struct {
	AgentID      string
	Workspace    string
	Command      []string // argv; never empty
	Env          []string // KEY=VALUE pairs appended to the inherited env
	Interactive  bool     // run inside a tmux session so a human can attach
	Capabilities []string // operation tags from the agent's manifest
}

// ExitResult describes how an activation ended. A nil Err with ExitCode 0 is
// the normal end of an activation: the worker finished its mailbox and
// exited on its own.
type ExitResult struct {
	ExitCode int
	Err      error
}

// ProcessHandle is a live agent worker process.
type ProcessHandle interface {
	// PID returns the OS process id of the worker.
	PID() int

	// Wake signals the worker to re-check its mailbox. Delivery is
	// at-least-once; waking an idle worker is harmless.
	Wake(ctx context.Context) error

	// Terminate requests a graceful shutdown.
	Terminate(ctx context.Context) error

	// Kill forcefully ends the worker.
	Kill(ctx context.Context) error

	// Done is closed when the worker has exited.
	Done() <-chan struct{}

	// Exit returns the exit result. Valid only after Done is closed.
	Exit() ExitResult
}

// ProcessRunner defines the secondary port for spawning agent workers.
type ProcessRunner interface {
	Start(ctx context.Context, spec SpawnSpec) (ProcessHandle, error)
}
