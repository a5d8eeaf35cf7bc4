// Package runner contains the os/exec implementation of the process runner.
// Each agent activation is one child process; the wake signal is SIGUSR1 and
// graceful shutdown is SIGTERM.
package runner

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"syscall"

	"github.com/example/guild/internal/fault"
	"github.com/example/guild/internal/ports/secondary"
)

// Runner implements secondary.ProcessRunner with plain child processes.
type Runner struct{}

// New creates a new process runner.
func New() *Runner {
	return &Runner{}
}

// Start spawns the worker described by the spec. The worker inherits the
// environment plus the spec's additions and runs in the agent's workspace.
func (r *Runner) Start(ctx context.Context, spec secondary.SpawnSpec) (secondary.ProcessHandle, error) {
	if len(spec.Command) == 0 {
		return nil, fmt.Errorf("agent %s: empty worker command: %w", spec.AgentID, fault.ErrProcessSpawnFailed)
	}

	// #nosec G204 - the command comes from operator-owned configuration
	cmd := exec.Command(spec.Command[0], spec.Command[1:]...)
	cmd.Dir = spec.Workspace
	cmd.Env = append(os.Environ(), spec.Env...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("agent %s: %v: %w", spec.AgentID, err, fault.ErrProcessSpawnFailed)
	}

	h := &handle{cmd: cmd, done: make(chan struct{})}
	go h.reap()
	return h, nil
}

// handle is one live child process.
type handle struct {
	cmd  *exec.Cmd
	done chan struct{}
	exit secondary.ExitResult
	once sync.Once
}

func (h *handle) reap() {
	err := h.cmd.Wait()
	h.once.Do(func() {
		h.exit = secondary.ExitResult{ExitCode: h.cmd.ProcessState.ExitCode(), Err: err}
		close(h.done)
	})
}

func (h *handle) PID() int {
	return h.cmd.Process.Pid
}

// Wake signals the worker to re-check its mailbox.
func (h *handle) Wake(ctx context.Context) error {
	if err := h.cmd.Process.Signal(syscall.SIGUSR1); err != nil {
		return fmt.Errorf("failed to wake pid %d: %w", h.PID(), err)
	}
	return nil
}

// Terminate requests a graceful shutdown.
func (h *handle) Terminate(ctx context.Context) error {
	if err := h.cmd.Process.Signal(syscall.SIGTERM); err != nil {
		return fmt.Errorf("failed to terminate pid %d: %w", h.PID(), err)
	}
	return nil
}

// Kill forcefully ends the worker.
func (h *handle) Kill(ctx context.Context) error {
	if err := h.cmd.Process.Kill(); err != nil {
		return fmt.Errorf("failed to kill pid %d: %w", h.PID(), err)
	}
	return nil
}

func (h *handle) Done() <-chan struct{} { return h.done }

func (h *handle) Exit() secondary.ExitResult {
	select {
	case <-h.done:
		return h.exit
	default:
		return secondary.ExitResult{}
	}
}

// Ensure interfaces are implemented.
var (
	_ secondary.ProcessRunner = (*Runner)(nil)
	_ secondary.ProcessHandle = (*handle)(nil)
)
