// Package tmux contains the tmux implementation of the process runner, used
// for interactive agents so a human can attach to the worker session. The
// wake signal is a send-keys nudge typed into the worker's pane.
package tmux

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/GianlucaP106/gotmux/gotmux"

	"github.com/example/guild/internal/fault"
	"github.com/example/guild/internal/ports/secondary"
)

const sessionPrefix = "guild-"

// wakeNudge is typed into the worker's pane on dispatch. Workers treat any
// input line as a prompt to re-check their mailbox.
const wakeNudge = "You have new mail - check your mailbox"

// Runner implements secondary.ProcessRunner on tmux sessions, one session
// per agent activation.
type Runner struct {
	tmux *gotmux.Tmux
}

// New creates a tmux runner. Fails when no usable tmux binary is available.
func New() (*Runner, error) {
	t, err := gotmux.DefaultTmux()
	if err != nil {
		return nil, fmt.Errorf("failed to create tmux client: %w", err)
	}
	return &Runner{tmux: t}, nil
}

// SessionName returns the tmux session name hosting an agent's worker.
func SessionName(agentID string) string {
	return sessionPrefix + agentID
}

// Start creates a detached session running the worker command in the agent's
// workspace. The session is created by shelling out so the command is passed
// as a real argv (gotmux wraps ShellCommand in single quotes, which breaks
// multi-word commands).
func (r *Runner) Start(ctx context.Context, spec secondary.SpawnSpec) (secondary.ProcessHandle, error) {
	if len(spec.Command) == 0 {
		return nil, fmt.Errorf("agent %s: empty worker command: %w", spec.AgentID, fault.ErrProcessSpawnFailed)
	}

	name := SessionName(spec.AgentID)
	if r.sessionExists(name) {
		return nil, fmt.Errorf("agent %s: session %s already exists: %w", spec.AgentID, name, fault.ErrProcessSpawnFailed)
	}

	args := []string{"new-session", "-d", "-s", name, "-c", spec.Workspace, "env"}
	args = append(args, spec.Env...)
	args = append(args, spec.Command...)
	if err := exec.Command("tmux", args...).Run(); err != nil {
		return nil, fmt.Errorf("agent %s: failed to create session: %v: %w", spec.AgentID, err, fault.ErrProcessSpawnFailed)
	}

	pid, err := panePID(name)
	if err != nil {
		killSession(name)
		return nil, fmt.Errorf("agent %s: %v: %w", spec.AgentID, err, fault.ErrProcessSpawnFailed)
	}

	h := &handle{runner: r, session: name, pid: pid, done: make(chan struct{})}
	go h.watch()
	return h, nil
}

func (r *Runner) sessionExists(name string) bool {
	sessions, err := r.tmux.ListSessions()
	if err != nil {
		return false
	}
	for _, s := range sessions {
		if s.Name == name {
			return true
		}
	}
	return false
}

// panePID returns the pid of the worker process rooted in the session's
// first pane.
func panePID(session string) (int, error) {
	out, err := exec.Command("tmux", "list-panes", "-t", session, "-F", "#{pane_pid}").Output()
	if err != nil {
		return 0, fmt.Errorf("failed to resolve pane pid for %s: %w", session, err)
	}
	line, _, _ := strings.Cut(strings.TrimSpace(string(out)), "\n")
	pid, err := strconv.Atoi(line)
	if err != nil {
		return 0, fmt.Errorf("unexpected pane pid %q for %s: %w", line, session, err)
	}
	return pid, nil
}

func killSession(name string) error {
	return exec.Command("tmux", "kill-session", "-t", name).Run()
}

// handle is one tmux-hosted activation.
type handle struct {
	runner  *Runner
	session string
	pid     int
	done    chan struct{}
	once    sync.Once
}

// watch closes done once the session is gone. tmux does not surface the
// worker's exit code, so a finished session counts as a clean exit.
func (h *handle) watch() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for range ticker.C {
		if !h.runner.sessionExists(h.session) {
			h.once.Do(func() { close(h.done) })
			return
		}
	}
}

func (h *handle) PID() int { return h.pid }

// Wake types the nudge into the worker's pane, as if a human had.
func (h *handle) Wake(ctx context.Context) error {
	if err := exec.Command("tmux", "send-keys", "-t", h.session, wakeNudge, "C-m").Run(); err != nil {
		return fmt.Errorf("failed to nudge session %s: %w", h.session, err)
	}
	return nil
}

// Terminate asks the worker itself to shut down; the session ends with it.
func (h *handle) Terminate(ctx context.Context) error {
	if err := syscall.Kill(h.pid, syscall.SIGTERM); err != nil {
		return fmt.Errorf("failed to terminate session %s: %w", h.session, err)
	}
	return nil
}

// Kill tears the whole session down.
func (h *handle) Kill(ctx context.Context) error {
	if err := killSession(h.session); err != nil {
		return fmt.Errorf("failed to kill session %s: %w", h.session, err)
	}
	return nil
}

func (h *handle) Done() <-chan struct{} { return h.done }

// Exit always reports a clean exit: tmux does not surface the worker's
// exit status once the session is gone.
func (h *handle) Exit() secondary.ExitResult {
	return secondary.ExitResult{}
}

// AttachInstructions returns how a human attaches to an agent's session.
func AttachInstructions(agentID string) string {
	return fmt.Sprintf("tmux attach -t %s", SessionName(agentID))
}

// Ensure interfaces are implemented.
var (
	_ secondary.ProcessRunner = (*Runner)(nil)
	_ secondary.ProcessHandle = (*handle)(nil)
)
