package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/example/guild/internal/agent"
	"github.com/example/guild/internal/fault"
	"github.com/example/guild/internal/ports/primary"
	"github.com/example/guild/internal/ports/secondary"
)

// OrchestratorOptions tunes process supervision.
type OrchestratorOptions struct {
	// WorkerCommand is the argv template for non-interactive workers.
	// {agent}, {workspace} and {model} placeholders are expanded per spawn.
	WorkerCommand []string

	// SpawnRetries bounds how often a failed spawn is re-attempted.
	SpawnRetries int

	// SpawnBackoff is the delay before the first re-attempt; it doubles on
	// every further attempt.
	SpawnBackoff time.Duration

	// GracePeriod is how long Stop waits for a graceful exit.
	GracePeriod time.Duration
}

// OrchestratorServiceImpl implements the Orchestrator interface. It owns the
// live process handles of every agent it started; the registry mirrors that
// state so other processes can observe it.
type OrchestratorServiceImpl struct {
	registry    secondary.RegistryStore
	mailboxes   secondary.MailboxStore
	runner      secondary.ProcessRunner
	interactive secondary.ProcessRunner
	opts        OrchestratorOptions
	log         zerolog.Logger

	mu      sync.Mutex
	locks   map[string]*sync.Mutex
	handles map[string]secondary.ProcessHandle
}

// NewOrchestratorService creates a new Orchestrator with injected
// dependencies. interactive may equal runner when tmux is unavailable.
func NewOrchestratorService(
	registry secondary.RegistryStore,
	mailboxes secondary.MailboxStore,
	runner secondary.ProcessRunner,
	interactive secondary.ProcessRunner,
	opts OrchestratorOptions,
	log zerolog.Logger,
) *OrchestratorServiceImpl {
	if len(opts.WorkerCommand) == 0 {
		opts.WorkerCommand = []string{"guild-worker"}
	}
	if opts.SpawnRetries < 1 {
		opts.SpawnRetries = 1
	}
	return &OrchestratorServiceImpl{
		registry:    registry,
		mailboxes:   mailboxes,
		runner:      runner,
		interactive: interactive,
		opts:        opts,
		log:         log,
		locks:       make(map[string]*sync.Mutex),
		handles:     make(map[string]secondary.ProcessHandle),
	}
}

// lockFor returns the per-agent mutex that serializes lifecycle operations
// on one agent. Operations on different agents never contend.
func (s *OrchestratorServiceImpl) lockFor(agentID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[agentID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[agentID] = l
	}
	return l
}

func (s *OrchestratorServiceImpl) handle(agentID string) (secondary.ProcessHandle, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.handles[agentID]
	return h, ok
}

func (s *OrchestratorServiceImpl) setHandle(agentID string, h secondary.ProcessHandle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if h == nil {
		delete(s.handles, agentID)
	} else {
		s.handles[agentID] = h
	}
}

// Start spawns the agent's worker process.
func (s *OrchestratorServiceImpl) Start(ctx context.Context, agentID string) (*primary.AgentProcess, error) {
	lock := s.lockFor(agentID)
	lock.Lock()
	defer lock.Unlock()
	return s.startLocked(ctx, agentID)
}

// startLocked is the spawn path. The caller holds the agent's lock.
func (s *OrchestratorServiceImpl) startLocked(ctx context.Context, agentID string) (*primary.AgentProcess, error) {
	if h, ok := s.handle(agentID); ok {
		select {
		case <-h.Done():
			// stale handle from an activation that already exited
			s.setHandle(agentID, nil)
		default:
			return nil, fmt.Errorf("agent %s is already running (pid %d)", agentID, h.PID())
		}
	}

	entry, err := s.registry.Get(ctx, agentID)
	if err != nil {
		return nil, err
	}

	manifest, err := s.checkWorkspace(ctx, entry)
	if err != nil {
		return nil, err
	}

	if err := s.registry.SetProcessState(ctx, agentID, primary.ProcessStarting, 0); err != nil {
		return nil, fmt.Errorf("failed to update registry: %w", err)
	}

	spec := secondary.SpawnSpec{
		AgentID:   agentID,
		Workspace: entry.Workspace,
		Command:   expandCommand(s.opts.WorkerCommand, entry),
		Env: []string{
			agent.EnvAgent + "=" + agentID,
			agent.EnvCapabilities + "=" + strings.Join(manifest.Capabilities, ","),
		},
		Interactive:  entry.Interactive,
		Capabilities: manifest.Capabilities,
	}

	runner := s.runner
	if entry.Interactive {
		runner = s.interactive
	}

	var h secondary.ProcessHandle
	backoff := s.opts.SpawnBackoff
	for attempt := 1; ; attempt++ {
		h, err = runner.Start(ctx, spec)
		if err == nil {
			break
		}
		if !fault.IsRetryable(err) || attempt >= s.opts.SpawnRetries {
			// roll the registry back so the agent is not stuck in starting
			if regErr := s.registry.SetProcessState(ctx, agentID, primary.ProcessStopped, 0); regErr != nil {
				s.log.Error().Err(regErr).Str("agent", agentID).Msg("failed to reset registry after spawn failure")
			}
			return nil, err
		}
		s.log.Warn().
			Err(err).
			Str("agent", agentID).
			Int("attempt", attempt).
			Msg("spawn failed, retrying")
		select {
		case <-ctx.Done():
			if regErr := s.registry.SetProcessState(ctx, agentID, primary.ProcessStopped, 0); regErr != nil {
				s.log.Error().Err(regErr).Str("agent", agentID).Msg("failed to reset registry after cancelled spawn")
			}
			return nil, ctx.Err()
		case <-time.After(backoff):
			backoff *= 2
		}
	}

	s.setHandle(agentID, h)
	if err := s.registry.SetProcessState(ctx, agentID, primary.ProcessRunning, h.PID()); err != nil {
		s.log.Error().Err(err).Str("agent", agentID).Msg("failed to record running state")
	}
	go s.reap(agentID, h)

	s.log.Info().
		Str("agent", agentID).
		Int("pid", h.PID()).
		Msg("agent started")
	return &primary.AgentProcess{AgentID: agentID, PID: h.PID(), State: primary.ProcessRunning}, nil
}

// reap waits for the activation to end and returns the agent to stopped.
// A zero exit is the normal end of an activation, not a failure.
func (s *OrchestratorServiceImpl) reap(agentID string, h secondary.ProcessHandle) {
	<-h.Done()

	res := h.Exit()
	if res.ExitCode != 0 || res.Err != nil {
		s.log.Error().
			Str("agent", agentID).
			Int("exit_code", res.ExitCode).
			AnErr("cause", res.Err).
			Msg("agent exited abnormally")
	} else {
		s.log.Info().Str("agent", agentID).Msg("agent finished activation")
	}

	// A dispatch may already have replaced this handle with a fresh
	// activation. Only the reap of the current handle may clear it and mark
	// the agent stopped; the lifecycle lock keeps the check and the registry
	// write atomic against concurrent starts.
	lock := s.lockFor(agentID)
	lock.Lock()
	defer lock.Unlock()
	if cur, ok := s.handle(agentID); !ok || cur != h {
		return
	}
	s.setHandle(agentID, nil)

	ctx := context.Background()
	if err := s.registry.SetProcessState(ctx, agentID, primary.ProcessStopped, 0); err != nil {
		s.log.Error().Err(err).Str("agent", agentID).Msg("failed to record stopped state")
	}
}

// checkWorkspace verifies the agent's workspace is complete and returns its
// capability manifest. All missing pieces are reported together.
func (s *OrchestratorServiceImpl) checkWorkspace(ctx context.Context, entry *secondary.RegistryEntry) (*agent.Manifest, error) {
	var missing []string

	manifest, err := agent.LoadManifest(entry.Workspace)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			missing = append(missing, agent.ManifestFileName)
		} else {
			return nil, fmt.Errorf("failed to load manifest: %w", err)
		}
	}
	if _, err := os.Stat(filepath.Join(entry.Workspace, agent.BriefFileName)); err != nil {
		missing = append(missing, agent.BriefFileName)
	}
	ok, err := s.mailboxes.Exists(ctx, entry.AgentID)
	if err != nil {
		return nil, fmt.Errorf("failed to check mailbox: %w", err)
	}
	if !ok {
		missing = append(missing, "mailbox")
	}

	if len(missing) > 0 {
		return nil, &fault.WorkspaceError{AgentID: entry.AgentID, Missing: missing}
	}
	return manifest, nil
}

// expandCommand substitutes per-agent placeholders into the worker argv.
func expandCommand(template []string, entry *secondary.RegistryEntry) []string {
	out := make([]string, len(template))
	for i, arg := range template {
		arg = strings.ReplaceAll(arg, "{agent}", entry.AgentID)
		arg = strings.ReplaceAll(arg, "{workspace}", entry.Workspace)
		arg = strings.ReplaceAll(arg, "{model}", entry.Model)
		out[i] = arg
	}
	return out
}

// Stop requests termination of a running agent.
func (s *OrchestratorServiceImpl) Stop(ctx context.Context, agentID string, force bool) error {
	lock := s.lockFor(agentID)
	lock.Lock()
	defer lock.Unlock()

	h, ok := s.handle(agentID)
	if !ok {
		entry, err := s.registry.Get(ctx, agentID)
		if err != nil {
			return err
		}
		if entry.ProcessState == primary.ProcessStopped {
			return nil
		}
		return fmt.Errorf("agent %s is not supervised by this orchestrator", agentID)
	}

	if err := h.Terminate(ctx); err != nil {
		s.log.Warn().Err(err).Str("agent", agentID).Msg("terminate signal failed")
	}

	select {
	case <-h.Done():
		return nil
	case <-time.After(s.opts.GracePeriod):
	case <-ctx.Done():
		return ctx.Err()
	}

	if !force {
		return fmt.Errorf("agent %s did not stop within %s; re-run with force", agentID, s.opts.GracePeriod)
	}

	if err := h.Kill(ctx); err != nil {
		return fmt.Errorf("failed to kill agent %s: %w", agentID, err)
	}
	<-h.Done()
	s.log.Warn().Str("agent", agentID).Msg("agent forcefully stopped")
	return nil
}

// Dispatch wakes the agent, starting it first if it is not running. Holding
// the agent's lock for the whole call makes dispatch idempotent: concurrent
// dispatches for one agent collapse to one spawn plus wakes.
func (s *OrchestratorServiceImpl) Dispatch(ctx context.Context, agentID string) error {
	lock := s.lockFor(agentID)
	lock.Lock()
	defer lock.Unlock()

	if h, ok := s.handle(agentID); ok {
		select {
		case <-h.Done():
			s.setHandle(agentID, nil)
		default:
			if err := h.Wake(ctx); err != nil {
				return fmt.Errorf("failed to wake agent %s: %w", agentID, err)
			}
			s.log.Debug().Str("agent", agentID).Msg("agent woken")
			return nil
		}
	}

	_, err := s.startLocked(ctx, agentID)
	return err
}

// Status aggregates registry and mailbox state for all agents.
func (s *OrchestratorServiceImpl) Status(ctx context.Context) ([]*primary.AgentStatus, error) {
	entries, err := s.registry.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list registry: %w", err)
	}

	out := make([]*primary.AgentStatus, 0, len(entries))
	for _, entry := range entries {
		st := &primary.AgentStatus{
			AgentID:      entry.AgentID,
			Role:         entry.Role,
			ProcessState: entry.ProcessState,
			PID:          entry.PID,
		}
		if n, err := s.mailboxes.UnreadCount(ctx, entry.AgentID); err == nil {
			st.UnreadCount = n
		} else {
			s.log.Warn().Err(err).Str("agent", entry.AgentID).Msg("unread count unavailable")
		}
		out = append(out, st)
	}
	return out, nil
}
