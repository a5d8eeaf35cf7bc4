package app

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/example/guild/internal/agent"
	"github.com/example/guild/internal/ports/primary"
	"github.com/example/guild/internal/ports/secondary"
)

// RegistryServiceImpl implements the RegistryService interface.
type RegistryServiceImpl struct {
	registry   secondary.RegistryStore
	mailboxes  secondary.MailboxStore
	workspaces secondary.WorkspaceScaffolder
	log        zerolog.Logger
}

// NewRegistryService creates a new RegistryService with injected dependencies.
func NewRegistryService(registry secondary.RegistryStore, mailboxes secondary.MailboxStore, workspaces secondary.WorkspaceScaffolder, log zerolog.Logger) *RegistryServiceImpl {
	return &RegistryServiceImpl{
		registry:   registry,
		mailboxes:  mailboxes,
		workspaces: workspaces,
		log:        log,
	}
}

// Get retrieves one agent.
func (s *RegistryServiceImpl) Get(ctx context.Context, agentID string) (*primary.Agent, error) {
	entry, err := s.registry.Get(ctx, agentID)
	if err != nil {
		return nil, err
	}
	return entryToAgent(entry), nil
}

// List retrieves all known agents.
func (s *RegistryServiceImpl) List(ctx context.Context) ([]*primary.Agent, error) {
	entries, err := s.registry.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list registry: %w", err)
	}
	out := make([]*primary.Agent, 0, len(entries))
	for _, entry := range entries {
		out = append(out, entryToAgent(entry))
	}
	return out, nil
}

// Provision registers a new agent and creates its mailbox. The mailbox is
// created first so the agent is addressable the moment its registry entry
// appears.
func (s *RegistryServiceImpl) Provision(ctx context.Context, req primary.ProvisionRequest) (*primary.Agent, error) {
	if !agent.ValidID(req.AgentID) {
		return nil, fmt.Errorf("invalid agent id: %q", req.AgentID)
	}
	if req.Workspace == "" {
		return nil, fmt.Errorf("workspace is required")
	}

	if req.Scaffold {
		if err := s.workspaces.Scaffold(ctx, req.Workspace, req.AgentID, req.Role, req.Capabilities); err != nil {
			return nil, fmt.Errorf("failed to scaffold workspace: %w", err)
		}
	}

	if err := s.mailboxes.Create(ctx, req.AgentID); err != nil {
		return nil, fmt.Errorf("failed to create mailbox: %w", err)
	}

	entry := &secondary.RegistryEntry{
		AgentID:      req.AgentID,
		Role:         req.Role,
		Department:   req.Department,
		ReportsTo:    req.ReportsTo,
		Model:        req.Model,
		Workspace:    req.Workspace,
		Interactive:  req.Interactive,
		ProcessState: primary.ProcessStopped,
	}
	if err := s.registry.Put(ctx, entry); err != nil {
		return nil, fmt.Errorf("failed to register agent: %w", err)
	}

	s.log.Info().
		Str("agent", req.AgentID).
		Str("role", req.Role).
		Msg("agent provisioned")
	return entryToAgent(entry), nil
}

// Decommission removes an agent from the registry, optionally deleting its
// workspace. The mailbox stays behind so past correspondence remains
// readable.
func (s *RegistryServiceImpl) Decommission(ctx context.Context, agentID string, removeWorkspace bool) error {
	entry, err := s.registry.Get(ctx, agentID)
	if err != nil {
		return err
	}
	if entry.ProcessState == primary.ProcessRunning || entry.ProcessState == primary.ProcessStarting {
		return fmt.Errorf("agent %s is %s; stop it before decommissioning", agentID, entry.ProcessState)
	}

	if removeWorkspace && entry.Workspace != "" {
		ok, err := s.workspaces.Exists(ctx, entry.Workspace)
		if err != nil {
			return fmt.Errorf("failed to check workspace: %w", err)
		}
		if ok {
			if err := s.workspaces.Remove(ctx, entry.Workspace); err != nil {
				return fmt.Errorf("failed to remove workspace: %w", err)
			}
		}
	}

	if err := s.registry.Delete(ctx, agentID); err != nil {
		return fmt.Errorf("failed to deregister agent: %w", err)
	}

	s.log.Info().
		Str("agent", agentID).
		Bool("workspace_removed", removeWorkspace).
		Msg("agent decommissioned")
	return nil
}

func entryToAgent(entry *secondary.RegistryEntry) *primary.Agent {
	return &primary.Agent{
		AgentID:      entry.AgentID,
		Role:         entry.Role,
		Department:   entry.Department,
		ReportsTo:    entry.ReportsTo,
		Model:        entry.Model,
		Workspace:    entry.Workspace,
		Interactive:  entry.Interactive,
		ProcessState: entry.ProcessState,
		PID:          entry.PID,
	}
}
