// Package registryfs contains the filesystem implementation of the agent
// registry. Each agent is one YAML file; provisioning owns the file, the
// orchestrator rewrites only the process_state and pid fields.
package registryfs

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/example/guild/internal/fault"
	"github.com/example/guild/internal/ports/secondary"
)

const fileExt = ".yaml"

// Store implements secondary.RegistryStore on a directory of YAML entries.
type Store struct {
	root string
	mu   sync.Mutex
}

// NewStore creates a registry store rooted at the given directory.
func NewStore(root string) *Store {
	return &Store{root: root}
}

func (s *Store) path(agentID string) string {
	return filepath.Join(s.root, agentID+fileExt)
}

// Get retrieves one agent's registry entry.
func (s *Store) Get(ctx context.Context, agentID string) (*secondary.RegistryEntry, error) {
	data, err := os.ReadFile(s.path(agentID))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("agent %s: %w", agentID, fault.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read registry entry %s: %w", agentID, fault.ErrIO)
	}

	entry := &secondary.RegistryEntry{}
	if err := yaml.Unmarshal(data, entry); err != nil {
		return nil, fmt.Errorf("registry entry %s is corrupt: %v: %w", agentID, err, fault.ErrIO)
	}
	if entry.AgentID == "" {
		entry.AgentID = agentID
	}
	if entry.ProcessState == "" {
		entry.ProcessState = "stopped"
	}
	return entry, nil
}

// List retrieves all registry entries, ordered by agent id.
func (s *Store) List(ctx context.Context) ([]*secondary.RegistryEntry, error) {
	dirEntries, err := os.ReadDir(s.root)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan registry: %w", fault.ErrIO)
	}

	var entries []*secondary.RegistryEntry
	for _, de := range dirEntries {
		name := de.Name()
		if de.IsDir() || !strings.HasSuffix(name, fileExt) || name[0] == '.' {
			continue
		}
		entry, err := s.Get(ctx, strings.TrimSuffix(name, fileExt))
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].AgentID < entries[j].AgentID })
	return entries, nil
}

// Put creates or replaces an entry via write-temp-then-rename.
func (s *Store) Put(ctx context.Context, entry *secondary.RegistryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write(entry)
}

// SetProcessState rewrites only the process_state and pid fields, leaving
// every provisioning-owned field untouched.
func (s *Store) SetProcessState(ctx context.Context, agentID, state string, pid int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, err := s.Get(ctx, agentID)
	if err != nil {
		return err
	}
	entry.ProcessState = state
	entry.PID = pid
	return s.write(entry)
}

// Delete removes an agent's registry entry.
func (s *Store) Delete(ctx context.Context, agentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := os.Remove(s.path(agentID))
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("agent %s: %w", agentID, fault.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to delete registry entry %s: %w", agentID, fault.ErrIO)
	}
	return nil
}

func (s *Store) write(entry *secondary.RegistryEntry) error {
	if err := os.MkdirAll(s.root, 0o755); err != nil {
		return fmt.Errorf("failed to create registry dir: %w", fault.ErrIO)
	}
	data, err := yaml.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to encode registry entry %s: %w", entry.AgentID, fault.ErrIO)
	}
	tmp := filepath.Join(s.root, "."+entry.AgentID+".tmp")
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write registry entry %s: %w", entry.AgentID, fault.ErrIO)
	}
	if err := os.Rename(tmp, s.path(entry.AgentID)); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to persist registry entry %s: %w", entry.AgentID, fault.ErrIO)
	}
	return nil
}

// Ensure Store implements the interface.
var _ secondary.RegistryStore = (*Store)(nil)
