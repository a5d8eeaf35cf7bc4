// Package contractfs contains the filesystem implementation of the contract
// store. Each contract is one versioned text file; mutations go through a
// per-contract mutex plus a compare-and-swap on the version field, persisted
// by write-temp-then-rename so readers never see a half-written record.
package contractfs

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

	"github.com/example/guild/internal/core/contract"
	"github.com/example/guild/internal/fault"
	"github.com/example/guild/internal/ports/secondary"
)

const fileExt = ".contract"

// Store implements secondary.ContractStore on a flat directory of
// <id>.contract files.
type Store struct {
	root  string
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewStore creates a contract store rooted at the given directory.
func NewStore(root string) *Store {
	return &Store{root: root, locks: make(map[string]*sync.Mutex)}
}

// lockFor returns the mutex serializing mutations for one key (a contract id
// for updates, a parent id for child allocation).
func (s *Store) lockFor(key string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.locks[key]
	if !ok {
		m = &sync.Mutex{}
		s.locks[key] = m
	}
	return m
}

func (s *Store) path(id string) string {
	return filepath.Join(s.root, id+fileExt)
}

// write persists a record atomically.
func (s *Store) write(rec *secondary.ContractRecord) error {
	if err := os.MkdirAll(s.root, 0o755); err != nil {
		return fmt.Errorf("failed to create contract dir: %w", fault.ErrIO)
	}
	tmp := filepath.Join(s.root, "."+rec.ID+".tmp")
	if err := os.WriteFile(tmp, encodeRecord(rec), 0o644); err != nil {
		return fmt.Errorf("failed to write contract %s: %w", rec.ID, fault.ErrIO)
	}
	if err := os.Rename(tmp, s.path(rec.ID)); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to persist contract %s: %w", rec.ID, fault.ErrIO)
	}
	return nil
}

// Create persists a new root contract.
func (s *Store) Create(ctx context.Context, rec *secondary.ContractRecord) error {
	return s.write(rec)
}

// CreateChild allocates the next sibling suffix under the parent and
// persists the child. Allocation and write happen under the parent's lock so
// two concurrent creates against the same parent never collide.
func (s *Store) CreateChild(ctx context.Context, rec *secondary.ContractRecord) (string, error) {
	lock := s.lockFor(rec.ParentID)
	lock.Lock()
	defer lock.Unlock()

	if _, err := s.GetByID(ctx, rec.ParentID); err != nil {
		if errors.Is(err, fault.ErrNotFound) {
			return "", fmt.Errorf("contract %s: %w", rec.ParentID, fault.ErrParentNotFound)
		}
		return "", err
	}

	siblings, err := s.Children(ctx, rec.ParentID)
	if err != nil {
		return "", err
	}
	ids := make([]string, len(siblings))
	for i, sib := range siblings {
		ids[i] = sib.ID
	}

	rec.ID = contract.ChildID(rec.ParentID, ids)
	if err := s.write(rec); err != nil {
		return "", err
	}
	return rec.ID, nil
}

// GetByID retrieves a contract by its id.
func (s *Store) GetByID(ctx context.Context, id string) (*secondary.ContractRecord, error) {
	data, err := os.ReadFile(s.path(id))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("contract %s: %w", id, fault.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read contract %s: %w", id, fault.ErrIO)
	}
	rec, err := decodeRecord(data)
	if err != nil {
		return nil, fmt.Errorf("contract %s is corrupt: %v: %w", id, err, fault.ErrIO)
	}
	return rec, nil
}

// List retrieves contracts matching the filters, ordered by id. Ordering by
// id groups a contract with its children (child ids extend the parent id).
func (s *Store) List(ctx context.Context, f secondary.ContractFilters) ([]*secondary.ContractRecord, error) {
	entries, err := os.ReadDir(s.root)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan contract dir: %w", fault.ErrIO)
	}

	var records []*secondary.ContractRecord
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, fileExt) || name[0] == '.' {
			continue
		}
		rec, err := s.GetByID(ctx, strings.TrimSuffix(name, fileExt))
		if err != nil {
			return nil, err
		}
		if f.Status != "" && rec.Status != f.Status {
			continue
		}
		records = append(records, rec)
	}

	sort.Slice(records, func(i, j int) bool { return records[i].ID < records[j].ID })
	return records, nil
}

// Children retrieves the direct children of a contract, ordered by id.
func (s *Store) Children(ctx context.Context, parentID string) ([]*secondary.ContractRecord, error) {
	all, err := s.List(ctx, secondary.ContractFilters{})
	if err != nil {
		return nil, err
	}
	var children []*secondary.ContractRecord
	for _, rec := range all {
		if rec.ParentID == parentID {
			children = append(children, rec)
		}
	}
	return children, nil
}

// Update replaces the record under the contract's lock if the stored version
// still equals expectedVersion. A stale caller gets a concurrent-modification
// error and must re-read before deciding whether to retry.
func (s *Store) Update(ctx context.Context, rec *secondary.ContractRecord, expectedVersion int) error {
	lock := s.lockFor(rec.ID)
	lock.Lock()
	defer lock.Unlock()

	current, err := s.GetByID(ctx, rec.ID)
	if err != nil {
		return err
	}
	if current.Version != expectedVersion {
		return fmt.Errorf("contract %s is at version %d, expected %d: %w",
			rec.ID, current.Version, expectedVersion, fault.ErrConcurrentModification)
	}

	rec.Version = expectedVersion + 1
	return s.write(rec)
}

// Ensure Store implements the interface.
var _ secondary.ContractStore = (*Store)(nil)
