package app

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	corecontract "github.com/example/guild/internal/core/contract"
	"github.com/example/guild/internal/fault"
	"github.com/example/guild/internal/ports/primary"
	"github.com/example/guild/internal/ports/secondary"
)

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

// ============================================================================
// Mock Implementations
// ============================================================================

// mockMailboxStore implements secondary.MailboxStore for testing.
type mockMailboxStore struct {
	mu         sync.Mutex
	mailboxes  map[string][]*secondary.MessageRecord
	deliverErr error
	existsErr  error
}

func newMockMailboxStore(owners ...string) *mockMailboxStore {
	m := &mockMailboxStore{mailboxes: make(map[string][]*secondary.MessageRecord)}
	for _, o := range owners {
		m.mailboxes[o] = nil
	}
	return m
}

func (m *mockMailboxStore) Exists(ctx context.Context, agentID string) (bool, error) {
	if m.existsErr != nil {
		return false, m.existsErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.mailboxes[agentID]
	return ok, nil
}

func (m *mockMailboxStore) Create(ctx context.Context, agentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.mailboxes[agentID]; !ok {
		m.mailboxes[agentID] = nil
	}
	return nil
}

func (m *mockMailboxStore) Deliver(ctx context.Context, agentID string, rec *secondary.MessageRecord) error {
	if m.deliverErr != nil {
		return m.deliverErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.mailboxes[agentID]; !ok {
		return fmt.Errorf("%w: %s", fault.ErrUnknownRecipient, agentID)
	}
	cp := *rec
	m.mailboxes[agentID] = append(m.mailboxes[agentID], &cp)
	return nil
}

func (m *mockMailboxStore) List(ctx context.Context, agentID string, f secondary.MessageFilters) ([]*secondary.MessageSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*secondary.MessageSummary
	for _, rec := range m.mailboxes[agentID] {
		if f.UnreadOnly && rec.Read {
			continue
		}
		if f.Type != "" && rec.Type != f.Type {
			continue
		}
		out = append(out, &secondary.MessageSummary{
			ID:        rec.ID,
			Sender:    rec.Sender,
			Type:      rec.Type,
			Priority:  rec.Priority,
			Subject:   rec.Subject,
			Timestamp: rec.Timestamp,
			Read:      rec.Read,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *mockMailboxStore) Get(ctx context.Context, agentID, messageID string) (*secondary.MessageRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, rec := range m.mailboxes[agentID] {
		if rec.ID == messageID {
			cp := *rec
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("%w: message %s", fault.ErrNotFound, messageID)
}

func (m *mockMailboxStore) CommitRead(ctx context.Context, agentID, messageID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, rec := range m.mailboxes[agentID] {
		if rec.ID == messageID {
			if rec.Read {
				return fmt.Errorf("%w: message %s", fault.ErrNotFound, messageID)
			}
			rec.Read = true
			return nil
		}
	}
	return fmt.Errorf("%w: message %s", fault.ErrNotFound, messageID)
}

func (m *mockMailboxStore) UnreadCount(ctx context.Context, agentID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.mailboxes[agentID]; !ok {
		return 0, fmt.Errorf("%w: %s", fault.ErrUnknownRecipient, agentID)
	}
	n := 0
	for _, rec := range m.mailboxes[agentID] {
		if !rec.Read {
			n++
		}
	}
	return n, nil
}

func (m *mockMailboxStore) Owners(ctx context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.mailboxes))
	for o := range m.mailboxes {
		out = append(out, o)
	}
	sort.Strings(out)
	return out, nil
}

// mockContractStore implements secondary.ContractStore for testing.
type mockContractStore struct {
	mu        sync.Mutex
	contracts map[string]*secondary.ContractRecord
	updateErr error
}

func newMockContractStore() *mockContractStore {
	return &mockContractStore{contracts: make(map[string]*secondary.ContractRecord)}
}

func (m *mockContractStore) Create(ctx context.Context, rec *secondary.ContractRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *rec
	m.contracts[rec.ID] = &cp
	return nil
}

func (m *mockContractStore) CreateChild(ctx context.Context, rec *secondary.ContractRecord) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.contracts[rec.ParentID]; !ok {
		return "", fmt.Errorf("%w: %s", fault.ErrParentNotFound, rec.ParentID)
	}
	var siblings []string
	for id := range m.contracts {
		siblings = append(siblings, id)
	}
	id := corecontract.ChildID(rec.ParentID, siblings)
	cp := *rec
	cp.ID = id
	m.contracts[id] = &cp
	return id, nil
}

func (m *mockContractStore) GetByID(ctx context.Context, id string) (*secondary.ContractRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.contracts[id]
	if !ok {
		return nil, fmt.Errorf("%w: contract %s", fault.ErrNotFound, id)
	}
	cp := *rec
	return &cp, nil
}

func (m *mockContractStore) List(ctx context.Context, f secondary.ContractFilters) ([]*secondary.ContractRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*secondary.ContractRecord
	for _, rec := range m.contracts {
		if f.Status != "" && rec.Status != f.Status {
			continue
		}
		cp := *rec
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *mockContractStore) Children(ctx context.Context, parentID string) ([]*secondary.ContractRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*secondary.ContractRecord
	for _, rec := range m.contracts {
		if rec.ParentID == parentID {
			cp := *rec
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *mockContractStore) Update(ctx context.Context, rec *secondary.ContractRecord, expectedVersion int) error {
	if m.updateErr != nil {
		return m.updateErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.contracts[rec.ID]
	if !ok {
		return fmt.Errorf("%w: contract %s", fault.ErrNotFound, rec.ID)
	}
	if current.Version != expectedVersion {
		return fmt.Errorf("%w: contract %s", fault.ErrConcurrentModification, rec.ID)
	}
	cp := *rec
	cp.Version = expectedVersion + 1
	m.contracts[rec.ID] = &cp
	return nil
}

// mockRegistryStore implements secondary.RegistryStore for testing.
type mockRegistryStore struct {
	mu      sync.Mutex
	entries map[string]*secondary.RegistryEntry
}

func newMockRegistryStore(entries ...*secondary.RegistryEntry) *mockRegistryStore {
	m := &mockRegistryStore{entries: make(map[string]*secondary.RegistryEntry)}
	for _, e := range entries {
		cp := *e
		if cp.ProcessState == "" {
			cp.ProcessState = primary.ProcessStopped
		}
		m.entries[e.AgentID] = &cp
	}
	return m
}

func (m *mockRegistryStore) Get(ctx context.Context, agentID string) (*secondary.RegistryEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.entries[agentID]
	if !ok {
		return nil, fmt.Errorf("%w: agent %s", fault.ErrNotFound, agentID)
	}
	cp := *entry
	return &cp, nil
}

func (m *mockRegistryStore) List(ctx context.Context) ([]*secondary.RegistryEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*secondary.RegistryEntry
	for _, entry := range m.entries {
		cp := *entry
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AgentID < out[j].AgentID })
	return out, nil
}

func (m *mockRegistryStore) Put(ctx context.Context, entry *secondary.RegistryEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *entry
	m.entries[entry.AgentID] = &cp
	return nil
}

func (m *mockRegistryStore) SetProcessState(ctx context.Context, agentID, state string, pid int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.entries[agentID]
	if !ok {
		return fmt.Errorf("%w: agent %s", fault.ErrNotFound, agentID)
	}
	entry.ProcessState = state
	entry.PID = pid
	return nil
}

func (m *mockRegistryStore) Delete(ctx context.Context, agentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entries[agentID]; !ok {
		return fmt.Errorf("%w: agent %s", fault.ErrNotFound, agentID)
	}
	delete(m.entries, agentID)
	return nil
}

func (m *mockRegistryStore) state(agentID string) (string, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.entries[agentID]
	if !ok {
		return "", 0
	}
	return entry.ProcessState, entry.PID
}

// mockHandle implements secondary.ProcessHandle for testing.
type mockHandle struct {
	pid       int
	done      chan struct{}
	exit      secondary.ExitResult
	closeOnce sync.Once

	mu         sync.Mutex
	wakes      int
	terminates int
	kills      int
	killExits  bool
}

func newMockHandle(pid int) *mockHandle {
	return &mockHandle{pid: pid, done: make(chan struct{})}
}

func (h *mockHandle) finish(res secondary.ExitResult) {
	h.closeOnce.Do(func() {
		h.exit = res
		close(h.done)
	})
}

func (h *mockHandle) PID() int { return h.pid }

func (h *mockHandle) Wake(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.wakes++
	return nil
}

func (h *mockHandle) Terminate(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.terminates++
	return nil
}

func (h *mockHandle) Kill(ctx context.Context) error {
	h.mu.Lock()
	h.kills++
	killExits := h.killExits
	h.mu.Unlock()
	if killExits {
		h.finish(secondary.ExitResult{ExitCode: -1})
	}
	return nil
}

func (h *mockHandle) Done() <-chan struct{}      { return h.done }
func (h *mockHandle) Exit() secondary.ExitResult { return h.exit }

func (h *mockHandle) wakeCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.wakes
}

// mockRunner implements secondary.ProcessRunner for testing.
type mockRunner struct {
	mu       sync.Mutex
	starts   int
	failures int // number of leading Start calls that fail
	handles  []*mockHandle
	specs    []secondary.SpawnSpec
	nextPID  int
}

func newMockRunner() *mockRunner {
	return &mockRunner{nextPID: 1000}
}

func (r *mockRunner) Start(ctx context.Context, spec secondary.SpawnSpec) (secondary.ProcessHandle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.starts++
	if r.starts <= r.failures {
		return nil, fmt.Errorf("%w: simulated", fault.ErrProcessSpawnFailed)
	}
	r.nextPID++
	h := newMockHandle(r.nextPID)
	r.handles = append(r.handles, h)
	r.specs = append(r.specs, spec)
	return h, nil
}

func (r *mockRunner) startCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.starts
}

func (r *mockRunner) lastHandle() *mockHandle {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.handles) == 0 {
		return nil
	}
	return r.handles[len(r.handles)-1]
}

func (r *mockRunner) lastSpec() secondary.SpawnSpec {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.specs) == 0 {
		return secondary.SpawnSpec{}
	}
	return r.specs[len(r.specs)-1]
}

// mockScaffolder implements secondary.WorkspaceScaffolder for testing.
type mockScaffolder struct {
	mu        sync.Mutex
	scaffolds []string // workspace paths created
	removals  []string // workspace paths removed
}

func (m *mockScaffolder) Scaffold(ctx context.Context, workspace, agentID, role string, capabilities []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scaffolds = append(m.scaffolds, workspace)
	return nil
}

func (m *mockScaffolder) Exists(ctx context.Context, path string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ws := range m.removals {
		if ws == path {
			return false, nil
		}
	}
	for _, ws := range m.scaffolds {
		if ws == path {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockScaffolder) Remove(ctx context.Context, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removals = append(m.removals, path)
	return nil
}

func (m *mockScaffolder) removed(path string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ws := range m.removals {
		if ws == path {
			return true
		}
	}
	return false
}

// mockMailService implements primary.MailService for testing services that
// send notifications.
type mockMailService struct {
	mu      sync.Mutex
	sent    []primary.SendRequest
	sendErr error
}

func (m *mockMailService) Send(ctx context.Context, req primary.SendRequest) (string, error) {
	if m.sendErr != nil {
		return "", m.sendErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, req)
	return fmt.Sprintf("msg-%d", len(m.sent)), nil
}

func (m *mockMailService) Inbox(ctx context.Context, agentID string, f primary.InboxFilters) ([]*primary.MessageSummary, error) {
	return nil, nil
}

func (m *mockMailService) Read(ctx context.Context, agentID, messageID string, peek bool) (*primary.Message, error) {
	return nil, fmt.Errorf("%w: message %s", fault.ErrNotFound, messageID)
}

func (m *mockMailService) UnreadCount(ctx context.Context, agentID string) (int, error) {
	return 0, nil
}

func (m *mockMailService) sentTo(agentID string) []primary.SendRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []primary.SendRequest
	for _, req := range m.sent {
		if req.To == agentID {
			out = append(out, req)
		}
	}
	return out
}

func containsString(haystack []string, needle string) bool {
	for _, s := range haystack {
		if strings.Contains(s, needle) {
			return true
		}
	}
	return false
}
