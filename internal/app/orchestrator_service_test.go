package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/example/guild/internal/fault"
	"github.com/example/guild/internal/ports/primary"
	"github.com/example/guild/internal/ports/secondary"
)

func testWorkspace(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	manifest := "capabilities:\n  - code\n  - review\n"
	if err := os.WriteFile(filepath.Join(dir, "manifest.yaml"), []byte(manifest), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "AGENT.md"), []byte("# forge-1\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	return dir
}

func testOrchestrator(t *testing.T, opts OrchestratorOptions) (*OrchestratorServiceImpl, *mockRegistryStore, *mockRunner, string) {
	t.Helper()
	ws := testWorkspace(t)
	registry := newMockRegistryStore(&secondary.RegistryEntry{
		AgentID:   "forge-1",
		Role:      "builder",
		Model:     "large",
		Workspace: ws,
	})
	mailboxes := newMockMailboxStore("forge-1")
	runner := newMockRunner()
	svc := NewOrchestratorService(registry, mailboxes, runner, runner, opts, testLogger())
	return svc, registry, runner, ws
}

func waitForState(t *testing.T, registry *mockRegistryStore, agentID, want string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if state, _ := registry.state(agentID); state == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	state, _ := registry.state(agentID)
	t.Fatalf("agent %s state = %s, want %s", agentID, state, want)
}

func TestStartSpawnsWorker(t *testing.T) {
	svc, registry, runner, ws := testOrchestrator(t, OrchestratorOptions{
		WorkerCommand: []string{"worker", "--agent", "{agent}", "--dir", "{workspace}", "--model", "{model}"},
	})
	ctx := context.Background()

	proc, err := svc.Start(ctx, "forge-1")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if proc.State != primary.ProcessRunning || proc.PID == 0 {
		t.Errorf("proc = %+v", proc)
	}

	state, pid := registry.state("forge-1")
	if state != primary.ProcessRunning || pid != proc.PID {
		t.Errorf("registry = %s/%d, want running/%d", state, pid, proc.PID)
	}

	spec := runner.lastSpec()
	want := []string{"worker", "--agent", "forge-1", "--dir", ws, "--model", "large"}
	if len(spec.Command) != len(want) {
		t.Fatalf("command = %v", spec.Command)
	}
	for i := range want {
		if spec.Command[i] != want[i] {
			t.Errorf("command[%d] = %s, want %s", i, spec.Command[i], want[i])
		}
	}
	if !containsString(spec.Env, "GUILD_AGENT=forge-1") {
		t.Errorf("env missing agent identity: %v", spec.Env)
	}
	if !containsString(spec.Env, "GUILD_CAPABILITIES=code,review") {
		t.Errorf("env missing capabilities: %v", spec.Env)
	}
}

func TestStartRejectsIncompleteWorkspace(t *testing.T) {
	ws := t.TempDir() // no manifest, no brief
	registry := newMockRegistryStore(&secondary.RegistryEntry{AgentID: "bare", Workspace: ws})
	runner := newMockRunner()
	svc := NewOrchestratorService(registry, newMockMailboxStore(), runner, runner, OrchestratorOptions{}, testLogger())

	_, err := svc.Start(context.Background(), "bare")
	if !errors.Is(err, fault.ErrWorkspaceIncomplete) {
		t.Fatalf("expected ErrWorkspaceIncomplete, got %v", err)
	}
	var we *fault.WorkspaceError
	if !errors.As(err, &we) {
		t.Fatalf("expected *fault.WorkspaceError, got %T", err)
	}
	for _, item := range []string{"manifest.yaml", "AGENT.md", "mailbox"} {
		if !containsString(we.Missing, item) {
			t.Errorf("missing list lacks %s: %v", item, we.Missing)
		}
	}
	if runner.startCount() != 0 {
		t.Error("spawn attempted despite incomplete workspace")
	}
}

func TestStartAlreadyRunning(t *testing.T) {
	svc, _, _, _ := testOrchestrator(t, OrchestratorOptions{})
	ctx := context.Background()

	if _, err := svc.Start(ctx, "forge-1"); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Start(ctx, "forge-1"); err == nil {
		t.Fatal("second Start should fail while the first activation lives")
	}
}

func TestStartRetriesSpawn(t *testing.T) {
	svc, _, runner, _ := testOrchestrator(t, OrchestratorOptions{
		SpawnRetries: 3,
		SpawnBackoff: time.Millisecond,
	})
	runner.failures = 2

	if _, err := svc.Start(context.Background(), "forge-1"); err != nil {
		t.Fatalf("Start after retries: %v", err)
	}
	if runner.startCount() != 3 {
		t.Errorf("start attempts = %d, want 3", runner.startCount())
	}
}

func TestStartRetriesExhausted(t *testing.T) {
	svc, registry, runner, _ := testOrchestrator(t, OrchestratorOptions{
		SpawnRetries: 2,
		SpawnBackoff: time.Millisecond,
	})
	runner.failures = 5

	_, err := svc.Start(context.Background(), "forge-1")
	if !errors.Is(err, fault.ErrProcessSpawnFailed) {
		t.Fatalf("expected ErrProcessSpawnFailed, got %v", err)
	}
	if runner.startCount() != 2 {
		t.Errorf("start attempts = %d, want 2", runner.startCount())
	}
	state, _ := registry.state("forge-1")
	if state != primary.ProcessStopped {
		t.Errorf("registry state after failure = %s, want stopped", state)
	}
}

func TestNaturalExitReturnsToStopped(t *testing.T) {
	svc, registry, runner, _ := testOrchestrator(t, OrchestratorOptions{})
	ctx := context.Background()

	if _, err := svc.Start(ctx, "forge-1"); err != nil {
		t.Fatal(err)
	}
	runner.lastHandle().finish(secondary.ExitResult{ExitCode: 0})

	waitForState(t, registry, "forge-1", primary.ProcessStopped)
	_, pid := registry.state("forge-1")
	if pid != 0 {
		t.Errorf("pid after exit = %d, want 0", pid)
	}

	// a fresh activation is possible after the old one ended
	if _, err := svc.Start(ctx, "forge-1"); err != nil {
		t.Fatalf("restart after natural exit: %v", err)
	}
}

func TestStaleReapLeavesNewActivationAlone(t *testing.T) {
	svc, registry, runner, _ := testOrchestrator(t, OrchestratorOptions{})
	ctx := context.Background()

	if _, err := svc.Start(ctx, "forge-1"); err != nil {
		t.Fatal(err)
	}
	h1 := runner.lastHandle()
	h1.finish(secondary.ExitResult{ExitCode: 0})
	waitForState(t, registry, "forge-1", primary.ProcessStopped)

	if err := svc.Dispatch(ctx, "forge-1"); err != nil {
		t.Fatal(err)
	}
	if runner.startCount() != 2 {
		t.Fatalf("starts = %d, want 2", runner.startCount())
	}

	// a delayed reap of the first activation fires after the second one is
	// already running; it must not clear the new handle or mark the agent
	// stopped while its worker is alive
	svc.reap("forge-1", h1)

	state, _ := registry.state("forge-1")
	if state != primary.ProcessRunning {
		t.Errorf("state after stale reap = %s, want running", state)
	}
	if err := svc.Dispatch(ctx, "forge-1"); err != nil {
		t.Fatal(err)
	}
	if runner.startCount() != 2 {
		t.Errorf("starts = %d, want 2 (only one live worker per agent)", runner.startCount())
	}
	if runner.lastHandle().wakeCount() != 1 {
		t.Errorf("wakes = %d, want 1", runner.lastHandle().wakeCount())
	}
}

func TestDispatchStartsStoppedAgent(t *testing.T) {
	svc, registry, runner, _ := testOrchestrator(t, OrchestratorOptions{})
	ctx := context.Background()

	if err := svc.Dispatch(ctx, "forge-1"); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if runner.startCount() != 1 {
		t.Errorf("starts = %d, want 1", runner.startCount())
	}
	state, _ := registry.state("forge-1")
	if state != primary.ProcessRunning {
		t.Errorf("state = %s", state)
	}
}

func TestDispatchWakesRunningAgent(t *testing.T) {
	svc, _, runner, _ := testOrchestrator(t, OrchestratorOptions{})
	ctx := context.Background()

	if err := svc.Dispatch(ctx, "forge-1"); err != nil {
		t.Fatal(err)
	}
	if err := svc.Dispatch(ctx, "forge-1"); err != nil {
		t.Fatal(err)
	}
	if runner.startCount() != 1 {
		t.Errorf("starts = %d, want 1", runner.startCount())
	}
	if runner.lastHandle().wakeCount() != 1 {
		t.Errorf("wakes = %d, want 1", runner.lastHandle().wakeCount())
	}
}

func TestDispatchIdempotentUnderConcurrency(t *testing.T) {
	svc, _, runner, _ := testOrchestrator(t, OrchestratorOptions{})
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = svc.Dispatch(ctx, "forge-1")
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Errorf("dispatch %d: %v", i, err)
		}
	}
	if runner.startCount() != 1 {
		t.Errorf("starts = %d, want exactly 1", runner.startCount())
	}
}

func TestStopGraceful(t *testing.T) {
	svc, registry, runner, _ := testOrchestrator(t, OrchestratorOptions{GracePeriod: time.Second})
	ctx := context.Background()

	if _, err := svc.Start(ctx, "forge-1"); err != nil {
		t.Fatal(err)
	}
	h := runner.lastHandle()
	go func() {
		time.Sleep(20 * time.Millisecond)
		h.finish(secondary.ExitResult{ExitCode: 0})
	}()

	if err := svc.Stop(ctx, "forge-1", false); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if h.terminates != 1 {
		t.Errorf("terminates = %d, want 1", h.terminates)
	}
	waitForState(t, registry, "forge-1", primary.ProcessStopped)
}

func TestStopGracePeriodElapsedWithoutForce(t *testing.T) {
	svc, _, runner, _ := testOrchestrator(t, OrchestratorOptions{GracePeriod: 20 * time.Millisecond})
	ctx := context.Background()

	if _, err := svc.Start(ctx, "forge-1"); err != nil {
		t.Fatal(err)
	}

	if err := svc.Stop(ctx, "forge-1", false); err == nil {
		t.Fatal("Stop without force should report an elapsed grace period")
	}
	if runner.lastHandle().kills != 0 {
		t.Error("Stop without force must not kill")
	}
}

func TestStopForceEscalates(t *testing.T) {
	svc, registry, runner, _ := testOrchestrator(t, OrchestratorOptions{GracePeriod: 20 * time.Millisecond})
	ctx := context.Background()

	if _, err := svc.Start(ctx, "forge-1"); err != nil {
		t.Fatal(err)
	}
	runner.lastHandle().killExits = true

	if err := svc.Stop(ctx, "forge-1", true); err != nil {
		t.Fatalf("forced Stop: %v", err)
	}
	if runner.lastHandle().kills != 1 {
		t.Errorf("kills = %d, want 1", runner.lastHandle().kills)
	}
	waitForState(t, registry, "forge-1", primary.ProcessStopped)
}

func TestStopNotRunning(t *testing.T) {
	svc, _, _, _ := testOrchestrator(t, OrchestratorOptions{})
	if err := svc.Stop(context.Background(), "forge-1", false); err != nil {
		t.Fatalf("Stop of a stopped agent should be a no-op, got %v", err)
	}
}

func TestStatusAggregation(t *testing.T) {
	ws := testWorkspace(t)
	registry := newMockRegistryStore(
		&secondary.RegistryEntry{AgentID: "forge-1", Role: "builder", Workspace: ws},
		&secondary.RegistryEntry{AgentID: "scout", Role: "researcher", Workspace: ws},
	)
	mailboxes := newMockMailboxStore("forge-1", "scout")
	runner := newMockRunner()
	svc := NewOrchestratorService(registry, mailboxes, runner, runner, OrchestratorOptions{}, testLogger())
	ctx := context.Background()

	if err := mailboxes.Deliver(ctx, "scout", &secondary.MessageRecord{ID: "m1", Type: "directive"}); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Start(ctx, "forge-1"); err != nil {
		t.Fatal(err)
	}

	statuses, err := svc.Status(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(statuses) != 2 {
		t.Fatalf("rows = %d", len(statuses))
	}
	forge, scout := statuses[0], statuses[1]
	if forge.AgentID != "forge-1" || forge.ProcessState != primary.ProcessRunning || forge.PID == 0 {
		t.Errorf("forge row = %+v", forge)
	}
	if scout.ProcessState != primary.ProcessStopped || scout.UnreadCount != 1 {
		t.Errorf("scout row = %+v", scout)
	}
}
