package app

import (
	"context"
	"errors"
	"testing"

	"github.com/example/guild/internal/fault"
	"github.com/example/guild/internal/ports/primary"
)

func TestProvisionCreatesMailbox(t *testing.T) {
	registry := newMockRegistryStore()
	mailboxes := newMockMailboxStore()
	svc := NewRegistryService(registry, mailboxes, &mockScaffolder{}, testLogger())
	ctx := context.Background()

	a, err := svc.Provision(ctx, primary.ProvisionRequest{
		AgentID:   "forge-1",
		Role:      "builder",
		ReportsTo: "lead",
		Model:     "large",
		Workspace: "/work/forge-1",
	})
	if err != nil {
		t.Fatalf("Provision: %v", err)
	}
	if a.ProcessState != primary.ProcessStopped {
		t.Errorf("new agent state = %s, want stopped", a.ProcessState)
	}

	ok, err := mailboxes.Exists(ctx, "forge-1")
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Error("provision did not create a mailbox")
	}

	got, err := svc.Get(ctx, "forge-1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Role != "builder" || got.Workspace != "/work/forge-1" {
		t.Errorf("entry = %+v", got)
	}
}

func TestProvisionScaffoldsWorkspace(t *testing.T) {
	scaffolder := &mockScaffolder{}
	svc := NewRegistryService(newMockRegistryStore(), newMockMailboxStore(), scaffolder, testLogger())

	_, err := svc.Provision(context.Background(), primary.ProvisionRequest{
		AgentID:      "forge-1",
		Role:         "builder",
		Workspace:    "/work/forge-1",
		Scaffold:     true,
		Capabilities: []string{"code"},
	})
	if err != nil {
		t.Fatalf("Provision: %v", err)
	}
	ok, _ := scaffolder.Exists(context.Background(), "/work/forge-1")
	if !ok {
		t.Error("workspace was not scaffolded")
	}
}

func TestProvisionRejectsBadInput(t *testing.T) {
	svc := NewRegistryService(newMockRegistryStore(), newMockMailboxStore(), &mockScaffolder{}, testLogger())
	ctx := context.Background()

	if _, err := svc.Provision(ctx, primary.ProvisionRequest{AgentID: "Bad Name", Workspace: "/w"}); err == nil {
		t.Error("expected error for invalid agent id")
	}
	if _, err := svc.Provision(ctx, primary.ProvisionRequest{AgentID: "ok"}); err == nil {
		t.Error("expected error for missing workspace")
	}
}

func TestDecommissionRemovesEntry(t *testing.T) {
	scaffolder := &mockScaffolder{}
	svc := NewRegistryService(newMockRegistryStore(), newMockMailboxStore(), scaffolder, testLogger())
	ctx := context.Background()

	if _, err := svc.Provision(ctx, primary.ProvisionRequest{
		AgentID: "forge-1", Role: "builder", Workspace: "/work/forge-1", Scaffold: true,
	}); err != nil {
		t.Fatal(err)
	}

	if err := svc.Decommission(ctx, "forge-1", false); err != nil {
		t.Fatalf("Decommission: %v", err)
	}
	if _, err := svc.Get(ctx, "forge-1"); !errors.Is(err, fault.ErrNotFound) {
		t.Fatalf("entry still present: %v", err)
	}
	if scaffolder.removed("/work/forge-1") {
		t.Error("workspace removed without removeWorkspace")
	}
}

func TestDecommissionRemovesWorkspace(t *testing.T) {
	scaffolder := &mockScaffolder{}
	svc := NewRegistryService(newMockRegistryStore(), newMockMailboxStore(), scaffolder, testLogger())
	ctx := context.Background()

	if _, err := svc.Provision(ctx, primary.ProvisionRequest{
		AgentID: "forge-1", Role: "builder", Workspace: "/work/forge-1", Scaffold: true,
	}); err != nil {
		t.Fatal(err)
	}

	if err := svc.Decommission(ctx, "forge-1", true); err != nil {
		t.Fatalf("Decommission: %v", err)
	}
	if !scaffolder.removed("/work/forge-1") {
		t.Error("workspace was not removed")
	}
}

func TestDecommissionRefusesRunningAgent(t *testing.T) {
	registry := newMockRegistryStore()
	svc := NewRegistryService(registry, newMockMailboxStore(), &mockScaffolder{}, testLogger())
	ctx := context.Background()

	if _, err := svc.Provision(ctx, primary.ProvisionRequest{AgentID: "forge-1", Workspace: "/w"}); err != nil {
		t.Fatal(err)
	}
	if err := registry.SetProcessState(ctx, "forge-1", primary.ProcessRunning, 4242); err != nil {
		t.Fatal(err)
	}

	if err := svc.Decommission(ctx, "forge-1", false); err == nil {
		t.Fatal("expected error for running agent")
	}
	if _, err := svc.Get(ctx, "forge-1"); err != nil {
		t.Fatalf("entry must survive a refused decommission: %v", err)
	}
}

func TestGetUnknownAgent(t *testing.T) {
	svc := NewRegistryService(newMockRegistryStore(), newMockMailboxStore(), &mockScaffolder{}, testLogger())
	_, err := svc.Get(context.Background(), "ghost")
	if !errors.Is(err, fault.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListOrderedByID(t *testing.T) {
	registry := newMockRegistryStore()
	svc := NewRegistryService(registry, newMockMailboxStore(), &mockScaffolder{}, testLogger())
	ctx := context.Background()

	for _, id := range []string{"scout", "forge-1", "lead"} {
		if _, err := svc.Provision(ctx, primary.ProvisionRequest{AgentID: id, Workspace: "/w/" + id}); err != nil {
			t.Fatal(err)
		}
	}

	agents, err := svc.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(agents) != 3 {
		t.Fatalf("len = %d", len(agents))
	}
	want := []string{"forge-1", "lead", "scout"}
	for i, a := range agents {
		if a.AgentID != want[i] {
			t.Errorf("agents[%d] = %s, want %s", i, a.AgentID, want[i])
		}
	}
}
