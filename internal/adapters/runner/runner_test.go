package runner

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/guild/internal/fault"
	"github.com/example/guild/internal/ports/secondary"
)

func TestStartAndNaturalExit(t *testing.T) {
	ctx := context.Background()
	r := New()

	h, err := r.Start(ctx, secondary.SpawnSpec{
		AgentID:   "cto",
		Workspace: t.TempDir(),
		Command:   []string{"true"},
	})
	require.NoError(t, err)
	assert.Positive(t, h.PID())

	select {
	case <-h.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not exit")
	}

	exit := h.Exit()
	assert.Zero(t, exit.ExitCode)
	assert.NoError(t, exit.Err)
}

func TestStartAbnormalExit(t *testing.T) {
	ctx := context.Background()
	r := New()

	h, err := r.Start(ctx, secondary.SpawnSpec{
		AgentID:   "cto",
		Workspace: t.TempDir(),
		Command:   []string{"false"},
	})
	require.NoError(t, err)

	select {
	case <-h.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not exit")
	}

	exit := h.Exit()
	assert.Equal(t, 1, exit.ExitCode)
	assert.Error(t, exit.Err)
}

func TestStartSpawnFailure(t *testing.T) {
	ctx := context.Background()
	r := New()

	_, err := r.Start(ctx, secondary.SpawnSpec{
		AgentID:   "cto",
		Workspace: t.TempDir(),
		Command:   []string{"/no/such/binary"},
	})
	require.ErrorIs(t, err, fault.ErrProcessSpawnFailed)

	_, err = r.Start(ctx, secondary.SpawnSpec{AgentID: "cto"})
	require.ErrorIs(t, err, fault.ErrProcessSpawnFailed)
}

func TestTerminateEndsWorker(t *testing.T) {
	ctx := context.Background()
	r := New()

	h, err := r.Start(ctx, secondary.SpawnSpec{
		AgentID:   "cto",
		Workspace: t.TempDir(),
		Command:   []string{"sleep", "60"},
	})
	require.NoError(t, err)

	require.NoError(t, h.Terminate(ctx))

	select {
	case <-h.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not exit after terminate")
	}
	assert.Error(t, h.Exit().Err, "termination by signal is not a clean exit")
}
