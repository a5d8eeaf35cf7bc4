// Package filesystem contains filesystem-based adapter implementations.
package filesystem

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/example/guild/internal/agent"
)

// WorkspaceScaffolder creates agent workspace directories with the files an
// agent needs before it can be started.
type WorkspaceScaffolder struct{}

// NewWorkspaceScaffolder creates a new workspace scaffolder.
func NewWorkspaceScaffolder() *WorkspaceScaffolder {
	return &WorkspaceScaffolder{}
}

// Scaffold creates the workspace directory, a capability manifest, and an
// agent brief. Existing files are kept untouched so re-scaffolding an agent
// never destroys hand-edited content.
func (s *WorkspaceScaffolder) Scaffold(ctx context.Context, workspace, agentID, role string, capabilities []string) error {
	if workspace == "" {
		return fmt.Errorf("workspace path is required")
	}
	if err := os.MkdirAll(workspace, 0o755); err != nil {
		return fmt.Errorf("failed to create workspace: %w", err)
	}

	manifestPath := filepath.Join(workspace, agent.ManifestFileName)
	if _, err := os.Stat(manifestPath); os.IsNotExist(err) {
		data, err := yaml.Marshal(agent.Manifest{Capabilities: capabilities})
		if err != nil {
			return fmt.Errorf("failed to encode manifest: %w", err)
		}
		if err := os.WriteFile(manifestPath, data, 0o644); err != nil {
			return fmt.Errorf("failed to write manifest: %w", err)
		}
	}

	briefPath := filepath.Join(workspace, agent.BriefFileName)
	if _, err := os.Stat(briefPath); os.IsNotExist(err) {
		brief := fmt.Sprintf("# %s\n\nRole: %s\n\nDescribe this agent's standing instructions here.\n", agentID, role)
		if err := os.WriteFile(briefPath, []byte(brief), 0o644); err != nil {
			return fmt.Errorf("failed to write brief: %w", err)
		}
	}

	return nil
}

// Exists checks whether a directory exists at the given path.
func (s *WorkspaceScaffolder) Exists(ctx context.Context, path string) (bool, error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if !info.IsDir() {
		return false, fmt.Errorf("path exists but is not a directory: %s", path)
	}
	return true, nil
}

// Remove deletes a workspace directory and everything in it.
func (s *WorkspaceScaffolder) Remove(ctx context.Context, path string) error {
	if err := os.RemoveAll(path); err != nil {
		return fmt.Errorf("failed to remove workspace: %w", err)
	}
	return nil
}
