package secondary

import "context"

// WorkspaceScaffolder defines the secondary port for preparing agent
// workspace directories.
type WorkspaceScaffolder interface {
	// Scaffold creates the workspace with a capability manifest and an
	// agent brief. Files already present are left as they are.
	Scaffold(ctx context.Context, workspace, agentID, role string, capabilities []string) error

	// Exists reports whether a directory exists at the given path.
	Exists(ctx context.Context, path string) (bool, error)

	// Remove deletes a workspace directory.
	Remove(ctx context.Context, path string) error
}
