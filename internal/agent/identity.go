package agent

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"gopkg.in/yaml.v3"
)

// EnvAgent is the environment variable a spawned worker reads to learn
// which agent it is acting as.
const EnvAgent = "GUILD_AGENT"

// EnvCapabilities carries the agent's declared capabilities to the worker
// process as a comma-separated list.
const EnvCapabilities = "GUILD_CAPABILITIES"

// OperatorID is the identity used when no agent identity is set. Commands
// run by a human at the terminal send mail as the operator.
const OperatorID = "operator"

// ManifestFileName is the capability manifest expected at the root of every
// agent workspace.
const ManifestFileName = "manifest.yaml"

// BriefFileName is the agent brief expected at the root of every agent
// workspace.
const BriefFileName = "AGENT.md"

var validID = regexp.MustCompile(`^[a-z0-9][a-z0-9-]*$`)

// Current returns the identity of the calling process: $GUILD_AGENT if set,
// otherwise the operator identity.
func Current() string {
	if id := os.Getenv(EnvAgent); id != "" {
		return id
	}
	return OperatorID
}

// ValidID reports whether id is a well-formed agent identifier.
func ValidID(id string) bool {
	return validID.MatchString(id)
}

// Manifest is the parsed capability manifest of an agent workspace.
type Manifest struct {
	Capabilities []string `yaml:"capabilities"`
}

// LoadManifest reads and parses manifest.yaml from a workspace directory.
func LoadManifest(workspace string) (*Manifest, error) {
	data, err := os.ReadFile(filepath.Join(workspace, ManifestFileName))
	if err != nil {
		return nil, err
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse %s: %w", ManifestFileName, err)
	}
	return &m, nil
}
