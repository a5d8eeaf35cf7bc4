// Package config resolves the guild home directory and loads the runtime
// configuration: config.yaml under the home, then GUILD_* environment
// overrides on top.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Subdirectories of the guild home.
const (
	MailboxesDirName = "mailboxes"
	ContractsDirName = "contracts"
	RegistryDirName  = "registry"
	ConfigFileName   = "config.yaml"
)

// Config is the runtime configuration of the coordination substrate.
type Config struct {
	Home          string   `yaml:"-" ignored:"true"`
	PollInterval  Duration `yaml:"poll_interval" envconfig:"POLL_INTERVAL"`
	GracePeriod   Duration `yaml:"grace_period" envconfig:"GRACE_PERIOD"`
	SpawnRetries  int      `yaml:"spawn_retries" envconfig:"SPAWN_RETRIES"`
	SpawnBackoff  Duration `yaml:"spawn_backoff" envconfig:"SPAWN_BACKOFF"`
	WorkerCommand []string `yaml:"worker_command" envconfig:"WORKER_COMMAND"`
	LogLevel      string   `yaml:"log_level" envconfig:"LOG_LEVEL"`
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		PollInterval:  Duration(2 * time.Second),
		GracePeriod:   Duration(10 * time.Second),
		SpawnRetries:  3,
		SpawnBackoff:  Duration(500 * time.Millisecond),
		WorkerCommand: []string{"guild-worker"},
		LogLevel:      "info",
	}
}

// ResolveHome returns the guild home directory: $GUILD_HOME if set,
// otherwise ~/.guild.
func ResolveHome() (string, error) {
	if home := os.Getenv("GUILD_HOME"); home != "" {
		return home, nil
	}
	userHome, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve home directory: %w", err)
	}
	return filepath.Join(userHome, ".guild"), nil
}

// Load reads config.yaml under the given home (if present) and applies
// GUILD_* environment overrides.
func Load(home string) (*Config, error) {
	cfg := Defaults()
	cfg.Home = home

	data, err := os.ReadFile(filepath.Join(home, ConfigFileName))
	switch {
	case errors.Is(err, fs.ErrNotExist):
		// defaults apply
	case err != nil:
		return nil, fmt.Errorf("failed to read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	if err := envconfig.Process("guild", &cfg); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}
	return &cfg, nil
}

// Save writes config.yaml under the home. Used by guild init.
func Save(home string, cfg *Config) error {
	if err := os.MkdirAll(home, 0o755); err != nil {
		return fmt.Errorf("failed to create guild home: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := os.WriteFile(filepath.Join(home, ConfigFileName), data, 0o644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// MailboxesDir returns the mailbox root under the home.
func (c *Config) MailboxesDir() string { return filepath.Join(c.Home, MailboxesDirName) }

// ContractsDir returns the contract store root under the home.
func (c *Config) ContractsDir() string { return filepath.Join(c.Home, ContractsDirName) }

// RegistryDir returns the registry root under the home.
func (c *Config) RegistryDir() string { return filepath.Join(c.Home, RegistryDirName) }

// Duration is a time.Duration that round-trips through YAML and environment
// variables in "2s" / "500ms" notation.
type Duration time.Duration

// Std returns the standard library duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) String() string { return time.Duration(d).String() }

// UnmarshalYAML accepts either a duration string or integer seconds.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		var secs int
		if err := value.Decode(&secs); err != nil {
			return fmt.Errorf("invalid duration %q", value.Value)
		}
		*d = Duration(time.Duration(secs) * time.Second)
		return nil
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML renders the duration as a string.
func (d Duration) MarshalYAML() (any, error) { return d.String(), nil }

// UnmarshalText supports envconfig overrides.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	*d = Duration(parsed)
	return nil
}
