package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/example/guild/internal/agent"
	"github.com/example/guild/internal/config"
	"github.com/example/guild/internal/wire"
)

// InitCmd returns the init command
func InitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize the guild home directory",
		Long: `Create the guild home layout and a default configuration.

The home directory is $GUILD_HOME, or ~/.guild when unset. Running init
on an existing home is safe; present files are kept.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			home, err := config.ResolveHome()
			if err != nil {
				return err
			}

			for _, dir := range []string{
				home,
				filepath.Join(home, config.MailboxesDirName),
				filepath.Join(home, config.ContractsDirName),
				filepath.Join(home, config.RegistryDirName),
			} {
				if err := os.MkdirAll(dir, 0o755); err != nil {
					return fmt.Errorf("failed to create %s: %w", dir, err)
				}
			}
			fmt.Printf("%s Home layout ready at %s\n", okMark, home)

			cfgPath := filepath.Join(home, config.ConfigFileName)
			if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
				defaults := config.Defaults()
				if err := config.Save(home, &defaults); err != nil {
					return fmt.Errorf("failed to write config: %w", err)
				}
				fmt.Printf("%s Wrote default %s\n", okMark, config.ConfigFileName)
			} else {
				fmt.Printf("  %s already present, kept\n", config.ConfigFileName)
			}
			return nil
		},
	}
}

// DoctorCmd returns the doctor command
func DoctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check the guild installation and every agent's workspace",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg := wire.Config()
			problems := 0

			for _, dir := range []string{cfg.MailboxesDir(), cfg.ContractsDir(), cfg.RegistryDir()} {
				if _, err := os.Stat(dir); err != nil {
					fmt.Printf("%s %s missing (run guild init)\n", failMark, dir)
					problems++
				} else {
					fmt.Printf("%s %s\n", okMark, dir)
				}
			}

			agents, err := wire.RegistryService().List(ctx)
			if err != nil {
				return renderError(err)
			}
			for _, a := range agents {
				var missing []string
				if _, err := agent.LoadManifest(a.Workspace); err != nil {
					missing = append(missing, agent.ManifestFileName)
				}
				if _, err := os.Stat(filepath.Join(a.Workspace, agent.BriefFileName)); err != nil {
					missing = append(missing, agent.BriefFileName)
				}
				if len(missing) == 0 {
					fmt.Printf("%s agent %s workspace complete\n", okMark, a.AgentID)
				} else {
					fmt.Printf("%s agent %s missing %v in %s\n", warnMark, a.AgentID, missing, a.Workspace)
					problems++
				}
			}

			if problems > 0 {
				return fmt.Errorf("%d problem(s) found", problems)
			}
			fmt.Printf("%s All checks passed\n", okMark)
			return nil
		},
	}
}
