package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/example/guild/internal/cli"
	"github.com/example/guild/internal/version"
)

func main() {
	rootCmd := &cobra.Command{
		Use:     "guild",
		Short:   "guild - coordination substrate for agent teams",
		Version: version.String(),
		Long: `guild coordinates a team of autonomous agents through per-agent
mailboxes, task contracts, and supervised worker processes.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Add subcommands
	rootCmd.AddCommand(cli.InitCmd())
	rootCmd.AddCommand(cli.DoctorCmd())
	rootCmd.AddCommand(cli.MailCmd())
	rootCmd.AddCommand(cli.ContractCmd())
	rootCmd.AddCommand(cli.AgentCmd())
	rootCmd.AddCommand(cli.StatusCmd())
	rootCmd.AddCommand(cli.WatchCmd())

	if err := rootCmd.Execute(); err != nil {
		if !cli.IsRendered(err) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(1)
	}
}
