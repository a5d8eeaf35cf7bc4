package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/example/guild/internal/ports/primary"
	"github.com/example/guild/internal/wire"
)

// AgentCmd returns the agent command
func AgentCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "agent",
		Short: "Manage agents and their worker processes",
	}

	cmd.AddCommand(agentProvisionCmd())
	cmd.AddCommand(agentDecommissionCmd())
	cmd.AddCommand(agentListCmd())
	cmd.AddCommand(agentStartCmd())
	cmd.AddCommand(agentStopCmd())
	cmd.AddCommand(agentDispatchCmd())

	return cmd
}

func agentProvisionCmd() *cobra.Command {
	var role, department, reportsTo, model, workspace string
	var interactive, scaffold bool
	var capabilities []string

	cmd := &cobra.Command{
		Use:   "provision <agent-id>",
		Short: "Register a new agent",
		Long: `Register an agent and create its mailbox.

The workspace directory must contain manifest.yaml and AGENT.md before
the agent can be started; --scaffold creates both.

Examples:
  guild agent provision forge-1 --role builder --reports-to lead --workspace ~/agents/forge-1
  guild agent provision lead --role coordinator --workspace ~/agents/lead --interactive`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			a, err := wire.RegistryService().Provision(ctx, primary.ProvisionRequest{
				AgentID:      args[0],
				Role:         role,
				Department:   department,
				ReportsTo:    reportsTo,
				Model:        model,
				Workspace:    workspace,
				Interactive:  interactive,
				Scaffold:     scaffold,
				Capabilities: capabilities,
			})
			if err != nil {
				return renderError(err)
			}

			fmt.Printf("%s Provisioned agent %s\n", okMark, a.AgentID)
			fmt.Printf("  Role: %s\n", a.Role)
			fmt.Printf("  Workspace: %s\n", a.Workspace)
			return nil
		},
	}

	cmd.Flags().StringVar(&role, "role", "", "Agent role")
	cmd.Flags().StringVar(&department, "department", "", "Department")
	cmd.Flags().StringVar(&reportsTo, "reports-to", "", "Supervisor agent id")
	cmd.Flags().StringVar(&model, "model", "", "Model the worker should run")
	cmd.Flags().StringVar(&workspace, "workspace", "", "Agent workspace directory")
	cmd.Flags().BoolVar(&interactive, "interactive", false, "Run the worker inside a tmux session")
	cmd.Flags().BoolVar(&scaffold, "scaffold", false, "Create the workspace with a manifest and brief")
	cmd.Flags().StringArrayVar(&capabilities, "capability", nil, "Capability written to the scaffolded manifest (repeatable)")

	return cmd
}

func agentDecommissionCmd() *cobra.Command {
	var removeWorkspace bool

	cmd := &cobra.Command{
		Use:   "decommission <agent-id>",
		Short: "Remove an agent from the registry",
		Long: `Remove a stopped agent's registry entry.

The mailbox is kept so past correspondence stays readable. Pass
--remove-workspace to also delete the workspace directory.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := wire.RegistryService().Decommission(cmd.Context(), args[0], removeWorkspace); err != nil {
				return renderError(err)
			}
			fmt.Printf("%s Decommissioned agent %s\n", okMark, args[0])
			return nil
		},
	}

	cmd.Flags().BoolVar(&removeWorkspace, "remove-workspace", false, "Also delete the workspace directory")

	return cmd
}

func agentListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List registered agents",
		RunE: func(cmd *cobra.Command, args []string) error {
			agents, err := wire.RegistryService().List(cmd.Context())
			if err != nil {
				return renderError(err)
			}
			if len(agents) == 0 {
				fmt.Println("No agents registered")
				return nil
			}
			for _, a := range agents {
				fmt.Printf("%-16s %-14s %-10s", a.AgentID, a.Role, a.ProcessState)
				if a.ReportsTo != "" {
					fmt.Printf("  reports to %s", a.ReportsTo)
				}
				fmt.Println()
			}
			return nil
		},
	}
}

func agentStartCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "start <agent-id>",
		Short: "Start an agent's worker process",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			proc, err := wire.Orchestrator().Start(cmd.Context(), args[0])
			if err != nil {
				return renderError(err)
			}
			fmt.Printf("%s Started %s (pid %d)\n", okMark, proc.AgentID, proc.PID)
			return nil
		},
	}
}

func agentStopCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "stop <agent-id>",
		Short: "Stop an agent's worker process",
		Long: `Request a graceful shutdown and wait for the grace period.

Without --force, an agent that outlives the grace period is left running
and the command fails; rerun with --force to kill it.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := wire.Orchestrator().Stop(cmd.Context(), args[0], force); err != nil {
				return renderError(err)
			}
			fmt.Printf("%s Stopped %s\n", okMark, args[0])
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Kill the worker if it ignores the grace period")

	return cmd
}

func agentDispatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dispatch <agent-id>",
		Short: "Wake an agent to process its mailbox",
		Long: `Dispatch an agent: start it if stopped, wake it if running.

Dispatching is idempotent; repeated dispatches never spawn a second
worker for the same agent.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := wire.Orchestrator().Dispatch(cmd.Context(), args[0]); err != nil {
				return renderError(err)
			}
			fmt.Printf("%s Dispatched %s\n", okMark, args[0])
			return nil
		},
	}
}
