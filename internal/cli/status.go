package cli

import (
	"os"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/example/guild/internal/ports/primary"
	"github.com/example/guild/internal/wire"
)

// StatusCmd returns the status command
func StatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show all agents with process and mailbox state",
		RunE: func(cmd *cobra.Command, args []string) error {
			statuses, err := wire.Orchestrator().Status(cmd.Context())
			if err != nil {
				return renderError(err)
			}

			tw := table.NewWriter()
			tw.SetOutputMirror(os.Stdout)
			tw.AppendHeader(table.Row{"Agent", "Role", "State", "PID", "Unread"})
			for _, st := range statuses {
				pid := ""
				if st.PID != 0 {
					pid = color.New(color.FgCyan).Sprintf("%d", st.PID)
				}
				tw.AppendRow(table.Row{st.AgentID, st.Role, renderState(st.ProcessState), pid, st.UnreadCount})
			}
			tw.Render()
			return nil
		},
	}
}

func renderState(state string) string {
	switch state {
	case primary.ProcessRunning:
		return color.New(color.FgGreen).Sprint(state)
	case primary.ProcessStarting:
		return color.New(color.FgYellow).Sprint(state)
	default:
		return state
	}
}
