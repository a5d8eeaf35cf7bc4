package cli

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/example/guild/internal/agent"
	corecontract "github.com/example/guild/internal/core/contract"
	"github.com/example/guild/internal/ports/primary"
	"github.com/example/guild/internal/wire"
)

// ContractCmd returns the contract command
func ContractCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "contract",
		Short: "Manage task contracts",
		Long: `Create and track task contracts between agents.

A contract binds an issuer and an assignee to a piece of work and walks a
fixed lifecycle: pending, in_progress, review, then passed or failed.
Child contracts nest under a parent by id suffix (CON-1A, CON-1B, ...).`,
	}

	cmd.AddCommand(contractCreateCmd())
	cmd.AddCommand(contractTransitionCmd())
	cmd.AddCommand(contractShowCmd())
	cmd.AddCommand(contractListCmd())

	return cmd
}

func contractCreateCmd() *cobra.Command {
	var to, parent string
	var fields []string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new contract",
		Long: `Create a contract and notify the assignee by mail.

Fields are free-form key=value pairs; their order is preserved.

Examples:
  guild contract create --to forge-1 --field objective="Implement the parser" --field deadline=2026-03-15
  guild contract create --to scout --parent CON-4F2A91C3 --field objective="Survey prior art"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			if to == "" {
				return fmt.Errorf("--to is required")
			}
			parsed, err := parseFields(fields)
			if err != nil {
				return err
			}

			c, err := wire.ContractService().Create(ctx, primary.CreateContractRequest{
				From:     agent.Current(),
				To:       to,
				ParentID: parent,
				Fields:   parsed,
			})
			if err != nil {
				return renderError(err)
			}

			fmt.Printf("%s Created contract %s\n", okMark, c.ID)
			fmt.Printf("  From: %s\n", c.From)
			fmt.Printf("  To: %s\n", c.To)
			fmt.Printf("  Status: %s\n", c.Status)
			return nil
		},
	}

	cmd.Flags().StringVar(&to, "to", "", "Assignee agent id")
	cmd.Flags().StringVar(&parent, "parent", "", "Parent contract id (creates a child contract)")
	cmd.Flags().StringArrayVar(&fields, "field", nil, "Contract field as key=value (repeatable)")

	return cmd
}

func contractTransitionCmd() *cobra.Command {
	var note string

	statuses := make([]string, 0, len(corecontract.All()))
	for _, s := range corecontract.All() {
		statuses = append(statuses, string(s))
	}

	cmd := &cobra.Command{
		Use:   "transition <contract-id> <status>",
		Short: "Move a contract to a new status",
		Long: fmt.Sprintf(`Apply a status transition and notify the counterparty.

Statuses: %s

A rejected transition lists the statuses that would have been legal.`, strings.Join(statuses, ", ")),
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			c, err := wire.ContractService().Transition(ctx, primary.TransitionRequest{
				ContractID: args[0],
				NewStatus:  args[1],
				Note:       note,
			})
			if err != nil {
				return renderError(err)
			}

			fmt.Printf("%s Contract %s is now %s\n", okMark, c.ID, c.Status)
			return nil
		},
	}

	cmd.Flags().StringVar(&note, "note", "", "Note recorded in the change log")

	return cmd
}

func contractShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <contract-id>",
		Short: "Show a contract with its fields and change log",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			c, err := wire.ContractService().Get(ctx, args[0])
			if err != nil {
				return renderError(err)
			}

			fmt.Printf("Contract %s\n", c.ID)
			if c.ParentID != "" {
				fmt.Printf("  Parent: %s\n", c.ParentID)
			}
			fmt.Printf("  From: %s\n", c.From)
			fmt.Printf("  To: %s\n", c.To)
			fmt.Printf("  Status: %s\n", c.Status)
			fmt.Printf("  Created: %s\n", c.CreatedAt.Format(time.RFC3339))

			if len(c.Fields) > 0 {
				fmt.Println("\nFields:")
				for _, f := range c.Fields {
					fmt.Printf("  %s: %s\n", f.Key, f.Value)
				}
			}

			if len(c.Log) > 0 {
				fmt.Println("\nHistory:")
				for _, e := range c.Log {
					line := fmt.Sprintf("  %s  %s -> %s", e.Timestamp.Format(time.RFC3339), e.FromStatus, e.ToStatus)
					if e.Note != "" {
						line += "  (" + e.Note + ")"
					}
					fmt.Println(line)
				}
			}
			return nil
		},
	}
}

func contractListCmd() *cobra.Command {
	var status string
	var mine bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List contracts",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			contracts, err := wire.ContractService().List(ctx, status)
			if err != nil {
				return renderError(err)
			}

			if mine {
				me := agent.Current()
				filtered := contracts[:0]
				for _, c := range contracts {
					if c.From == me || c.To == me {
						filtered = append(filtered, c)
					}
				}
				contracts = filtered
			}

			if len(contracts) == 0 {
				fmt.Println("No contracts")
				return nil
			}

			sort.Slice(contracts, func(i, j int) bool { return contracts[i].ID < contracts[j].ID })
			tw := table.NewWriter()
			tw.SetOutputMirror(os.Stdout)
			tw.AppendHeader(table.Row{"ID", "Status", "From", "To", "Objective"})
			for _, c := range contracts {
				objective := ""
				for _, f := range c.Fields {
					if f.Key == "objective" {
						objective = truncate(f.Value, 50)
						break
					}
				}
				tw.AppendRow(table.Row{c.ID, c.Status, c.From, c.To, objective})
			}
			tw.Render()
			return nil
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "Only contracts in this status")
	cmd.Flags().BoolVar(&mine, "mine", false, "Only contracts you issued or were assigned")

	return cmd
}

func parseFields(raw []string) ([]primary.ContractField, error) {
	out := make([]primary.ContractField, 0, len(raw))
	for _, kv := range raw {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid field %q (expected key=value)", kv)
		}
		out = append(out, primary.ContractField{Key: key, Value: value})
	}
	return out, nil
}
