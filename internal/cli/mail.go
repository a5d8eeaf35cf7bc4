package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/guild/internal/agent"
	"github.com/example/guild/internal/ports/primary"
	"github.com/example/guild/internal/wire"
)

// MailCmd returns the mail command
func MailCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mail",
		Short: "Inter-agent mail",
		Long: `Send and receive messages between agents.

Messages are persistent files in the recipient's mailbox. Sender identity
is taken from GUILD_AGENT; without it you act as the operator.`,
	}

	cmd.AddCommand(mailSendCmd())
	cmd.AddCommand(mailInboxCmd())
	cmd.AddCommand(mailReadCmd())

	return cmd
}

func mailSendCmd() *cobra.Command {
	var to, typ, priority, subject string
	var dispatch bool

	cmd := &cobra.Command{
		Use:   "send <body>",
		Short: "Send a message to another agent",
		Long: `Send a message to another agent's mailbox.

Examples:
  guild mail send "Please review the parser branch" --to forge-1 --type request --subject "Code review"
  guild mail send "Done with the lexer" --to lead --type report --subject "Lexer" --dispatch`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			if to == "" {
				return fmt.Errorf("--to is required")
			}
			if subject == "" {
				subject = "(no subject)"
			}

			from := agent.Current()
			id, err := wire.MailService().Send(ctx, primary.SendRequest{
				From:     from,
				To:       to,
				Type:     typ,
				Priority: priority,
				Subject:  subject,
				Body:     args[0],
			})
			if err != nil {
				return renderError(err)
			}

			fmt.Printf("%s Message sent: %s\n", okMark, id)
			fmt.Printf("  From: %s\n", from)
			fmt.Printf("  To: %s\n", to)
			fmt.Printf("  Subject: %s\n", subject)

			// --dispatch wakes the recipient immediately instead of waiting
			// for the watcher's next scan
			if dispatch {
				if err := wire.Orchestrator().Dispatch(ctx, to); err != nil {
					fmt.Printf("  %s Dispatch failed: %v\n", warnMark, err)
				} else {
					fmt.Printf("  %s Recipient dispatched\n", okMark)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&to, "to", "", "Recipient agent id")
	cmd.Flags().StringVar(&typ, "type", "directive", "Message type (contract, directive, report, request, review, result, inquiry, status_update)")
	cmd.Flags().StringVar(&priority, "priority", "", "Priority (high, medium, low; default medium)")
	cmd.Flags().StringVar(&subject, "subject", "", "Message subject")
	cmd.Flags().BoolVar(&dispatch, "dispatch", false, "Also dispatch the recipient immediately")

	return cmd
}

func mailInboxCmd() *cobra.Command {
	var all bool
	var typ string

	cmd := &cobra.Command{
		Use:   "inbox",
		Short: "View your inbox",
		Long: `List messages in your mailbox in creation order.

By default, shows only unread messages. Use --all to include read ones.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			me := agent.Current()

			messages, err := wire.MailService().Inbox(ctx, me, primary.InboxFilters{
				UnreadOnly: !all,
				Type:       typ,
			})
			if err != nil {
				return renderError(err)
			}

			if len(messages) == 0 {
				if all {
					fmt.Println("No messages")
				} else {
					fmt.Println("No unread messages")
				}
				return nil
			}

			fmt.Printf("Inbox for %s\n\n", me)
			for _, msg := range messages {
				if msg.Foreign {
					fmt.Printf("%s %s (foreign file, not a message)\n\n", warnMark, msg.RawName)
					continue
				}
				status := "✉"
				if msg.Read {
					status = "✓"
				}
				fmt.Printf("%s %s [%s]\n", status, msg.ID, msg.Timestamp.Format(time.RFC3339))
				fmt.Printf("  From: %s\n", msg.From)
				fmt.Printf("  Type: %s (%s)\n", msg.Type, msg.Priority)
				fmt.Printf("  Subject: %s\n", msg.Subject)
				fmt.Println()
			}

			unread, err := wire.MailService().UnreadCount(ctx, me)
			if err == nil {
				fmt.Printf("Total: %d messages (%d unread)\n", len(messages), unread)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "Show read messages too")
	cmd.Flags().StringVar(&typ, "type", "", "Only show messages of this type")

	return cmd
}

func mailReadCmd() *cobra.Command {
	var peek bool

	cmd := &cobra.Command{
		Use:   "read <message-id>",
		Short: "Read a message",
		Long: `Print a message and move it to the read region of your mailbox.

With --peek the message stays unread, so a later consuming read still
sees it.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			me := agent.Current()

			msg, err := wire.MailService().Read(ctx, me, args[0], peek)
			if err != nil {
				return renderError(err)
			}

			fmt.Printf("From: %s\n", msg.From)
			fmt.Printf("To: %s\n", msg.To)
			fmt.Printf("Type: %s (%s)\n", msg.Type, msg.Priority)
			fmt.Printf("Date: %s\n", msg.Timestamp.Format(time.RFC3339))
			fmt.Printf("Subject: %s\n", msg.Subject)
			fmt.Println()
			fmt.Println(msg.Body)
			return nil
		},
	}

	cmd.Flags().BoolVar(&peek, "peek", false, "Read without marking the message as read")

	return cmd
}
