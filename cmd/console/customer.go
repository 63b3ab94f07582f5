package main

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/real-rm/counselbox"
	"github.com/real-rm/counselbox/internal/envelope"
	"github.com/spf13/cobra"
)

func newCustomerCmd() *cobra.Command {
	var flags identityFlags
	var inquiryType string

	cmd := &cobra.Command{
		Use:   "customer",
		Short: "Run the customer chat widget",
		Long: "Runs the customer chat widget: starts an inquiry session on the first\n" +
			"message and chats on it until either side ends the session.\n\n" +
			"Interactive commands:\n" +
			"  /end      end the session\n" +
			"  <text>    send a chat message (starts the session if needed)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := bootstrap()
			if err != nil {
				return err
			}
			defer logger.Close()

			id, err := resolveIdentity(cfg, flags, envelope.SenderUser)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			view := newTerminalConversation(out)
			widget, err := counselbox.NewCustomerWidget(cfg, id, view,
				&terminalNotifier{out: out}, logger)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			if err := widget.StartInquiry(ctx, inquiryType); err != nil {
				return err
			}
			fmt.Fprintf(out, "customer #%d connected to %s, session #%d\n",
				id.ID, cfg.ServerURL, widget.ActiveSession())

			scanner := bufio.NewScanner(cmd.InOrStdin())
			for scanner.Scan() {
				line := strings.TrimSpace(scanner.Text())
				switch {
				case line == "":
				case line == "/quit":
					return nil
				case line == "/end":
					widget.EndSession()
				case strings.HasPrefix(line, "/"):
					fmt.Fprintf(out, "unknown command: %s\n", line)
				default:
					widget.SendChat(line)
				}
			}
			return scanner.Err()
		},
	}

	cmd.Flags().StringVar(&flags.token, "token", "", "signed identity token")
	cmd.Flags().Int64Var(&flags.accountID, "account-id", 0, "customer account id")
	cmd.Flags().StringVar(&flags.name, "name", "", "display name")
	cmd.Flags().StringVar(&inquiryType, "inquiry", "GENERAL", "inquiry type for the new session")
	return cmd
}
