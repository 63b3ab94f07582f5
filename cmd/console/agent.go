package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/real-rm/counselbox"
	"github.com/real-rm/counselbox/internal/envelope"
	"github.com/real-rm/counselbox/internal/util"
	"github.com/spf13/cobra"
)

func newAgentCmd() *cobra.Command {
	var flags identityFlags

	cmd := &cobra.Command{
		Use:   "agent",
		Short: "Run the consultant console",
		Long: "Runs the consultant console: polls the session lists, handles chat sessions,\n" +
			"and manages the voice-call queue.\n\n" +
			"Interactive commands:\n" +
			"  /select <id>   activate an in-progress session\n" +
			"  /assign <id>   claim a waiting session\n" +
			"  /accept <id>   accept a waiting voice call\n" +
			"  /hangup        end the displayed voice call\n" +
			"  /refresh       reload the waiting-call queue\n" +
			"  /end           end the active chat session\n" +
			"  <text>         send a chat message",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := bootstrap()
			if err != nil {
				return err
			}
			defer logger.Close()

			id, err := resolveIdentity(cfg, flags, envelope.SenderAgent)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			views := counselbox.AgentViews{
				Conversation: newTerminalConversation(out),
				Roster:       newTerminalRoster(out),
				Waiting:      &terminalWaitingCalls{out: out},
				Panel:        &terminalPanel{out: out},
				Surface:      &terminalSurface{out: out},
				Notifier:     &terminalNotifier{out: out},
			}
			console, err := counselbox.NewAgentConsole(cfg, id, views, logger)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
			util.SafeGo(logger, "console", func() { console.Run(ctx) })

			fmt.Fprintf(out, "consultant #%d connected to %s\n", id.ID, cfg.ServerURL)
			scanner := bufio.NewScanner(cmd.InOrStdin())
			for scanner.Scan() {
				if !agentDispatch(ctx, console, out, scanner.Text()) {
					break
				}
			}
			return scanner.Err()
		},
	}

	cmd.Flags().StringVar(&flags.token, "token", "", "signed identity token")
	cmd.Flags().Int64Var(&flags.accountID, "account-id", 0, "consultant account id")
	cmd.Flags().StringVar(&flags.name, "name", "", "display name")
	return cmd
}

// agentDispatch handles one input line. Returns false to quit.
func agentDispatch(ctx context.Context, console *counselbox.AgentConsole, out io.Writer, line string) bool {
	line = strings.TrimSpace(line)
	switch {
	case line == "":
		return true
	case line == "/quit":
		return false
	case line == "/end":
		console.EndSession()
	case line == "/hangup":
		console.Hangup(ctx)
	case line == "/refresh":
		console.RefreshCalls(ctx)
	case strings.HasPrefix(line, "/select "):
		if id, ok := parseID(line, "/select "); ok {
			console.SelectSession(ctx, id)
		} else {
			fmt.Fprintln(out, "usage: /select <session id>")
		}
	case strings.HasPrefix(line, "/assign "):
		if id, ok := parseID(line, "/assign "); ok {
			console.Assign(ctx, id)
		} else {
			fmt.Fprintln(out, "usage: /assign <session id>")
		}
	case strings.HasPrefix(line, "/accept "):
		if id, ok := parseID(line, "/accept "); ok {
			console.AcceptCall(id)
		} else {
			fmt.Fprintln(out, "usage: /accept <call id>")
		}
	case strings.HasPrefix(line, "/"):
		fmt.Fprintf(out, "unknown command: %s\n", line)
	default:
		console.SendChat(line)
	}
	return true
}

func parseID(line, prefix string) (int64, bool) {
	id, err := strconv.ParseInt(strings.TrimSpace(strings.TrimPrefix(line, prefix)), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return id, true
}
