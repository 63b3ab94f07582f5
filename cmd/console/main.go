// Command console runs the support-portal clients from a terminal: the
// consultant console, the customer widget, and the in-memory portal simulator
// they can talk to during development.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version info set via ldflags at build time.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "console",
		Short: "Counselbox — bank support chat and voice console",
		Long:  "Counselbox runs the consultant console and customer chat widget against a support portal.",
	}

	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newAgentCmd())
	cmd.AddCommand(newCustomerCmd())
	cmd.AddCommand(newSimulateCmd())
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "console %s (commit: %s, built: %s)\n", Version, Commit, Date)
		},
	}
}

func execute(cmd *cobra.Command) int {
	if err := cmd.Execute(); err != nil {
		return 1
	}
	return 0
}

func main() {
	os.Exit(execute(newRootCmd()))
}
