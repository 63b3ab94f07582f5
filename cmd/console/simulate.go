package main

import (
	"fmt"
	"net/http"

	"github.com/real-rm/counselbox/internal/api"
	"github.com/real-rm/counselbox/internal/constants"
	"github.com/real-rm/counselbox/internal/simulator"
	"github.com/spf13/cobra"
)

func newSimulateCmd() *cobra.Command {
	var addr string
	var basePath string
	var seedSessions int
	var seedCalls int

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run the in-memory portal simulator",
		Long: "Runs an in-memory stand-in for the portal's server side, for local\n" +
			"development of the agent and customer commands.",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, logger, err := bootstrap()
			if err != nil {
				return err
			}
			defer logger.Close()

			sim := simulator.New(logger)
			for i := 0; i < seedSessions; i++ {
				id := sim.AddWaitingSession("GENERAL")
				fmt.Fprintf(cmd.OutOrStdout(), "seeded waiting session #%d\n", id)
			}
			for i := 0; i < seedCalls; i++ {
				callID := int64(9000 + i)
				sim.EnqueueCall(callID)
				fmt.Fprintf(cmd.OutOrStdout(), "seeded waiting call #%d\n", callID)
			}

			router := sim.Router(basePath)
			fmt.Fprintf(cmd.OutOrStdout(), "simulator listening on %s%s\n",
				addr, api.NormalizeBasePath(basePath))
			logger.Info("Simulator listening", "addr", addr, "base_path", basePath)

			srv := &http.Server{Addr: addr, Handler: router}
			return srv.ListenAndServe()
		},
	}

	cmd.Flags().StringVar(&addr, "addr", ":8080", "listen address")
	cmd.Flags().StringVar(&basePath, "base-path", constants.DefaultBasePath, "base path prefix")
	cmd.Flags().IntVar(&seedSessions, "seed-sessions", 0, "waiting chat sessions to seed")
	cmd.Flags().IntVar(&seedCalls, "seed-calls", 0, "waiting voice calls to seed")
	return cmd
}
