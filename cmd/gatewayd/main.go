// Command gatewayd runs the trading-agent gateway's HTTP process.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ngotraders/kopitra/internal/app/bootstrap"
)

var rootCmd = &cobra.Command{
	Use:   "gatewayd",
	Short: "trading-agent gateway daemon",
}

var serveCmd = &cobra.Command{
	Use:     "serve",
	Aliases: []string{"start"},
	Short:   "start the HTTP server",
	RunE:    runServe,
}

var migrateNoopCmd = &cobra.Command{
	Use:   "migrate-noop",
	Short: "no-op: the gateway has no persistence to migrate",
	RunE:  runMigrateNoop,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateNoopCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	app, err := bootstrap.BuildServer()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return app.Run(ctx)
}

// runMigrateNoop exists so deployment tooling that always runs a migrate
// step before serve has something to call: the gateway's only state is
// the in-process session/outbox store, which has nothing to migrate.
func runMigrateNoop(cmd *cobra.Command, _ []string) error {
	cmd.Println("no persistence to migrate")
	return nil
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		log.Fatalf("gatewayd stopped with error: %v", err)
	}
}
