package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/alger-org/alger/internal/cmn/logger"
	"github.com/alger-org/alger/internal/cmn/logger/tag"
	"github.com/alger-org/alger/internal/service/frontend"
)

// Start creates and returns a cobra command that runs the pipeline server.
func Start() *cobra.Command {
	return NewCommand(
		&cobra.Command{
			Use:   "start [flags]",
			Short: "Start the pipeline server",
			Long: `Launch the server that accepts websocket sessions for pipeline execution.

The server exposes three surfaces on one listener:
- /ws       the framed websocket protocol used by editor clients
- /api/v1   a read-only REST view of executions and their artifacts
- /metrics  Prometheus metrics

On first start the database is seeded with the admin account and the demo
pipeline. Subsequent starts leave existing rows untouched.

Example:
  alger start --host=0.0.0.0 --port=8765
`,
		}, startFlags, runStart,
	)
}

var startFlags = []commandLineFlag{hostFlag, portFlag}

func runStart(ctx *Context, _ []string) error {
	logger.Info(ctx, "Server initialization",
		tag.Host(ctx.Config.Server.Host), tag.Port(ctx.Config.Server.Port))

	store, err := ctx.OpenStore()
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error(ctx.Context, "Failed to close database", tag.Error(err))
		}
	}()

	if err := store.Seed(ctx); err != nil {
		return fmt.Errorf("failed to seed database: %w", err)
	}

	server := frontend.NewServer(ctx.Config, store)
	if err := server.Serve(ctx); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}
