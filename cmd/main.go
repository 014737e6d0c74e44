package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/alger-org/alger/internal/build"
	"github.com/alger-org/alger/internal/cmd"
)

var rootCmd = &cobra.Command{
	Use:   build.Slug,
	Short: "Alger is a websocket server for editor-built pipeline graphs",
	Long: `Alger is a websocket server for editor-built pipeline graphs.

Connected editor clients authenticate over a framed websocket protocol, list
stored pipelines and execute them as directed acyclic graphs, receiving one
status frame per node as the run progresses. Runs, artifacts and audit trails
are persisted in a local SQLite database.
`,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(cmd.Start())
	rootCmd.AddCommand(cmd.Pipelines())
	rootCmd.AddCommand(cmd.Version())

	build.Version = version
}

// version is overridden at build time via ldflags.
var version = "0.0.0"
