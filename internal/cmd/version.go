package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/alger-org/alger/internal/build"
)

// Version creates and returns a cobra command that prints the binary version.
func Version() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Display the binary version",
		Long:  `Print the current version of the alger executable.`,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), build.Version)
		},
	}
}
