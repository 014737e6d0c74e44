package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Default values for the server.
const (
	defaultHost = "0.0.0.0"
	defaultPort = "8765"
)

type commandLineFlag struct {
	name, shorthand, defaultValue, usage string
	required                             bool
}

var (
	configFlag = commandLineFlag{
		name:      "config",
		shorthand: "c",
		usage:     "config file (default is $HOME/.config/alger/config.yaml)",
	}
	hostFlag = commandLineFlag{
		name:         "host",
		shorthand:    "s",
		defaultValue: defaultHost,
		usage:        "server host",
	}
	portFlag = commandLineFlag{
		name:         "port",
		shorthand:    "p",
		defaultValue: defaultPort,
		usage:        "server port",
	}
	nameFlag = commandLineFlag{
		name:      "name",
		shorthand: "n",
		usage:     "display name for the imported pipeline (default is the file name)",
	}
)

// initFlags registers the command's own flags plus the flags every command
// shares: the config file override and quiet mode.
func initFlags(cmd *cobra.Command, flags ...commandLineFlag) {
	flags = append(flags, configFlag)
	for _, flag := range flags {
		cmd.Flags().StringP(flag.name, flag.shorthand, flag.defaultValue, flag.usage)
		if flag.required {
			if err := cmd.MarkFlagRequired(flag.name); err != nil {
				fmt.Printf("failed to mark flag %s as required: %v\n", flag.name, err)
			}
		}
	}
	cmd.Flags().BoolP("quiet", "q", false, "suppress console log output")
}

// bindFlags mirrors the command's flags into viper so that flags changed on
// the command line override file and environment configuration. Unchanged
// flags only contribute their default as a last fallback.
func bindFlags(cmd *cobra.Command, flags ...commandLineFlag) {
	flags = append(flags, configFlag)
	for _, flag := range flags {
		if err := viper.BindPFlag(flag.name, cmd.Flags().Lookup(flag.name)); err != nil {
			fmt.Printf("failed to bind flag %s: %v\n", flag.name, err)
		}
	}
}
