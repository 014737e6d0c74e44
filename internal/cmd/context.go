// Package cmd assembles the command line interface. Every command loads the
// configuration the same way the server does, so flags, environment and the
// config file resolve identically no matter how the process is started.
package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/alger-org/alger/internal/cmn/config"
	"github.com/alger-org/alger/internal/cmn/logger"
	"github.com/alger-org/alger/internal/cmn/logger/tag"
	"github.com/alger-org/alger/internal/persis/sqlite"
)

// Context holds the configuration for a command.
type Context struct {
	context.Context

	Command *cobra.Command
	Flags   []commandLineFlag
	Config  *config.Config
	Quiet   bool
}

// NewContext initializes the application setup by loading configuration,
// setting up logger context, and logging any warnings.
func NewContext(cmd *cobra.Command, flags []commandLineFlag) (*Context, error) {
	ctx := cmd.Context()

	bindFlags(cmd, flags...)

	quiet, err := cmd.Flags().GetBool("quiet")
	if err != nil {
		return nil, fmt.Errorf("failed to get quiet flag: %w", err)
	}

	var configLoaderOpts []config.ConfigLoaderOption

	// Use a custom config file if provided via the viper flag "config"
	if cfgPath := viper.GetString("config"); cfgPath != "" {
		configLoaderOpts = append(configLoaderOpts, config.WithConfigFile(cfgPath))
	}

	cfg, err := config.Load(configLoaderOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	quiet = quiet || cfg.Global.Quiet

	// Create a logger context based on config and quiet mode
	var opts []logger.Option
	if cfg.Global.Debug || os.Getenv("DEBUG") != "" {
		opts = append(opts, logger.WithDebug())
	}
	if quiet {
		opts = append(opts, logger.WithQuiet())
	}
	if cfg.Global.LogFormat != "" {
		opts = append(opts, logger.WithFormat(cfg.Global.LogFormat))
	}
	ctx = logger.WithLogger(ctx, logger.NewLogger(opts...))

	// Log any warnings collected during configuration loading
	for _, w := range cfg.Warnings {
		logger.Warn(ctx, w)
	}

	return &Context{
		Context: ctx,
		Command: cmd,
		Config:  cfg,
		Quiet:   quiet,
		Flags:   flags,
	}, nil
}

// OpenStore opens the sqlite database at the configured path. Callers own the
// returned store and must close it.
func (c *Context) OpenStore() (*sqlite.Store, error) {
	store, err := sqlite.New(c.Context, c.Config.Paths.DBFile)
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", c.Config.Paths.DBFile, err)
	}
	return store, nil
}

// NewCommand creates a new command instance with the given cobra command and run function.
func NewCommand(cmd *cobra.Command, flags []commandLineFlag, runFunc func(ctx *Context, args []string) error) *cobra.Command {
	initFlags(cmd, flags...)

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		ctx, err := NewContext(cmd, flags)
		if err != nil {
			return fmt.Errorf("initialization failed: %w", err)
		}
		if err := runFunc(ctx, args); err != nil {
			logger.Error(ctx.Context, "Command failed", tag.Error(err))
			return err
		}
		return nil
	}

	return cmd
}
