// Package test provides shared fixtures for integration tests: a loaded
// configuration rooted in a throwaway directory, a seeded sqlite store and
// optionally a running frontend server.
package test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/google/uuid"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"

	"github.com/alger-org/alger/internal/cmn/config"
	"github.com/alger-org/alger/internal/cmn/fileutil"
	"github.com/alger-org/alger/internal/persis/sqlite"
)

// Setup serialises access to viper's package-level state.
var setupLock sync.Mutex

// HelperOption defines functional options for Helper
type HelperOption func(*Options)

type Options struct {
	ConfigMutators []func(*config.Config)
	SkipSeed       bool
}

// WithConfigMutator applies mutations to the loaded configuration after defaults are set.
func WithConfigMutator(mutator func(*config.Config)) HelperOption {
	return func(opts *Options) {
		opts.ConfigMutators = append(opts.ConfigMutators, mutator)
	}
}

// WithoutSeed skips seeding the admin account and the demo pipeline.
func WithoutSeed() HelperOption {
	return func(opts *Options) {
		opts.SkipSeed = true
	}
}

// Setup creates a new Helper instance for testing
func Setup(t *testing.T, opts ...HelperOption) Helper {
	setupLock.Lock()
	defer setupLock.Unlock()

	var options Options
	for _, opt := range opts {
		opt(&options)
	}

	_ = os.Setenv("TZ", "UTC")

	random := uuid.New().String()
	tmpDir := fileutil.MustTempDir(fmt.Sprintf("alger-test-%s", random))
	require.NoError(t, os.Setenv("ALGER_HOME", tmpDir))

	// Reset viper state to avoid leaking config file paths across tests.
	viper.Reset()
	cfg, err := config.Load()
	require.NoError(t, err)

	cfg.Server.Host = "127.0.0.1"
	// Runs complete instantly with pacing off; timing-sensitive tests opt
	// back in through a mutator.
	cfg.Pacing.Enabled = false
	for _, mutate := range options.ConfigMutators {
		mutate(cfg)
	}

	configFile := filepath.Join(tmpDir, "config.yaml")
	writeHelperConfigFile(t, cfg, configFile)
	cfg.Global.ConfigPath = configFile

	ctx, cancel := context.WithCancel(context.Background())

	store, err := sqlite.New(ctx, cfg.Paths.DBFile)
	require.NoError(t, err)
	if !options.SkipSeed {
		require.NoError(t, store.Seed(ctx))
	}

	helper := Helper{
		Context: ctx,
		Cancel:  cancel,
		Config:  cfg,
		Store:   store,

		tmpDir: tmpDir,
	}

	t.Cleanup(helper.Cleanup)
	return helper
}

// writeHelperConfigFile writes the resolved configuration so commands under
// test can reload an identical configuration from disk.
func writeHelperConfigFile(t *testing.T, cfg *config.Config, configPath string) {
	t.Helper()

	configData := map[string]any{
		"host":      cfg.Server.Host,
		"port":      cfg.Server.Port,
		"debug":     cfg.Global.Debug,
		"logFormat": cfg.Global.LogFormat,
		"quiet":     cfg.Global.Quiet,
		"auth": map[string]any{
			"username": cfg.Server.Auth.Username,
			"password": cfg.Server.Auth.Password,
		},
		"paths": map[string]any{
			"dataDir":      cfg.Paths.DataDir,
			"logDir":       cfg.Paths.LogDir,
			"artifactsDir": cfg.Paths.ArtifactsDir,
			"dbFile":       cfg.Paths.DBFile,
		},
		"executions": map[string]any{
			"maxConcurrent": cfg.Executions.MaxConcurrent,
			"halted":        cfg.Executions.Halted,
			"maintenance":   cfg.Executions.Maintenance,
		},
		"pacing": map[string]any{
			"enabled":    cfg.Pacing.Enabled,
			"minDelayMs": int(cfg.Pacing.MinDelay / time.Millisecond),
			"maxDelayMs": int(cfg.Pacing.MaxDelay / time.Millisecond),
		},
	}
	if len(cfg.Server.AllowedOrigins) > 0 {
		configData["api"] = map[string]any{"allowedOrigins": cfg.Server.AllowedOrigins}
	}

	content, err := yaml.Marshal(configData)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(configPath, content, 0600))
}

// Helper provides test utilities and configuration
type Helper struct {
	Context context.Context
	Cancel  context.CancelFunc
	Config  *config.Config
	Store   *sqlite.Store

	tmpDir string
}

// Cleanup stops background work and removes temporary test directories
func (h Helper) Cleanup() {
	if h.Cancel != nil {
		h.Cancel()
	}
	_ = h.Store.Close()
	_ = os.RemoveAll(h.tmpDir)
}

// TempFile creates a temp file with specified name and content.
func (h Helper) TempFile(t *testing.T, name string, data []byte) string {
	t.Helper()

	filename := filepath.Join(h.tmpDir, name)
	err := os.WriteFile(filename, data, 0600)
	require.NoError(t, err)
	return filename
}
