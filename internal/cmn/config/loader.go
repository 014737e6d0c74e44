package config

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alger-org/alger/internal/build"
	"github.com/alger-org/alger/internal/cmn/fileutil"
	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// UsedConfigFile stores the path to the configuration file that was loaded.
var UsedConfigFile = atomic.Value{}

// Load creates a new configuration by instantiating a ConfigLoader with the
// provided options and then invoking its Load method.
func Load(opts ...ConfigLoaderOption) (*Config, error) {
	loader := NewConfigLoader(opts...)
	cfg, err := loader.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// ConfigLoader is responsible for reading and merging configuration from
// various sources. The internal mutex ensures thread-safety when loading.
type ConfigLoader struct {
	lock       sync.Mutex
	configFile string   // Optional explicit path to the configuration file.
	warnings   []string // Collected warnings during configuration resolution.
}

// ConfigLoaderOption defines a functional option for configuring a ConfigLoader.
type ConfigLoaderOption func(*ConfigLoader)

// WithConfigFile returns a ConfigLoaderOption that sets the configuration file path.
func WithConfigFile(configFile string) ConfigLoaderOption {
	return func(l *ConfigLoader) {
		l.configFile = configFile
	}
}

// NewConfigLoader creates a new ConfigLoader instance and applies all given options.
func NewConfigLoader(options ...ConfigLoaderOption) *ConfigLoader {
	loader := &ConfigLoader{}
	for _, option := range options {
		option(loader)
	}
	return loader
}

// Load initializes viper, reads the configuration file and environment, and
// returns a fully built and validated Config instance.
func (l *ConfigLoader) Load() (*Config, error) {
	l.lock.Lock()
	defer l.lock.Unlock()

	resolver, err := l.setupViper()
	if err != nil {
		return nil, fmt.Errorf("viper setup failed: %w", err)
	}

	// Attempt to read the main config file. If not found, proceed without error.
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}
	configPath := viper.ConfigFileUsed()
	if configPath != "" {
		UsedConfigFile.Store(configPath)
	}

	// Apply dotenv files before the configuration is resolved so that
	// environment overrides from them are visible to AutomaticEnv.
	l.loadDotEnv()

	// Unmarshal the merged configuration into our Definition structure.
	var def Definition
	decodeHook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := viper.Unmarshal(&def, decodeHook); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg, err := l.buildConfig(def, resolver)
	if err != nil {
		return nil, fmt.Errorf("failed to build config: %w", err)
	}

	cfg.Warnings = l.warnings
	cfg.Global.ConfigPath = configPath

	return cfg, nil
}

// loadDotEnv loads a dotenv file when one is configured or present in the
// working directory. A configured file overrides existing variables; the
// implicit ".env" does not.
func (l *ConfigLoader) loadDotEnv() {
	if dotenv := viper.GetString("dotenv"); dotenv != "" {
		resolved, err := fileutil.ResolvePath(dotenv)
		if err == nil {
			err = godotenv.Overload(resolved)
		}
		if err != nil {
			l.warnings = append(l.warnings, fmt.Sprintf("failed to load dotenv file %q: %v", dotenv, err))
		}
		return
	}
	if fileutil.IsFile(".env") {
		if err := godotenv.Load(".env"); err != nil {
			l.warnings = append(l.warnings, fmt.Sprintf("failed to load .env: %v", err))
		}
	}
}

// buildConfig transforms the intermediate Definition into a final Config.
func (l *ConfigLoader) buildConfig(def Definition, resolver PathResolver) (*Config, error) {
	var cfg Config

	cfg.Global = Global{
		Debug:     def.Debug,
		LogFormat: def.LogFormat,
		Quiet:     def.Quiet,
	}

	cfg.Server = Server{
		Host: def.Host,
		Port: def.Port,
	}
	if def.Auth != nil {
		cfg.Server.Auth.Username = def.Auth.Username
		cfg.Server.Auth.Password = def.Auth.Password
	}
	if def.API != nil {
		cfg.Server.AllowedOrigins = def.API.AllowedOrigins
	}

	cfg.Paths = PathsConfig{
		ConfigDir:    resolver.ConfigDir,
		DataDir:      resolver.DataDir,
		LogDir:       resolver.LogDir,
		ArtifactsDir: resolver.ArtifactsDir,
		DBFile:       resolver.DBFile,
	}
	if def.Paths != nil {
		if err := l.overridePaths(&cfg, def.Paths); err != nil {
			return nil, err
		}
	}

	cfg.Executions = Executions{MaxConcurrent: 1}
	if def.Executions != nil {
		if def.Executions.MaxConcurrent > 0 {
			cfg.Executions.MaxConcurrent = def.Executions.MaxConcurrent
		}
		if def.Executions.Halted != nil {
			cfg.Executions.Halted = *def.Executions.Halted
		}
		if def.Executions.Maintenance != nil {
			cfg.Executions.Maintenance = *def.Executions.Maintenance
		}
	}

	cfg.Pacing = Pacing{
		Enabled:  true,
		MinDelay: 100 * time.Millisecond,
		MaxDelay: 350 * time.Millisecond,
	}
	if def.Pacing != nil {
		if def.Pacing.Enabled != nil {
			cfg.Pacing.Enabled = *def.Pacing.Enabled
		}
		if def.Pacing.MinDelayMs > 0 {
			cfg.Pacing.MinDelay = time.Duration(def.Pacing.MinDelayMs) * time.Millisecond
		}
		if def.Pacing.MaxDelayMs > 0 {
			cfg.Pacing.MaxDelay = time.Duration(def.Pacing.MaxDelayMs) * time.Millisecond
		}
	}

	cfg.Tracing = Tracing{Timeout: 30 * time.Second}
	if def.Tracing != nil {
		cfg.Tracing.Enabled = def.Tracing.Enabled
		cfg.Tracing.Endpoint = def.Tracing.Endpoint
		cfg.Tracing.Insecure = def.Tracing.Insecure
		cfg.Tracing.Headers = def.Tracing.Headers
		if def.Tracing.TimeoutSec > 0 {
			cfg.Tracing.Timeout = time.Duration(def.Tracing.TimeoutSec) * time.Second
		}
	}

	if err := l.validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// overridePaths applies explicit path settings from the definition.
func (l *ConfigLoader) overridePaths(cfg *Config, paths *PathsDef) error {
	override := func(dst *string, value string) error {
		if value == "" {
			return nil
		}
		resolved, err := fileutil.ResolvePath(value)
		if err != nil {
			return fmt.Errorf("failed to resolve path %q: %w", value, err)
		}
		*dst = resolved
		return nil
	}
	if err := override(&cfg.Paths.DataDir, paths.DataDir); err != nil {
		return err
	}
	if err := override(&cfg.Paths.LogDir, paths.LogDir); err != nil {
		return err
	}
	if err := override(&cfg.Paths.ArtifactsDir, paths.ArtifactsDir); err != nil {
		return err
	}
	if err := override(&cfg.Paths.DBFile, paths.DBFile); err != nil {
		return err
	}
	return nil
}

// setupViper initializes viper with config path, defaults and env bindings.
func (l *ConfigLoader) setupViper() (PathResolver, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return PathResolver{}, fmt.Errorf("could not determine home directory: %w", err)
	}
	appHomeEnv := strings.ToUpper(build.Slug) + "_HOME"
	resolver := NewResolver(appHomeEnv, DefaultXDGConfig(homeDir))

	l.configureViper(resolver)
	l.bindEnvironmentVariables()
	l.setDefaultValues(resolver)

	return resolver, nil
}

// configureViper sets up viper's configuration file location, type, and
// environment variable handling.
func (l *ConfigLoader) configureViper(resolver PathResolver) {
	if l.configFile == "" {
		viper.AddConfigPath(resolver.ConfigDir)
		viper.SetConfigName("config")
	} else {
		viper.SetConfigFile(l.configFile)
	}
	viper.SetConfigType("yaml")
	viper.SetEnvPrefix(strings.ToUpper(build.Slug))
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

// setDefaultValues establishes the default configuration values.
func (l *ConfigLoader) setDefaultValues(resolver PathResolver) {
	// Server settings
	viper.SetDefault("host", "0.0.0.0")
	viper.SetDefault("port", 8765)
	viper.SetDefault("debug", false)
	viper.SetDefault("quiet", false)

	// Handshake credentials
	viper.SetDefault("auth.username", "admin")
	viper.SetDefault("auth.password", "admin")

	// File paths
	viper.SetDefault("paths.dataDir", resolver.DataDir)
	viper.SetDefault("paths.logDir", resolver.LogDir)
	viper.SetDefault("paths.artifactsDir", resolver.ArtifactsDir)
	viper.SetDefault("paths.dbFile", resolver.DBFile)

	// Execution admission control
	viper.SetDefault("executions.maxConcurrent", 1)
	viper.SetDefault("executions.halted", false)
	viper.SetDefault("executions.maintenance", false)

	// Node pacing
	viper.SetDefault("pacing.enabled", true)
	viper.SetDefault("pacing.minDelayMs", 100)
	viper.SetDefault("pacing.maxDelayMs", 350)

	// Logging settings
	viper.SetDefault("logFormat", "text")
}

// bindEnvironmentVariables binds configuration keys to environment variables.
func (l *ConfigLoader) bindEnvironmentVariables() {
	// Server configurations
	l.bindEnv("host", "HOST")
	l.bindEnv("port", "PORT")
	l.bindEnv("debug", "DEBUG")
	l.bindEnv("quiet", "QUIET")
	l.bindEnv("logFormat", "LOG_FORMAT")
	l.bindEnv("dotenv", "DOTENV")

	// Authentication configurations
	l.bindEnv("auth.username", "AUTH_USERNAME")
	l.bindEnv("auth.password", "AUTH_PASSWORD")

	// File paths
	l.bindEnv("paths.dataDir", "DATA_DIR")
	l.bindEnv("paths.logDir", "LOG_DIR")
	l.bindEnv("paths.artifactsDir", "ARTIFACTS_DIR")
	l.bindEnv("paths.dbFile", "DB_FILE")

	// Execution admission control
	l.bindEnv("executions.maxConcurrent", "EXECUTIONS_MAX_CONCURRENT")
	l.bindEnv("executions.halted", "EXECUTIONS_HALTED")
	l.bindEnv("executions.maintenance", "EXECUTIONS_MAINTENANCE")

	// Node pacing
	l.bindEnv("pacing.enabled", "PACING_ENABLED")
	l.bindEnv("pacing.minDelayMs", "PACING_MIN_DELAY_MS")
	l.bindEnv("pacing.maxDelayMs", "PACING_MAX_DELAY_MS")

	// API configurations
	l.bindEnv("api.allowedOrigins", "API_ALLOWED_ORIGINS")

	// Tracing configurations
	l.bindEnv("tracing.enabled", "TRACING_ENABLED")
	l.bindEnv("tracing.endpoint", "TRACING_ENDPOINT")
	l.bindEnv("tracing.insecure", "TRACING_INSECURE")
}

// bindEnv constructs the full environment variable name using the app
// prefix and binds it to the given key.
func (l *ConfigLoader) bindEnv(key, env string) {
	prefix := strings.ToUpper(build.Slug) + "_"
	_ = viper.BindEnv(key, prefix+env)
}

// validateConfig performs basic validation on the configuration.
func (l *ConfigLoader) validateConfig(cfg *Config) error {
	if cfg.Server.Port < 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("invalid port number: %d", cfg.Server.Port)
	}

	if cfg.Executions.MaxConcurrent < 1 {
		return fmt.Errorf("invalid max concurrent executions: %d", cfg.Executions.MaxConcurrent)
	}

	if cfg.Pacing.MinDelay > cfg.Pacing.MaxDelay {
		return fmt.Errorf("pacing min delay %s exceeds max delay %s", cfg.Pacing.MinDelay, cfg.Pacing.MaxDelay)
	}

	if cfg.Tracing.Enabled && cfg.Tracing.Endpoint == "" {
		return fmt.Errorf("tracing enabled but no endpoint configured")
	}

	return nil
}
