package config

import (
	"fmt"
	"time"
)

// Config is the fully resolved server configuration.
type Config struct {
	Global     Global
	Server     Server
	Paths      PathsConfig
	Executions Executions
	Pacing     Pacing
	Tracing    Tracing
	Warnings   []string
}

// Global contains process-wide settings.
type Global struct {
	// Debug enables debug logging.
	Debug bool
	// LogFormat is the log output format ("text" or "json").
	LogFormat string
	// Quiet suppresses console log output.
	Quiet bool
	// ConfigPath is the path of the configuration file that was loaded,
	// empty when no file was found.
	ConfigPath string
}

// Server contains the listen address, handshake credentials and CORS policy.
type Server struct {
	Host           string
	Port           int
	Auth           Auth
	AllowedOrigins []string
}

// Addr returns the host:port string the server binds to.
func (s Server) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// Auth holds the credentials clients must present on the handshake.
type Auth struct {
	Username string
	Password string
}

// PathsConfig contains the resolved filesystem locations.
type PathsConfig struct {
	// ConfigDir is the directory the config file is read from.
	ConfigDir string
	// DataDir is the directory for persisted application data.
	DataDir string
	// LogDir is the directory server logs are written to.
	LogDir string
	// ArtifactsDir is the directory tracked node outputs are written to.
	ArtifactsDir string
	// DBFile is the SQLite database file path.
	DBFile string
}

// Executions contains admission control settings for pipeline runs.
type Executions struct {
	// MaxConcurrent caps the number of simultaneously active executions.
	MaxConcurrent int
	// Halted rejects new executions while true.
	Halted bool
	// Maintenance rejects new executions with a maintenance notice while true.
	Maintenance bool
}

// Pacing configures the artificial delay between node runs so that
// streamed node status updates arrive at a human-followable rate.
type Pacing struct {
	Enabled  bool
	MinDelay time.Duration
	MaxDelay time.Duration
}

// Tracing contains OpenTelemetry trace export settings.
type Tracing struct {
	Enabled  bool
	Endpoint string
	Insecure bool
	Headers  map[string]string
	Timeout  time.Duration
}
