package config

// Definition holds the raw configuration for the application as read from
// external sources (config file, environment). Each field maps to a
// configuration key; values are resolved and validated in buildConfig.
type Definition struct {
	// Host defines the hostname or IP address on which the server listens.
	Host string `mapstructure:"host"`

	// Port specifies the network port for incoming connections.
	Port int `mapstructure:"port"`

	// Debug toggles debug mode; when true, the application emits extra logs.
	Debug bool `mapstructure:"debug"`

	// LogFormat defines the output format for log messages.
	// Available options: "json", "text"
	LogFormat string `mapstructure:"logFormat"`

	// Quiet suppresses console log output.
	Quiet bool `mapstructure:"quiet"`

	// DotEnv is an optional path to a dotenv file loaded before the
	// configuration is resolved.
	DotEnv string `mapstructure:"dotenv"`

	// Auth contains the credentials clients must present on handshake.
	Auth *AuthDef `mapstructure:"auth"`

	// Paths holds filesystem path configurations used throughout the server.
	Paths *PathsDef `mapstructure:"paths"`

	// Executions contains admission control settings for pipeline runs.
	Executions *ExecutionsDef `mapstructure:"executions"`

	// Pacing configures the artificial delay applied between node runs.
	Pacing *PacingDef `mapstructure:"pacing"`

	// API contains settings for the HTTP API surface.
	API *APIDef `mapstructure:"api"`

	// Tracing contains OpenTelemetry trace export settings.
	Tracing *TracingDef `mapstructure:"tracing"`
}

// AuthDef holds handshake credential settings.
type AuthDef struct {
	// Username is the account name accepted on the WebSocket handshake.
	Username string `mapstructure:"username"`

	// Password is the password accepted on the WebSocket handshake.
	Password string `mapstructure:"password"`
}

// PathsDef holds filesystem path settings.
type PathsDef struct {
	// DataDir is the directory for persisting application data.
	DataDir string `mapstructure:"dataDir"`

	// LogDir is the directory where server logs are stored.
	LogDir string `mapstructure:"logDir"`

	// ArtifactsDir is the directory where tracked node outputs are written.
	ArtifactsDir string `mapstructure:"artifactsDir"`

	// DBFile is the path of the SQLite database file.
	DBFile string `mapstructure:"dbFile"`
}

// ExecutionsDef holds admission control settings for pipeline runs.
type ExecutionsDef struct {
	// MaxConcurrent caps the number of simultaneously active executions.
	MaxConcurrent int `mapstructure:"maxConcurrent"`

	// Halted rejects new executions while true.
	Halted *bool `mapstructure:"halted"`

	// Maintenance rejects new executions with a maintenance notice while true.
	Maintenance *bool `mapstructure:"maintenance"`
}

// PacingDef holds node pacing settings.
type PacingDef struct {
	// Enabled turns the artificial per-node delay on or off.
	Enabled *bool `mapstructure:"enabled"`

	// MinDelayMs is the lower bound of the per-node delay in milliseconds.
	MinDelayMs int `mapstructure:"minDelayMs"`

	// MaxDelayMs is the upper bound of the per-node delay in milliseconds.
	MaxDelayMs int `mapstructure:"maxDelayMs"`
}

// APIDef holds HTTP API settings.
type APIDef struct {
	// AllowedOrigins lists origins allowed by the CORS middleware.
	AllowedOrigins []string `mapstructure:"allowedOrigins"`
}

// TracingDef holds OpenTelemetry trace export settings.
type TracingDef struct {
	// Enabled turns execution tracing on or off.
	Enabled bool `mapstructure:"enabled"`

	// Endpoint is the OTLP collector endpoint. Endpoints ending in
	// "/v1/traces" use the HTTP exporter; all others use gRPC.
	Endpoint string `mapstructure:"endpoint"`

	// Insecure disables transport security for the exporter connection.
	Insecure bool `mapstructure:"insecure"`

	// Headers are additional headers sent with each export request.
	Headers map[string]string `mapstructure:"headers"`

	// TimeoutSec is the export timeout in seconds.
	TimeoutSec int `mapstructure:"timeoutSec"`
}
