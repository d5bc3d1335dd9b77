package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/solasta/solasta/pkg/llm"
	"github.com/solasta/solasta/pkg/telemetry"
)

// Duration wraps time.Duration so YAML can carry values like "30s".
type Duration time.Duration

// UnmarshalYAML accepts either a duration string or a plain integer of
// nanoseconds.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if n, err := strconv.ParseInt(value.Value, 10, 64); err == nil {
		*d = Duration(n)
		return nil
	}
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", value.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config is the service configuration, loaded from YAML with environment
// overrides on top.
type Config struct {
	Server    ServerConfig         `yaml:"server"`
	Database  DatabaseConfig       `yaml:"database"`
	Providers []llm.ProviderConfig `yaml:"providers" validate:"min=1,dive"`
	Gateway   GatewayConfig        `yaml:"gateway"`
	Engine    EngineConfig         `yaml:"engine"`
	Policy    PolicyConfig         `yaml:"policy"`
	Telemetry TelemetryConfig      `yaml:"telemetry"`
}

// GatewayConfig configures the generation gateway.
type GatewayConfig struct {
	// CallTimeout caps one provider call.
	CallTimeout Duration `yaml:"call_timeout"`

	// RateLimitRetries is the in-provider retry ceiling for rate limits.
	RateLimitRetries int `yaml:"rate_limit_retries" validate:"min=0"`

	// RepairAttempts is the structured-output repair ceiling.
	RepairAttempts int `yaml:"repair_attempts" validate:"min=0"`
}

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	// Host is the bind address. Empty means all interfaces.
	Host string `yaml:"host"`

	// Port is the listen port.
	Port int `yaml:"port" validate:"min=1,max=65535"`

	// CORSOrigins are the origins allowed by the CORS middleware.
	CORSOrigins []string `yaml:"cors_origins"`

	// ReadTimeout bounds request reading.
	ReadTimeout Duration `yaml:"read_timeout"`

	// WriteTimeout bounds response writing. Zero disables it, which the
	// event stream endpoint requires.
	WriteTimeout Duration `yaml:"write_timeout"`

	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout Duration `yaml:"shutdown_timeout"`
}

// Addr returns the host:port the server binds.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// DatabaseConfig configures the SQLite store.
type DatabaseConfig struct {
	// Path is the database file path, or :memory:.
	Path string `yaml:"path" validate:"required"`

	// MaxOpenConns caps open connections.
	MaxOpenConns int `yaml:"max_open_conns"`

	// MaxIdleConns caps idle connections.
	MaxIdleConns int `yaml:"max_idle_conns"`

	// ConnMaxLifetime bounds connection reuse.
	ConnMaxLifetime Duration `yaml:"conn_max_lifetime"`
}

// EngineConfig configures orchestration ceilings.
type EngineConfig struct {
	// MaxPlanIterations bounds plan versions per goal.
	MaxPlanIterations int `yaml:"max_plan_iterations" validate:"min=0"`

	// MaxSteps bounds the steps one plan may carry.
	MaxSteps int `yaml:"max_steps" validate:"min=0"`

	// MaxRetryCeiling bounds the per-step retry ceiling a plan may request.
	MaxRetryCeiling int `yaml:"max_retry_ceiling" validate:"min=0"`

	// AllowedCapabilities restricts plans to these capabilities. Empty
	// means no restriction.
	AllowedCapabilities []string `yaml:"allowed_capabilities"`

	// RecallLimit is how many memory entries feed planning.
	RecallLimit int `yaml:"recall_limit" validate:"min=0"`

	// CapabilityTimeout caps one capability invocation.
	CapabilityTimeout Duration `yaml:"capability_timeout"`
}

// PolicyConfig configures admission policy loading.
type PolicyConfig struct {
	// Paths are .rego or .json policy files or directories.
	Paths []string `yaml:"paths"`

	// Watch reloads policies on file changes.
	Watch bool `yaml:"watch"`
}

// TelemetryConfig is the operator-facing slice of the telemetry stack.
type TelemetryConfig struct {
	LogLevel        string `yaml:"log_level" validate:"oneof=trace debug info warn error fatal"`
	LogFormat       string `yaml:"log_format" validate:"oneof=console json"`
	TracingEnabled  bool   `yaml:"tracing_enabled"`
	TracingExporter string `yaml:"tracing_exporter" validate:"oneof=otlp stdout none"`
	TracingEndpoint string `yaml:"tracing_endpoint"`
	MetricsEnabled  bool   `yaml:"metrics_enabled"`
	MetricsAddress  string `yaml:"metrics_address"`
	EventBufferSize int    `yaml:"event_buffer_size" validate:"min=1"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			CORSOrigins:     []string{"*"},
			ReadTimeout:     Duration(15 * time.Second),
			ShutdownTimeout: Duration(10 * time.Second),
		},
		Database: DatabaseConfig{
			Path:            "solasta.db",
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifetime: Duration(30 * time.Minute),
		},
		Providers: []llm.ProviderConfig{
			{Name: "ollama", Model: "llama3"},
		},
		Gateway: GatewayConfig{
			CallTimeout:      Duration(30 * time.Second),
			RateLimitRetries: 3,
			RepairAttempts:   2,
		},
		Engine: EngineConfig{
			MaxPlanIterations: 5,
			MaxSteps:          20,
			MaxRetryCeiling:   10,
			RecallLimit:       3,
			CapabilityTimeout: Duration(15 * time.Second),
		},
		Telemetry: TelemetryConfig{
			LogLevel:        "info",
			LogFormat:       "console",
			TracingEnabled:  false,
			TracingExporter: "stdout",
			MetricsEnabled:  true,
			MetricsAddress:  ":9090",
			EventBufferSize: 64,
		},
	}
}

// Load reads the configuration file, layers environment overrides, and
// validates the result. An empty path loads defaults plus overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// BuildTelemetry maps the operator-facing telemetry section onto the full
// telemetry configuration.
func (c *Config) BuildTelemetry(version string) *telemetry.Config {
	tc := telemetry.DefaultConfig()
	tc.ServiceVersion = version
	tc.Logging.Level = c.Telemetry.LogLevel
	tc.Logging.Format = c.Telemetry.LogFormat
	tc.Tracing.Enabled = c.Telemetry.TracingEnabled
	tc.Tracing.Exporter = c.Telemetry.TracingExporter
	tc.Tracing.Endpoint = c.Telemetry.TracingEndpoint
	tc.Metrics.Enabled = c.Telemetry.MetricsEnabled
	tc.Metrics.ListenAddress = c.Telemetry.MetricsAddress
	tc.Events.BufferSize = c.Telemetry.EventBufferSize
	return tc
}

// applyEnvOverrides layers SOLASTA_* environment variables over the file.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SOLASTA_DB_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("SOLASTA_LOG_LEVEL"); v != "" {
		cfg.Telemetry.LogLevel = v
	}
	if v := os.Getenv("SOLASTA_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("SOLASTA_METRICS_ADDR"); v != "" {
		cfg.Telemetry.MetricsAddress = v
	}
}
