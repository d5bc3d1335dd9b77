package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "solasta.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	assert.NoError(t, cfg.Validate())
	assert.Equal(t, ":8080", cfg.Server.Addr())
	assert.Equal(t, "solasta.db", cfg.Database.Path)
	require.Len(t, cfg.Providers, 1)
	assert.Equal(t, "ollama", cfg.Providers[0].Name)
	assert.Equal(t, 30*time.Second, cfg.Gateway.CallTimeout.Std())
	assert.Equal(t, 15*time.Second, cfg.Engine.CapabilityTimeout.Std())
}

func TestLoadEmptyPathUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default().Server.Port, cfg.Server.Port)
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9999
  cors_origins: ["https://app.example.com"]
database:
  path: /tmp/test.db
providers:
  - name: openai
    model: gpt-4o-mini
  - name: ollama
    model: llama3
engine:
  max_plan_iterations: 7
  allowed_capabilities: ["make_outline"]
telemetry:
  log_level: debug
  log_format: json
  event_buffer_size: 128
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9999, cfg.Server.Port)
	assert.Equal(t, []string{"https://app.example.com"}, cfg.Server.CORSOrigins)
	assert.Equal(t, "/tmp/test.db", cfg.Database.Path)
	require.Len(t, cfg.Providers, 2)
	assert.Equal(t, "openai", cfg.Providers[0].Name)
	assert.Equal(t, 7, cfg.Engine.MaxPlanIterations)
	assert.Equal(t, []string{"make_outline"}, cfg.Engine.AllowedCapabilities)
	assert.Equal(t, "debug", cfg.Telemetry.LogLevel)
	assert.Equal(t, 128, cfg.Telemetry.EventBufferSize)
}

func TestLoadRejectsInvalidProvider(t *testing.T) {
	path := writeConfig(t, `
providers:
  - name: not_a_provider
    model: whatever
`)
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadRejectsBadLogLevel(t *testing.T) {
	path := writeConfig(t, `
telemetry:
  log_level: shouting
  log_format: console
  tracing_exporter: stdout
  event_buffer_size: 64
`)
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadRejectsMissingFile(t *testing.T) {
	_, err := Load("/no/such/config.yaml")
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("SOLASTA_DB_PATH", "/tmp/env.db")
	t.Setenv("SOLASTA_PORT", "7070")
	t.Setenv("SOLASTA_LOG_LEVEL", "warn")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/env.db", cfg.Database.Path)
	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, "warn", cfg.Telemetry.LogLevel)
}

func TestBuildTelemetry(t *testing.T) {
	cfg := Default()
	cfg.Telemetry.LogLevel = "debug"
	cfg.Telemetry.LogFormat = "json"
	cfg.Telemetry.TracingEnabled = true
	cfg.Telemetry.TracingExporter = "otlp"
	cfg.Telemetry.TracingEndpoint = "collector:4317"

	tc := cfg.BuildTelemetry("1.2.3")
	assert.Equal(t, "solasta", tc.ServiceName)
	assert.Equal(t, "1.2.3", tc.ServiceVersion)
	assert.Equal(t, "debug", tc.Logging.Level)
	assert.Equal(t, "json", tc.Logging.Format)
	assert.True(t, tc.Tracing.Enabled)
	assert.Equal(t, "collector:4317", tc.Tracing.Endpoint)
	assert.NoError(t, tc.Validate())
}

func TestServerAddr(t *testing.T) {
	s := ServerConfig{Host: "127.0.0.1", Port: 8081}
	assert.Equal(t, "127.0.0.1:8081", s.Addr())
}

func TestDurationFieldsParse(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 8080
  read_timeout: 30s
  shutdown_timeout: 5s
database:
  path: solasta.db
  conn_max_lifetime: 1h
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout.Std())
	assert.Equal(t, 5*time.Second, cfg.Server.ShutdownTimeout.Std())
	assert.Equal(t, time.Hour, cfg.Database.ConnMaxLifetime.Std())
}
