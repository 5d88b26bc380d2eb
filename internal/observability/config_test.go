package observability

import (
	"testing"

	"github.com/smallbiznis/billdesk/internal/config"
	"github.com/stretchr/testify/assert"
)

func TestLoadConfigDefaultsFromAppConfig(t *testing.T) {
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("OTEL_ENABLED", "")

	cfg := LoadConfig(config.Config{AppVersion: "1.2.3", Environment: "production", OTLPEndpoint: "collector:4317"})

	assert.Equal(t, "billdesk", cfg.ServiceName)
	assert.Equal(t, "production", cfg.Environment)
	assert.Equal(t, "1.2.3", cfg.Version)
	assert.Equal(t, "collector:4317", cfg.OtelExporterEndpoint)
	assert.Equal(t, "grpc", cfg.OtelExporterProtocol)
	assert.InDelta(t, 0.1, cfg.OtelSamplingRatio, 1e-9)
	assert.False(t, cfg.OtelEnabled)
	assert.False(t, cfg.Debug())
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	t.Setenv("LOG_LEVEL", " DEBUG ")
	t.Setenv("OTEL_ENABLED", "true")
	t.Setenv("OTEL_EXPORTER_OTLP_PROTOCOL", "HTTP")
	t.Setenv("OTEL_SAMPLING_RATIO", "0.5")

	cfg := LoadConfig(config.Config{AppName: "invoices", Environment: "production"})

	assert.Equal(t, "invoices", cfg.ServiceName)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "http", cfg.OtelExporterProtocol)
	assert.InDelta(t, 0.5, cfg.OtelSamplingRatio, 1e-9)
	assert.True(t, cfg.OtelEnabled)
	assert.True(t, cfg.Debug())
}

func TestDebugForDevelopmentEnvironments(t *testing.T) {
	assert.True(t, Config{Environment: "local"}.Debug())
	assert.False(t, Config{Environment: "staging", LogLevel: "info"}.Debug())
}
