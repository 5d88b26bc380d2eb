package observability

import (
	"strings"

	"github.com/smallbiznis/billdesk/internal/config"
	"github.com/spf13/viper"
)

// Config is the logging and telemetry view of the process configuration.
type Config struct {
	ServiceName string
	Environment string
	Version     string

	LogLevel  string
	LogFormat string

	OtelEnabled          bool
	OtelExporterEndpoint string
	OtelExporterProtocol string
	OtelSamplingRatio    float64
}

// LoadConfig layers the observability env vars over the application config.
func LoadConfig(cfg config.Config) Config {
	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("DEPLOYMENT_ENV", cfg.Environment)
	v.SetDefault("SERVICE_VERSION", cfg.AppVersion)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("OTEL_ENABLED", false)
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", cfg.OTLPEndpoint)
	v.SetDefault("OTEL_EXPORTER_OTLP_PROTOCOL", "grpc")
	v.SetDefault("OTEL_SAMPLING_RATIO", 0.1)

	serviceName := strings.TrimSpace(cfg.AppName)
	if serviceName == "" {
		serviceName = "billdesk"
	}

	return Config{
		ServiceName:          serviceName,
		Environment:          trimmed(v, "DEPLOYMENT_ENV"),
		Version:              trimmed(v, "SERVICE_VERSION"),
		LogLevel:             strings.ToLower(trimmed(v, "LOG_LEVEL")),
		LogFormat:            strings.ToLower(trimmed(v, "LOG_FORMAT")),
		OtelEnabled:          v.GetBool("OTEL_ENABLED"),
		OtelExporterEndpoint: trimmed(v, "OTEL_EXPORTER_OTLP_ENDPOINT"),
		OtelExporterProtocol: strings.ToLower(trimmed(v, "OTEL_EXPORTER_OTLP_PROTOCOL")),
		OtelSamplingRatio:    v.GetFloat64("OTEL_SAMPLING_RATIO"),
	}
}

// Debug is true for debug logging or a development environment.
func (c Config) Debug() bool {
	if c.LogLevel == "debug" {
		return true
	}
	switch strings.ToLower(strings.TrimSpace(c.Environment)) {
	case "dev", "development", "local", "test":
		return true
	default:
		return false
	}
}

func trimmed(v *viper.Viper, key string) string {
	return strings.TrimSpace(v.GetString(key))
}
