package observability

import (
	"github.com/smallbiznis/billdesk/internal/observability/logger"
	"github.com/smallbiznis/billdesk/internal/observability/metrics"
	"github.com/smallbiznis/billdesk/internal/observability/tracing"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/fx"
)

var Module = fx.Module("observability",
	fx.Provide(
		LoadConfig,
		componentConfigs,
		logger.New,
		tracing.NewProvider,
		metrics.NewProvider,
		metrics.New,
		metrics.NewHTTPMetrics,
	),
	// The tracer provider installs itself globally; nothing else asks for it.
	fx.Invoke(func(*sdktrace.TracerProvider) {}),
)

type componentConfigOut struct {
	fx.Out

	Logger  logger.Config
	Tracing tracing.Config
	Metrics metrics.Config
}

// componentConfigs fans the shared observability settings out to each component.
func componentConfigs(cfg Config) componentConfigOut {
	return componentConfigOut{
		Logger: logger.Config{
			ServiceName: cfg.ServiceName,
			Environment: cfg.Environment,
			Version:     cfg.Version,
			Level:       cfg.LogLevel,
			Format:      cfg.LogFormat,
			Debug:       cfg.Debug(),
		},
		Tracing: tracing.Config{
			Enabled:          cfg.OtelEnabled,
			ServiceName:      cfg.ServiceName,
			ServiceVersion:   cfg.Version,
			Environment:      cfg.Environment,
			ExporterEndpoint: cfg.OtelExporterEndpoint,
			ExporterProtocol: cfg.OtelExporterProtocol,
			SamplingRatio:    cfg.OtelSamplingRatio,
		},
		Metrics: metrics.Config{
			Enabled:          cfg.OtelEnabled,
			ExporterEndpoint: cfg.OtelExporterEndpoint,
			ExporterProtocol: cfg.OtelExporterProtocol,
			ServiceName:      cfg.ServiceName,
			Environment:      cfg.Environment,
		},
	}
}
