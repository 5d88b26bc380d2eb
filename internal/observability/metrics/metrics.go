package metrics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Config configures the metrics provider.
type Config struct {
	Enabled          bool
	ExporterEndpoint string
	ExporterProtocol string
	ServiceName      string
	Environment      string
}

// Metrics exposes the domain instruments. A nil *Metrics records nothing.
type Metrics struct {
	invoicesCreated  metric.Int64Counter
	invoiceStatus    metric.Int64Counter
	quotesCreated    metric.Int64Counter
	paymentsRecorded metric.Int64Counter
	paymentsDeleted  metric.Int64Counter
	paymentAmount    metric.Int64Counter
	rateLimitAllowed metric.Int64Counter
	rateLimitDenied  metric.Int64Counter
}

// NewProvider configures and registers the meter provider.
func NewProvider(lc fx.Lifecycle, cfg Config, log *zap.Logger) (metric.MeterProvider, error) {
	if !cfg.Enabled {
		provider := noop.NewMeterProvider()
		otel.SetMeterProvider(provider)
		return provider, nil
	}

	exporter, err := newExporter(cfg.ExporterProtocol, cfg.ExporterEndpoint)
	if err != nil {
		return nil, err
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(15*time.Second))
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(provider)

	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				return provider.Shutdown(ctx)
			},
		})
	}

	if log != nil {
		log.Info("metrics initialized",
			zap.String("endpoint", cfg.ExporterEndpoint),
			zap.String("protocol", cfg.ExporterProtocol),
		)
	}
	return provider, nil
}

// New creates the domain instruments on provider.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "billdesk"
	}
	meter := provider.Meter(name)

	m := &Metrics{}
	counters := []struct {
		target *metric.Int64Counter
		name   string
		desc   string
	}{
		{&m.invoicesCreated, "billdesk_invoices_created_total", "Invoices created."},
		{&m.invoiceStatus, "billdesk_invoice_status_transitions_total", "Invoice status changes by target status."},
		{&m.quotesCreated, "billdesk_quotes_created_total", "Quotes created."},
		{&m.paymentsRecorded, "billdesk_payments_recorded_total", "Payments recorded."},
		{&m.paymentsDeleted, "billdesk_payments_deleted_total", "Payments deleted."},
		{&m.paymentAmount, "billdesk_payment_amount_minor_total", "Sum of recorded payment amounts in minor units."},
		{&m.rateLimitAllowed, "billdesk_rate_limit_allowed_total", "Write requests admitted by the rate limiter."},
		{&m.rateLimitDenied, "billdesk_rate_limit_denied_total", "Write requests rejected by the rate limiter."},
	}
	for _, c := range counters {
		counter, err := meter.Int64Counter(c.name, metric.WithDescription(c.desc))
		if err != nil {
			return nil, err
		}
		*c.target = counter
	}
	return m, nil
}

func (m *Metrics) RecordInvoiceCreated(ctx context.Context, orgID string) {
	if m == nil {
		return
	}
	m.invoicesCreated.Add(ctx, 1, metric.WithAttributes(FilterAttributes(
		attribute.String("org_id", strings.TrimSpace(orgID)),
	)...))
}

// RecordInvoiceStatus counts a persisted status change.
func (m *Metrics) RecordInvoiceStatus(ctx context.Context, from, to string) {
	if m == nil || from == to {
		return
	}
	m.invoiceStatus.Add(ctx, 1, metric.WithAttributes(FilterAttributes(
		attribute.String("from", strings.TrimSpace(from)),
		attribute.String("to", strings.TrimSpace(to)),
	)...))
}

func (m *Metrics) RecordQuoteCreated(ctx context.Context, orgID string) {
	if m == nil {
		return
	}
	m.quotesCreated.Add(ctx, 1, metric.WithAttributes(FilterAttributes(
		attribute.String("org_id", strings.TrimSpace(orgID)),
	)...))
}

func (m *Metrics) RecordPaymentRecorded(ctx context.Context, method string, amount int64) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(FilterAttributes(attribute.String("method", normalizeMethod(method)))...)
	m.paymentsRecorded.Add(ctx, 1, attrs)
	if amount > 0 {
		m.paymentAmount.Add(ctx, amount, attrs)
	}
}

func (m *Metrics) RecordPaymentDeleted(ctx context.Context) {
	if m == nil {
		return
	}
	m.paymentsDeleted.Add(ctx, 1)
}

func (m *Metrics) RecordRateLimitAllowed(ctx context.Context, orgID, endpoint string) {
	if m == nil {
		return
	}
	m.rateLimitAllowed.Add(ctx, 1, metric.WithAttributes(FilterAttributes(
		attribute.String("org_id", strings.TrimSpace(orgID)),
		attribute.String("endpoint", strings.TrimSpace(endpoint)),
	)...))
}

func (m *Metrics) RecordRateLimitDenied(ctx context.Context, orgID, endpoint, reason string) {
	if m == nil {
		return
	}
	m.rateLimitDenied.Add(ctx, 1, metric.WithAttributes(FilterAttributes(
		attribute.String("org_id", strings.TrimSpace(orgID)),
		attribute.String("endpoint", strings.TrimSpace(endpoint)),
		attribute.String("reason", strings.TrimSpace(reason)),
	)...))
}

// normalizeMethod keeps the free-text payment method label low-cardinality.
func normalizeMethod(method string) string {
	method = strings.ToLower(strings.TrimSpace(method))
	switch method {
	case "cash", "card", "bank_transfer", "check", "paypal":
		return method
	case "":
		return "unspecified"
	default:
		return "other"
	}
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	switch strings.ToLower(strings.TrimSpace(protocol)) {
	case "http", "http/protobuf":
		opts := []otlpmetrichttp.Option{otlpmetrichttp.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(endpoint))
		}
		return otlpmetrichttp.New(context.Background(), opts...)
	case "grpc", "grpc/protobuf", "":
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(endpoint))
		}
		return otlpmetricgrpc.New(context.Background(), opts...)
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol %q", protocol)
	}
}

var allowedLabelKeys = map[attribute.Key]struct{}{
	"org_id":   {},
	"endpoint": {},
	"method":   {},
	"from":     {},
	"to":       {},
	"reason":   {},
}

// FilterAttributes strips disallowed labels to keep metrics low-cardinality.
func FilterAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	filtered := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if _, ok := allowedLabelKeys[attr.Key]; !ok {
			continue
		}
		filtered = append(filtered, attr)
	}
	return filtered
}
