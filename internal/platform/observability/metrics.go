package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

const metricNamespace = "github.com/finitefield/quote-configurator/internal/platform/observability"

// countedEvents lists the service events that feed the quote.events counter.
var countedEvents = map[string]struct{}{
	"quote.service_saved":       {},
	"submission.published":      {},
	"submission.publish_failed": {},
}

// ServiceMetrics turns service events into OpenTelemetry counters.
type ServiceMetrics struct {
	events       metric.Int64Counter
	customQuotes metric.Int64Counter

	eventsEnabled       bool
	customQuotesEnabled bool
}

// NewServiceMetrics registers the counters on meter, or on the global meter provider when
// meter is nil. Registration failures are logged and the affected counter stays disabled.
func NewServiceMetrics(meter metric.Meter, logger *zap.Logger) *ServiceMetrics {
	if logger == nil {
		logger = zap.NewNop()
	}
	if meter == nil {
		meter = otel.GetMeterProvider().Meter(metricNamespace)
	}

	events, eventsErr := meter.Int64Counter(
		"quote.events",
		metric.WithUnit("{event}"),
		metric.WithDescription("Count of saved services and submission outcomes"),
	)
	if eventsErr != nil {
		logger.Warn("observability: unable to register event metric", zap.Error(eventsErr))
	}

	customQuotes, customErr := meter.Int64Counter(
		"quote.custom_quotes",
		metric.WithUnit("{service}"),
		metric.WithDescription("Count of saved services that need a custom quote"),
	)
	if customErr != nil {
		logger.Warn("observability: unable to register custom quote metric", zap.Error(customErr))
	}

	return &ServiceMetrics{
		events:              events,
		customQuotes:        customQuotes,
		eventsEnabled:       eventsErr == nil && events != nil,
		customQuotesEnabled: customErr == nil && customQuotes != nil,
	}
}

// Record counts event when it is one of the tracked service events.
func (m *ServiceMetrics) Record(ctx context.Context, event string, fields map[string]any) {
	if m == nil {
		return
	}
	if _, ok := countedEvents[event]; !ok {
		return
	}
	attrs := []attribute.KeyValue{attribute.String("event", event)}
	if serviceType, ok := fields["serviceType"].(string); ok && serviceType != "" {
		attrs = append(attrs, attribute.String("service_type", serviceType))
	}
	if m.eventsEnabled {
		m.events.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
	if custom, _ := fields["hasCustomQuote"].(bool); custom && m.customQuotesEnabled {
		m.customQuotes.Add(ctx, 1, metric.WithAttributes(attrs[1:]...))
	}
}

// Wrap returns a service event hook that records metrics before delegating to next.
func (m *ServiceMetrics) Wrap(next func(context.Context, string, map[string]any)) func(context.Context, string, map[string]any) {
	return func(ctx context.Context, event string, fields map[string]any) {
		m.Record(ctx, event, fields)
		if next != nil {
			next(ctx, event, fields)
		}
	}
}
