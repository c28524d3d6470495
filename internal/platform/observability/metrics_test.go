package observability

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type counterAdd struct {
	Counter string
	Value   int64
	Attrs   map[string]string
}

type recordingMeter struct {
	noop.Meter

	mu   sync.Mutex
	adds []counterAdd
	fail map[string]bool
}

func (m *recordingMeter) Int64Counter(name string, _ ...metric.Int64CounterOption) (metric.Int64Counter, error) {
	if m.fail[name] {
		return nil, errors.New("instrument rejected")
	}
	return &recordingCounter{name: name, meter: m}, nil
}

type recordingCounter struct {
	noop.Int64Counter

	name  string
	meter *recordingMeter
}

func (c *recordingCounter) Add(_ context.Context, incr int64, opts ...metric.AddOption) {
	attrs := make(map[string]string)
	for _, kv := range metric.NewAddConfig(opts).Attributes().ToSlice() {
		attrs[string(kv.Key)] = kv.Value.Emit()
	}
	c.meter.mu.Lock()
	defer c.meter.mu.Unlock()
	c.meter.adds = append(c.meter.adds, counterAdd{Counter: c.name, Value: incr, Attrs: attrs})
}

func TestServiceMetricsCountsTrackedEvents(t *testing.T) {
	meter := &recordingMeter{}
	metrics := NewServiceMetrics(meter, zap.NewNop())

	var logged []string
	hook := metrics.Wrap(func(_ context.Context, event string, _ map[string]any) {
		logged = append(logged, event)
	})

	ctx := context.Background()
	hook(ctx, "session.created", map[string]any{"sessionId": "s-1"})
	hook(ctx, "quote.service_saved", map[string]any{"serviceType": "seo", "hasCustomQuote": false})
	hook(ctx, "quote.service_saved", map[string]any{"serviceType": "website", "hasCustomQuote": true})
	hook(ctx, "submission.published", map[string]any{"sessionId": "s-1"})
	hook(ctx, "submission.publish_failed", map[string]any{"sessionId": "s-1"})

	want := []counterAdd{
		{Counter: "quote.events", Value: 1, Attrs: map[string]string{"event": "quote.service_saved", "service_type": "seo"}},
		{Counter: "quote.events", Value: 1, Attrs: map[string]string{"event": "quote.service_saved", "service_type": "website"}},
		{Counter: "quote.custom_quotes", Value: 1, Attrs: map[string]string{"service_type": "website"}},
		{Counter: "quote.events", Value: 1, Attrs: map[string]string{"event": "submission.published"}},
		{Counter: "quote.events", Value: 1, Attrs: map[string]string{"event": "submission.publish_failed"}},
	}
	if diff := cmp.Diff(want, meter.adds); diff != "" {
		t.Fatalf("recorded counters mismatch (-want +got):\n%s", diff)
	}
	if len(logged) != 5 {
		t.Fatalf("expected every event forwarded to the logger, got %v", logged)
	}
}

func TestServiceMetricsRegistrationFailure(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	meter := &recordingMeter{fail: map[string]bool{"quote.custom_quotes": true}}
	metrics := NewServiceMetrics(meter, zap.New(core))

	if logs.FilterMessage("observability: unable to register custom quote metric").Len() != 1 {
		t.Fatalf("expected registration warning, got %v", logs.All())
	}

	metrics.Record(context.Background(), "quote.service_saved", map[string]any{"serviceType": "website", "hasCustomQuote": true})
	if len(meter.adds) != 1 || meter.adds[0].Counter != "quote.events" {
		t.Fatalf("expected only the event counter to record, got %+v", meter.adds)
	}
}

func TestServiceMetricsNilIsSafe(t *testing.T) {
	var metrics *ServiceMetrics
	called := false
	metrics.Wrap(func(context.Context, string, map[string]any) { called = true })(context.Background(), "quote.service_saved", nil)
	if !called {
		t.Fatalf("expected wrapped hook to run")
	}
}
