package wsupervisor

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// milliDuration wraps a Float64Histogram to record durations in
// milliseconds, matching the pattern sutext-cable's cable_stats.go uses for
// every timing metric it exports.
type milliDuration struct {
	metric.Float64Histogram
}

func newDuration(meter metric.Meter, name, description string) milliDuration {
	h, err := meter.Float64Histogram(name, metric.WithUnit("ms"), metric.WithDescription(description))
	if err != nil {
		otel.Handle(err)
		return milliDuration{noop.Float64Histogram{}}
	}
	return milliDuration{h}
}

func (d milliDuration) Record(ctx context.Context, value float64, labels ...attribute.KeyValue) {
	d.Float64Histogram.Record(ctx, value, metric.WithAttributeSet(attribute.NewSet(labels...)))
}

// metrics is the Supervisor's always-on instrumentation facade. When a host
// doesn't configure a metric.Meter, every instrument falls back to a no-op
// via otel/metric/noop, per SPEC_FULL.md §4.1.2.
type metrics struct {
	opens          metric.Int64Counter
	retries        metric.Int64Counter
	pingTimeouts   metric.Int64Counter
	connectLatency milliDuration
}

func newMetrics(meter metric.Meter) *metrics {
	if meter == nil {
		meter = noop.Meter{}
	}

	opens, err := meter.Int64Counter("wsupervisor.opens",
		metric.WithDescription("number of successful handshake completions"))
	if err != nil {
		otel.Handle(err)
	}

	retries, err := meter.Int64Counter("wsupervisor.retries",
		metric.WithDescription("number of scheduled reconnect attempts"))
	if err != nil {
		otel.Handle(err)
	}

	pingTimeouts, err := meter.Int64Counter("wsupervisor.ping.timeouts",
		metric.WithDescription("number of ping cycles that failed to observe a pong"))
	if err != nil {
		otel.Handle(err)
	}

	return &metrics{
		opens:          opens,
		retries:        retries,
		pingTimeouts:   pingTimeouts,
		connectLatency: newDuration(meter, "wsupervisor.connect.duration", "time spent completing a handshake"),
	}
}

func (m *metrics) recordOpen(ctx context.Context) {
	if m == nil || m.opens == nil {
		return
	}
	m.opens.Add(ctx, 1)
}

func (m *metrics) recordRetry(ctx context.Context, code CloseCode) {
	if m == nil || m.retries == nil {
		return
	}
	m.retries.Add(ctx, 1, metric.WithAttributes(attribute.String("close_kind", code.Kind().String())))
}

func (m *metrics) recordPingTimeout(ctx context.Context) {
	if m == nil || m.pingTimeouts == nil {
		return
	}
	m.pingTimeouts.Add(ctx, 1)
}

func (m *metrics) recordConnectDuration(ctx context.Context, ms float64, outcome string) {
	if m == nil {
		return
	}
	m.connectLatency.Record(ctx, ms, attribute.String("outcome", outcome))
}
