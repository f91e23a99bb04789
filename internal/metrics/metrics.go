// Package metrics exposes Prometheus counters for the gateway. Every method is
// safe on a nil *Metrics so components can run without instrumentation.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "alphagate"

// Metrics owns a private registry so tests and multiple instances never
// collide on the global default registerer.
type Metrics struct {
	registry *prometheus.Registry

	signals      *prometheus.CounterVec
	orders       *prometheus.CounterVec
	attempts     *prometheus.CounterVec
	orderLatency prometheus.Histogram
	killSwitch   prometheus.Counter
	gate         prometheus.Gauge
	notifyErrors *prometheus.CounterVec
}

// New creates and registers the gateway collectors along with the Go runtime
// and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		signals: prometheus.NewCounterVec(
			prometheus.CounterOpts{Namespace: namespace, Name: "signals_total", Help: "Webhook signals by intake outcome"},
			[]string{"outcome"},
		),
		orders: prometheus.NewCounterVec(
			prometheus.CounterOpts{Namespace: namespace, Name: "orders_total", Help: "Order submissions by final result"},
			[]string{"symbol", "side", "result"},
		),
		attempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{Namespace: namespace, Name: "order_attempts_total", Help: "Individual order submission attempts"},
			[]string{"symbol"},
		),
		orderLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "order_duration_seconds",
			Help:      "Wall time from first attempt to final order result",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		killSwitch: prometheus.NewCounter(
			prometheus.CounterOpts{Namespace: namespace, Name: "kill_switch_total", Help: "Kill switch activations"},
		),
		gate: prometheus.NewGauge(
			prometheus.GaugeOpts{Namespace: namespace, Name: "trading_gate_enabled", Help: "1 when the trading gate admits signals"},
		),
		notifyErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{Namespace: namespace, Name: "notify_failures_total", Help: "Failed notification deliveries"},
			[]string{"sender"},
		),
	}
	m.registry.MustRegister(
		m.signals, m.orders, m.attempts, m.orderLatency, m.killSwitch, m.gate, m.notifyErrors,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry for gathering in tests.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// SignalOutcome counts one webhook signal by outcome.
func (m *Metrics) SignalOutcome(outcome string) {
	if m == nil {
		return
	}
	m.signals.WithLabelValues(outcome).Inc()
}

// OrderAttempt counts one submission attempt.
func (m *Metrics) OrderAttempt(symbol string) {
	if m == nil {
		return
	}
	m.attempts.WithLabelValues(symbol).Inc()
}

// OrderResult counts a final order result and records its duration.
func (m *Metrics) OrderResult(symbol, side, result string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.orders.WithLabelValues(symbol, side, result).Inc()
	m.orderLatency.Observe(elapsed.Seconds())
}

// KillSwitchActivated counts one kill switch run.
func (m *Metrics) KillSwitchActivated() {
	if m == nil {
		return
	}
	m.killSwitch.Inc()
}

// SetGate mirrors the trading gate state.
func (m *Metrics) SetGate(enabled bool) {
	if m == nil {
		return
	}
	if enabled {
		m.gate.Set(1)
		return
	}
	m.gate.Set(0)
}

// NotifyFailed counts one failed delivery on sender.
func (m *Metrics) NotifyFailed(sender string) {
	if m == nil {
		return
	}
	m.notifyErrors.WithLabelValues(sender).Inc()
}
