package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusConfig configures the Prometheus-backed counters.
type PrometheusConfig struct {
	// Namespace is the metrics namespace (default: "rcpbridge").
	Namespace string

	// Subsystem is the metrics subsystem (default: "").
	Subsystem string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer
	Registry prometheus.Registerer
}

// PrometheusOption configures NewPrometheus.
type PrometheusOption func(*PrometheusConfig)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) PrometheusOption {
	return func(c *PrometheusConfig) {
		c.Namespace = namespace
	}
}

// WithSubsystem sets the metrics subsystem.
func WithSubsystem(subsystem string) PrometheusOption {
	return func(c *PrometheusConfig) {
		c.Subsystem = subsystem
	}
}

// WithConstLabels sets constant labels for all metrics.
func WithConstLabels(labels prometheus.Labels) PrometheusOption {
	return func(c *PrometheusConfig) {
		c.ConstLabels = labels
	}
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry prometheus.Registerer) PrometheusOption {
	return func(c *PrometheusConfig) {
		c.Registry = registry
	}
}

func defaultPrometheusConfig() PrometheusConfig {
	return PrometheusConfig{
		Namespace: "rcpbridge",
		Registry:  prometheus.DefaultRegisterer,
	}
}

// Prometheus exports counters to a Prometheus registry and keeps local
// totals for Snapshot.
type Prometheus struct {
	*Local

	buffers        *prometheus.CounterVec
	bufferBytes    *prometheus.CounterVec
	connections    *prometheus.GaugeVec
	connectsTotal  *prometheus.CounterVec
	actions        *prometheus.CounterVec
	actionsDropped *prometheus.CounterVec
	bytes          *prometheus.CounterVec
	reconnects     prometheus.Counter
}

// NewPrometheus registers the rcpbridge metrics and returns the counters.
//
// Metrics collected:
//   - rcpbridge_buffers_total{op}: buffers allocated/freed by the bridge
//   - rcpbridge_buffer_bytes_total{op}: bytes allocated/freed
//   - rcpbridge_connections{transport}: live connections
//   - rcpbridge_connections_total{transport}: accepted or established connections
//   - rcpbridge_actions_total{kind}: actions queued for processing
//   - rcpbridge_actions_dropped_total{kind}: actions dropped on a full queue
//   - rcpbridge_bytes_total{transport,direction}: payload bytes
//   - rcpbridge_reconnects_total: tunnel reconnect attempts
func NewPrometheus(opts ...PrometheusOption) *Prometheus {
	config := defaultPrometheusConfig()
	for _, opt := range opts {
		opt(&config)
	}

	factory := promauto.With(config.Registry)
	counterOpts := func(name, help string) prometheus.CounterOpts {
		return prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        name,
			Help:        help,
			ConstLabels: config.ConstLabels,
		}
	}

	return &Prometheus{
		Local: NewLocal(),

		buffers: factory.NewCounterVec(
			counterOpts("buffers_total", "Payload buffers allocated and freed by the bridge"),
			[]string{"op"}),

		bufferBytes: factory.NewCounterVec(
			counterOpts("buffer_bytes_total", "Payload bytes allocated and freed by the bridge"),
			[]string{"op"}),

		connections: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "connections",
			Help:        "Number of live connections per transport",
			ConstLabels: config.ConstLabels,
		}, []string{"transport"}),

		connectsTotal: factory.NewCounterVec(
			counterOpts("connections_total", "Total connections accepted or established"),
			[]string{"transport"}),

		actions: factory.NewCounterVec(
			counterOpts("actions_total", "Actions queued for the processing loop"),
			[]string{"kind"}),

		actionsDropped: factory.NewCounterVec(
			counterOpts("actions_dropped_total", "Actions dropped because the queue was full"),
			[]string{"kind"}),

		bytes: factory.NewCounterVec(
			counterOpts("bytes_total", "Payload bytes carried by transports"),
			[]string{"transport", "direction"}),

		reconnects: factory.NewCounter(
			counterOpts("reconnects_total", "Tunnel reconnect attempts")),
	}
}

func (p *Prometheus) Alloc(n int) {
	p.Local.Alloc(n)
	p.buffers.WithLabelValues("alloc").Inc()
	p.bufferBytes.WithLabelValues("alloc").Add(float64(n))
}

func (p *Prometheus) Free(n int) {
	p.Local.Free(n)
	p.buffers.WithLabelValues("free").Inc()
	p.bufferBytes.WithLabelValues("free").Add(float64(n))
}

func (p *Prometheus) ConnectionOpened(transport string) {
	p.Local.ConnectionOpened(transport)
	p.connections.WithLabelValues(transport).Inc()
	p.connectsTotal.WithLabelValues(transport).Inc()
}

func (p *Prometheus) ConnectionClosed(transport string) {
	p.Local.ConnectionClosed(transport)
	p.connections.WithLabelValues(transport).Dec()
}

func (p *Prometheus) ActionQueued(kind string) {
	p.Local.ActionQueued(kind)
	p.actions.WithLabelValues(kind).Inc()
}

func (p *Prometheus) ActionDropped(kind string) {
	p.Local.ActionDropped(kind)
	p.actionsDropped.WithLabelValues(kind).Inc()
}

func (p *Prometheus) BytesSent(transport string, n int) {
	p.Local.BytesSent(transport, n)
	p.bytes.WithLabelValues(transport, "out").Add(float64(n))
}

func (p *Prometheus) BytesReceived(transport string, n int) {
	p.Local.BytesReceived(transport, n)
	p.bytes.WithLabelValues(transport, "in").Add(float64(n))
}

func (p *Prometheus) Reconnect() {
	p.Local.Reconnect()
	p.reconnects.Inc()
}
