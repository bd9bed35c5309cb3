// Package observability provides metrics and tracing for the transport layer.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// MetricsConfig configures the transport metrics provider
type MetricsConfig struct {
	// Namespace is the Prometheus namespace (default: mcp)
	Namespace string

	// Subsystem is the Prometheus subsystem (default: transport)
	Subsystem string

	// HistogramBuckets for request latency (default: prometheus.DefBuckets)
	HistogramBuckets []float64

	// ConstLabels to add to all metrics
	ConstLabels prometheus.Labels

	// Registerer to register metrics with (default: prometheus.DefaultRegisterer)
	Registerer prometheus.Registerer
}

// TransportMetrics records transport-level Prometheus metrics. All methods
// are safe for nil receivers so instrumentation can be optional.
type TransportMetrics struct {
	messagesReceived  *prometheus.CounterVec
	messagesSent      *prometheus.CounterVec
	messagesDropped   *prometheus.CounterVec
	rpcDuration       *prometheus.HistogramVec
	activeConnections *prometheus.GaugeVec
	pendingRequests   prometheus.Gauge
	authFailures      *prometheus.CounterVec
	disconnects       *prometheus.CounterVec
}

// NewTransportMetrics creates and registers the transport metric set.
func NewTransportMetrics(config MetricsConfig) (*TransportMetrics, error) {
	if config.Namespace == "" {
		config.Namespace = "mcp"
	}
	if config.Subsystem == "" {
		config.Subsystem = "transport"
	}
	if len(config.HistogramBuckets) == 0 {
		config.HistogramBuckets = prometheus.DefBuckets
	}
	registerer := config.Registerer
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	m := &TransportMetrics{
		messagesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "messages_received_total",
			Help:        "Messages enqueued on the receive queue, by transport.",
			ConstLabels: config.ConstLabels,
		}, []string{"transport"}),
		messagesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "messages_sent_total",
			Help:        "Messages written to an outbound channel, by transport.",
			ConstLabels: config.ConstLabels,
		}, []string{"transport"}),
		messagesDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "messages_dropped_total",
			Help:        "Outbound messages with no deliverable destination.",
			ConstLabels: config.ConstLabels,
		}, []string{"transport"}),
		rpcDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "rpc_duration_seconds",
			Help:        "End-to-end latency of correlated RPC exchanges.",
			Buckets:     config.HistogramBuckets,
			ConstLabels: config.ConstLabels,
		}, []string{"transport", "outcome"}),
		activeConnections: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "active_connections",
			Help:        "Currently open persistent connections, by transport.",
			ConstLabels: config.ConstLabels,
		}, []string{"transport"}),
		pendingRequests: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "pending_requests",
			Help:        "Pending correlation slots awaiting a reply.",
			ConstLabels: config.ConstLabels,
		}),
		authFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "auth_failures_total",
			Help:        "Requests rejected by the authenticator, by mode.",
			ConstLabels: config.ConstLabels,
		}, []string{"mode"}),
		disconnects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "disconnects_total",
			Help:        "Disconnect notifications raised, by transport and cleanliness.",
			ConstLabels: config.ConstLabels,
		}, []string{"transport", "clean"}),
	}

	collectors := []prometheus.Collector{
		m.messagesReceived, m.messagesSent, m.messagesDropped,
		m.rpcDuration, m.activeConnections, m.pendingRequests,
		m.authFailures, m.disconnects,
	}
	for _, c := range collectors {
		if err := registerer.Register(c); err != nil {
			return nil, err
		}
	}

	return m, nil
}

// RecordMessageReceived increments the receive counter for a transport.
func (m *TransportMetrics) RecordMessageReceived(transport string) {
	if m == nil {
		return
	}
	m.messagesReceived.WithLabelValues(transport).Inc()
}

// RecordMessageSent increments the send counter for a transport.
func (m *TransportMetrics) RecordMessageSent(transport string) {
	if m == nil {
		return
	}
	m.messagesSent.WithLabelValues(transport).Inc()
}

// RecordMessageDropped increments the drop counter for a transport.
func (m *TransportMetrics) RecordMessageDropped(transport string) {
	if m == nil {
		return
	}
	m.messagesDropped.WithLabelValues(transport).Inc()
}

// RecordRPC records a completed correlated exchange.
func (m *TransportMetrics) RecordRPC(transport, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.rpcDuration.WithLabelValues(transport, outcome).Observe(duration.Seconds())
}

// RecordConnectionChange adjusts the active-connection gauge.
func (m *TransportMetrics) RecordConnectionChange(transport string, delta int) {
	if m == nil {
		return
	}
	m.activeConnections.WithLabelValues(transport).Add(float64(delta))
}

// RecordPendingRequests sets the pending correlation-slot gauge.
func (m *TransportMetrics) RecordPendingRequests(count int) {
	if m == nil {
		return
	}
	m.pendingRequests.Set(float64(count))
}

// RecordAuthFailure increments the auth-failure counter for a mode.
func (m *TransportMetrics) RecordAuthFailure(mode string) {
	if m == nil {
		return
	}
	m.authFailures.WithLabelValues(mode).Inc()
}

// RecordDisconnect increments the disconnect counter.
func (m *TransportMetrics) RecordDisconnect(transport string, clean bool) {
	if m == nil {
		return
	}
	label := "false"
	if clean {
		label = "true"
	}
	m.disconnects.WithLabelValues(transport, label).Inc()
}
