package observability

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMetrics(t *testing.T) (*TransportMetrics, *prometheus.Registry) {
	t.Helper()
	registry := prometheus.NewRegistry()
	m, err := NewTransportMetrics(MetricsConfig{Registerer: registry})
	require.NoError(t, err)
	return m, registry
}

func TestMetricsRecordAndGather(t *testing.T) {
	m, registry := newTestMetrics(t)

	m.RecordMessageReceived("stdio")
	m.RecordMessageReceived("stdio")
	m.RecordMessageSent("http")
	m.RecordMessageDropped("websocket")
	m.RecordRPC("http", "ok", 20*time.Millisecond)
	m.RecordConnectionChange("websocket", 1)
	m.RecordPendingRequests(3)
	m.RecordAuthFailure("apikey")
	m.RecordDisconnect("stdio", true)

	families, err := registry.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)

	count := testutil.CollectAndCount(m.messagesReceived)
	assert.Equal(t, 1, count)
	assert.Equal(t, float64(2),
		testutil.ToFloat64(m.messagesReceived.WithLabelValues("stdio")))
	assert.Equal(t, float64(3), testutil.ToFloat64(m.pendingRequests))
	assert.Equal(t, float64(1),
		testutil.ToFloat64(m.authFailures.WithLabelValues("apikey")))
}

func TestMetricsNilReceiverIsSafe(t *testing.T) {
	var m *TransportMetrics

	// Instrumentation is optional; a nil provider must be inert.
	m.RecordMessageReceived("stdio")
	m.RecordMessageSent("stdio")
	m.RecordMessageDropped("stdio")
	m.RecordRPC("http", "ok", time.Millisecond)
	m.RecordConnectionChange("websocket", -1)
	m.RecordPendingRequests(0)
	m.RecordAuthFailure("jwt")
	m.RecordDisconnect("http", false)
}

func TestMetricsDuplicateRegistrationFails(t *testing.T) {
	registry := prometheus.NewRegistry()
	_, err := NewTransportMetrics(MetricsConfig{Registerer: registry})
	require.NoError(t, err)

	_, err = NewTransportMetrics(MetricsConfig{Registerer: registry})
	assert.Error(t, err)
}
