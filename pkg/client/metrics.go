package client

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// metricsSet holds the client's Prometheus metrics. A nil *metricsSet is
// valid and records nothing, so instrumentation call sites stay unguarded.
type metricsSet struct {
	reconnects      prometheus.Counter
	giveUps         prometheus.Counter
	connectionState prometheus.Gauge
	pendingRequests prometheus.Gauge
	activeQueries   prometheus.Gauge
	messagesSent    *prometheus.CounterVec
	messagesRecv    *prometheus.CounterVec
	decodeErrors    prometheus.Counter
	opDuration      *prometheus.HistogramVec
}

// newMetricsSet registers the client metrics with reg. Returns nil when reg
// is nil, disabling metrics.
func newMetricsSet(reg prometheus.Registerer) *metricsSet {
	if reg == nil {
		return nil
	}
	factory := promauto.With(reg)

	return &metricsSet{
		reconnects: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "flux",
			Subsystem: "client",
			Name:      "reconnects_total",
			Help:      "Total number of connection attempts after the first",
		}),
		giveUps: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "flux",
			Subsystem: "client",
			Name:      "reconnect_give_ups_total",
			Help:      "Times the reconnect attempt ceiling was reached",
		}),
		connectionState: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "flux",
			Subsystem: "client",
			Name:      "connected",
			Help:      "1 while the WebSocket session is connected, else 0",
		}),
		pendingRequests: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "flux",
			Subsystem: "client",
			Name:      "pending_requests",
			Help:      "Outstanding one-shot mutation/action requests",
		}),
		activeQueries: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "flux",
			Subsystem: "client",
			Name:      "active_queries",
			Help:      "Live entries in the query set",
		}),
		messagesSent: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "flux",
			Subsystem: "client",
			Name:      "messages_sent_total",
			Help:      "Outbound protocol messages by type",
		}, []string{"type"}),
		messagesRecv: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "flux",
			Subsystem: "client",
			Name:      "messages_received_total",
			Help:      "Inbound protocol messages by type",
		}, []string{"type"}),
		decodeErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "flux",
			Subsystem: "client",
			Name:      "decode_errors_total",
			Help:      "Inbound frames dropped because they failed to decode",
		}),
		opDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "flux",
			Subsystem: "client",
			Name:      "operation_duration_seconds",
			Help:      "Duration of query/mutation/action calls",
			Buckets:   prometheus.DefBuckets,
		}, []string{"kind"}),
	}
}

func (m *metricsSet) recordReconnect() {
	if m == nil {
		return
	}
	m.reconnects.Inc()
}

func (m *metricsSet) recordGiveUp() {
	if m == nil {
		return
	}
	m.giveUps.Inc()
}

func (m *metricsSet) setConnected(connected bool) {
	if m == nil {
		return
	}
	if connected {
		m.connectionState.Set(1)
	} else {
		m.connectionState.Set(0)
	}
}

func (m *metricsSet) setPendingRequests(n int) {
	if m == nil {
		return
	}
	m.pendingRequests.Set(float64(n))
}

func (m *metricsSet) setActiveQueries(n int) {
	if m == nil {
		return
	}
	m.activeQueries.Set(float64(n))
}

func (m *metricsSet) recordSent(messageType string) {
	if m == nil {
		return
	}
	m.messagesSent.WithLabelValues(messageType).Inc()
}

func (m *metricsSet) recordReceived(messageType string) {
	if m == nil {
		return
	}
	m.messagesRecv.WithLabelValues(messageType).Inc()
}

func (m *metricsSet) recordDecodeError() {
	if m == nil {
		return
	}
	m.decodeErrors.Inc()
}

func (m *metricsSet) observeOperation(kind string, seconds float64) {
	if m == nil {
		return
	}
	m.opDuration.WithLabelValues(kind).Observe(seconds)
}
