package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// SyncMetrics defines our Prometheus metrics for the sync layer.
type SyncMetrics struct {
	OpenConnections prometheus.Gauge
	OnlineUsers     prometheus.Gauge
	BroadcastsTotal *prometheus.CounterVec
	DroppedSends    *prometheus.CounterVec
	EventsTotal     *prometheus.CounterVec
	ProtocolErrors  prometheus.Counter
}

func NewSyncMetrics(reg prometheus.Registerer) *SyncMetrics {
	factory := promauto.With(reg)

	return &SyncMetrics{
		OpenConnections: factory.NewGauge(prometheus.GaugeOpts{
			Name: "parley_ws_open_connections",
			Help: "Number of currently open websocket connections.",
		}),
		OnlineUsers: factory.NewGauge(prometheus.GaugeOpts{
			Name: "parley_ws_online_users",
			Help: "Number of distinct users with at least one open connection.",
		}),
		BroadcastsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "parley_ws_broadcasts_total",
			Help: "Broadcast events fanned out, by event name.",
		}, []string{"event"}),
		DroppedSends: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "parley_ws_dropped_sends_total",
			Help: "Outbound events dropped because a recipient queue was full.",
		}, []string{"event"}),
		EventsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "parley_ws_events_total",
			Help: "Inbound client events processed, by event name.",
		}, []string{"event"}),
		ProtocolErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "parley_ws_protocol_errors_total",
			Help: "Inbound events discarded as malformed.",
		}),
	}
}
