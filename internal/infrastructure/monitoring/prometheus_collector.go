package monitoring

import (
	"livecast/internal/core/ports"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusCollector implements ports.MetricsRecorder on the default
// Prometheus registry, exposed at /metrics.
type PrometheusCollector struct {
	viewersConnected     prometheus.Gauge
	privilegedConnected  prometheus.Gauge
	broadcastsTotal      prometheus.Counter
	broadcastActive      prometheus.Gauge
	chatMessagesTotal    prometheus.Counter
	likeCount            prometheus.Gauge
	signalMessagesTotal  *prometheus.CounterVec
	authFailuresTotal    prometheus.Counter
	unknownPeersTotal    prometheus.Counter
	persistFailuresTotal prometheus.Counter
}

func NewPrometheusCollector() *PrometheusCollector {
	return &PrometheusCollector{
		viewersConnected: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "livecast_viewers_connected",
			Help: "Current number of registered viewer connections",
		}),

		privilegedConnected: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "livecast_privileged_connected",
			Help: "Current number of registered staff and admin connections",
		}),

		broadcastsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "livecast_broadcasts_total",
			Help: "Total number of broadcasts started",
		}),

		broadcastActive: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "livecast_broadcast_active",
			Help: "Whether a broadcast is currently live (0 or 1)",
		}),

		chatMessagesTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "livecast_chat_messages_total",
			Help: "Total number of chat messages fanned out",
		}),

		likeCount: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "livecast_like_count",
			Help: "Current like count of the active broadcast",
		}),

		signalMessagesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "livecast_signal_messages_total",
			Help: "Total inbound signaling messages by type",
		}, []string{"type"}),

		authFailuresTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "livecast_auth_failures_total",
			Help: "Total number of rejected privileged registrations",
		}),

		unknownPeersTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "livecast_unknown_peer_drops_total",
			Help: "Total signaling messages dropped for unknown target peers",
		}),

		persistFailuresTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "livecast_persistence_failures_total",
			Help: "Total chat store operations that failed after retries",
		}),
	}
}

var _ ports.MetricsRecorder = (*PrometheusCollector)(nil)

func (p *PrometheusCollector) SetViewerCount(n int) {
	p.viewersConnected.Set(float64(n))
}

func (p *PrometheusCollector) PrivilegedConnected() {
	p.privilegedConnected.Inc()
}

func (p *PrometheusCollector) PrivilegedDisconnected() {
	p.privilegedConnected.Dec()
}

func (p *PrometheusCollector) BroadcastStarted() {
	p.broadcastsTotal.Inc()
	p.broadcastActive.Set(1)
}

func (p *PrometheusCollector) BroadcastStopped() {
	p.broadcastActive.Set(0)
	p.likeCount.Set(0)
}

func (p *PrometheusCollector) ChatMessageSent() {
	p.chatMessagesTotal.Inc()
}

func (p *PrometheusCollector) LikeCountChanged(n int) {
	p.likeCount.Set(float64(n))
}

func (p *PrometheusCollector) SignalMessage(msgType string) {
	p.signalMessagesTotal.WithLabelValues(msgType).Inc()
}

func (p *PrometheusCollector) AuthFailure() {
	p.authFailuresTotal.Inc()
}

func (p *PrometheusCollector) UnknownPeer() {
	p.unknownPeersTotal.Inc()
}

func (p *PrometheusCollector) PersistenceFailure() {
	p.persistFailuresTotal.Inc()
}

// NoopRecorder satisfies ports.MetricsRecorder when monitoring is disabled.
type NoopRecorder struct{}

var _ ports.MetricsRecorder = NoopRecorder{}

func (NoopRecorder) SetViewerCount(int)      {}
func (NoopRecorder) PrivilegedConnected()    {}
func (NoopRecorder) PrivilegedDisconnected() {}
func (NoopRecorder) BroadcastStarted()       {}
func (NoopRecorder) BroadcastStopped()       {}
func (NoopRecorder) ChatMessageSent()        {}
func (NoopRecorder) LikeCountChanged(int)    {}
func (NoopRecorder) SignalMessage(string)    {}
func (NoopRecorder) AuthFailure()            {}
func (NoopRecorder) UnknownPeer()            {}
func (NoopRecorder) PersistenceFailure()     {}
