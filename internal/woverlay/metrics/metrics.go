// Package metrics exposes notification lifecycle and transport measurements
// as Prometheus collectors
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/wrale/wrale-overlay/internal/woverlay/notification"
)

const namespace = "woverlay"

// Recorder implements notification.Recorder and the transport metrics hook
type Recorder struct {
	received     *prometheus.CounterVec
	acknowledged *prometheus.CounterVec
	superseded   prometheus.Counter
	abandoned    prometheus.Counter
	dropped      prometheus.Counter
	duration     *prometheus.HistogramVec
	connected    prometheus.Gauge
	reconnects   prometheus.Counter

	// HTTPRequests counts status server requests
	HTTPRequests *prometheus.CounterVec
	// HTTPDuration measures status server request latency
	HTTPDuration *prometheus.HistogramVec
}

// New creates the collectors and registers them on reg
func New(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		received: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_received_total",
			Help:      "Notifications received, by kind.",
		}, []string{"kind"}),
		acknowledged: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_acknowledged_total",
			Help:      "Notifications acknowledged, by completion trigger.",
		}, []string{"trigger"}),
		superseded: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_superseded_total",
			Help:      "Notifications replaced before they completed.",
		}),
		abandoned: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_abandoned_total",
			Help:      "Notifications cleared by a disconnect or shutdown.",
		}),
		dropped: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payloads_dropped_total",
			Help:      "Inbound payloads that could not be decoded.",
		}),
		duration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "notification_duration_seconds",
			Help:      "Time from render to acknowledgment.",
			Buckets:   []float64{0.5, 1, 2, 3, 5, 10, 30, 60, 120},
		}, []string{"trigger"}),
		connected: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connected",
			Help:      "1 while the control link is up.",
		}),
		reconnects: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconnects_total",
			Help:      "Connections established after at least one failed attempt.",
		}),
		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "status_http_requests_total",
			Help:      "Status server requests.",
		}, []string{"path", "method", "status"}),
		HTTPDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "status_http_request_duration_seconds",
			Help:      "Status server request duration.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"path", "method", "status"}),
	}
}

func (r *Recorder) NotificationReceived(kind notification.Kind) {
	r.received.WithLabelValues(string(kind)).Inc()
}

func (r *Recorder) NotificationAcknowledged(trigger notification.Trigger, shown time.Duration) {
	r.acknowledged.WithLabelValues(string(trigger)).Inc()
	r.duration.WithLabelValues(string(trigger)).Observe(shown.Seconds())
}

func (r *Recorder) NotificationSuperseded() { r.superseded.Inc() }

func (r *Recorder) NotificationAbandoned() { r.abandoned.Inc() }

func (r *Recorder) PayloadDropped() { r.dropped.Inc() }

func (r *Recorder) ConnectionChanged(connected bool) {
	if connected {
		r.connected.Set(1)
		return
	}
	r.connected.Set(0)
}

// Reconnected counts a connection that followed failed attempts
func (r *Recorder) Reconnected() { r.reconnects.Inc() }
