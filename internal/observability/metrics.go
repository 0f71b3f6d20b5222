package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups all Prometheus instruments used by the service.
type Metrics struct {
	ActiveCall       prometheus.Gauge
	ScheduledBuffers prometheus.Gauge
	SessionEvents    *prometheus.CounterVec
	CallsFinished    *prometheus.CounterVec
	TransportErrors  prometheus.Counter
	AnalysisRetries  prometheus.Counter
	DroppedFrames    prometheus.Counter
}

func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		ActiveCall: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_call",
			Help:      "1 while a voice session is active, 0 otherwise.",
		}),
		ScheduledBuffers: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "scheduled_playback_buffers",
			Help:      "Audio buffers currently queued for playback.",
		}),
		SessionEvents: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_events_total",
			Help:      "Live session events by type.",
		}, []string{"event"}),
		CallsFinished: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "calls_finished_total",
			Help:      "Finished calls by final status.",
		}, []string{"status"}),
		TransportErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transport_errors_total",
			Help:      "Errors surfaced by the realtime speech channel.",
		}),
		AnalysisRetries: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analysis_retries_total",
			Help:      "Retried post-call analysis requests.",
		}),
		DroppedFrames: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dropped_capture_frames_total",
			Help:      "Microphone frames discarded under upstream backpressure.",
		}),
	}
}

func (m *Metrics) Event(name string) {
	if m == nil {
		return
	}
	m.SessionEvents.WithLabelValues(name).Inc()
}

func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
