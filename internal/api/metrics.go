package api

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"scribe/internal/dispatch"
	"scribe/internal/pipeline"
)

const namespace = "scribe"

// Metrics holds the Prometheus collectors exported on /metrics.
type Metrics struct {
	registry *prometheus.Registry

	Requests        *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	UploadBytes     prometheus.Counter
	Fallbacks       prometheus.Counter
	CacheHits       prometheus.Counter
	RecognitionFail prometheus.Counter
}

// NewMetrics creates collectors on a private registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Metrics{
		registry: reg,
		Requests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "HTTP requests by endpoint and outcome",
		}, []string{"endpoint", "outcome"}),
		RequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_duration_seconds",
			Help:      "End-to-end request latency including queue wait",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
		}, []string{"endpoint"}),
		UploadBytes: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upload_bytes_total",
			Help:      "Total bytes of uploaded audio",
		}),
		Fallbacks: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "normalization_fallbacks_total",
			Help:      "Calls where ffmpeg failed and the original upload was recognized",
		}),
		CacheHits: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcript_cache_hits_total",
			Help:      "Calls served from the transcript cache",
		}),
		RecognitionFail: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recognition_failures_total",
			Help:      "Calls that produced a failed transcript",
		}),
	}
}

// ObserveEvent is a pipeline event hook.
func (m *Metrics) ObserveEvent(evt pipeline.Event) {
	if m == nil {
		return
	}
	switch evt.Kind {
	case pipeline.EventNormalizationFallback:
		m.Fallbacks.Inc()
	case pipeline.EventCacheHit:
		m.CacheHits.Inc()
	case pipeline.EventRecognitionFailed:
		m.RecognitionFail.Inc()
	}
}

func (m *Metrics) observeDispatcher(d *dispatch.Dispatcher) {
	factory := promauto.With(m.registry)
	factory.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "dispatch_active",
		Help:      "Pipeline calls currently running",
	}, func() float64 { return float64(d.Status().Active) })
	factory.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "dispatch_queued",
		Help:      "Pipeline calls waiting for a slot",
	}, func() float64 { return float64(d.Status().Queued) })
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
