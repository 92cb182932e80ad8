package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/audiolibrelab/funnyvoice/internal/session"
)

// Metrics contains all Prometheus metrics of the voice session
type Metrics struct {
	registry *prometheus.Registry

	// Recording metrics
	RecordingsStarted   prometheus.Counter
	RecordingsStopped   *prometheus.CounterVec
	AutoStopsSuppressed prometheus.Counter
	RecordingDuration   prometheus.Histogram
	RecordingActive     prometheus.Gauge

	// Playback metrics
	PlaybacksStarted   *prometheus.CounterVec
	PlaybacksFinished  *prometheus.CounterVec
	PlaybacksPreempted prometheus.Counter
	EffectSelections   *prometheus.CounterVec

	// Errors
	Errors prometheus.Counter

	// HTTP API metrics
	HTTPRequests *prometheus.CounterVec
}

// NewMetrics creates all metrics on a private registry
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		RecordingsStarted: factory.NewCounter(prometheus.CounterOpts{
			Name: "funnyvoice_recordings_started_total",
			Help: "Total number of recordings started",
		}),
		RecordingsStopped: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "funnyvoice_recordings_stopped_total",
			Help: "Total number of recordings stopped, by reason",
		}, []string{"reason"}),
		AutoStopsSuppressed: factory.NewCounter(prometheus.CounterOpts{
			Name: "funnyvoice_auto_stops_suppressed_total",
			Help: "Silence deadlines that fired before the first tick",
		}),
		RecordingDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "funnyvoice_recording_duration_seconds",
			Help:    "Elapsed seconds of stopped recordings",
			Buckets: []float64{0, 1, 2, 3, 5, 10, 30, 60},
		}),
		RecordingActive: factory.NewGauge(prometheus.GaugeOpts{
			Name: "funnyvoice_recording_active",
			Help: "1 while a recording is active",
		}),

		PlaybacksStarted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "funnyvoice_playbacks_started_total",
			Help: "Total number of playbacks started, by effect",
		}, []string{"effect"}),
		PlaybacksFinished: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "funnyvoice_playbacks_finished_total",
			Help: "Total number of playbacks finished, by outcome",
		}, []string{"outcome"}),
		PlaybacksPreempted: factory.NewCounter(prometheus.CounterOpts{
			Name: "funnyvoice_playbacks_preempted_total",
			Help: "Playbacks stopped by a new recording",
		}),
		EffectSelections: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "funnyvoice_effect_selections_total",
			Help: "Effect selections, by effect",
		}, []string{"effect"}),

		Errors: factory.NewCounter(prometheus.CounterOpts{
			Name: "funnyvoice_errors_total",
			Help: "Total number of session errors",
		}),

		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "funnyvoice_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "route", "status"}),
	}
}

// Observe updates the metrics from a session event
func (m *Metrics) Observe(ev session.Event) {
	switch ev.Kind {
	case session.EventRecordingStarted:
		m.RecordingsStarted.Inc()
		m.RecordingActive.Set(1)
	case session.EventRecordingStopped:
		m.RecordingsStopped.WithLabelValues(string(ev.Reason)).Inc()
		m.RecordingDuration.Observe(float64(ev.Recording.ElapsedSeconds))
		m.RecordingActive.Set(0)
	case session.EventAutoStopSuppressed:
		m.AutoStopsSuppressed.Inc()
	case session.EventPlaybackStarted:
		m.PlaybacksStarted.WithLabelValues(ev.EffectID).Inc()
	case session.EventPlaybackFinished:
		outcome := "finished"
		if ev.Error != "" {
			outcome = "error"
		}
		m.PlaybacksFinished.WithLabelValues(outcome).Inc()
	case session.EventPlaybackPreempted:
		m.PlaybacksPreempted.Inc()
	case session.EventEffectSelected:
		m.EffectSelections.WithLabelValues(ev.EffectID).Inc()
	case session.EventError:
		m.Errors.Inc()
		if ev.Recording.State != session.RecordingActive {
			m.RecordingActive.Set(0)
		}
	}
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
