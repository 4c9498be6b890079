// Package metrics exposes daemon counters in Prometheus text format.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "voicememo"

// Metrics holds the daemon's collectors on a private registry so tests can
// build as many as they like.
type Metrics struct {
	reg *prometheus.Registry

	RecordingsStarted  prometheus.Counter
	RecordingsFinished prometheus.Counter
	RecordingsFailed   prometheus.Counter
	RecordedBytes      prometheus.Counter
	Recording          prometheus.Gauge

	PlaybacksStarted   prometheus.Counter
	PlaybacksCompleted prometheus.Counter
	DecodeErrors       prometheus.Counter
	PlaybackState      *prometheus.GaugeVec

	SpeechRequests *prometheus.CounterVec
	SpeechFailures *prometheus.CounterVec

	WSClients prometheus.GaugeFunc
}

// New registers every collector. clients, when non-nil, backs the
// websocket client gauge.
func New(clients func() int) *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m := &Metrics{
		reg: reg,
		RecordingsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "capture", Name: "sessions_started_total",
			Help: "Recording sessions started.",
		}),
		RecordingsFinished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "capture", Name: "sessions_finished_total",
			Help: "Recording sessions stopped and finalized.",
		}),
		RecordingsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "capture", Name: "sessions_failed_total",
			Help: "Recording sessions aborted by a sink error.",
		}),
		RecordedBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "capture", Name: "pcm_bytes_total",
			Help: "PCM payload bytes written to finalized recordings.",
		}),
		Recording: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "capture", Name: "recording",
			Help: "1 while a recording session is active.",
		}),
		PlaybacksStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "playback", Name: "sessions_started_total",
			Help: "Playback sessions that reached PLAYING.",
		}),
		PlaybacksCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "playback", Name: "sessions_completed_total",
			Help: "Playback sessions that played to the end.",
		}),
		DecodeErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "playback", Name: "decode_errors_total",
			Help: "Buffers that could not be decoded.",
		}),
		PlaybackState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "playback", Name: "state",
			Help: "1 for the controller's current state, 0 otherwise.",
		}, []string{"state"}),
		SpeechRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "speech", Name: "requests_total",
			Help: "Speech backend calls by operation.",
		}, []string{"op"}),
		SpeechFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "speech", Name: "failures_total",
			Help: "Failed speech backend calls by operation.",
		}, []string{"op"}),
	}

	reg.MustRegister(
		m.RecordingsStarted, m.RecordingsFinished, m.RecordingsFailed, m.RecordedBytes, m.Recording,
		m.PlaybacksStarted, m.PlaybacksCompleted, m.DecodeErrors, m.PlaybackState,
		m.SpeechRequests, m.SpeechFailures,
	)

	if clients != nil {
		m.WSClients = prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "ws", Name: "clients",
			Help: "Connected websocket clients.",
		}, func() float64 { return float64(clients()) })
		reg.MustRegister(m.WSClients)
	}
	return m
}

// SetPlaybackState marks state as the only active playback state.
func (m *Metrics) SetPlaybackState(state string, all []string) {
	for _, s := range all {
		v := 0.0
		if s == state {
			v = 1
		}
		m.PlaybackState.WithLabelValues(s).Set(v)
	}
}

// Handler serves the registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry for tests and embedding.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.reg
}
