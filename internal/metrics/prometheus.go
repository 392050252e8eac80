package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the assistant backend.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	// Speech-to-text pipeline
	TranscodeDuration     prometheus.Histogram
	Transcriptions        *prometheus.CounterVec
	TranscriptionDuration prometheus.Histogram

	// Voice activity detection
	VoiceSegments prometheus.Histogram

	// Conversational turns
	Turns               *prometheus.CounterVec
	TurnChunks          prometheus.Histogram
	MemoryFlushFailures prometheus.Counter

	// HTTP API
	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// New creates all metrics and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		TranscodeDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "samanta_transcode_duration_seconds",
			Help:    "Time spent in the ffmpeg normalization step",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 11), // 10ms to ~10s
		}),
		Transcriptions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "samanta_transcriptions_total",
			Help: "Total number of transcription pipeline runs by outcome",
		}, []string{"outcome"}),
		TranscriptionDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "samanta_transcription_duration_seconds",
			Help:    "End-to-end duration of transcription pipeline runs",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10), // 50ms to ~25s
		}),
		VoiceSegments: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "samanta_voice_segments",
			Help:    "Number of voice segments detected per request",
			Buckets: prometheus.LinearBuckets(0, 2, 10),
		}),
		Turns: f.NewCounterVec(prometheus.CounterOpts{
			Name: "samanta_turns_total",
			Help: "Total number of chat turns by outcome",
		}, []string{"outcome"}),
		TurnChunks: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "samanta_turn_chunks",
			Help:    "Number of content chunks emitted per chat turn",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10), // 1 to 512
		}),
		MemoryFlushFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "samanta_memory_flush_failures_total",
			Help: "Total number of failed session memory flushes",
		}),
		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "samanta_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "route", "status"}),
		HTTPRequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "samanta_http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
}

// RecordTranscode records the duration of one ffmpeg run.
func (m *Metrics) RecordTranscode(seconds float64) {
	if m == nil {
		return
	}
	m.TranscodeDuration.Observe(seconds)
}

// RecordTranscription records a finished pipeline run.
func (m *Metrics) RecordTranscription(outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.Transcriptions.WithLabelValues(outcome).Inc()
	m.TranscriptionDuration.Observe(seconds)
}

// RecordVoiceSegments records how many segments one detection produced.
func (m *Metrics) RecordVoiceSegments(count int) {
	if m == nil {
		return
	}
	m.VoiceSegments.Observe(float64(count))
}

// RecordTurn records a finished chat turn.
func (m *Metrics) RecordTurn(outcome string, chunks int) {
	if m == nil {
		return
	}
	m.Turns.WithLabelValues(outcome).Inc()
	m.TurnChunks.Observe(float64(chunks))
}

// RecordFlushFailure increments the memory flush failure counter.
func (m *Metrics) RecordFlushFailure() {
	if m == nil {
		return
	}
	m.MemoryFlushFailures.Inc()
}

// RecordHTTPRequest records an HTTP request.
func (m *Metrics) RecordHTTPRequest(method, route, status string, seconds float64) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(method, route, status).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, route).Observe(seconds)
}
