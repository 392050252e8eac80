package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.RecordTranscode(1)
	m.RecordTranscription("ok", 1)
	m.RecordVoiceSegments(3)
	m.RecordTurn("completed", 3)
	m.RecordFlushFailure()
	m.RecordHTTPRequest("POST", "/api/chat", "200", 0.1)
}

func TestRecordTranscription(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.RecordTranscription("ok", 0.5)
	m.RecordTranscription("transcode_timeout", 10)
	m.RecordTranscription("transcode_timeout", 10)

	if got := testutil.ToFloat64(m.Transcriptions.WithLabelValues("ok")); got != 1 {
		t.Errorf("ok transcriptions = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.Transcriptions.WithLabelValues("transcode_timeout")); got != 2 {
		t.Errorf("timeout transcriptions = %v, want 2", got)
	}
}

func TestRecordTurnAndFlushFailure(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.RecordTurn("interrupted", 1)
	m.RecordFlushFailure()

	if got := testutil.ToFloat64(m.Turns.WithLabelValues("interrupted")); got != 1 {
		t.Errorf("interrupted turns = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.MemoryFlushFailures); got != 1 {
		t.Errorf("flush failures = %v, want 1", got)
	}
}

func TestNewRegistersOnSeparateRegistries(t *testing.T) {
	// Two instances must not collide, so tests can build routers freely.
	_ = New(prometheus.NewRegistry())
	_ = New(prometheus.NewRegistry())
}
