package metrics

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlaybackStateIsExclusive(t *testing.T) {
	m := New(nil)
	all := []string{"IDLE", "PREPARING", "PLAYING", "PAUSED"}

	m.SetPlaybackState("PLAYING", all)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PlaybackState.WithLabelValues("PLAYING")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.PlaybackState.WithLabelValues("IDLE")))

	m.SetPlaybackState("IDLE", all)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.PlaybackState.WithLabelValues("PLAYING")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PlaybackState.WithLabelValues("IDLE")))
}

func TestHandlerServesCounters(t *testing.T) {
	m := New(func() int { return 3 })
	m.RecordingsStarted.Inc()
	m.RecordedBytes.Add(88200)
	m.SpeechRequests.WithLabelValues("synthesize").Inc()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)

	assert.Contains(t, string(body), "voicememo_capture_sessions_started_total 1")
	assert.Contains(t, string(body), "voicememo_capture_pcm_bytes_total 88200")
	assert.Contains(t, string(body), `voicememo_speech_requests_total{op="synthesize"} 1`)
	assert.Contains(t, string(body), "voicememo_ws_clients 3")
}
