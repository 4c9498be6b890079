package app

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/large-farva/voicememo/internal/capture"
	"github.com/large-farva/voicememo/internal/config"
	"github.com/large-farva/voicememo/internal/playback"
	"github.com/large-farva/voicememo/internal/wav"
)

type testApp struct {
	*App
	srv  *httptest.Server
	root string
}

func newTestApp(t *testing.T, open capture.Opener) *testApp {
	t.Helper()

	cfg := config.Default()
	cfg.Data.Root = t.TempDir()
	cfg.Capture.Device = "tone"
	cfg.Capture.ChunkFrames = 1024
	cfg.Playback.Output = "null"
	cfg.Playback.PollIntervalMS = 100

	renderer := playback.NewNullRenderer(10 * time.Millisecond)
	a, err := New(Options{
		Logger:   log.New(io.Discard, "", 0),
		Cfg:      cfg,
		Open:     open,
		Renderer: renderer,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	go a.hub.Run(ctx)
	go a.player.Run(ctx)

	srv := httptest.NewServer(a.routes())
	t.Cleanup(func() {
		srv.Close()
		_, _ = a.encoder.Stop()
		cancel()
		renderer.Close()
	})
	return &testApp{App: a, srv: srv, root: cfg.Data.Root}
}

func (ta *testApp) do(t *testing.T, method, path string, body any) (int, map[string]any) {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, ta.srv.URL+path, rd)
	require.NoError(t, err)
	req.Header.Set("Accept", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

// record captures roughly d of tone into the data root.
func (ta *testApp) record(t *testing.T, d time.Duration) map[string]any {
	t.Helper()
	code, out := ta.do(t, http.MethodPost, "/api/record/start", nil)
	require.Equal(t, http.StatusOK, code, out)
	time.Sleep(d)
	code, out = ta.do(t, http.MethodPost, "/api/record/stop", nil)
	require.Equal(t, http.StatusOK, code, out)
	return out
}

func TestHealthz(t *testing.T) {
	ta := newTestApp(t, capture.ToneOpener(440))

	resp, err := http.Get(ta.srv.URL + "/healthz")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, "ok\n", string(body))

	code, out := ta.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, out["healthy"])
}

func TestRecordStartStop(t *testing.T) {
	ta := newTestApp(t, capture.ToneOpener(440))

	code, out := ta.do(t, http.MethodPost, "/api/record/start", nil)
	require.Equal(t, http.StatusOK, code, out)
	path := out["path"].(string)
	assert.Equal(t, filepath.Join(ta.root, capture.FileName), path)

	code, out = ta.do(t, http.MethodPost, "/api/record/start", nil)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, false, out["ok"])

	_, status := ta.do(t, http.MethodGet, "/api/status", nil)
	assert.Equal(t, true, status["recording"].(map[string]any)["recording"])

	time.Sleep(150 * time.Millisecond)
	code, out = ta.do(t, http.MethodPost, "/api/record/stop", nil)
	require.Equal(t, http.StatusOK, code, out)
	assert.Greater(t, out["bytes"].(float64), 0.0)

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	info, err := wav.Inspect(f)
	require.NoError(t, err)
	assert.True(t, info.Finalized)
	assert.Equal(t, int64(out["bytes"].(float64)), info.DataBytes)

	code, out = ta.do(t, http.MethodPost, "/api/record/stop", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "not recording", out["message"])

	_, st := ta.do(t, http.MethodGet, "/api/stats", nil)
	assert.Equal(t, 1.0, st["stats"].(map[string]any)["recordings"])
}

func TestRecordIntoSubdirectory(t *testing.T) {
	ta := newTestApp(t, capture.ToneOpener(440))

	code, out := ta.do(t, http.MethodPost, "/api/record/start", map[string]any{"dir": "meetings/monday"})
	require.Equal(t, http.StatusOK, code, out)
	assert.Equal(t, filepath.Join(ta.root, "meetings", "monday", capture.FileName), out["path"])
	_, _ = ta.do(t, http.MethodPost, "/api/record/stop", nil)

	code, _ = ta.do(t, http.MethodPost, "/api/record/start", map[string]any{"dir": "../escape"})
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestRecordDeviceUnavailable(t *testing.T) {
	ta := newTestApp(t, func(capture.DeviceConfig) (capture.Device, error) {
		return nil, errors.New("no input device")
	})

	code, out := ta.do(t, http.MethodPost, "/api/record/start", nil)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Contains(t, out["error"], "no input device")

	_, err := os.Stat(filepath.Join(ta.root, capture.FileName))
	assert.True(t, os.IsNotExist(err))

	_, logs := ta.do(t, http.MethodGet, "/api/logs?level=error", nil)
	entries := logs["logs"].([]any)
	require.NotEmpty(t, entries)
	assert.Contains(t, entries[len(entries)-1].(map[string]any)["message"], "start recording")
}

func TestRecordingsListAndDelete(t *testing.T) {
	ta := newTestApp(t, capture.ToneOpener(440))
	ta.record(t, 100*time.Millisecond)

	code, out := ta.do(t, http.MethodGet, "/api/recordings", nil)
	require.Equal(t, http.StatusOK, code)
	recs := out["recordings"].([]any)
	require.Len(t, recs, 1)
	rec := recs[0].(map[string]any)
	assert.Equal(t, capture.FileName, rec["name"])
	assert.Equal(t, true, rec["finalized"])
	assert.Greater(t, rec["peak"].(float64), 0.4)

	code, _ = ta.do(t, http.MethodDelete, "/api/recordings?name=../../etc/passwd", nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = ta.do(t, http.MethodDelete, "/api/recordings?name="+capture.FileName, nil)
	assert.Equal(t, http.StatusOK, code)

	code, _ = ta.do(t, http.MethodDelete, "/api/recordings?name="+capture.FileName, nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestPlayRecordingAndTransport(t *testing.T) {
	ta := newTestApp(t, capture.ToneOpener(440))
	ta.record(t, 1200*time.Millisecond)

	code, out := ta.do(t, http.MethodPost, "/api/playback/play", map[string]any{"name": capture.FileName})
	require.Equal(t, http.StatusOK, code, out)
	assert.Equal(t, "PLAYING", out["playback"].(map[string]any)["state"])

	code, out = ta.do(t, http.MethodPost, "/api/playback/pause", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "PAUSED", out["playback"].(map[string]any)["state"])

	code, out = ta.do(t, http.MethodPost, "/api/playback/resume", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "PLAYING", out["playback"].(map[string]any)["state"])

	code, out = ta.do(t, http.MethodPost, "/api/playback/stop", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "IDLE", out["playback"].(map[string]any)["state"])

	code, _ = ta.do(t, http.MethodPost, "/api/playback/play", map[string]any{"name": "missing.wav"})
	assert.Equal(t, http.StatusNotFound, code)
}

func TestPlayUndecodableUpload(t *testing.T) {
	ta := newTestApp(t, capture.ToneOpener(440))

	junk := base64.StdEncoding.EncodeToString([]byte(strings.Repeat("not audio ", 20)))
	code, out := ta.do(t, http.MethodPost, "/api/playback/play", map[string]any{"audio_base64": junk})
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	assert.Equal(t, false, out["ok"])

	code, _ = ta.do(t, http.MethodPost, "/api/playback/play", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, code)

	_, st := ta.do(t, http.MethodGet, "/api/stats", nil)
	assert.Equal(t, 1.0, st["stats"].(map[string]any)["decode_errors"])
	assert.Equal(t, playback.Idle, ta.player.State())
}

func TestSpeakPlaysSynthesizedAudio(t *testing.T) {
	ta := newTestApp(t, capture.ToneOpener(440))

	code, out := ta.do(t, http.MethodPost, "/api/speak", map[string]any{"text": "read this back to me"})
	require.Equal(t, http.StatusOK, code, out)
	pb := out["playback"].(map[string]any)
	assert.Equal(t, "PLAYING", pb["state"])
	assert.Equal(t, 1250.0, pb["duration_ms"])

	code, _ = ta.do(t, http.MethodPost, "/api/speak", map[string]any{"text": "  "})
	assert.Equal(t, http.StatusBadRequest, code)

	_, st := ta.do(t, http.MethodGet, "/api/stats", nil)
	assert.Equal(t, 1.0, st["stats"].(map[string]any)["syntheses"])
}

func TestTranscribeRecording(t *testing.T) {
	ta := newTestApp(t, capture.ToneOpener(440))

	code, _ := ta.do(t, http.MethodPost, "/api/transcribe", nil)
	assert.Equal(t, http.StatusNotFound, code)

	ta.record(t, 100*time.Millisecond)
	code, out := ta.do(t, http.MethodPost, "/api/transcribe", nil)
	require.Equal(t, http.StatusOK, code, out)
	tr := out["transcript"].(map[string]any)
	assert.Contains(t, tr["text"], "of audio")
	assert.Equal(t, "en-US", tr["language"])
}

func TestMethodNotAllowed(t *testing.T) {
	ta := newTestApp(t, capture.ToneOpener(440))

	resp, err := http.Get(ta.srv.URL + "/api/record/start")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestMetricsEndpoint(t *testing.T) {
	ta := newTestApp(t, capture.ToneOpener(440))
	ta.record(t, 50*time.Millisecond)

	resp, err := http.Get(ta.srv.URL + "/metrics")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()

	assert.Contains(t, string(body), "voicememo_capture_sessions_started_total 1")
	assert.Contains(t, string(body), "voicememo_capture_sessions_finished_total 1")
	assert.Contains(t, string(body), `voicememo_playback_state{state="IDLE"} 1`)
}

func TestLogLevelGating(t *testing.T) {
	ta := newTestApp(t, capture.ToneOpener(440))
	ta.cfgMu.Lock()
	ta.cfg.Logging.Level = "warn"
	ta.cfgMu.Unlock()

	ta.logf("info", "hidden")
	ta.logf("warn", "shown")

	_, out := ta.do(t, http.MethodGet, "/api/logs", nil)
	var msgs []string
	for _, e := range out["logs"].([]any) {
		msgs = append(msgs, e.(map[string]any)["message"].(string))
	}
	assert.Contains(t, msgs, "shown")
	assert.NotContains(t, msgs, "hidden")
}

func TestLogRingIsBounded(t *testing.T) {
	r := &logRing{max: 3}
	for _, m := range []string{"a", "b", "c", "d", "e"} {
		r.add(logEntry{Message: m})
	}
	got := r.snapshot()
	require.Len(t, got, 3)
	assert.Equal(t, "c", got[0].Message)
	assert.Equal(t, "e", got[2].Message)
}

func TestSystemReportsDiskForDataRoot(t *testing.T) {
	ta := newTestApp(t, capture.ToneOpener(440))

	code, out := ta.do(t, http.MethodGet, "/api/system", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, ta.root, out["data_root"])
	assert.Equal(t, "tone", out["capture_device"])
	assert.Contains(t, out, "host")

	du, ok := out["disk"].(map[string]any)
	require.True(t, ok, out)
	assert.Greater(t, du["total_bytes"].(float64), 0.0)
	avail := du["available_bytes"].(float64)
	assert.InDelta(t, avail/float64(wav.ByteRate), du["record_seconds"].(float64), 1)
}
