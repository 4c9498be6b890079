package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/large-farva/voicememo/internal/capture"
	"github.com/large-farva/voicememo/internal/playback"
	"github.com/large-farva/voicememo/internal/speech"
	"github.com/large-farva/voicememo/internal/wav"
)

// maxAudioBody bounds uploaded audio on /api/playback/play.
const maxAudioBody = 64 << 20

// ---------------------------------------------------------------------------
// Core handlers
// ---------------------------------------------------------------------------

func (a *App) handleHealthz(w http.ResponseWriter, r *http.Request) {
	// If the client asks for JSON, return component-level health checks.
	if r.Header.Get("Accept") == "application/json" {
		a.handleHealthDetailed(w, r)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok\n"))
}

func (a *App) handleStatus(w http.ResponseWriter, _ *http.Request) {
	cfg := a.getConfig()

	resp := map[string]any{
		"name":           "voicememo",
		"uptime_seconds": int64(time.Since(a.startedAt).Seconds()),
		"data_root":      cfg.Data.Root,
		"recording":      a.encoder.Status(),
		"playback":       a.player.Status(),
		"ws_clients":     a.hub.Clients(),
	}
	if du := diskUsage(cfg.Data.Root); du != nil {
		resp["disk"] = du
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *App) handleVersion(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"version":    Version,
		"go_version": GoVersion,
		"built_at":   BuiltAt,
	})
}

func (a *App) handleConfig(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, a.getConfig())
}

func (a *App) handleSystem(w http.ResponseWriter, _ *http.Request) {
	cfg := a.getConfig()

	resp := map[string]any{
		"go_version":      runtime.Version(),
		"os":              runtime.GOOS,
		"arch":            runtime.GOARCH,
		"data_root":       cfg.Data.Root,
		"config_path":     a.configPath,
		"capture_device":  cfg.Capture.Device,
		"playback_output": cfg.Playback.Output,
		"speech_backend":  cfg.Speech.Backend,
		"host":            hostInfo(),
	}
	if du := diskUsage(cfg.Data.Root); du != nil {
		resp["disk"] = du
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *App) handleLogs(w http.ResponseWriter, r *http.Request) {
	entries := a.logs.snapshot()

	if level := r.URL.Query().Get("level"); level != "" {
		var filtered []logEntry
		for _, e := range entries {
			if e.Level == level {
				filtered = append(filtered, e)
			}
		}
		entries = filtered
	}

	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if n, err := strconv.Atoi(limitStr); err == nil && n > 0 && n < len(entries) {
			entries = entries[len(entries)-n:]
		}
	}
	if entries == nil {
		entries = []logEntry{}
	}

	writeJSON(w, http.StatusOK, map[string]any{"logs": entries})
}

func (a *App) handleStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"stats":          a.stats.snapshot(),
		"uptime_seconds": int64(time.Since(a.startedAt).Seconds()),
	})
}

func (a *App) handleHealthDetailed(w http.ResponseWriter, _ *http.Request) {
	cfg := a.getConfig()

	checks := map[string]any{}
	allOK := true

	// Data directory must accept new files.
	tmpPath := filepath.Join(cfg.Data.Root, ".healthcheck")
	if err := os.WriteFile(tmpPath, []byte("ok"), 0o644); err != nil {
		checks["data_dir"] = map[string]any{"ok": false, "error": err.Error()}
		allOK = false
	} else {
		_ = os.Remove(tmpPath)
		checks["data_dir"] = map[string]any{"ok": true, "path": cfg.Data.Root}
	}

	// The controller goroutine must answer within a second.
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	st := make(chan playback.Status, 1)
	go func() { st <- a.player.Status() }()
	select {
	case s := <-st:
		checks["playback"] = map[string]any{"ok": true, "state": s.State}
	case <-ctx.Done():
		checks["playback"] = map[string]any{"ok": false, "error": "controller not responding"}
		allOK = false
	}

	checks["capture"] = map[string]any{"ok": true, "device": cfg.Capture.Device, "recording": a.encoder.IsRecording()}

	if a.configPath != "" {
		if _, err := os.Stat(a.configPath); err != nil {
			checks["config_file"] = map[string]any{"ok": false, "error": err.Error()}
			allOK = false
		} else {
			checks["config_file"] = map[string]any{"ok": true, "path": a.configPath}
		}
	}

	status := http.StatusOK
	if !allOK {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]any{
		"healthy": allOK,
		"checks":  checks,
	})
}

// ---------------------------------------------------------------------------
// Recording
// ---------------------------------------------------------------------------

func (a *App) handleRecordStart(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Dir string `json:"dir"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	root := a.getConfig().Data.Root
	dir := root
	if req.Dir != "" {
		var err error
		if dir, err = resolveName(root, req.Dir); err != nil {
			jsonError(w, err.Error(), http.StatusBadRequest)
			return
		}
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	path, err := a.encoder.Start(dir)
	if err != nil {
		a.logf("error", "start recording: %v", err)
		jsonError(w, err.Error(), captureStatus(err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "path": path})
}

func (a *App) handleRecordStop(w http.ResponseWriter, _ *http.Request) {
	res, err := a.encoder.Stop()
	if err != nil {
		a.logf("error", "stop recording: %v", err)
		jsonError(w, err.Error(), captureStatus(err))
		return
	}
	if res.Path == "" {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "message": "not recording"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":          true,
		"session_id":  res.SessionID,
		"path":        res.Path,
		"bytes":       res.Bytes,
		"duration_ms": res.Duration.Milliseconds(),
	})
}

type recordingInfo struct {
	Name       string    `json:"name"`
	Size       int64     `json:"size"`
	ModifiedAt time.Time `json:"modified_at"`
	Active     bool      `json:"active"`
	Finalized  bool      `json:"finalized"`
	DurationMs int64     `json:"duration_ms"`
	Peak       float64   `json:"peak"`
	Error      string    `json:"error,omitempty"`
}

func (a *App) handleRecordings(w http.ResponseWriter, r *http.Request) {
	root := a.getConfig().Data.Root

	switch r.Method {
	case http.MethodGet:
	case http.MethodDelete:
		a.deleteRecording(w, r, root)
		return
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	active := ""
	if a.encoder.IsRecording() {
		active = a.encoder.Path()
	}

	recs := []recordingInfo{}
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || !strings.EqualFold(filepath.Ext(path), ".wav") {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return nil
		}
		fi, err := d.Info()
		if err != nil {
			return nil
		}
		ri := recordingInfo{Name: filepath.ToSlash(rel), Size: fi.Size(), ModifiedAt: fi.ModTime().UTC(), Active: path == active}
		if !ri.Active {
			if info, err := inspectFile(path); err != nil {
				ri.Error = err.Error()
			} else {
				ri.Finalized = info.Finalized
				ri.DurationMs = info.Duration.Milliseconds()
				ri.Peak = info.Peak
			}
		}
		recs = append(recs, ri)
		return nil
	})
	sort.Slice(recs, func(i, j int) bool { return recs[i].Name < recs[j].Name })

	writeJSON(w, http.StatusOK, map[string]any{"recordings": recs})
}

func (a *App) deleteRecording(w http.ResponseWriter, r *http.Request, root string) {
	name := r.URL.Query().Get("name")
	if name == "" {
		jsonError(w, "name parameter required", http.StatusBadRequest)
		return
	}
	path, err := resolveName(root, name)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if a.encoder.IsRecording() && path == a.encoder.Path() {
		jsonError(w, "recording in progress", http.StatusConflict)
		return
	}
	if err := os.Remove(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			jsonError(w, "file not found", http.StatusNotFound)
		} else {
			jsonError(w, err.Error(), http.StatusInternalServerError)
		}
		return
	}
	a.logf("info", "deleted recording %s", name)
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "message": "deleted " + name})
}

// ---------------------------------------------------------------------------
// Playback
// ---------------------------------------------------------------------------

func (a *App) handlePlay(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name        string `json:"name"`
		AudioBase64 string `json:"audio_base64"`
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxAudioBody)
	if !decodeBody(w, r, &req) {
		return
	}

	var (
		data   []byte
		source string
		err    error
	)
	switch {
	case req.AudioBase64 != "":
		source = "upload"
		if data, err = speech.DecodeAudio(req.AudioBase64); err != nil {
			jsonError(w, err.Error(), http.StatusBadRequest)
			return
		}
	case req.Name != "":
		source = req.Name
		if data, err = a.readRecording(req.Name); err != nil {
			jsonError(w, err.Error(), fileStatus(err))
			return
		}
	default:
		jsonError(w, "name or audio_base64 required", http.StatusBadRequest)
		return
	}

	a.startPlayback(w, source, data)
}

func (a *App) handleTransport(op func()) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		op()
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "playback": a.player.Status()})
	}
}

// startPlayback hands data to the controller and reports a decode failure
// synchronously, since the controller delivers it before Play returns.
func (a *App) startPlayback(w http.ResponseWriter, source string, data []byte) {
	decodeFailed := make(chan error, 1)
	ended := a.playbackEnded(source)
	a.player.Play(data, func(err error) {
		ended(err)
		var decErr *playback.DecodeError
		if errors.As(err, &decErr) {
			select {
			case decodeFailed <- err:
			default:
			}
		}
	})

	select {
	case err := <-decodeFailed:
		jsonError(w, err.Error(), http.StatusUnprocessableEntity)
	default:
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "source": source, "playback": a.player.Status()})
	}
}

// ---------------------------------------------------------------------------
// Speech
// ---------------------------------------------------------------------------

func (a *App) handleTranscribe(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name     string `json:"name"`
		Language string `json:"language"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	cfg := a.getConfig()
	if req.Name == "" {
		req.Name = capture.FileName
	}
	if req.Language == "" {
		req.Language = cfg.Speech.Language
	}

	path, err := resolveName(cfg.Data.Root, req.Name)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if a.encoder.IsRecording() && path == a.encoder.Path() {
		jsonError(w, "recording in progress", http.StatusConflict)
		return
	}
	if _, err := os.Stat(path); err != nil {
		jsonError(w, err.Error(), fileStatus(err))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), cfg.Speech.Timeout())
	defer cancel()

	a.metrics.SpeechRequests.WithLabelValues("recognize").Inc()
	tr, err := a.rec.Recognize(ctx, path, req.Language)
	if err != nil {
		a.speechFailed("recognize", err)
		jsonError(w, err.Error(), http.StatusBadGateway)
		return
	}
	a.stats.mu.Lock()
	a.stats.Transcriptions++
	a.stats.mu.Unlock()

	a.logf("info", "transcribed %s (%d chars)", req.Name, len(tr.Text))
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "name": req.Name, "transcript": tr})
}

func (a *App) handleSpeak(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text  string `json:"text"`
		Voice string `json:"voice"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		jsonError(w, "text required", http.StatusBadRequest)
		return
	}
	cfg := a.getConfig()
	if req.Voice == "" {
		req.Voice = cfg.Speech.Voice
	}

	ctx, cancel := context.WithTimeout(r.Context(), cfg.Speech.Timeout())
	defer cancel()

	a.metrics.SpeechRequests.WithLabelValues("synthesize").Inc()
	audio, err := a.synth.Synthesize(ctx, req.Text, req.Voice)
	if err != nil {
		a.speechFailed("synthesize", err)
		jsonError(w, err.Error(), http.StatusBadGateway)
		return
	}
	a.stats.mu.Lock()
	a.stats.Syntheses++
	a.stats.mu.Unlock()

	a.startPlayback(w, "speech", audio)
}

func (a *App) speechFailed(op string, err error) {
	a.metrics.SpeechFailures.WithLabelValues(op).Inc()
	a.stats.mu.Lock()
	a.stats.SpeechFailures++
	a.stats.mu.Unlock()
	a.logf("error", "%s: %v", op, err)
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func postOnly(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h(w, r)
	}
}

// decodeBody fills v from a JSON body. An empty body leaves v untouched.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		jsonError(w, "bad request: "+err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

// resolveName joins a client-supplied relative name onto root, refusing
// anything that would escape it.
func resolveName(root, name string) (string, error) {
	if !filepath.IsLocal(filepath.FromSlash(name)) {
		return "", fmt.Errorf("%w %q", errInvalidName, name)
	}
	return filepath.Join(root, filepath.FromSlash(name)), nil
}

func (a *App) readRecording(name string) ([]byte, error) {
	path, err := resolveName(a.getConfig().Data.Root, name)
	if err != nil {
		return nil, err
	}
	if a.encoder.IsRecording() && path == a.encoder.Path() {
		return nil, errRecordingActive
	}
	return os.ReadFile(path)
}

var (
	errRecordingActive = errors.New("recording in progress")
	errInvalidName     = errors.New("invalid name")
)

func inspectFile(path string) (wav.Info, error) {
	f, err := os.Open(path)
	if err != nil {
		return wav.Info{}, err
	}
	defer f.Close()
	return wav.Inspect(f)
}

func captureStatus(err error) int {
	switch {
	case errors.Is(err, capture.ErrAlreadyRecording):
		return http.StatusConflict
	case errors.Is(err, capture.ErrDeviceUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func fileStatus(err error) int {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return http.StatusNotFound
	case errors.Is(err, errRecordingActive):
		return http.StatusConflict
	case errors.Is(err, errInvalidName):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// jsonError writes a JSON error response.
func jsonError(w http.ResponseWriter, msg string, code int) {
	writeJSON(w, code, map[string]any{
		"ok":    false,
		"error": msg,
	})
}
