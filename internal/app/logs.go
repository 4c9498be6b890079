package app

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/large-farva/voicememo/internal/playback"
	"github.com/large-farva/voicememo/internal/telemetry"
	"github.com/large-farva/voicememo/internal/ws"
)

const logBufSize = 500

var levelRank = map[string]int{"debug": 0, "info": 1, "warn": 2, "error": 3}

// logEntry is one line kept for /api/logs.
type logEntry struct {
	TS        string `json:"ts"`
	Level     string `json:"level"`
	Component string `json:"component"`
	Message   string `json:"message"`
}

// logRing is a bounded FIFO of log entries.
type logRing struct {
	mu      sync.Mutex
	entries []logEntry
	max     int
}

func (r *logRing) add(e logEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, e)
	if over := len(r.entries) - r.max; over > 0 {
		r.entries = append(r.entries[:0], r.entries[over:]...)
	}
}

func (r *logRing) snapshot() []logEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]logEntry, len(r.entries))
	copy(out, r.entries)
	return out
}

// counters are the aggregates served by /api/stats.
type counters struct {
	Recordings      int       `json:"recordings"`
	RecordingsFail  int       `json:"recordings_failed"`
	RecordedBytes   int64     `json:"recorded_bytes"`
	LastRecordingAt time.Time `json:"last_recording_at,omitzero"`

	Playbacks      int       `json:"playbacks"`
	PlaybacksDone  int       `json:"playbacks_completed"`
	DecodeErrors   int       `json:"decode_errors"`
	LastPlaybackAt time.Time `json:"last_playback_at,omitzero"`
	Transcriptions int       `json:"transcriptions"`
	Syntheses      int       `json:"syntheses"`
	SpeechFailures int       `json:"speech_failures"`
}

type stats struct {
	mu sync.Mutex
	counters
}

func (s *stats) snapshot() counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counters
}

// bus sits between the components and the hub. It records log events,
// keeps stats and metrics in step with recording and state events, and
// drops log events below the configured level.
type bus struct {
	a   *App
	hub *ws.Hub
}

func (b bus) BroadcastJSON(v any) {
	a := b.a
	switch ev := v.(type) {
	case telemetry.LogLine:
		if !a.levelEnabled(ev.Level) {
			return
		}
		a.logs.add(logEntry{TS: ev.TS, Level: ev.Level, Component: ev.Component, Message: ev.Message})

	case telemetry.Recording:
		a.observeRecording(ev)

	case telemetry.StateTransition:
		if ev.Component == "playback" {
			a.observePlaybackState(ev)
		}
	}
	b.hub.BroadcastJSON(v)
}

func (a *App) levelEnabled(level string) bool {
	want, ok := levelRank[a.getConfig().Logging.Level]
	if !ok {
		want = levelRank["info"]
	}
	have, ok := levelRank[level]
	if !ok {
		return true
	}
	return have >= want
}

// logf prints through the daemon logger and publishes a log event, both
// subject to the configured level.
func (a *App) logf(level, format string, args ...any) {
	if !a.levelEnabled(level) {
		return
	}
	msg := fmt.Sprintf(format, args...)
	a.log.Printf("%s: %s", level, msg)
	a.bus.BroadcastJSON(telemetry.NewLog("voicememod", level, msg))
}

func (a *App) observeRecording(ev telemetry.Recording) {
	a.stats.mu.Lock()
	defer a.stats.mu.Unlock()

	switch ev.Action {
	case "started":
		a.metrics.RecordingsStarted.Inc()
		a.metrics.Recording.Set(1)
	case "stopped":
		a.stats.Recordings++
		a.stats.RecordedBytes += ev.Bytes
		a.stats.LastRecordingAt = time.Now().UTC()
		a.metrics.RecordingsFinished.Inc()
		a.metrics.RecordedBytes.Add(float64(ev.Bytes))
		a.metrics.Recording.Set(0)
	case "failed":
		a.stats.RecordingsFail++
		a.metrics.RecordingsFailed.Inc()
		a.metrics.Recording.Set(0)
	}
}

var playbackStates = []string{
	playback.Idle.String(), playback.Preparing.String(),
	playback.Playing.String(), playback.Paused.String(),
}

func (a *App) observePlaybackState(ev telemetry.StateTransition) {
	a.metrics.SetPlaybackState(ev.To, playbackStates)
	if ev.From == playback.Preparing.String() && ev.To == playback.Playing.String() {
		a.metrics.PlaybacksStarted.Inc()
		a.stats.mu.Lock()
		a.stats.Playbacks++
		a.stats.LastPlaybackAt = time.Now().UTC()
		a.stats.mu.Unlock()
	}
}

// playbackEnded is the EndFunc handed to every Play call the daemon makes.
func (a *App) playbackEnded(source string) playback.EndFunc {
	return func(err error) {
		a.stats.mu.Lock()
		defer a.stats.mu.Unlock()

		var decErr *playback.DecodeError
		switch {
		case err == nil:
			a.stats.PlaybacksDone++
			a.metrics.PlaybacksCompleted.Inc()
			a.log.Printf("info: playback of %s finished", source)
		case errors.As(err, &decErr):
			a.stats.DecodeErrors++
			a.metrics.DecodeErrors.Inc()
			a.log.Printf("error: playback of %s: %v", source, err)
		default:
			a.log.Printf("error: playback of %s: %v", source, err)
		}
	}
}
