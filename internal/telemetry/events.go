// Package telemetry defines the typed event structs that flow over the
// WebSocket connection between voicememod and its clients. Every component
// publishes through these constructors so the wire schema lives in one place.
package telemetry

import "time"

// EventType identifies the kind of WebSocket event.
type EventType string

const (
	EventHeartbeat EventType = "heartbeat"
	EventState     EventType = "state"
	EventProgress  EventType = "progress"
	EventLog       EventType = "log"
	EventRecording EventType = "recording"
)

// Publisher accepts events for fan-out. *ws.Hub satisfies it.
type Publisher interface {
	BroadcastJSON(v any)
}

// Event is the base envelope shared by every event type.
type Event struct {
	Type      EventType `json:"type"`
	TS        string    `json:"ts"`
	Component string    `json:"component,omitempty"`
}

// NowTS returns the current UTC time as an RFC 3339 nano string, matching the
// timestamp format used across all events.
func NowTS() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

func envelope(t EventType, component string) Event {
	return Event{Type: t, TS: NowTS(), Component: component}
}

// Heartbeat is sent periodically so clients can detect connectivity and
// monitor daemon uptime.
type Heartbeat struct {
	Event
	Recording     bool   `json:"recording"`
	Playback      string `json:"playback"`
	UptimeSeconds int64  `json:"uptime_seconds"`
}

func NewHeartbeat(recording bool, playback string, uptime time.Duration) Heartbeat {
	return Heartbeat{
		Event:         envelope(EventHeartbeat, "voicememod"),
		Recording:     recording,
		Playback:      playback,
		UptimeSeconds: int64(uptime.Seconds()),
	}
}

// StateTransition is emitted whenever a component moves between states
// (e.g. playback PLAYING -> PAUSED).
type StateTransition struct {
	Event
	From string `json:"from"`
	To   string `json:"to"`
}

func NewState(component, from, to string) StateTransition {
	return StateTransition{Event: envelope(EventState, component), From: from, To: to}
}

// Progress reports incremental completion of a long-running phase like
// recording or playback.
type Progress struct {
	Event
	Stage   string  `json:"stage"`
	Percent float64 `json:"percent"`
	Detail  string  `json:"detail"`
}

func NewProgress(component, stage string, percent float64, detail string) Progress {
	return Progress{Event: envelope(EventProgress, component), Stage: stage, Percent: percent, Detail: detail}
}

// LogLine carries a human-readable log message at a severity level.
type LogLine struct {
	Event
	Level   string `json:"level"`
	Message string `json:"message"`
}

func NewLog(component, level, message string) LogLine {
	return LogLine{Event: envelope(EventLog, component), Level: level, Message: message}
}

// Recording announces capture session lifecycle changes.
type Recording struct {
	Event
	Action    string `json:"action"` // started, stopped, failed
	SessionID string `json:"session_id"`
	Path      string `json:"path"`
	Bytes     int64  `json:"bytes"`
	Error     string `json:"error,omitempty"`
}

func NewRecording(action, sessionID, path string, bytes int64, err error) Recording {
	r := Recording{
		Event:     envelope(EventRecording, "capture"),
		Action:    action,
		SessionID: sessionID,
		Path:      path,
		Bytes:     bytes,
	}
	if err != nil {
		r.Error = err.Error()
	}
	return r
}
