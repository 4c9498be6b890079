package playback

// State is the playback controller's position in its lifecycle.
type State int32

const (
	Idle State = iota
	Preparing
	Playing
	Paused
)

func (s State) String() string {
	switch s {
	case Idle:
		return "IDLE"
	case Preparing:
		return "PREPARING"
	case Playing:
		return "PLAYING"
	case Paused:
		return "PAUSED"
	default:
		return "UNKNOWN"
	}
}

// ProgressFunc receives the current position and total duration in
// milliseconds. It runs on the controller goroutine and must not block.
type ProgressFunc func(positionMs, durationMs int64)

// EndFunc is called exactly once per session: with nil when the stream
// played to the end, or with the error that stopped it (a *DecodeError
// when the buffer could not be parsed). It is never called for a session
// that was stopped or replaced. It runs on the controller goroutine and
// must not call back into the Controller.
type EndFunc func(err error)
