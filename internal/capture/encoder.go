// Package capture records the input device into a WAV file. An Encoder owns
// at most one session: Start writes a provisional header and launches a
// drain goroutine that appends device chunks verbatim; Stop joins that
// goroutine and patches the header sizes from the final file length.
package capture

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/large-farva/voicememo/internal/telemetry"
	"github.com/large-farva/voicememo/internal/wav"
)

// FileName is the fixed name of the recording inside the destination
// directory. Every Start overwrites it.
const FileName = "recording.wav"

const progressInterval = 2 * time.Second

// Options configures an Encoder.
type Options struct {
	Open   Opener
	Config DeviceConfig
	Log    *log.Logger
	Hub    telemetry.Publisher // optional
}

// Encoder streams device audio into a WAV file. It is safe for concurrent
// use.
type Encoder struct {
	open Opener
	cfg  DeviceConfig
	log  *log.Logger
	hub  telemetry.Publisher

	// mu guards session and is held across Stop's join so a new Start
	// cannot overlap a finishing session.
	mu       sync.Mutex
	session  *session
	lastPath atomic.Value // string

	errs   chan error
	create func(path string) (sinkFile, error)
}

// sinkFile is the subset of *os.File the encoder writes through.
type sinkFile interface {
	io.Writer
	wav.Patcher
	Sync() error
	Close() error
}

func createFile(path string) (sinkFile, error) {
	return os.Create(path)
}

type session struct {
	id        string
	path      string
	device    Device
	sink      sinkFile
	startedAt time.Time

	running atomic.Bool
	written atomic.Int64
	done    chan struct{}

	// Set by the drain goroutine before done is closed.
	err      error
	aborted  bool // sink failed; resources already released, header untouched
	reported bool // err already delivered on the Errors channel
}

// Status is a point-in-time snapshot of the encoder.
type Status struct {
	Recording bool      `json:"recording"`
	SessionID string    `json:"session_id,omitempty"`
	Path      string    `json:"path,omitempty"`
	Bytes     int64     `json:"bytes"`
	StartedAt time.Time `json:"started_at,omitzero"`
}

// Result describes a session that Stop finalized.
type Result struct {
	SessionID string        `json:"session_id"`
	Path      string        `json:"path"`
	Bytes     int64         `json:"bytes"`
	Duration  time.Duration `json:"duration_ns"`
}

// New creates an idle Encoder. Only ChunkFrames is taken from
// opts.Config; the sample rate and channel count always match the header.
func New(opts Options) *Encoder {
	opts.Config = DefaultDeviceConfig(opts.Config.ChunkFrames)
	if opts.Log == nil {
		opts.Log = log.New(os.Stderr, "capture ", log.LstdFlags)
	}
	e := &Encoder{
		open:   opts.Open,
		cfg:    opts.Config,
		log:    opts.Log,
		hub:    opts.Hub,
		errs:   make(chan error, 1),
		create: createFile,
	}
	e.lastPath.Store("")
	return e
}

// Errors delivers sink failures that happen while no Stop is pending.
func (e *Encoder) Errors() <-chan error {
	return e.errs
}

// Path returns the destination of the current or most recent session.
func (e *Encoder) Path() string {
	return e.lastPath.Load().(string)
}

// IsRecording reports whether a session is actively draining.
func (e *Encoder) IsRecording() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.session != nil && !e.session.finished()
}

// Status returns a snapshot of the current session, if any.
func (e *Encoder) Status() Status {
	e.mu.Lock()
	s := e.session
	e.mu.Unlock()

	st := Status{Path: e.Path()}
	if s == nil || s.finished() {
		return st
	}
	st.Recording = true
	st.SessionID = s.id
	st.Bytes = s.written.Load()
	st.StartedAt = s.startedAt
	return st
}

// Start opens the device, creates dir/recording.wav with a zeroed header,
// and begins draining in the background. It returns the absolute path of
// the file immediately.
func (e *Encoder) Start(dir string) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.session != nil {
		if !e.session.finished() {
			return "", ErrAlreadyRecording
		}
		// The previous session ended on its own (device failure or sink
		// abort) and nobody called Stop yet.
		if _, err := e.finish(e.session); err != nil {
			e.log.Printf("capture: finalize previous session: %v", err)
		}
		e.session = nil
	}

	if e.open == nil {
		return "", fmt.Errorf("%w: no device configured", ErrDeviceUnavailable)
	}
	dev, err := e.open(e.cfg)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}

	abs, err := filepath.Abs(dir)
	if err != nil {
		_ = dev.Close()
		return "", fmt.Errorf("resolve destination: %w", err)
	}
	path := filepath.Join(abs, FileName)
	e.lastPath.Store(path)

	f, err := e.create(path)
	if err != nil {
		_ = dev.Close()
		return "", &SinkError{Op: "create", Path: path, Err: err}
	}
	if err := wav.WriteHeader(f); err != nil {
		_ = f.Close()
		_ = dev.Close()
		return "", &SinkError{Op: "header", Path: path, Err: err}
	}

	s := &session{
		id:        uuid.NewString(),
		path:      path,
		device:    dev,
		sink:      f,
		startedAt: time.Now(),
		done:      make(chan struct{}),
	}
	s.running.Store(true)
	e.session = s

	go e.drain(s)

	e.log.Printf("capture: recording started session=%s path=%s", s.id, path)
	e.publish(telemetry.NewState("capture", "IDLE", "RECORDING"))
	e.publish(telemetry.NewRecording("started", s.id, path, 0, nil))
	return path, nil
}

// Stop ends the active session: it waits for the drain goroutine to exit,
// patches the header, closes the file, and releases the device. Stop with
// no active session is a no-op.
func (e *Encoder) Stop() (Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	s := e.session
	if s == nil {
		return Result{}, nil
	}
	e.session = nil

	s.running.Store(false)
	<-s.done
	return e.finish(s)
}

// finish finalizes a session whose drain goroutine has exited.
func (e *Encoder) finish(s *session) (Result, error) {
	res := Result{
		SessionID: s.id,
		Path:      s.path,
		Bytes:     s.written.Load(),
		Duration:  pcmDuration(s.written.Load()),
	}

	if s.aborted {
		if s.reported {
			return res, nil
		}
		return res, s.err
	}

	var errs []error
	if err := s.sink.Sync(); err != nil {
		errs = append(errs, &SinkError{Op: "flush", Path: s.path, Err: err})
	}
	if err := wav.Finalize(s.sink); err != nil {
		errs = append(errs, &SinkError{Op: "finalize", Path: s.path, Err: err})
	}
	if err := s.sink.Close(); err != nil {
		errs = append(errs, &SinkError{Op: "close", Path: s.path, Err: err})
	}
	if err := s.device.Close(); err != nil {
		e.log.Printf("capture: release device: %v", err)
	}

	e.log.Printf("capture: recording stopped session=%s bytes=%d duration=%s", s.id, res.Bytes, res.Duration)
	e.publish(telemetry.NewState("capture", "RECORDING", "IDLE"))
	e.publish(telemetry.NewRecording("stopped", s.id, s.path, res.Bytes, nil))

	return res, errors.Join(errs...)
}

// drain copies device chunks into the sink until the running flag clears,
// the device fails, or a write fails. Nothing else writes to the sink while
// it runs.
func (e *Encoder) drain(s *session) {
	defer close(s.done)

	buf := make([]byte, e.cfg.ChunkBytes())
	lastReport := time.Now()

	for s.running.Load() {
		n, readErr := s.device.Read(buf)
		if n > 0 {
			nw, err := s.sink.Write(buf[:n])
			s.written.Add(int64(nw))
			if err == nil && nw < n {
				err = fmt.Errorf("short write: %d of %d bytes", nw, n)
			}
			if err != nil {
				e.abort(s, &SinkError{Op: "write", Path: s.path, Err: err})
				return
			}
		}

		if readErr != nil {
			if s.running.Load() {
				e.log.Printf("capture: device read failed: %v", readErr)
				e.publish(telemetry.NewLog("capture", "error", fmt.Sprintf("device read failed: %v", readErr)))
			}
			return
		}

		if time.Since(lastReport) >= progressInterval {
			elapsed := time.Since(s.startedAt)
			e.publish(telemetry.NewProgress("capture", "recording", 0,
				fmt.Sprintf("%d bytes, %s", s.written.Load(), elapsed.Truncate(time.Second))))
			lastReport = time.Now()
		}
	}
}

// abort tears the session down after a sink failure without touching the
// header. If Stop has not been requested yet the error goes to the Errors
// channel; otherwise Stop returns it.
func (e *Encoder) abort(s *session, err error) {
	_ = s.sink.Close()
	_ = s.device.Close()
	s.err = err
	s.aborted = true

	e.log.Printf("capture: session %s aborted: %v", s.id, err)
	e.publish(telemetry.NewState("capture", "RECORDING", "IDLE"))
	e.publish(telemetry.NewRecording("failed", s.id, s.path, s.written.Load(), err))

	if s.running.CompareAndSwap(true, false) {
		s.reported = true
		select {
		case e.errs <- err:
		default:
			e.log.Printf("capture: error channel full, dropping: %v", err)
		}
	}
}

func (s *session) finished() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

func (e *Encoder) publish(v any) {
	if e.hub != nil {
		e.hub.BroadcastJSON(v)
	}
}

// pcmDuration splits whole seconds from the remainder so long sessions
// do not overflow time.Duration.
func pcmDuration(n int64) time.Duration {
	return time.Duration(n/wav.ByteRate)*time.Second + time.Duration(n%wav.ByteRate)*time.Second/wav.ByteRate
}
