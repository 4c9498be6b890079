// Package playback plays in-memory audio buffers. A Controller owns at most
// one session at a time and serializes every state change on a single
// goroutine started by Run; end-of-stream arrives as an event from the
// render pipeline and progress is sampled by a per-session ticker.
package playback

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/large-farva/voicememo/internal/telemetry"
)

// DefaultPollInterval is the progress sampling cadence.
const DefaultPollInterval = time.Second

// Options configures a Controller.
type Options struct {
	Renderer     Renderer
	PollInterval time.Duration
	Log          *log.Logger
	Hub          telemetry.Publisher // optional
}

// Controller is the playback state machine. Call Run in a goroutine before
// using any other method.
type Controller struct {
	renderer Renderer
	interval time.Duration
	log      *log.Logger
	hub      telemetry.Publisher

	ops  chan func()
	done chan struct{}

	// Owned by the Run goroutine.
	state    State
	cur      *session
	listener ProgressFunc

	stateVal atomic.Int32
}

type session struct {
	id    string
	data  []byte
	pipe  *pipeline
	onEnd EndFunc

	ctx        context.Context
	cancel     context.CancelFunc
	pollCancel context.CancelFunc
}

// Status is a snapshot of the controller.
type Status struct {
	State      string `json:"state"`
	SessionID  string `json:"session_id,omitempty"`
	PositionMs int64  `json:"position_ms"`
	DurationMs int64  `json:"duration_ms"`
}

// New creates an idle Controller.
func New(opts Options) *Controller {
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.Log == nil {
		opts.Log = log.New(io.Discard, "", 0)
	}
	if opts.Renderer == nil {
		opts.Renderer = NewNullRenderer(0)
	}
	return &Controller{
		renderer: opts.Renderer,
		interval: opts.PollInterval,
		log:      opts.Log,
		hub:      opts.Hub,
		ops:      make(chan func()),
		done:     make(chan struct{}),
	}
}

// Run executes controller operations until ctx is cancelled, then tears
// down any active session.
func (c *Controller) Run(ctx context.Context) {
	defer close(c.done)
	for {
		select {
		case <-ctx.Done():
			c.teardown()
			c.setState(Idle)
			return
		case op := <-c.ops:
			op()
		}
	}
}

// Play replaces any current session with one rendering data from the
// start. data is copied; the caller keeps ownership of its slice.
func (c *Controller) Play(data []byte, onEnd EndFunc) {
	buf := bytes.Clone(data)
	c.do(func() { c.play(buf, onEnd) })
}

// Pause halts rendering at the current position. No-op unless Playing.
func (c *Controller) Pause() {
	c.do(func() {
		if c.state != Playing || c.cur == nil {
			return
		}
		c.cur.pipe.setPaused(true)
		c.setState(Paused)
	})
}

// Resume continues from the paused position. No-op unless Paused.
func (c *Controller) Resume() {
	c.do(func() {
		if c.state != Paused || c.cur == nil {
			return
		}
		c.cur.pipe.setPaused(false)
		c.setState(Playing)
	})
}

// Replay seeks to the start and plays. No-op unless Playing or Paused.
func (c *Controller) Replay() {
	c.do(func() {
		if (c.state != Playing && c.state != Paused) || c.cur == nil {
			return
		}
		if err := c.cur.pipe.seek(0); err != nil {
			c.logf("warn", "replay seek failed: %v", err)
		}
		c.cur.pipe.setPaused(false)
		c.setState(Playing)
	})
}

// Stop tears down the current session without calling its EndFunc.
func (c *Controller) Stop() {
	c.do(func() {
		if c.cur == nil && c.state == Idle {
			return
		}
		c.teardown()
		c.setState(Idle)
	})
}

// SetProgressListener installs fn (nil clears it) and restarts the
// sampling cadence of the current session.
func (c *Controller) SetProgressListener(fn ProgressFunc) {
	c.do(func() {
		c.listener = fn
		if c.cur != nil {
			c.startPoll(c.cur)
		}
	})
}

// State returns the current state without waiting for the controller
// goroutine.
func (c *Controller) State() State {
	return State(c.stateVal.Load())
}

// Status returns the state with the current position and duration.
func (c *Controller) Status() Status {
	st := Status{State: c.State().String()}
	c.do(func() {
		st.State = c.state.String()
		if c.cur == nil {
			return
		}
		st.SessionID = c.cur.id
		if pos, dur, ok := c.cur.pipe.progress(); ok {
			st.PositionMs, st.DurationMs = pos.Milliseconds(), dur.Milliseconds()
		}
	})
	return st
}

func (c *Controller) play(data []byte, onEnd EndFunc) {
	c.teardown()
	c.setState(Preparing)

	pipe, err := newPipeline(data, c.renderer)
	if err != nil {
		c.fail(err, onEnd)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &session{
		id:     uuid.NewString(),
		data:   data,
		pipe:   pipe,
		onEnd:  onEnd,
		ctx:    ctx,
		cancel: cancel,
	}
	c.cur = s

	if err := pipe.start(); err != nil {
		c.teardown()
		c.fail(fmt.Errorf("playback: start renderer: %w", err), onEnd)
		return
	}

	go c.watchEnd(s)
	c.setState(Playing)
	c.startPoll(s)

	_, dur, _ := pipe.progress()
	c.logf("info", "playing session=%s bytes=%d duration=%s", s.id, len(data), dur)
}

func (c *Controller) fail(err error, onEnd EndFunc) {
	c.logf("error", "%v", err)
	c.setState(Idle)
	if onEnd != nil {
		onEnd(err)
	}
}

// teardown releases the current session's pipeline and poll. It does not
// change state or call the session's EndFunc.
func (c *Controller) teardown() {
	s := c.cur
	if s == nil {
		return
	}
	c.cur = nil
	s.cancel()
	s.pipe.close()
	s.data = nil
}

// watchEnd forwards the pipeline's end-of-stream signal to the controller
// goroutine.
func (c *Controller) watchEnd(s *session) {
	select {
	case <-s.pipe.ended:
		c.post(s.ctx, func() { c.handleEnd(s) })
	case <-s.ctx.Done():
	}
}

func (c *Controller) handleEnd(s *session) {
	if c.cur != s {
		return
	}
	c.teardown()
	c.setState(Idle)
	c.logf("info", "session=%s finished", s.id)
	if s.onEnd != nil {
		s.onEnd(nil)
	}
}

func (c *Controller) startPoll(s *session) {
	if s.pollCancel != nil {
		s.pollCancel()
	}
	ctx, cancel := context.WithCancel(s.ctx)
	s.pollCancel = cancel
	go c.poll(ctx, s)
}

func (c *Controller) poll(ctx context.Context, s *session) {
	t := time.NewTicker(c.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			c.post(ctx, func() { c.tick(ctx, s) })
		}
	}
}

// tick samples progress once. Ticks for a replaced cadence or session, or
// while not rendering, are skipped.
func (c *Controller) tick(ctx context.Context, s *session) {
	if ctx.Err() != nil || c.cur != s || c.state != Playing {
		return
	}
	pos, dur, ok := s.pipe.progress()
	if !ok {
		return
	}
	posMs, durMs := pos.Milliseconds(), dur.Milliseconds()

	if c.listener != nil {
		c.listener(posMs, durMs)
	}

	var pct float64
	if durMs > 0 {
		pct = float64(posMs) / float64(durMs) * 100
	}
	c.publish(telemetry.NewProgress("playback", "playback", pct,
		fmt.Sprintf("%s / %s", pos.Truncate(time.Second), dur.Truncate(time.Second))))
}

func (c *Controller) setState(s State) {
	if c.state == s {
		return
	}
	old := c.state
	c.state = s
	c.stateVal.Store(int32(s))
	c.publish(telemetry.NewState("playback", old.String(), s.String()))
}

// do runs fn on the controller goroutine and waits for it to finish.
func (c *Controller) do(fn func()) {
	reply := make(chan struct{})
	select {
	case c.ops <- func() { defer close(reply); fn() }:
		<-reply
	case <-c.done:
	}
}

// post queues fn without waiting, giving up if ctx ends first.
func (c *Controller) post(ctx context.Context, fn func()) {
	select {
	case c.ops <- fn:
	case <-ctx.Done():
	case <-c.done:
	}
}

func (c *Controller) logf(level, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	c.log.Printf("playback: %s", msg)
	c.publish(telemetry.NewLog("playback", level, msg))
}

func (c *Controller) publish(v any) {
	if c.hub != nil {
		c.hub.BroadcastJSON(v)
	}
}
