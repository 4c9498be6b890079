package playback

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/faiface/beep"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/large-farva/voicememo/internal/wav"
)

// manualRenderer only pulls samples when the test calls advance.
type manualRenderer struct {
	mu     sync.Mutex
	mixer  beep.Mixer
	rate   beep.SampleRate
	plays  int
	clears int
}

func (r *manualRenderer) Play(s beep.Streamer, f beep.Format) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rate = f.SampleRate
	r.mixer.Add(s)
	r.plays++
	return nil
}

func (r *manualRenderer) Clear() {
	r.mu.Lock()
	r.mixer.Clear()
	r.clears++
	r.mu.Unlock()
}

func (r *manualRenderer) Lock()   { r.mu.Lock() }
func (r *manualRenderer) Unlock() { r.mu.Unlock() }

func (r *manualRenderer) advance(d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	buf := make([][2]float64, r.rate.N(d))
	r.mixer.Stream(buf)
}

func (r *manualRenderer) live() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.mixer.Len()
}

// silence returns a WAV buffer of d of silent audio.
func silence(d time.Duration) []byte {
	frames := int(d * wav.SampleRate / time.Second)
	return wav.Encode(make([]byte, frames*2))
}

// endRecorder counts EndFunc calls.
type endRecorder struct {
	mu   sync.Mutex
	errs []error
}

func (e *endRecorder) fn(err error) {
	e.mu.Lock()
	e.errs = append(e.errs, err)
	e.mu.Unlock()
}

func (e *endRecorder) calls() []error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]error(nil), e.errs...)
}

func startController(t *testing.T, r Renderer, poll time.Duration) *Controller {
	t.Helper()
	c := New(Options{Renderer: r, PollInterval: poll})
	ctx, cancel := context.WithCancel(context.Background())
	go c.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-c.done
	})
	return c
}

func TestPlayReachesEndAndGoesIdle(t *testing.T) {
	r := &manualRenderer{}
	c := startController(t, r, time.Hour)
	end := &endRecorder{}

	c.Play(silence(200*time.Millisecond), end.fn)
	assert.Equal(t, Playing, c.State())

	st := c.Status()
	assert.Equal(t, "PLAYING", st.State)
	assert.Equal(t, int64(0), st.PositionMs)
	assert.Equal(t, int64(200), st.DurationMs)
	assert.NotEmpty(t, st.SessionID)

	r.advance(300 * time.Millisecond)

	require.Eventually(t, func() bool { return c.State() == Idle }, time.Second, time.Millisecond)
	require.Len(t, end.calls(), 1)
	assert.NoError(t, end.calls()[0])
	assert.Equal(t, 0, r.live())
}

func TestPlayReplacesPreviousSession(t *testing.T) {
	r := &manualRenderer{}
	c := startController(t, r, time.Hour)
	endA, endB := &endRecorder{}, &endRecorder{}

	c.Play(silence(100*time.Millisecond), endA.fn)
	r.advance(50 * time.Millisecond)
	c.Play(silence(400*time.Millisecond), endB.fn)

	assert.Equal(t, 1, r.live())
	st := c.Status()
	assert.Equal(t, int64(0), st.PositionMs)
	assert.Equal(t, int64(400), st.DurationMs)

	r.advance(500 * time.Millisecond)
	require.Eventually(t, func() bool { return c.State() == Idle }, time.Second, time.Millisecond)

	// Give a stale end signal time to show up if one were coming.
	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, endA.calls())
	assert.Len(t, endB.calls(), 1)
}

func TestPauseResumeKeepsPosition(t *testing.T) {
	r := &manualRenderer{}
	c := startController(t, r, time.Hour)

	c.Play(silence(time.Second), nil)
	r.advance(300 * time.Millisecond)

	c.Pause()
	assert.Equal(t, Paused, c.State())
	paused := c.Status().PositionMs
	assert.InDelta(t, 300, paused, 1)

	r.advance(300 * time.Millisecond)
	assert.Equal(t, paused, c.Status().PositionMs)

	c.Resume()
	assert.Equal(t, Playing, c.State())
	r.advance(100 * time.Millisecond)
	assert.InDelta(t, 400, c.Status().PositionMs, 1)
}

func TestReplayResetsToZero(t *testing.T) {
	r := &manualRenderer{}
	c := startController(t, r, time.Hour)

	c.Play(silence(time.Second), nil)
	r.advance(500 * time.Millisecond)
	c.Replay()
	assert.Equal(t, Playing, c.State())
	assert.Equal(t, int64(0), c.Status().PositionMs)

	r.advance(200 * time.Millisecond)
	c.Pause()
	c.Replay()
	assert.Equal(t, Playing, c.State())
	assert.Equal(t, int64(0), c.Status().PositionMs)

	r.advance(100 * time.Millisecond)
	assert.InDelta(t, 100, c.Status().PositionMs, 1)
}

func TestInvalidTransitionsAreNoops(t *testing.T) {
	r := &manualRenderer{}
	c := startController(t, r, time.Hour)

	c.Pause()
	c.Resume()
	c.Replay()
	c.Stop()
	c.Stop()
	assert.Equal(t, Idle, c.State())
	assert.Equal(t, 0, r.plays)

	c.Play(silence(time.Second), nil)
	c.Resume()
	assert.Equal(t, Playing, c.State())

	c.Pause()
	c.Pause()
	assert.Equal(t, Paused, c.State())
}

func TestStopSuppressesEndCallback(t *testing.T) {
	r := &manualRenderer{}
	c := startController(t, r, time.Hour)
	end := &endRecorder{}

	c.Play(silence(100*time.Millisecond), end.fn)
	c.Stop()
	assert.Equal(t, Idle, c.State())
	assert.Equal(t, 0, r.live())

	r.advance(200 * time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, end.calls())
}

func TestDecodeErrorGoesThroughEndCallback(t *testing.T) {
	r := &manualRenderer{}
	c := startController(t, r, time.Hour)
	end := &endRecorder{}

	c.Play([]byte("definitely not audio"), end.fn)

	assert.Equal(t, Idle, c.State())
	calls := end.calls()
	require.Len(t, calls, 1)
	var de *DecodeError
	require.ErrorAs(t, calls[0], &de)
	assert.True(t, errors.Is(calls[0], ErrUnsupportedFormat))
	assert.Equal(t, 0, r.plays)
}

func TestTruncatedWAVIsDecodeError(t *testing.T) {
	r := &manualRenderer{}
	c := startController(t, r, time.Hour)
	end := &endRecorder{}

	c.Play(silence(time.Second)[:20], end.fn)

	require.Len(t, end.calls(), 1)
	var de *DecodeError
	require.ErrorAs(t, end.calls()[0], &de)
	assert.Equal(t, "wav", de.Format)
	assert.Equal(t, Idle, c.State())
}

func TestPlayCopiesBuffer(t *testing.T) {
	r := &manualRenderer{}
	c := startController(t, r, time.Hour)

	buf := silence(500 * time.Millisecond)
	c.Play(buf, nil)
	for i := range buf {
		buf[i] = 0
	}
	assert.Equal(t, int64(500), c.Status().DurationMs)
}

type progressLog struct {
	mu  sync.Mutex
	pos []int64
	dur []int64
}

func (p *progressLog) fn(pos, dur int64) {
	p.mu.Lock()
	p.pos = append(p.pos, pos)
	p.dur = append(p.dur, dur)
	p.mu.Unlock()
}

func (p *progressLog) len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.pos)
}

func TestProgressListener(t *testing.T) {
	r := &manualRenderer{}
	c := startController(t, r, 5*time.Millisecond)
	prog := &progressLog{}
	c.SetProgressListener(prog.fn)

	c.Play(silence(time.Second), nil)
	for i := 0; i < 5; i++ {
		r.advance(100 * time.Millisecond)
		n := prog.len()
		require.Eventually(t, func() bool { return prog.len() > n }, time.Second, time.Millisecond)
	}

	c.Pause()
	n := prog.len()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, n, prog.len(), "listener fired while paused")

	c.Resume()
	require.Eventually(t, func() bool { return prog.len() > n }, time.Second, time.Millisecond)

	prog.mu.Lock()
	defer prog.mu.Unlock()
	for i, p := range prog.pos {
		assert.LessOrEqual(t, p, prog.dur[i])
		assert.Equal(t, int64(1000), prog.dur[i])
		if i > 0 {
			assert.GreaterOrEqual(t, p, prog.pos[i-1])
		}
	}
}

func TestReplacingListenerStopsOldOne(t *testing.T) {
	r := &manualRenderer{}
	c := startController(t, r, 5*time.Millisecond)
	first, second := &progressLog{}, &progressLog{}

	c.SetProgressListener(first.fn)
	c.Play(silence(time.Second), nil)
	require.Eventually(t, func() bool { return first.len() > 0 }, time.Second, time.Millisecond)

	c.SetProgressListener(second.fn)
	n := first.len()
	require.Eventually(t, func() bool { return second.len() > 2 }, time.Second, time.Millisecond)
	assert.Equal(t, n, first.len())
}

func TestEndToEndWithNullRenderer(t *testing.T) {
	if testing.Short() {
		t.Skip("real-time playback")
	}
	nr := NewNullRenderer(10 * time.Millisecond)
	defer nr.Close()
	c := startController(t, nr, time.Second)
	end := &endRecorder{}
	prog := &progressLog{}
	c.SetProgressListener(prog.fn)

	c.Play(silence(3*time.Second), end.fn)
	time.Sleep(3500 * time.Millisecond)

	assert.Len(t, end.calls(), 1)
	assert.NoError(t, end.calls()[0])
	assert.Equal(t, Idle, c.State())
	assert.GreaterOrEqual(t, prog.len(), 2)
}

func TestSniff(t *testing.T) {
	cases := map[string][]byte{
		"wav":    silence(10 * time.Millisecond),
		"mp3":    []byte("ID3\x04\x00\x00"),
		"vorbis": []byte("OggS\x00\x02"),
		"flac":   []byte("fLaC\x00\x00"),
		"":       []byte("hello"),
	}
	for want, data := range cases {
		assert.Equal(t, want, sniff(data), "sniff(%q)", data[:4])
	}
	assert.Equal(t, "mp3", sniff([]byte{0xFF, 0xFB, 0x90, 0x00}))
}
