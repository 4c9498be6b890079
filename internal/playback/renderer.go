package playback

import (
	"sync"
	"time"

	"github.com/faiface/beep"
)

// Renderer pulls samples from streamers and sends them to an output.
// Lock/Unlock guard streamer state against the rendering goroutine, the way
// speaker.Lock does.
type Renderer interface {
	Play(s beep.Streamer, format beep.Format) error
	Clear()
	Lock()
	Unlock()
}

// NullRenderer consumes samples at real-time pace and discards them. It lets
// a headless daemon, or a test, drive the full playback lifecycle without an
// audio device.
type NullRenderer struct {
	tick time.Duration

	mu      sync.Mutex
	mixer   beep.Mixer
	rate    beep.SampleRate
	started bool
	quit    chan struct{}
	done    chan struct{}
}

// NewNullRenderer returns a renderer that pulls audio every tick.
func NewNullRenderer(tick time.Duration) *NullRenderer {
	if tick <= 0 {
		tick = 10 * time.Millisecond
	}
	return &NullRenderer{
		tick: tick,
		quit: make(chan struct{}),
		done: make(chan struct{}),
	}
}

func (r *NullRenderer) Play(s beep.Streamer, format beep.Format) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rate = format.SampleRate
	r.mixer.Add(s)
	if !r.started {
		r.started = true
		go r.loop()
	}
	return nil
}

func (r *NullRenderer) Clear() {
	r.mu.Lock()
	r.mixer.Clear()
	r.mu.Unlock()
}

func (r *NullRenderer) Lock()   { r.mu.Lock() }
func (r *NullRenderer) Unlock() { r.mu.Unlock() }

// Close stops the rendering goroutine.
func (r *NullRenderer) Close() {
	r.mu.Lock()
	started := r.started
	r.mu.Unlock()

	select {
	case <-r.quit:
	default:
		close(r.quit)
	}
	if started {
		<-r.done
	}
}

func (r *NullRenderer) loop() {
	defer close(r.done)

	t := time.NewTicker(r.tick)
	defer t.Stop()

	var buf [][2]float64
	last := time.Now()
	for {
		select {
		case <-r.quit:
			return
		case now := <-t.C:
			elapsed := now.Sub(last)
			last = now

			r.mu.Lock()
			n := r.rate.N(elapsed)
			if n > 0 && r.mixer.Len() > 0 {
				if cap(buf) < n {
					buf = make([][2]float64, n)
				}
				r.mixer.Stream(buf[:n])
			}
			r.mu.Unlock()
		}
	}
}
