// Package speaker renders playback through the system audio output using
// beep's speaker package. The device is initialized lazily at the sample
// rate of the first stream; later streams at other rates are resampled.
package speaker

import (
	"fmt"
	"sync"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/speaker"
)

// Renderer implements playback.Renderer on the default output device.
type Renderer struct {
	buffer time.Duration

	mu     sync.Mutex
	inited bool
	rate   beep.SampleRate
}

// New returns a Renderer whose output buffer holds buffer worth of audio.
// Smaller buffers lower latency at the cost of underruns.
func New(buffer time.Duration) *Renderer {
	if buffer <= 0 {
		buffer = 100 * time.Millisecond
	}
	return &Renderer{buffer: buffer}
}

func (r *Renderer) Play(s beep.Streamer, format beep.Format) error {
	r.mu.Lock()
	if !r.inited {
		if err := speaker.Init(format.SampleRate, format.SampleRate.N(r.buffer)); err != nil {
			r.mu.Unlock()
			return fmt.Errorf("speaker init: %w", err)
		}
		r.inited = true
		r.rate = format.SampleRate
	}
	rate := r.rate
	r.mu.Unlock()

	if format.SampleRate != rate {
		s = beep.Resample(4, format.SampleRate, rate, s)
	}
	speaker.Play(s)
	return nil
}

func (r *Renderer) Clear() {
	if r.ready() {
		speaker.Clear()
	}
}

func (r *Renderer) Lock() {
	if r.ready() {
		speaker.Lock()
	}
}

func (r *Renderer) Unlock() {
	if r.ready() {
		speaker.Unlock()
	}
}

func (r *Renderer) ready() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.inited
}
