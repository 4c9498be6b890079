package playback

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/flac"
	"github.com/faiface/beep/mp3"
	"github.com/faiface/beep/vorbis"
	"github.com/faiface/beep/wav"
)

// ErrUnsupportedFormat is wrapped by DecodeError when the buffer matches
// no known container.
var ErrUnsupportedFormat = errors.New("unsupported audio format")

// DecodeError means the supplied buffer could not be turned into a stream.
type DecodeError struct {
	Format string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Format == "" {
		return fmt.Sprintf("playback: decode: %v", e.Err)
	}
	return fmt.Sprintf("playback: decode %s: %v", e.Format, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// pipeline is one decode-and-render chain over an in-memory buffer.
// Fields other than ended are only touched under the renderer lock once
// rendering has started.
type pipeline struct {
	renderer Renderer
	stream   beep.StreamSeekCloser
	format   beep.Format
	ctrl     *beep.Ctrl

	ended   chan struct{}
	endOnce sync.Once
}

func newPipeline(data []byte, r Renderer) (*pipeline, error) {
	stream, format, err := decode(data)
	if err != nil {
		return nil, err
	}
	return &pipeline{
		renderer: r,
		stream:   stream,
		format:   format,
		ctrl:     &beep.Ctrl{Streamer: stream},
		ended:    make(chan struct{}),
	}, nil
}

// start hands the chain to the renderer. The trailing callback fires once
// the decoder is drained.
func (p *pipeline) start() error {
	return p.renderer.Play(beep.Seq(p.ctrl, beep.Callback(p.markEnded)), p.format)
}

func (p *pipeline) markEnded() {
	p.endOnce.Do(func() { close(p.ended) })
}

func (p *pipeline) setPaused(paused bool) {
	p.renderer.Lock()
	p.ctrl.Paused = paused
	p.renderer.Unlock()
}

func (p *pipeline) seek(pos int) error {
	p.renderer.Lock()
	defer p.renderer.Unlock()
	return p.stream.Seek(pos)
}

// progress reports position and duration. ok is false when the decoder
// does not know its length.
func (p *pipeline) progress() (pos, dur time.Duration, ok bool) {
	p.renderer.Lock()
	n, total := p.stream.Position(), p.stream.Len()
	p.renderer.Unlock()

	if total <= 0 || n < 0 {
		return 0, 0, false
	}
	if n > total {
		n = total
	}
	return p.format.SampleRate.D(n), p.format.SampleRate.D(total), true
}

// close removes the chain from the renderer and releases the decoder.
func (p *pipeline) close() {
	p.renderer.Clear()
	p.renderer.Lock()
	_ = p.stream.Close()
	p.renderer.Unlock()
}

// sniff names the container by its magic bytes.
func sniff(data []byte) string {
	switch {
	case len(data) >= 12 && string(data[0:4]) == "RIFF" && string(data[8:12]) == "WAVE":
		return "wav"
	case len(data) >= 4 && string(data[0:4]) == "OggS":
		return "vorbis"
	case len(data) >= 4 && string(data[0:4]) == "fLaC":
		return "flac"
	case len(data) >= 3 && string(data[0:3]) == "ID3":
		return "mp3"
	case len(data) >= 2 && data[0] == 0xFF && data[1]&0xE0 == 0xE0:
		return "mp3"
	default:
		return ""
	}
}

func decode(data []byte) (beep.StreamSeekCloser, beep.Format, error) {
	kind := sniff(data)

	var (
		s   beep.StreamSeekCloser
		f   beep.Format
		err error
	)
	switch kind {
	case "wav":
		s, f, err = wav.Decode(bytes.NewReader(data))
	case "mp3":
		s, f, err = mp3.Decode(nopCloser{bytes.NewReader(data)})
	case "vorbis":
		s, f, err = vorbis.Decode(nopCloser{bytes.NewReader(data)})
	case "flac":
		s, f, err = flac.Decode(bytes.NewReader(data))
	default:
		return nil, beep.Format{}, &DecodeError{Err: ErrUnsupportedFormat}
	}
	if err != nil {
		return nil, beep.Format{}, &DecodeError{Format: kind, Err: err}
	}
	if f.SampleRate <= 0 {
		_ = s.Close()
		return nil, beep.Format{}, &DecodeError{Format: kind, Err: fmt.Errorf("invalid sample rate %d", f.SampleRate)}
	}
	return s, f, nil
}

// nopCloser keeps Seek available on the reader, unlike io.NopCloser.
type nopCloser struct {
	io.ReadSeeker
}

func (nopCloser) Close() error { return nil }
