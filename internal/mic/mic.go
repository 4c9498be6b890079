// Package mic opens the system default input device through PortAudio and
// exposes it as a capture.Device. It needs cgo and libportaudio, so it lives
// apart from the capture package and is only linked into the daemon.
package mic

import (
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"

	"github.com/large-farva/voicememo/internal/capture"
)

// Device is a blocking PortAudio input stream.
type Device struct {
	mu     sync.Mutex
	stream *portaudio.Stream
	buf    []int16
	closed bool
}

// Open is a capture.Opener for the default input device.
func Open(cfg capture.DeviceConfig) (capture.Device, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("portaudio init: %w", err)
	}

	if _, err := portaudio.DefaultInputDevice(); err != nil {
		_ = portaudio.Terminate()
		return nil, fmt.Errorf("no default input device: %w", err)
	}

	d := &Device{buf: make([]int16, cfg.ChunkFrames*cfg.Channels)}
	stream, err := portaudio.OpenDefaultStream(cfg.Channels, 0, float64(cfg.SampleRate), cfg.ChunkFrames, d.buf)
	if err != nil {
		_ = portaudio.Terminate()
		return nil, fmt.Errorf("open input stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		_ = stream.Close()
		_ = portaudio.Terminate()
		return nil, fmt.Errorf("start input stream: %w", err)
	}

	d.stream = stream
	return d, nil
}

// Read blocks for one buffer of frames and copies it into p as
// little-endian int16.
func (d *Device) Read(p []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return 0, capture.ErrDeviceClosed
	}

	if err := d.stream.Read(); err != nil {
		// Overflow only means we fell behind; the samples are still valid.
		if err != portaudio.InputOverflowed {
			return 0, fmt.Errorf("read input stream: %w", err)
		}
	}

	n := len(d.buf)
	if n*2 > len(p) {
		n = len(p) / 2
	}
	for i := 0; i < n; i++ {
		binary.LittleEndian.PutUint16(p[i*2:], uint16(d.buf[i]))
	}
	return n * 2, nil
}

// Close stops the stream and releases PortAudio.
func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true

	_ = d.stream.Stop()
	err := d.stream.Close()
	if terr := portaudio.Terminate(); err == nil {
		err = terr
	}
	return err
}
