package capture

import (
	"encoding/binary"
	"errors"
	"math"
	"sync"
	"time"

	"github.com/large-farva/voicememo/internal/wav"
)

// Device is an open input stream delivering signed 16-bit little-endian
// mono PCM. Read blocks until one chunk is available.
type Device interface {
	Read(p []byte) (int, error)
	Close() error
}

// DeviceConfig describes the stream Start asks the device for.
type DeviceConfig struct {
	SampleRate  int
	Channels    int
	ChunkFrames int
}

// ChunkBytes is the size of one device read.
func (c DeviceConfig) ChunkBytes() int {
	return c.ChunkFrames * c.Channels * wav.BitsPerSample / 8
}

// DefaultDeviceConfig returns the fixed recording format with the given
// chunk size. A non-positive chunkFrames falls back to 4096.
func DefaultDeviceConfig(chunkFrames int) DeviceConfig {
	if chunkFrames <= 0 {
		chunkFrames = 4096
	}
	return DeviceConfig{
		SampleRate:  wav.SampleRate,
		Channels:    wav.NumChannels,
		ChunkFrames: chunkFrames,
	}
}

// Opener opens an input device for cfg.
type Opener func(cfg DeviceConfig) (Device, error)

// ErrDeviceClosed is returned by Read after Close.
var ErrDeviceClosed = errors.New("capture: device closed")

// ToneDevice generates a sine wave in real time, letting the whole
// record/stop/patch path run without microphone hardware.
type ToneDevice struct {
	cfg  DeviceConfig
	freq float64

	mu     sync.Mutex
	closed bool
	n      int // samples generated so far
	next   time.Time
}

// ToneOpener returns an Opener producing ToneDevices at freq Hz.
func ToneOpener(freq float64) Opener {
	return func(cfg DeviceConfig) (Device, error) {
		return NewToneDevice(cfg, freq), nil
	}
}

func NewToneDevice(cfg DeviceConfig, freq float64) *ToneDevice {
	if freq <= 0 {
		freq = 440
	}
	return &ToneDevice{cfg: cfg, freq: freq}
}

// Read fills p with up to one chunk of samples, pacing reads so the device
// produces audio no faster than its sample rate.
func (d *ToneDevice) Read(p []byte) (int, error) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return 0, ErrDeviceClosed
	}
	if d.next.IsZero() {
		d.next = time.Now()
	}
	wait := time.Until(d.next)
	d.mu.Unlock()

	if wait > 0 {
		time.Sleep(wait)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return 0, ErrDeviceClosed
	}

	samples := len(p) / 2
	if samples > d.cfg.ChunkFrames {
		samples = d.cfg.ChunkFrames
	}
	rate := float64(d.cfg.SampleRate)
	for i := 0; i < samples; i++ {
		t := float64(d.n+i) / rate
		s := int16(16000.0 * math.Sin(2.0*math.Pi*d.freq*t))
		binary.LittleEndian.PutUint16(p[i*2:], uint16(s))
	}
	d.n += samples
	d.next = d.next.Add(time.Duration(samples) * time.Second / time.Duration(d.cfg.SampleRate))
	return samples * 2, nil
}

func (d *ToneDevice) Close() error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	return nil
}
