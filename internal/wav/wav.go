// Package wav owns the on-disk container used for recordings: a 44-byte
// RIFF/WAVE header for signed 16-bit little-endian mono PCM at 44.1 kHz,
// followed by raw samples. The header is written with zeroed size fields
// before the length is known and patched once recording completes.
package wav

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
)

// Fixed recording format. Not negotiable at call time.
const (
	SampleRate    = 44100
	NumChannels   = 1
	BitsPerSample = 16
	FormatPCM     = 1

	ByteRate   = SampleRate * NumChannels * BitsPerSample / 8
	BlockAlign = NumChannels * BitsPerSample / 8

	// HeaderSize is the byte length of the header preceding sample data.
	HeaderSize = 44

	totalSizeOffset = 4
	dataSizeOffset  = 40
	riffOverhead    = 36
)

// Header mirrors the 44-byte canonical WAV header field-for-field so it can
// be read and written with encoding/binary.
type Header struct {
	// RIFF header
	RiffID   [4]byte
	RiffSize uint32
	WaveID   [4]byte
	// fmt sub-chunk
	FmtID       [4]byte
	FmtSize     uint32
	AudioFormat uint16
	NumChannels uint16
	SampleRate  uint32
	ByteRate    uint32
	BlockAlign  uint16
	BitsPerSamp uint16
	// data sub-chunk
	DataID   [4]byte
	DataSize uint32
}

// ErrNotWAV is returned by ReadHeader when the magic tags don't match.
var ErrNotWAV = errors.New("wav: not a RIFF/WAVE stream")

// NewHeader returns the header for dataSize bytes of sample data.
func NewHeader(dataSize uint32) Header {
	total, data := sizesFor(int64(dataSize) + HeaderSize)
	return Header{
		RiffID:      [4]byte{'R', 'I', 'F', 'F'},
		RiffSize:    total,
		WaveID:      [4]byte{'W', 'A', 'V', 'E'},
		FmtID:       [4]byte{'f', 'm', 't', ' '},
		FmtSize:     16,
		AudioFormat: FormatPCM,
		NumChannels: NumChannels,
		SampleRate:  SampleRate,
		ByteRate:    ByteRate,
		BlockAlign:  BlockAlign,
		BitsPerSamp: BitsPerSample,
		DataID:      [4]byte{'d', 'a', 't', 'a'},
		DataSize:    data,
	}
}

// WriteHeader writes a header with both size fields zeroed. Call Finalize
// once all sample data has been appended.
func WriteHeader(w io.Writer) error {
	h := NewHeader(0)
	h.RiffSize = 0
	return binary.Write(w, binary.LittleEndian, &h)
}

// ReadHeader decodes the first 44 bytes of r.
func ReadHeader(r io.Reader) (Header, error) {
	var h Header
	if err := binary.Read(r, binary.LittleEndian, &h); err != nil {
		return h, fmt.Errorf("read wav header: %w", err)
	}
	if string(h.RiffID[:]) != "RIFF" || string(h.WaveID[:]) != "WAVE" {
		return h, ErrNotWAV
	}
	return h, nil
}

// Encode returns a complete in-memory WAV file wrapping pcm.
func Encode(pcm []byte) []byte {
	var buf bytes.Buffer
	buf.Grow(HeaderSize + len(pcm))
	h := NewHeader(uint32(len(pcm)))
	_ = binary.Write(&buf, binary.LittleEndian, &h)
	buf.Write(pcm)
	return buf.Bytes()
}

// Patcher is the subset of *os.File that Finalize needs.
type Patcher interface {
	io.WriterAt
	Stat() (os.FileInfo, error)
}

// Finalize patches the RIFF chunk size (offset 4) and data sub-chunk size
// (offset 40) from the sink's current size. A sink that is empty or shorter
// than a header gets both fields zeroed.
func Finalize(f Patcher) error {
	var size int64
	if info, err := f.Stat(); err == nil {
		size = info.Size()
	}
	total, data := sizesFor(size)
	return PatchSizes(f, total, data)
}

// PatchSizes writes the two length placeholders in place.
func PatchSizes(w io.WriterAt, total, data uint32) error {
	var b [4]byte

	binary.LittleEndian.PutUint32(b[:], total)
	if _, err := w.WriteAt(b[:], totalSizeOffset); err != nil {
		return fmt.Errorf("patch riff size: %w", err)
	}

	binary.LittleEndian.PutUint32(b[:], data)
	if _, err := w.WriteAt(b[:], dataSizeOffset); err != nil {
		return fmt.Errorf("patch data size: %w", err)
	}
	return nil
}

// sizesFor derives (total, data) for a sink of the given byte length.
// Lengths past the 32-bit range clamp to the largest representable values.
func sizesFor(sinkSize int64) (total, data uint32) {
	if sinkSize < HeaderSize {
		return 0, 0
	}
	d := sinkSize - HeaderSize
	if d > math.MaxUint32-riffOverhead {
		d = math.MaxUint32 - riffOverhead
	}
	return uint32(d + riffOverhead), uint32(d)
}
