package wav

import (
	"fmt"
	"io"
	"time"

	"github.com/go-audio/audio"
	gowav "github.com/go-audio/wav"
)

// Info describes a WAV stream as seen by both the raw header and a full
// RIFF parse.
type Info struct {
	Header     Header        `json:"-"`
	Valid      bool          `json:"valid"`
	Finalized  bool          `json:"finalized"`
	Channels   int           `json:"channels"`
	SampleRate int           `json:"sample_rate"`
	BitDepth   int           `json:"bit_depth"`
	DataBytes  int64         `json:"data_bytes"`
	Duration   time.Duration `json:"duration_ns"`
	Peak       float64       `json:"peak"`
}

// Inspect reads r from the start and reports its format. A stream whose
// size fields are still zero is reported with Finalized=false and its
// payload size taken from the actual stream length.
func Inspect(r io.ReadSeeker) (Info, error) {
	var info Info

	size, err := r.Seek(0, io.SeekEnd)
	if err != nil {
		return info, err
	}
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return info, err
	}

	h, err := ReadHeader(r)
	if err != nil {
		return info, err
	}
	info.Header = h
	info.Channels = int(h.NumChannels)
	info.SampleRate = int(h.SampleRate)
	info.BitDepth = int(h.BitsPerSamp)

	total, data := sizesFor(size)
	info.Finalized = h.RiffSize == total && h.DataSize == data
	info.DataBytes = size - HeaderSize
	if info.Finalized {
		info.DataBytes = int64(h.DataSize)
	}
	if h.ByteRate > 0 {
		info.Duration = time.Duration(info.DataBytes) * time.Second / time.Duration(h.ByteRate)
	}

	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return info, err
	}
	dec := gowav.NewDecoder(r)
	info.Valid = dec.IsValidFile()
	if !info.Valid || !info.Finalized || info.DataBytes == 0 {
		return info, nil
	}

	info.Peak, err = peak(dec)
	if err != nil {
		return info, fmt.Errorf("decode pcm: %w", err)
	}
	return info, nil
}

// peakChunk is how many samples peak decodes per read.
const peakChunk = 4096

// peak returns the largest absolute sample normalized to [0, 1]. It reuses
// one fixed buffer so memory does not grow with the recording.
func peak(dec *gowav.Decoder) (float64, error) {
	buf := &audio.IntBuffer{Data: make([]int, peakChunk)}
	var m int
	for {
		n, err := dec.PCMBuffer(buf)
		if err != nil {
			return 0, err
		}
		if n == 0 {
			break
		}
		for _, s := range buf.Data[:n] {
			if s < 0 {
				s = -s
			}
			if s > m {
				m = s
			}
		}
	}
	if buf.SourceBitDepth == 0 {
		return 0, nil
	}
	return float64(m) / float64(int(1)<<(buf.SourceBitDepth-1)), nil
}
