package wav

import (
	"bytes"
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteHeaderLayout(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteHeader(&buf))

	b := buf.Bytes()
	require.Len(t, b, HeaderSize)

	assert.Equal(t, "RIFF", string(b[0:4]))
	assert.Equal(t, uint32(0), binary.LittleEndian.Uint32(b[4:8]))
	assert.Equal(t, "WAVE", string(b[8:12]))
	assert.Equal(t, "fmt ", string(b[12:16]))
	assert.Equal(t, uint32(16), binary.LittleEndian.Uint32(b[16:20]))
	assert.Equal(t, uint16(1), binary.LittleEndian.Uint16(b[20:22]))
	assert.Equal(t, uint16(1), binary.LittleEndian.Uint16(b[22:24]))
	assert.Equal(t, uint32(44100), binary.LittleEndian.Uint32(b[24:28]))
	assert.Equal(t, uint32(88200), binary.LittleEndian.Uint32(b[28:32]))
	assert.Equal(t, uint16(2), binary.LittleEndian.Uint16(b[32:34]))
	assert.Equal(t, uint16(16), binary.LittleEndian.Uint16(b[34:36]))
	assert.Equal(t, "data", string(b[36:40]))
	assert.Equal(t, uint32(0), binary.LittleEndian.Uint32(b[40:44]))
}

func TestFinalize(t *testing.T) {
	cases := []struct {
		name      string
		payload   int
		wantData  uint32
		wantTotal uint32
	}{
		{"no samples", 0, 0, 36},
		{"one sample", 2, 2, 38},
		{"one second", ByteRate, ByteRate, ByteRate + 36},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "recording.wav")
			f, err := os.Create(path)
			require.NoError(t, err)
			require.NoError(t, WriteHeader(f))
			_, err = f.Write(make([]byte, tc.payload))
			require.NoError(t, err)
			require.NoError(t, Finalize(f))
			require.NoError(t, f.Close())

			raw, err := os.ReadFile(path)
			require.NoError(t, err)
			require.Len(t, raw, HeaderSize+tc.payload)

			h, err := ReadHeader(bytes.NewReader(raw))
			require.NoError(t, err)
			assert.Equal(t, tc.wantData, h.DataSize)
			assert.Equal(t, tc.wantTotal, h.RiffSize)
			assert.Equal(t, uint32(len(raw)-HeaderSize), h.DataSize)
			assert.Equal(t, h.DataSize+36, h.RiffSize)
		})
	}
}

func TestFinalizeEmptySinkZeroes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.wav")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	require.NoError(t, Finalize(f))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Len(t, raw, HeaderSize)
	assert.Equal(t, uint32(0), binary.LittleEndian.Uint32(raw[4:8]))
	assert.Equal(t, uint32(0), binary.LittleEndian.Uint32(raw[40:44]))
}

func TestSizesForClamps(t *testing.T) {
	total, data := sizesFor(math.MaxUint32 + 1000)
	assert.Equal(t, uint32(math.MaxUint32), total)
	assert.Equal(t, uint32(math.MaxUint32-36), data)
}

func TestReadHeaderRejectsForeignData(t *testing.T) {
	_, err := ReadHeader(bytes.NewReader(bytes.Repeat([]byte{'x'}, HeaderSize)))
	assert.ErrorIs(t, err, ErrNotWAV)
}

func TestInspect(t *testing.T) {
	pcm := make([]byte, 2*4410)
	binary.LittleEndian.PutUint16(pcm[10:], uint16(int16(16384)))

	info, err := Inspect(bytes.NewReader(Encode(pcm)))
	require.NoError(t, err)
	assert.True(t, info.Valid)
	assert.True(t, info.Finalized)
	assert.Equal(t, 1, info.Channels)
	assert.Equal(t, SampleRate, info.SampleRate)
	assert.Equal(t, BitsPerSample, info.BitDepth)
	assert.Equal(t, int64(len(pcm)), info.DataBytes)
	assert.Equal(t, int64(100), info.Duration.Milliseconds())
	assert.InDelta(t, 0.5, info.Peak, 0.001)
}

func TestInspectUnfinalized(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteHeader(&buf))
	buf.Write(make([]byte, 882))

	info, err := Inspect(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	assert.False(t, info.Finalized)
	assert.Equal(t, int64(882), info.DataBytes)
	assert.Equal(t, int64(10), info.Duration.Milliseconds())
}

func TestInspectLargeRecordingStreamsSamples(t *testing.T) {
	const size = 20 << 20
	pcm := make([]byte, size)
	// Loudest sample sits in the final chunk.
	loudest := int16(-24576)
	binary.LittleEndian.PutUint16(pcm[size-4:], uint16(loudest))
	r := bytes.NewReader(Encode(pcm))
	pcm = nil

	var before, after runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&before)
	info, err := Inspect(r)
	runtime.ReadMemStats(&after)
	require.NoError(t, err)

	assert.True(t, info.Finalized)
	assert.Equal(t, int64(size), info.DataBytes)
	assert.InDelta(t, 0.75, info.Peak, 0.001)

	allocated := after.TotalAlloc - before.TotalAlloc
	assert.Less(t, allocated, uint64(2*size), "allocated %d bytes for a %d byte recording", allocated, size)
}
