package speech

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"
	"strings"
	"time"

	"github.com/large-farva/voicememo/internal/wav"
)

type mockRecognizer struct{}

// NewMockRecognizer returns a recognizer that describes the recording
// instead of transcribing it.
func NewMockRecognizer() Recognizer {
	return mockRecognizer{}
}

func (mockRecognizer) Recognize(ctx context.Context, audioPath, language string) (Transcript, error) {
	if err := ctx.Err(); err != nil {
		return Transcript{}, err
	}
	f, err := os.Open(audioPath)
	if err != nil {
		return Transcript{}, fmt.Errorf("open recording: %w", err)
	}
	defer f.Close()

	info, err := wav.Inspect(f)
	if err != nil {
		return Transcript{}, fmt.Errorf("inspect recording: %w", err)
	}

	text := fmt.Sprintf("[%s of audio, peak %.0f%%]", info.Duration.Round(time.Millisecond), info.Peak*100)
	return Transcript{Text: text, Confidence: 0, Language: language}, nil
}

type mockSynthesizer struct {
	perWord time.Duration
	max     time.Duration
}

// NewMockSynthesizer returns a synthesizer that renders text as a beep
// whose length grows with the word count.
func NewMockSynthesizer() Synthesizer {
	return mockSynthesizer{perWord: 250 * time.Millisecond, max: 10 * time.Second}
}

func (m mockSynthesizer) Synthesize(ctx context.Context, text, voice string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	words := len(strings.Fields(text))
	if words == 0 {
		return nil, errors.New("nothing to synthesize")
	}
	d := time.Duration(words) * m.perWord
	if d > m.max {
		d = m.max
	}
	return wav.Encode(tone(d, 660)), nil
}

// tone renders d of a sine at freq Hz as 16-bit mono PCM with a short fade
// at both ends.
func tone(d time.Duration, freq float64) []byte {
	n := int(d * wav.SampleRate / time.Second)
	fade := wav.SampleRate / 100
	pcm := make([]byte, n*2)
	for i := 0; i < n; i++ {
		gain := 1.0
		if i < fade {
			gain = float64(i) / float64(fade)
		} else if n-i < fade {
			gain = float64(n-i) / float64(fade)
		}
		s := int16(12000 * gain * math.Sin(2*math.Pi*freq*float64(i)/wav.SampleRate))
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(s))
	}
	return pcm
}
