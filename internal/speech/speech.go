// Package speech is the boundary to speech recognition and synthesis
// backends. Recognition consumes the path of a finished recording;
// synthesis produces an encoded audio buffer ready for playback.
package speech

import (
	"context"
	"fmt"

	"github.com/large-farva/voicememo/internal/config"
)

// Transcript is the recognizer's output.
type Transcript struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
	Language   string  `json:"language,omitempty"`
}

// Recognizer turns a WAV file into text.
type Recognizer interface {
	Recognize(ctx context.Context, audioPath, language string) (Transcript, error)
}

// Synthesizer turns text into an encoded audio buffer (WAV, MP3, ...).
type Synthesizer interface {
	Synthesize(ctx context.Context, text, voice string) ([]byte, error)
}

// New builds the recognizer and synthesizer selected by cfg. With the exec
// backend, a side whose command is empty falls back to the mock.
func New(cfg config.SpeechConfig) (Recognizer, Synthesizer, error) {
	switch cfg.Backend {
	case "", "mock":
		return NewMockRecognizer(), NewMockSynthesizer(), nil
	case "exec":
		var (
			rec   Recognizer  = NewMockRecognizer()
			synth Synthesizer = NewMockSynthesizer()
			err   error
		)
		if cfg.RecognizeCommand != "" {
			if rec, err = NewExecRecognizer(cfg.RecognizeCommand); err != nil {
				return nil, nil, err
			}
		}
		if cfg.SynthesizeCommand != "" {
			if synth, err = NewExecSynthesizer(cfg.SynthesizeCommand); err != nil {
				return nil, nil, err
			}
		}
		return rec, synth, nil
	default:
		return nil, nil, fmt.Errorf("unknown speech backend %q", cfg.Backend)
	}
}
