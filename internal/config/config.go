// Package config handles loading, defaulting, and validation of the voicememo
// TOML configuration file. Every section maps to a typed struct so the rest
// of the codebase gets strong typing without manual key lookups.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config is the top-level configuration, mirroring the TOML sections.
type Config struct {
	Data     DataConfig     `toml:"data"     json:"data"`
	Logging  LoggingConfig  `toml:"logging"  json:"logging"`
	Server   ServerConfig   `toml:"server"   json:"server"`
	Capture  CaptureConfig  `toml:"capture"  json:"capture"`
	Playback PlaybackConfig `toml:"playback" json:"playback"`
	Speech   SpeechConfig   `toml:"speech"   json:"speech"`
}

type DataConfig struct {
	Root string `toml:"root" json:"root"`
}

type LoggingConfig struct {
	Level string `toml:"level" json:"level"`
}

type ServerConfig struct {
	Bind string `toml:"bind" json:"bind"`
}

// CaptureConfig selects the input device. The recording format itself is
// fixed (mono, 16-bit, 44.1 kHz) and not configurable.
type CaptureConfig struct {
	Device      string  `toml:"device"       json:"device"` // portaudio | tone
	ChunkFrames int     `toml:"chunk_frames" json:"chunk_frames"`
	ToneHz      float64 `toml:"tone_hz"      json:"tone_hz"`
}

type PlaybackConfig struct {
	Output         string `toml:"output"           json:"output"` // speaker | null
	PollIntervalMS int    `toml:"poll_interval_ms" json:"poll_interval_ms"`
	BufferMS       int    `toml:"buffer_ms"        json:"buffer_ms"`
}

type SpeechConfig struct {
	Backend           string `toml:"backend"            json:"backend"` // mock | exec
	RecognizeCommand  string `toml:"recognize_command"  json:"recognize_command"`
	SynthesizeCommand string `toml:"synthesize_command" json:"synthesize_command"`
	Language          string `toml:"language"           json:"language"`
	Voice             string `toml:"voice"              json:"voice"`
	TimeoutSeconds    int    `toml:"timeout_seconds"    json:"timeout_seconds"`
}

// PollInterval returns the progress sampling cadence.
func (p PlaybackConfig) PollInterval() time.Duration {
	return time.Duration(p.PollIntervalMS) * time.Millisecond
}

// Buffer returns the output device buffer length.
func (p PlaybackConfig) Buffer() time.Duration {
	return time.Duration(p.BufferMS) * time.Millisecond
}

// Timeout returns the per-call limit for speech backends.
func (s SpeechConfig) Timeout() time.Duration {
	return time.Duration(s.TimeoutSeconds) * time.Second
}

// Default returns a Config populated with sane defaults. Values here are
// used whenever the TOML file omits a field.
func Default() Config {
	return Config{
		Data: DataConfig{
			Root: "/var/lib/voicememo",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Server: ServerConfig{
			Bind: "127.0.0.1:8080",
		},
		Capture: CaptureConfig{
			Device:      "portaudio",
			ChunkFrames: 4096,
			ToneHz:      440,
		},
		Playback: PlaybackConfig{
			Output:         "speaker",
			PollIntervalMS: 1000,
			BufferMS:       100,
		},
		Speech: SpeechConfig{
			Backend:        "mock",
			Language:       "en-US",
			TimeoutSeconds: 30,
		},
	}
}

// Load reads the TOML file at path, layers it on top of the defaults, and
// validates the result. An error is returned if the file can't be read,
// parsed, or if any constraint is violated.
func Load(path string) (Config, error) {
	cfg := Default()

	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}

	if err := toml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}

	if err := Validate(cfg); err != nil {
		return cfg, err
	}

	return cfg, nil
}

// Validate checks every constraint on cfg.
func Validate(cfg Config) error {
	if cfg.Data.Root == "" {
		return errors.New("data.root must not be empty")
	}
	switch cfg.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error (got %q)", cfg.Logging.Level)
	}
	switch cfg.Capture.Device {
	case "portaudio", "tone":
	default:
		return fmt.Errorf("capture.device must be portaudio or tone (got %q)", cfg.Capture.Device)
	}
	if cfg.Capture.ChunkFrames < 64 || cfg.Capture.ChunkFrames > 65536 {
		return errors.New("capture.chunk_frames must be between 64 and 65536")
	}
	if cfg.Capture.ToneHz <= 0 {
		return errors.New("capture.tone_hz must be > 0")
	}
	switch cfg.Playback.Output {
	case "speaker", "null":
	default:
		return fmt.Errorf("playback.output must be speaker or null (got %q)", cfg.Playback.Output)
	}
	if cfg.Playback.PollIntervalMS < 10 {
		return errors.New("playback.poll_interval_ms must be >= 10")
	}
	if cfg.Playback.BufferMS < 10 {
		return errors.New("playback.buffer_ms must be >= 10")
	}
	switch cfg.Speech.Backend {
	case "mock":
	case "exec":
		if cfg.Speech.RecognizeCommand == "" && cfg.Speech.SynthesizeCommand == "" {
			return errors.New("speech.backend exec needs recognize_command or synthesize_command")
		}
	default:
		return fmt.Errorf("speech.backend must be mock or exec (got %q)", cfg.Speech.Backend)
	}
	if cfg.Speech.TimeoutSeconds < 1 {
		return errors.New("speech.timeout_seconds must be >= 1")
	}
	return nil
}
