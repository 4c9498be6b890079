package ctl

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/large-farva/voicememo/internal/config"
)

// Config fetches and displays the daemon's running configuration.
func Config(baseURL string, jsonOutput bool) error {
	baseURL = strings.TrimRight(baseURL, "/")

	var raw json.RawMessage
	if err := getJSON(baseURL, "/api/config", &raw); err != nil {
		return err
	}

	if jsonOutput {
		var v any
		_ = json.Unmarshal(raw, &v)
		return printJSON(v)
	}

	var cfg config.Config
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return err
	}

	fmt.Println()
	fmt.Println(header("  DAEMON CONFIGURATION"))
	fmt.Println(rule(50))

	section := func(name string) {
		fmt.Printf("\n  %s\n", colorize(bold, "["+name+"]"))
	}
	field := func(key string, val any) {
		fmt.Printf("    %-20s %v\n", colorize(dim, key+":"), val)
	}

	section("data")
	field("root", cfg.Data.Root)

	section("logging")
	field("level", cfg.Logging.Level)

	section("server")
	field("bind", cfg.Server.Bind)

	section("capture")
	field("device", cfg.Capture.Device)
	field("chunk_frames", cfg.Capture.ChunkFrames)
	field("tone_hz", cfg.Capture.ToneHz)

	section("playback")
	field("output", cfg.Playback.Output)
	field("poll_interval_ms", cfg.Playback.PollIntervalMS)
	field("buffer_ms", cfg.Playback.BufferMS)

	section("speech")
	field("backend", cfg.Speech.Backend)
	field("recognize_command", cfg.Speech.RecognizeCommand)
	field("synthesize_command", cfg.Speech.SynthesizeCommand)
	field("language", cfg.Speech.Language)
	field("voice", cfg.Speech.Voice)
	field("timeout_seconds", cfg.Speech.TimeoutSeconds)

	fmt.Println()
	return nil
}
