package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "voicememo.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefaultIsValid(t *testing.T) {
	require.NoError(t, Validate(Default()))
}

func TestLoadLayersOverDefaults(t *testing.T) {
	path := writeConfig(t, `
[data]
root = "/tmp/memos"

[capture]
device = "tone"
tone_hz = 880.0

[playback]
output = "null"
poll_interval_ms = 250
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/memos", cfg.Data.Root)
	assert.Equal(t, "tone", cfg.Capture.Device)
	assert.Equal(t, 880.0, cfg.Capture.ToneHz)
	assert.Equal(t, 4096, cfg.Capture.ChunkFrames)
	assert.Equal(t, "null", cfg.Playback.Output)
	assert.Equal(t, 250*time.Millisecond, cfg.Playback.PollInterval())
	assert.Equal(t, 100*time.Millisecond, cfg.Playback.Buffer())
	assert.Equal(t, "mock", cfg.Speech.Backend)
	assert.Equal(t, 30*time.Second, cfg.Speech.Timeout())
	assert.Equal(t, "127.0.0.1:8080", cfg.Server.Bind)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadRejectsBadTOML(t *testing.T) {
	_, err := Load(writeConfig(t, "[data\nroot = "))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"empty root", func(c *Config) { c.Data.Root = "" }, "data.root"},
		{"bad level", func(c *Config) { c.Logging.Level = "loud" }, "logging.level"},
		{"bad device", func(c *Config) { c.Capture.Device = "alsa" }, "capture.device"},
		{"tiny chunk", func(c *Config) { c.Capture.ChunkFrames = 1 }, "capture.chunk_frames"},
		{"bad tone", func(c *Config) { c.Capture.ToneHz = 0 }, "capture.tone_hz"},
		{"bad output", func(c *Config) { c.Playback.Output = "hdmi" }, "playback.output"},
		{"fast poll", func(c *Config) { c.Playback.PollIntervalMS = 1 }, "playback.poll_interval_ms"},
		{"small buffer", func(c *Config) { c.Playback.BufferMS = 0 }, "playback.buffer_ms"},
		{"exec without commands", func(c *Config) { c.Speech.Backend = "exec" }, "speech.backend"},
		{"unknown backend", func(c *Config) { c.Speech.Backend = "cloud" }, "speech.backend"},
		{"zero timeout", func(c *Config) { c.Speech.TimeoutSeconds = 0 }, "speech.timeout_seconds"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(&cfg)
			err := Validate(cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestValidateExecWithCommand(t *testing.T) {
	cfg := Default()
	cfg.Speech.Backend = "exec"
	cfg.Speech.SynthesizeCommand = "say --json"
	assert.NoError(t, Validate(cfg))
}
