package ctl

import (
	"fmt"
	"os"

	"github.com/large-farva/voicememo/internal/wav"
)

// Inspect dumps the header of a local WAV file without contacting the
// daemon, flagging files whose size fields were never patched.
func Inspect(path string, jsonOutput bool) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := wav.Inspect(f)
	if err != nil {
		return fmt.Errorf("inspect %s: %w", path, err)
	}

	if jsonOutput {
		return printJSON(map[string]any{
			"path":        path,
			"valid":       info.Valid,
			"finalized":   info.Finalized,
			"channels":    info.Channels,
			"sample_rate": info.SampleRate,
			"bit_depth":   info.BitDepth,
			"riff_size":   info.Header.RiffSize,
			"data_size":   info.Header.DataSize,
			"data_bytes":  info.DataBytes,
			"duration_ms": info.Duration.Milliseconds(),
			"peak":        info.Peak,
		})
	}

	state := colorize(green, "finalized")
	if !info.Finalized {
		state = colorize(yellow, "not finalized (size fields do not match file length)")
	}

	h := info.Header
	fmt.Println()
	fmt.Println(header("  " + path))
	fmt.Println(rule(50))
	fmt.Printf("  %-14s %s\n", colorize(dim, "State:"), state)
	fmt.Printf("  %-14s %s %d\n", colorize(dim, "RIFF size:"), string(h.RiffID[:]), h.RiffSize)
	fmt.Printf("  %-14s %s / %s (%d)\n", colorize(dim, "Chunks:"), string(h.WaveID[:]), string(h.FmtID[:]), h.FmtSize)
	fmt.Printf("  %-14s format %d, %d ch, %d Hz, %d bit\n", colorize(dim, "Format:"),
		h.AudioFormat, h.NumChannels, h.SampleRate, h.BitsPerSamp)
	fmt.Printf("  %-14s byte rate %d, block align %d\n", colorize(dim, ""), h.ByteRate, h.BlockAlign)
	fmt.Printf("  %-14s %s %d (%s)\n", colorize(dim, "Data:"), string(h.DataID[:]), h.DataSize, formatBytes(info.DataBytes))
	fmt.Printf("  %-14s %s\n", colorize(dim, "Duration:"), formatMs(info.Duration.Milliseconds()))
	if info.Finalized {
		fmt.Printf("  %-14s %.1f%%\n", colorize(dim, "Peak:"), info.Peak*100)
	}
	fmt.Println()
	return nil
}
