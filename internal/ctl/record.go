package ctl

import (
	"fmt"
	"strings"
	"time"
)

// RecordOptions controls the record command.
type RecordOptions struct {
	Dir string
	// Duration, when set, stops the recording after that long.
	Duration time.Duration
	JSON     bool
}

type recordStopResponse struct {
	result
	SessionID  string `json:"session_id"`
	Path       string `json:"path"`
	Bytes      int64  `json:"bytes"`
	DurationMs int64  `json:"duration_ms"`
}

// Record starts a capture session on the daemon.
func Record(baseURL string, opts RecordOptions) error {
	baseURL = strings.TrimRight(baseURL, "/")

	var body any
	if opts.Dir != "" {
		body = map[string]any{"dir": opts.Dir}
	}
	var resp struct {
		result
		Path string `json:"path"`
	}
	if err := postJSON(baseURL, "/api/record/start", body, &resp); err != nil {
		return err
	}

	if opts.Duration <= 0 {
		if opts.JSON {
			return printJSON(resp)
		}
		printResult("RECORDING", resp.result, resp.Path)
		return nil
	}

	if !opts.JSON {
		fmt.Printf("\n  %s  %s for %s\n", colorize(red, "RECORDING"), resp.Path, formatDuration(opts.Duration))
	}
	time.Sleep(opts.Duration)
	return StopRecord(baseURL, opts.JSON)
}

// StopRecord stops the active capture session and reports what was written.
func StopRecord(baseURL string, jsonOutput bool) error {
	baseURL = strings.TrimRight(baseURL, "/")

	var resp recordStopResponse
	if err := postJSON(baseURL, "/api/record/stop", nil, &resp); err != nil {
		return err
	}
	if jsonOutput {
		return printJSON(resp)
	}
	if resp.Path == "" {
		printResult("IDLE", resp.result, "")
		return nil
	}
	printResult("SAVED", resp.result, fmt.Sprintf("%s (%s, %s)",
		resp.Path, formatMs(resp.DurationMs), formatBytes(resp.Bytes)))
	return nil
}
