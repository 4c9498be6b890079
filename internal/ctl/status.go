package ctl

import (
	"fmt"
	"strings"
	"time"
)

// StatusResponse mirrors the JSON returned by GET /api/status.
type StatusResponse struct {
	Name          string `json:"name"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	DataRoot      string `json:"data_root"`
	WSClients     int    `json:"ws_clients"`
	Recording     struct {
		Recording bool   `json:"recording"`
		SessionID string `json:"session_id"`
		Path      string `json:"path"`
		Bytes     int64  `json:"bytes"`
		StartedAt string `json:"started_at"`
	} `json:"recording"`
	Playback struct {
		State      string `json:"state"`
		SessionID  string `json:"session_id"`
		PositionMs int64  `json:"position_ms"`
		DurationMs int64  `json:"duration_ms"`
	} `json:"playback"`
	Disk *struct {
		AvailableBytes uint64 `json:"available_bytes"`
		RecordSeconds  uint64 `json:"record_seconds"`
	} `json:"disk"`
}

// Status fetches the daemon status and prints a formatted summary.
func Status(baseURL string, jsonOutput bool) error {
	baseURL = strings.TrimRight(baseURL, "/")

	var s StatusResponse
	if err := getJSON(baseURL, "/api/status", &s); err != nil {
		return err
	}
	if jsonOutput {
		return printJSON(s)
	}

	capState := "IDLE"
	if s.Recording.Recording {
		capState = "RECORDING"
	}

	fmt.Println()
	fmt.Println(header("  VOICEMEMO STATUS"))
	fmt.Println(rule(38))
	fmt.Printf("  %-12s %s\n", colorize(dim, "Daemon:"), s.Name)
	fmt.Printf("  %-12s %s\n", colorize(dim, "Uptime:"), formatDuration(time.Duration(s.UptimeSeconds)*time.Second))
	fmt.Printf("  %-12s %s\n", colorize(dim, "Capture:"), colorize(stateColor(capState), capState))
	if s.Recording.Recording {
		fmt.Printf("  %-12s %s, started %s\n", colorize(dim, ""), formatBytes(s.Recording.Bytes), formatWhen(s.Recording.StartedAt))
	}
	if s.Recording.Path != "" {
		fmt.Printf("  %-12s %s\n", colorize(dim, "File:"), s.Recording.Path)
	}
	fmt.Printf("  %-12s %s\n", colorize(dim, "Playback:"), colorize(stateColor(s.Playback.State), s.Playback.State))
	if s.Playback.DurationMs > 0 {
		fmt.Printf("  %-12s %s / %s\n", colorize(dim, "Position:"), formatMs(s.Playback.PositionMs), formatMs(s.Playback.DurationMs))
	}
	fmt.Printf("  %-12s %s\n", colorize(dim, "Data:"), s.DataRoot)
	if s.Disk != nil {
		fmt.Printf("  %-12s %s free (%s of audio)\n", colorize(dim, "Disk:"),
			formatBytes(int64(s.Disk.AvailableBytes)),
			formatDuration(time.Duration(s.Disk.RecordSeconds)*time.Second))
	}
	fmt.Printf("  %-12s %d\n", colorize(dim, "Watchers:"), s.WSClients)
	fmt.Printf("  %-12s %s\n", colorize(dim, "Host:"), baseURL)
	fmt.Println()

	return nil
}
