package ctl

import (
	"fmt"
	"strings"
	"time"
)

// SystemInfo shows runtime and backend information from the daemon.
func SystemInfo(baseURL string, jsonOutput bool) error {
	baseURL = strings.TrimRight(baseURL, "/")

	var resp struct {
		GoVersion      string `json:"go_version"`
		OS             string `json:"os"`
		Arch           string `json:"arch"`
		DataRoot       string `json:"data_root"`
		ConfigPath     string `json:"config_path"`
		CaptureDevice  string `json:"capture_device"`
		PlaybackOutput string `json:"playback_output"`
		SpeechBackend  string `json:"speech_backend"`
		Host           struct {
			Hostname      string  `json:"hostname"`
			Platform      string  `json:"platform"`
			Kernel        string  `json:"kernel"`
			UptimeSeconds uint64  `json:"uptime_seconds"`
			MemTotalBytes uint64  `json:"mem_total_bytes"`
			MemUsedBytes  uint64  `json:"mem_used_bytes"`
			MemPercent    float64 `json:"mem_percent"`
		} `json:"host"`
		Disk *struct {
			TotalBytes     uint64  `json:"total_bytes"`
			UsedBytes      uint64  `json:"used_bytes"`
			AvailableBytes uint64  `json:"available_bytes"`
			UsedPercent    float64 `json:"used_percent"`
			RecordSeconds  uint64  `json:"record_seconds"`
		} `json:"disk"`
	}
	if err := getJSON(baseURL, "/api/system", &resp); err != nil {
		return err
	}

	if jsonOutput {
		return printJSON(resp)
	}

	fmt.Println()
	fmt.Println(header("  SYSTEM INFO"))
	fmt.Println(rule(50))
	fmt.Printf("  Go version:  %s\n", resp.GoVersion)
	fmt.Printf("  OS/Arch:     %s/%s\n", resp.OS, resp.Arch)
	if h := resp.Host; h.Hostname != "" {
		fmt.Printf("  Host:        %s (%s, kernel %s)\n", h.Hostname, strings.TrimSpace(h.Platform), h.Kernel)
		fmt.Printf("  Host uptime: %s\n", formatDuration(time.Duration(h.UptimeSeconds)*time.Second))
	}
	if h := resp.Host; h.MemTotalBytes > 0 {
		fmt.Printf("  Memory:      %s / %s (%.0f%%)\n", formatBytes(int64(h.MemUsedBytes)),
			formatBytes(int64(h.MemTotalBytes)), h.MemPercent)
	}
	fmt.Printf("  Data root:   %s\n", resp.DataRoot)
	if resp.ConfigPath != "" {
		fmt.Printf("  Config:      %s\n", resp.ConfigPath)
	}
	fmt.Printf("  Input:       %s\n", resp.CaptureDevice)
	fmt.Printf("  Output:      %s\n", resp.PlaybackOutput)
	fmt.Printf("  Speech:      %s\n", resp.SpeechBackend)

	if resp.Disk != nil {
		fmt.Printf("  Disk total:  %s\n", formatBytes(int64(resp.Disk.TotalBytes)))
		fmt.Printf("  Disk used:   %s (%.0f%%)\n", formatBytes(int64(resp.Disk.UsedBytes)), resp.Disk.UsedPercent)
		fmt.Printf("  Disk avail:  %s (%s of audio)\n", formatBytes(int64(resp.Disk.AvailableBytes)),
			formatDuration(time.Duration(resp.Disk.RecordSeconds)*time.Second))
	}

	fmt.Println()
	return nil
}
