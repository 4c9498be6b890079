package ctl

import (
	"fmt"
	"strings"
	"time"
)

// StatsResponse mirrors GET /api/stats.
type StatsResponse struct {
	UptimeSeconds int64 `json:"uptime_seconds"`
	Stats         struct {
		Recordings      int    `json:"recordings"`
		RecordingsFail  int    `json:"recordings_failed"`
		RecordedBytes   int64  `json:"recorded_bytes"`
		LastRecordingAt string `json:"last_recording_at"`
		Playbacks       int    `json:"playbacks"`
		PlaybacksDone   int    `json:"playbacks_completed"`
		DecodeErrors    int    `json:"decode_errors"`
		LastPlaybackAt  string `json:"last_playback_at"`
		Transcriptions  int    `json:"transcriptions"`
		Syntheses       int    `json:"syntheses"`
		SpeechFailures  int    `json:"speech_failures"`
	} `json:"stats"`
}

// Stats shows aggregate recording, playback and speech counters.
func Stats(baseURL string, jsonOutput bool) error {
	baseURL = strings.TrimRight(baseURL, "/")

	var resp StatsResponse
	if err := getJSON(baseURL, "/api/stats", &resp); err != nil {
		return err
	}
	if jsonOutput {
		return printJSON(resp)
	}
	s := resp.Stats

	fmt.Println()
	fmt.Println(header("  STATISTICS"))
	fmt.Println(rule(42))
	fmt.Printf("  Uptime:          %s\n", formatDuration(time.Duration(resp.UptimeSeconds)*time.Second))
	fmt.Println()

	t := newTable("  ", "Activity", "Count", "Detail")
	t.alignRight(1)
	t.row("recordings", fmt.Sprint(s.Recordings), formatBytes(s.RecordedBytes)+", last "+formatWhen(s.LastRecordingAt))
	t.row("recording failures", fmt.Sprint(s.RecordingsFail), "")
	t.row("playbacks", fmt.Sprint(s.Playbacks), fmt.Sprintf("%d completed, last %s", s.PlaybacksDone, formatWhen(s.LastPlaybackAt)))
	t.row("decode errors", fmt.Sprint(s.DecodeErrors), "")
	t.row("transcriptions", fmt.Sprint(s.Transcriptions), "")
	t.row("syntheses", fmt.Sprint(s.Syntheses), "")
	t.row("speech failures", fmt.Sprint(s.SpeechFailures), "")
	t.flush()

	fmt.Println()
	return nil
}
