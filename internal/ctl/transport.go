package ctl

import (
	"encoding/base64"
	"fmt"
	"os"
	"strings"
)

type playbackStatus struct {
	State      string `json:"state"`
	SessionID  string `json:"session_id"`
	PositionMs int64  `json:"position_ms"`
	DurationMs int64  `json:"duration_ms"`
}

type playbackResponse struct {
	result
	Source   string         `json:"source"`
	Playback playbackStatus `json:"playback"`
}

// PlayOptions selects what to play: a recording on the daemon by Name, or
// a local audio File uploaded inline.
type PlayOptions struct {
	Name string
	File string
	JSON bool
}

// Play starts playback of a recording or an uploaded file.
func Play(baseURL string, opts PlayOptions) error {
	body := map[string]any{}
	switch {
	case opts.File != "":
		data, err := os.ReadFile(opts.File)
		if err != nil {
			return err
		}
		body["audio_base64"] = base64.StdEncoding.EncodeToString(data)
	case opts.Name != "":
		body["name"] = opts.Name
	default:
		return fmt.Errorf("recording name or --file required")
	}

	var resp playbackResponse
	if err := postJSON(baseURL, "/api/playback/play", body, &resp); err != nil {
		return err
	}
	return printPlayback("PLAYING", resp, opts.JSON)
}

// Pause pauses playback.
func Pause(baseURL string, jsonOutput bool) error {
	return transport(baseURL, "/api/playback/pause", jsonOutput)
}

// Resume continues paused playback.
func Resume(baseURL string, jsonOutput bool) error {
	return transport(baseURL, "/api/playback/resume", jsonOutput)
}

// Replay restarts playback from the beginning.
func Replay(baseURL string, jsonOutput bool) error {
	return transport(baseURL, "/api/playback/replay", jsonOutput)
}

// Stop ends playback.
func Stop(baseURL string, jsonOutput bool) error {
	return transport(baseURL, "/api/playback/stop", jsonOutput)
}

func transport(baseURL, path string, jsonOutput bool) error {
	baseURL = strings.TrimRight(baseURL, "/")

	var resp playbackResponse
	if err := postJSON(baseURL, path, nil, &resp); err != nil {
		return err
	}
	return printPlayback(resp.Playback.State, resp, jsonOutput)
}

func printPlayback(label string, resp playbackResponse, jsonOutput bool) error {
	if jsonOutput {
		return printJSON(resp)
	}
	detail := resp.Playback.State
	if resp.Playback.DurationMs > 0 {
		detail = fmt.Sprintf("%s / %s", formatMs(resp.Playback.PositionMs), formatMs(resp.Playback.DurationMs))
	}
	if resp.Source != "" {
		detail = resp.Source + "  " + detail
	}
	printResult(label, resp.result, detail)
	return nil
}
