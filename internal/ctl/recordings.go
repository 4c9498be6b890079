package ctl

import (
	"fmt"
	"net/url"
	"strings"
)

// RecordingsOptions configures the recordings command.
type RecordingsOptions struct {
	Delete string
	JSON   bool
}

// Recording mirrors one entry of GET /api/recordings.
type Recording struct {
	Name       string  `json:"name"`
	Size       int64   `json:"size"`
	ModifiedAt string  `json:"modified_at"`
	Active     bool    `json:"active"`
	Finalized  bool    `json:"finalized"`
	DurationMs int64   `json:"duration_ms"`
	Peak       float64 `json:"peak"`
	Error      string  `json:"error"`
}

// Recordings lists or deletes recordings under the daemon's data root.
func Recordings(baseURL string, opts RecordingsOptions) error {
	baseURL = strings.TrimRight(baseURL, "/")

	if opts.Delete != "" {
		var r result
		if err := deleteJSON(baseURL, "/api/recordings?name="+url.QueryEscape(opts.Delete), &r); err != nil {
			return err
		}
		if opts.JSON {
			return printJSON(r)
		}
		printResult("DELETED", r, "")
		return nil
	}

	var resp struct {
		Recordings []Recording `json:"recordings"`
	}
	if err := getJSON(baseURL, "/api/recordings", &resp); err != nil {
		return err
	}

	if opts.JSON {
		return printJSON(resp)
	}

	fmt.Println()
	fmt.Println(header("  RECORDINGS"))

	if len(resp.Recordings) == 0 {
		fmt.Println(rule(24))
		fmt.Println("  No recordings found.")
	} else {
		t := newTable("  ", "Name", "Length", "Size", "Peak", "Modified", "State")
		t.alignRight(1, 2, 3)
		for _, r := range resp.Recordings {
			t.row(r.Name, formatMs(r.DurationMs), formatBytes(r.Size), fmt.Sprintf("%.0f%%", r.Peak*100),
				formatWhen(r.ModifiedAt), recordingState(r))
		}
		t.flush()
	}
	fmt.Println()
	return nil
}

func recordingState(r Recording) string {
	switch {
	case r.Active:
		return "recording"
	case r.Error != "":
		return "unreadable"
	case !r.Finalized:
		return "unfinalized"
	default:
		return "ok"
	}
}
