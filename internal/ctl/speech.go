package ctl

import (
	"fmt"
	"strings"
)

// TranscribeOptions controls the transcribe command.
type TranscribeOptions struct {
	Name     string
	Language string
	JSON     bool
}

// Transcribe asks the daemon to recognize a finished recording.
func Transcribe(baseURL string, opts TranscribeOptions) error {
	body := map[string]any{}
	if opts.Name != "" {
		body["name"] = opts.Name
	}
	if opts.Language != "" {
		body["language"] = opts.Language
	}

	var resp struct {
		result
		Name       string `json:"name"`
		Transcript struct {
			Text       string  `json:"text"`
			Confidence float64 `json:"confidence"`
			Language   string  `json:"language"`
		} `json:"transcript"`
	}
	if err := postWith(speechClient, baseURL, "/api/transcribe", body, &resp); err != nil {
		return err
	}
	if opts.JSON {
		return printJSON(resp)
	}

	fmt.Println()
	fmt.Printf("  %s  %s %s\n", colorize(green, "TRANSCRIPT"), resp.Name,
		colorize(dim, fmt.Sprintf("(%s, confidence %.2f)", resp.Transcript.Language, resp.Transcript.Confidence)))
	fmt.Println(rule(50))
	fmt.Printf("  %s\n", resp.Transcript.Text)
	fmt.Println()
	return nil
}

// SpeakOptions controls the speak command.
type SpeakOptions struct {
	Text  string
	Voice string
	JSON  bool
}

// Speak synthesizes text on the daemon and plays the result.
func Speak(baseURL string, opts SpeakOptions) error {
	if strings.TrimSpace(opts.Text) == "" {
		return fmt.Errorf("text required")
	}
	body := map[string]any{"text": opts.Text}
	if opts.Voice != "" {
		body["voice"] = opts.Voice
	}

	var resp playbackResponse
	if err := postWith(speechClient, baseURL, "/api/speak", body, &resp); err != nil {
		return err
	}
	return printPlayback("SPEAKING", resp, opts.JSON)
}
