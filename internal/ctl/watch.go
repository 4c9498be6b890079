package ctl

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
)

// WatchOptions controls the watch command behavior.
type WatchOptions struct {
	Filter []string // event types to show (empty = all)
	JSON   bool     // output raw JSON per event
}

// wsURL turns the daemon's HTTP base URL into its event stream URL. The
// filter is sent to the daemon so unwanted events never cross the wire.
func wsURL(baseURL string, filter []string) (string, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}
	u.Path = "/ws"
	u.RawQuery = ""
	if len(filter) > 0 {
		u.RawQuery = url.Values{"types": {strings.Join(filter, ",")}}.Encode()
	}
	return u.String(), nil
}

// Watch connects to the daemon's WebSocket endpoint and streams events to
// the terminal in a human-readable format until interrupted.
func Watch(baseURL string, opts WatchOptions) error {
	target, err := wsURL(baseURL, opts.Filter)
	if err != nil {
		return err
	}

	conn, _, err := websocket.DefaultDialer.Dial(target, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	if !opts.JSON {
		fmt.Println()
		fmt.Printf("  %s %s\n", colorize(green, "connected"), colorize(dim, target))
		if len(opts.Filter) > 0 {
			fmt.Printf("  %s %s\n", colorize(dim, "filter:"), colorize(dim, strings.Join(opts.Filter, ", ")))
		}
		fmt.Println(rule(50))
		fmt.Println()
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if opts.JSON {
				fmt.Println(string(msg))
			} else {
				fmt.Print(renderEvent(msg))
			}
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sig:
		if !opts.JSON {
			fmt.Println()
			fmt.Println(colorize(dim, "  disconnecting..."))
		}
		_ = conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"),
			time.Now().Add(1*time.Second),
		)
		return nil
	case <-done:
		return nil
	}
}

// renderEvent formats a JSON event for the terminal. Unrecognized event
// types fall back to indented JSON.
func renderEvent(raw []byte) string {
	var ev map[string]any
	if err := json.Unmarshal(raw, &ev); err != nil {
		return fmt.Sprintf("  %s\n", string(raw))
	}

	evType, _ := ev["type"].(string)
	component, _ := ev["component"].(string)
	ts := formatEventTime(ev)

	switch evType {
	case "heartbeat":
		recording, _ := ev["recording"].(bool)
		pb, _ := ev["playback"].(string)
		uptime, _ := ev["uptime_seconds"].(float64)
		capState := "IDLE"
		if recording {
			capState = "RECORDING"
		}
		return fmt.Sprintf("  %s %s  capture %s  playback %s  up %s\n",
			colorize(dim, ts),
			colorize(dim, "heartbeat"),
			colorize(stateColor(capState), capState),
			colorize(stateColor(pb), pb),
			colorize(dim, formatDuration(time.Duration(uptime)*time.Second)),
		)

	case "state":
		from, _ := ev["from"].(string)
		to, _ := ev["to"].(string)
		return fmt.Sprintf("  %s %s  %-8s %s %s %s\n",
			colorize(dim, ts),
			colorize(bold, "STATE"),
			component,
			colorize(stateColor(from), from),
			colorize(dim, "->"),
			colorize(stateColor(to), to),
		)

	case "log":
		level, _ := ev["level"].(string)
		message, _ := ev["message"].(string)
		src := ""
		if component != "" {
			src = colorize(dim, "["+component+"] ")
		}
		return fmt.Sprintf("  %s %s  %s%s\n", colorize(dim, ts), formatLogLevel(level), src, message)

	case "progress":
		stage, _ := ev["stage"].(string)
		pct, _ := ev["percent"].(float64)
		detail, _ := ev["detail"].(string)
		if stage == "recording" {
			// Recording length is open ended; there is no percentage.
			return fmt.Sprintf("  %s %s  %s\n", colorize(dim, ts), colorize(cyan, padRight(stage, 10)), colorize(dim, detail))
		}
		return fmt.Sprintf("  %s %s  [%s] %3.0f%%  %s\n",
			colorize(dim, ts),
			colorize(cyan, padRight(stage, 10)),
			progressBar(int(pct), 20),
			pct,
			colorize(dim, detail),
		)

	case "recording":
		action, _ := ev["action"].(string)
		path, _ := ev["path"].(string)
		size, _ := ev["bytes"].(float64)
		errMsg, _ := ev["error"].(string)
		color := green
		switch action {
		case "started":
			color = red
		case "failed":
			color = yellow
		}
		line := fmt.Sprintf("  %s %s  %s %s", colorize(dim, ts), colorize(color, strings.ToUpper(padRight(action, 8))),
			path, colorize(dim, formatBytes(int64(size))))
		if errMsg != "" {
			line += "  " + colorize(red, errMsg)
		}
		return line + "\n"

	default:
		pretty, err := json.MarshalIndent(ev, "  ", "  ")
		if err != nil {
			return fmt.Sprintf("  %s\n", string(raw))
		}
		return fmt.Sprintf("  %s\n", string(pretty))
	}
}

// formatEventTime extracts and shortens the timestamp from an event.
func formatEventTime(ev map[string]any) string {
	tsRaw, ok := ev["ts"].(string)
	if !ok {
		return "        "
	}
	t, err := time.Parse(time.RFC3339Nano, tsRaw)
	if err != nil {
		if len(tsRaw) > 10 {
			return tsRaw[:10]
		}
		return tsRaw
	}
	return t.Local().Format("15:04:05")
}

// formatLogLevel returns a colored, fixed-width log level label.
func formatLogLevel(level string) string {
	switch level {
	case "debug":
		return colorize(dim, "DEBUG")
	case "info":
		return colorize(green, "INFO ")
	case "warn":
		return colorize(yellow, "WARN ")
	case "error":
		return colorize(red, "ERROR")
	default:
		return padRight(level, 5)
	}
}
