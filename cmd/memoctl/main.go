// Memoctl is the command-line client for a running voicememod. It records,
// plays back and transcribes memos over HTTP, and streams live events over
// WebSocket.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/pflag"

	"github.com/large-farva/voicememo/internal/ctl"
)

func main() {
	var (
		host    = pflag.StringP("host", "H", "http://127.0.0.1:8080", "voicememod URL (e.g. http://192.168.8.1:8080)")
		jsonOut = pflag.Bool("json", false, "Output raw JSON instead of formatted text")
		filter  = pflag.StringSlice("filter", nil, "Event types to show in watch (e.g. --filter state,log)")
	)

	// Stop parsing global flags at the command name so per-command flags
	// like --duration are not rejected.
	pflag.CommandLine.SetInterspersed(false)
	pflag.Parse()

	if pflag.NArg() < 1 {
		usage()
		os.Exit(2)
	}

	cmd := pflag.Arg(0)
	subArgs := pflag.Args()[1:]

	var err error
	switch cmd {
	// ── Query commands ────────────────────────────────────────────
	case "status":
		err = ctl.Status(*host, *jsonOut)

	case "health":
		err = ctl.Health(*host, *jsonOut)

	case "version":
		err = ctl.VersionInfo(*host, *jsonOut)

	case "config":
		err = ctl.Config(*host, *jsonOut)

	case "system-info":
		err = ctl.SystemInfo(*host, *jsonOut)

	case "stats":
		err = ctl.Stats(*host, *jsonOut)

	case "logs":
		opts := ctl.LogsOptions{JSON: *jsonOut}
		fs := pflag.NewFlagSet("logs", pflag.ExitOnError)
		fs.StringVar(&opts.Level, "level", "", "Show only this log level (debug, info, warn, error)")
		fs.IntVar(&opts.Limit, "limit", 0, "Limit number of log entries shown")
		fs.BoolVar(&opts.Tail, "tail", false, "Stream live log events (like watch --filter log)")
		_ = fs.Parse(subArgs)
		err = ctl.Logs(*host, opts)

	case "recordings":
		opts := ctl.RecordingsOptions{JSON: *jsonOut}
		fs := pflag.NewFlagSet("recordings", pflag.ExitOnError)
		fs.StringVar(&opts.Delete, "delete", "", "Delete a recording by name")
		_ = fs.Parse(subArgs)
		err = ctl.Recordings(*host, opts)

	case "inspect":
		if len(subArgs) != 1 {
			err = fmt.Errorf("usage: memoctl inspect PATH")
			break
		}
		err = ctl.Inspect(subArgs[0], *jsonOut)

	// ── Capture commands ──────────────────────────────────────────
	case "record":
		opts := ctl.RecordOptions{JSON: *jsonOut}
		fs := pflag.NewFlagSet("record", pflag.ExitOnError)
		fs.StringVar(&opts.Dir, "dir", "", "Subdirectory of the data root to record into")
		fs.DurationVar(&opts.Duration, "duration", 0, "Stop automatically after this long (e.g. 30s)")
		_ = fs.Parse(subArgs)
		err = ctl.Record(*host, opts)

	case "stop-record":
		err = ctl.StopRecord(*host, *jsonOut)

	// ── Playback commands ─────────────────────────────────────────
	case "play":
		opts := ctl.PlayOptions{JSON: *jsonOut}
		fs := pflag.NewFlagSet("play", pflag.ExitOnError)
		fs.StringVar(&opts.File, "file", "", "Upload and play a local audio file")
		_ = fs.Parse(subArgs)
		if fs.NArg() > 0 {
			opts.Name = fs.Arg(0)
		}
		err = ctl.Play(*host, opts)

	case "pause":
		err = ctl.Pause(*host, *jsonOut)

	case "resume":
		err = ctl.Resume(*host, *jsonOut)

	case "replay":
		err = ctl.Replay(*host, *jsonOut)

	case "stop":
		err = ctl.Stop(*host, *jsonOut)

	// ── Speech commands ───────────────────────────────────────────
	case "transcribe":
		opts := ctl.TranscribeOptions{JSON: *jsonOut}
		fs := pflag.NewFlagSet("transcribe", pflag.ExitOnError)
		fs.StringVar(&opts.Language, "language", "", "Recognition language (default from daemon config)")
		_ = fs.Parse(subArgs)
		if fs.NArg() > 0 {
			opts.Name = fs.Arg(0)
		}
		err = ctl.Transcribe(*host, opts)

	case "speak":
		opts := ctl.SpeakOptions{JSON: *jsonOut}
		fs := pflag.NewFlagSet("speak", pflag.ExitOnError)
		fs.StringVar(&opts.Voice, "voice", "", "Synthesizer voice (default from daemon config)")
		_ = fs.Parse(subArgs)
		opts.Text = strings.Join(fs.Args(), " ")
		err = ctl.Speak(*host, opts)

	// ── Live streaming ────────────────────────────────────────────
	case "watch":
		opts := ctl.WatchOptions{JSON: *jsonOut}
		fs := pflag.NewFlagSet("watch", pflag.ExitOnError)
		fs.StringSliceVar(&opts.Filter, "filter", *filter, "Event types to show")
		_ = fs.Parse(subArgs)
		err = ctl.Watch(*host, opts)

	default:
		usage()
		os.Exit(2)
	}

	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Print(`
  memoctl: voice memo control CLI

  USAGE
    memoctl [flags] <command> [command-flags]

  COMMANDS (query)
    status          Show capture and playback state and uptime
    health          Check daemon and component health
    version         Show CLI and daemon version information
    config          Show the daemon's running configuration
    system-info     Show runtime, disk and hardware information
    stats           Show recording, playback and speech counters
    logs            Show recent daemon log messages
    recordings      List recordings under the data root
    inspect PATH    Dump the WAV header of a local file

  COMMANDS (capture)
    record          Start recording from the input device
    stop-record     Stop recording and finalize the WAV file

  COMMANDS (playback)
    play NAME       Play a recording (or --file to upload one)
    pause           Pause playback
    resume          Resume paused playback
    replay          Restart playback from the beginning
    stop            Stop playback

  COMMANDS (speech)
    transcribe [NAME]   Transcribe a recording (default recording.wav)
    speak TEXT...       Synthesize text and play it

  COMMANDS (live)
    watch           Stream live events from the daemon (Ctrl-C to stop)

  GLOBAL FLAGS
    -H, --host URL      Daemon base URL (default: http://127.0.0.1:8080)
        --json          Output raw JSON instead of formatted text
        --filter TYPE   Event types to show in watch (comma-separated)

  COMMAND FLAGS
    logs:
        --level LEVEL       Show only this log level (debug, info, warn, error)
        --limit N           Limit number of log entries shown
        --tail              Stream live log events

    recordings:
        --delete NAME       Delete a recording by name

    record:
        --dir DIR           Subdirectory of the data root to record into
        --duration D        Stop automatically after D (e.g. 30s)

    play:
        --file PATH         Upload and play a local audio file

    transcribe:
        --language LANG     Recognition language

    speak:
        --voice VOICE       Synthesizer voice

  EXAMPLES
    memoctl status
    memoctl --json status
    memoctl record --duration 10s
    memoctl stop-record
    memoctl recordings
    memoctl play recording.wav
    memoctl play --file ~/greeting.mp3
    memoctl pause
    memoctl replay
    memoctl transcribe recording.wav --language en-US
    memoctl speak hello there
    memoctl inspect /var/lib/voicememo/recording.wav
    memoctl logs --level warn --limit 20
    memoctl --host http://192.168.8.1:8080 watch --filter state,progress

`)
}
