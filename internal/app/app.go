// Package app wires together the HTTP server, WebSocket hub, capture
// encoder, playback controller and speech backends. It owns the daemon's
// lifecycle and translates HTTP requests into component calls.
package app

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/large-farva/voicememo/internal/capture"
	"github.com/large-farva/voicememo/internal/config"
	"github.com/large-farva/voicememo/internal/metrics"
	"github.com/large-farva/voicememo/internal/playback"
	"github.com/large-farva/voicememo/internal/speech"
	"github.com/large-farva/voicememo/internal/telemetry"
	"github.com/large-farva/voicememo/internal/ws"
)

const heartbeatInterval = 10 * time.Second

// Options holds everything the App needs from the caller. Open and Renderer
// select the audio backends; speech backends default to the ones named in
// Cfg.Speech.
type Options struct {
	Logger     *log.Logger
	Cfg        config.Config
	ConfigPath string
	Bind       string

	Open        capture.Opener
	Renderer    playback.Renderer
	Recognizer  speech.Recognizer
	Synthesizer speech.Synthesizer
}

// App is the top-level daemon process.
type App struct {
	log        *log.Logger
	cfgMu      sync.RWMutex
	cfg        config.Config
	configPath string
	bind       string
	startedAt  time.Time

	hub     *ws.Hub
	bus     bus
	logs    *logRing
	stats   stats
	metrics *metrics.Metrics

	encoder *capture.Encoder
	player  *playback.Controller
	rec     speech.Recognizer
	synth   speech.Synthesizer
}

// New builds the App and its components. Call Run to start serving.
func New(opts Options) (*App, error) {
	if opts.Logger == nil {
		opts.Logger = log.New(os.Stdout, "voicememod ", log.LstdFlags|log.Lmicroseconds)
	}
	if opts.Recognizer == nil || opts.Synthesizer == nil {
		rec, synth, err := speech.New(opts.Cfg.Speech)
		if err != nil {
			return nil, err
		}
		if opts.Recognizer == nil {
			opts.Recognizer = rec
		}
		if opts.Synthesizer == nil {
			opts.Synthesizer = synth
		}
	}

	a := &App{
		log:        opts.Logger,
		cfg:        opts.Cfg,
		configPath: opts.ConfigPath,
		bind:       opts.Bind,
		startedAt:  time.Now(),
		hub:        ws.NewHub(),
		logs:       &logRing{max: logBufSize},
		rec:        opts.Recognizer,
		synth:      opts.Synthesizer,
	}
	a.bus = bus{a: a, hub: a.hub}
	a.metrics = metrics.New(a.hub.Clients)
	a.metrics.SetPlaybackState(playback.Idle.String(), playbackStates)

	a.encoder = capture.New(capture.Options{
		Open:   opts.Open,
		Config: capture.DefaultDeviceConfig(opts.Cfg.Capture.ChunkFrames),
		Log:    opts.Logger,
		Hub:    a.bus,
	})
	a.player = playback.New(playback.Options{
		Renderer:     opts.Renderer,
		PollInterval: opts.Cfg.Playback.PollInterval(),
		Log:          opts.Logger,
		Hub:          a.bus,
	})
	return a, nil
}

func (a *App) getConfig() config.Config {
	a.cfgMu.RLock()
	defer a.cfgMu.RUnlock()
	return a.cfg
}

// Run starts the HTTP server, WebSocket hub, playback controller, heartbeat
// ticker and capture error watcher. It blocks until ctx is cancelled or one
// of them fails, finalizing any active recording on the way out.
func (a *App) Run(ctx context.Context) error {
	cfg := a.getConfig()
	bind := a.bind
	if bind == "" {
		bind = cfg.Server.Bind
	}
	if err := os.MkdirAll(cfg.Data.Root, 0o755); err != nil {
		return err
	}

	server := &http.Server{
		Addr:              bind,
		Handler:           a.routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	ln, err := net.Listen("tcp", bind)
	if err != nil {
		return err
	}
	a.log.Printf("listening on http://%s", bind)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { a.hub.Run(gctx); return nil })
	g.Go(func() error { a.player.Run(gctx); return nil })
	g.Go(func() error { a.heartbeatLoop(gctx); return nil })
	g.Go(func() error { a.watchCapture(gctx); return nil })
	g.Go(func() error {
		if err := server.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		a.log.Printf("shutdown requested")
		if res, err := a.encoder.Stop(); err != nil {
			a.log.Printf("finalize recording on shutdown: %v", err)
		} else if res.Path != "" {
			a.log.Printf("finalized %s (%d bytes) on shutdown", res.Path, res.Bytes)
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	a.logf("info", "voicememod started (capture=%s, output=%s, speech=%s)",
		cfg.Capture.Device, cfg.Playback.Output, cfg.Speech.Backend)
	return g.Wait()
}

func (a *App) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", a.handleHealthz)
	mux.HandleFunc("/api/status", a.handleStatus)
	mux.HandleFunc("/api/version", a.handleVersion)
	mux.HandleFunc("/api/config", a.handleConfig)
	mux.HandleFunc("/api/system", a.handleSystem)
	mux.HandleFunc("/api/logs", a.handleLogs)
	mux.HandleFunc("/api/stats", a.handleStats)

	mux.HandleFunc("/api/record/start", postOnly(a.handleRecordStart))
	mux.HandleFunc("/api/record/stop", postOnly(a.handleRecordStop))
	mux.HandleFunc("/api/recordings", a.handleRecordings)

	mux.HandleFunc("/api/playback/play", postOnly(a.handlePlay))
	mux.HandleFunc("/api/playback/pause", postOnly(a.handleTransport(a.player.Pause)))
	mux.HandleFunc("/api/playback/resume", postOnly(a.handleTransport(a.player.Resume)))
	mux.HandleFunc("/api/playback/replay", postOnly(a.handleTransport(a.player.Replay)))
	mux.HandleFunc("/api/playback/stop", postOnly(a.handleTransport(a.player.Stop)))

	mux.HandleFunc("/api/transcribe", postOnly(a.handleTranscribe))
	mux.HandleFunc("/api/speak", postOnly(a.handleSpeak))

	mux.Handle("/metrics", a.metrics.Handler())
	mux.Handle("/ws", a.hub.Handler())
	return mux
}

// heartbeatLoop sends a periodic heartbeat event so clients can detect
// connectivity and track uptime without polling.
func (a *App) heartbeatLoop(ctx context.Context) {
	t := time.NewTicker(heartbeatInterval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			a.bus.BroadcastJSON(telemetry.NewHeartbeat(
				a.encoder.IsRecording(), a.player.State().String(), time.Since(a.startedAt)))
		}
	}
}

// watchCapture reports sink failures that arrive while nobody is waiting
// in Stop. The aborted session is reaped by the next Start or Stop.
func (a *App) watchCapture(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case err := <-a.encoder.Errors():
			a.logf("error", "recording aborted: %v", err)
		}
	}
}
