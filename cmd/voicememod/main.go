// Voicememod is the voice memo daemon.
//
// It loads configuration, opens the configured input and output devices,
// and serves the HTTP/WebSocket control API. Any active recording is
// finalized on SIGINT or SIGTERM before the process exits.
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/large-farva/voicememo/internal/app"
	"github.com/large-farva/voicememo/internal/capture"
	"github.com/large-farva/voicememo/internal/config"
	"github.com/large-farva/voicememo/internal/mic"
	"github.com/large-farva/voicememo/internal/playback"
	"github.com/large-farva/voicememo/internal/speaker"
)

func main() {
	var (
		configPath = pflag.StringP("config", "c", "/etc/voicememo/voicememo.toml", "Path to config TOML")
		bind       = pflag.String("bind", "", "HTTP bind address (overrides server.bind)")
	)
	pflag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	logger := log.New(os.Stdout, "voicememod ", log.LstdFlags|log.Lmicroseconds)

	open := capture.ToneOpener(cfg.Capture.ToneHz)
	if cfg.Capture.Device == "portaudio" {
		open = mic.Open
	}

	var renderer playback.Renderer
	if cfg.Playback.Output == "speaker" {
		renderer = speaker.New(cfg.Playback.Buffer())
	} else {
		null := playback.NewNullRenderer(0)
		defer null.Close()
		renderer = null
	}

	a, err := app.New(app.Options{
		Logger:     logger,
		Cfg:        cfg,
		ConfigPath: *configPath,
		Bind:       *bind,
		Open:       open,
		Renderer:   renderer,
	})
	if err != nil {
		logger.Fatalf("init failed: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.Run(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatalf("voicememod failed: %v", err)
	}

	// Brief pause so in-flight log writes can flush before exit.
	time.Sleep(50 * time.Millisecond)
}
