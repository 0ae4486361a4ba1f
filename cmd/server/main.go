// server: backend for the CAMB AI voice demo.
// Provisions Daily rooms, runs the voice-agent pipeline, and streams
// status and transcript events to the browser.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/teslashibe/go-voicebot/internal/config"
	"github.com/teslashibe/go-voicebot/internal/log"
	"github.com/teslashibe/go-voicebot/pkg/bot"
	"github.com/teslashibe/go-voicebot/pkg/daily"
	"github.com/teslashibe/go-voicebot/pkg/server"
	"github.com/teslashibe/go-voicebot/pkg/tts"
)

var (
	version   = "1.0.0"
	port      = flag.Int("port", 0, "HTTP server port (overrides PORT env)")
	staticDir = flag.String("static", "", "frontend directory (overrides default)")
	ttsModel  = flag.String("tts-model", tts.ModelMarsFlash, "Camb TTS model")
	debug     = flag.Bool("debug", false, "enable debug logging")
)

func main() {
	flag.Parse()

	level := config.LogLevel()
	if *debug {
		level = "debug"
	}
	log.Init(level)
	logger := log.Component("main")

	listenPort := config.Port()
	if *port > 0 {
		listenPort = *port
	}
	frontend := config.StaticDir()
	if *staticDir != "" {
		frontend = *staticDir
	}
	if _, err := os.Stat(frontend); err != nil {
		logger.Warn("frontend not found, static serving disabled", "dir", frontend)
		frontend = ""
	}

	var dailyClient *daily.Client
	if key := config.DailyAPIKey(); key != "" {
		var err error
		dailyClient, err = daily.NewClient(key)
		if err != nil {
			logger.Error("failed to create daily client", "error", err)
			os.Exit(1)
		}
	} else {
		logger.Warn("DAILY_API_KEY not set, voice calls will not work")
	}

	srv := server.New(server.Config{
		Port:      listenPort,
		StaticDir: frontend,
		Daily:     dailyClient,
		Bot: bot.Config{
			TTSModel:       *ttsModel,
			DeepgramAPIKey: config.DeepgramAPIKey(),
			OpenAIAPIKey:   config.OpenAIAPIKey(),
			CambAPIKey:     config.CambAPIKey(),
		},
	})

	go func() {
		logger.Info("starting voice demo server", "version", version, "port", listenPort)
		fmt.Printf("Voice demo running at http://localhost:%d\n", listenPort)
		if err := srv.Listen(); err != nil {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	if err := srv.Shutdown(); err != nil {
		logger.Error("shutdown error", "error", err)
	}
}
