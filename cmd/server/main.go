package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/leisuredays/a2f-bridge/internal/broadcast"
	"github.com/leisuredays/a2f-bridge/internal/config"
	"github.com/leisuredays/a2f-bridge/internal/logging"
	"github.com/leisuredays/a2f-bridge/internal/server"
)

func runGracefulShutdown(srv *server.Server, hub *broadcast.Hub) <-chan struct{} {
	done := make(chan struct{})
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		slog.Info("Shutdown signal received, cleaning up...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}

		hub.Stop()

		close(done)
	}()

	return done
}

func main() {
	clock := clockwork.NewRealClock()

	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}

	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
	slog.Info("Frame relay starting",
		"env", cfg.AppEnv,
		"ingest_port", cfg.IngestPort,
		"viewer_port", cfg.ViewerPort,
		"default_fps", cfg.DefaultFPS,
	)

	hub := broadcast.NewHub(clock, cfg.MaxClients)
	streamer := broadcast.NewStreamer(hub, clock)

	srv := server.New(cfg, hub, streamer, clock)
	done := runGracefulShutdown(srv, hub)

	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}

	<-done
}
