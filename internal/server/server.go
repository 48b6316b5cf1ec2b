package server

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/leisuredays/a2f-bridge/internal/broadcast"
	"github.com/leisuredays/a2f-bridge/internal/config"
	apperrors "github.com/leisuredays/a2f-bridge/internal/errors"
)

// Server runs the ingest and viewer listeners. They are independent HTTP
// servers on separate ports, wired to the same hub and streamer.
type Server struct {
	ingest    *echo.Echo
	viewer    *echo.Echo
	config    *config.Config
	hub       *broadcast.Hub
	streamer  *broadcast.Streamer
	limits    *ConnectionLimits
	clock     clockwork.Clock
	startTime time.Time
}

func New(cfg *config.Config, hub *broadcast.Hub, streamer *broadcast.Streamer, clock clockwork.Clock) *Server {
	ingest := echo.New()
	ingest.HideBanner = true
	ingest.HidePort = true
	ingest.Use(middleware.Recover())
	ingest.Use(middleware.CORS())
	ingest.Use(apperrors.Middleware())

	viewer := echo.New()
	viewer.HideBanner = true
	viewer.HidePort = true
	viewer.Use(middleware.Recover())
	viewer.Use(apperrors.Middleware())

	srv := &Server{
		ingest:    ingest,
		viewer:    viewer,
		config:    cfg,
		hub:       hub,
		streamer:  streamer,
		limits:    NewConnectionLimits(int64(cfg.MaxClients), cfg.MaxConnsPerIP, cfg.ConnRatePerSec, cfg.ConnBurst),
		clock:     clock,
		startTime: clock.Now(),
	}

	srv.registerRoutes()

	return srv
}

// Start runs both listeners and blocks until either exits.
func (s *Server) Start() error {
	errCh := make(chan error, 2)

	go func() {
		errCh <- s.viewer.Start(fmt.Sprintf(":%s", s.config.ViewerPort))
	}()
	go func() {
		errCh <- s.ingest.Start(fmt.Sprintf(":%s", s.config.IngestPort))
	}()

	return <-errCh
}

// Shutdown stops both listeners gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return errors.Join(s.ingest.Shutdown(ctx), s.viewer.Shutdown(ctx))
}
