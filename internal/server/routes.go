package server

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) registerRoutes() {
	// Ingest API (producer side)
	s.ingest.POST("/frames", s.handleFrames)
	s.ingest.POST("/status", s.handleStatus)
	s.ingest.GET("/", s.handleClients)

	// Observability (no auth)
	s.ingest.GET("/health/live", s.handleLiveness)
	s.ingest.GET("/version", s.handleVersion)
	s.ingest.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// Viewer endpoint (push-only WebSocket)
	s.viewer.GET("/", s.handleViewerSocket)
}
