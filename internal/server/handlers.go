package server

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/leisuredays/a2f-bridge/internal/domain"
	apperrors "github.com/leisuredays/a2f-bridge/internal/errors"
	"github.com/leisuredays/a2f-bridge/internal/metrics"
	"github.com/leisuredays/a2f-bridge/internal/version"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Viewers embed the stream from arbitrary origins
	},
}

// ingestRequest is the body of POST /frames. FPS is a pointer so an absent
// rate falls back to the configured default instead of failing validation.
type ingestRequest struct {
	FPS    *float64       `json:"fps"`
	Frames []domain.Frame `json:"frames"`
}

func (s *Server) handleFrames(c echo.Context) error {
	if c.Request().ContentLength == 0 {
		return apperrors.ValidationError("request body is required")
	}

	var req ingestRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("invalid request body")
	}

	fps := s.config.DefaultFPS
	if req.FPS != nil {
		fps = *req.FPS
	}

	batch := domain.StreamBatch{FPS: fps, Frames: req.Frames}
	if err := batch.Validate(); err != nil {
		return apperrors.ValidationError(err.Error()).WithField("fps", fps)
	}

	// Fire-and-forget: the producer gets its acknowledgment now, the run
	// paces itself in the background.
	if err := s.streamer.Start(batch); err != nil {
		return apperrors.InternalError("failed to start stream", err)
	}

	slog.Info("Batch accepted", "frames", len(batch.Frames), "fps", batch.FPS)
	return c.JSON(200, map[string]any{"status": "streaming", "frames": len(batch.Frames)})
}

func (s *Server) handleStatus(c echo.Context) error {
	var event domain.StatusEvent
	if c.Request().ContentLength > 0 {
		if err := c.Bind(&event); err != nil {
			return apperrors.ValidationError("invalid request body")
		}
	}

	payload, err := json.Marshal(domain.NewStatusMessage(event.Text))
	if err != nil {
		return apperrors.InternalError("failed to marshal status", err)
	}

	// Bypasses frame pacing; returns after the fan-out has happened.
	s.hub.Broadcast(payload)
	metrics.StatusBroadcasts.Inc()

	slog.Info("Status broadcast", "text", event.Text)
	return c.JSON(200, map[string]bool{"ok": true})
}

func (s *Server) handleClients(c echo.Context) error {
	return c.JSON(200, map[string]int{"clients": s.hub.ClientCount()})
}

func (s *Server) handleLiveness(c echo.Context) error {
	uptime := s.clock.Since(s.startTime).Seconds()
	return c.JSON(200, map[string]any{
		"status": "ok",
		"uptime": uptime,
	})
}

func (s *Server) handleVersion(c echo.Context) error {
	return c.JSON(200, version.Get())
}

func (s *Server) handleViewerSocket(c echo.Context) error {
	ip := c.RealIP()

	allowed, reason := s.limits.Acquire(ip)
	if !allowed {
		metrics.ConnectionsRejected.WithLabelValues(string(reason)).Inc()
		return apperrors.TooManyRequestsError("connection limit reached").WithField("reason", string(reason))
	}
	defer s.limits.Release(ip)

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// The upgrader has already written its handshake error response.
		slog.Warn("Failed to upgrade WebSocket", "error", err)
		return nil
	}

	if err := s.hub.Register(conn); err != nil {
		slog.Warn("Failed to register viewer", "error", err)
		return nil
	}

	// Read pump: viewers are receive-only, inbound messages are discarded.
	// Blocks until the connection closes or errors.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	s.hub.Unregister(conn)

	return nil //nolint:nilerr // ReadMessage err is block-scoped; outer err is nil
}
