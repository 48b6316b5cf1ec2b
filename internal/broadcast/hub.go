package broadcast

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"

	"github.com/leisuredays/a2f-bridge/internal/metrics"
)

const (
	commandTimeout = 5 * time.Second // reply timeout for synchronous hub commands
	stopTimeout    = 10 * time.Second
)

// hubCmd is the command interface for the Hub actor.
type hubCmd interface{ isHubCmd() }

type baseHubCmd struct{}

func (baseHubCmd) isHubCmd() {}

type registerCmd struct {
	baseHubCmd
	connection   *websocket.Conn
	errorChannel chan error
}

type unregisterCmd struct {
	baseHubCmd
	connection *websocket.Conn
}

type snapshotCmd struct {
	baseHubCmd
	replyChannel chan []*clientWriter
}

type clientCountCmd struct {
	baseHubCmd
	replyChannel chan int
}

type broadcastCmd struct {
	baseHubCmd
	payload     []byte
	doneChannel chan struct{}
}

type stopCmd struct {
	baseHubCmd
}

// Hub is the shared registry of connected viewers. A single goroutine owns
// the client map; all mutation and reads go through the command channel, so
// Register, Unregister, Snapshot, and Broadcast are safe to call concurrently
// from any number of streaming runs and connection handlers.
type Hub struct {
	cmdCh       chan hubCmd
	clock       clockwork.Clock
	clients     map[*websocket.Conn]*clientWriter
	done        chan struct{}
	maxClients  int
	stopTimeout time.Duration
}

// NewHub creates a hub and starts its actor goroutine.
// maxClients caps concurrent viewers (prevents resource exhaustion).
func NewHub(clock clockwork.Clock, maxClients int) *Hub {
	h := &Hub{
		cmdCh:       make(chan hubCmd, 256),
		clock:       clock,
		clients:     make(map[*websocket.Conn]*clientWriter),
		done:        make(chan struct{}),
		maxClients:  maxClients,
		stopTimeout: stopTimeout,
	}
	go h.run()
	return h
}

// Register adds a viewer connection. Idempotent for an already-registered
// connection. Returns an error only when the viewer cap is reached.
func (h *Hub) Register(conn *websocket.Conn) error {
	errCh := make(chan error, 1)
	h.cmdCh <- registerCmd{connection: conn, errorChannel: errCh}

	timer := h.clock.NewTimer(commandTimeout)
	defer timer.Stop()

	select {
	case err := <-errCh:
		return err
	case <-timer.Chan():
		return fmt.Errorf("register command timed out after %v", commandTimeout)
	}
}

// Unregister removes a viewer connection. No-op if the connection is absent,
// which tolerates the race where a viewer disconnects during an in-flight
// broadcast.
func (h *Hub) Unregister(conn *websocket.Conn) {
	h.cmdCh <- unregisterCmd{connection: conn}
}

// Snapshot returns a point-in-time copy of the connected writers. The slice
// stays valid to iterate after later registry mutations. Returns nil if the
// command times out.
func (h *Hub) Snapshot() []*clientWriter {
	replyCh := make(chan []*clientWriter, 1)
	h.cmdCh <- snapshotCmd{replyChannel: replyCh}

	timer := h.clock.NewTimer(commandTimeout)
	defer timer.Stop()

	select {
	case writers := <-replyCh:
		return writers
	case <-timer.Chan():
		slog.Warn("Snapshot timed out", "timeout", commandTimeout)
		return nil
	}
}

// ClientCount returns the number of connected viewers.
// Returns -1 if the command times out.
func (h *Hub) ClientCount() int {
	replyCh := make(chan int, 1)
	h.cmdCh <- clientCountCmd{replyChannel: replyCh}

	timer := h.clock.NewTimer(commandTimeout)
	defer timer.Stop()

	select {
	case count := <-replyCh:
		return count
	case <-timer.Chan():
		slog.Warn("ClientCount timed out", "timeout", commandTimeout)
		return -1
	}
}

// Broadcast fans a payload out to every current viewer immediately, outside
// any pacing loop. Slow or dead viewers are evicted, never waited on. Blocks
// until the hub has queued the payload to all writers (or the command times
// out), so callers can acknowledge after the fan-out happened.
func (h *Hub) Broadcast(payload []byte) {
	doneCh := make(chan struct{})
	h.cmdCh <- broadcastCmd{payload: payload, doneChannel: doneCh}

	timer := h.clock.NewTimer(commandTimeout)
	defer timer.Stop()

	select {
	case <-doneCh:
	case <-timer.Chan():
		slog.Warn("Broadcast command timed out", "timeout", commandTimeout)
	}
}

// Stop shuts down the hub, closing all viewer connections.
// Blocks until the actor goroutine has exited or the timeout is reached.
func (h *Hub) Stop() {
	h.cmdCh <- stopCmd{}

	timeout := h.clock.NewTimer(h.stopTimeout)
	defer timeout.Stop()

	select {
	case <-h.done:
		slog.Info("Hub stopped gracefully")
	case <-timeout.Chan():
		slog.Warn("Hub stop timeout exceeded, forcing exit", "timeout", h.stopTimeout)
		metrics.HubStopTimeoutsTotal.Inc()
		close(h.done)
	}
}

func (h *Hub) run() {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Hub panic recovered", "panic", r)
			metrics.HubPanicsTotal.Inc()
			h.closeAllClients("hub panic")
		}
	}()
	defer close(h.done)

	for cmd := range h.cmdCh {
		switch c := cmd.(type) {
		case registerCmd:
			h.handleRegister(c)
		case unregisterCmd:
			h.handleUnregister(c)
		case snapshotCmd:
			c.replyChannel <- h.snapshotLocked()
		case clientCountCmd:
			c.replyChannel <- len(h.clients)
		case broadcastCmd:
			h.handleBroadcast(c)
		case stopCmd:
			h.handleStop()
			return
		default:
			slog.Warn("Hub received unknown command type", "command_type", fmt.Sprintf("%T", cmd))
		}
	}
}

func (h *Hub) handleRegister(c registerCmd) {
	if _, exists := h.clients[c.connection]; exists {
		c.errorChannel <- nil
		return
	}

	if len(h.clients) >= h.maxClients {
		slog.Warn("Rejecting viewer: max clients reached", "max_clients", h.maxClients)
		c.connection.Close()
		c.errorChannel <- fmt.Errorf("max clients (%d) reached", h.maxClients)
		return
	}

	h.clients[c.connection] = newClientWriter(c.connection, h.clock)
	metrics.ConnectedClients.Set(float64(len(h.clients)))

	slog.Info("Viewer connected", "total_clients", len(h.clients))
	c.errorChannel <- nil
}

func (h *Hub) handleUnregister(c unregisterCmd) {
	cw, exists := h.clients[c.connection]
	if !exists {
		return
	}

	cw.stop()
	delete(h.clients, c.connection)
	metrics.ConnectedClients.Set(float64(len(h.clients)))

	slog.Info("Viewer disconnected", "total_clients", len(h.clients))
}

func (h *Hub) snapshotLocked() []*clientWriter {
	writers := make([]*clientWriter, 0, len(h.clients))
	for _, cw := range h.clients {
		writers = append(writers, cw)
	}
	return writers
}

func (h *Hub) handleBroadcast(c broadcastCmd) {
	defer close(c.doneChannel)

	var slow []*websocket.Conn
	for conn, cw := range h.clients {
		if !cw.TrySend(c.payload) {
			slow = append(slow, conn)
		}
	}

	for _, conn := range slow {
		slog.Warn("Disconnecting slow viewer during broadcast")
		metrics.SlowClientsEvicted.Inc()
		h.handleUnregister(unregisterCmd{connection: conn})
	}
}

func (h *Hub) handleStop() {
	total := len(h.clients)
	slog.Info("Hub shutting down", "total_clients", total)
	h.closeAllClients("Server shutting down")
	slog.Info("Hub shutdown complete", "disconnected_clients", total)
}

// closeAllClients closes all viewer connections with the given reason.
// Used during panic recovery and graceful shutdown.
func (h *Hub) closeAllClients(reason string) {
	for conn, cw := range h.clients {
		cw.stopGraceful(reason)
		delete(h.clients, conn)
	}
	metrics.ConnectedClients.Set(0)
}
