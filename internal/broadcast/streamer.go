package broadcast

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/leisuredays/a2f-bridge/internal/domain"
	"github.com/leisuredays/a2f-bridge/internal/metrics"
)

// Streamer paces delivery of one frame batch to every registered viewer.
// Multiple runs may be active at once; they share only the Hub and interleave
// their sends, which is acceptable (no cross-run ordering guarantee).
type Streamer struct {
	hub   *Hub
	clock clockwork.Clock
}

// NewStreamer creates a streamer bound to the given hub.
func NewStreamer(hub *Hub, clock clockwork.Clock) *Streamer {
	return &Streamer{hub: hub, clock: clock}
}

// Start validates the batch and runs it in the background, so the caller can
// acknowledge receipt before streaming completes. The run's outcome is logged,
// never silently dropped.
func (s *Streamer) Start(batch domain.StreamBatch) error {
	if err := batch.Validate(); err != nil {
		return err
	}

	streamID := uuid.New()
	go func() {
		defer func() {
			if r := recover(); r != nil {
				slog.Error("Stream run panic recovered", "stream_id", streamID.String(), "panic", r)
			}
		}()
		s.Run(streamID, batch)
	}()

	return nil
}

// Run executes one paced streaming run to completion:
//
//  1. Skip immediately when no viewers are connected (no pacing delay, no
//     terminal marker).
//  2. Send frame i, then sleep until start + (i+1)/fps. When a tick falls
//     behind schedule it proceeds immediately; drift accumulates but frames
//     are never skipped, reordered, or duplicated.
//  3. Send the terminal marker to a fresh snapshot of the registry.
//
// Each frame is fanned out to a fresh snapshot, so viewers joining mid-run
// receive the remainder of the stream. A failed send to one viewer deregisters
// that viewer and never aborts the run.
func (s *Streamer) Run(streamID uuid.UUID, batch domain.StreamBatch) {
	logger := slog.With("stream_id", streamID.String())

	if s.hub.ClientCount() <= 0 {
		logger.Info("No viewers connected, skipping stream", "frames", len(batch.Frames))
		metrics.StreamsSkipped.Inc()
		return
	}

	metrics.StreamsStarted.Inc()
	interval := time.Duration(float64(time.Second) / batch.FPS)
	start := s.clock.Now()
	logger.Info("Stream starting", "frames", len(batch.Frames), "fps", batch.FPS)

	for i, frame := range batch.Frames {
		payload, err := json.Marshal(frame)
		if err != nil {
			// Keep the pacing slot so frame timing stays aligned.
			logger.Error("Failed to marshal frame", "frame", i, "error", err)
		} else {
			s.fanOut(logger, payload)
			metrics.FramesBroadcast.Inc()
		}

		target := start.Add(time.Duration(i+1) * interval)
		if delay := target.Sub(s.clock.Now()); delay > 0 {
			s.clock.Sleep(delay)
		} else {
			metrics.StreamLag.Observe(-delay.Seconds())
		}
	}

	end, err := json.Marshal(domain.EndMarker{End: true, TotalFrames: len(batch.Frames)})
	if err != nil {
		logger.Error("Failed to marshal end marker", "error", err)
		return
	}
	s.fanOut(logger, end)

	metrics.StreamsCompleted.Inc()
	logger.Info("Stream complete", "frames", len(batch.Frames), "duration", s.clock.Since(start))
}

// fanOut queues the payload to every viewer in a fresh registry snapshot.
// Fire-and-forget per viewer: a failed queue attempt deregisters that viewer
// without delaying delivery to the others.
func (s *Streamer) fanOut(logger *slog.Logger, payload []byte) {
	for _, cw := range s.hub.Snapshot() {
		if !cw.TrySend(payload) {
			logger.Warn("Dropping viewer: send buffer full or connection gone")
			metrics.SlowClientsEvicted.Inc()
			s.hub.Unregister(cw.connection)
		}
	}
}
