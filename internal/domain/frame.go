package domain

import "fmt"

// Frame is one timestamped unit of animation parameter data. The broadcast
// engine never inspects Params; it forwards each frame as an opaque payload.
type Frame struct {
	T      float64        `json:"t"`
	Params map[string]any `json:"params"`
}

// StreamBatch is one complete ordered frame sequence plus its target rate.
// A batch is owned by a single streaming run and discarded afterwards.
type StreamBatch struct {
	FPS    float64 `json:"fps"`
	Frames []Frame `json:"frames"`
}

// Validate checks the batch invariants. An empty frame list is valid (the run
// is a no-op); a non-positive frame rate is not.
func (b StreamBatch) Validate() error {
	if b.FPS <= 0 {
		return fmt.Errorf("fps must be positive, got %g", b.FPS)
	}
	return nil
}

// StatusEvent is a transient text broadcast that bypasses frame pacing.
// It is delivered once and discarded.
type StatusEvent struct {
	Text string `json:"text"`
}

// StatusMessage is the wire form delivered to viewers for a status broadcast.
type StatusMessage struct {
	Status string `json:"status"`
	Type   string `json:"type"`
}

// NewStatusMessage builds the wire form for a status event.
func NewStatusMessage(text string) StatusMessage {
	return StatusMessage{Status: text, Type: "status"}
}

// EndMarker is the terminal wire message closing one streaming run.
type EndMarker struct {
	End         bool `json:"end"`
	TotalFrames int  `json:"total_frames"`
}
