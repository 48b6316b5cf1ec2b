// Package server exposes the two HTTP listeners of the frame relay: the
// ingest API that accepts frame batches and status broadcasts, and the viewer
// endpoint that upgrades connections to WebSocket and registers them with the
// broadcast hub. The listeners share only the hub and the streamer.
package server
