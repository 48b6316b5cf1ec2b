// Package metrics declares the Prometheus collectors for the frame relay.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Hub metrics
var (
	// ConnectedClients tracks the current number of connected viewers.
	ConnectedClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "relay_connected_clients",
			Help: "Current number of connected WebSocket viewers",
		},
	)

	// SlowClientsEvicted tracks viewers dropped because their send buffer filled.
	SlowClientsEvicted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_slow_clients_evicted_total",
			Help: "Total viewers evicted due to a full or dead send buffer",
		},
	)

	// HubPanicsTotal tracks hub panic recoveries.
	HubPanicsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_hub_panics_total",
			Help: "Total hub panic recoveries",
		},
	)

	// HubStopTimeoutsTotal tracks hub stops that exceeded their timeout.
	HubStopTimeoutsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_hub_stop_timeouts_total",
			Help: "Hub stops that exceeded the shutdown timeout",
		},
	)
)

// Streaming metrics
var (
	// StreamsStarted tracks runs that began pacing frames.
	StreamsStarted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_streams_started_total",
			Help: "Total streaming runs started",
		},
	)

	// StreamsCompleted tracks runs that sent their terminal marker.
	StreamsCompleted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_streams_completed_total",
			Help: "Total streaming runs completed through the terminal marker",
		},
	)

	// StreamsSkipped tracks runs discarded because no viewers were connected.
	StreamsSkipped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_streams_skipped_no_viewers_total",
			Help: "Total streaming runs skipped because no viewers were connected",
		},
	)

	// FramesBroadcast tracks individual frames fanned out to viewers.
	FramesBroadcast = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_frames_broadcast_total",
			Help: "Total frames fanned out across all streaming runs",
		},
	)

	// StatusBroadcasts tracks status messages fanned out outside pacing.
	StatusBroadcasts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_status_broadcasts_total",
			Help: "Total status messages broadcast to viewers",
		},
	)

	// StreamLag observes how far behind schedule a frame tick ran.
	StreamLag = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "relay_stream_lag_seconds",
			Help:    "Amount a frame tick ran behind its pacing target",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
	)
)

// Viewer listener metrics
var (
	// ConnectionsRejected tracks viewer connections refused by a limit.
	ConnectionsRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_connections_rejected_total",
			Help: "Viewer connections rejected, by limit reason",
		},
		[]string{"reason"},
	)
)
