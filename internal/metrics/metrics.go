package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ConnectionsOpen = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "roomcast_connections_open",
			Help: "Websocket connections currently in the active state",
		},
	)

	HandshakesRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "roomcast_handshakes_rejected_total",
			Help: "Handshakes rejected before subscribing",
		},
		[]string{"reason"}, // "unauthorized", "room_not_found", "bus_join"
	)

	MessagesStored = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "roomcast_messages_stored_total",
			Help: "Chat messages durably appended",
		},
	)

	SignalsRelayed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "roomcast_signals_relayed_total",
			Help: "Call-signaling frames published",
		},
		[]string{"kind"},
	)

	FramesDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "roomcast_frames_dropped_total",
			Help: "Inbound frames discarded without effect",
		},
		[]string{"reason"}, // "malformed", "empty", "persistence"
	)

	PublishFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "roomcast_publish_failures_total",
			Help: "Bus publishes that lost their event",
		},
	)
)
