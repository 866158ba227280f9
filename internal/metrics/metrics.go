// Package metrics provides Prometheus instrumentation for the Parley chat
// backend. It exposes gauges for connection and room counts, counters for
// message and signaling throughput, and a histogram for send latency.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// ConnectionsTotal tracks the current number of active WebSocket connections.
	ConnectionsTotal = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "parley_connections_total",
		Help: "Current number of active WebSocket connections",
	})

	// LiveRooms tracks the current number of conversation rooms with at
	// least one present user.
	LiveRooms = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "parley_live_rooms",
		Help: "Current number of live conversation rooms",
	})

	// CallRooms tracks the current number of active call rooms.
	CallRooms = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "parley_call_rooms",
		Help: "Current number of active call rooms",
	})

	// MessagesTotal counts chat messages processed, labeled by outcome:
	// "relayed", "persist_failed", or "rejected".
	MessagesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "parley_messages_total",
		Help: "Total number of chat messages processed",
	}, []string{"outcome"})

	// SignalsTotal counts WebRTC signaling forwards, labeled by kind
	// ("offer", "answer", "ice") and outcome ("forwarded", "dropped").
	SignalsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "parley_signals_total",
		Help: "Total number of WebRTC signaling payloads relayed",
	}, []string{"kind", "outcome"})

	// BroadcastsTotal counts room broadcast fan-outs by event type.
	BroadcastsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "parley_broadcasts_total",
		Help: "Total number of room broadcast fan-outs",
	}, []string{"event"})

	// SendLatency records end-to-end sendMessage handling latency in seconds
	// (persist through fan-out).
	SendLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "parley_send_latency_seconds",
		Help:    "sendMessage handling latency in seconds",
		Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
	})
)

func init() {
	prometheus.MustRegister(
		ConnectionsTotal,
		LiveRooms,
		CallRooms,
		MessagesTotal,
		SignalsTotal,
		BroadcastsTotal,
		SendLatency,
	)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
