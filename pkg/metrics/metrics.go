// Package metrics provides Prometheus metrics instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// WSConnectsTotal tracks websocket connection attempts by outcome.
	WSConnectsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inbox_ws_connects_total",
			Help: "Websocket connection attempts",
		},
		[]string{"outcome"},
	)

	// WSDisconnectsTotal tracks websocket disconnects.
	WSDisconnectsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "inbox_ws_disconnects_total",
			Help: "Websocket disconnects (close or error)",
		},
	)

	// PushEventsTotal tracks inbound push events by type.
	PushEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inbox_push_events_total",
			Help: "Push events received from the server",
		},
		[]string{"type"},
	)

	// PushEventsDroppedTotal tracks inbound frames dropped as malformed or
	// unroutable.
	PushEventsDroppedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "inbox_push_events_dropped_total",
			Help: "Push frames dropped (malformed or unrecognized)",
		},
	)

	// CommandsSentTotal tracks outbound commands by type.
	CommandsSentTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inbox_commands_sent_total",
			Help: "Commands sent over the push transport",
		},
		[]string{"type"},
	)

	// APIRequestDuration tracks HTTP collaborator request duration.
	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "inbox_api_request_duration_seconds",
			Help:    "HTTP request duration against the inbox API",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"operation", "status"},
	)

	// SimulatorRequestDuration tracks simulator HTTP request duration.
	SimulatorRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "simulator_request_duration_seconds",
			Help:    "Simulator HTTP request duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path", "status"},
	)

	// SimulatorWSClients tracks connected websocket clients on the simulator.
	SimulatorWSClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "simulator_ws_clients",
			Help: "Connected websocket clients",
		},
	)

	// SimulatorBroadcastsTotal tracks events broadcast by the simulator hub.
	SimulatorBroadcastsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "simulator_broadcasts_total",
			Help: "Events broadcast to websocket clients",
		},
		[]string{"type"},
	)
)

// RecordAPIRequest records timing for one HTTP collaborator call.
func RecordAPIRequest(operation, status string, duration float64) {
	APIRequestDuration.WithLabelValues(operation, status).Observe(duration)
}

// RecordSimulatorRequest records metrics for a simulator HTTP request.
func RecordSimulatorRequest(method, path, status string, duration float64) {
	SimulatorRequestDuration.WithLabelValues(method, path, status).Observe(duration)
}
