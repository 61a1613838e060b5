// Package prometheus exports media session events as Prometheus metrics.
package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "mediasession"

var (
	// eventsTotal counts every event seen on the bus by type.
	eventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Total number of session events by type",
		},
		[]string{"type"},
	)

	// errorsTotal counts Error events by kind.
	errorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "errors_total",
			Help:      "Total number of session errors by kind",
		},
		[]string{"kind"},
	)

	// sessionsActive is the number of connected sessions.
	sessionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Number of currently connected sessions",
		},
	)

	// connectionsOpenedTotal counts successful handshakes.
	connectionsOpenedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connections_opened_total",
			Help:      "Total number of provider connections opened",
		},
		[]string{"provider", "transport"},
	)

	// connectionsClosedTotal counts transport closures by close code.
	connectionsClosedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connections_closed_total",
			Help:      "Total number of provider connections closed",
		},
		[]string{"code"},
	)

	// handshakeDuration is the time from connecting to connected.
	handshakeDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "handshake_duration_seconds",
			Help:      "Duration of session handshakes in seconds",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10},
		},
	)

	// sessionDuration is the time a session stayed connected.
	sessionDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "session_duration_seconds",
			Help:      "Duration of connected sessions in seconds",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800, 3600},
		},
	)

	// audioOutputBytesTotal counts inbound model audio.
	audioOutputBytesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_output_bytes_total",
			Help:      "Total bytes of model audio received",
		},
	)

	// volumeLevel is the latest level reading per direction.
	volumeLevel = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "volume_level",
			Help:      "Latest normalized volume level",
		},
		[]string{"direction"},
	)

	// protocolMessagesTotal counts provider control messages.
	protocolMessagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "protocol_messages_total",
			Help:      "Total number of provider protocol messages",
		},
		[]string{"direction", "name"},
	)
)

// allMetrics contains all collectors for registration.
var allMetrics = []prometheus.Collector{
	eventsTotal,
	errorsTotal,
	sessionsActive,
	connectionsOpenedTotal,
	connectionsClosedTotal,
	handshakeDuration,
	sessionDuration,
	audioOutputBytesTotal,
	volumeLevel,
	protocolMessagesTotal,
}
