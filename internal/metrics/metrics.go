package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Client-side channel metrics.
var (
	ClientConnectAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notify_client_connect_attempts_total",
			Help: "WebSocket connection attempts by result",
		},
		[]string{"result"}, // result: success, failure
	)

	ClientReconnectsScheduled = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "notify_client_reconnects_scheduled_total",
			Help: "Reconnect timers armed after a failed attempt or dropped connection",
		},
	)

	ClientReconnectDelay = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "notify_client_reconnect_delay_seconds",
			Help:    "Backoff delay chosen for each scheduled reconnect",
			Buckets: []float64{2, 3, 4.5, 6.75, 10.125, 15.1875, 22.78125, 30},
		},
	)

	ClientFramesReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notify_client_frames_received_total",
			Help: "Server frames received by type",
		},
		[]string{"type"},
	)

	ClientDecodeErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "notify_client_decode_errors_total",
			Help: "Server frames that could not be decoded",
		},
	)

	ClientSendFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notify_client_send_failures_total",
			Help: "Client messages not sent because the channel was not open or the write failed",
		},
		[]string{"type"},
	)
)

// Server-side hub metrics.
var (
	HubSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "notify_hub_sessions",
			Help: "Authenticated WebSocket sessions on this instance",
		},
	)

	HubFramesDelivered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notify_hub_frames_delivered_total",
			Help: "Server frames queued to sessions by type",
		},
		[]string{"type"},
	)

	HubAuthFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notify_hub_auth_failures_total",
			Help: "Rejected authentication attempts by reason",
		},
		[]string{"reason"}, // reason: timeout, malformed, invalid_token, user_mismatch
	)

	HubClientMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notify_hub_client_messages_total",
			Help: "Client messages handled by type and result",
		},
		[]string{"type", "result"},
	)

	EventsConsumed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notify_events_consumed_total",
			Help: "Domain events consumed from the broker by routing key and result",
		},
		[]string{"routing_key", "result"}, // result: ok, error, skipped
	)

	FanoutMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notify_fanout_messages_total",
			Help: "Envelopes published to or received from the fan-out channel",
		},
		[]string{"direction"}, // direction: published, received
	)

	RowsPruned = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "notify_rows_pruned_total",
			Help: "Read notifications removed by retention",
		},
	)
)
