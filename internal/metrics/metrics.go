package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Relay Metrics
var (
	// RelayConnectedPeers tracks the number of peers currently in the registry
	RelayConnectedPeers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "relay_connected_peers",
			Help: "Number of peers currently registered with the relay",
		},
	)

	// RelayConnectionsTotal tracks connection attempts by result
	RelayConnectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_connections_total",
			Help: "Total connection attempts by result (accepted/rejected_capacity/rejected_stopped/upgrade_failed)",
		},
		[]string{"result"},
	)

	// RelayDisconnectsTotal tracks peer removals by reason
	RelayDisconnectsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_disconnects_total",
			Help: "Total peers removed from the registry by reason (closed/liveness/shutdown)",
		},
		[]string{"reason"},
	)

	// RelayMessagesTotal tracks inbound peer messages by frame type
	RelayMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_messages_total",
			Help: "Total messages received from peers by frame type (text/binary)",
		},
		[]string{"frame_type"},
	)

	// RelayDeliveriesTotal tracks frames handed to recipient writers
	RelayDeliveriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_deliveries_total",
			Help: "Total frames queued for delivery to recipients",
		},
	)

	// RelayDeliveryFailuresTotal tracks frames that could not be delivered, by reason
	RelayDeliveryFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_delivery_failures_total",
			Help: "Total frames skipped for a recipient by reason (buffer_full/writer_stopped/write_error)",
		},
		[]string{"reason"},
	)

	// RelayNotificationsTotal tracks server notifications by event
	RelayNotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_notifications_total",
			Help: "Total server notifications broadcast by event (join/leave)",
		},
		[]string{"event"},
	)

	// RelayFanoutDuration tracks the time spent queueing one frame for all recipients
	RelayFanoutDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "relay_fanout_duration_seconds",
			Help:    "Time to queue one frame for every recipient in seconds",
			Buckets: []float64{.00001, .00005, .0001, .0005, .001, .005, .01, .05},
		},
	)
)

// Broadcaster Metrics
var (
	// BroadcasterCommandChannelDepth tracks current command channel depth
	BroadcasterCommandChannelDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "broadcaster_command_channel_depth",
			Help: "Current command channel depth",
		},
	)

	// BroadcasterPanicsTotal tracks broadcaster panic recoveries
	BroadcasterPanicsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "broadcaster_panics_total",
			Help: "Total broadcaster panic recoveries",
		},
	)

	// BroadcasterStopTimeoutsTotal tracks broadcaster stops that exceeded timeout
	BroadcasterStopTimeoutsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "broadcaster_stop_timeouts_total",
			Help: "Broadcaster stops that exceeded timeout",
		},
	)
)

// Liveness Metrics
var (
	// LivenessProbesTotal tracks pings sent by the liveness monitor
	LivenessProbesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "liveness_probes_total",
			Help: "Total liveness pings sent to peers",
		},
	)

	// LivenessEvictionsTotal tracks peers terminated for missing two consecutive probes
	LivenessEvictionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "liveness_evictions_total",
			Help: "Total peers terminated after an unanswered liveness probe",
		},
	)
)

// WebSocket Metrics
var (
	// WebSocketMessageSendDuration tracks WebSocket message send duration
	WebSocketMessageSendDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "websocket_message_send_duration_seconds",
			Help:    "WebSocket message send duration in seconds",
			Buckets: []float64{.0001, .0005, .001, .005, .01, .025, .05, .1, .25},
		},
	)

	// WebSocketConnectionDuration tracks WebSocket connection duration
	WebSocketConnectionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "websocket_connection_duration_seconds",
			Help:    "WebSocket connection duration in seconds",
			Buckets: []float64{1, 5, 10, 30, 60, 300, 600, 1800, 3600},
		},
	)

	// WebSocketPingFailures tracks WebSocket ping failures
	WebSocketPingFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "websocket_ping_failures_total",
			Help: "Total WebSocket ping writes that failed",
		},
	)

	// WebSocketConnectionsRejected tracks rejected upgrade attempts by reason
	WebSocketConnectionsRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "websocket_connections_rejected_total",
			Help: "Total WebSocket connections rejected by reason (rate_limit/global_limit/stopped)",
		},
		[]string{"reason"},
	)
)

// HTTP Metrics
var (
	// HTTPRequestDuration tracks request latency by route, excluding WebSocket sessions
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status_code"},
	)

	// HTTPRequestsTotal tracks requests by route and status
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status_code"},
	)

	// HTTPInFlightRequests tracks requests currently being processed
	HTTPInFlightRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_in_flight_requests",
			Help: "Number of HTTP requests currently being processed",
		},
	)
)

// Discovery Metrics
var (
	// DiscoveryBeaconsTotal tracks beacon attempts by result
	DiscoveryBeaconsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "discovery_beacons_total",
			Help: "Total discovery beacon attempts by result (sent/no_address/error)",
		},
		[]string{"result"},
	)
)

// Build Information Metrics
var (
	// BuildInfo is a gauge that always returns 1, with build metadata as labels
	BuildInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "build_info",
			Help: "Build information with version, commit, build_time, and go_version labels (value is always 1)",
		},
		[]string{"version", "commit", "build_time", "go_version"},
	)
)
