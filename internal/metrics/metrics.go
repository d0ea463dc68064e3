package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// WebSocket gateway
	WSConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "recipe_ws_connections_active",
			Help: "Authenticated WebSocket connections currently registered",
		},
	)

	WSHandshakes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recipe_ws_handshakes_total",
			Help: "WebSocket handshakes by outcome",
		},
		[]string{"outcome"}, // "ok", "upgrade_failed", "error", "missing_token", "invalid_token", "revoked", "invalid_claims"
	)

	WSInboundMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recipe_ws_inbound_messages_total",
			Help: "Inbound WebSocket frames by message type",
		},
		[]string{"type"},
	)

	WSFramesDelivered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recipe_ws_frames_delivered_total",
			Help: "Outbound frames written to sockets by frame type",
		},
		[]string{"type"},
	)

	WSDeliveryFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "recipe_ws_delivery_failures_total",
			Help: "Outbound writes that failed and closed the socket",
		},
	)

	// Subscriptions
	RecipeTopicsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "recipe_topics_active",
			Help: "Recipe topics with at least one subscriber",
		},
	)

	// Auth
	TokensRevoked = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "recipe_tokens_revoked_total",
			Help: "Access tokens added to the revocation store",
		},
	)

	PushNotificationsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recipe_push_notifications_total",
			Help: "Push notifications handed to the sender by kind",
		},
		[]string{"kind"},
	)

	PushTokenFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "recipe_push_token_failures_total",
			Help: "Device tokens the push provider refused",
		},
	)
)
