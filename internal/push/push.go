// Package push delivers device push notifications. It is a separate channel from the
// WebSocket gateway: pushes reach devices whether or not a socket is open.
package push

import (
	"context"

	"github.com/rs/zerolog"

	"recipe-server/internal/logging"
	"recipe-server/internal/metrics"
)

type Notification struct {
	Kind  string
	Title string
	Body  string
	Data  map[string]string
}

type Sender interface {
	Send(ctx context.Context, tokens []string, n Notification) error
}

// LogSender writes notifications to the log instead of a push provider.
type LogSender struct {
	log zerolog.Logger
}

func NewLogSender() *LogSender {
	return &LogSender{log: logging.Component("push")}
}

func (s *LogSender) Send(_ context.Context, tokens []string, n Notification) error {
	if len(tokens) == 0 {
		return nil
	}
	s.log.Info().Str("kind", n.Kind).Str("title", n.Title).Int("devices", len(tokens)).Msg("push notification")
	metrics.PushNotificationsSent.WithLabelValues(n.Kind).Inc()
	return nil
}
