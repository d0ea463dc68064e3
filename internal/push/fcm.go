package push

import (
	"context"
	"errors"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"

	"recipe-server/internal/logging"
	"recipe-server/internal/metrics"
)

// fcmBatchSize is the most tokens FCM accepts in one multicast request.
const fcmBatchSize = 500

// multicastClient is the part of the FCM client the sender needs.
type multicastClient interface {
	SendEachForMulticast(ctx context.Context, message *messaging.MulticastMessage) (*messaging.BatchResponse, error)
}

// FCMSender delivers notifications through Firebase Cloud Messaging.
type FCMSender struct {
	client multicastClient
	log    zerolog.Logger
}

func NewFCMSender(client multicastClient) (*FCMSender, error) {
	if client == nil {
		return nil, fmt.Errorf("fcm client cannot be nil")
	}
	return &FCMSender{client: client, log: logging.Component("push")}, nil
}

// DialFCM builds a sender from a service account credentials file.
func DialFCM(ctx context.Context, credentialsFile string) (*FCMSender, error) {
	app, err := firebase.NewApp(ctx, nil, option.WithCredentialsFile(credentialsFile))
	if err != nil {
		return nil, fmt.Errorf("init firebase app: %w", err)
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("init firebase messaging: %w", err)
	}
	return NewFCMSender(client)
}

// Send delivers n to every token. Tokens the provider refuses are logged and
// counted; an error is returned only when no token received the notification.
func (s *FCMSender) Send(ctx context.Context, tokens []string, n Notification) error {
	if len(tokens) == 0 {
		return nil
	}

	delivered := 0
	var lastErr error
	for start := 0; start < len(tokens); start += fcmBatchSize {
		batch := tokens[start:min(start+fcmBatchSize, len(tokens))]
		resp, err := s.client.SendEachForMulticast(ctx, s.message(batch, n))
		if err != nil {
			lastErr = err
			s.log.Error().Err(err).Str("kind", n.Kind).Int("devices", len(batch)).Msg("fcm multicast")
			continue
		}
		delivered += resp.SuccessCount
		s.logFailures(batch, resp, n.Kind)
	}

	if delivered == 0 {
		if lastErr == nil {
			lastErr = errors.New("every device token was refused")
		}
		return fmt.Errorf("send %s notification: %w", n.Kind, lastErr)
	}
	metrics.PushNotificationsSent.WithLabelValues(n.Kind).Inc()
	s.log.Debug().Str("kind", n.Kind).Int("delivered", delivered).Int("devices", len(tokens)).Msg("push notification")
	return nil
}

func (s *FCMSender) message(tokens []string, n Notification) *messaging.MulticastMessage {
	return &messaging.MulticastMessage{
		Tokens: tokens,
		Data:   n.Data,
		Notification: &messaging.Notification{
			Title: n.Title,
			Body:  n.Body,
		},
		Android: &messaging.AndroidConfig{Priority: "high"},
		APNS: &messaging.APNSConfig{
			Payload: &messaging.APNSPayload{Aps: &messaging.Aps{Sound: "default"}},
		},
	}
}

func (s *FCMSender) logFailures(batch []string, resp *messaging.BatchResponse, kind string) {
	if resp.FailureCount == 0 {
		return
	}
	for i, r := range resp.Responses {
		if r.Success || i >= len(batch) {
			continue
		}
		metrics.PushTokenFailures.Inc()
		level := zerolog.WarnLevel
		if messaging.IsUnregistered(r.Error) {
			level = zerolog.InfoLevel
		}
		s.log.WithLevel(level).Err(r.Error).Str("kind", kind).Str("token", tokenSuffix(batch[i])).Msg("device token refused")
	}
}

// tokenSuffix keeps device tokens out of the logs.
func tokenSuffix(token string) string {
	if len(token) <= 6 {
		return token
	}
	return "…" + token[len(token)-6:]
}
