package notification

import (
	"context"
	"errors"

	"firebase.google.com/go/v4/messaging"
	"github.com/rs/zerolog/log"
)

// fcmBatchSize is the multicast token limit.
const fcmBatchSize = 500

// Multicaster is the part of *messaging.Client the push channel uses.
type Multicaster interface {
	SendEachForMulticast(ctx context.Context, message *messaging.MulticastMessage) (*messaging.BatchResponse, error)
}

// FCMChannel pushes to device tokens in batches.
type FCMChannel struct {
	client Multicaster
}

// NewFCMChannel returns nil for a nil client so callers can skip push.
func NewFCMChannel(client *messaging.Client) *FCMChannel {
	if client == nil {
		return nil
	}
	return &FCMChannel{client: client}
}

func intPtr(i int) *int { return &i }

func multicast(tokens []string, m Message) *messaging.MulticastMessage {
	data := map[string]string{"category": m.Category}
	for k, v := range m.Data {
		data[k] = v
	}
	return &messaging.MulticastMessage{
		Tokens: tokens,
		Notification: &messaging.Notification{
			Title: m.Title,
			Body:  m.Body,
		},
		Data: data,
		Android: &messaging.AndroidConfig{
			Priority: "high",
			Notification: &messaging.AndroidNotification{
				ChannelID:    "health_notifications",
				Priority:     messaging.PriorityHigh,
				DefaultSound: true,
			},
		},
		APNS: &messaging.APNSConfig{
			Payload: &messaging.APNSPayload{
				Aps: &messaging.Aps{Sound: "default", Badge: intPtr(1)},
			},
		},
		Webpush: &messaging.WebpushConfig{
			Notification: &messaging.WebpushNotification{
				Title: m.Title,
				Body:  m.Body,
				Icon:  "/icon-192x192.png",
			},
		},
	}
}

// Send returns the tokens FCM reported as unregistered so they can be
// deactivated. Other per-token failures are only logged.
func (f *FCMChannel) Send(ctx context.Context, tokens []string, m Message) (stale []string, err error) {
	var errs []error
	for start := 0; start < len(tokens); start += fcmBatchSize {
		end := start + fcmBatchSize
		if end > len(tokens) {
			end = len(tokens)
		}
		batch := tokens[start:end]

		resp, err := f.client.SendEachForMulticast(ctx, multicast(batch, m))
		if err != nil {
			errs = append(errs, err)
			continue
		}
		for i, r := range resp.Responses {
			if r.Success {
				continue
			}
			if messaging.IsUnregistered(r.Error) || messaging.IsInvalidArgument(r.Error) {
				stale = append(stale, batch[i])
				continue
			}
			log.Warn().Err(r.Error).Uint("user_id", m.UserID).Msg("fcm delivery failed")
		}
		log.Debug().Int("success", resp.SuccessCount).Int("failure", resp.FailureCount).Msg("fcm batch sent")
	}
	return stale, errors.Join(errs...)
}
