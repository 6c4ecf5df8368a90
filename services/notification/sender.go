package notification

import (
	"context"
	"fmt"

	"bloomdispatch/models"

	"firebase.google.com/go/v4/messaging"
)

// Messenger is the part of *messaging.Client used for delivery.
type Messenger interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
}

// FCMSender delivers queued notifications through Firebase Cloud Messaging.
type FCMSender struct {
	Client Messenger
}

// BuildMessage converts a payload into an FCM message addressed to a device
// token or, for operations, to a topic.
func BuildMessage(p models.NotificationPayload) (*messaging.Message, error) {
	if p.Token == "" && p.Topic == "" {
		return nil, fmt.Errorf("notification %s has no recipient", p.ID)
	}
	msg := &messaging.Message{
		Token: p.Token,
		Topic: p.Topic,
		Notification: &messaging.Notification{
			Title: p.Title,
			Body:  p.Body,
		},
		Data: p.Data,
	}
	if p.Role == models.RecipientProvider {
		// Offers are time-boxed, so they go out at high priority.
		msg.Android = &messaging.AndroidConfig{
			Priority: "high",
			Notification: &messaging.AndroidNotification{
				ChannelID: "high_priority",
				Sound:     "default",
			},
		}
		msg.APNS = &messaging.APNSConfig{
			Headers: map[string]string{
				"apns-priority":  "10",
				"apns-push-type": "alert",
			},
			Payload: &messaging.APNSPayload{
				Aps: &messaging.Aps{Sound: "default"},
			},
		}
	}
	return msg, nil
}

func (s *FCMSender) Send(ctx context.Context, p models.NotificationPayload) (string, error) {
	msg, err := BuildMessage(p)
	if err != nil {
		return "", err
	}
	id, err := s.Client.Send(ctx, msg)
	if err != nil {
		return "", fmt.Errorf("failed to send FCM message %s: %w", p.ID, err)
	}
	return id, nil
}
