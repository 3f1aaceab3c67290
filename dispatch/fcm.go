package dispatch

import (
	"context"

	"firebase.google.com/go/v4/messaging"
)

const defaultSound = "default"

// FCMSender delivers payloads through Firebase Cloud Messaging.
type FCMSender struct {
	client *messaging.Client
}

func NewFCMSender(client *messaging.Client) *FCMSender {
	return &FCMSender{client: client}
}

// Send delivers the payload to all tokens in one multicast batch. Each
// token gets its own result; a token the provider reports as unregistered
// is marked Permanent so the caller prunes it.
func (s *FCMSender) Send(ctx context.Context, p Payload, tokens []string) ([]SendResult, error) {
	badge := 1
	msg := &messaging.MulticastMessage{
		Tokens: tokens,
		Notification: &messaging.Notification{
			Title: p.Title,
			Body:  p.Body,
		},
		Data: p.Data,
		Android: &messaging.AndroidConfig{
			Notification: &messaging.AndroidNotification{
				Sound:       defaultSound,
				ClickAction: clickAction,
			},
		},
		APNS: &messaging.APNSConfig{
			Payload: &messaging.APNSPayload{
				Aps: &messaging.Aps{
					Sound: defaultSound,
					Badge: &badge,
				},
			},
		},
	}

	batch, err := s.client.SendEachForMulticast(ctx, msg)
	if err != nil {
		return nil, err
	}

	results := make([]SendResult, len(batch.Responses))
	for i, resp := range batch.Responses {
		results[i] = SendResult{
			Token:     tokens[i],
			Err:       resp.Error,
			Permanent: resp.Error != nil && messaging.IsUnregistered(resp.Error),
		}
	}
	return results, nil
}
