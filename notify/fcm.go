package notify

import (
	"context"
	"fmt"
	"strings"

	"firebase.google.com/go/messaging"

	"go-lifeline/types"
)

// TopicPrefix marks a send target as an FCM topic instead of a device token.
const TopicPrefix = "topic:"

type messagingClient interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
}

// FCMSender delivers notifications as FCM web push messages.
type FCMSender struct {
	client messagingClient
}

func NewFCMSender(client *messaging.Client) *FCMSender {
	return &FCMSender{client: client}
}

// Send delivers n to a device token, or to a topic when target starts with
// TopicPrefix. It returns the FCM message id.
func (s *FCMSender) Send(ctx context.Context, target string, n types.Notification) (string, error) {
	msg, err := webpushMessage(target, n)
	if err != nil {
		return "", err
	}
	id, err := s.client.Send(ctx, msg)
	if err != nil {
		return "", fmt.Errorf("fcm send: %w", err)
	}
	return id, nil
}

func webpushMessage(target string, n types.Notification) (*messaging.Message, error) {
	target = strings.TrimSpace(target)
	if target == "" || target == TopicPrefix {
		return nil, fmt.Errorf("fcm send: empty target")
	}
	actions := make([]*messaging.WebpushNotificationAction, 0, len(n.Actions))
	for _, a := range n.Actions {
		actions = append(actions, &messaging.WebpushNotificationAction{Action: a.Action, Title: a.Title, Icon: a.Icon})
	}
	data := map[string]string{}
	if n.Data.Type != "" {
		data["type"] = n.Data.Type
	}
	if n.Data.EmergencyID != "" {
		data["emergencyId"] = n.Data.EmergencyID
	}
	if n.Data.AlertID != "" {
		data["alertId"] = n.Data.AlertID
	}

	msg := &messaging.Message{
		Data: data,
		Webpush: &messaging.WebpushConfig{
			Data: data,
			Notification: &messaging.WebpushNotification{
				Title:              n.Title,
				Body:               n.Body,
				Icon:               n.Icon,
				Badge:              n.Badge,
				Tag:                n.Tag,
				Vibrate:            n.Vibrate,
				RequireInteraction: n.RequireInteraction,
				Actions:            actions,
			},
		},
	}
	if topic, ok := strings.CutPrefix(target, TopicPrefix); ok {
		msg.Topic = topic
	} else {
		msg.Token = target
	}
	return msg, nil
}
