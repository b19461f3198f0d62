package messaging

import (
	fcm "firebase.google.com/go/v4/messaging"
)

// DefaultTopic is the topic the quickstart messages are sent to
const DefaultTopic = "news"

const (
	notificationTitle = "FCM Notification"
	notificationBody  = "Notification from FCM"
)

// Request is what a send puts on the wire: the message and whether the
// backend should only validate it
type Request struct {
	ValidateOnly bool         `json:"validate_only,omitempty"`
	Message      *fcm.Message `json:"message"`
}

// BuildCommonMessage builds a notification shared by every platform
func BuildCommonMessage(topic string) *Request {
	if topic == "" {
		topic = DefaultTopic
	}
	return &Request{
		Message: &fcm.Message{
			Topic: topic,
			Notification: &fcm.Notification{
				Title: notificationTitle,
				Body:  notificationBody,
			},
		},
	}
}

// BuildOverrideMessage builds the common notification with Android and APNs
// specific overrides
func BuildOverrideMessage(topic string) *Request {
	req := BuildCommonMessage(topic)
	badge := 1
	req.Message.Android = &fcm.AndroidConfig{
		Notification: &fcm.AndroidNotification{ClickAction: "android.intent.action.MAIN"},
	}
	req.Message.APNS = &fcm.APNSConfig{
		Headers: map[string]string{"apns-priority": "10"},
		Payload: &fcm.APNSPayload{Aps: &fcm.Aps{Badge: &badge}},
	}
	return req
}
