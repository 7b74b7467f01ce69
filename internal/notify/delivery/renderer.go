// Package delivery turns consumed lifecycle events into user-facing
// notifications and pushes them out through the configured channel.
package delivery

import (
	"fmt"

	"github.com/gaini88088/expert-pancake/internal/notify/domain"
)

// Message is a rendered, channel-ready notification.
type Message struct {
	EventID string `json:"eventId"`
	UserID  string `json:"userId"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
	Urgent  bool   `json:"urgent"`
}

// Render builds the message for an event. Unknown event types get a generic
// envelope rather than an error so a newer producer never wedges the worker.
func Render(event *domain.Event) Message {
	msg := Message{EventID: event.ID, UserID: event.UserID}

	device := event.DeviceClass
	if device == "" {
		device = "unknown device"
	}

	switch event.Type {
	case domain.EventLogin:
		msg.Subject = "New sign-in to your account"
		msg.Body = fmt.Sprintf("A %s signed in", device)
		if event.IPAddress != "" {
			msg.Body += fmt.Sprintf(" from %s", event.IPAddress)
		}
		msg.Body += ". If this was you, no action is needed."

	case domain.EventLogoutAll:
		msg.Subject = "All sessions signed out"
		msg.Body = "Every session on your account was signed out. Sign in again on the devices you use."

	case domain.EventSessionExpired:
		msg.Subject = "A session expired"
		msg.Body = fmt.Sprintf("Your %s session was signed out after a period of inactivity.", device)

	case domain.EventSecurityAlert:
		msg.Subject = "Security alert"
		msg.Urgent = true
		if reason, ok := event.Meta["reason"]; ok {
			msg.Body = fmt.Sprintf("Security alert on your account: %s. If this wasn't you, sign out all sessions immediately.", reason)
		} else {
			msg.Body = "Unusual activity was detected on your account. If this wasn't you, sign out all sessions immediately."
		}

	default:
		msg.Subject = "Account notification"
		msg.Body = fmt.Sprintf("Event: %s", event.Type)
	}
	return msg
}
