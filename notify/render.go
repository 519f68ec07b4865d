package notify

import (
	"encoding/json"
	"fmt"
	"strings"

	"go-lifeline/types"
)

// Payload types understood by the renderer.
const (
	TypeAssigned    = "emergency_assigned"
	TypeCancelled   = "emergency_cancelled"
	TypeArrived     = "responder_arrived"
	TypeResolved    = "emergency_resolved"
	TypeSystemAlert = "system_alert"
)

const (
	defaultTitle = "Emergency Alert"
	defaultBody  = "New notification"
	defaultIcon  = "/icons/icon-192x192.png"
	badgeIcon    = "/icons/badge-72x72.png"
)

// template is the fixed rendering for one payload type.
type template struct {
	title              string
	icon               string
	vibrate            []int
	requireInteraction bool
	actions            []types.NotificationAction
	body               func(p types.PushPayload) string
	tag                func(p types.PushPayload) string
}

func emergencyTag(p types.PushPayload) string { return "emergency-" + p.EmergencyID }

var templates = map[string]template{
	TypeAssigned: {
		title:              "🚨 Emergency Response Assigned",
		icon:               "/icons/responder-icon.png",
		vibrate:            []int{200, 100, 200},
		requireInteraction: true,
		actions: []types.NotificationAction{
			{Action: ActionTrack, Title: "Track Responder"},
			{Action: ActionContact, Title: "Contact Responder"},
		},
		body: func(p types.PushPayload) string {
			return fmt.Sprintf("Responder %s is heading to your emergency. ETA: %s minutes.", orUnknown(p.ResponderName), etaString(p.ETA))
		},
		tag: emergencyTag,
	},
	TypeCancelled: {
		title:   "❌ Emergency Cancelled",
		icon:    "/icons/cancelled-icon.png",
		vibrate: []int{100},
		body: func(p types.PushPayload) string {
			return fmt.Sprintf("Emergency %s has been cancelled.", p.EmergencyID)
		},
		tag: emergencyTag,
	},
	TypeArrived: {
		title:              "✅ Help Has Arrived",
		icon:               "/icons/arrived-icon.png",
		vibrate:            []int{200, 100, 200, 100, 200},
		requireInteraction: true,
		actions: []types.NotificationAction{
			{Action: ActionConfirm, Title: "Confirm Arrival"},
			{Action: ActionMessage, Title: "Send Message"},
		},
		body: func(p types.PushPayload) string {
			return fmt.Sprintf("%s has arrived at your emergency location.", orUnknown(p.ResponderName))
		},
		tag: emergencyTag,
	},
	TypeResolved: {
		title:   "✅ Emergency Resolved",
		icon:    "/icons/resolved-icon.png",
		vibrate: []int{200},
		actions: []types.NotificationAction{
			{Action: ActionFeedback, Title: "Leave Feedback"},
			{Action: ActionView, Title: "View Details"},
		},
		body: func(types.PushPayload) string {
			return "Your emergency has been successfully resolved. Thank you for using our service."
		},
		tag: emergencyTag,
	},
	TypeSystemAlert: {
		title:   "📢 System Alert",
		icon:    "/icons/alert-icon.png",
		vibrate: []int{100, 50, 100},
		body: func(p types.PushPayload) string {
			if p.Message != "" {
				return p.Message
			}
			return "Important system notification"
		},
		tag: func(types.PushPayload) string { return "system-alert" },
	},
}

// Decode parses a raw push body. Unknown fields are kept in Raw.
func Decode(raw []byte) (types.PushPayload, error) {
	var p types.PushPayload
	if len(strings.TrimSpace(string(raw))) == 0 {
		return p, fmt.Errorf("empty push payload")
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		return types.PushPayload{}, fmt.Errorf("decode push payload: %w", err)
	}
	if err := json.Unmarshal(raw, &p.Raw); err != nil {
		return types.PushPayload{}, fmt.Errorf("decode push payload: %w", err)
	}
	return p, nil
}

// Render maps a payload to a notification. Every payload, including an empty
// or unknown one, yields a notification with a non-empty title.
func Render(p types.PushPayload) types.Notification {
	t, ok := templates[p.Type]
	if !ok {
		return renderDefault(p)
	}
	n := types.Notification{
		Title:              t.title,
		Body:               t.body(p),
		Icon:               t.icon,
		Badge:              badgeIcon,
		Tag:                t.tag(p),
		Vibrate:            append([]int(nil), t.vibrate...),
		RequireInteraction: t.requireInteraction,
		Actions:            append([]types.NotificationAction(nil), t.actions...),
		Data: types.NotificationData{
			Type:        p.Type,
			EmergencyID: p.EmergencyID,
			AlertID:     p.AlertID,
		},
	}
	if p.Type == TypeSystemAlert {
		n.Data.EmergencyID = ""
	}
	return n
}

func renderDefault(p types.PushPayload) types.Notification {
	title := p.Title
	if title == "" {
		title = defaultTitle
	}
	body := p.Body
	if body == "" {
		body = defaultBody
	}
	icon := p.Icon
	if icon == "" {
		icon = defaultIcon
	}
	return types.Notification{
		Title:   title,
		Body:    body,
		Icon:    icon,
		Badge:   badgeIcon,
		Vibrate: []int{200, 100, 200},
		Actions: []types.NotificationAction{
			{Action: ActionView, Title: "View"},
			{Action: ActionDismiss, Title: "Dismiss"},
		},
		Data: types.NotificationData{
			Type:        p.Type,
			EmergencyID: p.EmergencyID,
			AlertID:     p.AlertID,
		},
	}
}

func orUnknown(s string) string {
	if s == "" {
		return "A responder"
	}
	return s
}

func etaString(v any) string {
	switch eta := v.(type) {
	case nil:
		return "unknown"
	case float64:
		return fmt.Sprintf("%g", eta)
	case string:
		if eta == "" {
			return "unknown"
		}
		return eta
	default:
		return fmt.Sprint(eta)
	}
}
