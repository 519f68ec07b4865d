package notify

import "net/url"

// Click actions.
const (
	ActionTrack    = "track"
	ActionContact  = "contact"
	ActionConfirm  = "confirm"
	ActionMessage  = "message"
	ActionFeedback = "feedback"
	ActionView     = "view"
	ActionDismiss  = "dismiss"
)

// TargetPath maps a click action to the in-app path it opens. An empty action
// is a click on the notification body. ok is false for dismiss, which performs
// no navigation.
func TargetPath(action, emergencyID string) (path string, ok bool) {
	id := url.QueryEscape(emergencyID)
	switch action {
	case ActionDismiss:
		return "", false
	case ActionTrack:
		return "/?emergency=" + id + "&view=tracking", true
	case ActionContact:
		return "/?emergency=" + id + "&view=contact", true
	case ActionConfirm:
		return "/?emergency=" + id + "&action=confirm", true
	case ActionMessage:
		return "/?emergency=" + id + "&view=chat", true
	case ActionFeedback:
		return "/?emergency=" + id + "&view=feedback", true
	case ActionView:
		return "/?emergency=" + id, true
	}
	if emergencyID != "" {
		return "/?emergency=" + id, true
	}
	return "/", true
}
