package types

// PushPayload is the decoded body of a push message. Only Type is structural;
// the remaining fields are read by the renderer for the matching type.
type PushPayload struct {
	Type          string         `json:"type,omitempty"`
	Title         string         `json:"title,omitempty"`
	Body          string         `json:"body,omitempty"`
	Icon          string         `json:"icon,omitempty"`
	Message       string         `json:"message,omitempty"`
	EmergencyID   string         `json:"emergencyId,omitempty"`
	AlertID       string         `json:"alertId,omitempty"`
	ResponderName string         `json:"responderName,omitempty"`
	ETA           any            `json:"eta,omitempty"`
	Raw           map[string]any `json:"-"`
}

type NotificationAction struct {
	Action string `json:"action"`
	Title  string `json:"title"`
	Icon   string `json:"icon,omitempty"`
}

// NotificationData travels with a displayed notification and is what click
// routing reads back.
type NotificationData struct {
	Type        string `json:"type,omitempty"`
	EmergencyID string `json:"emergencyId,omitempty"`
	AlertID     string `json:"alertId,omitempty"`
}

// Notification is an OS-level notification ready to be shown.
type Notification struct {
	ID                 string               `json:"id"`
	Title              string               `json:"title"`
	Body               string               `json:"body"`
	Icon               string               `json:"icon"`
	Badge              string               `json:"badge"`
	Tag                string               `json:"tag,omitempty"`
	Vibrate            []int                `json:"vibrate"`
	RequireInteraction bool                 `json:"requireInteraction"`
	Actions            []NotificationAction `json:"actions,omitempty"`
	Data               NotificationData     `json:"data"`
	Timestamp          int64                `json:"timestamp"` // epoch millis
}
