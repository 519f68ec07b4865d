// Package notify turns push payloads into displayed notifications and
// notification clicks into in-app navigation.
package notify

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go-lifeline/clients"
	"go-lifeline/metrics"
	"go-lifeline/types"
)

// ErrUnknownNotification is returned when a click targets a notification that
// is no longer displayed.
var ErrUnknownNotification = errors.New("notify: unknown notification")

// Clients is the subset of the client hub that click routing needs.
type Clients interface {
	MatchAll() []clients.Info
	SameOrigin(info clients.Info) bool
	Focus(id string) error
	PostMessage(id string, msg clients.Message) error
}

// Sender delivers a rendered notification beyond this process.
type Sender interface {
	Send(ctx context.Context, target string, n types.Notification) (string, error)
}

// Intent is the outcome of a click.
type Intent struct {
	Action   string `json:"action"`
	Path     string `json:"path,omitempty"`
	ClientID string `json:"clientId,omitempty"`
	// OpenWindow is set when no same-origin window could be focused and the
	// caller must open a new one at Path.
	OpenWindow bool `json:"openWindow"`
	Navigated  bool `json:"navigated"`
}

// ClickMessage is posted to a focused window.
type ClickMessage struct {
	Action string                 `json:"action"`
	Path   string                 `json:"path"`
	Data   types.NotificationData `json:"data"`
}

type Dispatcher struct {
	tray    *Tray
	clients Clients
	sender  Sender
	maxAge  time.Duration
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// NewDispatcher creates a dispatcher. sender may be nil when push fan-out is
// disabled.
func NewDispatcher(tray *Tray, c Clients, sender Sender, maxAge time.Duration, logger *slog.Logger, m *metrics.Metrics) *Dispatcher {
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	return &Dispatcher{tray: tray, clients: c, sender: sender, maxAge: maxAge, logger: logger, metrics: m}
}

func (d *Dispatcher) Tray() *Tray { return d.tray }

// Push decodes a raw payload and displays it. A malformed payload is logged
// and displayed as the generic notification.
func (d *Dispatcher) Push(raw []byte) types.Notification {
	p, err := Decode(raw)
	if err != nil {
		d.logger.Warn("malformed push payload", "error", err)
		p = types.PushPayload{}
	}
	return d.Show(p)
}

// Show renders a decoded payload into the tray. It also sweeps stale entries.
func (d *Dispatcher) Show(p types.PushPayload) types.Notification {
	if n := d.tray.Sweep(d.maxAge); n > 0 {
		d.metrics.NotificationsClosed.WithLabelValues("sweep").Add(float64(n))
	}
	n := d.tray.Show(Render(p))
	label := p.Type
	if _, ok := templates[label]; !ok {
		label = "default"
	}
	d.metrics.NotificationsShown.WithLabelValues(label).Inc()
	d.logger.Info("notification shown", "id", n.ID, "type", label, "tag", n.Tag)
	return n
}

// Fanout sends an already-shown notification through the configured sender.
func (d *Dispatcher) Fanout(ctx context.Context, target string, n types.Notification) (string, error) {
	if d.sender == nil {
		return "", errors.New("notify: no sender configured")
	}
	return d.sender.Send(ctx, target, n)
}

// Click closes the notification and routes the action. A focused same-origin
// window is preferred; it receives a notification-click message. Without one,
// the returned intent asks the caller to open a window.
func (d *Dispatcher) Click(id, action string) (Intent, error) {
	n, ok := d.tray.Get(id)
	if !ok {
		return Intent{}, ErrUnknownNotification
	}
	d.tray.Close(id)
	d.metrics.NotificationsClosed.WithLabelValues("click").Inc()

	label := action
	if label == "" {
		label = "body"
	}
	d.metrics.NotificationClicks.WithLabelValues(label).Inc()

	path, navigate := TargetPath(action, n.Data.EmergencyID)
	intent := Intent{Action: action, Path: path}
	if !navigate {
		return intent, nil
	}

	for _, c := range d.clients.MatchAll() {
		if !d.clients.SameOrigin(c) {
			continue
		}
		if err := d.clients.Focus(c.ID); err != nil {
			continue
		}
		msg := clients.Message{
			Type: clients.TypeNotificationClick,
			Data: ClickMessage{Action: action, Path: path, Data: n.Data},
		}
		if err := d.clients.PostMessage(c.ID, msg); err != nil {
			d.logger.Warn("post click message failed", "client", c.ID, "error", err)
		}
		intent.ClientID = c.ID
		intent.Navigated = true
		return intent, nil
	}
	intent.OpenWindow = true
	intent.Navigated = true
	return intent, nil
}

// Dismiss closes a notification without routing.
func (d *Dispatcher) Dismiss(id string) bool {
	if !d.tray.Close(id) {
		return false
	}
	d.metrics.NotificationsClosed.WithLabelValues("close").Inc()
	return true
}
