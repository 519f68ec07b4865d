package notify

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"firebase.google.com/go/messaging"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-lifeline/clients"
	"go-lifeline/metrics"
	"go-lifeline/types"
)

const testOrigin = "http://app.test"

func newTestDispatcher(t *testing.T) (*Dispatcher, *clients.Hub, clockwork.FakeClock) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	hub := clients.NewHub(testOrigin, 8, logger)
	clock := clockwork.NewFakeClock()
	d := NewDispatcher(NewTray(clock), hub, nil, DefaultMaxAge, logger, metrics.NewForTesting())
	return d, hub, clock
}

func TestPushMalformedFallsBackToGeneric(t *testing.T) {
	d, _, _ := newTestDispatcher(t)

	n := d.Push([]byte(`{"type": `))
	assert.Equal(t, "Emergency Alert", n.Title)
	assert.Equal(t, "New notification", n.Body)
	assert.NotEmpty(t, n.ID)
	assert.Len(t, d.Tray().List(), 1)
}

func TestPushResolved(t *testing.T) {
	d, _, _ := newTestDispatcher(t)

	n := d.Push([]byte(`{"type":"emergency_resolved","emergencyId":"E1"}`))
	assert.False(t, n.RequireInteraction)
	assert.Equal(t, []string{ActionFeedback, ActionView}, actionIDs(n))
	assert.Equal(t, "E1", n.Data.EmergencyID)
}

func TestPushSweepsStale(t *testing.T) {
	d, _, clock := newTestDispatcher(t)

	old := d.Push([]byte(`{"type":"system_alert"}`))
	clock.Advance(25 * time.Hour)
	d.Push([]byte(`{"type":"emergency_cancelled","emergencyId":"E9"}`))

	_, ok := d.Tray().Get(old.ID)
	assert.False(t, ok)
	assert.Len(t, d.Tray().List(), 1)
}

func TestClickFocusesExistingWindow(t *testing.T) {
	d, hub, _ := newTestDispatcher(t)
	ch, release := hub.Register("tab-1", testOrigin+"/")
	defer release()

	n := d.Push([]byte(`{"type":"emergency_assigned","emergencyId":"E1"}`))
	intent, err := d.Click(n.ID, ActionTrack)
	require.NoError(t, err)

	assert.Equal(t, "tab-1", intent.ClientID)
	assert.False(t, intent.OpenWindow)
	assert.Equal(t, "/?emergency=E1&view=tracking", intent.Path)

	focus := <-ch
	assert.Equal(t, clients.TypeFocus, focus.Type)
	click := <-ch
	assert.Equal(t, clients.TypeNotificationClick, click.Type)
	msg, ok := click.Data.(ClickMessage)
	require.True(t, ok)
	assert.Equal(t, ActionTrack, msg.Action)
	assert.Equal(t, "E1", msg.Data.EmergencyID)

	_, shown := d.Tray().Get(n.ID)
	assert.False(t, shown)
}

func TestClickOpensWindowWithoutSameOriginClient(t *testing.T) {
	d, hub, _ := newTestDispatcher(t)
	_, release := hub.Register("other", "https://elsewhere.test/")
	defer release()

	n := d.Push([]byte(`{"type":"responder_arrived","emergencyId":"E2"}`))
	intent, err := d.Click(n.ID, ActionConfirm)
	require.NoError(t, err)
	assert.True(t, intent.OpenWindow)
	assert.Empty(t, intent.ClientID)
	assert.Equal(t, "/?emergency=E2&action=confirm", intent.Path)
}

func TestClickDismissDoesNotNavigate(t *testing.T) {
	d, hub, _ := newTestDispatcher(t)
	ch, release := hub.Register("tab-1", testOrigin+"/")
	defer release()

	n := d.Push([]byte(`{"title":"hi"}`))
	intent, err := d.Click(n.ID, ActionDismiss)
	require.NoError(t, err)
	assert.False(t, intent.Navigated)
	assert.False(t, intent.OpenWindow)
	assert.Empty(t, ch)
}

func TestClickUnknown(t *testing.T) {
	d, _, _ := newTestDispatcher(t)
	_, err := d.Click("nope", ActionView)
	assert.ErrorIs(t, err, ErrUnknownNotification)
}

type recordingMessaging struct {
	got *messaging.Message
}

func (r *recordingMessaging) Send(_ context.Context, m *messaging.Message) (string, error) {
	r.got = m
	return "projects/p/messages/1", nil
}

func TestFCMSenderBuildsWebpush(t *testing.T) {
	rec := &recordingMessaging{}
	s := &FCMSender{client: rec}

	n := Render(types.PushPayload{Type: TypeAssigned, EmergencyID: "E1"})
	id, err := s.Send(context.Background(), "topic:responders", n)
	require.NoError(t, err)
	assert.Equal(t, "projects/p/messages/1", id)

	require.NotNil(t, rec.got)
	assert.Equal(t, "responders", rec.got.Topic)
	assert.Empty(t, rec.got.Token)
	wn := rec.got.Webpush.Notification
	assert.Equal(t, n.Title, wn.Title)
	assert.True(t, wn.RequireInteraction)
	require.Len(t, wn.Actions, 2)
	assert.Equal(t, ActionTrack, wn.Actions[0].Action)
	assert.Equal(t, "E1", rec.got.Data["emergencyId"])

	_, err = s.Send(context.Background(), "device-token", n)
	require.NoError(t, err)
	assert.Equal(t, "device-token", rec.got.Token)

	_, err = s.Send(context.Background(), " ", n)
	assert.Error(t, err)
}
