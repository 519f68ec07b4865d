package datasync

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-lifeline/metrics"
	"go-lifeline/types"
)

func TestAlertQueueOneVisibleFIFO(t *testing.T) {
	q := NewAlertQueue(clockwork.NewFakeClock(), 0, metrics.NewForTesting())

	assert.True(t, q.Push(types.Incident{ID: "a"}))
	assert.False(t, q.Push(types.Incident{ID: "b"}))
	assert.False(t, q.Push(types.Incident{ID: "c"}))

	v := q.View()
	require.NotNil(t, v.Visible)
	assert.Equal(t, "a", v.Visible.Incident.ID)
	assert.Equal(t, 2, v.Badge)

	next := q.Dismiss()
	require.NotNil(t, next)
	assert.Equal(t, "b", next.Incident.ID)
	assert.Equal(t, 1, q.Badge())

	assert.Equal(t, "c", q.Dismiss().Incident.ID)
	assert.Nil(t, q.Dismiss())
	assert.Nil(t, q.View().Visible)
	assert.Zero(t, q.Badge())
}

func TestAlertQueueExpire(t *testing.T) {
	clock := clockwork.NewFakeClock()
	q := NewAlertQueue(clock, DefaultAlertTTL, metrics.NewForTesting())
	q.Push(types.Incident{ID: "a"})
	q.Push(types.Incident{ID: "b"})

	clock.Advance(4 * time.Minute)
	assert.False(t, q.Expire())

	clock.Advance(time.Minute)
	assert.True(t, q.Expire())
	v := q.View()
	require.NotNil(t, v.Visible)
	assert.Equal(t, "b", v.Visible.Incident.ID)

	// b was only just shown.
	assert.False(t, q.Expire())
}

func TestMarkerLayerReplace(t *testing.T) {
	l := NewMarkerLayer()
	n := l.Replace([]types.RescueCenter{
		{ID: "h", Type: types.CenterHospital, Location: &types.CenterLocation{Latitude: 1, Longitude: 2}},
		{ID: "p", Name: "Central", Type: types.CenterPolice, Location: &types.CenterLocation{Latitude: 3, Longitude: 4}},
		{ID: "x", Type: types.CenterFire},
		{ID: "s", Type: types.CenterSecurity, Location: &types.CenterLocation{}},
	})
	assert.Equal(t, 3, n)
	markers := l.Markers()
	require.Len(t, markers, 3)
	assert.Equal(t, "red", markers[0].Color)
	assert.Equal(t, "Rescue Center", markers[0].Name)
	assert.Equal(t, "blue", markers[1].Color)
	assert.Equal(t, "gray", markers[2].Color)
	assert.Equal(t, "orange", MarkerColor(types.CenterFire))

	l.Replace(nil)
	assert.Empty(t, l.Markers())
	assert.Equal(t, 2, l.Redraws())
}
