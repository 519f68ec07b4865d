package notify

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"

	"go-lifeline/types"
)

func TestTraySweepClosesOnlyStale(t *testing.T) {
	clock := clockwork.NewFakeClock()
	tray := NewTray(clock)

	old := tray.Show(types.Notification{Title: "old"})
	clock.Advance(23 * time.Hour)
	recent := tray.Show(types.Notification{Title: "recent"})
	clock.Advance(time.Hour + time.Minute)

	// old is now just over 24h, recent is 1h old.
	assert.Equal(t, 1, tray.Sweep(DefaultMaxAge))

	_, ok := tray.Get(old.ID)
	assert.False(t, ok)
	_, ok = tray.Get(recent.ID)
	assert.True(t, ok)

	assert.Equal(t, 0, tray.Sweep(DefaultMaxAge))
}

func TestTraySameTagReplaces(t *testing.T) {
	tray := NewTray(clockwork.NewFakeClock())

	first := tray.Show(types.Notification{Title: "assigned", Tag: "emergency-E1"})
	second := tray.Show(types.Notification{Title: "arrived", Tag: "emergency-E1"})
	tray.Show(types.Notification{Title: "untagged"})

	list := tray.List()
	assert.Len(t, list, 2)
	_, ok := tray.Get(first.ID)
	assert.False(t, ok)
	got, ok := tray.Get(second.ID)
	assert.True(t, ok)
	assert.Equal(t, "arrived", got.Title)
}

func TestTrayClose(t *testing.T) {
	tray := NewTray(clockwork.NewFakeClock())
	n := tray.Show(types.Notification{Title: "x", Tag: "t"})

	assert.True(t, tray.Close(n.ID))
	assert.False(t, tray.Close(n.ID))
	assert.Empty(t, tray.List())

	// The tag slot is free again.
	tray.Show(types.Notification{Title: "y", Tag: "t"})
	assert.Len(t, tray.List(), 1)
}
