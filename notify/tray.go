package notify

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"go-lifeline/types"
)

// DefaultMaxAge is how long a displayed notification may stay in the tray.
const DefaultMaxAge = 24 * time.Hour

// Tray holds the notifications currently displayed. A notification with a
// tag replaces any displayed notification carrying the same tag.
type Tray struct {
	clock clockwork.Clock

	mu    sync.Mutex
	items map[string]types.Notification
	tags  map[string]string // tag -> id
}

func NewTray(clock clockwork.Clock) *Tray {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Tray{
		clock: clock,
		items: make(map[string]types.Notification),
		tags:  make(map[string]string),
	}
}

// Show displays n and returns it with its id and timestamp assigned.
func (t *Tray) Show(n types.Notification) types.Notification {
	n.ID = uuid.NewString()
	n.Timestamp = t.clock.Now().UnixMilli()

	t.mu.Lock()
	defer t.mu.Unlock()
	if n.Tag != "" {
		if old, ok := t.tags[n.Tag]; ok {
			delete(t.items, old)
		}
		t.tags[n.Tag] = n.ID
	}
	t.items[n.ID] = n
	return n
}

// Get returns a displayed notification by id.
func (t *Tray) Get(id string) (types.Notification, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	n, ok := t.items[id]
	return n, ok
}

// Close removes a notification. It reports whether it was displayed.
func (t *Tray) Close(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closeLocked(id)
}

func (t *Tray) closeLocked(id string) bool {
	n, ok := t.items[id]
	if !ok {
		return false
	}
	delete(t.items, id)
	if n.Tag != "" && t.tags[n.Tag] == id {
		delete(t.tags, n.Tag)
	}
	return true
}

// List returns displayed notifications, oldest first.
func (t *Tray) List() []types.Notification {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]types.Notification, 0, len(t.items))
	for _, n := range t.items {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Timestamp != out[j].Timestamp {
			return out[i].Timestamp < out[j].Timestamp
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Sweep closes every notification created more than maxAge ago and returns
// how many were closed. A non-positive maxAge uses DefaultMaxAge.
func (t *Tray) Sweep(maxAge time.Duration) int {
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	cutoff := t.clock.Now().Add(-maxAge).UnixMilli()

	t.mu.Lock()
	defer t.mu.Unlock()
	closed := 0
	for id, n := range t.items {
		if n.Timestamp < cutoff && t.closeLocked(id) {
			closed++
		}
	}
	return closed
}
