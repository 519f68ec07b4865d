package datasync

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"go-lifeline/metrics"
	"go-lifeline/types"
)

// DefaultAlertTTL is how long an alert stays visible before it auto-hides.
const DefaultAlertTTL = 5 * time.Minute

type Alert struct {
	Incident types.Incident `json:"incident"`
	RaisedAt time.Time      `json:"raisedAt"`
	ShownAt  time.Time      `json:"shownAt,omitempty"`
}

// AlertView is what the UI renders: the visible alert and the badge count.
type AlertView struct {
	Visible *Alert `json:"visible"`
	Badge   int    `json:"badge"`
}

// AlertQueue shows at most one alert at a time. Further alerts wait in FIFO
// order and the badge is the number waiting.
type AlertQueue struct {
	clock   clockwork.Clock
	ttl     time.Duration
	metrics *metrics.Metrics

	mu      sync.Mutex
	visible *Alert
	pending []Alert
}

func NewAlertQueue(clock clockwork.Clock, ttl time.Duration, m *metrics.Metrics) *AlertQueue {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if ttl <= 0 {
		ttl = DefaultAlertTTL
	}
	return &AlertQueue{clock: clock, ttl: ttl, metrics: m}
}

// Push raises an alert and reports whether it became visible immediately.
func (q *AlertQueue) Push(inc types.Incident) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	a := Alert{Incident: inc, RaisedAt: q.clock.Now()}
	shown := false
	if q.visible == nil {
		a.ShownAt = a.RaisedAt
		q.visible = &a
		shown = true
	} else {
		q.pending = append(q.pending, a)
	}
	q.gauge()
	return shown
}

// Dismiss hides the visible alert and promotes the next pending one.
func (q *AlertQueue) Dismiss() *Alert {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.promoteLocked()
}

// Expire hides the visible alert once it has been shown for the TTL.
func (q *AlertQueue) Expire() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.visible == nil || q.clock.Since(q.visible.ShownAt) < q.ttl {
		return false
	}
	q.promoteLocked()
	return true
}

func (q *AlertQueue) View() AlertView {
	q.mu.Lock()
	defer q.mu.Unlock()
	v := AlertView{Badge: len(q.pending)}
	if q.visible != nil {
		cp := *q.visible
		v.Visible = &cp
	}
	return v
}

func (q *AlertQueue) Badge() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

func (q *AlertQueue) promoteLocked() *Alert {
	q.visible = nil
	if len(q.pending) > 0 {
		next := q.pending[0]
		q.pending = q.pending[1:]
		next.ShownAt = q.clock.Now()
		q.visible = &next
	}
	q.gauge()
	if q.visible == nil {
		return nil
	}
	cp := *q.visible
	return &cp
}

func (q *AlertQueue) gauge() {
	if q.metrics != nil {
		q.metrics.AlertsPending.Set(float64(len(q.pending)))
	}
}
