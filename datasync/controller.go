// Package datasync keeps one live subscription per watched collection and
// reconciles snapshots into the canonical in-memory model.
package datasync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jonboulle/clockwork"

	"go-lifeline/metrics"
	"go-lifeline/types"
)

// ErrNotReady is returned by Start when the backend or the state container is
// not available yet. The controller stays stopped and Start may be retried.
var ErrNotReady = errors.New("datasync: backend or state not ready")

const (
	defaultMinBackoff = time.Second
	defaultMaxBackoff = 30 * time.Second
)

type Options struct {
	Source  Source
	State   *State
	Alerts  *AlertQueue
	Markers *MarkerLayer
	// Role reports the current session's user type. Only responders get alerts.
	Role func() types.UserType
	// Seed runs once per Start before subscribing. Failures are logged.
	Seed    func(ctx context.Context) error
	Clock   clockwork.Clock
	Logger  *slog.Logger
	Metrics *metrics.Metrics

	MinBackoff time.Duration
	MaxBackoff time.Duration
}

type subscription struct {
	collection string
	cancel     context.CancelFunc
	done       chan struct{}

	mu     sync.Mutex
	stream Stream
}

func (s *subscription) setStream(st Stream) {
	s.mu.Lock()
	s.stream = st
	s.mu.Unlock()
}

func (s *subscription) stop() {
	s.cancel()
	s.mu.Lock()
	if s.stream != nil {
		s.stream.Stop()
	}
	s.mu.Unlock()
	<-s.done
}

// Controller owns the incident and rescue center subscriptions.
type Controller struct {
	opts Options

	mu   sync.Mutex
	subs map[string]*subscription

	// apply serializes reconciliation across both collections.
	apply sync.Mutex
	seen  map[string]struct{}

	lmu       sync.RWMutex
	listeners map[int]Listener
	nextID    int
}

func NewController(opts Options) *Controller {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.NewForTesting()
	}
	if opts.Alerts == nil {
		opts.Alerts = NewAlertQueue(opts.Clock, DefaultAlertTTL, opts.Metrics)
	}
	if opts.Markers == nil {
		opts.Markers = NewMarkerLayer()
	}
	if opts.Role == nil {
		opts.Role = func() types.UserType { return types.GuestUser }
	}
	if opts.MinBackoff <= 0 {
		opts.MinBackoff = defaultMinBackoff
	}
	if opts.MaxBackoff < opts.MinBackoff {
		opts.MaxBackoff = defaultMaxBackoff
	}
	return &Controller{
		opts:      opts,
		subs:      make(map[string]*subscription),
		seen:      make(map[string]struct{}),
		listeners: make(map[int]Listener),
	}
}

func (c *Controller) State() *State             { return c.opts.State }
func (c *Controller) Alerts() *AlertQueue       { return c.opts.Alerts }
func (c *Controller) Markers() *MarkerLayer     { return c.opts.Markers }
func (c *Controller) Clock() clockwork.Clock    { return c.opts.Clock }
func (c *Controller) Source() Source            { return c.opts.Source }
func (c *Controller) Logger() *slog.Logger      { return c.opts.Logger }
func (c *Controller) Metrics() *metrics.Metrics { return c.opts.Metrics }

// Subscribe registers l and returns a func that removes it.
func (c *Controller) Subscribe(l Listener) func() {
	c.lmu.Lock()
	id := c.nextID
	c.nextID++
	c.listeners[id] = l
	c.lmu.Unlock()
	return func() {
		c.lmu.Lock()
		delete(c.listeners, id)
		c.lmu.Unlock()
	}
}

// Started reports whether both subscriptions are live.
func (c *Controller) Started() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.subs) > 0
}

// Start opens one subscription per collection. Any existing subscriptions are
// torn down first, so calling Start twice never leaves duplicates.
func (c *Controller) Start(ctx context.Context) error {
	if c.opts.Source == nil || !c.opts.Source.Ready() || c.opts.State == nil {
		return ErrNotReady
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopLocked()

	if c.opts.Seed != nil {
		if err := c.opts.Seed(ctx); err != nil {
			c.opts.Logger.Warn("initial seed failed", "error", err)
		}
	}

	handlers := map[string]func(Snapshot){
		types.CollectionEmergencies:   c.reconcileIncidents,
		types.CollectionRescueCenters: c.reconcileCenters,
	}
	for collection, handle := range handlers {
		sub, err := c.subscribe(ctx, collection, handle)
		if err != nil {
			c.stopLocked()
			c.opts.Logger.Error("subscription setup failed", "collection", collection, "error", err)
			return fmt.Errorf("subscribe %s: %w", collection, err)
		}
		c.subs[collection] = sub
	}
	c.opts.Metrics.SubscriptionsActive.Set(float64(len(c.subs)))
	c.opts.Logger.Info("data sync started", "collections", len(c.subs))
	return nil
}

// Stop releases every subscription. It is safe to call when nothing is
// subscribed. Once Stop returns no handler will touch shared state.
func (c *Controller) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.subs) == 0 {
		return
	}
	c.stopLocked()
	c.opts.Logger.Info("data sync stopped")
}

func (c *Controller) stopLocked() {
	for collection, sub := range c.subs {
		sub.stop()
		delete(c.subs, collection)
	}
	c.opts.Metrics.SubscriptionsActive.Set(0)
}

func (c *Controller) subscribe(parent context.Context, collection string, handle func(Snapshot)) (*subscription, error) {
	ctx, cancel := context.WithCancel(context.WithoutCancel(parent))
	stream, err := c.opts.Source.Subscribe(ctx, collection)
	if err != nil {
		cancel()
		return nil, err
	}
	sub := &subscription{collection: collection, cancel: cancel, done: make(chan struct{}), stream: stream}
	go c.run(ctx, sub, handle)
	return sub, nil
}

// run pumps snapshots until the subscription is cancelled. Stream errors are
// retried on a fresh stream with exponential backoff.
func (c *Controller) run(ctx context.Context, sub *subscription, handle func(Snapshot)) {
	defer close(sub.done)
	bo := c.newBackoff()
	sub.mu.Lock()
	stream := sub.stream
	sub.mu.Unlock()

	for {
		snap, err := stream.Next()
		if ctx.Err() != nil {
			return
		}
		if err == nil {
			c.apply.Lock()
			if ctx.Err() == nil {
				handle(snap)
			}
			c.apply.Unlock()
			bo.Reset()
			continue
		}
		if errors.Is(err, ErrStreamDone) {
			return
		}

		stream.Stop()
		for {
			wait := bo.NextBackOff()
			c.opts.Logger.Warn("snapshot stream failed", "collection", sub.collection, "error", err, "retry_in", wait)
			select {
			case <-ctx.Done():
				return
			case <-c.opts.Clock.After(wait):
			}

			next, subErr := c.opts.Source.Subscribe(ctx, sub.collection)
			if subErr != nil {
				err = subErr
				continue
			}
			sub.setStream(next)
			if ctx.Err() != nil {
				next.Stop()
				return
			}
			stream = next
			c.opts.Logger.Info("resubscribed", "collection", sub.collection)
			break
		}
	}
}

func (c *Controller) newBackoff() *backoff.ExponentialBackOff {
	bo := &backoff.ExponentialBackOff{
		InitialInterval:     c.opts.MinBackoff,
		RandomizationFactor: 0,
		Multiplier:          2,
		MaxInterval:         c.opts.MaxBackoff,
		MaxElapsedTime:      0,
		Stop:                backoff.Stop,
		Clock:               backoff.SystemClock,
	}
	bo.Reset()
	return bo
}

func (c *Controller) reconcileIncidents(snap Snapshot) {
	now := c.opts.Clock.Now()
	incidents := make([]types.Incident, 0, len(snap.Docs))
	for _, d := range snap.Docs {
		incidents = append(incidents, NormalizeIncident(d, now))
	}
	c.opts.State.SetIncidents(incidents, now)
	c.opts.Metrics.Snapshots.WithLabelValues(types.CollectionEmergencies).Inc()

	responder := c.opts.Role() == types.ResponderUser
	var raised []Alert
	for _, ch := range snap.Changes {
		if ch.Kind != Added {
			continue
		}
		inc := NormalizeIncident(ch.Doc, now)
		if _, dup := c.seen[inc.ID]; dup {
			continue
		}
		c.seen[inc.ID] = struct{}{}
		if !responder || inc.Status != types.Reported {
			continue
		}
		c.opts.Alerts.Push(inc)
		c.opts.Metrics.AlertsRaised.Inc()
		raised = append(raised, Alert{Incident: inc, RaisedAt: now})
	}

	for _, a := range raised {
		c.emit(func(l Listener) { l.OnAlert(a) })
	}
	c.emit(func(l Listener) { l.OnIncidents(c.opts.State.Incidents()) })
}

func (c *Controller) reconcileCenters(snap Snapshot) {
	now := c.opts.Clock.Now()
	centers := make([]types.RescueCenter, 0, len(snap.Docs))
	for _, d := range snap.Docs {
		centers = append(centers, NormalizeCenter(d))
	}
	c.opts.State.SetCenters(centers, now)
	c.opts.Markers.Replace(centers)
	c.opts.Metrics.Snapshots.WithLabelValues(types.CollectionRescueCenters).Inc()
	c.emit(func(l Listener) { l.OnCenters(c.opts.State.Centers()) })
}

func (c *Controller) emit(call func(Listener)) {
	c.lmu.RLock()
	ls := make([]Listener, 0, len(c.listeners))
	for _, l := range c.listeners {
		ls = append(ls, l)
	}
	c.lmu.RUnlock()
	for _, l := range ls {
		func() {
			defer func() {
				if r := recover(); r != nil {
					c.opts.Logger.Warn("listener panicked", "panic", r)
				}
			}()
			call(l)
		}()
	}
}
