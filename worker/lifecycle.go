package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"go-lifeline/cache"
	"go-lifeline/metrics"
)

// State is the worker lifecycle stage.
type State string

const (
	StateParsed     State = "parsed"
	StateInstalling State = "installing"
	StateInstalled  State = "installed" // waiting
	StateActivating State = "activating"
	StateActivated  State = "activated"
)

// MessageSkipWaiting is the control message that activates a waiting worker.
const MessageSkipWaiting = "SKIP_WAITING"

// ErrUnknownMessage is returned for control messages the worker ignores.
var ErrUnknownMessage = errors.New("worker: unknown control message")

// ControlMessage arrives on the worker's message port.
type ControlMessage struct {
	Type string `json:"type"`
}

// Claimer takes control of every open client.
type Claimer interface {
	Claim(version string) int
}

// Sweeper closes displayed notifications older than maxAge.
type Sweeper interface {
	Sweep(maxAge time.Duration) int
}

// Worker owns the install/activate lifecycle of one cache version.
type Worker struct {
	engine   *Engine
	storage  cache.Storage
	parts    Partitions
	manifest []string
	clients  Claimer
	tray     Sweeper
	maxAge   time.Duration
	logger   *slog.Logger
	metrics  *metrics.Metrics

	mu    sync.Mutex
	state State
}

// NewWorker creates a worker around an engine. clients and tray may be nil.
func NewWorker(engine *Engine, manifest []string, clients Claimer, tray Sweeper, maxAge time.Duration, logger *slog.Logger, m *metrics.Metrics) *Worker {
	return &Worker{
		engine:   engine,
		storage:  engine.storage,
		parts:    engine.parts,
		manifest: manifest,
		clients:  clients,
		tray:     tray,
		maxAge:   maxAge,
		logger:   logger,
		metrics:  m,
		state:    StateParsed,
	}
}

func (w *Worker) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

func (w *Worker) Partitions() Partitions { return w.parts }

func (w *Worker) setState(s State) {
	w.mu.Lock()
	w.state = s
	w.mu.Unlock()
}

// Install caches the shell manifest, then skips waiting whatever the outcome.
// A population failure is logged and returned, but the worker still activates.
func (w *Worker) Install(ctx context.Context) error {
	w.setState(StateInstalling)
	popErr := w.populate(ctx)
	if popErr != nil {
		w.logger.Error("install cache failed", "version", w.parts.Version, "error", popErr)
	}
	w.setState(StateInstalled)

	if err := w.SkipWaiting(ctx); err != nil {
		return errors.Join(popErr, err)
	}
	return popErr
}

// populate fetches every manifest URL before storing any of them, so the
// shell is cached all-or-nothing.
func (w *Worker) populate(ctx context.Context) error {
	fetched := make(map[string]*Response, len(w.manifest))
	for _, p := range w.manifest {
		u := w.engine.origin.ResolveReference(&url.URL{Path: p})
		res, err := w.engine.Fetch(ctx, u)
		if err != nil {
			return fmt.Errorf("fetch %s: %w", p, err)
		}
		if res.Status != http.StatusOK {
			return fmt.Errorf("fetch %s: status %d", p, res.Status)
		}
		fetched[cache.NormalizeURL(u)] = res
	}

	static, err := w.storage.Open(ctx, w.parts.Static)
	if err != nil {
		return fmt.Errorf("open %s: %w", w.parts.Static, err)
	}
	now := w.engine.clock.Now()
	offlineKey := cache.NormalizeURL(w.engine.origin.ResolveReference(&url.URL{Path: OfflinePage}))
	for key, res := range fetched {
		if err := static.Put(ctx, res.entry(key, now)); err != nil {
			return fmt.Errorf("store %s: %w", key, err)
		}
		if key == offlineKey {
			offline, err := w.storage.Open(ctx, w.parts.Offline)
			if err != nil {
				return fmt.Errorf("open %s: %w", w.parts.Offline, err)
			}
			if err := offline.Put(ctx, res.entry(key, now)); err != nil {
				return fmt.Errorf("store %s: %w", key, err)
			}
		}
	}
	w.logger.Info("shell cached", "version", w.parts.Version, "entries", len(fetched))
	return nil
}

// SkipWaiting activates a waiting worker. It is a no-op in any other state.
func (w *Worker) SkipWaiting(ctx context.Context) error {
	if w.State() != StateInstalled {
		return nil
	}
	_, err := w.Activate(ctx)
	return err
}

// Activate deletes every partition outside the current allowlist, sweeps stale
// notifications and claims open clients. It returns the deleted names.
func (w *Worker) Activate(ctx context.Context) ([]string, error) {
	w.setState(StateActivating)

	names, err := w.storage.Names(ctx)
	if err != nil {
		w.setState(StateActivated)
		return nil, fmt.Errorf("list partitions: %w", err)
	}
	var deleted []string
	var errs []error
	for _, name := range names {
		if w.parts.allowed(name) {
			continue
		}
		ok, err := w.storage.Delete(ctx, name)
		if err != nil {
			errs = append(errs, fmt.Errorf("delete %s: %w", name, err))
			continue
		}
		if ok {
			deleted = append(deleted, name)
			w.metrics.PartitionsDeleted.Inc()
		}
	}

	if w.tray != nil {
		if n := w.tray.Sweep(w.maxAge); n > 0 {
			w.logger.Info("stale notifications closed", "count", n)
		}
	}
	claimed := 0
	if w.clients != nil {
		claimed = w.clients.Claim(w.parts.Version)
	}
	w.setState(StateActivated)
	w.logger.Info("worker activated", "version", w.parts.Version, "deleted", deleted, "claimed", claimed)
	return deleted, errors.Join(errs...)
}

// HandleMessage processes a control message from a page.
func (w *Worker) HandleMessage(ctx context.Context, msg ControlMessage) error {
	if msg.Type != MessageSkipWaiting {
		return ErrUnknownMessage
	}
	return w.SkipWaiting(ctx)
}
