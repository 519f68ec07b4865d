package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
)

// ReplayTag is the sync tag that replays the mutation queue.
const ReplayTag = "emergency-sync"

var ErrUnknownTag = errors.New("queue: no handler for sync tag")

// Probe reports whether the network path is usable.
type Probe func(ctx context.Context) error

// SyncManager runs registered sync tags at the next connectivity opportunity.
// Registration is fire-and-forget: a tag runs once when Fire finds the network
// reachable, and is registered again if its handler fails.
type SyncManager struct {
	probe  Probe
	logger *slog.Logger

	mu       sync.Mutex
	handlers map[string]func(context.Context) error
	pending  map[string]struct{}
}

func NewSyncManager(probe Probe, logger *slog.Logger) *SyncManager {
	return &SyncManager{
		probe:    probe,
		logger:   logger,
		handlers: make(map[string]func(context.Context) error),
		pending:  make(map[string]struct{}),
	}
}

// Handle binds fn to tag.
func (s *SyncManager) Handle(tag string, fn func(context.Context) error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[tag] = fn
}

// RegisterReplay schedules tag for the next connectivity opportunity.
func (s *SyncManager) RegisterReplay(tag string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.handlers[tag]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownTag, tag)
	}
	s.pending[tag] = struct{}{}
	return nil
}

// Pending lists registered tags that have not run yet.
func (s *SyncManager) Pending() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.pending))
	for tag := range s.pending {
		out = append(out, tag)
	}
	sort.Strings(out)
	return out
}

// Fire runs every pending tag if the probe succeeds and returns the tags that
// completed.
func (s *SyncManager) Fire(ctx context.Context) []string {
	if len(s.Pending()) == 0 {
		return nil
	}
	if s.probe != nil {
		if err := s.probe(ctx); err != nil {
			s.logger.Debug("sync deferred, network unreachable", "error", err)
			return nil
		}
	}

	s.mu.Lock()
	tags := make([]string, 0, len(s.pending))
	for tag := range s.pending {
		tags = append(tags, tag)
	}
	s.pending = make(map[string]struct{})
	s.mu.Unlock()
	sort.Strings(tags)

	var done []string
	for _, tag := range tags {
		s.mu.Lock()
		fn := s.handlers[tag]
		s.mu.Unlock()
		if err := fn(ctx); err != nil {
			s.logger.Warn("sync failed, will retry", "tag", tag, "error", err)
			_ = s.RegisterReplay(tag)
			continue
		}
		done = append(done, tag)
	}
	return done
}

// HandleReplay binds ReplayTag to q.ReplayAll.
func (s *SyncManager) HandleReplay(q *Queue) {
	s.Handle(ReplayTag, func(ctx context.Context) error {
		_, err := q.ReplayAll(ctx)
		return err
	})
}
