// Package session holds the current user session record.
package session

import (
	"errors"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"go-lifeline/types"
)

// DefaultTTL is the validity window of a stored session.
const DefaultTTL = 10 * time.Minute

var (
	ErrNoSession = errors.New("session: none stored")
	ErrExpired   = errors.New("session: expired")
	ErrInvalid   = errors.New("session: invalid user type")
)

// Store keeps the single {user, timestamp} record. Expiry only affects Load;
// the user who signed in keeps their role for the life of the process, so an
// expired record never tears down running subscriptions.
type Store struct {
	clock clockwork.Clock
	ttl   time.Duration

	mu      sync.RWMutex
	current *types.Session
}

func NewStore(clock clockwork.Clock, ttl time.Duration) *Store {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{clock: clock, ttl: ttl}
}

// Save stamps and stores a session for u.
func (s *Store) Save(u types.User) (types.Session, error) {
	switch u.Type {
	case types.ReporterUser, types.ResponderUser, types.GuestUser:
	default:
		return types.Session{}, ErrInvalid
	}
	sess := types.Session{User: u, Timestamp: s.clock.Now().UnixMilli()}
	s.mu.Lock()
	s.current = &sess
	s.mu.Unlock()
	return sess, nil
}

// Load returns the stored session if it is still inside the validity window.
func (s *Store) Load() (types.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return types.Session{}, ErrNoSession
	}
	if !s.current.Valid(s.clock.Now(), s.ttl) {
		return *s.current, ErrExpired
	}
	return *s.current, nil
}

func (s *Store) Clear() {
	s.mu.Lock()
	s.current = nil
	s.mu.Unlock()
}

// Role is the current user's type, guest when nobody signed in.
func (s *Store) Role() types.UserType {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return types.GuestUser
	}
	return s.current.User.Type
}
