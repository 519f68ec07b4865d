package session

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-lifeline/types"
)

func TestStoreExpiry(t *testing.T) {
	clock := clockwork.NewFakeClock()
	s := NewStore(clock, DefaultTTL)

	_, err := s.Load()
	assert.ErrorIs(t, err, ErrNoSession)
	assert.Equal(t, types.GuestUser, s.Role())

	saved, err := s.Save(types.User{ID: "u1", Type: types.ResponderUser, Name: "Unit 7"})
	require.NoError(t, err)
	assert.Equal(t, clock.Now().UnixMilli(), saved.Timestamp)

	clock.Advance(9 * time.Minute)
	got, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, "u1", got.User.ID)

	clock.Advance(time.Minute)
	_, err = s.Load()
	assert.ErrorIs(t, err, ErrExpired)
	assert.Equal(t, types.ResponderUser, s.Role(), "expiry keeps the signed-in role")

	s.Clear()
	assert.Equal(t, types.GuestUser, s.Role())
}

func TestStoreRejectsUnknownType(t *testing.T) {
	s := NewStore(clockwork.NewFakeClock(), 0)
	_, err := s.Save(types.User{Type: "admin"})
	assert.ErrorIs(t, err, ErrInvalid)
}
