package clients

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHub_RegisterBroadcastRelease(t *testing.T) {
	h := NewHub("http://localhost:8080", 4, slog.Default())
	a, releaseA := h.Register("a", "http://localhost:8080/")
	b, releaseB := h.Register("b", "http://localhost:8080/?emergency=1")
	defer releaseB()

	n := h.Broadcast(Message{Type: TypeClaim})
	assert.Equal(t, 2, n)
	assert.Equal(t, TypeClaim, (<-a).Type)
	assert.Equal(t, TypeClaim, (<-b).Type)

	releaseA()
	_, open := <-a
	assert.False(t, open)
	assert.Len(t, h.MatchAll(), 1)
	assert.ErrorIs(t, h.PostMessage("a", Message{Type: TypeFocus}), ErrUnknownClient)
}

func TestHub_FocusAndNavigate(t *testing.T) {
	h := NewHub("http://localhost:8080", 4, slog.Default())
	ch, release := h.Register("tab", "http://localhost:8080/")
	defer release()

	require.NoError(t, h.Focus("tab"))
	require.NoError(t, h.Navigate("tab", "/?emergency=E1"))

	assert.Equal(t, TypeFocus, (<-ch).Type)
	nav := <-ch
	assert.Equal(t, TypeNavigate, nav.Type)
	assert.Equal(t, map[string]string{"url": "/?emergency=E1"}, nav.Data)

	infos := h.MatchAll()
	require.Len(t, infos, 1)
	assert.True(t, infos[0].Focused)
	assert.True(t, h.SameOrigin(infos[0]))
}

func TestHub_SlowClientDropsInsteadOfBlocking(t *testing.T) {
	h := NewHub("", 1, slog.Default())
	ch, release := h.Register("slow", "")
	defer release()

	h.Broadcast(Message{Type: "one"})
	h.Broadcast(Message{Type: "two"})

	assert.Equal(t, "one", (<-ch).Type)
	select {
	case m := <-ch:
		t.Fatalf("unexpected message %v", m)
	default:
	}
}
