package worker

import (
	"context"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-lifeline/metrics"
)

type fakeClaimer struct{ claims []string }

func (f *fakeClaimer) Claim(version string) int {
	f.claims = append(f.claims, version)
	return 1
}

type fakeSweeper struct{ ages []time.Duration }

func (f *fakeSweeper) Sweep(maxAge time.Duration) int {
	f.ages = append(f.ages, maxAge)
	return 0
}

func TestInstall_CachesShellAndActivates(t *testing.T) {
	env := newTestEnv(t)
	claimer := &fakeClaimer{}
	sweeper := &fakeSweeper{}
	w := NewWorker(env.engine, []string{"/", "/index.html", OfflinePage, "/js/main.js"}, claimer, sweeper, 24*time.Hour, slog.Default(), metrics.NewForTesting())

	require.NoError(t, w.Install(context.Background()))

	assert.Equal(t, StateActivated, w.State())
	static, _ := env.storage.Open(context.Background(), env.parts.Static)
	keys, _ := static.Keys(context.Background())
	assert.Len(t, keys, 4)
	offline, _ := env.storage.Open(context.Background(), env.parts.Offline)
	keys, _ = offline.Keys(context.Background())
	assert.Len(t, keys, 1)

	assert.Equal(t, []string{"v1"}, claimer.claims)
	assert.Equal(t, []time.Duration{24 * time.Hour}, sweeper.ages)

	// Shell assets are now served without touching the network.
	env.fetcher.down.Store(true)
	rec := env.do(http.MethodGet, "/js/main.js", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestInstall_FailureStoresNothingButStillActivates(t *testing.T) {
	env := newTestEnv(t)
	w := NewWorker(env.engine, []string{"/", "/missing.png"}, nil, nil, 24*time.Hour, slog.Default(), metrics.NewForTesting())

	err := w.Install(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "/missing.png")

	assert.Equal(t, StateActivated, w.State())
	has, _ := env.storage.Has(context.Background(), env.parts.Static)
	assert.False(t, has)
}

func TestActivate_DeletesOnlyStalePartitions(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	for _, name := range []string{"test-static-v0", "legacy-cache", env.parts.Static, env.parts.Queue} {
		_, err := env.storage.Open(ctx, name)
		require.NoError(t, err)
	}
	w := NewWorker(env.engine, nil, nil, nil, 24*time.Hour, slog.Default(), metrics.NewForTesting())

	deleted, err := w.Activate(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"test-static-v0", "legacy-cache"}, deleted)

	names, _ := env.storage.Names(ctx)
	assert.ElementsMatch(t, []string{env.parts.Static, env.parts.Queue}, names)

	again, err := w.Activate(ctx)
	require.NoError(t, err)
	assert.Empty(t, again)
}

func TestHandleMessage(t *testing.T) {
	env := newTestEnv(t)
	w := NewWorker(env.engine, nil, nil, nil, time.Hour, slog.Default(), metrics.NewForTesting())

	// Not waiting yet: skip waiting is a no-op.
	require.NoError(t, w.HandleMessage(context.Background(), ControlMessage{Type: MessageSkipWaiting}))
	assert.Equal(t, StateParsed, w.State())

	w.setState(StateInstalled)
	require.NoError(t, w.HandleMessage(context.Background(), ControlMessage{Type: MessageSkipWaiting}))
	assert.Equal(t, StateActivated, w.State())

	assert.ErrorIs(t, w.HandleMessage(context.Background(), ControlMessage{Type: "PING"}), ErrUnknownMessage)
}

func TestPartitions_Allowlist(t *testing.T) {
	p := NewPartitions("emergency-response", "v1.0")
	assert.Equal(t, "emergency-response-static-v1.0", p.Static)
	assert.Equal(t, []string{
		"emergency-response-static-v1.0",
		"emergency-response-dynamic-v1.0",
		"emergency-response-offline-v1.0",
		"emergency-response-queue-v1.0",
	}, p.Allowlist())
}
