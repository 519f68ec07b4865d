package db

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"testing"

	"cloud.google.com/go/firestore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-lifeline/geocode"
	"go-lifeline/types"
)

func TestInitRejectsBadCredentials(t *testing.T) {
	_, err := Init(context.Background(), "%%%not-base64", "")
	assert.ErrorContains(t, err, "decode firebase credentials")
}

func TestPrepareIncidentDefaults(t *testing.T) {
	inc := prepareIncident(types.Incident{ID: "client-id"})
	assert.Equal(t, types.Reported, inc.Status)
	assert.Equal(t, types.General, inc.Type)
	assert.Empty(t, inc.ID)
	assert.True(t, inc.CreatedAt.IsZero())
}

func TestUpdatesStampsUpdatedAt(t *testing.T) {
	ups := updates(map[string]any{"responderName": "Unit 7", "updatedAt": "client", "id": "x"})
	require.Len(t, ups, 2)
	assert.Equal(t, "responderName", ups[0].Path)
	assert.Equal(t, "updatedAt", ups[1].Path)
	assert.Equal(t, firestore.ServerTimestamp, ups[1].Value)
}

type stubGeocoder struct {
	forward geocode.Result
	reverse geocode.Result
	err     error
}

func (s stubGeocoder) Forward(context.Context, string) (geocode.Result, error) {
	return s.forward, s.err
}

func (s stubGeocoder) Reverse(context.Context, float64, float64) (geocode.Result, error) {
	return s.reverse, s.err
}

func TestFillLocation(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	r := &IncidentRepository{
		geocoder: stubGeocoder{
			forward: geocode.Result{Lat: -15.4, Lng: 28.3},
			reverse: geocode.Result{FormattedAddress: "Cairo Rd"},
		},
		logger: logger,
	}
	ctx := context.Background()

	inc := types.Incident{Address: "Cairo Road"}
	r.fillLocation(ctx, &inc)
	assert.Equal(t, types.LatLng{Lat: -15.4, Lng: 28.3}, inc.Location)

	inc = types.Incident{Location: types.LatLng{Lat: 1, Lng: 2}}
	r.fillLocation(ctx, &inc)
	assert.Equal(t, "Cairo Rd", inc.Address)

	r.geocoder = stubGeocoder{err: errors.New("quota")}
	inc = types.Incident{Address: "x"}
	r.fillLocation(ctx, &inc)
	assert.Equal(t, types.LatLng{}, inc.Location)
}

func TestSeedDocUsesCanonicalLocation(t *testing.T) {
	doc := seedDoc(DefaultCenters[0])
	loc, ok := doc["location"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, -15.3955, loc["latitude"])
	assert.Equal(t, "hospital", doc["type"])
	assert.Equal(t, firestore.ServerTimestamp, doc["createdAt"])
}

// The remaining tests need the Firestore emulator.
func newEmulatorClient(t *testing.T) *firestore.Client {
	t.Helper()
	if os.Getenv("FIRESTORE_EMULATOR_HOST") == "" {
		t.Skip("FIRESTORE_EMULATOR_HOST not set")
	}
	client, err := firestore.NewClient(context.Background(), "lifeline-test")
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestSetStatusIsMonotonic(t *testing.T) {
	client := newEmulatorClient(t)
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	repo := NewIncidentRepository(client, nil, logger)

	id, err := repo.Create(ctx, types.Incident{Type: types.Fire, Location: types.LatLng{Lat: 1, Lng: 2}})
	require.NoError(t, err)

	require.NoError(t, repo.SetStatus(ctx, id, types.Dispatched, map[string]any{"dispatchedUnit": "F1"}))
	require.NoError(t, repo.SetStatus(ctx, id, types.Dispatched, nil))
	assert.ErrorIs(t, repo.SetStatus(ctx, id, types.Reported, nil), ErrInvalidTransition)
	assert.ErrorIs(t, repo.SetStatus(ctx, "missing", types.Resolved, nil), ErrNotFound)

	got, err := repo.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, types.Dispatched, got.Status)
	assert.Equal(t, "F1", got.DispatchedUnit)
	assert.False(t, got.CreatedAt.IsZero())
}

func TestSeedIfEmpty(t *testing.T) {
	client := newEmulatorClient(t)
	ctx := context.Background()
	repo := NewRescueCenterRepository(client, slog.New(slog.NewTextHandler(io.Discard, nil)))

	seeded, err := repo.SeedIfEmpty(ctx, DefaultCenters)
	require.NoError(t, err)
	again, err := repo.SeedIfEmpty(ctx, DefaultCenters)
	require.NoError(t, err)
	assert.False(t, again)

	if seeded {
		all, err := repo.ListAll(ctx)
		require.NoError(t, err)
		assert.Len(t, all, len(DefaultCenters))
	}
}
