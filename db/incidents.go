package db

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"go-lifeline/datasync"
	"go-lifeline/geocode"
	"go-lifeline/types"
)

// ActiveStatuses are the statuses OnActive watches.
var ActiveStatuses = []types.Status{types.Reported, types.Dispatched, types.Responded}

type IncidentRepository struct {
	client   *firestore.Client
	geocoder geocode.Geocoder
	logger   *slog.Logger
}

// NewIncidentRepository creates the emergencies repository. geocoder may be
// nil, in which case Create stores what it is given.
func NewIncidentRepository(client *firestore.Client, g geocode.Geocoder, logger *slog.Logger) *IncidentRepository {
	return &IncidentRepository{client: client, geocoder: g, logger: logger}
}

func (r *IncidentRepository) col() *firestore.CollectionRef {
	return r.client.Collection(types.CollectionEmergencies)
}

// Create stores a new incident and returns its id. Status defaults to
// reported; createdAt and updatedAt are set by the server. A missing location
// or address is filled through the geocoder when one is configured.
func (r *IncidentRepository) Create(ctx context.Context, inc types.Incident) (string, error) {
	inc = prepareIncident(inc)
	r.fillLocation(ctx, &inc)

	ref := r.col().NewDoc()
	if _, err := ref.Create(ctx, inc); err != nil {
		return "", fmt.Errorf("create incident: %w", err)
	}
	r.logger.Info("incident created", "id", ref.ID, "type", inc.Type, "severity", inc.Severity)
	return ref.ID, nil
}

func prepareIncident(inc types.Incident) types.Incident {
	if inc.Status == "" {
		inc.Status = types.Reported
	}
	if inc.Type == "" {
		inc.Type = types.General
	}
	inc.ID = ""
	inc.CreatedAt = time.Time{}
	inc.UpdatedAt = time.Time{}
	return inc
}

func (r *IncidentRepository) fillLocation(ctx context.Context, inc *types.Incident) {
	if r.geocoder == nil {
		return
	}
	hasCoords := inc.Location != (types.LatLng{})
	switch {
	case !hasCoords && inc.Address != "":
		res, err := r.geocoder.Forward(ctx, inc.Address)
		if err != nil {
			r.logger.Warn("forward geocode failed", "address", inc.Address, "error", err)
			return
		}
		inc.Location = types.LatLng{Lat: res.Lat, Lng: res.Lng}
	case hasCoords && inc.Address == "":
		res, err := r.geocoder.Reverse(ctx, inc.Location.Lat, inc.Location.Lng)
		if err != nil {
			r.logger.Warn("reverse geocode failed", "lat", inc.Location.Lat, "lng", inc.Location.Lng, "error", err)
			return
		}
		inc.Address = res.FormattedAddress
	}
}

// Update merges fields into an incident. Status changes go through SetStatus.
func (r *IncidentRepository) Update(ctx context.Context, id string, fields map[string]any) error {
	if _, ok := fields["status"]; ok {
		return fmt.Errorf("update incident %s: use SetStatus to change status", id)
	}
	_, err := r.col().Doc(id).Update(ctx, updates(fields))
	if status.Code(err) == codes.NotFound {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("update incident %s: %w", id, err)
	}
	return nil
}

// SetStatus advances an incident's status inside a transaction. Moving to the
// current status is a no-op; moving backwards returns ErrInvalidTransition.
func (r *IncidentRepository) SetStatus(ctx context.Context, id string, next types.Status, extra map[string]any) error {
	if !next.Known() {
		return fmt.Errorf("set status %s: unknown status %q", id, next)
	}
	ref := r.col().Doc(id)
	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if status.Code(err) == codes.NotFound {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		raw, _ := snap.DataAt("status")
		cur := datasync.NormalizeStatus(fmt.Sprint(orEmpty(raw)))
		if !cur.CanAdvanceTo(next) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, cur, next)
		}
		if cur == next && len(extra) == 0 {
			return nil
		}
		fields := make(map[string]any, len(extra)+1)
		for k, v := range extra {
			fields[k] = v
		}
		fields["status"] = string(next)
		return tx.Update(ref, updates(fields))
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) || errors.Is(err, ErrInvalidTransition) {
			return err
		}
		return fmt.Errorf("set status %s: %w", id, err)
	}
	r.logger.Info("incident status set", "id", id, "status", next)
	return nil
}

func (r *IncidentRepository) GetByID(ctx context.Context, id string) (types.Incident, error) {
	snap, err := r.col().Doc(id).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return types.Incident{}, ErrNotFound
	}
	if err != nil {
		return types.Incident{}, fmt.Errorf("get incident %s: %w", id, err)
	}
	return datasync.NormalizeIncident(datasync.Document{ID: snap.Ref.ID, Data: snap.Data()}, time.Now()), nil
}

func (r *IncidentRepository) ListByStatus(ctx context.Context, s types.Status) ([]types.Incident, error) {
	iter := r.col().Where("status", "==", string(s)).Documents(ctx)
	defer iter.Stop()

	var out []types.Incident
	now := time.Now()
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("error iterating emergencies: %w", err)
		}
		out = append(out, datasync.NormalizeIncident(datasync.Document{ID: doc.Ref.ID, Data: doc.Data()}, now))
	}
	return out, nil
}

// OnActive streams active incidents, newest first.
func (r *IncidentRepository) OnActive(ctx context.Context) datasync.Stream {
	statuses := make([]string, 0, len(ActiveStatuses))
	for _, s := range ActiveStatuses {
		statuses = append(statuses, string(s))
	}
	q := r.col().Where("status", "in", statuses).OrderBy("createdAt", firestore.Desc)
	return datasync.NewFirestoreStream(q.Snapshots(ctx))
}

// updates turns a field map into Firestore updates and stamps updatedAt.
func updates(fields map[string]any) []firestore.Update {
	out := make([]firestore.Update, 0, len(fields)+1)
	for k, v := range fields {
		if k == "updatedAt" || k == "createdAt" || k == "id" {
			continue
		}
		out = append(out, firestore.Update{Path: k, Value: v})
	}
	out = append(out, firestore.Update{Path: "updatedAt", Value: firestore.ServerTimestamp})
	return out
}

func orEmpty(v any) any {
	if v == nil {
		return ""
	}
	return v
}
