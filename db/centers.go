package db

import (
	"context"
	"fmt"
	"log/slog"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"

	"go-lifeline/datasync"
	"go-lifeline/types"
)

type RescueCenterRepository struct {
	client *firestore.Client
	logger *slog.Logger
}

func NewRescueCenterRepository(client *firestore.Client, logger *slog.Logger) *RescueCenterRepository {
	return &RescueCenterRepository{client: client, logger: logger}
}

func (r *RescueCenterRepository) col() *firestore.CollectionRef {
	return r.client.Collection(types.CollectionRescueCenters)
}

// SeedIfEmpty writes centers when the collection has no documents yet and
// reports whether it did.
func (r *RescueCenterRepository) SeedIfEmpty(ctx context.Context, centers []types.RescueCenter) (bool, error) {
	iter := r.col().Limit(1).Documents(ctx)
	_, err := iter.Next()
	iter.Stop()
	if err == nil {
		return false, nil
	}
	if err != iterator.Done {
		return false, fmt.Errorf("check rescue centers: %w", err)
	}

	bw := r.client.BulkWriter(ctx)
	jobs := make([]*firestore.BulkWriterJob, 0, len(centers))
	for _, c := range centers {
		job, err := bw.Set(r.col().NewDoc(), seedDoc(c))
		if err != nil {
			r.logger.Warn("enqueue rescue center failed", "name", c.Name, "error", err)
			continue
		}
		jobs = append(jobs, job)
	}
	bw.End()

	for _, job := range jobs {
		if _, err := job.Results(); err != nil {
			return false, fmt.Errorf("seed rescue centers: %w", err)
		}
	}
	r.logger.Info("rescue centers seeded", "count", len(jobs))
	return true, nil
}

func seedDoc(c types.RescueCenter) map[string]any {
	doc := map[string]any{
		"name":      c.Name,
		"type":      string(c.Type),
		"phone":     c.Phone,
		"available": c.Available,
		"createdAt": firestore.ServerTimestamp,
		"updatedAt": firestore.ServerTimestamp,
	}
	if c.Location != nil {
		doc["location"] = map[string]any{
			"latitude":  c.Location.Latitude,
			"longitude": c.Location.Longitude,
			"address":   c.Location.Address,
		}
	}
	if len(c.Resources) > 0 {
		doc["resources"] = c.Resources
	}
	if len(c.EmergencyTypes) > 0 {
		doc["emergencyTypes"] = c.EmergencyTypes
	}
	if c.ResponseTime > 0 {
		doc["responseTime"] = c.ResponseTime
	}
	return doc
}

func (r *RescueCenterRepository) ListAll(ctx context.Context) ([]types.RescueCenter, error) {
	iter := r.col().Documents(ctx)
	defer iter.Stop()

	var out []types.RescueCenter
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("error iterating rescue centers: %w", err)
		}
		out = append(out, datasync.NormalizeCenter(datasync.Document{ID: doc.Ref.ID, Data: doc.Data()}))
	}
	return out, nil
}

// DefaultCenters seed an empty deployment with the Lusaka response network.
var DefaultCenters = []types.RescueCenter{
	{
		Name:           "University Teaching Hospital",
		Type:           types.CenterHospital,
		Location:       &types.CenterLocation{Latitude: -15.3955, Longitude: 28.3200, Address: "Nationalist Road, Lusaka, Zambia"},
		Phone:          "+260211256067",
		Resources:      map[string]any{"bedsAvailable": 12, "doctorsOnDuty": 4},
		EmergencyTypes: []string{"medical", "general"},
		Available:      true,
	},
	{
		Name:           "Lusaka Central Police Station",
		Type:           types.CenterPolice,
		Location:       &types.CenterLocation{Latitude: -15.4167, Longitude: 28.2833, Address: "Cairo Road, Lusaka, Zambia"},
		Phone:          "+260211228794",
		Resources:      map[string]any{"officersAvailable": 8, "vehiclesAvailable": 3},
		EmergencyTypes: []string{"police", "general"},
		Available:      true,
	},
	{
		Name:           "Lusaka Fire Station",
		Type:           types.CenterFire,
		Location:       &types.CenterLocation{Latitude: -15.4100, Longitude: 28.2900, Address: "Kabulonga Road, Lusaka, Zambia"},
		Phone:          "+260211228844",
		Resources:      map[string]any{"trucksAvailable": 2, "firefightersOnDuty": 6},
		EmergencyTypes: []string{"fire", "general"},
		Available:      true,
	},
	{
		Name:           "Levy Mwanawasa Hospital",
		Type:           types.CenterHospital,
		Location:       &types.CenterLocation{Latitude: -15.3775, Longitude: 28.3100, Address: "Great East Road, Lusaka, Zambia"},
		Phone:          "+260211253077",
		Resources:      map[string]any{"bedsAvailable": 8, "doctorsOnDuty": 3},
		EmergencyTypes: []string{"medical", "general"},
		Available:      true,
	},
	{
		Name:           "Woodlands Police Station",
		Type:           types.CenterPolice,
		Location:       &types.CenterLocation{Latitude: -15.4000, Longitude: 28.3000, Address: "Woodlands Road, Lusaka, Zambia"},
		Phone:          "+260211254321",
		Resources:      map[string]any{"officersAvailable": 5, "vehiclesAvailable": 2},
		EmergencyTypes: []string{"police", "general"},
		Available:      true,
	},
}
