// Package proximity ranks rescue centers by great-circle distance from a
// reporter's position.
package proximity

import (
	"math"
	"sort"

	"go-lifeline/types"
)

const earthRadiusKM = 6371.0

// Ranked is a rescue center annotated with its distance from the origin.
type Ranked struct {
	types.RescueCenter
	DistanceKM float64 `json:"distance"`
	// Relevant is false when the center does not handle the requested
	// emergency type.
	Relevant bool `json:"isRelevant"`
}

// Distance returns the haversine distance between two points in kilometres.
func Distance(a, b types.LatLng) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := lat2 - lat1
	dLng := (b.Lng - a.Lng) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*
			math.Sin(dLng/2)*math.Sin(dLng/2)
	return earthRadiusKM * 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// Rank orders centers nearest first. Centers without a location are left out.
// An empty emergencyType marks every center relevant.
func Rank(origin types.LatLng, centers []types.RescueCenter, emergencyType string) []Ranked {
	out := make([]Ranked, 0, len(centers))
	for _, c := range centers {
		if c.Location == nil {
			continue
		}
		pos := types.LatLng{Lat: c.Location.Latitude, Lng: c.Location.Longitude}
		out = append(out, Ranked{
			RescueCenter: c,
			DistanceKM:   Distance(origin, pos),
			Relevant:     handles(c, emergencyType),
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].DistanceKM < out[j].DistanceKM })
	return out
}

// Recommend picks the closest relevant center from a ranked list.
func Recommend(ranked []Ranked) (Ranked, bool) {
	for _, r := range ranked {
		if r.Relevant {
			return r, true
		}
	}
	return Ranked{}, false
}

func handles(c types.RescueCenter, emergencyType string) bool {
	if emergencyType == "" {
		return true
	}
	for _, t := range c.EmergencyTypes {
		if t == emergencyType {
			return true
		}
	}
	return false
}
