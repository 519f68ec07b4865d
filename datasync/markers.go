package datasync

import (
	"sync"

	"go-lifeline/types"
)

type Marker struct {
	CenterID string           `json:"centerId"`
	Name     string           `json:"name"`
	Type     types.CenterType `json:"type"`
	Lat      float64          `json:"lat"`
	Lng      float64          `json:"lng"`
	Color    string           `json:"color"`
}

// MarkerColor is the pin color for a center type.
func MarkerColor(t types.CenterType) string {
	switch t {
	case types.CenterHospital:
		return "red"
	case types.CenterPolice:
		return "blue"
	case types.CenterFire:
		return "orange"
	}
	return "gray"
}

// MarkerLayer is the rescue center map layer. It is always redrawn in full.
type MarkerLayer struct {
	mu      sync.RWMutex
	markers []Marker
	redraws int
}

func NewMarkerLayer() *MarkerLayer { return &MarkerLayer{} }

// Replace clears the layer and draws one marker per center with coordinates.
func (l *MarkerLayer) Replace(centers []types.RescueCenter) int {
	next := make([]Marker, 0, len(centers))
	for _, c := range centers {
		if c.Location == nil {
			continue
		}
		name := c.Name
		if name == "" {
			name = "Rescue Center"
		}
		next = append(next, Marker{
			CenterID: c.ID,
			Name:     name,
			Type:     c.Type,
			Lat:      c.Location.Latitude,
			Lng:      c.Location.Longitude,
			Color:    MarkerColor(c.Type),
		})
	}
	l.mu.Lock()
	l.markers = next
	l.redraws++
	l.mu.Unlock()
	return len(next)
}

func (l *MarkerLayer) Markers() []Marker {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]Marker(nil), l.markers...)
}

// Redraws counts full redraws since creation.
func (l *MarkerLayer) Redraws() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.redraws
}
