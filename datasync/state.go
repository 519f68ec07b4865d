package datasync

import (
	"sort"
	"sync"
	"time"

	"go-lifeline/types"
)

// State is the shared application-state container the controller reconciles
// into. Readers always get copies.
type State struct {
	mu          sync.RWMutex
	incidents   []types.Incident
	centers     []types.RescueCenter
	incidentsAt time.Time
	centersAt   time.Time
}

func NewState() *State { return &State{} }

// SetIncidents replaces the incident set, newest first.
func (s *State) SetIncidents(list []types.Incident, at time.Time) {
	sorted := append([]types.Incident(nil), list...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Timestamp.After(sorted[j].Timestamp) })
	s.mu.Lock()
	s.incidents = sorted
	s.incidentsAt = at
	s.mu.Unlock()
}

func (s *State) Incidents() []types.Incident {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]types.Incident(nil), s.incidents...)
}

// IncidentsByStatus filters the current set. An empty status returns all.
func (s *State) IncidentsByStatus(status types.Status) []types.Incident {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]types.Incident, 0, len(s.incidents))
	for _, inc := range s.incidents {
		if status == "" || inc.Status == status {
			out = append(out, inc)
		}
	}
	return out
}

func (s *State) Incident(id string) (types.Incident, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, inc := range s.incidents {
		if inc.ID == id {
			return inc, true
		}
	}
	return types.Incident{}, false
}

func (s *State) SetCenters(list []types.RescueCenter, at time.Time) {
	cp := append([]types.RescueCenter(nil), list...)
	s.mu.Lock()
	s.centers = cp
	s.centersAt = at
	s.mu.Unlock()
}

func (s *State) Centers() []types.RescueCenter {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]types.RescueCenter(nil), s.centers...)
}

// UpdatedAt returns when each collection was last reconciled.
func (s *State) UpdatedAt() (incidents, centers time.Time) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.incidentsAt, s.centersAt
}
