package types

import "time"

type IncidentType string

const (
	Medical IncidentType = "medical"
	Fire    IncidentType = "fire"
	Police  IncidentType = "police"
	General IncidentType = "general"
)

type Severity string

const (
	Critical Severity = "critical"
	Serious  Severity = "serious"
	Moderate Severity = "moderate"
	Minor    Severity = "minor"
)

// Status is the lifecycle stage of an incident. Stages only ever move forward:
// reported -> dispatched -> responded -> resolved.
type Status string

const (
	Reported   Status = "reported"
	Dispatched Status = "dispatched"
	Responded  Status = "responded"
	Resolved   Status = "resolved"
)

var statusRank = map[Status]int{
	Reported:   0,
	Dispatched: 1,
	Responded:  2,
	Resolved:   3,
}

// Rank returns the position of s in the lifecycle, or -1 for statuses the app
// does not know about (they are passed through from the backend untouched).
func (s Status) Rank() int {
	r, ok := statusRank[s]
	if !ok {
		return -1
	}
	return r
}

func (s Status) Known() bool { return s.Rank() >= 0 }

// CanAdvanceTo reports whether moving from s to next keeps the lifecycle
// monotonic. Writing the same status again is allowed and treated as a no-op.
func (s Status) CanAdvanceTo(next Status) bool {
	if !next.Known() {
		return false
	}
	if !s.Known() {
		return true
	}
	return next.Rank() >= s.Rank()
}

// LatLng is the canonical incident coordinate.
type LatLng struct {
	Lat float64 `json:"lat" firestore:"lat"`
	Lng float64 `json:"lng" firestore:"lng"`
}

type Reporter struct {
	Name       string `json:"name,omitempty" firestore:"name,omitempty"`
	Phone      string `json:"phone,omitempty" firestore:"phone,omitempty"`
	CanContact bool   `json:"canContact" firestore:"canContact"`
	UserID     string `json:"userId,omitempty" firestore:"userId,omitempty"`
}

// Incident is the canonical in-memory shape of an emergency report, independent
// of the field naming the backend used for a given document. Timestamp is
// derived on read from createdAt or a literal timestamp field.
type Incident struct {
	ID             string       `json:"id" firestore:"-"`
	Type           IncidentType `json:"type" firestore:"type"`
	Severity       Severity     `json:"severity" firestore:"severity"`
	Status         Status       `json:"status" firestore:"status"`
	Description    string       `json:"description,omitempty" firestore:"description,omitempty"`
	AffectedPeople string       `json:"affectedPeople,omitempty" firestore:"affectedPeople,omitempty"`
	Location       LatLng       `json:"location" firestore:"location"`
	Address        string       `json:"address,omitempty" firestore:"address,omitempty"`
	Reporter       Reporter     `json:"reporter" firestore:"reporter"`
	Images         []string     `json:"images,omitempty" firestore:"images,omitempty"`
	Timestamp      time.Time    `json:"timestamp" firestore:"-"`
	DispatchedUnit string       `json:"dispatchedUnit,omitempty" firestore:"dispatchedUnit,omitempty"`
	ResponderName  string       `json:"responderName,omitempty" firestore:"responderName,omitempty"`
	ResponderID    string       `json:"responderId,omitempty" firestore:"responderId,omitempty"`
	ResponderNotes string       `json:"responderNotes,omitempty" firestore:"responderNotes,omitempty"`
	CreatedAt      time.Time    `json:"createdAt" firestore:"createdAt,serverTimestamp"`
	UpdatedAt      time.Time    `json:"updatedAt" firestore:"updatedAt,serverTimestamp"`

	// Extra keeps every raw field the canonical shape does not name.
	Extra map[string]any `json:"extra,omitempty" firestore:"-"`
}
