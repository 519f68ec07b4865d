package types

import "time"

type UserType string

const (
	ReporterUser  UserType = "reporter"
	ResponderUser UserType = "responder"
	GuestUser     UserType = "guest"
)

type User struct {
	ID           string   `json:"id" firestore:"-"`
	Type         UserType `json:"type" firestore:"type"`
	Name         string   `json:"name,omitempty" firestore:"name,omitempty"`
	Phone        string   `json:"phone,omitempty" firestore:"phone,omitempty"`
	Email        string   `json:"email,omitempty" firestore:"email,omitempty"`
	Organization string   `json:"organization,omitempty" firestore:"organization,omitempty"`
}

// Session is the persisted {user, timestamp} record. Timestamp is epoch millis.
type Session struct {
	User      User  `json:"user"`
	Timestamp int64 `json:"timestamp"`
}

// Valid reports whether the session is still inside its validity window.
func (s Session) Valid(now time.Time, ttl time.Duration) bool {
	if s.Timestamp == 0 {
		return false
	}
	started := time.UnixMilli(s.Timestamp)
	return now.Sub(started) < ttl
}
