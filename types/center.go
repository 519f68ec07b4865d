package types

type CenterType string

const (
	CenterHospital CenterType = "hospital"
	CenterPolice   CenterType = "police"
	CenterFire     CenterType = "fire"
	CenterSecurity CenterType = "security"
)

// CenterLocation keeps the latitude/longitude naming rescue centers use.
type CenterLocation struct {
	Latitude  float64 `json:"latitude" firestore:"latitude"`
	Longitude float64 `json:"longitude" firestore:"longitude"`
	Address   string  `json:"address" firestore:"address"`
}

type RescueCenter struct {
	ID             string          `json:"id" firestore:"-"`
	Name           string          `json:"name" firestore:"name"`
	Type           CenterType      `json:"type" firestore:"type"`
	Location       *CenterLocation `json:"location" firestore:"location"`
	Phone          string          `json:"phone,omitempty" firestore:"phone,omitempty"`
	Resources      map[string]any  `json:"resources,omitempty" firestore:"resources,omitempty"` // e.g. bedsAvailable: 12
	EmergencyTypes []string        `json:"emergencyTypes,omitempty" firestore:"emergencyTypes,omitempty"`
	Available      bool            `json:"available" firestore:"available"`
	ResponseTime   int             `json:"responseTime,omitempty" firestore:"responseTime,omitempty"` // minutes
}
