package types

// Firestore collection names.
const (
	CollectionUsers         = "users"
	CollectionEmergencies   = "emergencies"
	CollectionRescueCenters = "rescueCenters"
)
