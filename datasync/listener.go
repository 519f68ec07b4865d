package datasync

import "go-lifeline/types"

// Listener receives reconciled state. Controllers work without any listener;
// consumers register only what they render.
type Listener interface {
	OnIncidents(incidents []types.Incident)
	OnCenters(centers []types.RescueCenter)
	OnAlert(alert Alert)
}

// ListenerFuncs adapts plain functions to Listener. Nil fields are skipped.
type ListenerFuncs struct {
	Incidents func([]types.Incident)
	Centers   func([]types.RescueCenter)
	Alert     func(Alert)
}

func (f ListenerFuncs) OnIncidents(list []types.Incident) {
	if f.Incidents != nil {
		f.Incidents(list)
	}
}

func (f ListenerFuncs) OnCenters(list []types.RescueCenter) {
	if f.Centers != nil {
		f.Centers(list)
	}
}

func (f ListenerFuncs) OnAlert(a Alert) {
	if f.Alert != nil {
		f.Alert(a)
	}
}
