package datasync

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genproto/googleapis/type/latlng"

	"go-lifeline/types"
)

// DefaultLocation is used when an incident carries no usable coordinates.
var DefaultLocation = types.LatLng{Lat: -15.3875, Lng: 28.3228}

// LocationStrategy extracts a coordinate from one known document shape.
type LocationStrategy func(raw map[string]any) (types.LatLng, bool)

// LocationStrategies are tried in order; the first match wins.
var LocationStrategies = []LocationStrategy{
	NestedLatLng,
	NestedLatitudeLongitude,
	RootLatitudeLongitude,
	NestedGeoPoint,
}

// NestedLatLng reads location.lat / location.lng.
func NestedLatLng(raw map[string]any) (types.LatLng, bool) {
	return pair(nested(raw, "location"), "lat", "lng")
}

// NestedLatitudeLongitude reads location.latitude / location.longitude.
func NestedLatitudeLongitude(raw map[string]any) (types.LatLng, bool) {
	return pair(nested(raw, "location"), "latitude", "longitude")
}

// RootLatitudeLongitude reads latitude / longitude from the document root.
func RootLatitudeLongitude(raw map[string]any) (types.LatLng, bool) {
	return pair(raw, "latitude", "longitude")
}

// NestedGeoPoint reads a Firestore GeoPoint stored at location.
func NestedGeoPoint(raw map[string]any) (types.LatLng, bool) {
	switch g := raw["location"].(type) {
	case *latlng.LatLng:
		if g == nil {
			return types.LatLng{}, false
		}
		return types.LatLng{Lat: g.GetLatitude(), Lng: g.GetLongitude()}, true
	}
	return types.LatLng{}, false
}

// ResolveLocation applies LocationStrategies and falls back to DefaultLocation.
func ResolveLocation(raw map[string]any) types.LatLng {
	for _, s := range LocationStrategies {
		if loc, ok := s(raw); ok {
			return loc
		}
	}
	return DefaultLocation
}

var statusAliases = map[string]types.Status{
	"pending":    types.Reported,
	"responding": types.Responded,
}

// NormalizeStatus lower-cases s and maps it through the alias table. Values
// the app does not know are passed through unchanged.
func NormalizeStatus(s string) types.Status {
	v := strings.ToLower(strings.TrimSpace(s))
	if v == "" {
		return types.Reported
	}
	if alias, ok := statusAliases[v]; ok {
		return alias
	}
	if st := types.Status(v); st.Known() {
		return st
	}
	return types.Status(s)
}

// ResolveTimestamp prefers the server createdAt, then a literal timestamp
// field, then now.
func ResolveTimestamp(raw map[string]any, now time.Time) time.Time {
	if t, ok := asTime(raw["createdAt"]); ok {
		return t
	}
	if t, ok := asTime(raw["timestamp"]); ok {
		return t
	}
	return now
}

var incidentFields = map[string]bool{
	"id": true, "type": true, "severity": true, "status": true,
	"description": true, "affectedPeople": true, "location": true,
	"address": true, "reporter": true, "images": true, "timestamp": true,
	"createdAt": true, "updatedAt": true, "dispatchedUnit": true,
	"responderName": true, "responderId": true, "responderNotes": true,
	"latitude": true, "longitude": true,
}

// NormalizeIncident maps a raw emergencies document to the canonical shape.
func NormalizeIncident(doc Document, now time.Time) types.Incident {
	raw := doc.Data
	if raw == nil {
		raw = map[string]any{}
	}
	inc := types.Incident{
		ID:             doc.ID,
		Type:           types.IncidentType(str(raw["type"])),
		Severity:       types.Severity(str(raw["severity"])),
		Status:         NormalizeStatus(str(raw["status"])),
		Description:    str(raw["description"]),
		AffectedPeople: str(raw["affectedPeople"]),
		Location:       ResolveLocation(raw),
		Address:        str(raw["address"]),
		Reporter:       reporter(nested(raw, "reporter")),
		Images:         strs(raw["images"]),
		Timestamp:      ResolveTimestamp(raw, now),
		DispatchedUnit: str(raw["dispatchedUnit"]),
		ResponderName:  str(raw["responderName"]),
		ResponderID:    str(raw["responderId"]),
		ResponderNotes: str(raw["responderNotes"]),
	}
	if inc.Address == "" {
		inc.Address = str(nested(raw, "location")["address"])
	}
	if t, ok := asTime(raw["createdAt"]); ok {
		inc.CreatedAt = t
	}
	if t, ok := asTime(raw["updatedAt"]); ok {
		inc.UpdatedAt = t
	}
	for k, v := range raw {
		if incidentFields[k] {
			continue
		}
		if inc.Extra == nil {
			inc.Extra = make(map[string]any)
		}
		inc.Extra[k] = v
	}
	return inc
}

// NormalizeCenter maps a raw rescueCenters document. Location is nil when the
// document has no usable coordinates.
func NormalizeCenter(doc Document) types.RescueCenter {
	raw := doc.Data
	if raw == nil {
		raw = map[string]any{}
	}
	c := types.RescueCenter{
		ID:             doc.ID,
		Name:           str(raw["name"]),
		Type:           types.CenterType(str(raw["type"])),
		Phone:          str(raw["phone"]),
		EmergencyTypes: strs(raw["emergencyTypes"]),
	}
	if res, ok := raw["resources"].(map[string]any); ok {
		c.Resources = make(map[string]any, len(res))
		for k, v := range res {
			c.Resources[k] = v
		}
	}
	if v, ok := raw["available"].(bool); ok {
		c.Available = v
	}
	if n, ok := number(raw["responseTime"]); ok {
		c.ResponseTime = int(n)
	}

	loc := nested(raw, "location")
	address := str(loc["address"])
	if address == "" {
		address = str(raw["address"])
	}
	if ll, ok := pair(loc, "latitude", "longitude"); ok {
		c.Location = &types.CenterLocation{Latitude: ll.Lat, Longitude: ll.Lng, Address: address}
	} else if ll, ok := pair(loc, "lat", "lng"); ok {
		c.Location = &types.CenterLocation{Latitude: ll.Lat, Longitude: ll.Lng, Address: address}
	} else if ll, ok := NestedGeoPoint(raw); ok {
		c.Location = &types.CenterLocation{Latitude: ll.Lat, Longitude: ll.Lng}
	}
	return c
}

func nested(raw map[string]any, key string) map[string]any {
	m, _ := raw[key].(map[string]any)
	return m
}

func pair(m map[string]any, latKey, lngKey string) (types.LatLng, bool) {
	if m == nil {
		return types.LatLng{}, false
	}
	lat, ok1 := number(m[latKey])
	lng, ok2 := number(m[lngKey])
	if !ok1 || !ok2 {
		return types.LatLng{}, false
	}
	return types.LatLng{Lat: lat, Lng: lng}, true
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

func str(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case fmt.Stringer:
		return s.String()
	}
	if n, ok := number(v); ok {
		return fmt.Sprint(n)
	}
	return fmt.Sprint(v)
}

func strs(v any) []string {
	switch list := v.(type) {
	case []string:
		return append([]string(nil), list...)
	case []any:
		out := make([]string, 0, len(list))
		for _, item := range list {
			if s := str(item); s != "" {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func reporter(m map[string]any) types.Reporter {
	if m == nil {
		return types.Reporter{}
	}
	r := types.Reporter{
		Name:   str(m["name"]),
		Phone:  str(m["phone"]),
		UserID: str(m["userId"]),
	}
	r.CanContact, _ = m["canContact"].(bool)
	return r
}

func asTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		if t.IsZero() {
			return time.Time{}, false
		}
		return t, true
	case *time.Time:
		if t == nil || t.IsZero() {
			return time.Time{}, false
		}
		return *t, true
	case string:
		if parsed, err := time.Parse(time.RFC3339, t); err == nil {
			return parsed, true
		}
		return time.Time{}, false
	case map[string]any:
		// JSON-encoded server timestamps.
		for _, k := range []string{"seconds", "_seconds"} {
			if secs, ok := number(t[k]); ok {
				nanos, _ := number(t["nanoseconds"])
				if nanos == 0 {
					nanos, _ = number(t["_nanoseconds"])
				}
				return time.Unix(int64(secs), int64(nanos)).UTC(), true
			}
		}
		return time.Time{}, false
	}
	if ms, ok := number(v); ok && ms > 0 {
		return time.UnixMilli(int64(ms)).UTC(), true
	}
	return time.Time{}, false
}
