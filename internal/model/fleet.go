package model

import (
	"encoding/json"
	"strings"
)

// VehicleKind distinguishes road trucks from site machines.
type VehicleKind string

const (
	VehicleTruck   VehicleKind = "camion"
	VehicleMachine VehicleKind = "engin"
)

// Vehicle is a truck or machine as returned inside assignments and incidents.
type Vehicle struct {
	ID        ID     `json:"id"`
	Matricule string `json:"matricule"`
	Marque    string `json:"marque"`
	Modele    string `json:"modele"`
}

// Label returns the registration plate, or a make/model fallback.
func (v Vehicle) Label() string {
	if v.Matricule != "" {
		return v.Matricule
	}
	return strings.TrimSpace(v.Marque + " " + v.Modele)
}

// VehicleRef identifies one vehicle together with its kind.
type VehicleRef struct {
	Kind VehicleKind
	Vehicle
}

// Assignment is the principal's current vehicle, either a truck or a machine.
type Assignment struct {
	Camion *Vehicle `json:"camion"`
	Engin  *Vehicle `json:"engin"`
}

// Vehicle returns the assigned vehicle. A truck takes precedence when the
// backend reports both.
func (a *Assignment) Vehicle() (VehicleRef, bool) {
	if a == nil {
		return VehicleRef{}, false
	}
	if a.Camion != nil && a.Camion.ID != "" {
		return VehicleRef{Kind: VehicleTruck, Vehicle: *a.Camion}, true
	}
	if a.Engin != nil && a.Engin.ID != "" {
		return VehicleRef{Kind: VehicleMachine, Vehicle: *a.Engin}, true
	}
	return VehicleRef{}, false
}

// FuelRecord is a single fuel fill.
type FuelRecord struct {
	CamionID *ID    `json:"camion_id"`
	EnginID  *ID    `json:"engin_id"`
	Date     string `json:"date_consommation"`
	Quantity Amount `json:"quantite"`
}

// BelongsTo reports whether the fill was recorded against ref.
func (f FuelRecord) BelongsTo(ref VehicleRef) bool {
	switch ref.Kind {
	case VehicleTruck:
		return f.CamionID != nil && *f.CamionID == ref.ID
	case VehicleMachine:
		return f.EnginID != nil && *f.EnginID == ref.ID
	}
	return false
}

// IncidentStatus is the lifecycle state of an incident.
type IncidentStatus string

// resolvedStatuses are the spellings the backend uses for a closed incident.
var resolvedStatuses = map[string]bool{
	"resolved": true,
	"resolu":   true,
	"résolu":   true,
	"closed":   true,
	"clos":     true,
}

// Resolved reports whether the incident no longer needs attention.
func (s IncidentStatus) Resolved() bool {
	return resolvedStatuses[strings.ToLower(strings.TrimSpace(string(s)))]
}

// IncidentRecord is a reported incident on a truck or machine.
type IncidentRecord struct {
	ID          ID             `json:"id"`
	Camion      *Vehicle       `json:"camion"`
	Engin       *Vehicle       `json:"engin"`
	Status      IncidentStatus `json:"statut"`
	Description string         `json:"description"`
	CreatedAt   string         `json:"created_at"`
}

// BelongsTo reports whether the incident concerns ref.
func (i IncidentRecord) BelongsTo(ref VehicleRef) bool {
	switch ref.Kind {
	case VehicleTruck:
		return i.Camion != nil && i.Camion.ID == ref.ID
	case VehicleMachine:
		return i.Engin != nil && i.Engin.ID == ref.ID
	}
	return false
}

// Activity is one entry of a dashboard activity feed.
type Activity struct {
	Type        string `json:"type"`
	Description string `json:"description"`
	CreatedAt   string `json:"created_at"`
}

// UnmarshalJSON falls back to message or title when description is absent.
func (a *Activity) UnmarshalJSON(data []byte) error {
	var wire struct {
		Type        string `json:"type"`
		Description string `json:"description"`
		Message     string `json:"message"`
		Title       string `json:"title"`
		CreatedAt   string `json:"created_at"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	a.Type = wire.Type
	a.CreatedAt = wire.CreatedAt
	switch {
	case wire.Description != "":
		a.Description = wire.Description
	case wire.Message != "":
		a.Description = wire.Message
	default:
		a.Description = wire.Title
	}
	return nil
}

// FuelStat is a dated fuel total from the dashboard payload.
type FuelStat struct {
	Date  string `json:"date"`
	Total Amount `json:"total"`
}

// UnmarshalJSON accepts both {date,total} and {date_consommation,quantite}.
func (f *FuelStat) UnmarshalJSON(data []byte) error {
	var wire struct {
		Date     string `json:"date"`
		DateCons string `json:"date_consommation"`
		Total    Amount `json:"total"`
		Quantite Amount `json:"quantite"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	f.Date = wire.Date
	if f.Date == "" {
		f.Date = wire.DateCons
	}
	f.Total = wire.Total
	if !f.Total.Valid {
		f.Total = wire.Quantite
	}
	return nil
}

// KPIs holds the dashboard key indicators. Values are kept raw so a missing
// or oddly typed field never fails the whole payload.
type KPIs map[string]json.RawMessage

// Number returns the numeric value of key.
func (k KPIs) Number(key string) (float64, bool) {
	raw, ok := k[key]
	if !ok {
		return 0, false
	}
	return parseNumber(raw)
}

// Text returns key as a display string. Numbers are rendered without a
// trailing zero fraction.
func (k KPIs) Text(key string) (string, bool) {
	raw, ok := k[key]
	if !ok {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		s = strings.TrimSpace(s)
		return s, s != ""
	}
	if v, ok := parseNumber(raw); ok {
		return FormatNumber(v), true
	}
	return "", false
}

// DashboardPayload is the body of GET /dashboard.
type DashboardPayload struct {
	KPIs             KPIs       `json:"kpis"`
	RecentActivities []Activity `json:"recent_activities"`
	FuelStats        []FuelStat `json:"fuel_stats"`
}

// Principal is the authenticated operator as described by the session.
type Principal struct {
	Name  string
	Roles []string
}
