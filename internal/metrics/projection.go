package metrics

import (
	"sort"
	"strings"

	"github.com/nhle/fleetconsole/internal/model"
	"github.com/nhle/fleetconsole/internal/role"
)

// ActivityLimit caps every activity feed.
const ActivityLimit = 5

// Display fallbacks for fields the backend did not send.
const (
	DefaultValue  = "0"
	DefaultChange = "+0%"
	NotAvailable  = "N/A"
)

// Trend is the direction of a stat's change indicator.
type Trend string

const (
	TrendUp   Trend = "up"
	TrendDown Trend = "down"
)

// Stat is one stat card.
type Stat struct {
	Label  string
	Value  string
	Change string
	Trend  Trend
}

// Projection is everything a dashboard renders.
type Projection struct {
	Profile    role.Kind
	Stats      []Stat
	Activities []model.Activity
	FuelSeries Series

	// Unassigned marks a driver without an active vehicle. Stats and series
	// are empty in that state.
	Unassigned bool

	// Vehicle is the assigned vehicle's label on the driver view.
	Vehicle string
}

type statDef struct {
	label    string
	valueKey string
	deltaKey string
}

var fleetStats = []statDef{
	{label: "Trucks", valueKey: "total_camions", deltaKey: "delta_camions"},
	{label: "Machines", valueKey: "total_engins", deltaKey: "delta_engins"},
	{label: "Drivers", valueKey: "total_chauffeurs", deltaKey: "delta_chauffeurs"},
	{label: "Open incidents", valueKey: "incidents_ouverts", deltaKey: "delta_incidents"},
}

var statSets = map[role.Kind][]statDef{
	role.Admin: append(append([]statDef{}, fleetStats...),
		statDef{label: "Users", valueKey: "total_utilisateurs", deltaKey: "delta_utilisateurs"},
	),
	role.SubAdmin: fleetStats,
	role.FuelManager: {
		{label: "Fuel consumed (L)", valueKey: "consommation_totale", deltaKey: "delta_consommation"},
		{label: "Fuel reports", valueKey: "rapports_carburant", deltaKey: "delta_rapports"},
		{label: "Trucks", valueKey: "total_camions", deltaKey: "delta_camions"},
		{label: "Machines", valueKey: "total_engins", deltaKey: "delta_engins"},
	},
}

// Project turns a /dashboard payload into stat cards, a capped activity feed
// and the daily fuel series for the Admin, SubAdmin and FuelManager views.
// A nil or partial payload yields fallbacks, never an error. The Driver view
// is built from per-vehicle records by ProjectDriver; passing a Driver
// profile here yields the unassigned state.
func Project(profile role.ViewProfile, payload *model.DashboardPayload) Projection {
	if profile.Kind == role.Driver {
		return Projection{Profile: role.Driver, Unassigned: true, FuelSeries: Series{}}
	}
	if payload == nil {
		payload = &model.DashboardPayload{}
	}

	defs, ok := statSets[profile.Kind]
	if !ok {
		defs = statSets[role.Admin]
	}

	stats := make([]Stat, 0, len(defs))
	for _, def := range defs {
		stats = append(stats, projectStat(payload.KPIs, def))
	}

	activities := payload.RecentActivities
	if profile.Kind == role.FuelManager {
		activities = filterActivities(activities, isFuelActivity)
	}

	return Projection{
		Profile:    profile.Kind,
		Stats:      stats,
		Activities: capActivities(activities),
		FuelSeries: Aggregate(
			payload.FuelStats,
			func(f model.FuelStat) string { return f.Date },
			func(f model.FuelStat) (float64, bool) { return f.Total.Value, f.Total.Valid },
			Options{},
		),
	}
}

func projectStat(kpis model.KPIs, def statDef) Stat {
	value := DefaultValue
	if v, ok := kpis.Number(def.valueKey); ok {
		value = model.FormatNumber(v)
	}
	change, trend := ChangeIndicator(kpis, def.deltaKey)
	return Stat{Label: def.label, Value: value, Change: change, Trend: trend}
}

// ChangeIndicator reads a server delta. A "-" prefix means down; anything
// else, including an absent delta shown as "+0%", means up.
func ChangeIndicator(kpis model.KPIs, key string) (string, Trend) {
	change, ok := kpis.Text(key)
	if !ok {
		return DefaultChange, TrendUp
	}
	if strings.HasPrefix(change, "-") {
		return change, TrendDown
	}
	return change, TrendUp
}

func isFuelActivity(a model.Activity) bool {
	t := strings.ToLower(a.Type)
	return strings.Contains(t, "fuel") ||
		strings.Contains(t, "carburant") ||
		strings.Contains(t, "consommation")
}

func filterActivities(in []model.Activity, keep func(model.Activity) bool) []model.Activity {
	var out []model.Activity
	for _, a := range in {
		if keep(a) {
			out = append(out, a)
		}
	}
	return out
}

func capActivities(in []model.Activity) []model.Activity {
	if len(in) > ActivityLimit {
		in = in[:ActivityLimit]
	}
	return append([]model.Activity{}, in...)
}

// ProjectDriver builds the personal vehicle view. Records are filtered to
// the assigned vehicle before aggregation; without an assignment the
// unassigned state is returned and the records are ignored.
func ProjectDriver(
	assignment *model.Assignment,
	fuel []model.FuelRecord,
	incidents []model.IncidentRecord,
) Projection {
	ref, ok := assignment.Vehicle()
	if !ok {
		return Projection{Profile: role.Driver, Unassigned: true, FuelSeries: Series{}}
	}

	var ownFuel []model.FuelRecord
	for _, f := range fuel {
		if f.BelongsTo(ref) {
			ownFuel = append(ownFuel, f)
		}
	}

	var ownIncidents []model.IncidentRecord
	open := 0
	for _, i := range incidents {
		if !i.BelongsTo(ref) {
			continue
		}
		ownIncidents = append(ownIncidents, i)
		if !i.Status.Resolved() {
			open++
		}
	}

	series := Aggregate(
		ownFuel,
		func(f model.FuelRecord) string { return f.Date },
		func(f model.FuelRecord) (float64, bool) { return f.Quantity.Value, f.Quantity.Valid },
		Options{Window: DriverWindow},
	)

	label := ref.Label()
	if label == "" {
		label = NotAvailable
	}

	return Projection{
		Profile: role.Driver,
		Vehicle: label,
		Stats: []Stat{
			defaultStat("Vehicle", label),
			defaultStat("Fuel, last 7 fill days (L)", model.FormatNumber(series.Sum())),
			defaultStat("Fuel fills", model.FormatNumber(float64(len(ownFuel)))),
			defaultStat("Open incidents", model.FormatNumber(float64(open))),
		},
		Activities: incidentActivities(ownIncidents),
		FuelSeries: series,
	}
}

// defaultStat is a stat without a server delta.
func defaultStat(label, value string) Stat {
	return Stat{Label: label, Value: value, Change: DefaultChange, Trend: TrendUp}
}

// incidentActivities lists the most recent incidents first.
func incidentActivities(incidents []model.IncidentRecord) []model.Activity {
	sorted := append([]model.IncidentRecord{}, incidents...)
	sort.SliceStable(sorted, func(i, j int) bool {
		ti, okI := model.ParseTimestamp(sorted[i].CreatedAt)
		tj, okJ := model.ParseTimestamp(sorted[j].CreatedAt)
		if okI != okJ {
			return okI
		}
		return ti.After(tj)
	})

	activities := make([]model.Activity, 0, len(sorted))
	for _, i := range sorted {
		desc := i.Description
		if desc == "" {
			desc = "Incident #" + i.ID.String()
		}
		activities = append(activities, model.Activity{
			Type:        "incident",
			Description: desc,
			CreatedAt:   i.CreatedAt,
		})
	}
	return capActivities(activities)
}
