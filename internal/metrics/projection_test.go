package metrics

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/fleetconsole/internal/model"
	"github.com/nhle/fleetconsole/internal/role"
)

func decodePayload(t *testing.T, raw string) *model.DashboardPayload {
	t.Helper()
	var p model.DashboardPayload
	require.NoError(t, json.Unmarshal([]byte(raw), &p))
	return &p
}

func statByLabel(t *testing.T, p Projection, label string) Stat {
	t.Helper()
	for _, s := range p.Stats {
		if s.Label == label {
			return s
		}
	}
	t.Fatalf("no stat labelled %q in %+v", label, p.Stats)
	return Stat{}
}

func TestProjectMissingDeltaDefaultsToUp(t *testing.T) {
	payload := decodePayload(t, `{"kpis":{"total_camions":12,"delta_camions":"-5%","total_engins":4}}`)

	p := Project(role.Resolve([]string{"Admin"}), payload)

	machines := statByLabel(t, p, "Machines")
	assert.Equal(t, "4", machines.Value)
	assert.Equal(t, DefaultChange, machines.Change)
	assert.Equal(t, TrendUp, machines.Trend)

	trucks := statByLabel(t, p, "Trucks")
	assert.Equal(t, "12", trucks.Value)
	assert.Equal(t, "-5%", trucks.Change)
	assert.Equal(t, TrendDown, trucks.Trend)
}

func TestProjectDegradesOnEmptyPayload(t *testing.T) {
	for _, payload := range []*model.DashboardPayload{nil, {}, decodePayload(t, `{"kpis":null}`)} {
		p := Project(role.Resolve(nil), payload)

		require.Len(t, p.Stats, 5)
		for _, s := range p.Stats {
			assert.Equal(t, DefaultValue, s.Value, s.Label)
			assert.Equal(t, DefaultChange, s.Change, s.Label)
			assert.Equal(t, TrendUp, s.Trend, s.Label)
		}
		assert.Empty(t, p.Activities)
		assert.Empty(t, p.FuelSeries)
		assert.False(t, p.Unassigned)
	}
}

func TestProjectStatSetsPerProfile(t *testing.T) {
	payload := decodePayload(t, `{"kpis":{"consommation_totale":1234.5,"delta_consommation":"+3%"}}`)

	labels := func(p Projection) []string {
		var out []string
		for _, s := range p.Stats {
			out = append(out, s.Label)
		}
		return out
	}

	assert.Equal(t,
		[]string{"Trucks", "Machines", "Drivers", "Open incidents", "Users"},
		labels(Project(role.Resolve([]string{"Admin"}), payload)),
	)
	assert.Equal(t,
		[]string{"Trucks", "Machines", "Drivers", "Open incidents"},
		labels(Project(role.Resolve([]string{"SubAdmin"}), payload)),
	)

	fuel := Project(role.Resolve([]string{"Gestionnaire carburant"}), payload)
	assert.Equal(t,
		[]string{"Fuel consumed (L)", "Fuel reports", "Trucks", "Machines"},
		labels(fuel),
	)
	consumed := statByLabel(t, fuel, "Fuel consumed (L)")
	assert.Equal(t, "1234.5", consumed.Value)
	assert.Equal(t, "+3%", consumed.Change)
}

func TestProjectCapsActivityFeed(t *testing.T) {
	var acts []string
	for i := 0; i < 8; i++ {
		typ := "incident"
		if i%2 == 0 {
			typ = "consommation_carburant"
		}
		acts = append(acts, fmt.Sprintf(`{"type":%q,"description":"act %d"}`, typ, i))
	}
	payload := decodePayload(t, fmt.Sprintf(`{"recent_activities":[%s]}`, joinJSON(acts)))

	admin := Project(role.Resolve([]string{"Admin"}), payload)
	require.Len(t, admin.Activities, ActivityLimit)
	assert.Equal(t, "act 0", admin.Activities[0].Description)
	assert.Equal(t, "act 4", admin.Activities[4].Description)

	fuel := Project(role.Resolve([]string{"fuel_manager"}), payload)
	require.Len(t, fuel.Activities, 4)
	for _, a := range fuel.Activities {
		assert.Equal(t, "consommation_carburant", a.Type)
	}
}

func TestProjectFuelSeriesFromFuelStats(t *testing.T) {
	payload := decodePayload(t, `{"fuel_stats":[
		{"date":"2024-01-02","total":"10"},
		{"date":"2024-01-01","total":5},
		{"date":"2024-01-01T12:00:00Z","total":3},
		{"date":"2024-01-03","total":null}
	]}`)

	p := Project(role.Resolve([]string{"Admin"}), payload)
	require.Len(t, p.FuelSeries, 3)
	assert.Equal(t, "01/01", p.FuelSeries[0].Label)
	assert.Equal(t, 8.0, p.FuelSeries[0].Total)
	assert.Equal(t, 10.0, p.FuelSeries[1].Total)
	assert.Equal(t, 0.0, p.FuelSeries[2].Total)
}

func TestProjectDriverFiltersToAssignedVehicle(t *testing.T) {
	id := func(s string) *model.ID { v := model.ID(s); return &v }
	assignment := &model.Assignment{Camion: &model.Vehicle{ID: "5", Matricule: "AB-123-CD"}}

	fuel := []model.FuelRecord{
		{CamionID: id("5"), Date: "2024-01-01", Quantity: model.NewAmount(5)},
		{CamionID: id("5"), Date: "2024-01-01", Quantity: model.NewAmount(3)},
		{CamionID: id("5"), Date: "2024-01-02", Quantity: model.NewAmount(2)},
		{CamionID: id("6"), Date: "2024-01-02", Quantity: model.NewAmount(100)},
		{EnginID: id("5"), Date: "2024-01-02", Quantity: model.NewAmount(100)},
	}
	incidents := []model.IncidentRecord{
		{ID: "1", Camion: &model.Vehicle{ID: "5"}, Status: "ouvert", CreatedAt: "2024-01-01T08:00:00Z"},
		{ID: "2", Camion: &model.Vehicle{ID: "5"}, Status: "resolu", CreatedAt: "2024-01-03T08:00:00Z", Description: "Pneu crevé"},
		{ID: "3", Camion: &model.Vehicle{ID: "6"}, Status: "ouvert"},
		{ID: "4", Engin: &model.Vehicle{ID: "5"}, Status: "ouvert"},
	}

	p := ProjectDriver(assignment, fuel, incidents)

	assert.False(t, p.Unassigned)
	assert.Equal(t, role.Driver, p.Profile)
	assert.Equal(t, "AB-123-CD", p.Vehicle)

	require.Len(t, p.FuelSeries, 2)
	assert.Equal(t, Bucket{Key: p.FuelSeries[0].Key, Label: "01/01", Total: 8}, p.FuelSeries[0])
	assert.Equal(t, Bucket{Key: p.FuelSeries[1].Key, Label: "02/01", Total: 2}, p.FuelSeries[1])

	assert.Equal(t, "10", statByLabel(t, p, "Fuel, last 7 fill days (L)").Value)
	assert.Equal(t, "3", statByLabel(t, p, "Fuel fills").Value)
	assert.Equal(t, "1", statByLabel(t, p, "Open incidents").Value)
	for _, s := range p.Stats {
		assert.Equal(t, DefaultChange, s.Change)
		assert.Equal(t, TrendUp, s.Trend)
	}

	require.Len(t, p.Activities, 2)
	assert.Equal(t, "Pneu crevé", p.Activities[0].Description, "most recent first")
	assert.Equal(t, "Incident #1", p.Activities[1].Description)
}

func TestProjectDriverSparseHistoryKeepsSevenFillDays(t *testing.T) {
	id := model.ID("5")
	assignment := &model.Assignment{Camion: &model.Vehicle{ID: "5"}}

	// One fill per week for eight weeks.
	var fuel []model.FuelRecord
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 8; i++ {
		fuel = append(fuel, model.FuelRecord{
			CamionID: &id,
			Date:     start.AddDate(0, 0, 7*i).Format("2006-01-02"),
			Quantity: model.NewAmount(float64(i + 1)),
		})
	}

	p := ProjectDriver(assignment, fuel, nil)

	require.Len(t, p.FuelSeries, DriverWindow)
	assert.Equal(t, "08/01", p.FuelSeries[0].Label, "the oldest fill day drops out, not the oldest calendar day")
	assert.Equal(t, "35", statByLabel(t, p, "Fuel, last 7 fill days (L)").Value)
}

func TestProjectDriverWithoutAssignment(t *testing.T) {
	id := model.ID("5")
	fuel := []model.FuelRecord{{CamionID: &id, Date: "2024-01-01", Quantity: model.NewAmount(5)}}

	for _, a := range []*model.Assignment{nil, {}, {Camion: &model.Vehicle{}}} {
		p := ProjectDriver(a, fuel, nil)
		assert.True(t, p.Unassigned)
		assert.Empty(t, p.Stats)
		assert.Empty(t, p.FuelSeries)
	}
}

func TestProjectWithDriverProfileIsUnassigned(t *testing.T) {
	p := Project(role.Resolve([]string{"Chauffeur"}), &model.DashboardPayload{})
	assert.True(t, p.Unassigned)
}

func joinJSON(parts []string) string {
	out := ""
	for i, p := range parts {
		if i > 0 {
			out += ","
		}
		out += p
	}
	return out
}
