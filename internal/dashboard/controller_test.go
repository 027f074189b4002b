package dashboard_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/fleetconsole/internal/api"
	"github.com/nhle/fleetconsole/internal/dashboard"
	"github.com/nhle/fleetconsole/internal/metrics"
	"github.com/nhle/fleetconsole/internal/model"
	"github.com/nhle/fleetconsole/internal/role"
	"github.com/nhle/fleetconsole/tests/testutil"
)

func newController(fb *testutil.FakeBackend) *dashboard.Controller {
	return dashboard.New(api.NewClient(fb.URL, testutil.TestToken, api.WithMaxRetries(0)))
}

var driver = model.Principal{Name: "Karim", Roles: []string{"Chauffeur"}}

func TestLoadAdminUsesDashboardEndpoint(t *testing.T) {
	fb := testutil.NewFakeBackend(t)
	fb.Set(testutil.RouteDashboard, http.StatusOK, `{"data":{
		"kpis":{"total_camions":12,"delta_camions":"+2%","total_engins":3},
		"recent_activities":[{"type":"incident","description":"Panne"}],
		"fuel_stats":[{"date":"2024-01-01","total":40}]
	}}`)

	view, err := newController(fb).Load(context.Background(), model.Principal{Name: "Ana", Roles: []string{"Admin"}})
	require.NoError(t, err)

	assert.Equal(t, role.Admin, view.Profile.Kind)
	assert.True(t, view.Profile.Permissions.ManageUsers)
	require.Len(t, view.Projection.Stats, 5)
	assert.Equal(t, "12", view.Projection.Stats[0].Value)
	assert.Len(t, view.Projection.Activities, 1)
	assert.Len(t, view.Projection.FuelSeries, 1)
	assert.False(t, view.LoadedAt.IsZero())

	assert.Equal(t, 1, fb.Count(testutil.RouteDashboard))
	assert.Equal(t, 0, fb.Count(testutil.RouteAssignment))
}

func TestLoadFleetFailureReturnsError(t *testing.T) {
	fb := testutil.NewFakeBackend(t)
	fb.Set(testutil.RouteDashboard, http.StatusInternalServerError, `{}`)

	view, err := newController(fb).Load(context.Background(), model.Principal{Roles: []string{"sous-admin"}})
	assert.Error(t, err)
	assert.Nil(t, view)
}

func TestLoadDriverRunsSequentialFetches(t *testing.T) {
	fb := testutil.NewFakeBackend(t)
	fb.Set(testutil.RouteAssignment, http.StatusOK, `{"data":{"camion":{"id":5,"matricule":"AB-123-CD"}}}`)
	fb.Set(testutil.RouteFuel, http.StatusOK, `{"data":[
		{"camion_id":5,"date_consommation":"2024-01-01","quantite":"5"},
		{"camion_id":5,"date_consommation":"2024-01-01 10:00:00","quantite":3},
		{"camion_id":5,"date_consommation":"2024-01-02","quantite":2},
		{"camion_id":9,"date_consommation":"2024-01-02","quantite":50}
	]}`)
	fb.Set(testutil.RouteIncidents, http.StatusOK, `[
		{"id":1,"camion":{"id":5},"statut":"ouvert","created_at":"2024-01-02T08:00:00Z"},
		{"id":2,"camion":{"id":9},"statut":"ouvert"}
	]`)

	view, err := newController(fb).Load(context.Background(), driver)
	require.NoError(t, err)

	p := view.Projection
	assert.Equal(t, role.Driver, view.Profile.Kind)
	assert.False(t, p.Unassigned)
	assert.Equal(t, "AB-123-CD", p.Vehicle)
	require.Len(t, p.FuelSeries, 2)
	assert.Equal(t, "01/01", p.FuelSeries[0].Label)
	assert.Equal(t, 8.0, p.FuelSeries[0].Total)
	assert.Equal(t, "02/01", p.FuelSeries[1].Label)
	assert.Equal(t, 2.0, p.FuelSeries[1].Total)
	assert.Len(t, p.Activities, 1)

	var routes []string
	for _, r := range fb.Requests() {
		routes = append(routes, r.Route)
	}
	assert.Equal(t, []string{testutil.RouteAssignment, testutil.RouteFuel, testutil.RouteIncidents}, routes)
}

func TestLoadDriverWithoutAssignment(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{name: "null", status: http.StatusOK, body: `null`},
		{name: "empty object", status: http.StatusOK, body: `{}`},
		{name: "data null", status: http.StatusOK, body: `{"data":null}`},
		{name: "vehicle without id", status: http.StatusOK, body: `{"camion":{"matricule":"X"}}`},
		{name: "not found", status: http.StatusNotFound, body: `{"message":"Aucune affectation"}`},
		{name: "server error", status: http.StatusInternalServerError, body: ``},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fb := testutil.NewFakeBackend(t)
			fb.Set(testutil.RouteAssignment, tt.status, tt.body)
			fb.Set(testutil.RouteFuel, http.StatusOK, `[]`)
			fb.Set(testutil.RouteIncidents, http.StatusOK, `[]`)

			view, err := newController(fb).Load(context.Background(), driver)
			require.NoError(t, err)

			assert.True(t, view.Projection.Unassigned)
			assert.Empty(t, view.Projection.Stats)
			assert.Equal(t, metrics.Series{}, view.Projection.FuelSeries)
			assert.Equal(t, 0, fb.Count(testutil.RouteFuel), "no fuel fetch")
			assert.Equal(t, 0, fb.Count(testutil.RouteIncidents), "no incident fetch")
		})
	}
}

func TestLoadDriverLaterFailureReturnsError(t *testing.T) {
	fb := testutil.NewFakeBackend(t)
	fb.Set(testutil.RouteAssignment, http.StatusOK, `{"engin":{"id":"E1"}}`)
	fb.Set(testutil.RouteFuel, http.StatusOK, `[]`)
	fb.Set(testutil.RouteIncidents, http.StatusBadGateway, ``)

	view, err := newController(fb).Load(context.Background(), driver)
	assert.Error(t, err)
	assert.Nil(t, view)
	assert.Equal(t, 1, fb.Count(testutil.RouteFuel))
}

func TestLoadAuthErrorPropagates(t *testing.T) {
	fb := testutil.NewFakeBackend(t)
	fb.Set(testutil.RouteDashboard, http.StatusOK, `{}`)

	c := dashboard.New(api.NewClient(fb.URL, "wrong", api.WithMaxRetries(0)))
	_, err := c.Load(context.Background(), model.Principal{Roles: []string{"Admin"}})
	assert.True(t, api.IsAuthError(err))
}

func TestLoadDriverRejectedAssignmentKeepsUnassignedView(t *testing.T) {
	fb := testutil.NewFakeBackend(t)
	fb.Set(testutil.RouteAssignment, http.StatusUnauthorized, `{"message":"Unauthenticated."}`)

	view, err := newController(fb).Load(context.Background(), driver)
	require.Error(t, err)
	assert.True(t, api.IsAuthError(err))

	require.NotNil(t, view)
	assert.True(t, view.Projection.Unassigned)
	assert.Equal(t, 0, fb.Count(testutil.RouteFuel), "no fuel fetch")
	assert.Equal(t, 0, fb.Count(testutil.RouteIncidents), "no incident fetch")
}
