// Package dashboard loads the role-appropriate data for one dashboard visit
// and turns it into a render-ready view.
package dashboard

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/nhle/fleetconsole/internal/api"
	"github.com/nhle/fleetconsole/internal/metrics"
	"github.com/nhle/fleetconsole/internal/model"
	"github.com/nhle/fleetconsole/internal/role"
)

// Backend is the subset of the API client the controller reads from.
type Backend interface {
	Dashboard(ctx context.Context) (*model.DashboardPayload, error)
	MyAssignment(ctx context.Context) (*model.Assignment, error)
	FuelRecords(ctx context.Context) ([]model.FuelRecord, error)
	Incidents(ctx context.Context) ([]model.IncidentRecord, error)
}

// View is one loaded dashboard.
type View struct {
	Principal  model.Principal
	Profile    role.ViewProfile
	Projection metrics.Projection
	LoadedAt   time.Time
}

// Controller loads dashboards. It holds no state between loads.
type Controller struct {
	backend Backend
	now     func() time.Time
	log     *logrus.Entry
}

// New creates a controller backed by b.
func New(b Backend) *Controller {
	return &Controller{
		backend: b,
		now:     time.Now,
		log:     logrus.WithField("component", "dashboard"),
	}
}

// Load resolves the principal's profile, fetches its data and projects it.
// On error the returned view is nil and the caller keeps what it had, except
// for a driver whose assignment lookup was rejected: the unassigned view is
// returned together with the auth error.
func (c *Controller) Load(ctx context.Context, p model.Principal) (*View, error) {
	profile := role.Resolve(p.Roles)
	log := c.log.WithFields(logrus.Fields{
		"principal": p.Name,
		"profile":   profile.Kind,
	})
	if profile.Defaulted {
		log.WithField("roles", p.Roles).Info("no known role, using admin view")
	}

	var (
		proj metrics.Projection
		err  error
	)
	if profile.Kind == role.Driver {
		proj, err = c.loadDriver(ctx, log)
	} else {
		proj, err = c.loadFleet(ctx, profile, log)
	}
	if err != nil && !proj.Unassigned {
		return nil, err
	}

	return &View{
		Principal:  p,
		Profile:    profile,
		Projection: proj,
		LoadedAt:   c.now(),
	}, err
}

func (c *Controller) loadFleet(ctx context.Context, profile role.ViewProfile, log *logrus.Entry) (metrics.Projection, error) {
	payload, err := c.backend.Dashboard(ctx)
	if err != nil {
		log.WithFields(logrus.Fields{"op": "dashboard", "error": err}).Warn("dashboard fetch failed")
		return metrics.Projection{}, fmt.Errorf("loading dashboard: %w", err)
	}
	return metrics.Project(profile, payload), nil
}

// loadDriver runs the three dependent fetches in order. The assignment step
// short-circuits: if it fails or names no vehicle, fuel and incidents are
// never requested.
func (c *Controller) loadDriver(ctx context.Context, log *logrus.Entry) (metrics.Projection, error) {
	unassigned := metrics.ProjectDriver(nil, nil, nil)

	assignment, err := c.backend.MyAssignment(ctx)
	if err != nil {
		log.WithFields(logrus.Fields{"op": "assignment", "error": err}).Warn("assignment fetch failed, showing unassigned")
		if api.IsAuthError(err) {
			return unassigned, fmt.Errorf("loading assignment: %w", err)
		}
		return unassigned, nil
	}
	ref, ok := assignment.Vehicle()
	if !ok {
		log.Debug("no active assignment")
		return unassigned, nil
	}
	log = log.WithFields(logrus.Fields{"vehicle_kind": ref.Kind, "vehicle_id": ref.ID})

	fuel, err := c.backend.FuelRecords(ctx)
	if err != nil {
		log.WithFields(logrus.Fields{"op": "fuel", "error": err}).Warn("fuel fetch failed")
		return metrics.Projection{}, fmt.Errorf("loading fuel records: %w", err)
	}

	incidents, err := c.backend.Incidents(ctx)
	if err != nil {
		log.WithFields(logrus.Fields{"op": "incidents", "error": err}).Warn("incident fetch failed")
		return metrics.Projection{}, fmt.Errorf("loading incidents: %w", err)
	}

	return metrics.ProjectDriver(assignment, fuel, incidents), nil
}
