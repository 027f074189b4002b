// Package role maps an operator's role labels onto the single dashboard
// variant the console renders for them.
package role

import "strings"

// Kind is the resolved dashboard variant.
type Kind string

const (
	Admin       Kind = "admin"
	SubAdmin    Kind = "sub_admin"
	FuelManager Kind = "fuel_manager"
	Driver      Kind = "driver"
)

// Label returns the human-readable name of the variant.
func (k Kind) Label() string {
	switch k {
	case Admin:
		return "Administrator"
	case SubAdmin:
		return "Sub-administrator"
	case FuelManager:
		return "Fuel manager"
	case Driver:
		return "Driver"
	default:
		return string(k)
	}
}

// Permissions gates the admin-only pages.
type Permissions struct {
	ManageUsers bool
	ManageFleet bool
	ManageFuel  bool
}

// ViewProfile is the outcome of resolving a principal's roles.
type ViewProfile struct {
	Kind        Kind
	Permissions Permissions

	// Defaulted is true when no known role matched and the Admin view was
	// chosen as a fallback.
	Defaulted bool
}

// aliases maps normalized backend role labels to a Kind.
var aliases = map[string]Kind{
	"admin":                  Admin,
	"administrateur":         Admin,
	"administrator":          Admin,
	"super_admin":            Admin,
	"subadmin":               SubAdmin,
	"sub_admin":              SubAdmin,
	"sous_admin":             SubAdmin,
	"sousadmin":              SubAdmin,
	"fuel_manager":           FuelManager,
	"fuelmanager":            FuelManager,
	"gestionnaire_carburant": FuelManager,
	"responsable_carburant":  FuelManager,
	"chauffeur":              Driver,
	"driver":                 Driver,
	"conducteur":             Driver,
}

// normalize lowercases a label and folds spaces and dashes to underscores.
func normalize(label string) string {
	label = strings.ToLower(strings.TrimSpace(label))
	return strings.NewReplacer(" ", "_", "-", "_").Replace(label)
}

// Resolve picks exactly one ViewProfile for any set of role labels.
// Priority: Driver > Admin > SubAdmin > FuelManager > Admin view (defaulted,
// without admin permissions).
func Resolve(roles []string) ViewProfile {
	held := make(map[Kind]bool, len(roles))
	for _, r := range roles {
		if k, ok := aliases[normalize(r)]; ok {
			held[k] = true
		}
	}

	switch {
	case held[Driver]:
		return ViewProfile{Kind: Driver}
	case held[Admin]:
		return ViewProfile{
			Kind:        Admin,
			Permissions: Permissions{ManageUsers: true, ManageFleet: true, ManageFuel: true},
		}
	case held[SubAdmin]:
		return ViewProfile{
			Kind:        SubAdmin,
			Permissions: Permissions{ManageFleet: true, ManageFuel: true},
		}
	case held[FuelManager]:
		return ViewProfile{
			Kind:        FuelManager,
			Permissions: Permissions{ManageFuel: true},
		}
	default:
		return ViewProfile{Kind: Admin, Defaulted: true}
	}
}
