package router

import "github.com/parkline/parkpos/internal/guard"

// Application routes beyond the well-known ones in package guard.
const (
	CheckInRoute      = "/pos/vehicles/check-in"
	CheckOutRoute     = "/pos/vehicles/check-out"
	CashRegisterRoute = "/pos/cash-register"
	ShiftRoute        = "/pos/shift"
	ClientsRoute      = "/admin/clients"
	CountriesRoute    = "/admin/countries"
	UsersRoute        = "/admin/users"
)

// Roles allowed into the administration routes.
const (
	RoleAdmin      = "ADMIN"
	RoleSupervisor = "SUPERVISOR"
)

// Route binds a path to the guards that protect it.
type Route struct {
	Path   string
	Title  string
	Guards []guard.Guard

	// RedirectTo, when set, forwards an allowed navigation to another path.
	RedirectTo string
}

// DefaultRoutes is the point-of-sale route table.
func DefaultRoutes() []Route {
	protected := []guard.Guard{guard.RequireAuth, guard.EnforcePasswordChange}
	admin := append(append([]guard.Guard{}, protected...), guard.RequireRole(RoleAdmin, RoleSupervisor))

	return []Route{
		{Path: guard.RootRoute, Guards: []guard.Guard{guard.RequireAuth}, RedirectTo: guard.DefaultRoute},
		{Path: guard.LoginRoute, Title: "Login", Guards: []guard.Guard{guard.GuestOnly}},
		{Path: guard.DefaultRoute, Title: "Dashboard", Guards: protected},
		{Path: guard.ChangePasswordRoute, Title: "Change password", Guards: []guard.Guard{guard.RequireAuth}},
		{Path: CheckInRoute, Title: "Vehicle check-in", Guards: protected},
		{Path: CheckOutRoute, Title: "Vehicle check-out", Guards: protected},
		{Path: CashRegisterRoute, Title: "Cash register", Guards: protected},
		{Path: ShiftRoute, Title: "Shift", Guards: protected},
		{Path: ClientsRoute, Title: "Clients", Guards: admin},
		{Path: CountriesRoute, Title: "Countries", Guards: admin},
		{Path: UsersRoute, Title: "Users", Guards: admin},
	}
}
