package guard

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
)

var protectedRoutes = []string{
	DefaultRoute,
	"/pos/vehicles/check-in",
	"/pos/vehicles/check-out",
	"/pos/cash-register",
	"/admin/clients",
}

func protectedChain() []Guard {
	return []Guard{RequireAuth, EnforcePasswordChange}
}

func TestRequireAuth_Unauthenticated(t *testing.T) {
	for _, target := range protectedRoutes {
		d := Evaluate(Context{Target: target, URL: target + "?page=2"}, protectedChain()...)

		assert.False(t, d.Allowed(), target)
		assert.Equal(t, LoginRoute, d.Path)
		assert.Equal(t, target+"?page=2", d.Params.Get(ParamReturnURL))
		assert.True(t, d.ReplaceURL)
	}
}

func TestRequireAuth_NoReturnURLForLoginOrRoot(t *testing.T) {
	for _, target := range []string{LoginRoute, RootRoute} {
		d := RequireAuth(Context{Target: target, URL: target})

		assert.False(t, d.Allowed())
		assert.Equal(t, LoginRoute, d.Path)
		assert.Empty(t, d.Params)
		assert.Equal(t, LoginRoute, d.URL())
	}
}

func TestRequireAuth_TargetWithoutURL(t *testing.T) {
	d := RequireAuth(Context{Target: "/pos/shift"})
	assert.Equal(t, "/pos/shift", d.Params.Get(ParamReturnURL))
}

func TestGuestOnly(t *testing.T) {
	assert.True(t, GuestOnly(Context{Target: LoginRoute}).Allowed())

	d := GuestOnly(Context{Target: LoginRoute, Authenticated: true})
	assert.False(t, d.Allowed())
	assert.Equal(t, DefaultRoute, d.Path)
}

func TestEnforcePasswordChange(t *testing.T) {
	base := Context{Authenticated: true, MustChangePassword: true}

	for _, target := range protectedRoutes {
		c := base
		c.Target = target
		d := Evaluate(c, protectedChain()...)

		assert.False(t, d.Allowed(), target)
		assert.Equal(t, ChangePasswordRoute, d.Path)
		assert.Equal(t, "true", d.Params.Get(ParamMustChange))
		assert.Equal(t, "/pos/change-password?mustChange=true", d.URL())
	}

	c := base
	c.Target = ChangePasswordRoute
	assert.True(t, Evaluate(c, protectedChain()...).Allowed())
}

func TestAuthenticatedNormalAccess(t *testing.T) {
	for _, target := range append(protectedRoutes, ChangePasswordRoute) {
		d := Evaluate(Context{Authenticated: true, Target: target}, protectedChain()...)
		assert.True(t, d.Allowed(), target)
	}
}

func TestPrecedence_AuthBeforePasswordChange(t *testing.T) {
	// A stale must-change flag without a credential still lands on login.
	d := Evaluate(Context{MustChangePassword: true, Target: DefaultRoute, URL: DefaultRoute}, protectedChain()...)
	assert.Equal(t, LoginRoute, d.Path)
}

func TestServerSideAlwaysAllows(t *testing.T) {
	guards := []Guard{RequireAuth, GuestOnly, EnforcePasswordChange, RequireRole("ADMIN")}
	contexts := []Context{
		{ServerSide: true, Target: DefaultRoute},
		{ServerSide: true, Authenticated: true, Target: LoginRoute},
		{ServerSide: true, Authenticated: true, MustChangePassword: true, Target: DefaultRoute},
	}
	for _, c := range contexts {
		assert.True(t, Evaluate(c, guards...).Allowed())
	}
}

func TestRequireRole(t *testing.T) {
	admin := RequireRole("ADMIN", "SUPERVISOR")

	assert.True(t, admin(Context{Authenticated: true, Roles: []string{"SUPERVISOR"}}).Allowed())

	d := admin(Context{Authenticated: true, Roles: []string{"SELLER"}, Target: "/admin/clients"})
	assert.False(t, d.Allowed())
	assert.Equal(t, DefaultRoute, d.Path)

	// Unauthenticated access is RequireAuth's job.
	assert.True(t, admin(Context{}).Allowed())
}

func TestDecisionURL(t *testing.T) {
	d := RedirectTo(LoginRoute, url.Values{ParamReturnURL: {"/pos/shift?x=1"}})
	assert.Equal(t, "/auth/login?returnUrl=%2Fpos%2Fshift%3Fx%3D1", d.URL())
	assert.Equal(t, "/pos/dashboard", RedirectTo(DefaultRoute, nil).URL())
	assert.True(t, Allow().Allowed())
}
