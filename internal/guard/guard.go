// Package guard holds the navigation guards: pure predicates over a
// session snapshot and a navigation target that either allow the
// transition or redirect it. Guards never perform I/O.
package guard

import (
	"net/url"
	"slices"
)

// Well-known routes.
const (
	RootRoute           = "/"
	LoginRoute          = "/auth/login"
	DefaultRoute        = "/pos/dashboard"
	ChangePasswordRoute = "/pos/change-password"
)

// Query parameters set on redirects.
const (
	ParamReturnURL  = "returnUrl"
	ParamMustChange = "mustChange"
)

// Context is everything a guard may look at.
type Context struct {
	// ServerSide is true when no client storage exists; storage-dependent
	// guards permit and defer the real check to an interactive client.
	ServerSide         bool
	Authenticated      bool
	MustChangePassword bool
	Roles              []string

	// Target is the path being navigated to; URL is the full original URL
	// including its query string.
	Target string
	URL    string
}

// Kind tags a Decision.
type Kind int

const (
	KindAllow Kind = iota
	KindRedirect
)

// Decision is the outcome of a guard: Allow, or Redirect to Path with
// Params. Redirects always replace the blocked URL in history.
type Decision struct {
	Kind       Kind
	Path       string
	Params     url.Values
	ReplaceURL bool
}

// Allow permits the navigation.
func Allow() Decision {
	return Decision{Kind: KindAllow}
}

// RedirectTo blocks the navigation and sends it to path.
func RedirectTo(path string, params url.Values) Decision {
	return Decision{Kind: KindRedirect, Path: path, Params: params, ReplaceURL: true}
}

// Allowed reports whether d permits the navigation.
func (d Decision) Allowed() bool {
	return d.Kind == KindAllow
}

// URL renders the redirect target with its query string.
func (d Decision) URL() string {
	if len(d.Params) == 0 {
		return d.Path
	}
	return d.Path + "?" + d.Params.Encode()
}

// Guard decides whether a navigation may proceed.
type Guard func(Context) Decision

// Evaluate runs guards in order and returns the first non-allow decision.
func Evaluate(c Context, guards ...Guard) Decision {
	for _, g := range guards {
		if d := g(c); !d.Allowed() {
			return d
		}
	}
	return Allow()
}

// RequireAuth sends unauthenticated navigation to the login route,
// remembering the original URL unless it is the login route or root.
func RequireAuth(c Context) Decision {
	if c.ServerSide || c.Authenticated {
		return Allow()
	}
	if c.Target == LoginRoute || c.Target == RootRoute || c.Target == "" {
		return RedirectTo(LoginRoute, nil)
	}

	returnURL := c.URL
	if returnURL == "" {
		returnURL = c.Target
	}
	return RedirectTo(LoginRoute, url.Values{ParamReturnURL: {returnURL}})
}

// GuestOnly keeps authenticated operators away from the login screen.
func GuestOnly(c Context) Decision {
	if c.ServerSide || !c.Authenticated {
		return Allow()
	}
	return RedirectTo(DefaultRoute, nil)
}

// EnforcePasswordChange confines an operator who must change their
// password to the password-change route.
func EnforcePasswordChange(c Context) Decision {
	if c.ServerSide || !c.Authenticated || !c.MustChangePassword {
		return Allow()
	}
	if c.Target == ChangePasswordRoute {
		return Allow()
	}
	return RedirectTo(ChangePasswordRoute, url.Values{ParamMustChange: {"true"}})
}

// RequireRole allows operators holding any of roles and sends everyone
// else to the default route.
func RequireRole(roles ...string) Guard {
	return func(c Context) Decision {
		if c.ServerSide || !c.Authenticated {
			return Allow()
		}
		for _, r := range roles {
			if slices.Contains(c.Roles, r) {
				return Allow()
			}
		}
		return RedirectTo(DefaultRoute, nil)
	}
}
