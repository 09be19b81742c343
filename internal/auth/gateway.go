// Package auth performs the login, logout and password-change calls and is
// the only writer of the session credential and profile.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/parkline/parkpos/common/logging"
	"github.com/parkline/parkpos/internal/api"
	"github.com/parkline/parkpos/internal/apierr"
	"github.com/parkline/parkpos/internal/guard"
	"github.com/parkline/parkpos/internal/metrics"
	"github.com/parkline/parkpos/internal/session"
)

// ErrMustFinishShift is returned by SignOut when the backend refuses the
// logout because the operator's shift is still open.
var ErrMustFinishShift = errors.New("shift must be closed before logging out")

// Backend is the subset of the API the gateway calls.
type Backend interface {
	Login(ctx context.Context, req api.LoginRequest) (*api.LoginResponse, error)
	Logout(ctx context.Context, req api.LogoutRequest) error
	ChangePassword(ctx context.Context, req api.ChangePasswordRequest) error
}

// Navigator performs history-replacing navigation.
type Navigator interface {
	Redirect(ctx context.Context, rawURL string) error
}

// Gateway mutates the session store in response to authentication calls.
type Gateway struct {
	backend Backend
	store   *session.Store
	nav     Navigator
	logger  *logging.Logger
}

// NewGateway builds a Gateway. A nil logger discards output.
func NewGateway(backend Backend, store *session.Store, nav Navigator, logger *logging.Logger) *Gateway {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Gateway{
		backend: backend,
		store:   store,
		nav:     nav,
		logger:  logger.With(logging.Component("auth")),
	}
}

// Login authenticates against the sell-role endpoint. When the backend
// issues a credential, the previous session is cleared and the new
// credential, profile and timezone hint are stored. The full response is
// returned so the caller can act on MustChangePassword. Backend errors are
// returned unchanged.
func (g *Gateway) Login(ctx context.Context, username, accessKey string) (*api.LoginResponse, error) {
	resp, err := g.backend.Login(ctx, api.LoginRequest{Username: username, AccessKey: accessKey})
	if err != nil {
		metrics.Logins.WithLabelValues("failure").Inc()
		g.logger.WarnContext(ctx, "login failed", logging.Username(username), logging.Error(err))
		return nil, err
	}
	if resp.Jwt == "" {
		metrics.Logins.WithLabelValues("no_credential").Inc()
		g.logger.WarnContext(ctx, "login returned no credential", logging.Username(username))
		return resp, nil
	}

	// SetSession sweeps the previous session before writing.
	if err := g.store.SetSession(ctx, resp.Jwt, ProfileFromLogin(resp)); err != nil {
		return nil, fmt.Errorf("store session: %w", err)
	}
	if tz, ok := TimezoneFromToken(resp.Jwt); ok {
		if err := g.store.SetTimezone(ctx, tz); err != nil {
			g.logger.WarnContext(ctx, "store timezone", logging.Error(err))
		}
	}

	metrics.Logins.WithLabelValues("success").Inc()
	g.logger.InfoContext(ctx, "operator logged in",
		logging.Username(resp.Username),
		"must_change_password", resp.MustChangePassword)
	return resp, nil
}

// Logout clears the session and always navigates to the login route.
func (g *Gateway) Logout(ctx context.Context) error {
	g.store.Invalidate(ctx, session.ReasonLogout)
	return g.nav.Redirect(ctx, guard.LoginRoute)
}

// LogoutRequest asks the backend whether logout is allowed right now. The
// session is not touched.
func (g *Gateway) LogoutRequest(ctx context.Context, serviceCode string) error {
	return g.backend.Logout(ctx, api.LogoutRequest{ServiceCode: serviceCode})
}

// SignOut runs the advisory-gated logout: ask the backend, then Logout on
// approval. A MUST_FINISH_SHIFT_BEFORE_LOGOUT refusal keeps the session and
// sends the operator back to the dashboard, returning ErrMustFinishShift.
// Other failures leave the session intact and are returned unchanged.
func (g *Gateway) SignOut(ctx context.Context, serviceCode string) error {
	err := g.LogoutRequest(ctx, serviceCode)
	switch {
	case err == nil:
		return g.Logout(ctx)
	case apierr.Status(err) == http.StatusForbidden && apierr.HasCode(err, apierr.CodeMustFinishShift):
		g.logger.InfoContext(ctx, "logout refused, shift still open", logging.ServiceCode(serviceCode))
		if navErr := g.nav.Redirect(ctx, guard.DefaultRoute); navErr != nil {
			return errors.Join(fmt.Errorf("%w: %w", ErrMustFinishShift, err), navErr)
		}
		return fmt.Errorf("%w: %w", ErrMustFinishShift, err)
	default:
		return err
	}
}

// ChangePassword changes the operator's password. The stored session is
// not refreshed; the caller decides whether to log in again.
func (g *Gateway) ChangePassword(ctx context.Context, username, current, next string) error {
	return g.backend.ChangePassword(ctx, api.ChangePasswordRequest{
		Username:        username,
		CurrentPassword: current,
		NewPassword:     next,
	})
}

// MustChangePassword reports the stored profile flag, false when logged out.
func (g *Gateway) MustChangePassword(ctx context.Context) bool {
	return g.store.MustChangePassword(ctx)
}

// ProfileFromLogin extracts the operator profile from a login response.
func ProfileFromLogin(resp *api.LoginResponse) session.Profile {
	return session.Profile{
		UserID:             resp.UserID,
		Username:           resp.Username,
		FirstName:          resp.FirstName,
		SecondName:         resp.SecondName,
		LastName:           resp.LastName,
		SecondLastName:     resp.SecondLastName,
		Roles:              resp.Roles,
		AccessLevel:        resp.AccessLevel,
		CompanyID:          resp.CompanyID,
		CompanyName:        resp.CompanyName,
		CompanyNit:         resp.CompanyNit,
		MustChangePassword: resp.MustChangePassword,
		PwdMsgToExpire:     resp.PwdMsgToExpire,
	}
}
