package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parkline/parkpos/common/messaging"
	"github.com/parkline/parkpos/internal/api"
	"github.com/parkline/parkpos/internal/apierr"
	"github.com/parkline/parkpos/internal/auth"
	"github.com/parkline/parkpos/internal/config"
	"github.com/parkline/parkpos/internal/guard"
	"github.com/parkline/parkpos/internal/params"
	"github.com/parkline/parkpos/internal/router"
	"github.com/parkline/parkpos/internal/storage"
)

// backend is a scripted fake of the parking API.
type backend struct {
	mustChange   bool
	logoutStatus int
	clientsCode  int
	paramsCalls  int32
	lastAuth     atomic.Value
}

func (b *backend) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/login-sell", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(api.LoginResponse{
			Jwt:                "a.b.c",
			MustChangePassword: b.mustChange,
			UserID:             1,
			Username:           "cashier",
			Roles:              []string{"SELLER"},
		})
	})
	mux.HandleFunc("POST /auth/logout", func(w http.ResponseWriter, r *http.Request) {
		if b.logoutStatus == http.StatusForbidden {
			w.WriteHeader(http.StatusForbidden)
			w.Write([]byte(`{"code":"MUST_FINISH_SHIFT_BEFORE_LOGOUT","message":"close the shift first"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("GET /operations/params/{code}", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&b.paramsCalls, 1)
		w.Write([]byte(`{"serviceCode":"` + r.PathValue("code") + `","shiftOpen":true,"permissions":{"canManageCashExit":true}}`))
	})
	mux.HandleFunc("GET /clients", func(w http.ResponseWriter, r *http.Request) {
		b.lastAuth.Store(r.Header.Get("Authorization"))
		if b.clientsCode != 0 {
			w.WriteHeader(b.clientsCode)
			return
		}
		w.Write([]byte(`{"content":[]}`))
	})
	return mux
}

func newTestApp(t *testing.T, b *backend, opts ...Option) *App {
	t.Helper()
	srv := httptest.NewServer(b.handler())
	t.Cleanup(srv.Close)

	cfg := &config.Config{
		API:     config.APIConfig{URL: srv.URL, ParamsScope: "operations"},
		Logging: config.LoggingConfig{Format: "text"},
	}
	base := []Option{
		WithLocal(storage.NewMemory()),
		WithTab(storage.NewMemory()),
		WithTransport(http.DefaultTransport),
	}
	a, err := New(context.Background(), cfg, nil, append(base, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })
	return a
}

func TestScenario_MustChangePasswordBlocksDashboard(t *testing.T) {
	ctx := context.Background()
	a := newTestApp(t, &backend{mustChange: true})

	resp, err := a.Auth.Login(ctx, "cashier", "pw")
	require.NoError(t, err)
	require.True(t, resp.MustChangePassword)

	res, err := a.Router.Navigate(ctx, guard.DefaultRoute)
	require.NoError(t, err)
	assert.Equal(t, "/pos/change-password?mustChange=true", res.URL)

	res, err = a.Router.Navigate(ctx, guard.ChangePasswordRoute)
	require.NoError(t, err)
	assert.False(t, res.Redirected())
	assert.Equal(t, guard.ChangePasswordRoute, res.URL)
}

func TestScenario_LogoutRefusedWhileShiftOpen(t *testing.T) {
	ctx := context.Background()
	a := newTestApp(t, &backend{logoutStatus: http.StatusForbidden})

	_, err := a.Auth.Login(ctx, "cashier", "pw")
	require.NoError(t, err)
	_, err = a.Router.Navigate(ctx, router.ShiftRoute)
	require.NoError(t, err)

	err = a.Auth.SignOut(ctx, "100000001")
	require.ErrorIs(t, err, auth.ErrMustFinishShift)

	assert.True(t, a.Store.IsAuthenticated(ctx))
	assert.Equal(t, guard.DefaultRoute, a.Router.Current())
}

func TestScenario_LogoutApproved(t *testing.T) {
	ctx := context.Background()
	a := newTestApp(t, &backend{})

	_, err := a.Auth.Login(ctx, "cashier", "pw")
	require.NoError(t, err)
	_, err = a.Params.Get(ctx, "100000001")
	require.NoError(t, err)

	require.NoError(t, a.Auth.SignOut(ctx, "100000001"))
	assert.False(t, a.Store.IsAuthenticated(ctx))
	assert.Equal(t, guard.LoginRoute, a.Router.Current())

	keys, err := a.Store.Tab().Keys(ctx)
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestUnauthorizedClearsSessionAndSurfacesError(t *testing.T) {
	ctx := context.Background()
	b := &backend{clientsCode: http.StatusUnauthorized}
	a := newTestApp(t, b)

	_, err := a.Auth.Login(ctx, "cashier", "pw")
	require.NoError(t, err)

	_, err = a.API.ListClients(ctx, api.ClientQuery{})
	require.Error(t, err)
	assert.Equal(t, http.StatusUnauthorized, apierr.Status(err))
	assert.Equal(t, "Bearer a.b.c", b.lastAuth.Load())

	assert.False(t, a.Store.IsAuthenticated(ctx))
	assert.Nil(t, a.Store.Profile(ctx))
	assert.Equal(t, guard.LoginRoute, a.Router.Current())
}

func TestParamsCachedWithinSession(t *testing.T) {
	ctx := context.Background()
	b := &backend{}
	a := newTestApp(t, b)

	_, err := a.Auth.Login(ctx, "cashier", "pw")
	require.NoError(t, err)

	for range 2 {
		p, err := a.Params.Get(ctx, "100000001")
		require.NoError(t, err)
		assert.True(t, p.Permissions.CanManageCashExit)
	}
	assert.EqualValues(t, 1, atomic.LoadInt32(&b.paramsCalls))

	a.Store.Clear(ctx)
	_, err = a.Params.Get(ctx, "100000001")
	require.NoError(t, err)
	assert.EqualValues(t, 2, atomic.LoadInt32(&b.paramsCalls))

	// Without a credential nothing is cached.
	_, err = a.Store.Tab().Get(ctx, params.Key("100000001"))
	assert.ErrorIs(t, err, storage.ErrNotFound)

	_, err = a.Auth.Login(ctx, "cashier", "pw")
	require.NoError(t, err)
	_, err = a.Params.Get(ctx, "100000001")
	require.NoError(t, err)
	assert.EqualValues(t, 3, atomic.LoadInt32(&b.paramsCalls))
	_, err = a.Store.Tab().Get(ctx, params.Key("100000001"))
	assert.NoError(t, err)
}

func TestClearTwiceIsIdempotent(t *testing.T) {
	ctx := context.Background()
	a := newTestApp(t, &backend{})

	_, err := a.Auth.Login(ctx, "cashier", "pw")
	require.NoError(t, err)

	a.Store.Clear(ctx)
	once := a.Store.Snapshot(ctx)
	a.Store.Clear(ctx)
	assert.Equal(t, once, a.Store.Snapshot(ctx))
	assert.False(t, once.Authenticated)
}

func TestWithoutPersistenceGuardsAllow(t *testing.T) {
	ctx := context.Background()
	a := newTestApp(t, &backend{}, WithLocal(nil))

	assert.False(t, a.Store.Available())
	res, err := a.Router.Navigate(ctx, router.CheckInRoute)
	require.NoError(t, err)
	assert.False(t, res.Redirected())

	// Login succeeds against the backend but nothing is persisted.
	_, err = a.Auth.Login(ctx, "cashier", "pw")
	require.NoError(t, err)
	assert.False(t, a.Store.IsAuthenticated(ctx))
}

func TestEnter(t *testing.T) {
	ctx := context.Background()
	a := newTestApp(t, &backend{})

	_, err := a.Enter(ctx, router.CheckInRoute)
	var redirected *RedirectedError
	require.ErrorAs(t, err, &redirected)
	assert.Equal(t, "/auth/login?returnUrl=%2Fpos%2Fvehicles%2Fcheck-in", redirected.Result.URL)

	_, err = a.Auth.Login(ctx, "cashier", "pw")
	require.NoError(t, err)

	scope, err := a.Enter(ctx, router.CheckInRoute)
	require.NoError(t, err)
	require.NoError(t, scope.Err())

	_, err = a.Router.Navigate(ctx, router.CheckOutRoute)
	require.NoError(t, err)
	assert.Eventually(t, func() bool { return scope.Err() != nil }, time.Second, 5*time.Millisecond,
		"leaving the route cancels its scope")
}

func TestBroadcast_RemoteLogoutInvalidatesOtherTerminal(t *testing.T) {
	ctx := context.Background()
	bus := messaging.NewLocalBus()
	b := &backend{}

	first := newTestApp(t, b, WithBus(bus))
	second := newTestApp(t, b, WithBus(bus))

	_, err := first.Auth.Login(ctx, "cashier", "pw")
	require.NoError(t, err)
	_, err = second.Auth.Login(ctx, "cashier", "pw")
	require.NoError(t, err)
	_, err = second.Router.Navigate(ctx, router.CheckInRoute)
	require.NoError(t, err)

	require.NoError(t, first.Auth.Logout(ctx))

	assert.False(t, second.Store.IsAuthenticated(ctx))
	assert.Equal(t, guard.LoginRoute, second.Router.Current())
}

func TestBroadcast_SigningKeyMismatchIgnored(t *testing.T) {
	ctx := context.Background()
	bus := messaging.NewLocalBus()
	b := &backend{}

	// Only the second terminal requires signed events.
	first := newTestApp(t, b, WithBus(bus))

	srv := httptest.NewServer(b.handler())
	t.Cleanup(srv.Close)
	second, err := New(ctx, &config.Config{
		API:     config.APIConfig{URL: srv.URL, ParamsScope: "operations"},
		NATS:    config.NATSConfig{SigningKey: "terminal-key"},
		Logging: config.LoggingConfig{Format: "text"},
	}, nil, WithLocal(storage.NewMemory()), WithTab(storage.NewMemory()), WithTransport(http.DefaultTransport), WithBus(bus))
	require.NoError(t, err)
	t.Cleanup(func() { second.Close() })

	_, err = first.Auth.Login(ctx, "cashier", "pw")
	require.NoError(t, err)
	_, err = second.Auth.Login(ctx, "cashier", "pw")
	require.NoError(t, err)

	require.NoError(t, first.Auth.Logout(ctx))
	assert.True(t, second.Store.IsAuthenticated(ctx), "unsigned event dropped")
}

func TestTabID(t *testing.T) {
	assert.Equal(t, "kiosk-2", TabID(&config.Config{Tab: config.TabConfig{ID: "kiosk-2"}}))
	assert.Contains(t, TabID(&config.Config{}), "ppid-")
}

func TestNew_InvalidConfig(t *testing.T) {
	_, err := New(context.Background(), &config.Config{Logging: config.LoggingConfig{Format: "text"}}, nil)
	assert.Error(t, err)
}
