// Package app assembles the client: storage backends, session store,
// router, transport pipeline, API client, auth gateway and parameter
// cache.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"

	"github.com/google/uuid"

	"github.com/parkline/parkpos/common/audit"
	"github.com/parkline/parkpos/common/logging"
	"github.com/parkline/parkpos/common/messaging"
	natsclient "github.com/parkline/parkpos/common/messaging/nats"
	"github.com/parkline/parkpos/internal/api"
	"github.com/parkline/parkpos/internal/auth"
	"github.com/parkline/parkpos/internal/config"
	"github.com/parkline/parkpos/internal/guard"
	"github.com/parkline/parkpos/internal/params"
	"github.com/parkline/parkpos/internal/router"
	"github.com/parkline/parkpos/internal/session"
	"github.com/parkline/parkpos/internal/storage"
	"github.com/parkline/parkpos/internal/telemetry"
	"github.com/parkline/parkpos/internal/transport"
)

// App is a fully wired client.
type App struct {
	Config   *config.Config
	Logger   *logging.Logger
	Store    *session.Store
	Router   *router.Router
	Pipeline *transport.Pipeline
	API      *api.Client
	Auth     *auth.Gateway
	Params   *params.Cache

	// Origin identifies this terminal on the session broadcast.
	Origin string

	broadcaster *session.Broadcaster
	closers     []func() error
}

type options struct {
	local     storage.Backend
	localSet  bool
	tab       storage.Backend
	bus       messaging.Client
	transport http.RoundTripper
}

// Option overrides a component New would otherwise build from config.
type Option func(*options)

// WithLocal uses b as persistent storage. A nil b runs the client without
// persistence: every session read is unauthenticated and guards allow all
// navigation.
func WithLocal(b storage.Backend) Option {
	return func(o *options) {
		o.local = b
		o.localSet = true
	}
}

// WithTab uses b as session-scoped storage.
func WithTab(b storage.Backend) Option {
	return func(o *options) { o.tab = b }
}

// WithBus enables the session broadcast over bus.
func WithBus(bus messaging.Client) Option {
	return func(o *options) { o.bus = bus }
}

// WithTransport replaces the instrumented base transport under the
// pipeline.
func WithTransport(rt http.RoundTripper) Option {
	return func(o *options) { o.transport = rt }
}

// New wires an App from cfg. Close releases everything it opened.
func New(ctx context.Context, cfg *config.Config, logger *logging.Logger, opts ...Option) (*App, error) {
	if logger == nil {
		logger = logging.Discard()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	a := &App{
		Config: cfg,
		Logger: logger,
		Origin: uuid.NewString(),
	}

	if o.transport == nil {
		shutdown := telemetry.Setup(ctx, cfg.Telemetry.Endpoint, cfg.Telemetry.ServiceName, cfg.Telemetry.Insecure, logger)
		a.closers = append(a.closers, func() error { return shutdown(context.Background()) })
	}

	local, err := a.openLocal(o)
	if err != nil {
		return nil, errors.Join(err, a.Close())
	}
	tab, err := a.openTab(o)
	if err != nil {
		return nil, errors.Join(err, a.Close())
	}

	a.Store = session.NewStore(local, tab, logger)
	a.Router = router.New(a.Store, router.DefaultRoutes(),
		router.WithFallback(guard.RootRoute),
		router.WithLogger(logger))
	a.closers = append(a.closers, func() error { a.Router.Close(); return nil })

	hooks := []transport.Hook{
		transport.AttachRequestID(),
		transport.AttachCredential(a.Store),
		transport.ClearSessionOnUnauthorized(a.Store, a.Router, logger),
		transport.RecordMetrics(),
		transport.LogOutcome(logger),
	}
	if o.transport != nil {
		a.Pipeline = transport.New(o.transport, hooks...)
	} else {
		a.Pipeline = transport.NewInstrumented(hooks...)
	}

	a.API = api.New(cfg.API.URL, a.Pipeline.Client())
	a.Auth = auth.NewGateway(a.API, a.Store, a.Router, logger)
	a.Params = params.New(a.Store, a.API, cfg.API.ParamsScope, logger)

	if err := a.startBroadcast(o); err != nil {
		return nil, errors.Join(err, a.Close())
	}
	return a, nil
}

func (a *App) openLocal(o options) (storage.Backend, error) {
	if o.localSet {
		return o.local, nil
	}

	var fileOpts []storage.FileOption
	if key := a.Config.Storage.EncryptionKey; key != "" {
		sealer, err := storage.NewSealer(key)
		if err != nil {
			return nil, fmt.Errorf("storage encryption key: %w", err)
		}
		fileOpts = append(fileOpts, storage.WithSealer(sealer))
	}
	return storage.NewFile(a.Config.StoragePath(), fileOpts...), nil
}

func (a *App) openTab(o options) (storage.Backend, error) {
	if o.tab != nil {
		return o.tab, nil
	}
	if a.Config.Tab.RedisURL == "" {
		return storage.NewMemory(), nil
	}

	r, err := storage.NewRedis(a.Config.Tab.RedisURL, TabID(a.Config), a.Config.Tab.TTL)
	if err != nil {
		return nil, fmt.Errorf("open tab storage: %w", err)
	}
	a.closers = append(a.closers, r.Close)
	return r, nil
}

func (a *App) startBroadcast(o options) error {
	bus := o.bus
	if bus == nil && a.Config.NATS.URL != "" {
		cfg := natsclient.DefaultConfig()
		cfg.URL = a.Config.NATS.URL
		client, err := natsclient.NewClient(cfg, a.Logger)
		if err != nil {
			// The broadcast is best effort; terminals still converge on
			// their next 401.
			a.Logger.WarnContext(context.Background(), "session broadcast disabled", logging.Error(err))
			return nil
		}
		a.closers = append(a.closers, client.Close)
		bus = client
	}
	if bus == nil {
		return nil
	}

	var bopts []session.BroadcastOption
	if key := a.Config.NATS.SigningKey; key != "" {
		bopts = append(bopts, session.WithSigner(audit.NewEventSigner(key)))
	}
	b := session.NewBroadcaster(bus, a.Store, a.Origin, a.Logger, bopts...)
	if err := b.Start(func(ctx context.Context) {
		if err := a.Router.Redirect(ctx, guard.LoginRoute); err != nil {
			a.Logger.ErrorContext(ctx, "redirect after remote logout", logging.Error(err))
		}
	}); err != nil {
		return err
	}
	a.broadcaster = b
	a.closers = append(a.closers, b.Stop)
	return nil
}

// TabID identifies the session-scoped storage partition. Without an
// explicit tab.id, each parent shell is one tab.
func TabID(cfg *config.Config) string {
	if cfg.Tab.ID != "" {
		return cfg.Tab.ID
	}
	return "ppid-" + strconv.Itoa(os.Getppid())
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
