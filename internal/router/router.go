// Package router resolves navigation requests against the route table,
// running each route's guards and following redirects until a route
// accepts the navigation.
package router

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"

	"github.com/parkline/parkpos/common/logging"
	"github.com/parkline/parkpos/internal/guard"
	"github.com/parkline/parkpos/internal/metrics"
	"github.com/parkline/parkpos/internal/session"
)

const maxRedirects = 10

var (
	// ErrUnknownRoute is returned for a path outside the route table when
	// no fallback is configured.
	ErrUnknownRoute = errors.New("router: unknown route")
	// ErrRedirectLoop is returned when guards keep redirecting.
	ErrRedirectLoop = errors.New("router: too many redirects")
)

// SessionSource supplies the session snapshot guards decide on.
type SessionSource interface {
	Snapshot(ctx context.Context) session.Snapshot
}

// Result describes a completed navigation.
type Result struct {
	// URL is where the router ended up.
	URL string
	// Route is the matched route.
	Route Route
	// Blocked lists every URL that was redirected away from, in order.
	Blocked []string
}

// Redirected reports whether the original target was not reached.
func (r Result) Redirected() bool {
	return len(r.Blocked) > 0
}

// Router is the navigation state machine. It is safe for concurrent use.
type Router struct {
	routes   map[string]Route
	fallback string
	source   SessionSource
	logger   *logging.Logger

	mu          sync.Mutex
	history     []string
	scope       context.Context
	cancelScope context.CancelFunc
	lastEmitted string
	listeners   []func(url string)
}

// Option configures a Router.
type Option func(*Router)

// WithFallback sends unknown paths to target instead of failing.
func WithFallback(target string) Option {
	return func(r *Router) {
		r.fallback = target
	}
}

// WithLogger sets the router logger.
func WithLogger(l *logging.Logger) Option {
	return func(r *Router) {
		r.logger = l
	}
}

// New builds a Router over routes.
func New(source SessionSource, routes []Route, opts ...Option) *Router {
	r := &Router{
		routes: make(map[string]Route, len(routes)),
		source: source,
		logger: logging.Discard(),
	}
	for _, rt := range routes {
		r.routes[rt.Path] = rt
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With(logging.Component("router"))
	r.scope, r.cancelScope = context.WithCancel(context.Background())
	return r
}

// Navigate resolves rawURL, following guard and static redirects.
func (r *Router) Navigate(ctx context.Context, rawURL string) (Result, error) {
	return r.navigate(ctx, rawURL, false)
}

// Redirect navigates to rawURL replacing the current history entry.
func (r *Router) Redirect(ctx context.Context, rawURL string) error {
	_, err := r.navigate(ctx, rawURL, true)
	return err
}

func (r *Router) navigate(ctx context.Context, target string, replace bool) (Result, error) {
	var blocked []string

	for hop := 0; hop <= maxRedirects; hop++ {
		u, err := url.Parse(target)
		if err != nil {
			return Result{}, fmt.Errorf("parse navigation target %q: %w", target, err)
		}
		path := normalize(u.Path)

		route, ok := r.routes[path]
		if !ok {
			if r.fallback == "" || path == r.fallback {
				return Result{}, fmt.Errorf("%w: %s", ErrUnknownRoute, path)
			}
			blocked = append(blocked, target)
			target, replace = r.fallback, true
			continue
		}

		snap := r.source.Snapshot(ctx)
		d := guard.Evaluate(guard.Context{
			ServerSide:         !snap.Available,
			Authenticated:      snap.Authenticated,
			MustChangePassword: snap.MustChangePassword,
			Roles:              snap.Roles,
			Target:             path,
			URL:                target,
		}, route.Guards...)

		if !d.Allowed() {
			metrics.NavigationRedirects.Inc()
			r.logger.DebugContext(ctx, "navigation redirected",
				logging.Route(target), slog.String("redirect", d.URL()))
			blocked = append(blocked, target)
			target, replace = d.URL(), replace || d.ReplaceURL
			continue
		}

		if route.RedirectTo != "" {
			blocked = append(blocked, target)
			target, replace = route.RedirectTo, true
			continue
		}

		r.commit(target, replace)
		return Result{URL: target, Route: route, Blocked: blocked}, nil
	}

	return Result{}, fmt.Errorf("%w: %s", ErrRedirectLoop, strings.Join(blocked, " -> "))
}

func (r *Router) commit(target string, replace bool) {
	r.mu.Lock()
	if replace && len(r.history) > 0 {
		r.history[len(r.history)-1] = target
	} else {
		r.history = append(r.history, target)
	}

	r.cancelScope()
	r.scope, r.cancelScope = context.WithCancel(context.Background())

	var listeners []func(string)
	if target != r.lastEmitted {
		r.lastEmitted = target
		listeners = append(listeners, r.listeners...)
	}
	r.mu.Unlock()

	for _, fn := range listeners {
		fn(target)
	}
}

// Current returns the active URL, "" before the first navigation.
func (r *Router) Current() string {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.history) == 0 {
		return ""
	}
	return r.history[len(r.history)-1]
}

// History returns a copy of the navigation history, oldest first.
func (r *Router) History() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]string(nil), r.history...)
}

// Scope returns a context bound to the active route. It is cancelled as
// soon as the router navigates elsewhere, abandoning the route's pending
// requests.
func (r *Router) Scope() context.Context {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.scope
}

// OnNavigate registers fn to be called with each new URL. Consecutive
// navigations to the same URL notify once.
func (r *Router) OnNavigate(fn func(url string)) {
	r.mu.Lock()
	r.listeners = append(r.listeners, fn)
	r.mu.Unlock()
}

// Close cancels the active route scope.
func (r *Router) Close() {
	r.mu.Lock()
	r.cancelScope()
	r.mu.Unlock()
}

func normalize(p string) string {
	if p == "" {
		return guard.RootRoute
	}
	if len(p) > 1 {
		p = strings.TrimRight(p, "/")
		if p == "" {
			return guard.RootRoute
		}
	}
	return p
}
