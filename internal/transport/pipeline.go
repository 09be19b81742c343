// Package transport implements the outbound request pipeline every backend
// call goes through: named hooks rewrite the request before it is sent and
// observe the typed result afterwards. Each request is attempted exactly
// once; nothing here retries.
package transport

import (
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Result is the outcome of one round trip: a response, or an error when no
// response was received.
type Result struct {
	Response *http.Response
	Err      error
	Duration time.Duration
}

// Status returns the response status code, 0 when there is no response.
func (r Result) Status() int {
	if r.Response == nil {
		return 0
	}
	return r.Response.StatusCode
}

// Hook is one named pipeline stage. Before may return a modified copy of
// the request (never mutate the original). After may inspect or replace
// the result; returning it unchanged passes failures through to the
// caller.
type Hook struct {
	Name   string
	Before func(req *http.Request) *http.Request
	After  func(req *http.Request, res Result) Result
}

// Pipeline is an http.RoundTripper running hooks around a base transport.
type Pipeline struct {
	base  http.RoundTripper
	hooks []Hook
}

// New builds a pipeline over base. Hooks run in order: Before hooks first
// to last, After hooks first to last.
func New(base http.RoundTripper, hooks ...Hook) *Pipeline {
	if base == nil {
		base = http.DefaultTransport
	}
	return &Pipeline{base: base, hooks: hooks}
}

// NewInstrumented builds a pipeline whose base transport emits OpenTelemetry
// client spans.
func NewInstrumented(hooks ...Hook) *Pipeline {
	return New(otelhttp.NewTransport(http.DefaultTransport), hooks...)
}

// Use appends a hook.
func (p *Pipeline) Use(h Hook) {
	p.hooks = append(p.hooks, h)
}

// Hooks returns the hook names in execution order.
func (p *Pipeline) Hooks() []string {
	names := make([]string, len(p.hooks))
	for i, h := range p.hooks {
		names[i] = h.Name
	}
	return names
}

// RoundTrip implements http.RoundTripper.
func (p *Pipeline) RoundTrip(req *http.Request) (*http.Response, error) {
	for _, h := range p.hooks {
		if h.Before != nil {
			req = h.Before(req)
		}
	}

	start := time.Now()
	resp, err := p.base.RoundTrip(req)
	res := Result{Response: resp, Err: err, Duration: time.Since(start)}

	for _, h := range p.hooks {
		if h.After != nil {
			res = h.After(req, res)
		}
	}
	return res.Response, res.Err
}

// Client returns an *http.Client using the pipeline. No client-wide
// timeout is set; callers bound individual calls through their context.
func (p *Pipeline) Client() *http.Client {
	return &http.Client{Transport: p}
}
