package transport

import (
	"context"
	"net/http"

	"github.com/parkline/parkpos/common/logging"
	"github.com/parkline/parkpos/common/requestid"
	"github.com/parkline/parkpos/internal/guard"
	"github.com/parkline/parkpos/internal/metrics"
	"github.com/parkline/parkpos/internal/session"
)

// Hook names.
const (
	HookRequestID    = "request-id"
	HookCredential   = "credential"
	HookUnauthorized = "clear-session-on-401"
	HookMetrics      = "metrics"
	HookLogging      = "logging"
)

// CredentialSource supplies the bearer credential.
type CredentialSource interface {
	Available() bool
	Credential(ctx context.Context) string
}

// Invalidator clears the session.
type Invalidator interface {
	Invalidate(ctx context.Context, reason session.Reason)
}

// Navigator performs a history-replacing navigation.
type Navigator interface {
	Redirect(ctx context.Context, rawURL string) error
}

// AttachRequestID tags every request with an X-Request-ID header, reusing
// the id already carried by the request context.
func AttachRequestID() Hook {
	return Hook{
		Name: HookRequestID,
		Before: func(req *http.Request) *http.Request {
			ctx, id := requestid.Ensure(req.Context())
			out := req.Clone(ctx)
			out.Header.Set(requestid.Header, id)
			return out
		},
	}
}

// AttachCredential adds "Authorization: Bearer <credential>" when storage
// is available and a credential is stored. Otherwise the request is sent
// unmodified.
func AttachCredential(src CredentialSource) Hook {
	return Hook{
		Name: HookCredential,
		Before: func(req *http.Request) *http.Request {
			if !src.Available() {
				return req
			}
			cred := src.Credential(req.Context())
			if cred == "" {
				return req
			}
			out := req.Clone(req.Context())
			out.Header.Set("Authorization", "Bearer "+cred)
			return out
		},
	}
}

// ClearSessionOnUnauthorized invalidates the session and sends the
// operator to the login route whenever the backend answers 401. The
// response is passed through untouched so the caller still sees the
// failure.
func ClearSessionOnUnauthorized(inv Invalidator, nav Navigator, logger *logging.Logger) Hook {
	if logger == nil {
		logger = logging.Discard()
	}
	return Hook{
		Name: HookUnauthorized,
		After: func(req *http.Request, res Result) Result {
			if res.Status() != http.StatusUnauthorized {
				return res
			}
			ctx := req.Context()
			logger.WarnContext(ctx, "backend rejected credential",
				logging.Method(req.Method), logging.Path(req.URL.Path))

			inv.Invalidate(ctx, session.ReasonUnauthorized)
			if nav != nil {
				// The request context may already be cancelled by the
				// caller; navigation must still happen.
				if err := nav.Redirect(context.WithoutCancel(ctx), guard.LoginRoute); err != nil {
					logger.ErrorContext(ctx, "redirect to login", logging.Error(err))
				}
			}
			return res
		},
	}
}

// RecordMetrics counts requests by method and status class.
func RecordMetrics() Hook {
	return Hook{
		Name: HookMetrics,
		After: func(req *http.Request, res Result) Result {
			metrics.RequestsTotal.WithLabelValues(req.Method, metrics.StatusClass(res.Status())).Inc()
			metrics.RequestDuration.WithLabelValues(req.Method).Observe(res.Duration.Seconds())
			return res
		},
	}
}

// LogOutcome logs every round trip at debug level, and transport errors at
// warn.
func LogOutcome(logger *logging.Logger) Hook {
	if logger == nil {
		logger = logging.Discard()
	}
	return Hook{
		Name: HookLogging,
		After: func(req *http.Request, res Result) Result {
			ctx := req.Context()
			attrs := []any{
				logging.Method(req.Method),
				logging.Path(req.URL.Path),
				logging.Duration(res.Duration.Milliseconds()),
			}
			if res.Err != nil {
				logger.WarnContext(ctx, "backend request failed", append(attrs, logging.Error(res.Err))...)
				return res
			}
			logger.DebugContext(ctx, "backend request", append(attrs, logging.Status(res.Status()))...)
			return res
		},
	}
}
