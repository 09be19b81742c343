// Package middleware wraps the handlers of the client's local HTTP
// endpoints (the metrics listener of long-running commands).
package middleware

import (
	"net/http"
	"time"

	"github.com/parkline/parkpos/common/logging"
	"github.com/parkline/parkpos/common/requestid"
)

// RequestID propagates X-Request-ID, generating one when absent, into the
// request context and the response headers.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		id := r.Header.Get(requestid.Header)
		if id == "" {
			ctx, id = requestid.Ensure(ctx)
		} else {
			ctx = requestid.With(ctx, id)
		}

		w.Header().Set(requestid.Header, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// AccessLog logs each request at debug level.
func AccessLog(logger *logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			logger.DebugContext(r.Context(), "local request",
				logging.Method(r.Method),
				logging.Path(r.URL.Path),
				logging.Status(rec.status),
				logging.Duration(time.Since(start).Milliseconds()))
		})
	}
}
