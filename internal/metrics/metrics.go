package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Backend request metrics
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "parkpos_backend_requests_total",
			Help: "Total number of backend requests by method and status class",
		},
		[]string{"method", "status"},
	)

	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "parkpos_backend_request_duration_seconds",
			Help:    "Duration of backend requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	// Session metrics
	SessionInvalidations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "parkpos_session_invalidations_total",
			Help: "Total number of session invalidations by reason",
		},
		[]string{"reason"},
	)

	Logins = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "parkpos_logins_total",
			Help: "Total number of login attempts by outcome",
		},
		[]string{"outcome"},
	)

	// Parameter cache metrics
	ParamsCacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "parkpos_params_cache_lookups_total",
			Help: "Total number of session parameter cache lookups by result",
		},
		[]string{"result"},
	)

	// Navigation metrics
	NavigationRedirects = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "parkpos_navigation_redirects_total",
			Help: "Total number of navigations redirected by a guard",
		},
	)
)

// StatusClass buckets an HTTP status as "2xx", "4xx", ... or "error" when
// no response was received.
func StatusClass(status int) string {
	switch {
	case status <= 0:
		return "error"
	case status < 200:
		return "1xx"
	case status < 300:
		return "2xx"
	case status < 400:
		return "3xx"
	case status < 500:
		return "4xx"
	default:
		return "5xx"
	}
}
