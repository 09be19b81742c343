package logging

import "log/slog"

// Common field names for consistent logging across packages.
const (
	FieldComponent   = "component"
	FieldRequestID   = "request_id"
	FieldUsername    = "username"
	FieldServiceCode = "service_code"
	FieldMethod      = "method"
	FieldPath        = "path"
	FieldRoute       = "route"
	FieldStatus      = "status"
	FieldDuration    = "duration_ms"
	FieldError       = "error"
	FieldReason      = "reason"
)

// Component returns a slog attribute naming the emitting component.
func Component(name string) slog.Attr {
	return slog.String(FieldComponent, name)
}

// Username returns a slog attribute for the username.
func Username(name string) slog.Attr {
	return slog.String(FieldUsername, name)
}

// ServiceCode returns a slog attribute for a backend service code.
func ServiceCode(code string) slog.Attr {
	return slog.String(FieldServiceCode, code)
}

// Method returns a slog attribute for the HTTP method.
func Method(method string) slog.Attr {
	return slog.String(FieldMethod, method)
}

// Path returns a slog attribute for the HTTP path.
func Path(path string) slog.Attr {
	return slog.String(FieldPath, path)
}

// Route returns a slog attribute for a navigation target.
func Route(route string) slog.Attr {
	return slog.String(FieldRoute, route)
}

// Status returns a slog attribute for the HTTP status code.
func Status(code int) slog.Attr {
	return slog.Int(FieldStatus, code)
}

// Duration returns a slog attribute for duration in milliseconds.
func Duration(ms int64) slog.Attr {
	return slog.Int64(FieldDuration, ms)
}

// Error returns a slog attribute for an error.
func Error(err error) slog.Attr {
	return slog.String(FieldError, err.Error())
}

// Reason returns a slog attribute explaining a state transition.
func Reason(reason string) slog.Attr {
	return slog.String(FieldReason, reason)
}
