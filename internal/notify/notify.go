// Package notify turns operation outcomes into operator-facing
// notifications.
package notify

import (
	"github.com/parkline/parkpos/internal/apierr"
)

// Severity ranks a notification.
type Severity string

const (
	SeveritySuccess Severity = "success"
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Notification is a titled message shown to the operator.
type Notification struct {
	Severity Severity `json:"severity"`
	Title    string   `json:"title"`
	Message  string   `json:"message"`
}

// Success builds a success notification.
func Success(title, message string) Notification {
	return Notification{Severity: SeveritySuccess, Title: title, Message: message}
}

// Info builds an informational notification.
func Info(title, message string) Notification {
	return Notification{Severity: SeverityInfo, Title: title, Message: message}
}

// FromError maps a failure to a notification. It returns false for nil
// errors, for unauthorized failures, which are handled by the silent
// redirect to login, and for requests cancelled by leaving their route.
func FromError(err error) (Notification, bool) {
	if err == nil {
		return Notification{}, false
	}

	msg := apierr.UserMessage(err)
	switch apierr.Classify(err) {
	case apierr.KindUnauthorized, apierr.KindCanceled:
		return Notification{}, false
	case apierr.KindBusiness:
		return Notification{Severity: SeverityWarning, Title: "Not allowed", Message: msg}, true
	case apierr.KindValidation:
		return Notification{Severity: SeverityWarning, Title: "Check the data", Message: msg}, true
	case apierr.KindNotFound:
		return Notification{Severity: SeverityWarning, Title: "Not found", Message: msg}, true
	case apierr.KindNetwork:
		return Notification{Severity: SeverityError, Title: "Connection error", Message: msg}, true
	case apierr.KindServer:
		return Notification{Severity: SeverityError, Title: "Server error", Message: msg}, true
	default:
		return Notification{Severity: SeverityError, Title: "Error", Message: msg}, true
	}
}
