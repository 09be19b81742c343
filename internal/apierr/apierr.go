// Package apierr classifies backend and transport failures so callers can
// branch on them (re-authenticate, redirect, show a message) without
// inspecting raw HTTP responses.
package apierr

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
)

// Business error codes returned by the backend.
const (
	CodeMustFinishShift = "MUST_FINISH_SHIFT_BEFORE_LOGOUT"
)

// Kind is the coarse category of a failure.
type Kind int

const (
	KindUnknown Kind = iota
	KindUnauthorized
	KindBusiness
	KindValidation
	KindNotFound
	KindServer
	KindNetwork
	// KindCanceled is a request abandoned by its caller, e.g. because the
	// route that issued it was left. It is not a failure to report.
	KindCanceled
)

func (k Kind) String() string {
	switch k {
	case KindUnauthorized:
		return "unauthorized"
	case KindBusiness:
		return "business"
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindServer:
		return "server"
	case KindNetwork:
		return "network"
	case KindCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// Error is a non-2xx backend response.
type Error struct {
	Status  int
	Code    string
	Message string
	Method  string
	Path    string
}

func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s: status %d", e.Method, e.Path, e.Status)
	if e.Code != "" {
		fmt.Fprintf(&b, " (%s)", e.Code)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	return b.String()
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Error   string `json:"error"`
	Detail  string `json:"detail"`
}

// FromResponse builds an *Error from a failed response, reading (and
// consuming) at most 64 KiB of its body.
func FromResponse(resp *http.Response) *Error {
	e := &Error{Status: resp.StatusCode}
	if resp.Request != nil {
		e.Method = resp.Request.Method
		e.Path = resp.Request.URL.Path
	}

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	var body errorBody
	if err := json.Unmarshal(raw, &body); err == nil {
		e.Code = body.Code
		e.Message = firstNonEmpty(body.Message, body.Error, body.Detail)
	} else if text := strings.TrimSpace(string(raw)); text != "" && len(text) < 512 {
		e.Message = text
	}
	return e
}

// Status returns the HTTP status carried by err, or 0.
func Status(err error) int {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}

// HasCode reports whether err carries the backend business code.
func HasCode(err error, code string) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Code == code
}

// Classify maps err to a Kind.
func Classify(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	if IsCanceled(err) {
		return KindCanceled
	}

	var apiErr *Error
	if errors.As(err, &apiErr) {
		switch s := apiErr.Status; {
		case s == 0:
			return KindNetwork
		case s == http.StatusUnauthorized:
			return KindUnauthorized
		case s == http.StatusForbidden:
			return KindBusiness
		case s == http.StatusNotFound:
			return KindNotFound
		case s == http.StatusPreconditionFailed, s == http.StatusBadRequest, s == http.StatusUnprocessableEntity, s == http.StatusConflict:
			return KindValidation
		case s >= 500:
			return KindServer
		default:
			return KindUnknown
		}
	}

	if IsNetwork(err) {
		return KindNetwork
	}
	return KindUnknown
}

// IsCanceled reports whether err stems from a cancelled context.
func IsCanceled(err error) bool {
	return errors.Is(err, context.Canceled)
}

// IsNetwork reports whether err looks like a connectivity failure rather
// than a backend answer. Cancellation and client-side request errors such
// as an unsupported scheme are not connectivity failures.
func IsNetwork(err error) bool {
	if err == nil || IsCanceled(err) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	// *url.Error satisfies net.Error for every client failure, so only its
	// timeout flag and the concrete dial and resolver errors count.
	var timeout interface{ Timeout() bool }
	if errors.As(err, &timeout) && timeout.Timeout() {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) && (errors.Is(urlErr.Err, io.EOF) || errors.Is(urlErr.Err, io.ErrUnexpectedEOF)) {
		return true
	}

	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "timeout") || strings.Contains(msg, "network") || strings.Contains(msg, "connection refused")
}

// Generic user-facing messages.
const (
	MsgConnection = "Could not reach the server. Check your connection and try again."
	MsgGeneric    = "The operation could not be completed."
	MsgSession    = "Your session has expired. Please log in again."
)

// UserMessage returns text suitable for showing to an operator: the
// backend's own message when it sent one, a fixed text otherwise.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	switch Classify(err) {
	case KindNetwork:
		return MsgConnection
	case KindUnauthorized:
		return MsgSession
	}

	var apiErr *Error
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return MsgGeneric
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
