// Package requestid carries per-request correlation ids through contexts.
package requestid

import (
	"context"

	"github.com/google/uuid"
)

// Header is the HTTP header the id travels in.
const Header = "X-Request-ID"

type contextKey string

const key = contextKey("request-id")

// Ensure returns ctx carrying a request id, generating a new UUID when ctx
// has none yet, together with the id itself.
func Ensure(ctx context.Context) (context.Context, string) {
	if id := Get(ctx); id != "" {
		return ctx, id
	}
	id := uuid.New().String()
	return context.WithValue(ctx, key, id), id
}

// With stores id in ctx.
func With(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, key, id)
}

// Get extracts the request id from the context.
// Returns empty string if not found.
func Get(ctx context.Context) string {
	if id, ok := ctx.Value(key).(string); ok {
		return id
	}
	return ""
}
