// Package storage provides the key/value backends the session layer sits
// on: a persistent file store (survives restarts, shared by every terminal
// on the machine) and tab-scoped stores (memory or Redis) that live only
// as long as one terminal session.
package storage

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when the key is absent.
var ErrNotFound = errors.New("storage: key not found")

// Backend is a string key/value store.
type Backend interface {
	// Get returns the value stored under key, or ErrNotFound.
	Get(ctx context.Context, key string) (string, error)
	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key, value string) error
	// Remove deletes key. Removing an absent key is not an error.
	Remove(ctx context.Context, key string) error
	// Keys lists every key currently stored.
	Keys(ctx context.Context) ([]string, error)
}
