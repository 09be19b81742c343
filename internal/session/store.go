// Package session owns the client's authentication state: the bearer
// credential, the operator profile and every tab-scoped cache derived from
// them. It is the only component that reads or writes those storage keys.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/parkline/parkpos/common/logging"
	"github.com/parkline/parkpos/internal/metrics"
	"github.com/parkline/parkpos/internal/storage"
)

// Storage keys.
const (
	KeyCredential = "auth_token"
	KeyProfile    = "user_data"
	KeyTimezone   = "user_timezone"

	// ParamsKeyPrefix prefixes tab-scoped parameter cache entries.
	ParamsKeyPrefix = "mt_params_"
)

// clearPatterns are matched (case-insensitively) as substrings of every
// stored key by Clear.
var clearPatterns = []string{"user", "auth", "token", ParamsKeyPrefix}

// Reason explains why a session was invalidated.
type Reason string

const (
	ReasonLogout       Reason = "logout"
	ReasonUnauthorized Reason = "unauthorized"
	ReasonRemote       Reason = "remote"
)

// InvalidateFunc is notified after the session has been invalidated.
// prev is the profile that was active before, nil if there was none.
type InvalidateFunc func(ctx context.Context, reason Reason, prev *Profile)

// Snapshot is the read-only view of the session that guards decide on.
type Snapshot struct {
	// Available is false when no persistent storage exists (headless or
	// server-side execution). Guards permit navigation in that case.
	Available          bool
	Authenticated      bool
	MustChangePassword bool
	Roles              []string
}

// Store is the persistence boundary for the credential and profile.
type Store struct {
	local  storage.Backend
	tab    storage.Backend
	logger *logging.Logger

	mu        sync.RWMutex
	listeners []InvalidateFunc
}

// NewStore creates a Store over the persistent (local) and tab-scoped
// backends. A nil local backend yields a store that is never
// authenticated; a nil tab backend disables tab-scoped caching.
func NewStore(local, tab storage.Backend, logger *logging.Logger) *Store {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Store{
		local:  local,
		tab:    tab,
		logger: logger.With(logging.Component("session")),
	}
}

// Available reports whether persistent storage exists.
func (s *Store) Available() bool {
	return s.local != nil
}

// Tab returns the tab-scoped backend, possibly nil.
func (s *Store) Tab() storage.Backend {
	return s.tab
}

// SetSession replaces any previous session with credential and profile.
// Writes are sequential: credential first, then profile.
func (s *Store) SetSession(ctx context.Context, credential string, profile Profile) error {
	if !s.Available() {
		s.logger.DebugContext(ctx, "storage unavailable, session not persisted")
		return nil
	}
	if credential == "" {
		return errors.New("session: empty credential")
	}

	s.Clear(ctx)

	raw, err := json.Marshal(profile.normalize())
	if err != nil {
		return fmt.Errorf("encode profile: %w", err)
	}
	if err := s.local.Set(ctx, KeyCredential, credential); err != nil {
		return fmt.Errorf("store credential: %w", err)
	}
	if err := s.local.Set(ctx, KeyProfile, string(raw)); err != nil {
		return fmt.Errorf("store profile: %w", err)
	}
	return nil
}

// Credential returns the stored bearer token, or "" when unset or when
// storage is unavailable or unreadable.
func (s *Store) Credential(ctx context.Context) string {
	if !s.Available() {
		return ""
	}
	v, err := s.local.Get(ctx, KeyCredential)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			s.logger.WarnContext(ctx, "credential unreadable", logging.Error(err))
		}
		return ""
	}
	return v
}

// Profile returns the stored profile. It is nil whenever no credential is
// present, so a profile is never observable without one.
func (s *Store) Profile(ctx context.Context) *Profile {
	if s.Credential(ctx) == "" {
		return nil
	}
	raw, err := s.local.Get(ctx, KeyProfile)
	if err != nil {
		return nil
	}

	var p Profile
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		s.logger.WarnContext(ctx, "profile unreadable", logging.Error(err))
		return nil
	}
	p = p.normalize()
	return &p
}

// IsAuthenticated reports whether a credential is stored.
func (s *Store) IsAuthenticated(ctx context.Context) bool {
	return s.Credential(ctx) != ""
}

// MustChangePassword reports the profile flag; false when unauthenticated.
func (s *Store) MustChangePassword(ctx context.Context) bool {
	p := s.Profile(ctx)
	return p != nil && p.MustChangePassword
}

// Snapshot captures the state guards need.
func (s *Store) Snapshot(ctx context.Context) Snapshot {
	snap := Snapshot{Available: s.Available()}
	if p := s.Profile(ctx); p != nil {
		snap.Authenticated = true
		snap.MustChangePassword = p.MustChangePassword
		snap.Roles = p.Roles
	} else {
		snap.Authenticated = s.IsAuthenticated(ctx)
	}
	return snap
}

// SetTimezone persists the operator's IANA timezone.
func (s *Store) SetTimezone(ctx context.Context, tz string) error {
	if !s.Available() {
		return nil
	}
	return s.local.Set(ctx, KeyTimezone, tz)
}

// Timezone returns the stored timezone or "".
func (s *Store) Timezone(ctx context.Context) string {
	if !s.Available() {
		return ""
	}
	v, err := s.local.Get(ctx, KeyTimezone)
	if err != nil {
		return ""
	}
	return v
}

// Clear removes the credential, the profile and every auxiliary key
// matching the clear patterns from both backends. Safe to call repeatedly.
func (s *Store) Clear(ctx context.Context) {
	for _, b := range []storage.Backend{s.local, s.tab} {
		if b == nil {
			continue
		}
		keys, err := b.Keys(ctx)
		if err != nil {
			s.logger.WarnContext(ctx, "list keys for clear", logging.Error(err))
			continue
		}
		for _, k := range keys {
			if !matchesClearPattern(k) {
				continue
			}
			if err := b.Remove(ctx, k); err != nil {
				s.logger.WarnContext(ctx, "remove session key", slog.String("key", k), logging.Error(err))
			}
		}
	}
}

// Invalidate clears the session and notifies listeners registered with
// OnInvalidate.
func (s *Store) Invalidate(ctx context.Context, reason Reason) {
	prev := s.Profile(ctx)
	s.Clear(ctx)
	metrics.SessionInvalidations.WithLabelValues(string(reason)).Inc()
	s.logger.InfoContext(ctx, "session invalidated", logging.Reason(string(reason)))

	s.mu.RLock()
	listeners := append([]InvalidateFunc(nil), s.listeners...)
	s.mu.RUnlock()

	for _, fn := range listeners {
		fn(ctx, reason, prev)
	}
}

// OnInvalidate registers fn to run after every Invalidate.
func (s *Store) OnInvalidate(fn InvalidateFunc) {
	s.mu.Lock()
	s.listeners = append(s.listeners, fn)
	s.mu.Unlock()
}

func matchesClearPattern(key string) bool {
	k := strings.ToLower(key)
	for _, p := range clearPatterns {
		if strings.Contains(k, p) {
			return true
		}
	}
	return false
}
