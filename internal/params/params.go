// Package params caches the backend-computed session parameters (active
// shift, vehicle types, permissions) per service code in tab-scoped
// storage. Entries live until the session store's clear sweep removes
// them; there is no TTL.
package params

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/parkline/parkpos/common/logging"
	"github.com/parkline/parkpos/internal/metrics"
	"github.com/parkline/parkpos/internal/session"
	"github.com/parkline/parkpos/internal/storage"
)

// DefaultScope is the API path segment the parameters endpoint lives under.
const DefaultScope = "operations"

// VehicleType is a vehicle class the service accepts at check-in.
type VehicleType struct {
	ID   int64  `json:"id"`
	Code string `json:"code"`
	Name string `json:"name"`
}

// Permissions are the cash operations the operator may perform.
type Permissions struct {
	CanManageCashExit    bool `json:"canManageCashExit"`
	CanCloseCashRegister bool `json:"canCloseCashRegister"`
	CanVoidTicket        bool `json:"canVoidTicket"`
}

// Parameters is the per-service configuration returned by the backend.
type Parameters struct {
	ServiceCode              string        `json:"serviceCode"`
	VehicleTypes             []VehicleType `json:"vehicleTypes"`
	ShiftConnectionHistoryID *int64        `json:"shiftConnectionHistoryId"`
	CashRegisterID           *int64        `json:"cashRegisterId"`
	ShiftOpen                bool          `json:"shiftOpen"`
	Permissions              Permissions   `json:"permissions"`
}

// Fetcher loads parameters from the backend.
type Fetcher interface {
	Params(ctx context.Context, scope, serviceCode string) (json.RawMessage, error)
}

// Cache serves Parameters from tab storage, fetching on a miss.
type Cache struct {
	store  *session.Store
	tab    storage.Backend
	fetch  Fetcher
	scope  string
	logger *logging.Logger
}

// New builds a cache over the store's tab-scoped backend. Without one,
// every Get goes to the backend.
func New(store *session.Store, fetch Fetcher, scope string, logger *logging.Logger) *Cache {
	if scope == "" {
		scope = DefaultScope
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &Cache{
		store:  store,
		tab:    store.Tab(),
		fetch:  fetch,
		scope:  scope,
		logger: logger.With(logging.Component("params")),
	}
}

// Key is the storage key for serviceCode. It matches the session clear
// patterns, so logout evicts it.
func Key(serviceCode string) string {
	return session.ParamsKeyPrefix + serviceCode
}

// Get returns the parameters for serviceCode, from the tab cache when a
// readable entry exists. A corrupt entry is evicted and refetched. Fetch
// errors are returned and nothing is cached. The entry is only written
// while the credential the fetch started under is still the stored one.
func (c *Cache) Get(ctx context.Context, serviceCode string) (*Parameters, error) {
	if p, ok := c.cached(ctx, serviceCode); ok {
		metrics.ParamsCacheLookups.WithLabelValues("hit").Inc()
		return p, nil
	}
	metrics.ParamsCacheLookups.WithLabelValues("miss").Inc()

	credential := c.store.Credential(ctx)
	raw, err := c.fetch.Params(ctx, c.scope, serviceCode)
	if err != nil {
		return nil, err
	}

	var p Parameters
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("decode params %s: %w", serviceCode, err)
	}

	c.save(ctx, serviceCode, credential, raw)
	return &p, nil
}

func (c *Cache) save(ctx context.Context, serviceCode, credential string, raw json.RawMessage) {
	if c.tab == nil || ctx.Err() != nil || !c.sameSession(ctx, credential) {
		c.logger.DebugContext(ctx, "params not cached", logging.ServiceCode(serviceCode))
		return
	}
	if err := c.tab.Set(ctx, Key(serviceCode), string(raw)); err != nil {
		c.logger.WarnContext(ctx, "cache params", logging.ServiceCode(serviceCode), logging.Error(err))
		return
	}
	// A clear sweep may have run between the check and the write.
	if !c.sameSession(ctx, credential) {
		c.Invalidate(ctx, serviceCode)
	}
}

func (c *Cache) sameSession(ctx context.Context, credential string) bool {
	return credential != "" && c.store.Credential(ctx) == credential
}

// Invalidate drops the entry for serviceCode, e.g. after the shift changed.
func (c *Cache) Invalidate(ctx context.Context, serviceCode string) {
	if c.tab == nil {
		return
	}
	if err := c.tab.Remove(ctx, Key(serviceCode)); err != nil {
		c.logger.WarnContext(ctx, "evict params", logging.ServiceCode(serviceCode), logging.Error(err))
	}
}

func (c *Cache) cached(ctx context.Context, serviceCode string) (*Parameters, bool) {
	if c.tab == nil {
		return nil, false
	}
	raw, err := c.tab.Get(ctx, Key(serviceCode))
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			c.logger.WarnContext(ctx, "read cached params", logging.ServiceCode(serviceCode), logging.Error(err))
		}
		return nil, false
	}

	var p Parameters
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		c.logger.DebugContext(ctx, "evicting corrupt params entry", logging.ServiceCode(serviceCode))
		metrics.ParamsCacheLookups.WithLabelValues("corrupt").Inc()
		c.Invalidate(ctx, serviceCode)
		return nil, false
	}
	return &p, true
}
