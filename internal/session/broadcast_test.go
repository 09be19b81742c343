package session

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parkline/parkpos/common/audit"
	"github.com/parkline/parkpos/common/messaging"
	"github.com/parkline/parkpos/internal/storage"
)

func TestBroadcaster_PropagatesLogout(t *testing.T) {
	ctx := context.Background()
	bus := messaging.NewLocalBus()
	defer bus.Close()

	// Two terminals on different machines, same operator.
	storeA := NewStore(storage.NewMemory(), storage.NewMemory(), nil)
	storeB := NewStore(storage.NewMemory(), storage.NewMemory(), nil)
	require.NoError(t, storeA.SetSession(ctx, "tok-a", Profile{Username: "cashier1"}))
	require.NoError(t, storeB.SetSession(ctx, "tok-b", Profile{Username: "cashier1"}))

	a := NewBroadcaster(bus, storeA, "term-a", nil)
	b := NewBroadcaster(bus, storeB, "term-b", nil)

	remoteA, remoteB := 0, 0
	require.NoError(t, a.Start(func(ctx context.Context) { remoteA++ }))
	require.NoError(t, b.Start(func(ctx context.Context) { remoteB++ }))
	defer a.Stop()
	defer b.Stop()

	storeA.Invalidate(ctx, ReasonLogout)

	assert.False(t, storeA.IsAuthenticated(ctx))
	assert.False(t, storeB.IsAuthenticated(ctx))
	assert.Equal(t, 0, remoteA)
	assert.Equal(t, 1, remoteB)
}

func TestBroadcaster_IgnoresOtherOperators(t *testing.T) {
	ctx := context.Background()
	bus := messaging.NewLocalBus()
	defer bus.Close()

	storeA := NewStore(storage.NewMemory(), nil, nil)
	storeB := NewStore(storage.NewMemory(), nil, nil)
	require.NoError(t, storeA.SetSession(ctx, "tok-a", Profile{Username: "cashier1"}))
	require.NoError(t, storeB.SetSession(ctx, "tok-b", Profile{Username: "cashier2"}))

	require.NoError(t, NewBroadcaster(bus, storeA, "term-a", nil).Start(nil))
	require.NoError(t, NewBroadcaster(bus, storeB, "term-b", nil).Start(nil))

	storeA.Invalidate(ctx, ReasonUnauthorized)

	assert.False(t, storeA.IsAuthenticated(ctx))
	assert.True(t, storeB.IsAuthenticated(ctx))
}

func TestBroadcaster_NoEventWithoutSession(t *testing.T) {
	ctx := context.Background()
	bus := messaging.NewLocalBus()
	defer bus.Close()

	published := 0
	_, err := bus.Subscribe(messaging.SubjectSessionEvents, func(ctx context.Context, msg *messaging.Message) error {
		published++
		return nil
	})
	require.NoError(t, err)

	store := NewStore(storage.NewMemory(), nil, nil)
	require.NoError(t, NewBroadcaster(bus, store, "term-a", nil).Start(nil))

	store.Invalidate(ctx, ReasonLogout)
	assert.Zero(t, published)
}

func TestBroadcaster_EventPayload(t *testing.T) {
	ctx := context.Background()
	bus := messaging.NewLocalBus()
	defer bus.Close()

	var ev Event
	_, err := bus.Subscribe(messaging.SubjectSessionEvents, func(ctx context.Context, msg *messaging.Message) error {
		return json.Unmarshal(msg.Data, &ev)
	})
	require.NoError(t, err)

	store := NewStore(storage.NewMemory(), nil, nil)
	require.NoError(t, store.SetSession(ctx, "tok", Profile{Username: "cashier1"}))
	require.NoError(t, NewBroadcaster(bus, store, "term-a", nil).Start(nil))

	store.Invalidate(ctx, ReasonLogout)

	assert.NotEmpty(t, ev.ID)
	assert.Empty(t, ev.Signature)
	assert.Equal(t, eventInvalidated, ev.Type)
	assert.Equal(t, ReasonLogout, ev.Reason)
	assert.Equal(t, "cashier1", ev.Username)
	assert.Equal(t, "term-a", ev.Origin)
	assert.False(t, ev.At.IsZero())
}

func TestBroadcaster_MalformedEvent(t *testing.T) {
	store := NewStore(storage.NewMemory(), nil, nil)
	b := NewBroadcaster(messaging.NewLocalBus(), store, "term-a", nil)

	err := b.handle(context.Background(), &messaging.Message{Data: []byte("{")}, nil)
	assert.Error(t, err)
}

func TestBroadcaster_SignedEvents(t *testing.T) {
	ctx := context.Background()
	bus := messaging.NewLocalBus()
	defer bus.Close()

	signer := audit.NewEventSigner("shared-secret")
	storeA := NewStore(storage.NewMemory(), nil, nil)
	storeB := NewStore(storage.NewMemory(), nil, nil)
	require.NoError(t, storeA.SetSession(ctx, "tok-a", Profile{Username: "cashier1"}))
	require.NoError(t, storeB.SetSession(ctx, "tok-b", Profile{Username: "cashier1"}))

	require.NoError(t, NewBroadcaster(bus, storeA, "term-a", nil, WithSigner(signer)).Start(nil))
	require.NoError(t, NewBroadcaster(bus, storeB, "term-b", nil, WithSigner(signer)).Start(nil))

	storeA.Invalidate(ctx, ReasonLogout)
	assert.False(t, storeB.IsAuthenticated(ctx))
}

func TestBroadcaster_RejectsForgedEvents(t *testing.T) {
	ctx := context.Background()
	store := NewStore(storage.NewMemory(), nil, nil)
	require.NoError(t, store.SetSession(ctx, "tok", Profile{Username: "cashier1"}))
	b := NewBroadcaster(messaging.NewLocalBus(), store, "term-b", nil, WithSigner(audit.NewEventSigner("shared-secret")))

	forged := Event{
		ID:       "evt-1",
		Type:     eventInvalidated,
		Reason:   ReasonLogout,
		Username: "cashier1",
		Origin:   "intruder",
		At:       time.Now().UTC(),
	}
	forged.Signature = audit.NewEventSigner("guessed").Sign(forged.ID, forged.At, forged.Origin, forged.payload())
	data, err := json.Marshal(forged)
	require.NoError(t, err)

	require.NoError(t, b.handle(ctx, &messaging.Message{Data: data}, nil))
	assert.True(t, store.IsAuthenticated(ctx))

	unsigned := forged
	unsigned.Signature = ""
	data, err = json.Marshal(unsigned)
	require.NoError(t, err)

	require.NoError(t, b.handle(ctx, &messaging.Message{Data: data}, nil))
	assert.True(t, store.IsAuthenticated(ctx))
}
