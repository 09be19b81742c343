package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/parkline/parkpos/common/audit"
	"github.com/parkline/parkpos/common/logging"
	"github.com/parkline/parkpos/common/messaging"
)

// Event is published on messaging.SubjectSessionEvents whenever a terminal
// invalidates its session.
type Event struct {
	ID       string    `json:"id"`
	Type     string    `json:"type"`
	Reason   Reason    `json:"reason"`
	Username string    `json:"username"`
	Origin   string    `json:"origin"`
	At       time.Time `json:"at"`

	// Signature authenticates the event when terminals share a signing key.
	Signature string `json:"signature,omitempty"`
}

// payload is the signed part of the event besides id, time and origin.
func (e Event) payload() []byte {
	return []byte(e.Type + "\x00" + string(e.Reason) + "\x00" + e.Username)
}

const eventInvalidated = "session.invalidated"

// Broadcaster keeps terminals logged in as the same operator consistent: a
// local invalidation is published, and a remote one for the same username
// invalidates this terminal too.
type Broadcaster struct {
	bus    messaging.Client
	store  *Store
	origin string
	logger *logging.Logger

	signer *audit.EventSigner

	sub messaging.Subscription
}

// BroadcastOption configures a Broadcaster.
type BroadcastOption func(*Broadcaster)

// WithSigner signs published events and drops received events whose
// signature does not verify.
func WithSigner(s *audit.EventSigner) BroadcastOption {
	return func(b *Broadcaster) {
		b.signer = s
	}
}

// NewBroadcaster wires store to bus. origin identifies this terminal.
func NewBroadcaster(bus messaging.Client, store *Store, origin string, logger *logging.Logger, opts ...BroadcastOption) *Broadcaster {
	if logger == nil {
		logger = logging.Discard()
	}
	b := &Broadcaster{
		bus:    bus,
		store:  store,
		origin: origin,
		logger: logger.With(logging.Component("session-broadcast")),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Start subscribes to remote events and begins publishing local ones.
// onRemote runs after a remote event invalidated this terminal.
func (b *Broadcaster) Start(onRemote func(ctx context.Context)) error {
	sub, err := b.bus.Subscribe(messaging.SubjectSessionEvents, func(ctx context.Context, msg *messaging.Message) error {
		return b.handle(ctx, msg, onRemote)
	})
	if err != nil {
		return fmt.Errorf("subscribe session events: %w", err)
	}
	b.sub = sub

	b.store.OnInvalidate(b.publish)
	return nil
}

// Stop ends the subscription.
func (b *Broadcaster) Stop() error {
	if b.sub == nil {
		return nil
	}
	return b.sub.Unsubscribe()
}

func (b *Broadcaster) publish(ctx context.Context, reason Reason, prev *Profile) {
	if reason == ReasonRemote || prev == nil {
		return
	}
	ev := Event{
		ID:       uuid.NewString(),
		Type:     eventInvalidated,
		Reason:   reason,
		Username: prev.Username,
		Origin:   b.origin,
		At:       time.Now().UTC(),
	}
	if b.signer != nil {
		ev.Signature = b.signer.Sign(ev.ID, ev.At, ev.Origin, ev.payload())
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}
	if err := b.bus.Publish(ctx, messaging.SubjectSessionEvents, data); err != nil {
		b.logger.WarnContext(ctx, "publish session event", logging.Error(err))
	}
}

func (b *Broadcaster) handle(ctx context.Context, msg *messaging.Message, onRemote func(ctx context.Context)) error {
	var ev Event
	if err := json.Unmarshal(msg.Data, &ev); err != nil {
		return fmt.Errorf("decode session event: %w", err)
	}
	if ev.Type != eventInvalidated || ev.Origin == b.origin {
		return nil
	}
	if b.signer != nil && !b.signer.Verify(ev.ID, ev.At, ev.Origin, ev.payload(), ev.Signature) {
		b.logger.WarnContext(ctx, "dropping unsigned or forged session event", slog.String("origin", ev.Origin))
		return nil
	}

	p := b.store.Profile(ctx)
	if p == nil || ev.Username == "" || p.Username != ev.Username {
		return nil
	}

	b.logger.InfoContext(ctx, "session invalidated by another terminal",
		slog.String("origin", ev.Origin), logging.Reason(string(ev.Reason)))
	b.store.Invalidate(ctx, ReasonRemote)
	if onRemote != nil {
		onRemote(ctx)
	}
	return nil
}
