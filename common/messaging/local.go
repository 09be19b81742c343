package messaging

import (
	"context"
	"sync"
	"time"
)

// LocalBus is an in-process Client. Handlers run synchronously on the
// publishing goroutine.
type LocalBus struct {
	mu     sync.RWMutex
	subs   map[string][]*localSub
	closed bool
}

// NewLocalBus creates an empty in-process bus.
func NewLocalBus() *LocalBus {
	return &LocalBus{subs: make(map[string][]*localSub)}
}

// Publish delivers data to every current subscriber of subject.
func (b *LocalBus) Publish(ctx context.Context, subject string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return ErrClosed
	}
	subs := append([]*localSub(nil), b.subs[subject]...)
	b.mu.RUnlock()

	msg := &Message{Subject: subject, Data: data, Timestamp: time.Now()}
	for _, s := range subs {
		if s.active() {
			_ = s.handler(ctx, msg)
		}
	}
	return nil
}

// Subscribe registers handler for subject.
func (b *LocalBus) Subscribe(subject string, handler MessageHandler) (Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, ErrClosed
	}
	s := &localSub{bus: b, subject: subject, handler: handler, valid: true}
	b.subs[subject] = append(b.subs[subject], s)
	return s, nil
}

// Close drops all subscriptions.
func (b *LocalBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, subs := range b.subs {
		for _, s := range subs {
			s.invalidate()
		}
	}
	b.subs = make(map[string][]*localSub)
	b.closed = true
	return nil
}

func (b *LocalBus) remove(target *localSub) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.subs[target.subject]
	for i, s := range subs {
		if s == target {
			b.subs[target.subject] = append(subs[:i], subs[i+1:]...)
			return
		}
	}
}

type localSub struct {
	bus     *LocalBus
	subject string
	handler MessageHandler

	mu    sync.Mutex
	valid bool
}

func (s *localSub) Unsubscribe() error {
	s.invalidate()
	s.bus.remove(s)
	return nil
}

func (s *localSub) Subject() string { return s.subject }

func (s *localSub) active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.valid
}

func (s *localSub) invalidate() {
	s.mu.Lock()
	s.valid = false
	s.mu.Unlock()
}
