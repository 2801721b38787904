// Package broadcast fans out "hunt changed" signals to in-process
// subscribers keyed by hunt id.
//
// A notification carries no payload. Subscribers are expected to reload
// authoritative state when their callback runs. Delivery is at-least-once
// per Notify and coalescing: several notifications that arrive while a
// callback is still running collapse into one follow-up call. Subscribers
// are independent; a slow callback only delays its own subscription.
package broadcast

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
)

// DefaultDeliveryTimeout bounds a single callback invocation.
const DefaultDeliveryTimeout = 5 * time.Second

// ErrClosed is returned by Subscribe after Close.
var ErrClosed = errors.New("broadcaster closed")

// Callback is invoked after a change to huntID. ctx expires after the
// delivery timeout or when the broadcaster closes.
type Callback func(ctx context.Context, huntID uuid.UUID)

// Subscription is the handle returned by Subscribe.
type Subscription struct {
	id       uint64
	huntID   uuid.UUID
	callback Callback
	pending  chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// HuntID returns the hunt the subscription listens to.
func (s *Subscription) HuntID() uuid.UUID {
	return s.huntID
}

func (s *Subscription) stop() {
	s.stopOnce.Do(func() { close(s.done) })
}

// Broadcaster keeps the per-hunt subscriber sets.
type Broadcaster struct {
	mu     sync.RWMutex
	subs   map[uuid.UUID]map[uint64]*Subscription
	closed bool

	nextID          atomic.Uint64
	deliveryTimeout time.Duration
	logger          *log.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Option configures a Broadcaster.
type Option func(*Broadcaster)

// WithDeliveryTimeout overrides DefaultDeliveryTimeout.
func WithDeliveryTimeout(d time.Duration) Option {
	return func(b *Broadcaster) {
		if d > 0 {
			b.deliveryTimeout = d
		}
	}
}

// New creates a Broadcaster.
func New(logger *log.Logger, opts ...Option) *Broadcaster {
	ctx, cancel := context.WithCancel(context.Background())
	b := &Broadcaster{
		subs:            make(map[uuid.UUID]map[uint64]*Subscription),
		deliveryTimeout: DefaultDeliveryTimeout,
		logger:          logger.WithPrefix("broadcast"),
		ctx:             ctx,
		cancel:          cancel,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Subscribe registers callback for changes to huntID.
func (b *Broadcaster) Subscribe(huntID uuid.UUID, callback Callback) (*Subscription, error) {
	if callback == nil {
		return nil, errors.New("nil callback")
	}

	sub := &Subscription{
		id:       b.nextID.Add(1),
		huntID:   huntID,
		callback: callback,
		pending:  make(chan struct{}, 1),
		done:     make(chan struct{}),
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, ErrClosed
	}
	set, ok := b.subs[huntID]
	if !ok {
		set = make(map[uint64]*Subscription)
		b.subs[huntID] = set
	}
	set[sub.id] = sub
	total := len(set)
	b.wg.Add(1)
	b.mu.Unlock()

	go b.run(sub)

	b.logger.Debug("Subscriber added", "hunt", huntID, "subscribers", total)
	return sub, nil
}

// Unsubscribe removes sub. It is safe to call more than once.
func (b *Broadcaster) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}

	b.mu.Lock()
	remaining := 0
	if set, ok := b.subs[sub.huntID]; ok {
		delete(set, sub.id)
		remaining = len(set)
		if remaining == 0 {
			delete(b.subs, sub.huntID)
		}
	}
	b.mu.Unlock()

	sub.stop()
	b.logger.Debug("Subscriber removed", "hunt", sub.huntID, "subscribers", remaining)
}

// Notify signals every subscriber of huntID and returns how many were
// registered. It never blocks on subscribers.
func (b *Broadcaster) Notify(huntID uuid.UUID) int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	set := b.subs[huntID]
	for _, sub := range set {
		select {
		case sub.pending <- struct{}{}:
		default:
			// A delivery is already queued and will observe this change.
		}
	}

	b.logger.Debug("Notified hunt subscribers", "hunt", huntID, "subscribers", len(set))
	return len(set)
}

// SubscriberCount returns the number of live subscriptions for huntID.
func (b *Broadcaster) SubscriberCount(huntID uuid.UUID) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[huntID])
}

// Close stops every subscription and waits for running callbacks to return.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	for huntID, set := range b.subs {
		for _, sub := range set {
			sub.stop()
		}
		delete(b.subs, huntID)
	}
	b.mu.Unlock()

	b.cancel()
	b.wg.Wait()
}

func (b *Broadcaster) run(sub *Subscription) {
	defer b.wg.Done()

	for {
		select {
		case <-sub.done:
			return
		case <-b.ctx.Done():
			return
		case <-sub.pending:
			b.deliver(sub)
		}
	}
}

func (b *Broadcaster) deliver(sub *Subscription) {
	ctx, cancel := context.WithTimeout(b.ctx, b.deliveryTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("Subscriber callback panicked", "hunt", sub.huntID, "panic", r)
		}
	}()

	start := time.Now()
	sub.callback(ctx, sub.huntID)
	if elapsed := time.Since(start); elapsed > b.deliveryTimeout {
		b.logger.Warn("Subscriber callback exceeded delivery timeout", "hunt", sub.huntID, "elapsed", elapsed)
	}
}
