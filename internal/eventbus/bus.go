// Package eventbus is the in-process notification fan-out for datastore and
// document lifecycle events.
//
// Delivery is fire-and-forget and best-effort: publishers never learn about
// subscriber errors, and no ordering is guaranteed across subscribers.
// Deliveries run on a bounded goroutine pool so a slow subscriber cannot
// pile up unbounded goroutines. Subscribers must not re-enter the datastore
// from within a delivery.
package eventbus

import (
	"runtime"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/kartikbazzad/syncdb/internal/logger"
)

// Subscriber receives published events.
type Subscriber interface {
	OnEvent(e Event)
}

// SubscriberFunc adapts a function to Subscriber.
type SubscriberFunc func(e Event)

func (f SubscriberFunc) OnEvent(e Event) { f(e) }

// Bus is an in-memory event bus. All methods are safe for concurrent use.
type Bus struct {
	mu     sync.RWMutex
	subs   map[int]Subscriber
	nextID int
	closed bool
	pool   *ants.Pool
	logger *logger.Logger
}

// New creates a bus delivering events on a pool of at most workers
// goroutines (0 = NumCPU).
func New(workers int, log *logger.Logger) (*Bus, error) {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	pool, err := ants.NewPool(workers, ants.WithPanicHandler(func(v any) {
		log.Error("Event subscriber panic: %v", v)
	}))
	if err != nil {
		return nil, err
	}

	return &Bus{
		subs:   make(map[int]Subscriber),
		pool:   pool,
		logger: log,
	}, nil
}

// Subscribe registers a subscriber and returns a token for Unsubscribe.
func (b *Bus) Subscribe(sub Subscriber) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	b.subs[b.nextID] = sub
	return b.nextID
}

// Unsubscribe removes a subscriber by its token.
func (b *Bus) Unsubscribe(id int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subs, id)
}

// SubscriberCount returns the number of registered subscribers.
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Publish fans the event out to all current subscribers. The subscriber set
// is copied under the lock; deliveries happen asynchronously on the pool.
func (b *Bus) Publish(e Event) {
	b.mu.RLock()
	if b.closed || len(b.subs) == 0 {
		b.mu.RUnlock()
		return
	}
	subList := make([]Subscriber, 0, len(b.subs))
	for _, sub := range b.subs {
		subList = append(subList, sub)
	}
	b.mu.RUnlock()

	for _, sub := range subList {
		sub := sub
		if err := b.pool.Submit(func() {
			sub.OnEvent(e)
		}); err != nil {
			// Pool released mid-publish; deliver on a plain goroutine so
			// the event is not lost.
			b.logger.Warn("Event pool submit failed: %v", err)
			go sub.OnEvent(e)
		}
	}
}

// Close drains the delivery pool. Events published after Close are dropped.
func (b *Bus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	b.mu.Unlock()

	if err := b.pool.ReleaseTimeout(3 * time.Second); err != nil {
		b.logger.Warn("Event pool release timed out: %v", err)
	}
}
