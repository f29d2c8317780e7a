package relay

import (
	"sync"
	"sync/atomic"
)

// DefaultCapacity is the number of pending values buffered per subscriber.
const DefaultCapacity = 100

// DropFunc is invoked whenever a subscriber loses its oldest unread value.
type DropFunc func()

// Topic fans out every published value to all current subscribers.
//
// Each subscriber has its own bounded backlog. When a backlog is full the
// oldest unread value of that subscriber is discarded, so Publish never
// waits for a slow reader and a slow reader never holds back the others.
type Topic[T any] struct {
	mu       sync.RWMutex
	capacity int
	subs     map[*Subscription[T]]struct{}
	onDrop   DropFunc
}

// NewTopic creates a topic with the given per-subscriber capacity.
func NewTopic[T any](capacity int, onDrop DropFunc) (*Topic[T], error) {
	if capacity <= 0 {
		return nil, ErrInvalidCapacity
	}
	return &Topic[T]{
		capacity: capacity,
		subs:     make(map[*Subscription[T]]struct{}),
		onDrop:   onDrop,
	}, nil
}

// Subscribe attaches a new receiver with an independent cursor.
// Only values published after Subscribe returns are delivered.
func (t *Topic[T]) Subscribe() *Subscription[T] {
	sub := &Subscription[T]{
		topic: t,
		ch:    make(chan T, t.capacity),
	}

	t.mu.Lock()
	t.subs[sub] = struct{}{}
	t.mu.Unlock()

	return sub
}

// Publish delivers v to every subscriber except from, which may be nil.
// It returns the number of subscribers the value was queued for.
func (t *Topic[T]) Publish(v T, from *Subscription[T]) int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	delivered := 0
	for sub := range t.subs {
		if sub == from {
			continue
		}
		if sub.offer(v) && t.onDrop != nil {
			t.onDrop()
		}
		delivered++
	}
	return delivered
}

// Len returns the number of current subscribers.
func (t *Topic[T]) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return len(t.subs)
}

func (t *Topic[T]) unsubscribe(sub *Subscription[T]) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.subs[sub]; !ok {
		return
	}
	delete(t.subs, sub)
	// No publisher holds the read lock here, so nothing can still be sending.
	close(sub.ch)
}

// Subscription is the receive side of a Topic.
type Subscription[T any] struct {
	topic   *Topic[T]
	ch      chan T
	mu      sync.Mutex
	dropped atomic.Uint64
}

// C returns the channel values are delivered on. It is closed by Close.
func (s *Subscription[T]) C() <-chan T {
	return s.ch
}

// Dropped returns how many values this subscriber lost to overflow.
func (s *Subscription[T]) Dropped() uint64 {
	return s.dropped.Load()
}

// Close detaches the subscription from its topic. Safe to call repeatedly.
func (s *Subscription[T]) Close() {
	s.topic.unsubscribe(s)
}

// offer queues v, evicting the oldest unread value when the backlog is full.
// It reports whether a value was evicted.
func (s *Subscription[T]) offer(v T) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	evicted := false
	for {
		select {
		case s.ch <- v:
			return evicted
		default:
		}

		select {
		case <-s.ch:
			s.dropped.Add(1)
			evicted = true
		default:
			// The reader drained a slot between the two selects; retry the send.
		}
	}
}
