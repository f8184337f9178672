// Package fanout delivers published values to any number of subscribers
// without letting a slow subscriber stall the publisher.
package fanout

import (
	"sync"
	"sync/atomic"
)

const DefaultBuffer = 100

// Hub is safe for concurrent use. A subscriber whose buffer is full misses
// the value; Dropped counts those misses.
type Hub[T any] struct {
	buffer int

	mu     sync.Mutex
	nextID uint64
	subs   map[uint64]chan T
	closed bool

	dropped atomic.Int64
}

// Subscription is one subscriber's view of a Hub. C is closed by Cancel or
// when the hub closes.
type Subscription[T any] struct {
	C <-chan T

	hub *Hub[T]
	id  uint64
}

// NewHub returns a hub whose subscribers buffer up to buffer values;
// non-positive means DefaultBuffer.
func NewHub[T any](buffer int) *Hub[T] {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &Hub[T]{
		buffer: buffer,
		subs:   make(map[uint64]chan T),
	}
}

// Subscribe joins the hub. On a closed hub the subscription starts closed.
func (h *Hub[T]) Subscribe() *Subscription[T] {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		ch := make(chan T)
		close(ch)
		return &Subscription[T]{C: ch}
	}
	h.nextID++
	ch := make(chan T, h.buffer)
	h.subs[h.nextID] = ch
	return &Subscription[T]{C: ch, hub: h, id: h.nextID}
}

// Cancel leaves the hub and closes C. It reports whether this call removed
// the subscription, so callers can keep their own counts exact.
func (s *Subscription[T]) Cancel() bool {
	if s == nil || s.hub == nil {
		return false
	}
	h := s.hub
	h.mu.Lock()
	defer h.mu.Unlock()
	ch, ok := h.subs[s.id]
	if !ok {
		return false
	}
	delete(h.subs, s.id)
	close(ch)
	return true
}

// Publish offers value to every subscriber and returns how many took it.
// Sends happen under the lock so Cancel cannot close a channel mid-send.
func (h *Hub[T]) Publish(value T) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	delivered := 0
	for _, ch := range h.subs {
		select {
		case ch <- value:
			delivered++
		default:
			h.dropped.Add(1)
		}
	}
	return delivered
}

func (h *Hub[T]) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

func (h *Hub[T]) Dropped() int64 {
	return h.dropped.Load()
}

// Close closes every subscription and returns how many were open. Later
// calls return 0.
func (h *Hub[T]) Close() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return 0
	}
	h.closed = true
	closed := len(h.subs)
	for id, ch := range h.subs {
		delete(h.subs, id)
		close(ch)
	}
	return closed
}
