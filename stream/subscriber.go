package stream

import (
	"sync"
	"sync/atomic"
)

// Subscriber is one attached feed consumer, usually a WebSocket
// connection. Delivery is credit-gated: each delivered event costs one
// credit and the consumer replenishes them as it drains its socket, so
// a stalled reader throttles itself instead of backing up the broker.
type Subscriber struct {
	id      string
	ch      chan *Event
	credits atomic.Int64
	closed  atomic.Bool

	mu     sync.RWMutex
	topics map[string]struct{}
}

func newSubscriber(id string, bufferSize int, initialCredits int64) *Subscriber {
	s := &Subscriber{
		id:     id,
		ch:     make(chan *Event, bufferSize),
		topics: make(map[string]struct{}),
	}
	s.credits.Store(initialCredits)
	return s
}

// ID returns the subscriber identifier.
func (s *Subscriber) ID() string { return s.id }

// C returns the read-only event channel.
func (s *Subscriber) C() <-chan *Event { return s.ch }

// AddCredits replenishes flow-control credits.
func (s *Subscriber) AddCredits(n int64) {
	s.credits.Add(n)
}

func (s *Subscriber) joinTopic(topic string) {
	s.mu.Lock()
	s.topics[topic] = struct{}{}
	s.mu.Unlock()
}

func (s *Subscriber) leaveTopic(topic string) {
	s.mu.Lock()
	delete(s.topics, topic)
	s.mu.Unlock()
}

// Topics returns a copy of the subscribed topic names.
func (s *Subscriber) Topics() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.topics))
	for t := range s.topics {
		out = append(out, t)
	}
	return out
}

// deliver hands an event to the subscriber without blocking. It
// reports false when the event was dropped: the subscriber is closed,
// out of credits, or its buffer is full.
func (s *Subscriber) deliver(evt *Event) bool {
	if s.closed.Load() {
		return false
	}

	// Spend one credit, or bail if none remain.
	for {
		current := s.credits.Load()
		if current <= 0 {
			return false
		}
		if s.credits.CompareAndSwap(current, current-1) {
			break
		}
	}

	select {
	case s.ch <- evt:
		return true
	default:
		// Buffer full: the delivery failed, so the credit goes back.
		s.credits.Add(1)
		return false
	}
}

// Close closes the subscriber channel. Safe to call multiple times.
func (s *Subscriber) Close() {
	if s.closed.CompareAndSwap(false, true) {
		close(s.ch)
	}
}
