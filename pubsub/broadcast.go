// Package pubsub implements a multi-producer, multi-consumer broadcast
// primitive tailored to the store's pub/sub registry: every subscriber
// gets its own bounded buffer, a publisher never blocks on a slow
// subscriber, and a subscriber that falls behind silently drops the
// oldest buffered messages rather than stalling the channel.
//
// Go has no native broadcast channel with these semantics (a plain
// channel is single-consumer once a value is taken, and a closed
// channel cannot signal "you lagged" to a reader); this is the ring
// buffer + mutex/condvar design spec.md's design notes call for when no
// native primitive exists.
package pubsub

import "sync"

// Broadcaster fans messages out to an arbitrary number of independent
// subscribers, each with its own bounded ring buffer.
type Broadcaster struct {
	mu          sync.Mutex
	bufferSize  int
	subscribers map[*Subscription]struct{}
}

// NewBroadcaster creates a broadcaster whose subscribers each buffer up
// to bufferSize pending messages before the oldest is dropped.
func NewBroadcaster(bufferSize int) *Broadcaster {
	if bufferSize <= 0 {
		bufferSize = 1024
	}
	return &Broadcaster{
		bufferSize:  bufferSize,
		subscribers: make(map[*Subscription]struct{}),
	}
}

// Subscribe creates a new Subscription bound to this broadcaster.
func (b *Broadcaster) Subscribe() *Subscription {
	sub := &Subscription{
		broadcaster: b,
		notify:      make(chan struct{}, 1),
		capacity:    b.bufferSize,
	}
	b.mu.Lock()
	b.subscribers[sub] = struct{}{}
	b.mu.Unlock()
	return sub
}

// Publish enqueues message on every live subscriber and returns the
// number of subscribers it was handed to. Overflowing a subscriber's
// ring buffer drops that subscriber's oldest message and sets its lag
// flag instead of blocking the publisher.
func (b *Broadcaster) Publish(message []byte) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := 0
	for sub := range b.subscribers {
		sub.enqueue(message)
		n++
	}
	return n
}

// SubscriberCount returns the current number of live subscribers.
func (b *Broadcaster) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subscribers)
}

// unsubscribe removes sub from the broadcaster. Called when a
// subscription is closed (the subscribe loop drops a channel, or a
// connection tears down).
func (b *Broadcaster) unsubscribe(sub *Subscription) {
	b.mu.Lock()
	delete(b.subscribers, sub)
	b.mu.Unlock()
}

// Subscription is one subscriber's receive side: a bounded ring buffer
// plus a lag flag, guarded by its own mutex so the publisher never
// contends with other subscribers' consumers.
type Subscription struct {
	broadcaster *Broadcaster

	mu       sync.Mutex
	buf      [][]byte
	lagged   bool
	capacity int
	closed   bool

	notify chan struct{}
}

func (s *Subscription) enqueue(message []byte) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	if len(s.buf) >= s.capacity {
		// Drop the oldest buffered message and flag the lag; the
		// publisher must never block on a slow subscriber.
		s.buf = s.buf[1:]
		s.lagged = true
	}
	s.buf = append(s.buf, message)
	s.mu.Unlock()

	select {
	case s.notify <- struct{}{}:
	default:
	}
}

// Recv blocks until a message is available, or until closeSignal fires.
// A lagged gap is swallowed transparently: the caller simply resumes
// with the next buffered message, per spec.md's "silently resumes"
// contract. ok is false when closeSignal fires while nothing is
// buffered, or when the subscription has been closed with no more
// buffered messages.
func (s *Subscription) Recv(closeSignal <-chan struct{}) (msg []byte, ok bool) {
	for {
		s.mu.Lock()
		if len(s.buf) > 0 {
			msg = s.buf[0]
			s.buf = s.buf[1:]
			s.lagged = false
			s.mu.Unlock()
			return msg, true
		}
		if s.closed {
			s.mu.Unlock()
			return nil, false
		}
		s.mu.Unlock()

		select {
		case <-s.notify:
		case <-closeSignal:
			return nil, false
		}
	}
}

// Close detaches the subscription from its broadcaster and wakes any
// blocked Recv.
func (s *Subscription) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.broadcaster.unsubscribe(s)

	select {
	case s.notify <- struct{}{}:
	default:
	}
}
