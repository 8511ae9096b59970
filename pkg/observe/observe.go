// Package observe provides single-writer broadcast primitives for exposing
// engine state to any number of readers. A Value replays its current state
// to new subscribers; a Stream only delivers values published after
// subscription. Both guarantee in-order delivery per subscriber and never
// block the writer: each subscriber drains its own queue on a dedicated
// goroutine.
package observe

import (
	"sync"
)

// subscriber buffers published values for one consumer. The queue is
// unbounded so a slow consumer delays only itself.
type subscriber[T any] struct {
	mu    sync.Mutex
	cond  *sync.Cond
	queue []T
	done  bool

	out      chan T
	canceled chan struct{}
}

func newSubscriber[T any]() *subscriber[T] {
	s := &subscriber[T]{
		out:      make(chan T),
		canceled: make(chan struct{}),
	}
	s.cond = sync.NewCond(&s.mu)
	go s.pump()
	return s
}

func (s *subscriber[T]) push(v T) {
	s.mu.Lock()
	if !s.done {
		s.queue = append(s.queue, v)
		s.cond.Signal()
	}
	s.mu.Unlock()
}

func (s *subscriber[T]) pump() {
	defer close(s.out)
	for {
		s.mu.Lock()
		for len(s.queue) == 0 && !s.done {
			s.cond.Wait()
		}
		if s.done && len(s.queue) == 0 {
			s.mu.Unlock()
			return
		}
		v := s.queue[0]
		s.queue = s.queue[1:]
		s.mu.Unlock()

		select {
		case s.out <- v:
		case <-s.canceled:
			return
		}
	}
}

func (s *subscriber[T]) cancel() {
	s.mu.Lock()
	if s.done {
		s.mu.Unlock()
		return
	}
	s.done = true
	s.queue = nil
	close(s.canceled)
	s.cond.Signal()
	s.mu.Unlock()
}

// Value is an observable holding a current value. Subscribers receive the
// value at subscription time (if one has been set) followed by every
// subsequent Set, in order. Only the owning component may call Set.
type Value[T any] struct {
	mu   sync.Mutex
	cur  T
	has  bool
	subs map[uint64]*subscriber[T]
	next uint64
}

// NewValue creates an empty Value.
func NewValue[T any]() *Value[T] {
	return &Value[T]{subs: make(map[uint64]*subscriber[T])}
}

// Set publishes a new current value to all subscribers.
func (v *Value[T]) Set(val T) {
	v.mu.Lock()
	v.cur = val
	v.has = true
	for _, s := range v.subs {
		s.push(val)
	}
	v.mu.Unlock()
}

// Get returns the current value. The second return is false if Set has
// never been called.
func (v *Value[T]) Get() (T, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.cur, v.has
}

// Subscribe registers a new consumer. The returned cancel function must be
// called when the consumer is done; afterwards the channel is closed.
func (v *Value[T]) Subscribe() (<-chan T, func()) {
	s := newSubscriber[T]()
	v.mu.Lock()
	id := v.next
	v.next++
	v.subs[id] = s
	if v.has {
		s.push(v.cur)
	}
	v.mu.Unlock()

	cancel := func() {
		v.mu.Lock()
		delete(v.subs, id)
		v.mu.Unlock()
		s.cancel()
	}
	return s.out, cancel
}

// Stream is a fire-and-forget broadcast channel with no replay, used for
// transient values such as notifications.
type Stream[T any] struct {
	mu   sync.Mutex
	subs map[uint64]*subscriber[T]
	next uint64
}

// NewStream creates an empty Stream.
func NewStream[T any]() *Stream[T] {
	return &Stream[T]{subs: make(map[uint64]*subscriber[T])}
}

// Publish delivers v to all current subscribers.
func (s *Stream[T]) Publish(v T) {
	s.mu.Lock()
	for _, sub := range s.subs {
		sub.push(v)
	}
	s.mu.Unlock()
}

// Subscribe registers a new consumer; see Value.Subscribe.
func (s *Stream[T]) Subscribe() (<-chan T, func()) {
	sub := newSubscriber[T]()
	s.mu.Lock()
	id := s.next
	s.next++
	s.subs[id] = sub
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
		sub.cancel()
	}
	return sub.out, cancel
}
