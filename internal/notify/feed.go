// Package notify is a small publish/subscribe helper. Subscribers hold an
// explicit Subscription and release it themselves; a Feed never keeps
// anything alive on its own behalf beyond the handler it was given.
package notify

import (
	"sort"
	"sync"
)

// Feed delivers values of one type to every current subscriber.
type Feed[T any] struct {
	mu   sync.Mutex
	next uint64
	subs map[uint64]func(T)
}

// Subscription is the handle returned by Subscribe.
type Subscription struct {
	once   sync.Once
	cancel func()
}

// Unsubscribe stops delivery. It is safe to call more than once.
func (s *Subscription) Unsubscribe() {
	if s == nil {
		return
	}
	s.once.Do(s.cancel)
}

// Subscribe registers fn. Handlers run synchronously on the publisher's
// goroutine, in subscription order, and must not block.
func (f *Feed[T]) Subscribe(fn func(T)) *Subscription {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.subs == nil {
		f.subs = make(map[uint64]func(T))
	}
	id := f.next
	f.next++
	f.subs[id] = fn

	return &Subscription{cancel: func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.subs, id)
	}}
}

// Publish hands v to every subscriber.
func (f *Feed[T]) Publish(v T) {
	f.mu.Lock()
	ids := make([]uint64, 0, len(f.subs))
	for id := range f.subs {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	handlers := make([]func(T), 0, len(ids))
	for _, id := range ids {
		handlers = append(handlers, f.subs[id])
	}
	f.mu.Unlock()

	// called without the lock so handlers may unsubscribe
	for _, h := range handlers {
		h(v)
	}
}

// Len returns the number of live subscriptions.
func (f *Feed[T]) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}
