package event

import "sync"

// Handle identifies a subscription on a Source. The zero Handle is never issued.
type Handle uint64

type entry[T any] struct {
	handle Handle
	fn     func(T)
}

// Source is a thread-safe list of handlers receiving values of type T.
type Source[T any] struct {
	mu       sync.RWMutex
	next     Handle
	handlers []entry[T]
}

// Subscribe registers fn and returns the handle used to remove it.
// A nil fn is ignored and yields the zero Handle.
func (s *Source[T]) Subscribe(fn func(T)) Handle {
	if fn == nil {
		return 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.next++
	s.handlers = append(s.handlers, entry[T]{handle: s.next, fn: fn})
	return s.next
}

// Unsubscribe removes the handler registered under h.
// Returns false if no such handler exists.
func (s *Source[T]) Unsubscribe(h Handle) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, e := range s.handlers {
		if e.handle == h {
			// Copy instead of re-slicing in place so snapshots taken by a
			// concurrent Raise keep their contents.
			handlers := make([]entry[T], 0, len(s.handlers)-1)
			handlers = append(handlers, s.handlers[:i]...)
			handlers = append(handlers, s.handlers[i+1:]...)
			s.handlers = handlers
			return true
		}
	}
	return false
}

// Raise delivers v to every handler registered at the time of the call,
// in subscription order.
func (s *Source[T]) Raise(v T) {
	s.mu.RLock()
	snapshot := s.handlers
	s.mu.RUnlock()

	for _, e := range snapshot {
		e.fn(v)
	}
}

// Len returns the number of registered handlers.
func (s *Source[T]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.handlers)
}

// Clear removes every handler.
func (s *Source[T]) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers = nil
}
