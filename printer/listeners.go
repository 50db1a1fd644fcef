package printer

import "sync"

// Listener receives the new connection state after every successful
// transition
type Listener func(State)

// ListenerID identifies one registration
type ListenerID uint64

type listenerEntry struct {
	id ListenerID
	fn Listener
}

// listenerSet keeps registrations in insertion order. The same function may
// be registered more than once; each registration has its own ID.
type listenerSet struct {
	mu      sync.Mutex
	next    ListenerID
	entries []listenerEntry
}

func (s *listenerSet) add(fn Listener) ListenerID {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.next++
	s.entries = append(s.entries, listenerEntry{id: s.next, fn: fn})
	return s.next
}

func (s *listenerSet) remove(id ListenerID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, e := range s.entries {
		if e.id == id {
			s.entries = append(s.entries[:i:i], s.entries[i+1:]...)
			return true
		}
	}
	return false
}

func (s *listenerSet) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// notify calls every listener registered at the time of the call, outside
// the set's lock so listeners may unsubscribe themselves
func (s *listenerSet) notify(state State) {
	s.mu.Lock()
	snapshot := make([]Listener, len(s.entries))
	for i, e := range s.entries {
		snapshot[i] = e.fn
	}
	s.mu.Unlock()

	for _, fn := range snapshot {
		fn(state)
	}
}
