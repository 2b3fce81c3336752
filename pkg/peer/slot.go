package peer

import "sync"

// ErrorSlot holds the terminal error of a session.  It is shared by the
// Client and Server halves.  The first recorded error wins; later ones are
// discarded.
type ErrorSlot struct {
	mu  sync.Mutex
	err *SharedError
}

// Record e unless the slot is already occupied.  It reports whether e was
// recorded.
func (s *ErrorSlot) Record(e *PeerError) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.err != nil {
		return false
	}

	s.err = &SharedError{PeerError: e}
	return true
}

// Load a snapshot of the slot.  It returns nil if no error was recorded.
func (s *ErrorSlot) Load() *SharedError {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Err is like Load, but returns an untyped nil for an empty slot.
func (s *ErrorSlot) Err() error {
	if e := s.Load(); e != nil {
		return e
	}
	return nil
}
