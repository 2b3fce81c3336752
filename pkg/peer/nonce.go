package peer

import (
	"container/list"
	"sync"

	"github.com/lthibault/peerwerks/pkg/wire"
)

// DefaultNonceCapacity is the number of outbound handshake nonces remembered
// by a NonceSet.
const DefaultNonceCapacity = 50

// DefaultNonces is shared by every Connector and Listener that does not set
// its own, so that a process dialing itself is detected on both ends.
var DefaultNonces = NewNonceSet(DefaultNonceCapacity)

// NonceSet remembers the most recently generated handshake nonces.  Once
// full, the least recently added nonce is evicted.
type NonceSet struct {
	mu  sync.Mutex
	cap int
	ls  *list.List
	ns  map[wire.Nonce]*list.Element
}

// NewNonceSet that holds up to n nonces.
func NewNonceSet(n int) *NonceSet {
	if n <= 0 {
		n = DefaultNonceCapacity
	}

	return &NonceSet{
		cap: n,
		ls:  list.New(),
		ns:  make(map[wire.Nonce]*list.Element, n),
	}
}

// Generate a fresh nonce and add it to the set.
func (s *NonceSet) Generate() wire.Nonce {
	n := wire.NewNonce()
	s.Add(n)
	return n
}

// Add n to the set.
func (s *NonceSet) Add(n wire.Nonce) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.ns[n]; ok {
		s.ls.MoveToFront(e)
		return
	}

	if s.ls.Len() >= s.cap {
		oldest := s.ls.Back()
		s.ls.Remove(oldest)
		delete(s.ns, oldest.Value.(wire.Nonce))
	}

	s.ns[n] = s.ls.PushFront(n)
}

// Contains reports whether n was generated by this node.
func (s *NonceSet) Contains(n wire.Nonce) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.ns[n]
	return ok
}

// Len is the number of nonces in the set.
func (s *NonceSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ls.Len()
}
