// Package addrbook tracks peers this node has heard from.
package addrbook

import (
	"net"
	"sort"
	"sync"
	"time"

	"github.com/lthibault/peerwerks/pkg/wire"
)

// TruncationInterval is the granularity of sanitized last-seen times.
const TruncationInterval = 30 * time.Minute

// Book is an in-memory address book keyed by address.  It is safe for
// concurrent use.
type Book struct {
	mu sync.RWMutex
	as map[string]wire.MetaAddr
}

// New empty address book.
func New() *Book { return &Book{as: make(map[string]wire.MetaAddr)} }

// Update records that addr was seen at t.  Known services are kept when the
// update carries none, and last-seen never moves backwards.
func (b *Book) Update(m wire.MetaAddr) {
	key := m.Addr.String()

	b.mu.Lock()
	defer b.mu.Unlock()

	prev, ok := b.as[key]
	if ok {
		if m.Addr.Services == 0 {
			m.Addr.Services = prev.Addr.Services
		}
		if m.LastSeen.Before(prev.LastSeen) {
			m.LastSeen = prev.LastSeen
		}
	}

	b.as[key] = m
}

// Seen is a convenience wrapper around Update for a bare net.Addr.
func (b *Book) Seen(a net.Addr, t time.Time) {
	tcp, ok := a.(*net.TCPAddr)
	if !ok {
		host, port, err := net.SplitHostPort(a.String())
		if err != nil {
			return
		}
		ip := net.ParseIP(host)
		if ip == nil {
			return
		}
		var p int
		if p, err = net.LookupPort("tcp", port); err != nil {
			return
		}
		tcp = &net.TCPAddr{IP: ip, Port: p}
	}

	b.Update(wire.MetaAddr{Addr: wire.NewNetAddress(tcp, 0), LastSeen: t})
}

// Get the entry for addr.
func (b *Book) Get(addr string) (m wire.MetaAddr, ok bool) {
	b.mu.RLock()
	m, ok = b.as[addr]
	b.mu.RUnlock()
	return
}

// Len is the number of known peers.
func (b *Book) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.as)
}

// Peers returns every known peer, most recently seen first.
func (b *Book) Peers() []wire.MetaAddr {
	b.mu.RLock()
	ps := make([]wire.MetaAddr, 0, len(b.as))
	for _, m := range b.as {
		ps = append(ps, m)
	}
	b.mu.RUnlock()

	sort.Slice(ps, func(i, j int) bool {
		return ps[i].LastSeen.After(ps[j].LastSeen)
	})

	return ps
}

// Sanitize truncates the last-seen time so that exact connection times are
// not leaked to other peers.
func Sanitize(m wire.MetaAddr) wire.MetaAddr {
	m.LastSeen = m.LastSeen.Truncate(TruncationInterval)
	return m
}
