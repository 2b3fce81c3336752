// Package seed implements a Service for DNS-seeder style nodes: it hands out
// the peers it knows and learns the peers it is told about.
package seed

import (
	"context"
	"math/rand"

	log "github.com/lthibault/log/pkg"
	"github.com/lthibault/peerwerks/pkg/addrbook"
	"github.com/lthibault/peerwerks/pkg/svc"
)

// MaxPeers returned per GetPeers, so that we never reveal the whole peer set.
const MaxPeers = 50

// Service answering peer requests from an address book.
type Service struct {
	Logger log.Logger
	book   *addrbook.Book
}

// New Service backed by b.
func New(b *addrbook.Book) *Service {
	return &Service{
		Logger: log.New(log.OptLevel(log.NullLevel)),
		book:   b,
	}
}

// Ready is always nil; the address book never blocks.
func (s *Service) Ready() error { return nil }

// Call handles r.
func (s *Service) Call(_ context.Context, r svc.Request) (svc.Response, error) {
	switch req := r.(type) {
	case svc.GetPeers:
		ps := s.book.Peers()
		for i := range ps {
			ps[i] = addrbook.Sanitize(ps[i])
		}

		// Peers are ordered by recency; shuffle before truncating.
		rand.Shuffle(len(ps), func(i, j int) { ps[i], ps[j] = ps[j], ps[i] })
		if len(ps) > MaxPeers {
			ps = ps[:MaxPeers]
		}

		s.Logger.WithField("peers", len(ps)).Debug("answering peer request")
		return svc.Peers{Addrs: ps}, nil

	case svc.PushPeers:
		for _, m := range req.Addrs {
			s.book.Update(m)
		}
		return svc.Ok{}, nil
	}

	s.Logger.Debug("ignoring request")
	return svc.Ok{}, nil
}
