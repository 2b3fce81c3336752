// Package inproc provides an in-process transport.  Conns are net.Pipe pairs
// multiplexed with yamux, so everything above the transport behaves exactly
// as it does over TCP.
package inproc

import (
	"context"
	"net"

	pipe "github.com/lthibault/peerwerks/pkg"
	"github.com/lthibault/peerwerks/pkg/transport/generic"
	"github.com/pkg/errors"
)

const network = "inproc"

// Addr is an in-process address.
type Addr string

// Network is always "inproc"
func (Addr) Network() string  { return network }
func (a Addr) String() string { return string(a) }

// Transport bytes around the process
type Transport struct{ generic.Transport }

// Listen for incoming connections
func (t Transport) Listen(c context.Context, a net.Addr) (pipe.Listener, error) {
	if a.Network() != network {
		return nil, errors.Errorf("inproc: invalid network %s", a.Network())
	}

	return t.Transport.Listen(c, a)
}

// Dial opens a connection
func (t Transport) Dial(c context.Context, a net.Addr) (pipe.Conn, error) {
	if a.Network() != network {
		return nil, errors.Errorf("inproc: invalid network %s", a.Network())
	}

	return t.Transport.Dial(c, a)
}

// New in-process Transport.  Transports share DefaultNamespace unless
// OptNamespace is given.
func New(opt ...Option) (t Transport) {
	t.Transport = generic.New()
	OptNamespace(DefaultNamespace)(&t)

	for _, fn := range opt {
		fn(&t)
	}

	return t
}
