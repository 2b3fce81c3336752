// Package pipe defines the transports peer connections run over.  A Transport
// dials or listens for Conns; streams are multiplexed onto each Conn, and a
// peer session runs over a single Stream.
package pipe

import (
	"context"
	"net"
	"time"
)

// Transport is a means by which to connect to and listen for connections from
// other peers.
type Transport interface {
	Dialer
	Listen(context.Context, net.Addr) (Listener, error)
}

// Dialer is the client end of a Transport.
type Dialer interface {
	Dial(context.Context, net.Addr) (Conn, error)
}

// Listener can listen for incoming connections
type Listener interface {
	Addr() net.Addr
	Close() error
	Accept(context.Context) (Conn, error)
}

// Conn represents a logical connection between two peers.  Its context expires
// when the connection closes.
type Conn interface {
	Context() context.Context
	Stream() Streamer
	Endpoint() Edge
	Close() error
}

// Streamer can open and accept streams on a Conn
type Streamer interface {
	Accept() (Stream, error)
	Open() (Stream, error)
}

// Edge identifies a connection between two endpoints
type Edge interface {
	Local() net.Addr
	Remote() net.Addr
}

// Stream is a bidirectional connection between two hosts.
type Stream interface {
	Context() context.Context
	Endpoint() Edge
	Close() error
	Read([]byte) (int, error)
	Write([]byte) (int, error)
	SetDeadline(time.Time) error
	SetReadDeadline(time.Time) error
	SetWriteDeadline(time.Time) error
}

// EdgeOf builds an Edge from a pair of addresses
func EdgeOf(local, remote net.Addr) Edge { return edge{local, remote} }

type edge struct{ local, remote net.Addr }

func (e edge) Local() net.Addr  { return e.local }
func (e edge) Remote() net.Addr { return e.remote }
