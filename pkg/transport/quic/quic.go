// Package quic runs peer connections over QUIC.  Every Conn carries its own
// stream multiplexing, so no yamux session is layered on top.
package quic

import (
	"context"
	"crypto/tls"
	"net"

	"github.com/SentimensRG/ctx"
	log "github.com/lthibault/log/pkg"
	pipe "github.com/lthibault/peerwerks/pkg"
	"github.com/pkg/errors"
	quic "github.com/quic-go/quic-go"
)

// Config for QUIC protocol
type Config = quic.Config

type conn struct{ quic.Connection }

func (c conn) Stream() pipe.Streamer { return c }

func (c conn) Accept() (pipe.Stream, error) {
	s, err := c.AcceptStream(c.Context())
	if err != nil {
		return nil, errors.Wrap(err, "accept stream")
	}

	return mkStream(c, s), nil
}

func (c conn) Open() (pipe.Stream, error) {
	s, err := c.OpenStreamSync(c.Context())
	if err != nil {
		return nil, errors.Wrap(err, "open stream")
	}

	return mkStream(c, s), nil
}

func (c conn) Endpoint() pipe.Edge { return pipe.EdgeOf(c.LocalAddr(), c.RemoteAddr()) }

func (c conn) Close() error { return c.CloseWithError(0, "") }

type stream struct {
	quic.Stream
	edge pipe.Edge
}

func mkStream(c conn, s quic.Stream) stream {
	return stream{Stream: s, edge: c.Endpoint()}
}

func (s stream) Endpoint() pipe.Edge { return s.edge }

// Close both halves of the stream.  quic.Stream.Close only closes the send
// direction.
func (s stream) Close() error {
	s.CancelRead(0)
	return s.Stream.Close()
}

// Transport over QUIC
type Transport struct {
	q *Config
	t *tls.Config
}

// Dial the specified address
func (t *Transport) Dial(c context.Context, a net.Addr) (pipe.Conn, error) {
	if err := checkNetwork(a); err != nil {
		return nil, err
	}

	log.Get(c).WithField("addr", a).Debug("dialing")

	sess, err := quic.DialAddr(c, a.String(), t.t, t.q)
	if err != nil {
		return nil, errors.Wrap(err, "dial")
	}

	return conn{sess}, nil
}

// Listen on the specified address.  The listener closes when c expires.
func (t *Transport) Listen(c context.Context, a net.Addr) (pipe.Listener, error) {
	if err := checkNetwork(a); err != nil {
		return nil, err
	}

	log.Get(c).WithField("addr", a).Debug("listening")

	l, err := quic.ListenAddr(a.String(), t.t, t.q)
	if err != nil {
		return nil, errors.Wrap(err, "listen")
	}
	ctx.Defer(c, func() { l.Close() })

	return listener{l}, nil
}

type listener struct{ *quic.Listener }

func (l listener) Accept(c context.Context) (pipe.Conn, error) {
	sess, err := l.Listener.Accept(c)
	if err != nil {
		return nil, errors.Wrap(err, "listener")
	}

	return conn{sess}, nil
}

func checkNetwork(a net.Addr) error {
	switch a.Network() {
	case "udp", "udp4", "udp6":
		return nil
	}

	return errors.Errorf("quic: invalid network %s", a.Network())
}

// New Transport over QUIC
func New(opt ...Option) *Transport {
	t := new(Transport)
	for _, o := range opt {
		o(t)
	}
	return t
}
