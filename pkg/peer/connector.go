package peer

import (
	"context"
	"net"

	"github.com/SentimensRG/ctx"
	pipe "github.com/lthibault/peerwerks/pkg"
	"github.com/lthibault/peerwerks/pkg/svc"
	"github.com/lthibault/peerwerks/pkg/wire"
	synctoolz "github.com/lthibault/toolz/pkg/sync"
	"github.com/pkg/errors"
)

// Connector dials peers.  Each successful Connect yields a Client whose
// session is driven by its own goroutine; the Connector keeps no reference
// to either.
type Connector struct {
	cfg  Config
	d    pipe.Dialer
	svc  svc.Service
	live synctoolz.Ctr
}

// NewConnector dials through d and answers inbound peer requests with s.
func NewConnector(d pipe.Dialer, s svc.Service, opt ...Option) *Connector {
	return &Connector{
		cfg: newConfig(opt),
		d:   d,
		svc: s,
	}
}

// Config of the Connector
func (c *Connector) Config() Config { return c.cfg }

// Live is the number of sessions that have not yet ended.
func (c *Connector) Live() int { return int(c.live.Num()) }

// Ready is always nil.  The Connector applies no backpressure of its own.
func (c *Connector) Ready() error { return nil }

// Connect to the peer at a and perform the handshake.  c bounds the dial and
// the handshake; the session outlives it.
func (c *Connector) Connect(cx context.Context, a net.Addr) (*Client, error) {
	log := c.cfg.Logger.WithField("addr", a)
	log.Debug("dialing")

	conn, err := c.d.Dial(cx, a)
	if err != nil {
		return nil, &HandshakeError{Kind: HandshakeIo, cause: errors.Wrap(err, "dial")}
	}

	cc := &ctrConn{Conn: conn}
	s, err := cc.Open()
	if err != nil {
		conn.Close()
		return nil, &HandshakeError{Kind: HandshakeIo, cause: errors.Wrap(err, "open stream")}
	}

	client, err := c.cfg.establish(cx, outbound, c.svc, s)
	if err != nil {
		log.WithError(err).Debug("handshake failed")
		return nil, err
	}

	c.live.Incr()
	ctx.Defer(client, func() { c.live.Decr() })

	log.WithField("session", client.ID()).Info("peer connected")
	return client, nil
}

// establish a session over s.  s is closed if the handshake fails.
func (cfg *Config) establish(c context.Context, r role, h svc.Service, s pipe.Stream) (*Client, error) {
	ms := wire.NewStream(s, cfg.Network)

	info, err := cfg.handshake(c, r, s, ms, s.Endpoint().Remote())
	if err != nil {
		ms.Close()
		return nil, err
	}

	return spawn(s.Context(), cfg, h, ms, info), nil
}
