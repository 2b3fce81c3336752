package peer

import (
	"context"
	"fmt"
	"net"
	"time"

	pnet "github.com/lthibault/peerwerks/pkg/net"
	"github.com/lthibault/peerwerks/pkg/wire"
	"golang.org/x/sync/errgroup"
)

// Info about a connected peer, learned during the handshake.
type Info struct {
	Addr        net.Addr
	Version     wire.ProtocolVersion // negotiated
	Services    wire.Services
	UserAgent   string
	StartHeight uint32
	Relay       bool
	Nonce       wire.Nonce
}

type messageStream interface {
	wire.MessageReader
	wire.MessageWriter
}

type deadliner interface {
	SetDeadline(time.Time) error
	Close() error
}

type role uint8

const (
	outbound role = iota
	inbound
)

func (r role) String() string {
	switch r {
	case outbound:
		return "outbound"
	case inbound:
		return "inbound"
	}

	panic("unreachable")
}

func wireAddr(a net.Addr, s wire.Services) wire.NetAddress {
	na, err := pnet.NetAddress(a, s)
	if err != nil {
		return wire.NetAddress{Services: s, IP: net.IPv6zero}
	}
	return na
}

func (cfg *Config) version(remote net.Addr, n wire.Nonce) *wire.Version {
	return &wire.Version{
		Version:     cfg.ProtocolVersion,
		Services:    cfg.Services,
		Timestamp:   time.Now(),
		AddrRecv:    wireAddr(remote, 0),
		AddrFrom:    wireAddr(cfg.ListenAddr, cfg.Services),
		Nonce:       n,
		UserAgent:   cfg.UserAgent,
		StartHeight: cfg.StartHeight,
		Relay:       cfg.Relay,
	}
}

// exchange sends out while receiving the peer's message.  Both ends send
// first, so neither may wait for the other.
func exchange(ms messageStream, out wire.Message) (in wire.Message, err error) {
	var g errgroup.Group
	g.Go(func() error { return ms.WriteMessage(out) })
	g.Go(func() (err error) {
		in, err = ms.ReadMessage()
		return
	})
	err = g.Wait()
	return
}

// handshake performs the Version/Verack exchange.  Outbound nonces are
// remembered in cfg.Nonces; every remote nonce is checked against it.
func (cfg *Config) handshake(c context.Context, r role, s deadliner, ms messageStream, remote net.Addr) (Info, error) {
	if err := s.SetDeadline(cfg.handshakeDeadline(c)); err != nil {
		return Info{}, handshakeErr(err)
	}
	defer s.SetDeadline(time.Time{})

	// Abort the handshake if c expires.
	stop := context.AfterFunc(c, func() { s.Close() })
	defer stop()

	nonce := wire.NewNonce()
	if r == outbound {
		cfg.Nonces.Add(nonce)
	}

	log := cfg.Logger.WithField("addr", remote).WithField("role", r)
	log.WithField("nonce", nonce).Debug("sending version")

	m, err := exchange(ms, cfg.version(remote, nonce))
	if err != nil {
		return Info{}, cfg.abort(c, err)
	}

	v, ok := m.(*wire.Version)
	if !ok {
		return Info{}, &HandshakeError{Kind: HandshakeUnexpectedMessage, Msg: m.Command()}
	}
	log.WithField("version", wire.Dump(v)).Debug("received version")

	if cfg.Nonces.Contains(v.Nonce) {
		return Info{}, &HandshakeError{Kind: HandshakeNonceReuse}
	}

	if v.Version < cfg.MinVersion {
		return Info{}, &HandshakeError{Kind: HandshakeObsoleteVersion, Msg: fmt.Sprint(v.Version)}
	}

	if m, err = exchange(ms, &wire.Verack{}); err != nil {
		return Info{}, cfg.abort(c, err)
	}

	if _, ok = m.(*wire.Verack); !ok {
		return Info{}, &HandshakeError{Kind: HandshakeUnexpectedMessage, Msg: m.Command()}
	}

	info := Info{
		Addr:        remote,
		Version:     cfg.ProtocolVersion,
		Services:    v.Services,
		UserAgent:   v.UserAgent,
		StartHeight: v.StartHeight,
		Relay:       v.Relay,
		Nonce:       v.Nonce,
	}
	if v.Version < info.Version {
		info.Version = v.Version
	}

	log.WithField("negotiated", info.Version).Debug("handshake complete")
	return info, nil
}

func (cfg *Config) abort(c context.Context, err error) *HandshakeError {
	if c.Err() != nil {
		return &HandshakeError{Kind: HandshakeIo, cause: c.Err()}
	}
	return handshakeErr(err)
}

func (cfg *Config) handshakeDeadline(c context.Context) time.Time {
	var t time.Time
	if cfg.HandshakeTimeout > 0 {
		t = time.Now().Add(cfg.HandshakeTimeout)
	}

	if d, ok := c.Deadline(); ok && (t.IsZero() || d.Before(t)) {
		t = d
	}

	return t
}
