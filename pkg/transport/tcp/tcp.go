// Package tcp provides a TCP transport, optionally dialing through a SOCKS5
// proxy.
package tcp

import (
	"context"
	"net"

	"github.com/btcsuite/go-socks/socks"
	pipe "github.com/lthibault/peerwerks/pkg"
	"github.com/lthibault/peerwerks/pkg/transport/generic"
	"github.com/pkg/errors"
)

func checkNetwork(a net.Addr) (ok bool) {
	switch a.Network() {
	case "tcp", "tcp4", "tcp6":
		ok = true
	}

	return
}

// Transport over TCP
type Transport struct{ generic.Transport }

// Listen TCP
func (t Transport) Listen(c context.Context, a net.Addr) (pipe.Listener, error) {
	if !checkNetwork(a) {
		return nil, errors.Errorf("tcp: invalid network %s", a.Network())
	}

	return t.Transport.Listen(c, a)
}

// Dial TCP
func (t Transport) Dial(c context.Context, a net.Addr) (pipe.Conn, error) {
	if !checkNetwork(a) {
		return nil, errors.Errorf("tcp: invalid network %s", a.Network())
	}

	return t.Transport.Dial(c, a)
}

// New TCP Transport
func New(opt ...Option) (t Transport) {
	t.Transport = generic.New()
	t.Transport.NetDialer = new(net.Dialer)
	t.Transport.NetListener = new(net.ListenConfig)

	for _, fn := range opt {
		fn(&t)
	}

	return t
}

// proxyDialer adapts a socks.Proxy to generic.NetDialer.  The proxy library
// has no context support, so an expired context only aborts the dial once
// the proxy returns.
type proxyDialer struct{ p *socks.Proxy }

func (d proxyDialer) DialContext(c context.Context, network, addr string) (net.Conn, error) {
	type result struct {
		conn net.Conn
		err  error
	}

	ch := make(chan result, 1)
	go func() {
		conn, err := d.p.Dial(network, addr)
		ch <- result{conn, err}
	}()

	select {
	case r := <-ch:
		return r.conn, errors.Wrap(r.err, "socks")
	case <-c.Done():
		go func() {
			if r := <-ch; r.conn != nil {
				r.conn.Close()
			}
		}()
		return nil, c.Err()
	}
}
