package tcp

import (
	"net"

	"github.com/btcsuite/go-socks/socks"
	"github.com/lthibault/peerwerks/pkg/transport/generic"
)

// Option for TCP transport
type Option func(*Transport) (prev Option)

// OptListener sets the ListenConfig
func OptListener(l *net.ListenConfig) Option {
	return func(t *Transport) (prev Option) {
		prev = OptListener(t.listenConfig())
		OptGeneric(generic.OptListener(l))(t)
		return
	}
}

// OptDialer sets the dialer.  It replaces any proxy set with OptProxy.
func OptDialer(d *net.Dialer) Option {
	return func(t *Transport) (prev Option) {
		prev = restoreDialer(t.Transport.NetDialer)
		OptGeneric(generic.OptDialer(d))(t)
		return
	}
}

// OptProxy routes outbound connections through a SOCKS5 proxy.  Connections
// made through the proxy report a *socks.ProxiedAddr as their remote address.
func OptProxy(p *socks.Proxy) Option {
	return func(t *Transport) (prev Option) {
		prev = restoreDialer(t.Transport.NetDialer)
		OptGeneric(generic.OptDialer(proxyDialer{p}))(t)
		return
	}
}

// OptGeneric sets an option on the underlying generic transport
func OptGeneric(opt generic.Option) Option {
	return func(t *Transport) Option {
		return OptGeneric(opt(&t.Transport))
	}
}

func restoreDialer(d generic.NetDialer) Option {
	return func(t *Transport) Option {
		prev := restoreDialer(t.Transport.NetDialer)
		t.Transport.NetDialer = d
		return prev
	}
}

func (t *Transport) listenConfig() *net.ListenConfig {
	lc, _ := t.Transport.NetListener.(*net.ListenConfig)
	return lc
}
