// Package net contains addressing helpers for peer connections.
package net

import (
	"net"
	"strconv"

	"github.com/btcsuite/go-socks/socks"
	"github.com/lthibault/peerwerks/pkg/wire"
	"github.com/pkg/errors"
)

// Addr represents a network end point address.
type Addr = net.Addr

// An Error represents a network error.
type Error interface {
	error
	Timeout() bool   // Is the error a timeout?
	Temporary() bool // Is the error temporary?
}

// IsTemporary reports whether err is a network error worth retrying.
func IsTemporary(err error) bool {
	var ne Error
	return errors.As(err, &ne) && ne.Temporary()
}

// ResolveRemote parses a peer address, filling in the network's default port
// when the address has none.
func ResolveRemote(addr string, n wire.Network) (*net.TCPAddr, error) {
	if _, _, err := net.SplitHostPort(addr); err != nil {
		addr = net.JoinHostPort(addr, strconv.Itoa(int(n.DefaultPort())))
	}

	a, err := net.ResolveTCPAddr("tcp", addr)
	return a, errors.Wrap(err, "resolve")
}

// NetAddress converts a transport address into its wire form.
func NetAddress(a net.Addr, s wire.Services) (wire.NetAddress, error) {
	switch addr := a.(type) {
	case *net.TCPAddr:
		return wire.NewNetAddress(addr, s), nil

	case *net.UDPAddr:
		return wire.NetAddress{Services: s, IP: addr.IP, Port: uint16(addr.Port)}, nil

	case *socks.ProxiedAddr:
		// The proxy hides the real endpoint, and the host may be a name.
		ip := net.ParseIP(addr.Host)
		if ip == nil {
			ip = net.IPv4zero
		}
		return wire.NetAddress{Services: s, IP: ip, Port: uint16(addr.Port)}, nil
	}

	if a == nil {
		return wire.NetAddress{Services: s, IP: net.IPv6zero}, nil
	}

	// Last resort: parse the string form.
	host, port, err := net.SplitHostPort(a.String())
	if err != nil {
		return wire.NetAddress{}, errors.Wrap(err, "split host")
	}

	ip := net.ParseIP(host)
	if ip == nil {
		return wire.NetAddress{}, errors.Errorf("not an IP address: %s", host)
	}

	p, err := strconv.ParseUint(port, 10, 16)
	if err != nil {
		return wire.NetAddress{}, errors.Wrap(err, "parse port")
	}

	return wire.NetAddress{Services: s, IP: ip, Port: uint16(p)}, nil
}
