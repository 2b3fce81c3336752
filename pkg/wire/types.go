package wire

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"net"
	"time"
)

// ProtocolVersion advertised in the version message.
type ProtocolVersion uint32

const (
	// CurrentVersion is the protocol version this node speaks.
	CurrentVersion ProtocolVersion = 170009

	// MinVersion is the oldest protocol version this node accepts.
	MinVersion ProtocolVersion = 170002
)

// Services is the bitmask of services a node advertises.
type Services uint64

const (
	// NodeNetwork indicates the node can serve the full block chain.
	NodeNetwork Services = 1 << iota
)

// Has reports whether every bit in f is set.
func (s Services) Has(f Services) bool { return s&f == f }

func (s Services) String() string {
	if s == 0 {
		return "none"
	}
	if s == NodeNetwork {
		return "NODE_NETWORK"
	}
	return fmt.Sprintf("0x%x", uint64(s))
}

// Nonce is a random value used to detect self-connections and to match
// heartbeat replies.
type Nonce uint64

// NewNonce reads a fresh nonce from crypto/rand.  Zero is never returned, so it
// remains available as "no nonce".
func NewNonce() Nonce {
	var b [8]byte
	for {
		if _, err := rand.Read(b[:]); err != nil {
			panic(err) // crypto/rand does not fail on supported platforms
		}
		if n := Nonce(binary.LittleEndian.Uint64(b[:])); n != 0 {
			return n
		}
	}
}

func (n Nonce) String() string { return fmt.Sprintf("%016x", uint64(n)) }

// NetAddress is a peer address as it appears in version and addr messages.
type NetAddress struct {
	Services Services
	IP       net.IP
	Port     uint16
}

// NewNetAddress from a TCP address.
func NewNetAddress(a *net.TCPAddr, s Services) NetAddress {
	if a == nil {
		return NetAddress{Services: s, IP: net.IPv6zero}
	}
	return NetAddress{Services: s, IP: a.IP, Port: uint16(a.Port)}
}

// TCPAddr returns the address in standard library form.
func (na NetAddress) TCPAddr() *net.TCPAddr {
	return &net.TCPAddr{IP: na.IP, Port: int(na.Port)}
}

func (na NetAddress) String() string { return na.TCPAddr().String() }

// MetaAddr is an address book entry: an address, the services it advertised
// and the last time we heard from it.
type MetaAddr struct {
	Addr     NetAddress
	LastSeen time.Time
}

func (m MetaAddr) String() string {
	return fmt.Sprintf("%s (%s, seen %s)", m.Addr, m.Addr.Services, m.LastSeen.UTC().Format(time.RFC3339))
}
