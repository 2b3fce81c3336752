package wire

import (
	"time"
)

// Commands, as they appear in the frame header.
const (
	CmdVersion = "version"
	CmdVerack  = "verack"
	CmdPing    = "ping"
	CmdPong    = "pong"
	CmdGetAddr = "getaddr"
	CmdAddr    = "addr"
	CmdTx      = "tx"
)

// MaxAddrPerMsg bounds the number of entries in a single addr message.
const MaxAddrPerMsg = 1000

// Message is a decoded protocol message.
type Message interface {
	Command() string
}

// Version opens the handshake.
type Version struct {
	Version     ProtocolVersion
	Services    Services
	Timestamp   time.Time
	AddrRecv    NetAddress
	AddrFrom    NetAddress
	Nonce       Nonce
	UserAgent   string
	StartHeight uint32
	Relay       bool
}

// Verack acknowledges a Version.
type Verack struct{}

// Ping is a liveness probe.  The reply must echo the nonce.
type Ping struct{ Nonce Nonce }

// Pong answers a Ping.
type Pong struct{ Nonce Nonce }

// GetAddr asks the remote peer for addresses it knows.
type GetAddr struct{}

// Addr carries a list of peer addresses.
type Addr struct{ Addrs []MetaAddr }

// Tx carries a serialized transaction.  The payload is opaque to the
// networking layer.
type Tx struct{ Raw []byte }

func (*Version) Command() string { return CmdVersion }
func (*Verack) Command() string  { return CmdVerack }
func (*Ping) Command() string    { return CmdPing }
func (*Pong) Command() string    { return CmdPong }
func (*GetAddr) Command() string { return CmdGetAddr }
func (*Addr) Command() string    { return CmdAddr }
func (*Tx) Command() string      { return CmdTx }

// IsHandshake reports whether m may only appear during the handshake.
func IsHandshake(m Message) bool {
	switch m.(type) {
	case *Version, *Verack:
		return true
	}

	return false
}

func newMessage(cmd string) (Message, bool) {
	switch cmd {
	case CmdVersion:
		return new(Version), true
	case CmdVerack:
		return new(Verack), true
	case CmdPing:
		return new(Ping), true
	case CmdPong:
		return new(Pong), true
	case CmdGetAddr:
		return new(GetAddr), true
	case CmdAddr:
		return new(Addr), true
	case CmdTx:
		return new(Tx), true
	}

	return nil, false
}
