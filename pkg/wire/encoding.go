package wire

import (
	"bytes"
	"encoding/binary"
	"io"
	"net"
	"time"

	"github.com/pkg/errors"
)

const maxUserAgentLen = 256

var errShortBody = errors.New("short body")

// encoder accumulates a message body.  Writes to a bytes.Buffer cannot fail.
type encoder struct{ bytes.Buffer }

func (e *encoder) u8(v uint8) { e.WriteByte(v) }

func (e *encoder) u16be(v uint16) {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], v)
	e.Write(b[:])
}

func (e *encoder) u32(v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	e.Write(b[:])
}

func (e *encoder) u64(v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	e.Write(b[:])
}

func (e *encoder) varint(v uint64) {
	switch {
	case v < 0xfd:
		e.u8(uint8(v))
	case v <= 0xffff:
		e.u8(0xfd)
		var b [2]byte
		binary.LittleEndian.PutUint16(b[:], uint16(v))
		e.Write(b[:])
	case v <= 0xffffffff:
		e.u8(0xfe)
		e.u32(uint32(v))
	default:
		e.u8(0xff)
		e.u64(v)
	}
}

func (e *encoder) varstr(s string) {
	e.varint(uint64(len(s)))
	e.WriteString(s)
}

func (e *encoder) netaddr(na NetAddress) {
	e.u64(uint64(na.Services))
	ip := na.IP.To16()
	if ip == nil {
		ip = net.IPv6zero
	}
	e.Write(ip)
	e.u16be(na.Port)
}

// decoder reads a message body.  The first error sticks; later reads are
// no-ops, so callers check err once at the end.
type decoder struct {
	r   *bytes.Reader
	err error
}

func newDecoder(b []byte) *decoder { return &decoder{r: bytes.NewReader(b)} }

func (d *decoder) read(b []byte) {
	if d.err != nil {
		return
	}
	if _, err := io.ReadFull(d.r, b); err != nil {
		d.err = errShortBody
	}
}

func (d *decoder) u8() uint8 {
	var b [1]byte
	d.read(b[:])
	return b[0]
}

func (d *decoder) u16be() uint16 {
	var b [2]byte
	d.read(b[:])
	return binary.BigEndian.Uint16(b[:])
}

func (d *decoder) u32() uint32 {
	var b [4]byte
	d.read(b[:])
	return binary.LittleEndian.Uint32(b[:])
}

func (d *decoder) u64() uint64 {
	var b [8]byte
	d.read(b[:])
	return binary.LittleEndian.Uint64(b[:])
}

func (d *decoder) varint() uint64 {
	switch p := d.u8(); p {
	case 0xfd:
		var b [2]byte
		d.read(b[:])
		return uint64(binary.LittleEndian.Uint16(b[:]))
	case 0xfe:
		return uint64(d.u32())
	case 0xff:
		return d.u64()
	default:
		return uint64(p)
	}
}

func (d *decoder) varstr(max int) string {
	n := d.varint()
	if d.err != nil {
		return ""
	}
	if n > uint64(max) {
		d.err = errors.Errorf("string length %d exceeds %d", n, max)
		return ""
	}
	b := make([]byte, n)
	d.read(b)
	return string(b)
}

func (d *decoder) netaddr() (na NetAddress) {
	na.Services = Services(d.u64())
	ip := make(net.IP, net.IPv6len)
	d.read(ip)
	na.IP = ip
	na.Port = d.u16be()
	return
}

func (d *decoder) finish() error {
	if d.err == nil && d.r.Len() != 0 {
		d.err = errors.Errorf("%d trailing bytes", d.r.Len())
	}
	return d.err
}

func encodeBody(m Message) ([]byte, error) {
	var e encoder

	switch msg := m.(type) {
	case *Version:
		if len(msg.UserAgent) > maxUserAgentLen {
			return nil, serializationErr(CmdVersion, "user agent too long", nil)
		}
		e.u32(uint32(msg.Version))
		e.u64(uint64(msg.Services))
		e.u64(uint64(msg.Timestamp.Unix()))
		e.netaddr(msg.AddrRecv)
		e.netaddr(msg.AddrFrom)
		e.u64(uint64(msg.Nonce))
		e.varstr(msg.UserAgent)
		e.u32(msg.StartHeight)
		if msg.Relay {
			e.u8(1)
		} else {
			e.u8(0)
		}
	case *Verack, *GetAddr:
	case *Ping:
		e.u64(uint64(msg.Nonce))
	case *Pong:
		e.u64(uint64(msg.Nonce))
	case *Addr:
		if len(msg.Addrs) > MaxAddrPerMsg {
			return nil, serializationErr(CmdAddr, "too many addresses", nil)
		}
		e.varint(uint64(len(msg.Addrs)))
		for _, a := range msg.Addrs {
			e.u32(uint32(a.LastSeen.Unix()))
			e.netaddr(a.Addr)
		}
	case *Tx:
		e.Write(msg.Raw)
	default:
		return nil, serializationErr(m.Command(), "unsupported message", nil)
	}

	return e.Bytes(), nil
}

func decodeBody(m Message, body []byte) error {
	d := newDecoder(body)

	switch msg := m.(type) {
	case *Version:
		msg.Version = ProtocolVersion(d.u32())
		msg.Services = Services(d.u64())
		msg.Timestamp = time.Unix(int64(d.u64()), 0)
		msg.AddrRecv = d.netaddr()
		msg.AddrFrom = d.netaddr()
		msg.Nonce = Nonce(d.u64())
		msg.UserAgent = d.varstr(maxUserAgentLen)
		msg.StartHeight = d.u32()
		msg.Relay = d.u8() != 0
	case *Verack, *GetAddr:
	case *Ping:
		msg.Nonce = Nonce(d.u64())
	case *Pong:
		msg.Nonce = Nonce(d.u64())
	case *Addr:
		n := d.varint()
		if d.err == nil && n > MaxAddrPerMsg {
			return serializationErr(CmdAddr, "too many addresses", nil)
		}
		msg.Addrs = make([]MetaAddr, 0, n)
		for i := uint64(0); i < n && d.err == nil; i++ {
			var a MetaAddr
			a.LastSeen = time.Unix(int64(d.u32()), 0)
			a.Addr = d.netaddr()
			msg.Addrs = append(msg.Addrs, a)
		}
	case *Tx:
		msg.Raw = append([]byte(nil), body...)
		return nil
	}

	if err := d.finish(); err != nil {
		return serializationErr(m.Command(), "malformed body", err)
	}

	return nil
}
