package tcp

import (
	"context"
	"io"
	"net"
	"testing"

	"github.com/btcsuite/go-socks/socks"
	"github.com/lthibault/peerwerks/pkg/transport/generic"
	"github.com/stretchr/testify/assert"
	"golang.org/x/sync/errgroup"
)

type unixAddr string

func (unixAddr) Network() string  { return "unix" }
func (a unixAddr) String() string { return string(a) }

func TestCheckNetwork(t *testing.T) {
	tp := New()

	_, err := tp.Dial(context.Background(), unixAddr("/tmp/nope"))
	assert.Error(t, err)

	_, err = tp.Listen(context.Background(), unixAddr("/tmp/nope"))
	assert.Error(t, err)
}

func TestOptions(t *testing.T) {
	t.Run("Proxy", func(t *testing.T) {
		tp := New()
		prev := OptProxy(&socks.Proxy{Addr: "127.0.0.1:9050"})(&tp)
		assert.IsType(t, proxyDialer{}, tp.Transport.NetDialer)

		prev(&tp)
		assert.IsType(t, new(net.Dialer), tp.Transport.NetDialer)
	})

	t.Run("Dialer", func(t *testing.T) {
		d := &net.Dialer{}
		tp := New(OptDialer(d))
		assert.Equal(t, generic.NetDialer(d), tp.Transport.NetDialer)
	})
}

func TestLoopback(t *testing.T) {
	c, cancel := context.WithCancel(context.Background())
	defer cancel()

	tp := New()
	l, err := tp.Listen(c, &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if !assert.NoError(t, err) {
		t.FailNow()
	}
	defer l.Close()

	var g errgroup.Group
	g.Go(func() error {
		conn, err := l.Accept(c)
		if err != nil {
			return err
		}
		defer conn.Close()

		s, err := conn.Stream().Accept()
		if err != nil {
			return err
		}
		defer s.Close()

		b := make([]byte, 5)
		if _, err = io.ReadFull(s, b); err != nil {
			return err
		}
		assert.Equal(t, "hello", string(b))
		return nil
	})

	conn, err := tp.Dial(c, l.Addr())
	if !assert.NoError(t, err) {
		t.FailNow()
	}
	defer conn.Close()

	s, err := conn.Stream().Open()
	if !assert.NoError(t, err) {
		t.FailNow()
	}
	defer s.Close()

	_, err = s.Write([]byte("hello"))
	assert.NoError(t, err)
	assert.NoError(t, g.Wait())
}
