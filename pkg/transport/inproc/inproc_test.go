package inproc

import (
	"context"
	"io"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/sync/errgroup"
)

func TestNamespace(t *testing.T) {
	n := NewNamespace()

	t.Run("InvalidNetwork", func(t *testing.T) {
		_, err := n.Listen(context.Background(), "tcp", "/test")
		assert.Error(t, err)

		_, err = n.DialContext(context.Background(), "tcp", "/test")
		assert.Error(t, err)
	})

	t.Run("Refused", func(t *testing.T) {
		_, err := n.DialContext(context.Background(), network, "/nobody")
		assert.Error(t, err)
	})

	t.Run("AddrInUse", func(t *testing.T) {
		l, err := n.Listen(context.Background(), network, "/bound")
		assert.NoError(t, err)

		_, err = n.Listen(context.Background(), network, "/bound")
		assert.Error(t, err)

		assert.NoError(t, l.Close())
		assert.Error(t, l.Close())

		l, err = n.Listen(context.Background(), network, "/bound")
		assert.NoError(t, err, "address not released on close")
		l.Close()
	})

	t.Run("Addresses", func(t *testing.T) {
		l, err := n.Listen(context.Background(), network, "/addr")
		if !assert.NoError(t, err) {
			t.FailNow()
		}
		defer l.Close()

		ch := make(chan net.Conn, 1)
		go func() {
			conn, _ := l.Accept()
			ch <- conn
		}()

		conn, err := n.DialContext(context.Background(), network, "/addr")
		if !assert.NoError(t, err) {
			t.FailNow()
		}
		defer conn.Close()

		remote := <-ch
		defer remote.Close()

		assert.Equal(t, Addr("/addr"), conn.RemoteAddr())
		assert.Equal(t, Addr("/addr"), remote.LocalAddr())
		assert.Equal(t, conn.LocalAddr(), remote.RemoteAddr())
		assert.Equal(t, network, conn.LocalAddr().Network())
	})

	t.Run("DialContextExpired", func(t *testing.T) {
		l, err := n.Listen(context.Background(), network, "/slow")
		if !assert.NoError(t, err) {
			t.FailNow()
		}
		defer l.Close()

		c, cancel := context.WithCancel(context.Background())
		cancel()

		_, err = n.DialContext(c, network, "/slow")
		assert.Equal(t, context.Canceled, err)
	})
}

func TestTransport(t *testing.T) {
	c, cancel := context.WithCancel(context.Background())
	defer cancel()

	tp := New(OptNamespace(NewNamespace()))

	_, err := tp.Listen(c, &net.TCPAddr{})
	assert.Error(t, err)

	l, err := tp.Listen(c, Addr("/echo"))
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

		_, err = io.CopyN(s, s, 5)
		return err
	})

	conn, err := tp.Dial(c, Addr("/echo"))
	if !assert.NoError(t, err) {
		t.FailNow()
	}
	defer conn.Close()

	assert.Equal(t, Addr("/echo"), conn.Endpoint().Remote())

	s, err := conn.Stream().Open()
	if !assert.NoError(t, err) {
		t.FailNow()
	}
	defer s.Close()

	_, err = s.Write([]byte("hello"))
	assert.NoError(t, err)

	b := make([]byte, 5)
	_, err = io.ReadFull(s, b)
	assert.NoError(t, err)
	assert.Equal(t, "hello", string(b))
	assert.NoError(t, g.Wait())
}
