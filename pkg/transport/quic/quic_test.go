package quic

import (
	"context"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"golang.org/x/sync/errgroup"
)

func TestCheckNetwork(t *testing.T) {
	assert.NoError(t, checkNetwork(&net.UDPAddr{}))
	assert.Error(t, checkNetwork(&net.TCPAddr{}))
}

func TestOptions(t *testing.T) {
	tc, err := SelfSigned()
	if !assert.NoError(t, err) {
		t.FailNow()
	}

	tp := New()
	prev := OptTLS(tc)(tp)
	assert.Equal(t, tc, tp.t)

	prev(tp)
	assert.Nil(t, tp.t)

	q := &Config{MaxIdleTimeout: time.Second}
	OptQuic(q)(tp)
	assert.Equal(t, q, tp.q)
}

func TestLoopback(t *testing.T) {
	c, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	tc, err := SelfSigned()
	if !assert.NoError(t, err) {
		t.FailNow()
	}

	tp := New(OptTLS(tc))
	l, err := tp.Listen(c, &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
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

		s, err := conn.Stream().Accept()
		if err != nil {
			return err
		}

		_, err = io.CopyN(s, s, 5)
		return err
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

	b := make([]byte, 5)
	_, err = io.ReadFull(s, b)
	assert.NoError(t, err)
	assert.Equal(t, "hello", string(b))
	assert.NoError(t, g.Wait())
}
