package peer

import (
	"context"
	"io"
	"testing"
	"time"

	pipe "github.com/lthibault/peerwerks/pkg"
	"github.com/lthibault/peerwerks/pkg/svc"
	"github.com/lthibault/peerwerks/pkg/transport/inproc"
	"github.com/lthibault/peerwerks/pkg/wire"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func peers(port int) svc.Service {
	return svc.Func(func(_ context.Context, r svc.Request) (svc.Response, error) {
		if _, ok := r.(svc.GetPeers); ok {
			return svc.Peers{Addrs: []wire.MetaAddr{meta(port)}}, nil
		}
		return svc.Ok{}, nil
	})
}

// fakePeer accepts a single stream on a and hands it to fn.
func fakePeer(t *testing.T, tp inproc.Transport, a inproc.Addr, fn func(*wire.Stream, io.Writer)) func() {
	c, cancel := context.WithCancel(context.Background())

	l, err := tp.Listen(c, a)
	require.NoError(t, err)

	go func() {
		conn, err := l.Accept(c)
		if err != nil {
			return
		}
		defer conn.Close()

		s, err := conn.Stream().Accept()
		if err != nil {
			return
		}

		fn(wire.NewStream(s, wire.Mainnet), s)
	}()

	return cancel
}

func isHandshake(err error, k HandshakeKind) bool {
	return errors.Is(err, &HandshakeError{Kind: k})
}

func TestConnector(t *testing.T) {
	ns := inproc.NewNamespace()
	tp := inproc.New(inproc.OptNamespace(ns))

	t.Run("Ready", func(t *testing.T) {
		assert.NoError(t, NewConnector(tp, peers(1)).Ready())
	})

	t.Run("DialError", func(t *testing.T) {
		_, err := NewConnector(tp, peers(1)).Connect(context.Background(), inproc.Addr("/nobody"))
		assert.True(t, isHandshake(err, HandshakeIo), err)
	})

	t.Run("EchoedNonce", func(t *testing.T) {
		defer fakePeer(t, tp, "/echo", func(s *wire.Stream, _ io.Writer) {
			m, err := s.ReadMessage()
			if err != nil {
				return
			}
			s.WriteMessage(m)
			s.ReadMessage()
		})()

		_, err := NewConnector(tp, peers(1), OptNonces(NewNonceSet(0))).
			Connect(context.Background(), inproc.Addr("/echo"))
		assert.True(t, isHandshake(err, HandshakeNonceReuse), err)
	})

	t.Run("ObsoleteVersion", func(t *testing.T) {
		defer fakePeer(t, tp, "/obsolete", func(s *wire.Stream, _ io.Writer) {
			s.ReadMessage()
			s.WriteMessage(&wire.Version{Version: wire.MinVersion - 1, Nonce: 1})
			s.ReadMessage()
		})()

		_, err := NewConnector(tp, peers(1)).Connect(context.Background(), inproc.Addr("/obsolete"))
		assert.True(t, isHandshake(err, HandshakeObsoleteVersion), err)
	})

	t.Run("UnexpectedMessage", func(t *testing.T) {
		defer fakePeer(t, tp, "/unexpected", func(s *wire.Stream, _ io.Writer) {
			s.ReadMessage()
			s.WriteMessage(&wire.Verack{})
			s.ReadMessage()
		})()

		_, err := NewConnector(tp, peers(1)).Connect(context.Background(), inproc.Addr("/unexpected"))
		if assert.True(t, isHandshake(err, HandshakeUnexpectedMessage), err) {
			assert.Equal(t, wire.CmdVerack, err.(*HandshakeError).Msg)
		}
	})

	t.Run("ConnectionClosed", func(t *testing.T) {
		defer fakePeer(t, tp, "/hangup", func(s *wire.Stream, _ io.Writer) {
			s.ReadMessage()
			s.Close()
		})()

		_, err := NewConnector(tp, peers(1)).Connect(context.Background(), inproc.Addr("/hangup"))
		assert.True(t, isHandshake(err, HandshakeConnectionClosed), err)
	})

	t.Run("Serialization", func(t *testing.T) {
		defer fakePeer(t, tp, "/garbage", func(s *wire.Stream, raw io.Writer) {
			s.ReadMessage()
			// Testnet magic on a mainnet connection
			b, _ := wire.Encode(wire.Testnet, &wire.Verack{})
			raw.Write(b)
			s.ReadMessage()
		})()

		_, err := NewConnector(tp, peers(1)).Connect(context.Background(), inproc.Addr("/garbage"))
		assert.True(t, isHandshake(err, HandshakeSerialization), err)
	})

	t.Run("Timeout", func(t *testing.T) {
		defer fakePeer(t, tp, "/silent", func(s *wire.Stream, _ io.Writer) {
			s.ReadMessage()
			s.ReadMessage()
		})()

		_, err := NewConnector(tp, peers(1), OptHandshakeTimeout(20*time.Millisecond)).
			Connect(context.Background(), inproc.Addr("/silent"))
		assert.True(t, isHandshake(err, HandshakeIo), err)
	})

	t.Run("Canceled", func(t *testing.T) {
		defer fakePeer(t, tp, "/slow", func(s *wire.Stream, _ io.Writer) {
			s.ReadMessage()
			s.ReadMessage()
		})()

		c, cancel := context.WithCancel(context.Background())
		time.AfterFunc(20*time.Millisecond, cancel)

		_, err := NewConnector(tp, peers(1)).Connect(c, inproc.Addr("/slow"))
		assert.True(t, isHandshake(err, HandshakeIo), err)
	})
}

func listen(t *testing.T, tp pipe.Transport, a inproc.Addr, l *Listener) func() {
	c, cancel := context.WithCancel(context.Background())

	pl, err := tp.Listen(c, a)
	require.NoError(t, err)

	go l.Serve(pl)

	return func() {
		l.Close()
		cancel()
	}
}

func TestLoopback(t *testing.T) {
	tp := inproc.New(inproc.OptNamespace(inproc.NewNamespace()))

	accepted := make(chan *Client, 1)
	l := NewListener(peers(2), HandlerFunc(func(c *Client) { accepted <- c }),
		OptNonces(NewNonceSet(0)),
		OptUserAgent("/listener/"),
		OptVersion(wire.CurrentVersion-1, wire.MinVersion))
	defer listen(t, tp, "/loopback", l)()

	cn := NewConnector(tp, peers(1), OptNonces(NewNonceSet(0)), OptHeartbeat(0))

	client, err := cn.Connect(context.Background(), inproc.Addr("/loopback"))
	require.NoError(t, err)

	var remote *Client
	select {
	case remote = <-accepted:
	case <-time.After(time.Second):
		t.Fatal("listener handler not called")
	}

	t.Run("Handshake", func(t *testing.T) {
		info := client.Info()
		assert.Equal(t, inproc.Addr("/loopback"), info.Addr)
		assert.Equal(t, "/listener/", info.UserAgent)
		assert.Equal(t, wire.CurrentVersion-1, info.Version, "version not negotiated")
		assert.Equal(t, wire.CurrentVersion-1, remote.Info().Version)

		assert.False(t, cn.Config().Nonces.Contains(info.Nonce), "false self-connection")
		assert.NotEqual(t, info.Nonce, remote.Info().Nonce)
		assert.NotEqual(t, client.ID(), remote.ID())
	})

	t.Run("Outbound", func(t *testing.T) {
		res, err := client.Call(context.Background(), svc.GetPeers{})
		require.NoError(t, err)
		assert.Equal(t, uint16(2), res.(svc.Peers).Addrs[0].Addr.Port)
	})

	t.Run("Inbound", func(t *testing.T) {
		res, err := remote.Call(context.Background(), svc.GetPeers{})
		require.NoError(t, err)
		assert.Equal(t, uint16(1), res.(svc.Peers).Addrs[0].Addr.Port)
	})

	t.Run("Live", func(t *testing.T) {
		assert.Equal(t, 1, cn.Live())
		assert.Equal(t, 1, l.Live())
	})

	t.Run("DeadPeer", func(t *testing.T) {
		client.Close()
		waitDone(t, client)
		assert.True(t, errors.Is(client.Err(), ErrDeadPeerClient))

		// The remote end sees the stream close.
		waitDone(t, remote)
		_, err := remote.Call(context.Background(), svc.GetPeers{})
		assert.True(t, errors.Is(err, ErrConnectionClosed), err)

		assert.Eventually(t, func() bool {
			return cn.Live() == 0 && l.Live() == 0
		}, time.Second, time.Millisecond)
	})
}

func TestSelfConnection(t *testing.T) {
	tp := inproc.New(inproc.OptNamespace(inproc.NewNamespace()))
	nonces := NewNonceSet(0)

	l := NewListener(peers(1), nil, OptNonces(nonces))
	defer listen(t, tp, "/self", l)()

	_, err := NewConnector(tp, peers(1), OptNonces(nonces)).
		Connect(context.Background(), inproc.Addr("/self"))
	assert.IsType(t, &HandshakeError{}, err)
	assert.Eventually(t, func() bool { return l.Live() == 0 }, time.Second, time.Millisecond)
}
