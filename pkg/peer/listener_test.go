package peer

import (
	"context"
	"testing"
	"time"

	"github.com/lthibault/peerwerks/pkg/svc"
	"github.com/lthibault/peerwerks/pkg/transport/inproc"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandlerFunc(t *testing.T) {
	var called bool
	HandlerFunc(func(*Client) { called = true }).ServePeer(nil)
	assert.True(t, called)
}

func TestListener(t *testing.T) {
	tp := inproc.New(inproc.OptNamespace(inproc.NewNamespace()))

	serve := func(l *Listener, a inproc.Addr) <-chan error {
		pl, err := tp.Listen(context.Background(), a)
		require.NoError(t, err)

		ch := make(chan error, 1)
		go func() { ch <- l.Serve(pl) }()
		return ch
	}

	t.Run("Close", func(t *testing.T) {
		l := NewListener(peers(1), nil, OptNonces(NewNonceSet(0)))
		errs := serve(l, "/close")

		client, err := NewConnector(tp, peers(2), OptNonces(NewNonceSet(0))).
			Connect(context.Background(), inproc.Addr("/close"))
		require.NoError(t, err)

		assert.NoError(t, l.Close())
		assert.Equal(t, ErrListenerClosed, l.Close())
		assert.Equal(t, ErrListenerClosed, <-errs)

		waitDone(t, client)
		assert.True(t, errors.Is(client.Err(), ErrConnectionClosed), client.Err())

		// Serving on a closed listener fails immediately.
		pl, err := tp.Listen(context.Background(), inproc.Addr("/closed"))
		require.NoError(t, err)
		assert.Equal(t, ErrListenerClosed, l.Serve(pl))
	})

	t.Run("Shutdown", func(t *testing.T) {
		l := NewListener(peers(1), nil, OptNonces(NewNonceSet(0)))
		errs := serve(l, "/shutdown")

		client, err := NewConnector(tp, peers(2), OptNonces(NewNonceSet(0))).
			Connect(context.Background(), inproc.Addr("/shutdown"))
		require.NoError(t, err)

		// A live session blocks graceful shutdown.
		c, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
		defer cancel()
		assert.Equal(t, context.DeadlineExceeded, l.Shutdown(c))
		assert.Equal(t, ErrListenerClosed, <-errs)

		// The session survives the listener.
		_, err = client.Call(context.Background(), svc.GetPeers{})
		assert.NoError(t, err)

		client.Close()
		assert.NoError(t, l.Shutdown(context.Background()))
	})
}
