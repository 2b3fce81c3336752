package addrbook

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/lthibault/peerwerks/pkg/wire"
	"github.com/stretchr/testify/assert"
)

func meta(addr string, s wire.Services, t time.Time) wire.MetaAddr {
	a, _ := net.ResolveTCPAddr("tcp", addr)
	return wire.MetaAddr{Addr: wire.NewNetAddress(a, s), LastSeen: t}
}

func TestBook(t *testing.T) {
	b := New()
	now := time.Now()

	t.Run("Update", func(t *testing.T) {
		b.Update(meta("10.0.0.1:8233", wire.NodeNetwork, now))
		b.Update(meta("10.0.0.2:8233", 0, now.Add(-time.Hour)))
		assert.Equal(t, 2, b.Len())
	})

	t.Run("KeepServices", func(t *testing.T) {
		b.Update(meta("10.0.0.1:8233", 0, now.Add(time.Minute)))
		m, ok := b.Get("10.0.0.1:8233")
		assert.True(t, ok)
		assert.Equal(t, wire.NodeNetwork, m.Addr.Services)
	})

	t.Run("Monotonic", func(t *testing.T) {
		b.Update(meta("10.0.0.1:8233", 0, now.Add(-24*time.Hour)))
		m, _ := b.Get("10.0.0.1:8233")
		assert.True(t, m.LastSeen.Equal(now.Add(time.Minute)))
	})

	t.Run("PeersByRecency", func(t *testing.T) {
		ps := b.Peers()
		if assert.Len(t, ps, 2) {
			assert.Equal(t, "10.0.0.1:8233", ps[0].Addr.String())
			assert.Equal(t, "10.0.0.2:8233", ps[1].Addr.String())
		}
	})

	t.Run("Seen", func(t *testing.T) {
		b.Seen(&net.TCPAddr{IP: net.ParseIP("10.0.0.3"), Port: 8233}, now)
		_, ok := b.Get("10.0.0.3:8233")
		assert.True(t, ok)
	})
}

func TestSanitize(t *testing.T) {
	ts := time.Date(2019, 9, 1, 12, 47, 13, 0, time.UTC)
	m := Sanitize(meta("10.0.0.1:8233", 0, ts))
	assert.Equal(t, time.Date(2019, 9, 1, 12, 30, 0, 0, time.UTC), m.LastSeen.UTC())
}

func TestCollector(t *testing.T) {
	c := NewCollector(New(), 1)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() { done <- c.Run(ctx) }()

	c.Sender() <- PeerLastSeen{
		Addr: &net.TCPAddr{IP: net.ParseIP("10.0.0.9"), Port: 8233},
		Time: time.Now(),
	}

	assert.Eventually(t, func() bool {
		_, ok := c.Book().Get("10.0.0.9:8233")
		return ok
	}, time.Second, time.Millisecond)

	cancel()
	assert.Equal(t, context.Canceled, <-done)
}
