package peer

import (
	"testing"

	"github.com/lthibault/peerwerks/pkg/wire"
	"github.com/stretchr/testify/assert"
)

func TestNonceSet(t *testing.T) {
	s := NewNonceSet(2)

	n := s.Generate()
	assert.True(t, s.Contains(n))
	assert.False(t, s.Contains(n+1))

	s.Add(wire.Nonce(1))
	s.Add(n) // refresh
	s.Add(wire.Nonce(2))

	assert.Equal(t, 2, s.Len())
	assert.True(t, s.Contains(n))
	assert.True(t, s.Contains(2))
	assert.False(t, s.Contains(1), "oldest nonce not evicted")

	assert.Equal(t, DefaultNonceCapacity, NewNonceSet(0).cap)
}
