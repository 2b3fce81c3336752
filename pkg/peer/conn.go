package peer

import (
	"sync"

	pipe "github.com/lthibault/peerwerks/pkg"
	synctoolz "github.com/lthibault/toolz/pkg/sync"
)

// ctrConn closes the underlying connection when its last session stream
// closes.
type ctrConn struct {
	mu sync.Mutex
	synctoolz.Ctr
	pipe.Conn
}

func (c *ctrConn) gc() {
	c.mu.Lock()
	if c.Ctr.Decr() == 0 {
		c.Conn.Close()
	}
	c.mu.Unlock()
}

func (c *ctrConn) wrapStream(s pipe.Stream) pipe.Stream {
	c.mu.Lock()
	c.Ctr.Incr()
	c.mu.Unlock()

	return &ctrStream{Stream: s, done: c.gc}
}

// Open a session stream.
func (c *ctrConn) Open() (pipe.Stream, error) {
	s, err := c.Conn.Stream().Open()
	if err != nil {
		return nil, err
	}
	return c.wrapStream(s), nil
}

// Accept a session stream.  A conn that never carried a session stays open
// until the remote end closes it.
func (c *ctrConn) Accept() (pipe.Stream, error) {
	s, err := c.Conn.Stream().Accept()
	if err != nil {
		return nil, err
	}
	return c.wrapStream(s), nil
}

type ctrStream struct {
	once sync.Once
	pipe.Stream
	done func()
}

func (s *ctrStream) Close() (err error) {
	s.once.Do(func() {
		defer s.done() // decr-ing before close might cause Close() to report errors
		err = s.Stream.Close()
	})
	return
}
