package wire

import (
	"io"
	"sync"
)

// MessageReader is the inbound half of a message stream.
type MessageReader interface {
	ReadMessage() (Message, error)
}

// MessageWriter is the outbound half of a message stream.
type MessageWriter interface {
	WriteMessage(Message) error
}

// Stream is a duplex stream of decoded protocol messages over a transport
// connection.  The halves returned by Reader and Writer may be used from
// different goroutines.
type Stream struct {
	r *Reader
	w *Writer

	once sync.Once
	c    io.Closer
	err  error
}

// NewStream frames messages for network n over rwc.
func NewStream(rwc io.ReadWriteCloser, n Network) *Stream {
	return &Stream{
		r: NewReader(rwc, n),
		w: NewWriter(rwc, n),
		c: rwc,
	}
}

// Reader returns the inbound half.
func (s *Stream) Reader() MessageReader { return s.r }

// Writer returns the outbound half.
func (s *Stream) Writer() MessageWriter { return s.w }

// ReadMessage from the inbound half.
func (s *Stream) ReadMessage() (Message, error) { return s.r.ReadMessage() }

// WriteMessage to the outbound half.
func (s *Stream) WriteMessage(m Message) error { return s.w.WriteMessage(m) }

// Close the underlying connection.  Pending reads and writes on either half
// fail.  Close is idempotent.
func (s *Stream) Close() error {
	s.once.Do(func() { s.err = s.c.Close() })
	return s.err
}
