package wire

import (
	"bufio"
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"io"
	"sync"
)

const (
	headerLen  = 24
	commandLen = 12

	// MaxBodyLen is the largest message body accepted or produced.
	MaxBodyLen = 2 << 20
)

func checksum(b []byte) (sum [4]byte) {
	first := sha256.Sum256(b)
	second := sha256.Sum256(first[:])
	copy(sum[:], second[:4])
	return
}

// Reader decodes framed messages from a byte stream.
type Reader struct {
	net Network
	r   *bufio.Reader
}

// NewReader decodes messages for network n from r.
func NewReader(r io.Reader, n Network) *Reader {
	return &Reader{net: n, r: bufio.NewReader(r)}
}

// ReadMessage blocks until a full frame has been read.  Transport errors are
// returned as is (io.EOF when the remote end closed cleanly); malformed frames
// produce a *SerializationError.
func (r *Reader) ReadMessage() (Message, error) {
	var hdr [headerLen]byte
	if _, err := io.ReadFull(r.r, hdr[:]); err != nil {
		if err == io.ErrUnexpectedEOF {
			err = io.EOF
		}
		return nil, err
	}

	if magic := r.net.Magic(); !bytes.Equal(hdr[:4], magic[:]) {
		return nil, serializationErr("", "bad network magic", nil)
	}

	cmd := string(bytes.TrimRight(hdr[4:4+commandLen], "\x00"))
	size := binary.LittleEndian.Uint32(hdr[16:20])
	if size > MaxBodyLen {
		return nil, serializationErr(cmd, "body exceeds maximum length", nil)
	}

	body := make([]byte, size)
	if _, err := io.ReadFull(r.r, body); err != nil {
		if err == io.ErrUnexpectedEOF {
			err = io.EOF
		}
		return nil, err
	}

	if sum := checksum(body); !bytes.Equal(hdr[20:24], sum[:]) {
		return nil, serializationErr(cmd, "bad checksum", nil)
	}

	m, ok := newMessage(cmd)
	if !ok {
		return nil, serializationErr(cmd, "unknown command", nil)
	}

	if err := decodeBody(m, body); err != nil {
		return nil, err
	}

	return m, nil
}

// Writer encodes messages onto a byte stream.  It is safe for concurrent use;
// frames are never interleaved.
type Writer struct {
	net Network

	mu sync.Mutex
	w  io.Writer
}

// NewWriter encodes messages for network n onto w.
func NewWriter(w io.Writer, n Network) *Writer { return &Writer{net: n, w: w} }

// WriteMessage encodes m and writes it as a single frame.
func (w *Writer) WriteMessage(m Message) error {
	frame, err := Encode(w.net, m)
	if err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	_, err = w.w.Write(frame)
	return err
}

// Encode m as a complete frame for network n.
func Encode(n Network, m Message) ([]byte, error) {
	cmd := m.Command()
	if len(cmd) > commandLen {
		return nil, serializationErr(cmd, "command too long", nil)
	}

	body, err := encodeBody(m)
	if err != nil {
		return nil, err
	}
	if len(body) > MaxBodyLen {
		return nil, serializationErr(cmd, "body exceeds maximum length", nil)
	}

	frame := make([]byte, headerLen+len(body))
	magic := n.Magic()
	copy(frame[:4], magic[:])
	copy(frame[4:4+commandLen], cmd)
	binary.LittleEndian.PutUint32(frame[16:20], uint32(len(body)))
	sum := checksum(body)
	copy(frame[20:24], sum[:])
	copy(frame[headerLen:], body)

	return frame, nil
}
