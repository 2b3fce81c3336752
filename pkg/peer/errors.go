package peer

import (
	"fmt"
	"io"

	"github.com/lthibault/peerwerks/pkg/wire"
	"github.com/pkg/errors"
)

// ErrorKind classifies a terminal session error.
type ErrorKind uint8

const (
	// ConnectionClosed indicates the remote end closed the stream.
	ConnectionClosed ErrorKind = iota
	// DeadPeerClient indicates the Client was closed while the Server was running.
	DeadPeerClient
	// DeadPeerServer indicates the Server exited while the Client was in use.
	DeadPeerServer
	// ClientRequestTimeout indicates no correlated response arrived in time.
	ClientRequestTimeout
	// Serialization indicates a message could not be encoded or decoded.
	Serialization
	// DuplicateHandshake indicates a handshake message arrived mid-session.
	DuplicateHandshake
	// HeartbeatNonceMismatch indicates a pong did not echo our ping.
	HeartbeatNonceMismatch
	// Overloaded indicates the session was shed because the Service was
	// saturated.
	Overloaded
)

func (k ErrorKind) String() string {
	switch k {
	case ConnectionClosed:
		return "connection closed"
	case DeadPeerClient:
		return "peer client dropped"
	case DeadPeerServer:
		return "peer server exited"
	case ClientRequestTimeout:
		return "client request timed out"
	case Serialization:
		return "serialization"
	case DuplicateHandshake:
		return "duplicate handshake"
	case HeartbeatNonceMismatch:
		return "heartbeat nonce mismatch"
	case Overloaded:
		return "overloaded"
	}

	panic("unreachable")
}

// Sentinel session errors, for use with errors.Is.
var (
	ErrConnectionClosed       = &PeerError{Kind: ConnectionClosed}
	ErrDeadPeerClient         = &PeerError{Kind: DeadPeerClient}
	ErrDeadPeerServer         = &PeerError{Kind: DeadPeerServer}
	ErrClientRequestTimeout   = &PeerError{Kind: ClientRequestTimeout}
	ErrSerialization          = &PeerError{Kind: Serialization}
	ErrDuplicateHandshake     = &PeerError{Kind: DuplicateHandshake}
	ErrHeartbeatNonceMismatch = &PeerError{Kind: HeartbeatNonceMismatch}
	ErrOverloaded             = &PeerError{Kind: Overloaded}
)

// PeerError is a terminal session error.
type PeerError struct {
	Kind  ErrorKind
	cause error
}

func newError(k ErrorKind, cause error) *PeerError {
	return &PeerError{Kind: k, cause: cause}
}

func (e *PeerError) Error() string {
	if e.cause == nil {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.cause)
}

// Unwrap returns the underlying error, if any.
func (e *PeerError) Unwrap() error { return e.cause }

// Is reports whether target is a *PeerError of the same kind.
func (e *PeerError) Is(target error) bool {
	t, ok := target.(*PeerError)
	return ok && t.Kind == e.Kind
}

// SharedError is the authoritative session error, as observed by both
// halves of a session.  Every reader sees the same value.
type SharedError struct{ *PeerError }

// Unwrap returns the PeerError.
func (e SharedError) Unwrap() error { return e.PeerError }

// streamErr classifies a read or write failure on the message stream.
func streamErr(err error) *PeerError {
	var se *wire.SerializationError
	if errors.As(err, &se) {
		return newError(Serialization, err)
	}
	return newError(ConnectionClosed, err)
}

// HandshakeKind classifies a handshake failure.
type HandshakeKind uint8

const (
	// HandshakeUnexpectedMessage indicates the peer sent a message out of
	// handshake order.
	HandshakeUnexpectedMessage HandshakeKind = iota
	// HandshakeNonceReuse indicates the peer echoed a nonce we generated,
	// i.e. we dialed ourselves.
	HandshakeNonceReuse
	// HandshakeConnectionClosed indicates the stream closed mid-handshake.
	HandshakeConnectionClosed
	// HandshakeIo indicates a transport failure, including timeouts.
	HandshakeIo
	// HandshakeSerialization indicates a malformed message.
	HandshakeSerialization
	// HandshakeObsoleteVersion indicates the peer speaks a protocol version
	// older than we accept.
	HandshakeObsoleteVersion
)

func (k HandshakeKind) String() string {
	switch k {
	case HandshakeUnexpectedMessage:
		return "unexpected message"
	case HandshakeNonceReuse:
		return "nonce reuse (self-connection)"
	case HandshakeConnectionClosed:
		return "connection closed"
	case HandshakeIo:
		return "io"
	case HandshakeSerialization:
		return "serialization"
	case HandshakeObsoleteVersion:
		return "obsolete version"
	}

	panic("unreachable")
}

// HandshakeError is returned when a connection fails before a session is
// established.
type HandshakeError struct {
	Kind HandshakeKind
	// Msg is the offending command, if any.
	Msg   string
	cause error
}

func (e *HandshakeError) Error() string {
	msg := "handshake: " + e.Kind.String()
	if e.Msg != "" {
		msg += " " + e.Msg
	}
	if e.cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.cause)
	}
	return msg
}

// Unwrap returns the underlying error, if any.
func (e *HandshakeError) Unwrap() error { return e.cause }

// Is reports whether target is a *HandshakeError of the same kind.
func (e *HandshakeError) Is(target error) bool {
	t, ok := target.(*HandshakeError)
	return ok && t.Kind == e.Kind
}

func handshakeErr(err error) *HandshakeError {
	var (
		he *HandshakeError
		se *wire.SerializationError
	)

	switch {
	case errors.As(err, &he):
		return he
	case errors.As(err, &se):
		return &HandshakeError{Kind: HandshakeSerialization, Msg: se.Command, cause: err}
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrClosedPipe), errors.Is(err, io.ErrUnexpectedEOF):
		return &HandshakeError{Kind: HandshakeConnectionClosed, cause: err}
	}

	return &HandshakeError{Kind: HandshakeIo, cause: err}
}
