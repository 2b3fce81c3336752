package wire

import "fmt"

// SerializationError reports a frame or message body that could not be
// encoded or decoded.
type SerializationError struct {
	Command string
	Reason  string
	Err     error
}

func serializationErr(cmd, reason string, err error) *SerializationError {
	return &SerializationError{Command: cmd, Reason: reason, Err: err}
}

func (e *SerializationError) Error() string {
	msg := e.Reason
	if e.Command != "" {
		msg = fmt.Sprintf("%s: %s", e.Command, msg)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return "serialization: " + msg
}

// Unwrap returns the underlying decoder error, if any.
func (e *SerializationError) Unwrap() error { return e.Err }
