// Package peer implements peer sessions: the Connector dials and handshakes
// outbound peers, the Listener does the same for inbound ones, and each
// established session is split into a Client, used by callers, and a
// session driver goroutine that owns the message stream.  The two halves
// share nothing but an ErrorSlot holding the session's terminal error.
package peer
