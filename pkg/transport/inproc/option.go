package inproc

import "github.com/lthibault/peerwerks/pkg/transport/generic"

// Option for Transport
type Option func(*Transport) (prev Option)

// OptNamespace sets the namespace for the Transport.  Only transports sharing
// a namespace can reach each other.
func OptNamespace(n *Namespace) Option {
	return func(t *Transport) (prev Option) {
		old, _ := t.Transport.NetDialer.(*Namespace)
		prev = OptNamespace(old)
		t.Transport.NetListener = n
		t.Transport.NetDialer = n
		return
	}
}

// OptGeneric sets an option on the underlying generic transport
func OptGeneric(opt generic.Option) Option {
	return func(t *Transport) Option {
		return OptGeneric(opt(&t.Transport))
	}
}
