// Package svc defines the internal protocol spoken between peer sessions and
// the rest of the node, and the Service capability that answers it.
package svc

import (
	"context"

	"github.com/lthibault/peerwerks/pkg/wire"
	"github.com/pkg/errors"
)

// ErrNotReady is returned by Service.Ready when the service cannot accept
// more work right now.
var ErrNotReady = errors.New("service not ready")

// Request from a peer session, or to a remote peer.
type Request interface{ request() }

// Response to a Request.
type Response interface{ response() }

// GetPeers asks for known peer addresses.
type GetPeers struct{}

// PushPeers advertises addresses.
type PushPeers struct{ Addrs []wire.MetaAddr }

// PushTransaction relays a serialized transaction.
type PushTransaction struct{ Raw []byte }

func (GetPeers) request()        {}
func (PushPeers) request()       {}
func (PushTransaction) request() {}

// Ok acknowledges a request that carries no answer.
type Ok struct{}

// Peers answers GetPeers.
type Peers struct{ Addrs []wire.MetaAddr }

func (Ok) response()    {}
func (Peers) response() {}

// Service answers requests that remote peers send to this node.  A single
// Service is shared by every session, so implementations must be safe for
// concurrent use.
type Service interface {
	// Ready is a non-blocking readiness check.  It returns nil if a call may
	// be made now, and ErrNotReady (or another error) if the service is
	// saturated.  Callers must check Ready before each Call.
	Ready() error
	Call(context.Context, Request) (Response, error)
}

// Func is a type-adapter allowing an ordinary function to act as an
// always-ready Service.
type Func func(context.Context, Request) (Response, error)

// Ready always returns nil.
func (Func) Ready() error { return nil }

// Call f(c, r)
func (f Func) Call(c context.Context, r Request) (Response, error) { return f(c, r) }
