package inproc

import (
	"context"
	"net"
	"sync"

	radix "github.com/armon/go-radix"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// DefaultNamespace is a global namespace that is used by default
var DefaultNamespace = NewNamespace()

// Namespace is an isolated address space.  It satisfies generic.NetListener
// and generic.NetDialer.
type Namespace struct {
	mu sync.RWMutex
	r  *radix.Tree
}

// NewNamespace with no bound addresses
func NewNamespace() *Namespace { return &Namespace{r: radix.New()} }

func (n *Namespace) getListener(path string) (l *listener, ok bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()

	var v interface{}
	if v, ok = n.r.Get(path); ok {
		l = v.(*listener)
	}

	return
}

func (n *Namespace) unbind(path string) {
	n.mu.Lock()
	n.r.Delete(path)
	n.mu.Unlock()
}

// Listen binds address in the namespace
func (n *Namespace) Listen(c context.Context, network, address string) (net.Listener, error) {
	if network != "inproc" {
		return nil, errors.New("invalid network")
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	if _, ok := n.r.Get(address); ok {
		return nil, errors.Errorf("address %s already bound", address)
	}

	l := newListener(Addr(address), func() { n.unbind(address) })
	n.r.Insert(address, l)

	return l, nil
}

// DialContext connects to the listener bound to address.  The dialing end is
// given a random ephemeral address.
func (n *Namespace) DialContext(c context.Context, network, address string) (net.Conn, error) {
	if network != "inproc" {
		return nil, errors.New("invalid network")
	}

	l, ok := n.getListener(address)
	if !ok {
		return nil, errors.New("connection refused")
	}

	local, remote := net.Pipe()
	ephemeral := Addr("/" + uuid.NewString())

	if err := l.connect(c, pipeConn{Conn: remote, local: l.a, remote: ephemeral}); err != nil {
		local.Close()
		remote.Close()
		return nil, err
	}

	return pipeConn{Conn: local, local: ephemeral, remote: l.a}, nil
}

// pipeConn reports namespace addresses instead of net.Pipe's "pipe".
type pipeConn struct {
	net.Conn
	local, remote Addr
}

func (p pipeConn) LocalAddr() net.Addr  { return p.local }
func (p pipeConn) RemoteAddr() net.Addr { return p.remote }

type listener struct {
	o       sync.Once
	cq      chan struct{}
	ch      chan net.Conn
	a       Addr
	release func()
}

func newListener(a Addr, gc func()) *listener {
	return &listener{
		a:       a,
		ch:      make(chan net.Conn),
		cq:      make(chan struct{}),
		release: gc,
	}
}

func (l *listener) Addr() net.Addr { return l.a }

func (l *listener) Close() (err error) {
	err = errors.New("already closed")

	l.o.Do(func() {
		close(l.cq)
		l.release()
		err = nil
	})

	return
}

func (l *listener) Accept() (net.Conn, error) {
	select {
	case <-l.cq:
		return nil, errors.New("closed")
	case conn := <-l.ch:
		return conn, nil
	}
}

func (l *listener) connect(c context.Context, conn net.Conn) error {
	select {
	case <-c.Done():
		return c.Err()
	case <-l.cq:
		return errors.New("connection refused")
	case l.ch <- conn:
		return nil
	}
}
