package peer

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/SentimensRG/ctx"
	"github.com/jpillora/backoff"
	pipe "github.com/lthibault/peerwerks/pkg"
	pnet "github.com/lthibault/peerwerks/pkg/net"
	"github.com/lthibault/peerwerks/pkg/svc"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

var (
	// ErrListenerClosed indicates that the listener is no longer accepting
	// connections.
	ErrListenerClosed = errors.New("listener closed")
)

// Handler receives inbound sessions
type Handler interface {
	ServePeer(*Client)
}

// HandlerFunc is a type-adapter to allow the use of ordinary functions as
// session handlers.
type HandlerFunc func(*Client)

// ServePeer calls f(c)
func (f HandlerFunc) ServePeer(c *Client) { f(c) }

// Listener accepts inbound peer connections, performs the handshake and
// hands each session's Client to the Handler.
type Listener struct {
	Handler
	Backoff backoff.Backoff

	cfg Config
	svc svc.Service

	init sync.Once
	mu   sync.Mutex
	cq   chan struct{}
	ls   *listenerSet
	cs   connSet
}

// NewListener answering inbound peer requests with s.
func NewListener(s svc.Service, h Handler, opt ...Option) *Listener {
	if h == nil {
		h = HandlerFunc(func(*Client) {})
	}

	return &Listener{
		Handler: h,
		Backoff: backoff.Backoff{Max: time.Minute, Jitter: true},
		cfg:     newConfig(opt),
		svc:     s,
	}
}

func (l *Listener) setup() {
	l.init.Do(func() {
		l.cq = make(chan struct{})
		l.ls = &listenerSet{ls: make(map[*pipe.Listener]struct{}), mu: &l.mu}
		l.cs.cs = make(map[io.Closer]struct{})
	})
}

// Config of the Listener
func (l *Listener) Config() Config { return l.cfg }

// Live is the number of inbound sessions that have not yet ended.
func (l *Listener) Live() int {
	l.setup()
	return l.cs.len()
}

// Serve peers.  Serve always returns a non-nil error and closes pl.
func (l *Listener) Serve(pl pipe.Listener) error {
	l.setup()

	pl = &closeOnceListener{Listener: pl}
	defer pl.Close()

	if !l.ls.Add(&pl) {
		return ErrListenerClosed
	}
	defer l.ls.Del(&pl)

	c := ctx.AsContext(ctx.C(l.cq))
	log := l.cfg.Logger.WithField("addr", pl.Addr())

	for {
		conn, e := pl.Accept(c)
		if e != nil {
			select {
			case <-l.cq:
				return ErrListenerClosed
			default:
				if l.ls.Closed() {
					return ErrListenerClosed
				}
			}

			if pnet.IsTemporary(e) {
				log.WithError(e).
					WithField("retry", l.Backoff.ForAttempt(l.Backoff.Attempt())).
					Debug("failed to accept connection")
				time.Sleep(l.Backoff.Duration())
				continue
			}
			return e
		}

		l.Backoff.Reset()
		go l.serveConn(c, conn)
	}
}

func (l *Listener) serveConn(c context.Context, conn pipe.Conn) {
	b := backoff.Backoff{Max: time.Minute, Jitter: true}
	cc := &ctrConn{Conn: conn}

	go func() {
		select {
		case <-c.Done():
			conn.Close()
		case <-conn.Context().Done():
		}
	}()

	for {
		s, err := cc.Accept()
		if err != nil {
			if pnet.IsTemporary(err) {
				l.cfg.Logger.WithError(err).
					WithField("addr", conn.Endpoint().Remote()).
					WithField("retry", b.ForAttempt(b.Attempt())).
					Debug("failed to accept stream")
				time.Sleep(b.Duration())
				continue
			}
			return
		}

		go l.serveStream(c, s)
	}
}

func (l *Listener) serveStream(c context.Context, s pipe.Stream) {
	l.cs.Add(s)
	defer l.cs.Del(s)

	client, err := l.cfg.establish(c, inbound, l.svc, s)
	if err != nil {
		l.cfg.Logger.WithError(err).
			WithField("addr", s.Endpoint().Remote()).
			Debug("inbound handshake failed")
		return
	}

	l.cfg.Logger.WithField("addr", client.Info().Addr).
		WithField("session", client.ID()).
		Info("peer connected")

	l.ServePeer(client)
	<-client.Done()
}

// Close immediately, terminating all active pipe.Listeners and sessions.
// For graceful shutdown, use Shutdown.
func (l *Listener) Close() error {
	l.setup()

	select {
	case <-l.cq:
		return ErrListenerClosed
	default:
		close(l.cq)
	}

	var g errgroup.Group
	g.Go(l.ls.CloseAll)
	g.Go(l.cs.CloseAll)
	return g.Wait()
}

// Shutdown gracefully stops accepting connections, and waits for live
// sessions to end.
func (l *Listener) Shutdown(c context.Context) error {
	l.setup()

	var g errgroup.Group
	g.Go(l.ls.CloseAll)
	g.Go(func() error {
		ticker := time.NewTicker(time.Millisecond * 50)
		defer ticker.Stop()

		for {
			select {
			case <-c.Done():
				return c.Err()
			case <-ticker.C:
				if l.cs.len() == 0 {
					return nil
				}
			}
		}
	})
	return g.Wait()
}

type closeOnceListener struct {
	sync.Once
	pipe.Listener
	err error
}

func (l *closeOnceListener) Close() error {
	l.Do(func() { l.err = l.Listener.Close() })
	return l.err
}

type listenerSet struct {
	mu     sync.Locker
	ls     map[*pipe.Listener]struct{}
	closed bool
}

func (s *listenerSet) Add(l *pipe.Listener) (active bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.closed {
		s.ls[l] = struct{}{}
		active = true
	}

	return
}

func (s *listenerSet) Del(l *pipe.Listener) {
	s.mu.Lock()
	delete(s.ls, l)
	s.mu.Unlock()
}

func (s *listenerSet) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *listenerSet) CloseAll() error {
	s.mu.Lock()

	s.closed = true

	var g errgroup.Group
	for l := range s.ls {
		g.Go((*l).Close)
	}

	s.mu.Unlock()
	return g.Wait()
}

type connSet struct {
	mu sync.Mutex
	cs map[io.Closer]struct{}
}

func (c *connSet) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.cs)
}

func (c *connSet) Add(cl io.Closer) {
	c.mu.Lock()
	c.cs[cl] = struct{}{}
	c.mu.Unlock()
}

func (c *connSet) Del(cl io.Closer) {
	c.mu.Lock()
	delete(c.cs, cl)
	c.mu.Unlock()
}

func (c *connSet) CloseAll() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var g errgroup.Group
	for conn := range c.cs {
		g.Go(conn.Close)
	}
	return g.Wait()
}
