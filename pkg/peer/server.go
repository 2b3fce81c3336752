package peer

import (
	"context"
	"time"

	log "github.com/lthibault/log/pkg"
	"github.com/lthibault/peerwerks/pkg/addrbook"
	"github.com/lthibault/peerwerks/pkg/svc"
	"github.com/lthibault/peerwerks/pkg/wire"
	"github.com/pkg/errors"
)

// State of a session driver
type State uint8

const (
	// AwaitingRequest is the idle state: no local request is outstanding.
	AwaitingRequest State = iota
	// AwaitingResponse means a request or heartbeat awaits its reply.
	AwaitingResponse
	// Failed is terminal.  The ErrorSlot holds the cause.
	Failed
)

func (s State) String() string {
	switch s {
	case AwaitingRequest:
		return "awaiting request"
	case AwaitingResponse:
		return "awaiting response"
	case Failed:
		return "failed"
	}

	panic("unreachable")
}

type result struct {
	res svc.Response
	err error
}

type clientRequest struct {
	req   svc.Request
	reply chan<- result // buffered
}

// pending is the metadata of the outstanding request.
type pending struct {
	heartbeat bool
	nonce     wire.Nonce
	reply     chan<- result
	timer     *time.Timer
}

func (p *pending) complete(r result) {
	if p.reply != nil {
		p.reply <- r
	}
}

type inboundMessage struct {
	msg wire.Message
	err error
}

type stream interface {
	messageStream
	Close() error
}

// server drives a session.  It is the only goroutine that writes to the
// stream after the handshake, and the only one that changes state.
type server struct {
	log  log.Logger
	cfg  *Config
	svc  svc.Service
	info Info

	slot *ErrorSlot
	s    stream
	reqs <-chan clientRequest
	gone <-chan struct{}
	done chan struct{}
	in   chan inboundMessage

	state   State
	pending *pending
}

// run until the session fails.  The session also fails when c expires.
func (s *server) run(c context.Context) {
	defer s.shutdown()

	go s.recv()

	var tick <-chan time.Time
	if s.cfg.HeartbeatInterval > 0 {
		t := time.NewTicker(s.cfg.HeartbeatInterval)
		defer t.Stop()
		tick = t.C
	}

	s.log.Info("session started")

	for s.state != Failed {
		switch s.state {
		case AwaitingRequest:
			s.awaitRequest(c, tick)
		case AwaitingResponse:
			s.awaitResponse(c)
		}
	}
}

func (s *server) awaitRequest(c context.Context, tick <-chan time.Time) {
	select {
	case m := <-s.in:
		s.handleMessage(c, m)
	case r := <-s.reqs:
		s.handleRequest(r)
	case <-tick:
		s.heartbeat()
	case <-s.gone:
		s.fail(newError(DeadPeerClient, nil))
	case <-c.Done():
		s.fail(newError(ConnectionClosed, c.Err()))
	}
}

func (s *server) awaitResponse(c context.Context) {
	select {
	case m := <-s.in:
		s.handleMessage(c, m)
	case <-s.pending.timer.C:
		s.fail(newError(ClientRequestTimeout, nil))
	case <-s.gone:
		s.fail(newError(DeadPeerClient, nil))
	case <-c.Done():
		s.fail(newError(ConnectionClosed, c.Err()))
	}
}

// recv forwards inbound messages to the driver, and reports each one to the
// last-seen collector.
func (s *server) recv() {
	for {
		m, err := s.s.ReadMessage()
		if err == nil {
			s.seen()
		}

		select {
		case s.in <- inboundMessage{msg: m, err: err}:
		case <-s.done:
			return
		}

		if err != nil {
			return
		}
	}
}

func (s *server) seen() {
	if s.cfg.LastSeen == nil {
		return
	}

	select {
	case s.cfg.LastSeen <- addrbook.PeerLastSeen{Addr: s.info.Addr, Time: time.Now()}:
	default:
		s.log.Warn("last-seen collector full; dropping report")
	}
}

func (s *server) send(m wire.Message) bool {
	if err := s.s.WriteMessage(m); err != nil {
		s.fail(streamErr(errors.Wrap(err, "write")))
		return false
	}
	return true
}

func (s *server) handleRequest(r clientRequest) {
	s.pending = &pending{reply: r.reply}

	switch req := r.req.(type) {
	case svc.GetPeers:
		if s.send(&wire.GetAddr{}) {
			s.await()
		}

	case svc.PushPeers:
		for _, batch := range batches(req.Addrs) {
			if !s.send(&wire.Addr{Addrs: batch}) {
				return
			}
		}
		s.finish(result{res: svc.Ok{}})

	case svc.PushTransaction:
		if s.send(&wire.Tx{Raw: req.Raw}) {
			s.finish(result{res: svc.Ok{}})
		}

	default:
		s.finish(result{err: errors.Errorf("unsupported request %T", r.req)})
	}
}

// await the reply to the pending request.
func (s *server) await() {
	d := s.cfg.RequestTimeout
	if d <= 0 {
		d = DefaultRequestTimeout
	}

	s.pending.timer = time.NewTimer(d)
	s.state = AwaitingResponse
}

// finish the pending request and return to AwaitingRequest.  If the request
// timer has already fired, the timeout wins.
func (s *server) finish(r result) {
	if t := s.pending.timer; t != nil && !t.Stop() {
		s.fail(newError(ClientRequestTimeout, nil))
		return
	}

	s.pending.complete(r)
	s.pending = nil
	s.state = AwaitingRequest
}

func (s *server) heartbeat() {
	s.pending = &pending{heartbeat: true, nonce: wire.NewNonce()}

	s.log.WithField("nonce", s.pending.nonce).Debug("sending heartbeat")
	if s.send(&wire.Ping{Nonce: s.pending.nonce}) {
		s.await()
	}
}

// awaiting reports whether the pending request, if any, expects m.
func (s *server) awaiting(m wire.Message) bool {
	if s.state != AwaitingResponse {
		return false
	}

	switch m.(type) {
	case *wire.Pong:
		return s.pending.heartbeat
	case *wire.Addr:
		return !s.pending.heartbeat
	}

	return false
}

func (s *server) handleMessage(c context.Context, in inboundMessage) {
	if in.err != nil {
		s.fail(streamErr(in.err))
		return
	}

	if s.awaiting(in.msg) {
		s.handleResponse(in.msg)
		return
	}

	switch m := in.msg.(type) {
	case *wire.Version, *wire.Verack:
		s.fail(newError(DuplicateHandshake, errors.Errorf("received %s", m.Command())))

	case *wire.Ping:
		s.send(&wire.Pong{Nonce: m.Nonce})

	case *wire.Pong:
		s.log.WithField("nonce", m.Nonce).Debug("ignoring unsolicited pong")

	case *wire.GetAddr:
		res, ok := s.call(c, svc.GetPeers{})
		if !ok {
			return
		}

		if ps, ok := res.(svc.Peers); ok {
			if len(ps.Addrs) > wire.MaxAddrPerMsg {
				ps.Addrs = ps.Addrs[:wire.MaxAddrPerMsg]
			}
			s.send(&wire.Addr{Addrs: ps.Addrs})
		}

	case *wire.Addr:
		s.call(c, svc.PushPeers{Addrs: m.Addrs})

	case *wire.Tx:
		s.call(c, svc.PushTransaction{Raw: m.Raw})

	default:
		s.log.WithField("cmd", m.Command()).Debug("ignoring message")
	}
}

func (s *server) handleResponse(m wire.Message) {
	switch msg := m.(type) {
	case *wire.Pong:
		if msg.Nonce != s.pending.nonce {
			s.fail(newError(HeartbeatNonceMismatch, errors.Errorf("sent %s, received %s",
				s.pending.nonce, msg.Nonce)))
			return
		}
		s.finish(result{})

	case *wire.Addr:
		s.finish(result{res: svc.Peers{Addrs: msg.Addrs}})
	}
}

// call the Service on behalf of the peer.  The session is shed if the
// service is not ready.  Call failures are not fatal.
func (s *server) call(c context.Context, r svc.Request) (svc.Response, bool) {
	if err := s.svc.Ready(); err != nil {
		s.fail(newError(Overloaded, err))
		return nil, false
	}

	res, err := s.svc.Call(c, r)
	if err != nil {
		s.log.WithError(err).WithField("request", r).Warn("service call failed")
		return nil, false
	}

	return res, true
}

// fail the session with e, unless it has already failed.  Any pending
// request observes the authoritative error.
func (s *server) fail(e *PeerError) {
	if !s.slot.Record(e) {
		s.log.WithError(e).Debug("discarding error; session already failed")
	}

	if p := s.pending; p != nil {
		if p.timer != nil {
			p.timer.Stop()
		}
		p.complete(result{err: s.slot.Err()})
		s.pending = nil
	}

	s.state = Failed
}

func (s *server) shutdown() {
	close(s.done)

	if err := s.s.Close(); err != nil {
		s.log.WithError(err).Debug("error closing stream")
	}

	s.log.WithError(s.slot.Err()).Info("session ended")
}

func batches(as []wire.MetaAddr) (b [][]wire.MetaAddr) {
	for len(as) > wire.MaxAddrPerMsg {
		b = append(b, as[:wire.MaxAddrPerMsg])
		as = as[wire.MaxAddrPerMsg:]
	}
	return append(b, as)
}
