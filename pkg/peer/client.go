package peer

import (
	"context"
	"sync"

	"github.com/google/uuid"
	log "github.com/lthibault/log/pkg"
	"github.com/lthibault/peerwerks/pkg/svc"
)

// Client is the caller-facing half of a peer session.  It satisfies
// svc.Service, so requests to a remote peer look like requests to any other
// service.
//
// A Client supports a single outstanding request.  A concurrent Call waits
// for the previous one to complete; callers should check Ready before each
// Call.
type Client struct {
	log  log.Logger
	id   string
	info Info

	slot *ErrorSlot
	reqs chan<- clientRequest
	done <-chan struct{}

	closeOnce sync.Once
	gone      chan struct{}
}

// spawn a session over an established stream, returning its Client.
func spawn(c context.Context, cfg *Config, h svc.Service, s stream, info Info) *Client {
	var (
		id   = uuid.NewString()
		slot = new(ErrorSlot)
		reqs = make(chan clientRequest, 1)
		gone = make(chan struct{})
		done = make(chan struct{})
		l    = cfg.Logger.WithField("session", id).WithField("addr", info.Addr)
	)

	srv := &server{
		log:  l,
		cfg:  cfg,
		svc:  h,
		info: info,
		slot: slot,
		s:    s,
		reqs: reqs,
		gone: gone,
		done: done,
		in:   make(chan inboundMessage),
	}
	go srv.run(c)

	return &Client{
		log:  l,
		id:   id,
		info: info,
		slot: slot,
		reqs: reqs,
		done: done,
		gone: gone,
	}
}

// ID is a diagnostic tag for the session.
func (c *Client) ID() string { return c.id }

// Info about the remote peer.
func (c *Client) Info() Info { return c.info }

// Done expires when the session ends.
func (c *Client) Done() <-chan struct{} { return c.done }

// Err returns the session's terminal error, or nil if it is live.
func (c *Client) Err() error { return c.slot.Err() }

// Ready returns nil if a Call may be issued now.  It returns svc.ErrNotReady
// while a request is queued, and the session error once the session failed.
func (c *Client) Ready() error {
	if err := c.slot.Err(); err != nil {
		return err
	}

	select {
	case <-c.done:
		return c.serverGone()
	default:
	}

	if len(c.reqs) == cap(c.reqs) {
		return svc.ErrNotReady
	}

	return nil
}

// Call the remote peer.  If the session has failed, the session error is
// returned without contacting the peer.
func (c *Client) Call(ctx context.Context, r svc.Request) (svc.Response, error) {
	if err := c.slot.Err(); err != nil {
		return nil, err
	}

	reply := make(chan result, 1)

	select {
	case c.reqs <- clientRequest{req: r, reply: reply}:
	case <-c.done:
		return nil, c.serverGone()
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case res := <-reply:
		return res.res, res.err
	case <-c.done:
		// The server may have replied just before exiting.
		select {
		case res := <-reply:
			return res.res, res.err
		default:
			return nil, c.serverGone()
		}
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *Client) serverGone() error {
	if c.slot.Record(newError(DeadPeerServer, nil)) {
		c.log.Debug("peer server exited without recording an error")
	}
	return c.slot.Err()
}

// Close the Client.  The session ends with DeadPeerClient unless it has
// already failed.  Close does not wait for the session to end.
func (c *Client) Close() error {
	c.closeOnce.Do(func() { close(c.gone) })
	return nil
}
