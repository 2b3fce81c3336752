package addrbook

import (
	"context"
	"net"
	"time"

	log "github.com/lthibault/log/pkg"
)

// DefaultCollectorSize is the capacity of a Collector's channel.
const DefaultCollectorSize = 100

// PeerLastSeen reports that a message was received from Addr at Time.
type PeerLastSeen struct {
	Addr net.Addr
	Time time.Time
}

// Collector folds last-seen reports from peer sessions into a Book.
// Reports are best effort: senders drop them when the channel is full.
type Collector struct {
	Logger log.Logger

	book *Book
	ch   chan PeerLastSeen
}

// NewCollector feeding b through a channel with the given capacity.
func NewCollector(b *Book, size int) *Collector {
	if size <= 0 {
		size = DefaultCollectorSize
	}

	return &Collector{
		Logger: log.New(log.OptLevel(log.NullLevel)),
		book:   b,
		ch:     make(chan PeerLastSeen, size),
	}
}

// Book the collector writes to.
func (c *Collector) Book() *Book { return c.book }

// Sender returns the handle sessions report on.
func (c *Collector) Sender() chan<- PeerLastSeen { return c.ch }

// Run until ctx expires.
func (c *Collector) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case s := <-c.ch:
			c.book.Seen(s.Addr, s.Time)
			c.Logger.WithField("addr", s.Addr).Debug("peer seen")
		}
	}
}
