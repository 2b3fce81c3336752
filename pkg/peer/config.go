package peer

import (
	"net"
	"time"

	log "github.com/lthibault/log/pkg"
	"github.com/lthibault/peerwerks/pkg/addrbook"
	"github.com/lthibault/peerwerks/pkg/wire"
)

// Defaults
const (
	DefaultHandshakeTimeout  = 10 * time.Second
	DefaultRequestTimeout    = 20 * time.Second
	DefaultHeartbeatInterval = time.Minute
	DefaultUserAgent         = "/peerwerks:0.1.0/"
)

// Config describes this node to its peers.  It is read-only once passed to a
// Connector or Listener.
type Config struct {
	Network         wire.Network
	ProtocolVersion wire.ProtocolVersion
	MinVersion      wire.ProtocolVersion
	Services        wire.Services
	UserAgent       string
	StartHeight     uint32
	Relay           bool

	// ListenAddr is advertised to peers as our address.  It may be nil.
	ListenAddr net.Addr

	HandshakeTimeout time.Duration
	RequestTimeout   time.Duration
	// HeartbeatInterval between pings on an idle session.  Zero disables
	// heartbeats.
	HeartbeatInterval time.Duration

	Nonces *NonceSet
	// LastSeen receives a report for every message received from a peer.
	// Reports are dropped when the channel is full.  It may be nil.
	LastSeen chan<- addrbook.PeerLastSeen

	Logger log.Logger
}

// DefaultConfig for the main network.
func DefaultConfig() Config {
	return Config{
		Network:           wire.Mainnet,
		ProtocolVersion:   wire.CurrentVersion,
		MinVersion:        wire.MinVersion,
		Services:          wire.NodeNetwork,
		UserAgent:         DefaultUserAgent,
		HandshakeTimeout:  DefaultHandshakeTimeout,
		RequestTimeout:    DefaultRequestTimeout,
		HeartbeatInterval: DefaultHeartbeatInterval,
		Nonces:            DefaultNonces,
		Logger:            log.New(log.OptLevel(log.NullLevel)),
	}
}

func newConfig(opt []Option) (cfg Config) {
	cfg = DefaultConfig()
	for _, fn := range opt {
		fn(&cfg)
	}

	if cfg.Nonces == nil {
		cfg.Nonces = DefaultNonces
	}
	if cfg.Logger == nil {
		cfg.Logger = log.New(log.OptLevel(log.NullLevel))
	}

	return
}

// Option for Config
type Option func(*Config) (prev Option)

// OptNetwork sets the network declared in the handshake
func OptNetwork(n wire.Network) Option {
	return func(c *Config) (prev Option) {
		prev = OptNetwork(c.Network)
		c.Network = n
		return
	}
}

// OptVersion sets the advertised and minimum accepted protocol versions
func OptVersion(v, min wire.ProtocolVersion) Option {
	return func(c *Config) (prev Option) {
		prev = OptVersion(c.ProtocolVersion, c.MinVersion)
		c.ProtocolVersion, c.MinVersion = v, min
		return
	}
}

// OptServices sets the advertised services
func OptServices(s wire.Services) Option {
	return func(c *Config) (prev Option) {
		prev = OptServices(c.Services)
		c.Services = s
		return
	}
}

// OptUserAgent sets the user agent
func OptUserAgent(ua string) Option {
	return func(c *Config) (prev Option) {
		prev = OptUserAgent(c.UserAgent)
		c.UserAgent = ua
		return
	}
}

// OptStartHeight sets the reported chain height
func OptStartHeight(h uint32) Option {
	return func(c *Config) (prev Option) {
		prev = OptStartHeight(c.StartHeight)
		c.StartHeight = h
		return
	}
}

// OptRelay sets the relay flag
func OptRelay(r bool) Option {
	return func(c *Config) (prev Option) {
		prev = OptRelay(c.Relay)
		c.Relay = r
		return
	}
}

// OptListenAddr sets the address advertised to peers
func OptListenAddr(a net.Addr) Option {
	return func(c *Config) (prev Option) {
		prev = OptListenAddr(c.ListenAddr)
		c.ListenAddr = a
		return
	}
}

// OptHandshakeTimeout bounds the Version/Verack exchange
func OptHandshakeTimeout(d time.Duration) Option {
	return func(c *Config) (prev Option) {
		prev = OptHandshakeTimeout(c.HandshakeTimeout)
		c.HandshakeTimeout = d
		return
	}
}

// OptRequestTimeout bounds the wait for a correlated response
func OptRequestTimeout(d time.Duration) Option {
	return func(c *Config) (prev Option) {
		prev = OptRequestTimeout(c.RequestTimeout)
		c.RequestTimeout = d
		return
	}
}

// OptHeartbeat sets the heartbeat interval
func OptHeartbeat(d time.Duration) Option {
	return func(c *Config) (prev Option) {
		prev = OptHeartbeat(c.HeartbeatInterval)
		c.HeartbeatInterval = d
		return
	}
}

// OptNonces sets the nonce set used to detect self-connections
func OptNonces(s *NonceSet) Option {
	return func(c *Config) (prev Option) {
		prev = OptNonces(c.Nonces)
		c.Nonces = s
		return
	}
}

// OptLastSeen sets the last-seen sink
func OptLastSeen(ch chan<- addrbook.PeerLastSeen) Option {
	return func(c *Config) (prev Option) {
		prev = OptLastSeen(c.LastSeen)
		c.LastSeen = ch
		return
	}
}

// OptLogger sets the logger
func OptLogger(l log.Logger) Option {
	return func(c *Config) (prev Option) {
		prev = OptLogger(c.Logger)
		c.Logger = l
		return
	}
}
