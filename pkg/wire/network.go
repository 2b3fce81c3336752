package wire

import "github.com/pkg/errors"

// Network identifies the chain a node belongs to.  Every frame carries the
// network magic, so peers on different networks cannot talk to each other.
type Network uint8

const (
	Mainnet Network = iota
	Testnet
)

// Magic bytes that open every frame on the network.
func (n Network) Magic() [4]byte {
	switch n {
	case Mainnet:
		return [4]byte{0x24, 0xe9, 0x27, 0x64}
	case Testnet:
		return [4]byte{0xfa, 0x1a, 0xf9, 0xbf}
	}

	panic("unreachable")
}

// DefaultPort for peer connections on the network.
func (n Network) DefaultPort() uint16 {
	switch n {
	case Mainnet:
		return 8233
	case Testnet:
		return 18233
	}

	panic("unreachable")
}

func (n Network) String() string {
	switch n {
	case Mainnet:
		return "mainnet"
	case Testnet:
		return "testnet"
	}

	panic("unreachable")
}

// ParseNetwork from its name.
func ParseNetwork(s string) (Network, error) {
	switch s {
	case "mainnet", "main":
		return Mainnet, nil
	case "testnet", "test":
		return Testnet, nil
	}

	return 0, errors.Errorf("unknown network %q", s)
}
