package types

import (
	"fmt"
	"strings"
)

// Network represents supported blockchain networks
type Network string

const (
	NetworkEthereum    Network = "ethereum"
	NetworkBase        Network = "base"
	NetworkBaseSepolia Network = "base_sepolia" // testnet
	NetworkArbitrum    Network = "arbitrum"
	NetworkOptimism    Network = "optimism"
	NetworkPolygon     Network = "polygon"
)

// Chain identifiers of the supported networks.
const (
	ChainIDEthereum    uint64 = 1
	ChainIDBase        uint64 = 8453
	ChainIDBaseSepolia uint64 = 84532
	ChainIDArbitrum    uint64 = 42161
	ChainIDOptimism    uint64 = 10
	ChainIDPolygon     uint64 = 137
)

// SupportedNetworks returns every network known to this package, in
// declaration order.
func SupportedNetworks() []Network {
	return []Network{
		NetworkEthereum,
		NetworkBase,
		NetworkBaseSepolia,
		NetworkArbitrum,
		NetworkOptimism,
		NetworkPolygon,
	}
}

// ChainID returns the numeric chain identifier of the network. It returns 0
// for values outside the supported set, which IsValid reports as invalid.
func (n Network) ChainID() uint64 {
	switch n {
	case NetworkEthereum:
		return ChainIDEthereum
	case NetworkBase:
		return ChainIDBase
	case NetworkBaseSepolia:
		return ChainIDBaseSepolia
	case NetworkArbitrum:
		return ChainIDArbitrum
	case NetworkOptimism:
		return ChainIDOptimism
	case NetworkPolygon:
		return ChainIDPolygon
	default:
		return 0
	}
}

// NetworkFromChainID maps a chain identifier back to its network. The
// boolean is false for identifiers outside the supported set.
func NetworkFromChainID(chainID uint64) (Network, bool) {
	switch chainID {
	case ChainIDEthereum:
		return NetworkEthereum, true
	case ChainIDBase:
		return NetworkBase, true
	case ChainIDBaseSepolia:
		return NetworkBaseSepolia, true
	case ChainIDArbitrum:
		return NetworkArbitrum, true
	case ChainIDOptimism:
		return NetworkOptimism, true
	case ChainIDPolygon:
		return NetworkPolygon, true
	default:
		return "", false
	}
}

// ParseNetwork resolves a network name. Matching is case-insensitive and
// accepts "basesepolia" as an alias of "base_sepolia".
func ParseNetwork(name string) (Network, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "ethereum":
		return NetworkEthereum, nil
	case "base":
		return NetworkBase, nil
	case "base_sepolia", "basesepolia":
		return NetworkBaseSepolia, nil
	case "arbitrum":
		return NetworkArbitrum, nil
	case "optimism":
		return NetworkOptimism, nil
	case "polygon":
		return NetworkPolygon, nil
	default:
		return "", fmt.Errorf("unknown network: %s", name)
	}
}

// IsValid reports whether n is one of the supported networks.
func (n Network) IsValid() bool {
	return n.ChainID() != 0
}

func (n Network) IsTestnet() bool {
	return n == NetworkBaseSepolia
}

func (n Network) String() string {
	return string(n)
}

// MarshalText implements encoding.TextMarshaler.
func (n Network) MarshalText() ([]byte, error) {
	if !n.IsValid() {
		return nil, fmt.Errorf("unknown network: %q", string(n))
	}
	return []byte(n), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (n *Network) UnmarshalText(text []byte) error {
	parsed, err := ParseNetwork(string(text))
	if err != nil {
		return err
	}
	*n = parsed
	return nil
}
