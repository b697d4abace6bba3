package types

import (
	"fmt"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/goran-ethernal/BlockStreamor/internal/common"
)

// Network selects the Bitcoin network a source reads blocks for. It
// determines the on-disk magic constant and the genesis hash the reorderer
// starts from.
type Network string

const (
	NetworkMainnet Network = "mainnet"
	NetworkTestnet Network = "testnet"
	NetworkRegtest Network = "regtest"
	NetworkSignet  Network = "signet"
)

// String returns the string representation of the Network.
func (n Network) String() string {
	return string(n)
}

// IsValid checks if the Network value is valid.
func (n Network) IsValid() bool {
	switch n {
	case NetworkMainnet, NetworkTestnet, NetworkRegtest, NetworkSignet:
		return true
	default:
		return false
	}
}

// Params returns the chain parameters for the network.
func (n Network) Params() *chaincfg.Params {
	switch n {
	case NetworkTestnet:
		return &chaincfg.TestNet3Params
	case NetworkRegtest:
		return &chaincfg.RegressionNetParams
	case NetworkSignet:
		return &chaincfg.SigNetParams
	default:
		return &chaincfg.MainNetParams
	}
}

// Magic returns the 4-byte network magic preceding each block on disk.
func (n Network) Magic() wire.BitcoinNet {
	return n.Params().Net
}

// GenesisHash returns the hash of the network's genesis block.
func (n Network) GenesisHash() *chainhash.Hash {
	return n.Params().GenesisHash
}

// ParseNetwork parses a string into a Network.
func ParseNetwork(s string) (Network, error) {
	n := Network(common.ToLowerWithTrim(s))
	if !n.IsValid() {
		return "", fmt.Errorf("invalid network: %s (must be one of: mainnet, testnet, regtest, signet)", s)
	}
	return n, nil
}
