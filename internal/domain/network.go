// Package domain defines core data structures used throughout the wallet dashboard.
package domain

import (
	"fmt"
	"math/big"
	"strings"
)

const (
	defaultNativeSymbol = "ETH"
	polygonNativeSymbol = "MATIC"
)

// Network EVM chain the wallet is pointed at.
type Network struct {
	// Name human readable chain name, e.g. sepolia.
	Name string `json:"name"`
	// ChainID EIP-155 chain id.
	ChainID uint64 `json:"chain_id"`
	// RPCURL JSON-RPC endpoint.
	RPCURL string `json:"-"`
}

// NativeSymbol label of the chain's base currency.
func (n Network) NativeSymbol() string {
	if strings.Contains(strings.ToLower(n.Name), "polygon") {
		return polygonNativeSymbol
	}
	return defaultNativeSymbol
}

// ChainIDBig returns the chain id as a big integer for signers.
func (n Network) ChainIDBig() *big.Int {
	return new(big.Int).SetUint64(n.ChainID)
}

// String returns the string representation.
func (n Network) String() string {
	return fmt.Sprintf("%s (%d)", n.Name, n.ChainID)
}
