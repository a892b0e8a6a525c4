// Package domain defines core data structures used throughout the wallet dashboard.
package domain

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

const (
	// NativeOptionValue selector value of the chain's base currency.
	NativeOptionValue = "ETH"
	// NativeOptionLabel selector label of the chain's base currency.
	NativeOptionLabel = "ETH / Native"
	// NativeDecimals precision of every EVM native currency.
	NativeDecimals = 18
	// MaxTokenDecimals largest precision whose 10^n still fits a uint256.
	MaxTokenDecimals = 77
)

// Token static ERC-20 token descriptor.
type Token struct {
	// Symbol display symbol, e.g. DAI.
	Symbol string `yaml:"symbol" json:"symbol"`
	// Address contract address on the configured chain.
	Address string `yaml:"address" json:"address"`
	// Decimals power of ten between raw and human amounts.
	Decimals uint8 `yaml:"decimals" json:"decimals"`
}

// IsPlaceholder reports whether the token has no usable contract address.
// Placeholders are never queried nor offered for transfers.
func (t Token) IsPlaceholder() bool {
	addr := strings.TrimSpace(t.Address)
	if addr == "" || !common.IsHexAddress(addr) {
		return true
	}
	return common.HexToAddress(addr) == (common.Address{})
}

// ContractAddress returns the parsed contract address.
func (t Token) ContractAddress() common.Address {
	return common.HexToAddress(strings.TrimSpace(t.Address))
}

// ActiveTokens filters out placeholder tokens keeping the configured order.
func ActiveTokens(tokens []Token) []Token {
	out := make([]Token, 0, len(tokens))
	for _, t := range tokens {
		if t.IsPlaceholder() {
			continue
		}
		out = append(out, t)
	}
	return out
}

// DefaultTokens token list used when the configuration has none.
// Addresses are placeholders meant to be replaced by the operator.
func DefaultTokens() []Token {
	return []Token{
		{Symbol: "USDT", Address: common.Address{}.Hex(), Decimals: 6},
		{Symbol: "DAI", Address: common.Address{}.Hex(), Decimals: 18},
	}
}

// TokenOption entry of the token selector.
type TokenOption struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// NativeOption returns the always-present base currency option.
func NativeOption() TokenOption {
	return TokenOption{Value: NativeOptionValue, Label: NativeOptionLabel}
}

// TokenOptions builds the selector: native option first, then one per active token.
func TokenOptions(tokens []Token) []TokenOption {
	active := ActiveTokens(tokens)
	opts := make([]TokenOption, 0, len(active)+1)
	opts = append(opts, NativeOption())
	for _, t := range active {
		opts = append(opts, TokenOption{Value: t.ContractAddress().Hex(), Label: t.Symbol})
	}
	return opts
}
