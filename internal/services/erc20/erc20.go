// Package erc20 encodes and decodes the subset of the ERC-20 interface used by the dashboard.
//
// Function selectors:
//
//	balanceOf(address)  → 0x70a08231
//	decimals()          → 0x313ce567
//	symbol()            → 0x95d89b41
//	transfer(a,u256)    → 0xa9059cbb
package erc20

import (
	"context"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
)

const standardABI = `[
  {"type":"function","name":"balanceOf","stateMutability":"view",
   "inputs":[{"name":"owner","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"decimals","stateMutability":"view",
   "inputs":[],"outputs":[{"name":"","type":"uint8"}]},
  {"type":"function","name":"symbol","stateMutability":"view",
   "inputs":[],"outputs":[{"name":"","type":"string"}]},
  {"type":"function","name":"transfer","stateMutability":"nonpayable",
   "inputs":[{"name":"to","type":"address"},{"name":"amount","type":"uint256"}],
   "outputs":[{"name":"","type":"bool"}]}
]`

var tokenABI = mustParseABI(standardABI)

func mustParseABI(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic(err)
	}
	return parsed
}

// Caller performs read-only contract calls. *ethclient.Client satisfies it.
type Caller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// PackBalanceOf returns calldata for balanceOf(owner).
func PackBalanceOf(owner common.Address) ([]byte, error) {
	return tokenABI.Pack("balanceOf", owner)
}

// PackTransfer returns calldata for transfer(to, amount).
func PackTransfer(to common.Address, amount *big.Int) ([]byte, error) {
	if amount == nil || amount.Sign() <= 0 {
		return nil, errors.New("erc20: transfer amount must be positive")
	}
	return tokenABI.Pack("transfer", to, amount)
}

// BalanceOf returns the raw token balance of owner at the latest block.
func BalanceOf(ctx context.Context, c Caller, token, owner common.Address) (*big.Int, error) {
	data, err := PackBalanceOf(owner)
	if err != nil {
		return nil, errors.Wrap(err, "erc20: pack balanceOf")
	}
	out, err := call(ctx, c, token, "balanceOf", data)
	if err != nil {
		return nil, err
	}
	bal, ok := out[0].(*big.Int)
	if !ok {
		return nil, errors.Errorf("erc20: unexpected balanceOf result %T", out[0])
	}
	return bal, nil
}

// Decimals returns the token's declared precision.
func Decimals(ctx context.Context, c Caller, token common.Address) (uint8, error) {
	data, err := tokenABI.Pack("decimals")
	if err != nil {
		return 0, errors.Wrap(err, "erc20: pack decimals")
	}
	out, err := call(ctx, c, token, "decimals", data)
	if err != nil {
		return 0, err
	}
	dec, ok := out[0].(uint8)
	if !ok {
		return 0, errors.Errorf("erc20: unexpected decimals result %T", out[0])
	}
	return dec, nil
}

// Symbol returns the token's declared symbol.
func Symbol(ctx context.Context, c Caller, token common.Address) (string, error) {
	data, err := tokenABI.Pack("symbol")
	if err != nil {
		return "", errors.Wrap(err, "erc20: pack symbol")
	}
	out, err := call(ctx, c, token, "symbol", data)
	if err != nil {
		return "", err
	}
	sym, ok := out[0].(string)
	if !ok {
		return "", errors.Errorf("erc20: unexpected symbol result %T", out[0])
	}
	return sym, nil
}

func call(ctx context.Context, c Caller, token common.Address, method string, data []byte) ([]interface{}, error) {
	raw, err := c.CallContract(ctx, ethereum.CallMsg{To: &token, Data: data}, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "erc20: call %s on %s", method, token.Hex())
	}
	if len(raw) == 0 {
		return nil, errors.Errorf("erc20: empty %s response from %s (not a contract?)", method, token.Hex())
	}
	out, err := tokenABI.Unpack(method, raw)
	if err != nil {
		return nil, errors.Wrapf(err, "erc20: decode %s", method)
	}
	if len(out) == 0 {
		return nil, errors.Errorf("erc20: %s returned no values", method)
	}
	return out, nil
}
