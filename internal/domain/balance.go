package domain

import "github.com/ethereum/go-ethereum/common"

// BalanceErrorMarker is rendered instead of an amount when a read fails.
const BalanceErrorMarker = "err"

// BalanceCell one entry of the balances grid.
type BalanceCell struct {
	Symbol string `json:"symbol"`
	Amount string `json:"amount"`
}

// Failed reports whether the cell carries the error marker.
func (c BalanceCell) Failed() bool {
	return c.Amount == BalanceErrorMarker
}

// WalletInfo content of the wallet info panel.
type WalletInfo struct {
	Account      common.Address `json:"account"`
	Network      string         `json:"network"`
	ChainID      uint64         `json:"chain_id"`
	Balance      string         `json:"balance"`
	NativeSymbol string         `json:"native_symbol"`
}

// ShortAccount returns the account in 0x1234…abcd form.
func (w WalletInfo) ShortAccount() string {
	return ShortAddress(w.Account)
}

// ShortAddress abbreviates an address for display.
func ShortAddress(addr common.Address) string {
	hex := addr.Hex()
	return hex[:6] + "…" + hex[len(hex)-4:]
}
