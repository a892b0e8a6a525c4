package domain

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// TransferForm raw user input of the transfer form.
type TransferForm struct {
	// Token selector value: NativeOptionValue or a token contract address.
	Token     string `json:"token"`
	Recipient string `json:"recipient"`
	Amount    string `json:"amount"`
}

// IsNative reports whether the native currency is selected.
func (f TransferForm) IsNative() bool {
	return f.Token == "" || f.Token == NativeOptionValue
}

// TxRequest unsigned transaction handed to the wallet provider.
type TxRequest struct {
	From  common.Address
	To    common.Address
	Value *big.Int
	Data  []byte
}

// TransferStatus lifecycle of a submitted transfer.
type TransferStatus string

const (
	// TransferStatusPending built, not yet accepted by the node.
	TransferStatusPending TransferStatus = "pending"
	// TransferStatusSubmitted accepted by the node, waiting for inclusion.
	TransferStatusSubmitted TransferStatus = "submitted"
	// TransferStatusConfirmed mined with a successful receipt.
	TransferStatusConfirmed TransferStatus = "confirmed"
	// TransferStatusFailed rejected, reverted or timed out.
	TransferStatusFailed TransferStatus = "failed"
)

// IsFinal reports whether the status will not change anymore.
func (s TransferStatus) IsFinal() bool {
	return s == TransferStatusConfirmed || s == TransferStatusFailed
}

// TransferRecord journal entry of a transfer.
type TransferRecord struct {
	ID        string         `json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	From      common.Address `json:"from"`
	To        common.Address `json:"to"`
	Symbol    string         `json:"symbol"`
	Amount    string         `json:"amount"`
	ChainID   uint64         `json:"chain_id"`
	TxHash    string         `json:"tx_hash,omitempty"`
	Block     uint64         `json:"block,omitempty"`
	Status    TransferStatus `json:"status"`
	Error     string         `json:"error,omitempty"`
}
