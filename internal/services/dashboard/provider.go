// Package dashboard implements the wallet dashboard controller: it connects to a
// wallet provider, renders balances into a View and submits transfers.
package dashboard

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/pkg/errors"

	"github.com/vadiminshakov/walletdash/internal/domain"
)

var (
	// ErrProviderAbsent no wallet provider is available.
	ErrProviderAbsent = errors.New("wallet provider not detected")
	// ErrNotConnected operation requires a connected wallet.
	ErrNotConnected = errors.New("wallet not connected")
	// ErrInvalidAddress recipient is not a valid address.
	ErrInvalidAddress = errors.New("invalid recipient address")
	// ErrInvalidAmount amount is not a positive number representable by the asset.
	ErrInvalidAmount = domain.ErrInvalidAmount
	// ErrUnsupportedToken selected token is not configured.
	ErrUnsupportedToken = errors.New("unsupported token")
	// ErrTransactionReverted the transaction was mined with a failed status.
	ErrTransactionReverted = errors.New("transaction reverted")

	errNoAccounts = errors.New("provider returned no accounts")
)

// WalletProvider capabilities the dashboard consumes from a wallet.
type WalletProvider interface {
	// RequestAccounts asks for account access; the first account is the selected one.
	RequestAccounts(ctx context.Context) ([]common.Address, error)
	// Accounts lists accounts already authorized, empty when locked.
	Accounts(ctx context.Context) ([]common.Address, error)
	// Network identifies the current network.
	Network(ctx context.Context) (domain.Network, error)
	// Subscribe registers change callbacks and returns the unsubscribe function.
	Subscribe(l domain.WalletListener) func()
	BalanceAt(ctx context.Context, account common.Address) (*big.Int, error)
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	// SendTransaction signs and submits req, returning the transaction hash.
	SendTransaction(ctx context.Context, req domain.TxRequest) (common.Hash, error)
	WaitReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error)
}

// View the dashboard UI elements.
type View interface {
	SetStatus(text string, isError bool)
	ShowWalletInfo(info domain.WalletInfo)
	ShowWalletMessage(msg string)
	ShowBalances(cells []domain.BalanceCell)
	ShowTokenOptions(opts []domain.TokenOption)
	SetSendEnabled(enabled bool)
	// Alert shows a blocking message.
	Alert(msg string)
	// Log prepends a timestamped line to the log panel.
	Log(msg string)
}

// SnapshotRecorder persists rendered balances.
type SnapshotRecorder interface {
	Save(snapshot domain.BalanceSnapshot) error
}

// TransferJournal records the lifecycle of submitted transfers.
type TransferJournal interface {
	Create(ctx context.Context, rec domain.TransferRecord) error
	Update(ctx context.Context, rec domain.TransferRecord) error
}
