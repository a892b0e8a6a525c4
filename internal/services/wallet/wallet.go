// Package wallet implements a local signing wallet that behaves like an
// injected browser wallet: accounts must be requested before use, and
// account or chain switches are announced to subscribers.
package wallet

import (
	"context"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/vadiminshakov/walletdash/internal/clients"
	"github.com/vadiminshakov/walletdash/internal/domain"
)

const defaultReceiptPoll = 2 * time.Second

var (
	// ErrNoAccounts the wallet holds no keys.
	ErrNoAccounts = errors.New("wallet has no accounts")
	// ErrAccountsLocked accounts were not requested or the wallet was locked.
	ErrAccountsLocked = errors.New("wallet is locked")
	// ErrUnknownAccount address is not controlled by this wallet.
	ErrUnknownAccount = errors.New("account not managed by this wallet")
	// ErrUnknownNetwork network name is not configured.
	ErrUnknownNetwork = errors.New("unknown network")
	// ErrChainIDMismatch rpc endpoint serves another chain than configured.
	ErrChainIDMismatch = errors.New("rpc chain id does not match configuration")
)

// ChainClient subset of *ethclient.Client used by the wallet.
type ChainClient interface {
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	Close()
}

// Dialer opens a client for a network and reports the chain id it serves.
type Dialer func(ctx context.Context, network domain.Network) (ChainClient, *big.Int, error)

// Option configures a Wallet.
type Option func(*Wallet)

// WithReceiptPoll sets how often WaitReceipt polls the node.
func WithReceiptPoll(d time.Duration) Option {
	return func(w *Wallet) {
		if d > 0 {
			w.receiptPoll = d
		}
	}
}

// Wallet local multi-account, multi-network signer.
type Wallet struct {
	mu         sync.RWMutex
	logger     *zap.Logger
	signers    []clients.Signer
	selected   int
	authorized bool
	networks   []domain.Network
	active     int
	listeners  map[uint64]domain.WalletListener
	nextID     uint64

	connMu sync.Mutex
	conns  map[string]ChainClient
	dial   Dialer

	receiptPoll time.Duration
}

// New creates a wallet over the given keys. activeNetwork selects the
// initial network by name; empty means the first configured one.
func New(logger *zap.Logger, signers []clients.Signer, networks []domain.Network, activeNetwork string, dial Dialer, opts ...Option) (*Wallet, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(networks) == 0 {
		return nil, errors.New("at least one network is required")
	}
	if dial == nil {
		return nil, errors.New("dialer is required")
	}

	active := 0
	if activeNetwork != "" {
		idx, ok := indexOfNetwork(networks, activeNetwork)
		if !ok {
			return nil, errors.Wrapf(ErrUnknownNetwork, "%q", activeNetwork)
		}
		active = idx
	}

	w := &Wallet{
		logger:      logger,
		signers:     append([]clients.Signer(nil), signers...),
		networks:    append([]domain.Network(nil), networks...),
		active:      active,
		listeners:   make(map[uint64]domain.WalletListener),
		conns:       make(map[string]ChainClient),
		dial:        dial,
		receiptPoll: defaultReceiptPoll,
	}
	for _, opt := range opts {
		opt(w)
	}

	logger.Info("wallet init",
		zap.Int("accounts", len(w.signers)),
		zap.String("network", w.networks[active].Name))
	return w, nil
}

// EthclientDialer dials networks with clients.DialEVM.
func EthclientDialer(logger *zap.Logger) Dialer {
	return func(ctx context.Context, network domain.Network) (ChainClient, *big.Int, error) {
		c, id, err := clients.DialEVM(ctx, network.RPCURL, logger)
		if err != nil {
			return nil, nil, err
		}
		return c, id, nil
	}
}

// RequestAccounts authorizes the dashboard and returns the accounts,
// selected one first.
func (w *Wallet) RequestAccounts(ctx context.Context) ([]common.Address, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if len(w.signers) == 0 {
		return nil, ErrNoAccounts
	}
	if !w.authorized {
		w.logger.Info("accounts authorized", zap.String("account", w.signers[w.selected].Address.Hex()))
	}
	w.authorized = true
	return w.accountsLocked(), nil
}

// Accounts returns the authorized accounts, empty while locked.
func (w *Wallet) Accounts(ctx context.Context) ([]common.Address, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	w.mu.RLock()
	defer w.mu.RUnlock()

	return w.accountsLocked(), nil
}

func (w *Wallet) accountsLocked() []common.Address {
	if !w.authorized || len(w.signers) == 0 {
		return []common.Address{}
	}
	out := make([]common.Address, 0, len(w.signers))
	out = append(out, w.signers[w.selected].Address)
	for i, s := range w.signers {
		if i != w.selected {
			out = append(out, s.Address)
		}
	}
	return out
}

// SelectAccount makes addr the selected account and announces the change.
func (w *Wallet) SelectAccount(addr common.Address) error {
	w.mu.Lock()
	idx := -1
	for i, s := range w.signers {
		if s.Address == addr {
			idx = i
			break
		}
	}
	if idx < 0 {
		w.mu.Unlock()
		return errors.Wrapf(ErrUnknownAccount, "%s", addr.Hex())
	}
	changed := idx != w.selected
	w.selected = idx
	notify := changed && w.authorized
	accounts := w.accountsLocked()
	w.mu.Unlock()

	if notify {
		w.logger.Info("account switched", zap.String("account", addr.Hex()))
		w.emitAccounts(accounts)
	}
	return nil
}

// Lock revokes authorization; subscribers receive an empty account list.
func (w *Wallet) Lock() {
	w.mu.Lock()
	wasAuthorized := w.authorized
	w.authorized = false
	w.mu.Unlock()

	if wasAuthorized {
		w.logger.Info("wallet locked")
		w.emitAccounts([]common.Address{})
	}
}

// Addresses lists every account the wallet holds, regardless of authorization.
func (w *Wallet) Addresses() []common.Address {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]common.Address, 0, len(w.signers))
	for _, s := range w.signers {
		out = append(out, s.Address)
	}
	return out
}

// Networks returns the configured networks.
func (w *Wallet) Networks() []domain.Network {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return append([]domain.Network(nil), w.networks...)
}

// SwitchNetwork activates another configured network and announces it.
// The target endpoint is dialed and its chain id verified before it becomes
// active, so a failed switch never exposes the unverified network.
func (w *Wallet) SwitchNetwork(ctx context.Context, name string) (domain.Network, error) {
	w.mu.RLock()
	idx, ok := indexOfNetwork(w.networks, name)
	w.mu.RUnlock()
	if !ok {
		return domain.Network{}, errors.Wrapf(ErrUnknownNetwork, "%q", name)
	}

	_, network, err := w.clientAt(ctx, idx)
	if err != nil {
		return domain.Network{}, errors.Wrapf(err, "switch to %s", name)
	}

	w.mu.Lock()
	prev := w.active
	w.active = idx
	w.mu.Unlock()

	if idx != prev {
		w.logger.Info("network switched", zap.Stringer("network", network))
		w.emitChain(network)
	}
	return network, nil
}

// Network returns the active network with its chain id verified against the node.
func (w *Wallet) Network(ctx context.Context) (domain.Network, error) {
	_, network, err := w.client(ctx)
	return network, err
}

// Subscribe registers l and returns the function that removes it.
func (w *Wallet) Subscribe(l domain.WalletListener) func() {
	w.mu.Lock()
	id := w.nextID
	w.nextID++
	w.listeners[id] = l
	w.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			w.mu.Lock()
			delete(w.listeners, id)
			w.mu.Unlock()
		})
	}
}

// BalanceAt returns the latest native balance of account in wei.
func (w *Wallet) BalanceAt(ctx context.Context, account common.Address) (*big.Int, error) {
	c, network, err := w.client(ctx)
	if err != nil {
		return nil, err
	}
	bal, err := c.BalanceAt(ctx, account, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "balance of %s on %s", account.Hex(), network.Name)
	}
	return bal, nil
}

// CallContract executes a read-only call on the active network.
func (w *Wallet) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	c, _, err := w.client(ctx)
	if err != nil {
		return nil, err
	}
	return c.CallContract(ctx, msg, blockNumber)
}

// SendTransaction fills gas, fees and nonce, signs with the key of req.From
// and broadcasts. It returns the transaction hash.
func (w *Wallet) SendTransaction(ctx context.Context, req domain.TxRequest) (common.Hash, error) {
	signer, err := w.signerFor(req.From)
	if err != nil {
		return common.Hash{}, err
	}
	c, network, err := w.client(ctx)
	if err != nil {
		return common.Hash{}, err
	}

	value := req.Value
	if value == nil {
		value = new(big.Int)
	}
	to := req.To

	nonce, err := c.PendingNonceAt(ctx, signer.Address)
	if err != nil {
		return common.Hash{}, errors.Wrap(err, "pending nonce")
	}
	gas, err := c.EstimateGas(ctx, ethereum.CallMsg{From: signer.Address, To: &to, Value: value, Data: req.Data})
	if err != nil {
		return common.Hash{}, errors.Wrap(err, "estimate gas")
	}
	head, err := c.HeaderByNumber(ctx, nil)
	if err != nil {
		return common.Hash{}, errors.Wrap(err, "latest header")
	}

	var tx *types.Transaction
	if head.BaseFee != nil {
		tip, err := c.SuggestGasTipCap(ctx)
		if err != nil {
			return common.Hash{}, errors.Wrap(err, "suggest gas tip")
		}
		feeCap := new(big.Int).Add(new(big.Int).Mul(head.BaseFee, big.NewInt(2)), tip)
		tx = types.NewTx(&types.DynamicFeeTx{
			ChainID:   network.ChainIDBig(),
			Nonce:     nonce,
			GasTipCap: tip,
			GasFeeCap: feeCap,
			Gas:       gas,
			To:        &to,
			Value:     value,
			Data:      req.Data,
		})
	} else {
		price, err := c.SuggestGasPrice(ctx)
		if err != nil {
			return common.Hash{}, errors.Wrap(err, "suggest gas price")
		}
		tx = types.NewTx(&types.LegacyTx{
			Nonce:    nonce,
			GasPrice: price,
			Gas:      gas,
			To:       &to,
			Value:    value,
			Data:     req.Data,
		})
	}

	signed, err := types.SignTx(tx, types.LatestSignerForChainID(network.ChainIDBig()), signer.Key)
	if err != nil {
		return common.Hash{}, errors.Wrap(err, "sign transaction")
	}
	if err := c.SendTransaction(ctx, signed); err != nil {
		return common.Hash{}, errors.Wrap(err, "send transaction")
	}

	w.logger.Info("transaction sent",
		zap.String("hash", signed.Hash().Hex()),
		zap.String("from", signer.Address.Hex()),
		zap.String("to", to.Hex()),
		zap.String("value", value.String()),
		zap.Uint64("nonce", nonce),
		zap.Stringer("network", network))
	return signed.Hash(), nil
}

// WaitReceipt polls the node until the transaction is mined or ctx is done.
func (w *Wallet) WaitReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	c, _, err := w.client(ctx)
	if err != nil {
		return nil, err
	}

	ticker := time.NewTicker(w.receiptPoll)
	defer ticker.Stop()

	for {
		receipt, err := c.TransactionReceipt(ctx, hash)
		if err == nil && receipt != nil {
			return receipt, nil
		}
		if err != nil && !errors.Is(err, ethereum.NotFound) {
			return nil, errors.Wrapf(err, "receipt of %s", hash.Hex())
		}

		select {
		case <-ctx.Done():
			return nil, errors.Wrapf(ctx.Err(), "waiting for %s", hash.Hex())
		case <-ticker.C:
		}
	}
}

// Close releases all network connections.
func (w *Wallet) Close() error {
	w.connMu.Lock()
	defer w.connMu.Unlock()
	for name, c := range w.conns {
		c.Close()
		delete(w.conns, name)
	}
	return nil
}

func (w *Wallet) signerFor(from common.Address) (clients.Signer, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	if !w.authorized {
		return clients.Signer{}, ErrAccountsLocked
	}
	for _, s := range w.signers {
		if s.Address == from {
			return s, nil
		}
	}
	return clients.Signer{}, errors.Wrapf(ErrUnknownAccount, "%s", from.Hex())
}

// client returns the connection of the active network, dialing it on first use.
func (w *Wallet) client(ctx context.Context) (ChainClient, domain.Network, error) {
	w.mu.RLock()
	idx := w.active
	w.mu.RUnlock()
	return w.clientAt(ctx, idx)
}

// clientAt returns the verified connection of the network at idx.
func (w *Wallet) clientAt(ctx context.Context, idx int) (ChainClient, domain.Network, error) {
	network := w.networkAt(idx)

	w.connMu.Lock()
	defer w.connMu.Unlock()

	if c, ok := w.conns[network.Name]; ok {
		return c, w.networkAt(idx), nil
	}

	c, chainID, err := w.dial(ctx, network)
	if err != nil {
		return nil, domain.Network{}, errors.Wrapf(err, "connect %s", network.Name)
	}
	if chainID == nil || !chainID.IsUint64() {
		c.Close()
		return nil, domain.Network{}, errors.Errorf("connect %s: invalid chain id %v", network.Name, chainID)
	}
	if network.ChainID != 0 && network.ChainID != chainID.Uint64() {
		c.Close()
		return nil, domain.Network{}, errors.Wrapf(ErrChainIDMismatch, "%s: configured %d, rpc %d",
			network.Name, network.ChainID, chainID.Uint64())
	}

	w.mu.Lock()
	w.networks[idx].ChainID = chainID.Uint64()
	network = w.networks[idx]
	w.mu.Unlock()

	w.conns[network.Name] = c
	w.logger.Debug("network connected", zap.Stringer("network", network))
	return c, network, nil
}

func (w *Wallet) networkAt(idx int) domain.Network {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.networks[idx]
}

func (w *Wallet) snapshotListeners() []domain.WalletListener {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]domain.WalletListener, 0, len(w.listeners))
	for _, l := range w.listeners {
		out = append(out, l)
	}
	return out
}

func (w *Wallet) emitAccounts(accounts []common.Address) {
	for _, l := range w.snapshotListeners() {
		if l.OnAccountsChanged != nil {
			l.OnAccountsChanged(append([]common.Address(nil), accounts...))
		}
	}
}

func (w *Wallet) emitChain(network domain.Network) {
	for _, l := range w.snapshotListeners() {
		if l.OnChainChanged != nil {
			l.OnChainChanged(network)
		}
	}
}

func indexOfNetwork(networks []domain.Network, name string) (int, bool) {
	for i, n := range networks {
		if n.Name == name {
			return i, true
		}
	}
	return 0, false
}
