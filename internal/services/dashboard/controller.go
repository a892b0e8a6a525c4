package dashboard

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/vadiminshakov/walletdash/internal/domain"
)

const (
	defaultReceiptTimeout = 2 * time.Minute
	defaultEventTimeout   = 30 * time.Second
)

// Option configures a Controller.
type Option func(*Controller)

// WithSnapshots persists every rendered balances grid.
func WithSnapshots(r SnapshotRecorder) Option {
	return func(c *Controller) { c.snapshots = r }
}

// WithJournal records submitted transfers.
func WithJournal(j TransferJournal) Option {
	return func(c *Controller) { c.journal = j }
}

// WithReceiptTimeout bounds the wait for a transaction receipt.
func WithReceiptTimeout(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.receiptTimeout = d
		}
	}
}

// WithEventTimeout bounds provider calls made from account and chain change handlers.
func WithEventTimeout(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.eventTimeout = d
		}
	}
}

// WithClock overrides the time source of balance snapshots and journal records.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) {
		if now != nil {
			c.now = now
		}
	}
}

// Controller drives the dashboard. Every handler runs under one mutex, so
// handlers never interleave.
type Controller struct {
	mu       sync.Mutex
	logger   *zap.Logger
	provider WalletProvider
	view     View
	tokens   []domain.Token

	session     domain.Session
	unsubscribe func()
	// generation identifies the live subscription; stale callbacks are ignored.
	generation uint64

	snapshots      SnapshotRecorder
	journal        TransferJournal
	receiptTimeout time.Duration
	eventTimeout   time.Duration
	now            func() time.Time
	newID          func() string
}

// NewController creates a controller. A nil provider means no wallet is available.
func NewController(logger *zap.Logger, provider WalletProvider, view View, tokens []domain.Token, opts ...Option) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Controller{
		logger:         logger,
		provider:       provider,
		view:           view,
		tokens:         append([]domain.Token(nil), tokens...),
		receiptTimeout: defaultReceiptTimeout,
		eventTimeout:   defaultEventTimeout,
		now:            time.Now,
		newID:          uuid.NewString,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Session returns the current session state.
func (c *Controller) Session() domain.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// Tokens returns the configured tokens.
func (c *Controller) Tokens() []domain.Token {
	return append([]domain.Token(nil), c.tokens...)
}

// Connect requests account access and renders the connected dashboard.
// Calling it while connected requests accounts again.
func (c *Controller) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.provider == nil {
		c.view.SetStatus(statusProviderAbsent, true)
		c.view.Log(statusProviderAbsent)
		return ErrProviderAbsent
	}

	account, network, err := c.requestAccess(ctx)
	if err != nil {
		c.logger.Warn("connect wallet failed", zap.Error(err))
		c.view.SetStatus(statusConnectError+err.Error(), true)
		c.view.Log(logConnectError + err.Error())
		return errors.Wrap(err, "connect wallet")
	}

	c.session = domain.NewSession(account, network)
	c.view.SetStatus(statusConnected+account.Hex(), false)
	c.view.Log(fmt.Sprintf(logConnected, network.Name, network.ChainID))
	c.logger.Info("wallet connected",
		zap.String("account", account.Hex()),
		zap.Stringer("network", network))

	c.subscribe()
	c.populateTokenSelect()
	c.verifyTokens(ctx)
	c.updateWalletInfo(ctx)
	c.refreshBalances(ctx)
	return nil
}

func (c *Controller) requestAccess(ctx context.Context) (common.Address, domain.Network, error) {
	accounts, err := c.provider.RequestAccounts(ctx)
	if err != nil {
		return common.Address{}, domain.Network{}, err
	}
	if len(accounts) == 0 {
		return common.Address{}, domain.Network{}, errNoAccounts
	}
	network, err := c.provider.Network(ctx)
	if err != nil {
		return common.Address{}, domain.Network{}, err
	}
	return accounts[0], network, nil
}

// Disconnect clears the session and resets the page to its baseline.
func (c *Controller) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.disconnect()
}

func (c *Controller) disconnect() {
	c.dropSubscription()
	c.session = domain.Session{}

	c.view.ShowWalletMessage(domain.WalletInfoDisconnected)
	c.view.ShowBalances([]domain.BalanceCell{})
	c.view.ShowTokenOptions([]domain.TokenOption{domain.NativeOption()})
	c.view.SetStatus(statusDisconnected, false)
	c.view.Log(logDisconnected)
	c.logger.Info("wallet disconnected")
}

func (c *Controller) subscribe() {
	c.dropSubscription()
	c.generation++
	gen := c.generation
	c.unsubscribe = c.provider.Subscribe(domain.WalletListener{
		OnAccountsChanged: func(accounts []common.Address) { c.handleAccountsChanged(gen, accounts) },
		OnChainChanged:    func(domain.Network) { c.handleChainChanged(gen) },
	})
}

func (c *Controller) dropSubscription() {
	if c.unsubscribe != nil {
		c.unsubscribe()
		c.unsubscribe = nil
	}
	c.generation++
}

func (c *Controller) handleAccountsChanged(gen uint64, accounts []common.Address) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.generation {
		return
	}

	if len(accounts) == 0 {
		c.disconnect()
		return
	}

	c.session = c.session.WithAccount(accounts[0])
	c.logger.Info("account changed", zap.String("account", accounts[0].Hex()))

	ctx, cancel := context.WithTimeout(context.Background(), c.eventTimeout)
	defer cancel()
	c.updateWalletInfo(ctx)
	c.refreshBalances(ctx)
}

func (c *Controller) handleChainChanged(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.generation {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.eventTimeout)
	defer cancel()

	network, err := c.provider.Network(ctx)
	if err != nil {
		c.logger.Warn("read network after chain change", zap.Error(err))
		c.view.Log(logChainError + err.Error())
		return
	}

	c.session = c.session.WithNetwork(network)
	c.logger.Info("chain changed", zap.Stringer("network", network))
	c.verifyTokens(ctx)
	c.updateWalletInfo(ctx)
	c.refreshBalances(ctx)
}

// UpdateWalletInfo renders account, network and native balance.
func (c *Controller) UpdateWalletInfo(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.session.Connected {
		return ErrNotConnected
	}
	c.updateWalletInfo(ctx)
	return nil
}

func (c *Controller) updateWalletInfo(ctx context.Context) {
	if !c.session.Connected {
		return
	}
	balance, err := c.provider.BalanceAt(ctx, c.session.Account)
	if err != nil {
		c.logger.Warn("read wallet info", zap.Error(err))
		c.view.ShowWalletMessage(domain.WalletInfoUnavailable)
		return
	}

	network := c.session.Network
	c.view.ShowWalletInfo(domain.WalletInfo{
		Account:      c.session.Account,
		Network:      network.Name,
		ChainID:      network.ChainID,
		Balance:      domain.FormatUnits(balance, domain.NativeDecimals),
		NativeSymbol: network.NativeSymbol(),
	})
}

// PopulateTokenSelect fills the selector with the native option and active tokens.
func (c *Controller) PopulateTokenSelect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.populateTokenSelect()
}

func (c *Controller) populateTokenSelect() {
	c.view.ShowTokenOptions(domain.TokenOptions(c.tokens))
}

// Refresh re-renders wallet info and balances.
func (c *Controller) Refresh(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.session.Connected {
		return ErrNotConnected
	}
	c.updateWalletInfo(ctx)
	c.refreshBalances(ctx)
	return nil
}
