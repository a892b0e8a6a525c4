package dashboard

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/vadiminshakov/walletdash/internal/domain"
	"github.com/vadiminshakov/walletdash/internal/services/erc20"
)

type harness struct {
	provider  *fakeProvider
	page      *Page
	publisher *statePublisher
	snapshots *memorySnapshots
	journal   *memoryJournal
	logs      *observer.ObservedLogs
	ctrl      *Controller
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		provider:  newFakeProvider(),
		publisher: &statePublisher{},
		snapshots: &memorySnapshots{},
		journal:   &memoryJournal{},
	}
	h.page = NewPage(h.publisher, 0)
	core, logs := observer.New(zap.WarnLevel)
	h.logs = logs
	fixed := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	h.ctrl = NewController(zap.New(core), h.provider, h.page, testTokens(),
		WithSnapshots(h.snapshots),
		WithJournal(h.journal),
		WithClock(func() time.Time { return fixed }),
	)
	h.ctrl.newID = func() string { return "transfer-1" }
	return h
}

func (h *harness) connect(t *testing.T) {
	t.Helper()
	require.NoError(t, h.ctrl.Connect(context.Background()))
}

func logMessages(state domain.PageState) []string {
	out := make([]string, 0, len(state.Log))
	for _, e := range state.Log {
		out = append(out, e.Message)
	}
	return out
}

func TestConnect_ProviderAbsent(t *testing.T) {
	page := NewPage(nil, 0)
	ctrl := NewController(nil, nil, page, testTokens())

	err := ctrl.Connect(context.Background())
	require.ErrorIs(t, err, ErrProviderAbsent)

	state := page.State()
	assert.Equal(t, "Wallet no detectada", state.Status)
	assert.True(t, state.StatusError)
	assert.False(t, ctrl.Session().Connected)
}

func TestConnect_Success(t *testing.T) {
	h := newHarness(t)
	h.connect(t)

	state := h.page.State()
	assert.Equal(t, "Conectado: "+alice.Hex(), state.Status)
	assert.False(t, state.StatusError)
	assert.Contains(t, logMessages(state), "Conectado a sepolia (11155111)")

	require.NotNil(t, state.WalletInfo)
	assert.Equal(t, alice, state.WalletInfo.Account)
	assert.Equal(t, "sepolia", state.WalletInfo.Network)
	assert.Equal(t, uint64(11155111), state.WalletInfo.ChainID)
	assert.Equal(t, "1.5", state.WalletInfo.Balance)
	assert.Equal(t, "ETH", state.WalletInfo.NativeSymbol)

	assert.Equal(t, []domain.TokenOption{
		{Value: "ETH", Label: "ETH / Native"},
		{Value: daiAddress.Hex(), Label: "DAI"},
		{Value: usdcAddress.Hex(), Label: "USDC"},
	}, state.TokenOptions)

	assert.Equal(t, []domain.BalanceCell{
		{Symbol: "ETH", Amount: "1.5"},
		{Symbol: "DAI", Amount: "2.5"},
		{Symbol: "USDC", Amount: "12.345678"},
	}, state.Balances)

	session := h.ctrl.Session()
	assert.True(t, session.Connected)
	assert.Equal(t, alice, session.Account)
	assert.Equal(t, 1, h.provider.listenerCount())

	require.Len(t, h.snapshots.saved, 1)
	assert.Equal(t, alice.Hex(), h.snapshots.saved[0].Account)
	assert.Equal(t, state.Balances, h.snapshots.saved[0].Balances)
}

func TestConnect_Rejected(t *testing.T) {
	h := newHarness(t)
	h.provider.requestErr = errors.New("user rejected the request")

	err := h.ctrl.Connect(context.Background())
	require.Error(t, err)

	state := h.page.State()
	assert.Equal(t, "Error conectando wallet: user rejected the request", state.Status)
	assert.True(t, state.StatusError)
	assert.Equal(t, []string{"connectWallet error: user rejected the request"}, logMessages(state))
	assert.False(t, h.ctrl.Session().Connected)
	assert.Zero(t, h.provider.listenerCount())
	assert.Equal(t, domain.WalletInfoDisconnected, state.WalletMessage)
}

func TestConnect_NoAccounts(t *testing.T) {
	h := newHarness(t)
	h.provider.accounts = nil

	err := h.ctrl.Connect(context.Background())
	require.Error(t, err)
	assert.True(t, h.page.State().StatusError)
	assert.False(t, h.ctrl.Session().Connected)
}

func TestConnect_TwiceKeepsOneSubscription(t *testing.T) {
	h := newHarness(t)
	h.connect(t)
	h.connect(t)

	assert.Equal(t, 2, h.provider.requests)
	assert.Equal(t, 1, h.provider.listenerCount())
}

func TestDisconnect_ResetsPage(t *testing.T) {
	h := newHarness(t)
	h.connect(t)

	h.ctrl.Disconnect()

	state := h.page.State()
	assert.Equal(t, "Desconectado", state.Status)
	assert.Equal(t, "No conectado", state.WalletMessage)
	assert.Nil(t, state.WalletInfo)
	assert.Empty(t, state.Balances)
	assert.Equal(t, []domain.TokenOption{domain.NativeOption()}, state.TokenOptions)
	assert.Equal(t, "Usuario desconectado", state.Log[0].Message)
	assert.Zero(t, h.provider.listenerCount())
	assert.False(t, h.ctrl.Session().Connected)
}

func TestAccountsChanged_EmptyDisconnects(t *testing.T) {
	h := newHarness(t)
	h.connect(t)

	h.provider.emitAccounts([]common.Address{})

	state := h.page.State()
	assert.Equal(t, "No conectado", state.WalletMessage)
	assert.Equal(t, "Desconectado", state.Status)
	assert.Empty(t, state.Balances)
	assert.Equal(t, []domain.TokenOption{domain.NativeOption()}, state.TokenOptions)
	assert.False(t, h.ctrl.Session().Connected)
	assert.Zero(t, h.provider.listenerCount())
}

func TestAccountsChanged_SwitchesAccount(t *testing.T) {
	h := newHarness(t)
	h.connect(t)

	h.provider.emitAccounts([]common.Address{bob, alice})

	state := h.page.State()
	require.NotNil(t, state.WalletInfo)
	assert.Equal(t, bob, state.WalletInfo.Account)
	assert.Equal(t, "3", state.WalletInfo.Balance)
	assert.Equal(t, domain.BalanceCell{Symbol: "ETH", Amount: "3"}, state.Balances[0])
	assert.Equal(t, bob, h.ctrl.Session().Account)

	require.Len(t, h.snapshots.saved, 2)
	assert.Equal(t, bob.Hex(), h.snapshots.saved[1].Account)
}

func TestChainChanged_RereadsNetwork(t *testing.T) {
	h := newHarness(t)
	h.connect(t)

	h.provider.emitChain(polygon)

	state := h.page.State()
	require.NotNil(t, state.WalletInfo)
	assert.Equal(t, "polygon", state.WalletInfo.Network)
	assert.Equal(t, uint64(137), state.WalletInfo.ChainID)
	assert.Equal(t, "MATIC", state.WalletInfo.NativeSymbol)
	assert.Equal(t, "MATIC", state.Balances[0].Symbol)
	assert.Equal(t, polygon, h.ctrl.Session().Network)
}

func TestChainChanged_NetworkError(t *testing.T) {
	h := newHarness(t)
	h.connect(t)
	h.provider.networkErr = errors.New("rpc down")

	h.provider.emitChain(polygon)

	state := h.page.State()
	assert.Equal(t, "chainChanged error: rpc down", state.Log[0].Message)
	assert.Equal(t, sepolia, h.ctrl.Session().Network)
}

func TestStaleSubscriptionIgnored(t *testing.T) {
	h := newHarness(t)
	h.connect(t)
	stale := h.provider.snapshotListeners()[0]

	h.ctrl.Disconnect()
	h.connect(t)
	before := h.page.State().Version

	stale.OnAccountsChanged([]common.Address{})

	assert.Equal(t, before, h.page.State().Version)
	assert.True(t, h.ctrl.Session().Connected)
}

func TestConnect_TokenDescriptorsMatch(t *testing.T) {
	h := newHarness(t)
	h.connect(t)

	assert.Zero(t, h.logs.FilterMessageSnippet("token").Len())
}

func TestConnect_TokenDescriptorMismatchLogged(t *testing.T) {
	h := newHarness(t)
	h.provider.decimals[usdcAddress] = 18
	h.provider.symbols[daiAddress] = "SAI"

	h.connect(t)

	decimals := h.logs.FilterMessage("token decimals differ from configuration").All()
	require.Len(t, decimals, 1)
	assert.Equal(t, "USDC", decimals[0].ContextMap()["token"])
	assert.EqualValues(t, 6, decimals[0].ContextMap()["configured"])
	assert.EqualValues(t, 18, decimals[0].ContextMap()["contract_decimals"])

	symbols := h.logs.FilterMessage("token symbol differs from configuration").All()
	require.Len(t, symbols, 1)
	assert.Equal(t, "DAI", symbols[0].ContextMap()["token"])
	assert.Equal(t, "SAI", symbols[0].ContextMap()["contract_symbol"])

	// descriptors keep their configured precision
	state := h.page.State()
	require.Len(t, state.Balances, 3)
	assert.Equal(t, "12.345678", state.Balances[2].Amount)
	assert.True(t, h.ctrl.Session().Connected)
}

func TestConnect_TokenDescriptorUnreadable(t *testing.T) {
	h := newHarness(t)
	delete(h.provider.decimals, daiAddress)
	delete(h.provider.symbols, daiAddress)

	h.connect(t)

	assert.Equal(t, 1, h.logs.FilterMessage("read token decimals").Len())
	assert.Equal(t, 1, h.logs.FilterMessage("read token symbol").Len())
	assert.True(t, h.ctrl.Session().Connected)
	for _, line := range logMessages(h.page.State()) {
		assert.NotContains(t, line, "decimals")
	}
}

func TestChainChanged_ReverifiesTokens(t *testing.T) {
	h := newHarness(t)
	h.connect(t)
	require.Zero(t, h.logs.FilterMessageSnippet("differ").Len())

	h.provider.mu.Lock()
	h.provider.decimals[daiAddress] = 6
	h.provider.mu.Unlock()
	h.provider.emitChain(polygon)

	entries := h.logs.FilterMessage("token decimals differ from configuration").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "polygon (137)", entries[0].ContextMap()["network"])
}

func TestUpdateWalletInfo_Error(t *testing.T) {
	h := newHarness(t)
	h.connect(t)
	h.provider.nativeErr = errors.New("timeout")

	require.NoError(t, h.ctrl.UpdateWalletInfo(context.Background()))

	state := h.page.State()
	assert.Nil(t, state.WalletInfo)
	assert.Equal(t, "Error obteniendo info de wallet", state.WalletMessage)
}

func TestUpdateWalletInfo_NotConnected(t *testing.T) {
	h := newHarness(t)
	assert.ErrorIs(t, h.ctrl.UpdateWalletInfo(context.Background()), ErrNotConnected)
}

func TestPopulateTokenSelect_ExcludesPlaceholders(t *testing.T) {
	h := newHarness(t)
	h.ctrl.PopulateTokenSelect()

	for _, opt := range h.page.State().TokenOptions {
		assert.NotEqual(t, "USDT", opt.Label)
	}
	assert.Len(t, h.page.State().TokenOptions, 3)
}

func TestRefreshBalances_NotConnectedIsNoop(t *testing.T) {
	h := newHarness(t)
	before := h.page.State().Version

	err := h.ctrl.RefreshBalances(context.Background())

	assert.ErrorIs(t, err, ErrNotConnected)
	assert.Equal(t, before, h.page.State().Version)
	assert.Zero(t, h.provider.calls)
}

func TestRefreshBalances_TokenFailureIsolated(t *testing.T) {
	h := newHarness(t)
	h.connect(t)
	h.provider.tokenErr[daiAddress] = errors.New("execution reverted")

	require.NoError(t, h.ctrl.RefreshBalances(context.Background()))

	assert.Equal(t, []domain.BalanceCell{
		{Symbol: "ETH", Amount: "1.5"},
		{Symbol: "DAI", Amount: "err"},
		{Symbol: "USDC", Amount: "12.345678"},
	}, h.page.State().Balances)
}

func TestRefreshBalances_NativeFailure(t *testing.T) {
	h := newHarness(t)
	h.connect(t)
	h.provider.nativeErr = errors.New("boom")

	require.NoError(t, h.ctrl.RefreshBalances(context.Background()))

	state := h.page.State()
	assert.Empty(t, state.Balances)
	assert.Equal(t, "refreshBalances: boom", state.Log[0].Message)
	assert.Len(t, h.snapshots.saved, 1, "failed refresh is not recorded")
}

func TestRefreshBalances_SnapshotErrorNotShown(t *testing.T) {
	h := newHarness(t)
	h.snapshots.err = errors.New("disk full")
	h.connect(t)

	state := h.page.State()
	assert.Len(t, state.Balances, 3)
	for _, msg := range logMessages(state) {
		assert.NotContains(t, msg, "disk full")
	}
}

func TestRefresh_UpdatesInfoAndBalances(t *testing.T) {
	h := newHarness(t)
	h.connect(t)
	h.provider.native[alice] = wei("2000000000000000000")

	require.NoError(t, h.ctrl.Refresh(context.Background()))

	state := h.page.State()
	assert.Equal(t, "2", state.WalletInfo.Balance)
	assert.Equal(t, "2", state.Balances[0].Amount)
}

func TestSendTransfer_Validation(t *testing.T) {
	tests := []struct {
		name    string
		connect bool
		form    domain.TransferForm
		alert   string
		wantErr error
	}{
		{
			name:    "not connected",
			form:    domain.TransferForm{Token: "ETH", Recipient: bob.Hex(), Amount: "1"},
			alert:   "Conecta primero la wallet",
			wantErr: ErrNotConnected,
		},
		{
			name:    "garbage recipient",
			connect: true,
			form:    domain.TransferForm{Token: "ETH", Recipient: "bob", Amount: "1"},
			alert:   "Dirección inválida",
			wantErr: ErrInvalidAddress,
		},
		{
			name:    "short recipient",
			connect: true,
			form:    domain.TransferForm{Token: "ETH", Recipient: "0x3C44CdDdB6a900fa2b585dd299e03d12FA4293B", Amount: "1"},
			alert:   "Dirección inválida",
			wantErr: ErrInvalidAddress,
		},
		{
			name:    "bad checksum",
			connect: true,
			form:    domain.TransferForm{Token: "ETH", Recipient: "0x3c44CdDdB6a900fa2b585dd299e03d12FA4293BC", Amount: "1"},
			alert:   "Dirección inválida",
			wantErr: ErrInvalidAddress,
		},
		{
			name:    "non numeric amount",
			connect: true,
			form:    domain.TransferForm{Token: "ETH", Recipient: bob.Hex(), Amount: "abc"},
			alert:   "Cantidad inválida",
			wantErr: ErrInvalidAmount,
		},
		{
			name:    "zero amount",
			connect: true,
			form:    domain.TransferForm{Token: "ETH", Recipient: bob.Hex(), Amount: "0"},
			alert:   "Cantidad inválida",
			wantErr: ErrInvalidAmount,
		},
		{
			name:    "negative amount",
			connect: true,
			form:    domain.TransferForm{Token: "ETH", Recipient: bob.Hex(), Amount: "-1"},
			alert:   "Cantidad inválida",
			wantErr: ErrInvalidAmount,
		},
		{
			name:    "empty amount",
			connect: true,
			form:    domain.TransferForm{Token: "ETH", Recipient: bob.Hex(), Amount: "  "},
			alert:   "Cantidad inválida",
			wantErr: ErrInvalidAmount,
		},
		{
			name:    "exponent amount",
			connect: true,
			form:    domain.TransferForm{Token: "ETH", Recipient: bob.Hex(), Amount: "1e-20000000"},
			alert:   "Cantidad inválida",
			wantErr: ErrInvalidAmount,
		},
		{
			name:    "large exponent amount",
			connect: true,
			form:    domain.TransferForm{Token: usdcAddress.Hex(), Recipient: bob.Hex(), Amount: "1e20000000"},
			alert:   "Cantidad inválida",
			wantErr: ErrInvalidAmount,
		},
		{
			name:    "too precise for token",
			connect: true,
			form:    domain.TransferForm{Token: usdcAddress.Hex(), Recipient: bob.Hex(), Amount: "0.0000001"},
			alert:   "Cantidad inválida",
			wantErr: ErrInvalidAmount,
		},
		{
			name:    "placeholder token",
			connect: true,
			form:    domain.TransferForm{Token: common.Address{}.Hex(), Recipient: bob.Hex(), Amount: "1"},
			alert:   "Token no soportado",
			wantErr: ErrUnsupportedToken,
		},
		{
			name:    "unknown token",
			connect: true,
			form:    domain.TransferForm{Token: "WBTC", Recipient: bob.Hex(), Amount: "1"},
			alert:   "Token no soportado",
			wantErr: ErrUnsupportedToken,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			if tt.connect {
				h.connect(t)
			}
			alerts := h.page.State().AlertSeq

			err := h.ctrl.SendTransfer(context.Background(), tt.form)

			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
			state := h.page.State()
			assert.Equal(t, tt.alert, state.Alert)
			assert.Equal(t, alerts+1, state.AlertSeq)
			assert.True(t, state.SendEnabled)
			assert.Empty(t, h.provider.sentRequests())
			assert.Empty(t, h.journal.created)
		})
	}
}

func TestSendTransfer_LowercaseRecipientAccepted(t *testing.T) {
	h := newHarness(t)
	h.connect(t)

	err := h.ctrl.SendTransfer(context.Background(), domain.TransferForm{
		Token:     "ETH",
		Recipient: "0x3c44cdddb6a900fa2b585dd299e03d12fa4293bc",
		Amount:    "0.5",
	})
	require.NoError(t, err)

	sent := h.provider.sentRequests()
	require.Len(t, sent, 1)
	assert.Equal(t, bob, sent[0].To)
}

func TestSendTransfer_Native(t *testing.T) {
	h := newHarness(t)
	h.connect(t)
	h.provider.native[alice] = wei("1000000000000000000")

	err := h.ctrl.SendTransfer(context.Background(), domain.TransferForm{
		Token:     "ETH",
		Recipient: bob.Hex(),
		Amount:    "1.5",
	})
	require.NoError(t, err)

	sent := h.provider.sentRequests()
	require.Len(t, sent, 1)
	assert.Equal(t, alice, sent[0].From)
	assert.Equal(t, bob, sent[0].To)
	assert.Equal(t, wei("1500000000000000000"), sent[0].Value)
	assert.Empty(t, sent[0].Data)

	state := h.page.State()
	assert.Equal(t, "Transacción confirmada en bloque 42", state.Status)
	assert.False(t, state.StatusError)
	assert.True(t, state.SendEnabled)
	assert.Equal(t, "1", state.WalletInfo.Balance, "wallet info refreshed after confirmation")

	var sawPreparing, sawSent bool
	for _, s := range h.publisher.history() {
		if s.Status == "Preparando transacción..." {
			sawPreparing = true
			assert.False(t, s.SendEnabled)
		}
		if s.Status == "Transacción enviada: "+common.BigToHash(big.NewInt(1)).Hex() {
			sawSent = true
			assert.False(t, s.SendEnabled)
		}
	}
	assert.True(t, sawPreparing)
	assert.True(t, sawSent)

	assert.Equal(t, []domain.TransferStatus{
		domain.TransferStatusPending,
		domain.TransferStatusSubmitted,
		domain.TransferStatusConfirmed,
	}, h.journal.statuses())
	last := h.journal.updates[len(h.journal.updates)-1]
	assert.Equal(t, "transfer-1", last.ID)
	assert.Equal(t, "ETH", last.Symbol)
	assert.Equal(t, "1.5", last.Amount)
	assert.Equal(t, uint64(42), last.Block)
	assert.Equal(t, uint64(11155111), last.ChainID)
}

func TestSendTransfer_Token(t *testing.T) {
	h := newHarness(t)
	h.connect(t)

	err := h.ctrl.SendTransfer(context.Background(), domain.TransferForm{
		Token:     usdcAddress.Hex(),
		Recipient: bob.Hex(),
		Amount:    "10.25",
	})
	require.NoError(t, err)

	sent := h.provider.sentRequests()
	require.Len(t, sent, 1)
	assert.Equal(t, usdcAddress, sent[0].To)
	assert.Zero(t, sent[0].Value.Sign())

	want, err := erc20.PackTransfer(bob, big.NewInt(10_250_000))
	require.NoError(t, err)
	assert.Equal(t, want, sent[0].Data)
	assert.Equal(t, "USDC", h.journal.created[0].Symbol)
}

func TestSendTransfer_Reverted(t *testing.T) {
	h := newHarness(t)
	h.connect(t)
	h.provider.receipt = &types.Receipt{Status: types.ReceiptStatusFailed, BlockNumber: big.NewInt(43)}

	err := h.ctrl.SendTransfer(context.Background(), domain.TransferForm{
		Token:     daiAddress.Hex(),
		Recipient: bob.Hex(),
		Amount:    "1",
	})
	require.ErrorIs(t, err, ErrTransactionReverted)

	state := h.page.State()
	assert.Equal(t, "Transacción revertida", state.Status)
	assert.True(t, state.StatusError)
	assert.True(t, state.SendEnabled)

	last := h.journal.updates[len(h.journal.updates)-1]
	assert.Equal(t, domain.TransferStatusFailed, last.Status)
	assert.Equal(t, uint64(43), last.Block)
}

func TestSendTransfer_SubmitError(t *testing.T) {
	h := newHarness(t)
	h.connect(t)
	h.provider.sendErr = errors.New("insufficient funds")

	err := h.ctrl.SendTransfer(context.Background(), domain.TransferForm{
		Token:     "ETH",
		Recipient: bob.Hex(),
		Amount:    "100",
	})
	require.Error(t, err)

	state := h.page.State()
	assert.Equal(t, "Error enviando transacción: insufficient funds", state.Status)
	assert.True(t, state.StatusError)
	assert.True(t, state.SendEnabled)
	assert.Equal(t, "sendTx error: insufficient funds", state.Log[0].Message)

	assert.Equal(t, []domain.TransferStatus{
		domain.TransferStatusPending,
		domain.TransferStatusFailed,
	}, h.journal.statuses())
	assert.Equal(t, "insufficient funds", h.journal.updates[0].Error)
}

func TestSendTransfer_ReceiptTimeout(t *testing.T) {
	h := newHarness(t)
	h.connect(t)
	h.provider.receiptErr = context.DeadlineExceeded

	err := h.ctrl.SendTransfer(context.Background(), domain.TransferForm{
		Token:     "ETH",
		Recipient: bob.Hex(),
		Amount:    "1",
	})
	require.ErrorIs(t, err, context.DeadlineExceeded)

	state := h.page.State()
	assert.Equal(t, "Error enviando transacción: "+context.DeadlineExceeded.Error(), state.Status)
	assert.True(t, state.SendEnabled)
	assert.Equal(t, domain.TransferStatusFailed, h.journal.updates[len(h.journal.updates)-1].Status)
}
