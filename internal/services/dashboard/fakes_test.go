package dashboard

import (
	"bytes"
	"context"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/pkg/errors"

	"github.com/vadiminshakov/walletdash/internal/domain"
)

var (
	alice = common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8")
	bob   = common.HexToAddress("0x3C44CdDdB6a900fa2b585dd299e03d12FA4293BC")

	daiAddress  = common.HexToAddress("0x6B175474E89094C44Da98b954EedeAC495271d0F")
	usdcAddress = common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48")

	sepolia = domain.Network{Name: "sepolia", ChainID: 11155111}
	polygon = domain.Network{Name: "polygon", ChainID: 137}
)

func testTokens() []domain.Token {
	return []domain.Token{
		{Symbol: "USDT", Address: common.Address{}.Hex(), Decimals: 6},
		{Symbol: "DAI", Address: daiAddress.Hex(), Decimals: 18},
		{Symbol: "USDC", Address: usdcAddress.Hex(), Decimals: 6},
	}
}

func wei(s string) *big.Int {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		panic("bad number " + s)
	}
	return v
}

// fakeProvider scripted WalletProvider.
type fakeProvider struct {
	mu sync.Mutex

	accounts   []common.Address
	requestErr error
	network    domain.Network
	networkErr error

	native    map[common.Address]*big.Int
	nativeErr error
	// token balances keyed by contract
	tokens   map[common.Address]*big.Int
	tokenErr map[common.Address]error
	// descriptors reported by decimals() and symbol()
	decimals map[common.Address]uint8
	symbols  map[common.Address]string

	listeners map[int]domain.WalletListener
	nextID    int

	sent       []domain.TxRequest
	sendErr    error
	receipt    *types.Receipt
	receiptErr error

	requests int
	calls    int
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		accounts: []common.Address{alice, bob},
		network:  sepolia,
		native: map[common.Address]*big.Int{
			alice: wei("1500000000000000000"),
			bob:   wei("3000000000000000000"),
		},
		tokens: map[common.Address]*big.Int{
			daiAddress:  wei("2500000000000000000"),
			usdcAddress: wei("12345678"),
		},
		tokenErr: make(map[common.Address]error),
		decimals: map[common.Address]uint8{
			daiAddress:  18,
			usdcAddress: 6,
		},
		symbols: map[common.Address]string{
			daiAddress:  "DAI",
			usdcAddress: "USDC",
		},
		listeners: make(map[int]domain.WalletListener),
		receipt: &types.Receipt{
			Status:      types.ReceiptStatusSuccessful,
			BlockNumber: big.NewInt(42),
		},
	}
}

func (f *fakeProvider) RequestAccounts(context.Context) ([]common.Address, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests++
	if f.requestErr != nil {
		return nil, f.requestErr
	}
	return append([]common.Address(nil), f.accounts...), nil
}

func (f *fakeProvider) Accounts(context.Context) ([]common.Address, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]common.Address(nil), f.accounts...), nil
}

func (f *fakeProvider) Network(context.Context) (domain.Network, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.network, f.networkErr
}

func (f *fakeProvider) Subscribe(l domain.WalletListener) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.nextID
	f.nextID++
	f.listeners[id] = l
	return func() {
		f.mu.Lock()
		delete(f.listeners, id)
		f.mu.Unlock()
	}
}

func (f *fakeProvider) BalanceAt(_ context.Context, account common.Address) (*big.Int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.nativeErr != nil {
		return nil, f.nativeErr
	}
	if b, ok := f.native[account]; ok {
		return b, nil
	}
	return big.NewInt(0), nil
}

func (f *fakeProvider) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if msg.To == nil {
		return nil, errors.New("missing contract")
	}
	if err := f.tokenErr[*msg.To]; err != nil {
		return nil, err
	}
	switch {
	case bytes.HasPrefix(msg.Data, decimalsSelector):
		dec, ok := f.decimals[*msg.To]
		if !ok {
			return nil, nil
		}
		return common.LeftPadBytes([]byte{dec}, 32), nil
	case bytes.HasPrefix(msg.Data, symbolSelector):
		sym, ok := f.symbols[*msg.To]
		if !ok {
			return nil, nil
		}
		return encodeString(sym), nil
	}
	bal, ok := f.tokens[*msg.To]
	if !ok {
		return nil, nil
	}
	return common.LeftPadBytes(bal.Bytes(), 32), nil
}

var (
	decimalsSelector = common.FromHex("0x313ce567")
	symbolSelector   = common.FromHex("0x95d89b41")
)

// encodeString ABI-encodes a single dynamic string return value.
func encodeString(s string) []byte {
	out := common.LeftPadBytes(big.NewInt(32).Bytes(), 32)
	out = append(out, common.LeftPadBytes(big.NewInt(int64(len(s))).Bytes(), 32)...)
	data := []byte(s)
	if pad := len(data) % 32; pad != 0 {
		data = append(data, make([]byte, 32-pad)...)
	}
	return append(out, data...)
}

func (f *fakeProvider) SendTransaction(_ context.Context, req domain.TxRequest) (common.Hash, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return common.Hash{}, f.sendErr
	}
	f.sent = append(f.sent, req)
	return common.BigToHash(big.NewInt(int64(len(f.sent)))), nil
}

func (f *fakeProvider) WaitReceipt(context.Context, common.Hash) (*types.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.receipt, f.receiptErr
}

func (f *fakeProvider) listenerCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.listeners)
}

func (f *fakeProvider) snapshotListeners() []domain.WalletListener {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.WalletListener, 0, len(f.listeners))
	for _, l := range f.listeners {
		out = append(out, l)
	}
	return out
}

func (f *fakeProvider) emitAccounts(accounts []common.Address) {
	f.mu.Lock()
	f.accounts = accounts
	f.mu.Unlock()
	for _, l := range f.snapshotListeners() {
		l.OnAccountsChanged(accounts)
	}
}

func (f *fakeProvider) emitChain(network domain.Network) {
	f.mu.Lock()
	f.network = network
	f.mu.Unlock()
	for _, l := range f.snapshotListeners() {
		l.OnChainChanged(network)
	}
}

func (f *fakeProvider) sentRequests() []domain.TxRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.TxRequest(nil), f.sent...)
}

// statePublisher keeps every published page state.
type statePublisher struct {
	mu     sync.Mutex
	states []domain.PageState
}

func (p *statePublisher) Publish(s domain.PageState) {
	p.mu.Lock()
	p.states = append(p.states, s)
	p.mu.Unlock()
}

func (p *statePublisher) history() []domain.PageState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]domain.PageState(nil), p.states...)
}

type memorySnapshots struct {
	saved []domain.BalanceSnapshot
	err   error
}

func (m *memorySnapshots) Save(s domain.BalanceSnapshot) error {
	if m.err != nil {
		return m.err
	}
	m.saved = append(m.saved, s)
	return nil
}

type memoryJournal struct {
	created []domain.TransferRecord
	updates []domain.TransferRecord
}

func (j *memoryJournal) Create(_ context.Context, rec domain.TransferRecord) error {
	j.created = append(j.created, rec)
	return nil
}

func (j *memoryJournal) Update(_ context.Context, rec domain.TransferRecord) error {
	j.updates = append(j.updates, rec)
	return nil
}

func (j *memoryJournal) statuses() []domain.TransferStatus {
	out := make([]domain.TransferStatus, 0, len(j.created)+len(j.updates))
	for _, r := range j.created {
		out = append(out, r.Status)
	}
	for _, r := range j.updates {
		out = append(out, r.Status)
	}
	return out
}
