package domain

import "github.com/ethereum/go-ethereum/common"

// Session connection state of the dashboard.
// The zero value is the disconnected state.
type Session struct {
	Account   common.Address
	Network   Network
	Connected bool
}

// NewSession creates a connected session.
func NewSession(account common.Address, network Network) Session {
	return Session{Account: account, Network: network, Connected: true}
}

// WithAccount returns a copy bound to another account.
func (s Session) WithAccount(account common.Address) Session {
	s.Account = account
	return s
}

// WithNetwork returns a copy bound to another network.
func (s Session) WithNetwork(network Network) Session {
	s.Network = network
	return s
}

// WalletListener callbacks fired by a wallet provider.
// Nil callbacks are skipped.
type WalletListener struct {
	OnAccountsChanged func(accounts []common.Address)
	OnChainChanged    func(network Network)
}
