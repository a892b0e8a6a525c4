package domain

import "time"

// BalanceSnapshot balances grid rendered for an account on a network.
type BalanceSnapshot struct {
	Timestamp time.Time     `json:"ts"`
	Account   string        `json:"account"`
	Network   string        `json:"network"`
	ChainID   uint64        `json:"chain_id"`
	Balances  []BalanceCell `json:"balances"`
}

// NewBalanceSnapshot creates a new BalanceSnapshot.
func NewBalanceSnapshot(timestamp time.Time, session Session, cells []BalanceCell) BalanceSnapshot {
	balances := make([]BalanceCell, len(cells))
	copy(balances, cells)
	return BalanceSnapshot{
		Timestamp: timestamp,
		Account:   session.Account.Hex(),
		Network:   session.Network.Name,
		ChainID:   session.Network.ChainID,
		Balances:  balances,
	}
}

// BalanceSnapshotRecord bundles a snapshot with its WAL index.
type BalanceSnapshotRecord struct {
	Index    uint64
	Snapshot BalanceSnapshot
}
