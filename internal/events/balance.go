package events

import "github.com/vadiminshakov/walletdash/internal/domain"

// BalanceBroadcaster delivers persisted balance snapshots together with their WAL index,
// so stream readers can resume with Last-Event-ID.
type BalanceBroadcaster = Broadcaster[domain.BalanceSnapshotRecord]

// NewBalanceBroadcaster creates a snapshot broadcaster.
func NewBalanceBroadcaster(buffer int) *BalanceBroadcaster {
	return NewBroadcaster[domain.BalanceSnapshotRecord](buffer)
}
