package balancesnapshots

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vadiminshakov/walletdash/internal/domain"
	"github.com/vadiminshakov/walletdash/internal/events"
)

func snapshot(account, amount string) domain.BalanceSnapshot {
	return domain.BalanceSnapshot{
		Timestamp: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
		Account:   account,
		Network:   "sepolia",
		ChainID:   11155111,
		Balances: []domain.BalanceCell{
			{Symbol: "ETH", Amount: amount},
			{Symbol: "DAI", Amount: "err"},
		},
	}
}

func TestWALStore_SaveAndRead(t *testing.T) {
	store, err := NewWALStore(t.TempDir(), nil)
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.Save(snapshot("0xAa", "1.5")))
	require.NoError(t, store.Save(snapshot("0xBb", "2")))
	require.NoError(t, store.Save(snapshot("0xAa", "1.25")))

	assert.Equal(t, uint64(3), store.CurrentIndex())

	all, err := store.SnapshotsAfter(0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, uint64(1), all[0].Index)
	assert.Equal(t, "1.5", all[0].Snapshot.Balances[0].Amount)
	assert.Equal(t, "err", all[0].Snapshot.Balances[1].Amount)
	assert.True(t, all[0].Snapshot.Timestamp.Equal(time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)))

	tail, err := store.SnapshotsAfter(2)
	require.NoError(t, err)
	require.Len(t, tail, 1)
	assert.Equal(t, uint64(3), tail[0].Index)
	assert.Equal(t, "1.25", tail[0].Snapshot.Balances[0].Amount)

	none, err := store.SnapshotsAfter(3)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestWALStore_RequiresAccount(t *testing.T) {
	store, err := NewWALStore(t.TempDir(), nil)
	require.NoError(t, err)
	defer store.Close()

	assert.Error(t, store.Save(domain.BalanceSnapshot{}))
	assert.Zero(t, store.CurrentIndex())
}

func TestWALStore_Reopen(t *testing.T) {
	dir := t.TempDir()
	store, err := NewWALStore(dir, nil)
	require.NoError(t, err)
	require.NoError(t, store.Save(snapshot("0xAa", "1")))
	require.NoError(t, store.Close())

	reopened, err := NewWALStore(dir, nil)
	require.NoError(t, err)
	defer reopened.Close()

	records, err := reopened.SnapshotsAfter(0)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "0xAa", records[0].Snapshot.Account)
}

func TestWALStore_Publishes(t *testing.T) {
	b := events.NewBalanceBroadcaster(4)
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	store, err := NewWALStore(t.TempDir(), b)
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.Save(snapshot("0xAa", "7")))

	select {
	case rec := <-ch:
		assert.Equal(t, uint64(1), rec.Index)
		assert.Equal(t, "7", rec.Snapshot.Balances[0].Amount)
	default:
		t.Fatal("snapshot was not published")
	}
}

func TestWALStore_Uninitialized(t *testing.T) {
	var store *WALStore
	assert.Error(t, store.Save(snapshot("0xAa", "1")))
	_, err := store.SnapshotsAfter(0)
	assert.Error(t, err)
	assert.Zero(t, store.CurrentIndex())
}
