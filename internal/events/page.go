package events

import "github.com/vadiminshakov/walletdash/internal/domain"

// PageBroadcaster delivers full page states after every view mutation.
type PageBroadcaster = Broadcaster[domain.PageState]

// NewPageBroadcaster creates a page broadcaster.
func NewPageBroadcaster(buffer int) *PageBroadcaster {
	return NewBroadcaster[domain.PageState](buffer)
}
