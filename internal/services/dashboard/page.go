package dashboard

import (
	"sync"
	"time"

	"github.com/vadiminshakov/walletdash/internal/domain"
)

const defaultLogLimit = 500

// PagePublisher receives the page state after every change.
type PagePublisher interface {
	Publish(state domain.PageState)
}

// Page in-memory View read concurrently by the HTTP layer.
type Page struct {
	mu        sync.RWMutex
	state     domain.PageState
	logLimit  int
	now       func() time.Time
	publisher PagePublisher
}

// NewPage creates a page in the disconnected baseline.
// The log panel keeps at most logLimit entries; values below 1 use the default.
func NewPage(publisher PagePublisher, logLimit int) *Page {
	if logLimit < 1 {
		logLimit = defaultLogLimit
	}
	return &Page{
		state: domain.PageState{
			WalletMessage: domain.WalletInfoDisconnected,
			Balances:      []domain.BalanceCell{},
			TokenOptions:  []domain.TokenOption{domain.NativeOption()},
			SendEnabled:   true,
			Log:           []domain.LogEntry{},
		},
		logLimit:  logLimit,
		now:       time.Now,
		publisher: publisher,
	}
}

// State returns a copy of the current state.
func (p *Page) State() domain.PageState {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state.Clone()
}

func (p *Page) SetStatus(text string, isError bool) {
	p.update(func(s *domain.PageState) {
		s.Status = text
		s.StatusError = isError
	})
}

func (p *Page) ShowWalletInfo(info domain.WalletInfo) {
	p.update(func(s *domain.PageState) {
		s.WalletInfo = &info
		s.WalletMessage = ""
	})
}

func (p *Page) ShowWalletMessage(msg string) {
	p.update(func(s *domain.PageState) {
		s.WalletInfo = nil
		s.WalletMessage = msg
	})
}

func (p *Page) ShowBalances(cells []domain.BalanceCell) {
	p.update(func(s *domain.PageState) {
		s.Balances = append([]domain.BalanceCell{}, cells...)
	})
}

func (p *Page) ShowTokenOptions(opts []domain.TokenOption) {
	p.update(func(s *domain.PageState) {
		s.TokenOptions = append([]domain.TokenOption{}, opts...)
	})
}

func (p *Page) SetSendEnabled(enabled bool) {
	p.update(func(s *domain.PageState) {
		s.SendEnabled = enabled
	})
}

func (p *Page) Alert(msg string) {
	p.update(func(s *domain.PageState) {
		s.Alert = msg
		s.AlertSeq++
	})
}

func (p *Page) Log(msg string) {
	entry := domain.LogEntry{Time: p.now(), Message: msg}
	p.update(func(s *domain.PageState) {
		log := make([]domain.LogEntry, 0, min(len(s.Log)+1, p.logLimit))
		log = append(log, entry)
		for _, e := range s.Log {
			if len(log) == p.logLimit {
				break
			}
			log = append(log, e)
		}
		s.Log = log
	})
}

func (p *Page) update(fn func(s *domain.PageState)) {
	p.mu.Lock()
	fn(&p.state)
	p.state.Version++
	state := p.state.Clone()
	p.mu.Unlock()

	if p.publisher != nil {
		p.publisher.Publish(state)
	}
}
