package domain

// Wallet info panel texts shown instead of the account details.
const (
	WalletInfoDisconnected = "No conectado"
	WalletInfoUnavailable  = "Error obteniendo info de wallet"
)

// PageState rendered state of the dashboard's UI elements.
// Version grows with every mutation.
type PageState struct {
	Version uint64 `json:"version"`

	Status      string `json:"status"`
	StatusError bool   `json:"status_error"`

	// WalletInfo is nil while WalletMessage is shown.
	WalletInfo    *WalletInfo `json:"wallet_info,omitempty"`
	WalletMessage string      `json:"wallet_message,omitempty"`

	Balances     []BalanceCell `json:"balances"`
	TokenOptions []TokenOption `json:"token_options"`
	SendEnabled  bool          `json:"send_enabled"`

	// Alert last blocking message; AlertSeq changes each time one is raised.
	Alert    string `json:"alert,omitempty"`
	AlertSeq uint64 `json:"alert_seq"`

	// Log newest entry first.
	Log []LogEntry `json:"log"`
}

// Clone returns a deep copy safe to hand to other goroutines.
func (p PageState) Clone() PageState {
	out := p
	if p.WalletInfo != nil {
		info := *p.WalletInfo
		out.WalletInfo = &info
	}
	out.Balances = append([]BalanceCell{}, p.Balances...)
	out.TokenOptions = append([]TokenOption{}, p.TokenOptions...)
	out.Log = append([]LogEntry{}, p.Log...)
	return out
}
