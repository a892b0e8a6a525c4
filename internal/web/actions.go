package web

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/vadiminshakov/walletdash/internal/domain"
	"github.com/vadiminshakov/walletdash/internal/services/dashboard"
	"github.com/vadiminshakov/walletdash/internal/services/wallet"
	"github.com/vadiminshakov/walletdash/internal/storage/transfers"
)

type actionResponse struct {
	Error string           `json:"error,omitempty"`
	State domain.PageState `json:"state"`
}

type walletResponse struct {
	Accounts []common.Address `json:"accounts"`
	Networks []domain.Network `json:"networks"`
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Page.State())
}

func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	s.respond(w, "connect", s.Controller.Connect(r.Context()))
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	s.respond(w, "refresh", s.Controller.Refresh(r.Context()))
}

func (s *Server) handleSend(w http.ResponseWriter, r *http.Request) {
	form := domain.TransferForm{
		Token:     r.FormValue("token"),
		Recipient: r.FormValue("recipient"),
		Amount:    r.FormValue("amount"),
	}
	s.respond(w, "send", s.Controller.SendTransfer(r.Context(), form))
}

func (s *Server) handleWallet(w http.ResponseWriter, r *http.Request) {
	if s.Wallet == nil {
		http.Error(w, "wallet not available", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, walletResponse{
		Accounts: s.Wallet.Addresses(),
		Networks: s.Wallet.Networks(),
	})
}

func (s *Server) handleWalletLock(w http.ResponseWriter, r *http.Request) {
	if s.Wallet == nil {
		http.Error(w, "wallet not available", http.StatusServiceUnavailable)
		return
	}
	s.Wallet.Lock()
	s.respond(w, "wallet lock", nil)
}

func (s *Server) handleWalletAccount(w http.ResponseWriter, r *http.Request) {
	if s.Wallet == nil {
		http.Error(w, "wallet not available", http.StatusServiceUnavailable)
		return
	}
	account := strings.TrimSpace(r.FormValue("account"))
	if !common.IsHexAddress(account) {
		s.respond(w, "wallet account", errors.Wrapf(wallet.ErrUnknownAccount, "%q", account))
		return
	}
	s.respond(w, "wallet account", s.Wallet.SelectAccount(common.HexToAddress(account)))
}

func (s *Server) handleWalletNetwork(w http.ResponseWriter, r *http.Request) {
	if s.Wallet == nil {
		http.Error(w, "wallet not available", http.StatusServiceUnavailable)
		return
	}
	_, err := s.Wallet.SwitchNetwork(r.Context(), strings.TrimSpace(r.FormValue("network")))
	s.respond(w, "wallet network", err)
}

func (s *Server) handleTransfers(w http.ResponseWriter, r *http.Request) {
	if s.Transfers == nil {
		http.Error(w, "transfer journal not available", http.StatusServiceUnavailable)
		return
	}

	var account common.Address
	if v := strings.TrimSpace(r.URL.Query().Get("account")); v != "" {
		if !common.IsHexAddress(v) {
			http.Error(w, "invalid account", http.StatusBadRequest)
			return
		}
		account = common.HexToAddress(v)
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	records, err := s.Transfers.List(r.Context(), account, limit)
	if err != nil {
		s.logger().Error("list transfers", zap.Error(err))
		http.Error(w, "failed to list transfers", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, records)
}

func (s *Server) handleTransfer(w http.ResponseWriter, r *http.Request) {
	if s.Transfers == nil {
		http.Error(w, "transfer journal not available", http.StatusServiceUnavailable)
		return
	}

	id := strings.TrimSpace(r.PathValue("id"))
	rec, err := s.Transfers.Get(r.Context(), id)
	switch {
	case errors.Is(err, transfers.ErrNotFound):
		http.Error(w, "transfer not found", http.StatusNotFound)
		return
	case err != nil:
		s.logger().Error("get transfer", zap.String("id", id), zap.Error(err))
		http.Error(w, "failed to get transfer", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// respond writes the page state after an action; the outcome is already
// rendered on the page, err only selects the status code.
func (s *Server) respond(w http.ResponseWriter, action string, err error) {
	resp := actionResponse{State: s.Page.State()}
	code := http.StatusOK
	if err != nil {
		resp.Error = err.Error()
		code = statusCode(err)
		s.logger().Debug("action failed", zap.String("action", action), zap.Int("code", code), zap.Error(err))
	}
	writeJSON(w, code, resp)
}

func statusCode(err error) int {
	switch {
	case errors.Is(err, dashboard.ErrNotConnected),
		errors.Is(err, dashboard.ErrInvalidAddress),
		errors.Is(err, dashboard.ErrInvalidAmount),
		errors.Is(err, dashboard.ErrUnsupportedToken),
		errors.Is(err, wallet.ErrUnknownAccount),
		errors.Is(err, wallet.ErrUnknownNetwork):
		return http.StatusBadRequest
	case errors.Is(err, dashboard.ErrProviderAbsent):
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadGateway
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
