package web

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
	"golang.org/x/crypto/acme/autocert"

	"github.com/vadiminshakov/walletdash/internal/domain"
	"github.com/vadiminshakov/walletdash/internal/events"
)

const (
	snapshotPollInterval = 3 * time.Second
	heartbeatInterval    = 30 * time.Second
	shutdownTimeout      = 5 * time.Second
)

type controller interface {
	Connect(ctx context.Context) error
	Refresh(ctx context.Context) error
	SendTransfer(ctx context.Context, form domain.TransferForm) error
}

type pageReader interface {
	State() domain.PageState
}

// walletUI actions a wallet extension offers in its own popup.
type walletUI interface {
	Addresses() []common.Address
	Networks() []domain.Network
	Lock()
	SelectAccount(addr common.Address) error
	SwitchNetwork(ctx context.Context, name string) (domain.Network, error)
}

type balanceSnapshotReader interface {
	SnapshotsAfter(index uint64) ([]domain.BalanceSnapshotRecord, error)
}

type transferLister interface {
	List(ctx context.Context, account common.Address, limit int) ([]domain.TransferRecord, error)
	Get(ctx context.Context, id string) (domain.TransferRecord, error)
}

// Server exposes the dashboard page, its JSON actions and SSE streams.
type Server struct {
	Addr          string
	Controller    controller
	Page          pageReader
	Wallet        walletUI
	Store         balanceSnapshotReader
	Transfers     transferLister
	PageEvents    *events.PageBroadcaster
	BalanceEvents *events.BalanceBroadcaster
	Logger        *zap.Logger
	// TrustedOrigins may issue state-changing requests besides the page's own origin,
	// e.g. "https://dash.example.com" behind a proxy that rewrites Host.
	TrustedOrigins []string
}

// Handler builds the routing table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("GET /{$}", s.indexHandler())
	mux.HandleFunc("GET /state", s.handleState)
	mux.HandleFunc("POST /connect", s.handleConnect)
	mux.HandleFunc("POST /refresh", s.handleRefresh)
	mux.HandleFunc("POST /send", s.handleSend)
	mux.HandleFunc("GET /wallet", s.handleWallet)
	mux.HandleFunc("POST /wallet/lock", s.handleWalletLock)
	mux.HandleFunc("POST /wallet/account", s.handleWalletAccount)
	mux.HandleFunc("POST /wallet/network", s.handleWalletNetwork)
	mux.HandleFunc("GET /transfers", s.handleTransfers)
	mux.HandleFunc("GET /transfers/{id}", s.handleTransfer)
	mux.HandleFunc("GET /page/stream", s.handlePageStream)
	mux.HandleFunc("GET /balance/stream", s.handleBalanceStream)
	return s.crossOriginProtection().Handler(mux)
}

// crossOriginProtection rejects non-safe requests sent by other sites, so a
// page the operator visits cannot connect the wallet or submit transfers.
func (s *Server) crossOriginProtection() *http.CrossOriginProtection {
	protection := http.NewCrossOriginProtection()
	for _, origin := range s.TrustedOrigins {
		if err := protection.AddTrustedOrigin(origin); err != nil {
			s.logger().Warn("ignore trusted origin", zap.String("origin", origin), zap.Error(err))
		}
	}
	protection.SetDenyHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.logger().Warn("cross-origin request rejected",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("origin", r.Header.Get("Origin")),
			zap.String("sec_fetch_site", r.Header.Get("Sec-Fetch-Site")))
		http.Error(w, "cross-origin request rejected", http.StatusForbidden)
	}))
	return protection
}

// Start runs the HTTP server (blocking) and shuts it down when ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	server := &http.Server{
		Addr:              s.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	s.logger().Info("dashboard listening", zap.String("addr", s.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// StartWithAutoTLS runs an HTTPS server with automatic TLS certificates via ACME.
// It also starts an HTTP server on port 80 to handle ACME HTTP-01 challenges.
func (s *Server) StartWithAutoTLS(ctx context.Context, domains []string, cacheDir string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if len(domains) == 0 {
		return fmt.Errorf("no domains provided for automatic TLS")
	}
	if cacheDir == "" {
		cacheDir = "cert-cache"
	}
	logger := s.logger()

	manager := &autocert.Manager{
		Prompt:     autocert.AcceptTOS,
		HostPolicy: autocert.HostWhitelist(domains...),
		Cache:      autocert.DirCache(cacheDir),
	}

	// HTTP server on port 80 for ACME challenges and HTTP->HTTPS redirects.
	httpSrv := &http.Server{
		Addr:              ":80",
		Handler:           manager.HTTPHandler(nil),
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	tlsConfig := manager.TLSConfig()
	tlsConfig.MinVersion = tls.VersionTLS12

	httpsSrv := &http.Server{
		Addr:              s.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       120 * time.Second,
		TLSConfig:         tlsConfig,
	}

	// shutdown both servers when context is cancelled.
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("http (acme) server shutdown", zap.Error(err))
		}
		if err := httpsSrv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("https server shutdown", zap.Error(err))
		}
	}()

	go func() {
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http (acme) server", zap.Error(err))
		}
	}()

	logger.Info("dashboard listening with auto TLS", zap.String("addr", s.Addr), zap.Strings("domains", domains))
	if err := httpsSrv.ListenAndServeTLS("", ""); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) logger() *zap.Logger {
	if s.Logger == nil {
		return zap.NewNop()
	}
	return s.Logger
}
