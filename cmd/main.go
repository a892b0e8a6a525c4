// Command walletdash serves a browser dashboard for a local EVM wallet:
// native and ERC-20 balances of the connected account and simple transfers.
//
// Usage:
//
//	walletdash --config config.yaml
//	walletdash --setup (interactive wizard, writes config.gen.yaml)
//
// Environment variables (names configurable in the YAML):
//
//	WALLET_PRIVATE_KEYS: comma separated hex private keys
//	WALLET_KEYSTORE_PASSWORD: password of the configured keystore file
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/vadiminshakov/walletdash/config"
	"github.com/vadiminshakov/walletdash/internal/clients"
	"github.com/vadiminshakov/walletdash/internal/events"
	"github.com/vadiminshakov/walletdash/internal/services/dashboard"
	"github.com/vadiminshakov/walletdash/internal/services/wallet"
	"github.com/vadiminshakov/walletdash/internal/setup"
	"github.com/vadiminshakov/walletdash/internal/storage/balancesnapshots"
	"github.com/vadiminshakov/walletdash/internal/storage/transfers"
	"github.com/vadiminshakov/walletdash/internal/web"
)

const eventBuffer = 64

func main() {
	flags, err := config.ParseFlags(os.Args[1:])
	if err != nil {
		log.Fatal(err)
	}

	configPath := flags.ConfigPath
	if flags.Setup {
		configPath, err = setup.RunTUI()
		if err != nil {
			log.Fatal(err)
		}
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatal(err)
	}

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("walletdash stopped", zap.Error(err))
	}
}

func run(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	signers, err := loadSigners(cfg)
	if err != nil {
		return err
	}

	// a nil provider renders the "no wallet" state
	var provider dashboard.WalletProvider
	var walletUI *wallet.Wallet
	if len(signers) > 0 {
		walletUI, err = wallet.New(logger, signers, cfg.Networks, cfg.DefaultNetwork, wallet.EthclientDialer(logger))
		if err != nil {
			return err
		}
		defer walletUI.Close()
		provider = walletUI
	} else {
		logger.Warn("no signing keys configured", zap.String("env", cfg.PrivateKeysEnv))
	}

	pageEvents := events.NewPageBroadcaster(eventBuffer)
	balanceEvents := events.NewBalanceBroadcaster(eventBuffer)

	snapshots, err := balancesnapshots.NewWALStore(cfg.SnapshotsDir, balanceEvents)
	if err != nil {
		return err
	}
	defer snapshots.Close()

	journal, err := transfers.Open(ctx, cfg.JournalPath)
	if err != nil {
		return err
	}
	defer journal.Close()

	page := dashboard.NewPage(pageEvents, cfg.LogLimit)
	controller := dashboard.NewController(logger, provider, page, cfg.Tokens,
		dashboard.WithSnapshots(snapshots),
		dashboard.WithJournal(journal),
		dashboard.WithReceiptTimeout(cfg.ReceiptTimeout),
	)

	server := &web.Server{
		Addr:          cfg.Addr,
		Controller:    controller,
		Page:          page,
		Store:         snapshots,
		Transfers:     journal,
		PageEvents:    pageEvents,
		BalanceEvents: balanceEvents,
		Logger:        logger,

		TrustedOrigins: cfg.TrustedOrigins,
	}
	if cfg.AllowRemote {
		logger.Warn("dashboard is reachable from other hosts", zap.String("addr", cfg.Addr), zap.Strings("tls_domains", cfg.TLSDomains))
	}
	if walletUI != nil {
		server.Wallet = walletUI
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if len(cfg.TLSDomains) > 0 {
			return server.StartWithAutoTLS(ctx, cfg.TLSDomains, cfg.CertCacheDir)
		}
		return server.Start(ctx)
	})

	return g.Wait()
}

func loadSigners(cfg config.Config) ([]clients.Signer, error) {
	signers, err := clients.ParsePrivateKeys(os.Getenv(cfg.PrivateKeysEnv))
	if err != nil {
		return nil, err
	}

	if cfg.KeystorePath != "" {
		s, err := clients.LoadKeystore(cfg.KeystorePath, os.Getenv(cfg.KeystorePasswordEnv))
		if err != nil {
			return nil, err
		}
		for _, existing := range signers {
			if existing.Address == s.Address {
				return signers, nil
			}
		}
		signers = append(signers, s)
	}

	return signers, nil
}
