package dashboard

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/vadiminshakov/walletdash/internal/domain"
	"github.com/vadiminshakov/walletdash/internal/services/erc20"
)

// RefreshBalances replaces the balances grid with fresh reads.
func (c *Controller) RefreshBalances(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.session.Connected {
		return ErrNotConnected
	}
	c.refreshBalances(ctx)
	return nil
}

func (c *Controller) refreshBalances(ctx context.Context) {
	if !c.session.Connected {
		return
	}
	account := c.session.Account
	network := c.session.Network

	native, err := c.provider.BalanceAt(ctx, account)
	if err != nil {
		c.logger.Error("refresh native balance", zap.Error(err), zap.String("account", account.Hex()))
		c.view.ShowBalances([]domain.BalanceCell{})
		c.view.Log(logRefreshError + err.Error())
		return
	}

	active := domain.ActiveTokens(c.tokens)
	cells := make([]domain.BalanceCell, 0, len(active)+1)
	cells = append(cells, domain.BalanceCell{
		Symbol: network.NativeSymbol(),
		Amount: domain.FormatUnits(native, domain.NativeDecimals),
	})

	for _, token := range active {
		raw, err := erc20.BalanceOf(ctx, c.provider, token.ContractAddress(), account)
		if err != nil {
			c.logger.Warn("refresh token balance",
				zap.String("token", token.Symbol),
				zap.String("contract", token.ContractAddress().Hex()),
				zap.Error(err))
			cells = append(cells, domain.BalanceCell{Symbol: token.Symbol, Amount: domain.BalanceErrorMarker})
			continue
		}
		cells = append(cells, domain.BalanceCell{
			Symbol: token.Symbol,
			Amount: domain.FormatUnits(raw, token.Decimals),
		})
	}

	c.view.ShowBalances(cells)
	c.recordSnapshot(cells)
}

func (c *Controller) recordSnapshot(cells []domain.BalanceCell) {
	if c.snapshots == nil {
		return
	}
	snapshot := domain.NewBalanceSnapshot(c.now().UTC(), c.session, cells)
	if err := c.snapshots.Save(snapshot); err != nil {
		c.logger.Error("save balance snapshot", zap.Error(err))
	}
}

// verifyTokens compares each active descriptor with what its contract
// reports. Mismatches are logged only; the configured descriptor stays in use.
func (c *Controller) verifyTokens(ctx context.Context) {
	network := c.session.Network
	for _, token := range domain.ActiveTokens(c.tokens) {
		contract := token.ContractAddress()
		fields := []zap.Field{
			zap.String("token", token.Symbol),
			zap.String("contract", contract.Hex()),
			zap.Stringer("network", network),
		}

		decimals, err := erc20.Decimals(ctx, c.provider, contract)
		switch {
		case err != nil:
			c.logger.Warn("read token decimals", append(fields, zap.Error(err))...)
		case decimals != token.Decimals:
			c.logger.Warn("token decimals differ from configuration",
				append(fields, zap.Uint8("configured", token.Decimals), zap.Uint8("contract_decimals", decimals))...)
		}

		symbol, err := erc20.Symbol(ctx, c.provider, contract)
		switch {
		case err != nil:
			c.logger.Warn("read token symbol", append(fields, zap.Error(err))...)
		case !strings.EqualFold(strings.TrimSpace(symbol), token.Symbol):
			c.logger.Warn("token symbol differs from configuration",
				append(fields, zap.String("contract_symbol", symbol))...)
		}
	}
}
