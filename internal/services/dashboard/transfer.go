package dashboard

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/vadiminshakov/walletdash/internal/domain"
	"github.com/vadiminshakov/walletdash/internal/services/erc20"
)

// SendTransfer validates the form and submits a native or ERC-20 transfer,
// waiting for its receipt. Invalid input raises an alert and never reaches the network.
func (c *Controller) SendTransfer(ctx context.Context, form domain.TransferForm) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.session.Connected {
		return c.reject(alertConnectFirst, ErrNotConnected)
	}

	recipient, err := parseRecipient(form.Recipient)
	if err != nil {
		return c.reject(alertInvalidAddress, err)
	}

	token, native, tokenErr := c.resolveToken(form)
	decimals := uint8(domain.NativeDecimals)
	if tokenErr == nil && !native {
		decimals = token.Decimals
	}
	amount, err := domain.ParseUnits(form.Amount, decimals)
	if err != nil {
		return c.reject(alertInvalidAmount, err)
	}
	if tokenErr != nil {
		return c.reject(alertUnsupportedToken, tokenErr)
	}

	c.view.SetSendEnabled(false)
	defer c.view.SetSendEnabled(true)
	c.view.SetStatus(statusPreparing, false)

	req, symbol, err := c.buildTx(recipient, amount, token, native)
	if err != nil {
		return c.failSend(ctx, nil, err)
	}

	now := c.now().UTC()
	record := &domain.TransferRecord{
		ID:        c.newID(),
		CreatedAt: now,
		UpdatedAt: now,
		From:      c.session.Account,
		To:        recipient,
		Symbol:    symbol,
		Amount:    strings.TrimSpace(form.Amount),
		ChainID:   c.session.Network.ChainID,
		Status:    domain.TransferStatusPending,
	}
	c.journalCreate(ctx, record)

	hash, err := c.provider.SendTransaction(ctx, req)
	if err != nil {
		return c.failSend(ctx, record, err)
	}
	record.TxHash = hash.Hex()
	record.Status = domain.TransferStatusSubmitted
	c.journalUpdate(ctx, record)
	c.view.SetStatus(statusSent+hash.Hex(), false)
	c.view.Log(statusSent + hash.Hex())
	c.logger.Info("transfer submitted",
		zap.String("id", record.ID),
		zap.String("hash", hash.Hex()),
		zap.String("symbol", symbol),
		zap.String("amount", record.Amount),
		zap.String("to", recipient.Hex()))

	waitCtx, cancel := context.WithTimeout(ctx, c.receiptTimeout)
	receipt, err := c.provider.WaitReceipt(waitCtx, hash)
	cancel()
	if err != nil {
		return c.failSend(ctx, record, err)
	}

	if receipt.BlockNumber != nil {
		record.Block = receipt.BlockNumber.Uint64()
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		record.Status = domain.TransferStatusFailed
		record.Error = ErrTransactionReverted.Error()
		c.journalUpdate(ctx, record)
		c.view.SetStatus(statusReverted, true)
		c.view.Log(logReverted + hash.Hex())
		c.logger.Warn("transfer reverted", zap.String("hash", hash.Hex()), zap.Uint64("block", record.Block))
		c.updateWalletInfo(ctx)
		c.refreshBalances(ctx)
		return errors.Wrap(ErrTransactionReverted, hash.Hex())
	}

	record.Status = domain.TransferStatusConfirmed
	c.journalUpdate(ctx, record)
	c.view.SetStatus(fmt.Sprintf(statusConfirmed, record.Block), false)
	c.view.Log(fmt.Sprintf(logConfirmed, hash.Hex(), record.Block))
	c.logger.Info("transfer confirmed", zap.String("hash", hash.Hex()), zap.Uint64("block", record.Block))

	c.updateWalletInfo(ctx)
	c.refreshBalances(ctx)
	return nil
}

func (c *Controller) reject(alert string, err error) error {
	c.view.Alert(alert)
	c.view.Log(alert)
	c.logger.Info("transfer rejected", zap.String("reason", alert), zap.Error(err))
	return err
}

func (c *Controller) failSend(ctx context.Context, record *domain.TransferRecord, err error) error {
	c.logger.Error("send transfer", zap.Error(err))
	c.view.SetStatus(statusSendError+err.Error(), true)
	c.view.Log(logSendError + err.Error())
	if record != nil {
		record.Status = domain.TransferStatusFailed
		record.Error = err.Error()
		c.journalUpdate(ctx, record)
	}
	return errors.Wrap(err, "send transfer")
}

func (c *Controller) buildTx(recipient common.Address, amount *big.Int, token domain.Token, native bool) (domain.TxRequest, string, error) {
	from := c.session.Account
	if native {
		return domain.TxRequest{From: from, To: recipient, Value: amount}, c.session.Network.NativeSymbol(), nil
	}
	data, err := erc20.PackTransfer(recipient, amount)
	if err != nil {
		return domain.TxRequest{}, "", err
	}
	return domain.TxRequest{From: from, To: token.ContractAddress(), Value: new(big.Int), Data: data}, token.Symbol, nil
}

func (c *Controller) resolveToken(form domain.TransferForm) (domain.Token, bool, error) {
	if form.IsNative() {
		return domain.Token{}, true, nil
	}
	value := strings.TrimSpace(form.Token)
	if common.IsHexAddress(value) {
		addr := common.HexToAddress(value)
		for _, t := range domain.ActiveTokens(c.tokens) {
			if t.ContractAddress() == addr {
				return t, false, nil
			}
		}
	}
	return domain.Token{}, false, errors.Wrapf(ErrUnsupportedToken, "%q", value)
}

// parseRecipient accepts a 20-byte hex address. Mixed case input must carry
// a valid EIP-55 checksum.
func parseRecipient(s string) (common.Address, error) {
	s = strings.TrimSpace(s)
	if !common.IsHexAddress(s) {
		return common.Address{}, errors.Wrapf(ErrInvalidAddress, "%q", s)
	}
	addr := common.HexToAddress(s)
	digits := strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if digits != strings.ToLower(digits) && digits != strings.ToUpper(digits) {
		if addr.Hex()[2:] != digits {
			return common.Address{}, errors.Wrapf(ErrInvalidAddress, "%q: bad checksum", s)
		}
	}
	return addr, nil
}

func (c *Controller) journalCreate(ctx context.Context, record *domain.TransferRecord) {
	if c.journal == nil {
		return
	}
	if err := c.journal.Create(context.WithoutCancel(ctx), *record); err != nil {
		c.logger.Error("journal create", zap.String("id", record.ID), zap.Error(err))
	}
}

func (c *Controller) journalUpdate(ctx context.Context, record *domain.TransferRecord) {
	if c.journal == nil {
		return
	}
	record.UpdatedAt = c.now().UTC()
	if err := c.journal.Update(context.WithoutCancel(ctx), *record); err != nil {
		c.logger.Error("journal update", zap.String("id", record.ID), zap.Error(err))
	}
}
