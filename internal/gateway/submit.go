package gateway

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"liquidityPilot/internal/dex"
	"liquidityPilot/internal/model"
)

// SubmitBatch sends the calls as one multicall transaction and waits for its receipt.
// Reverts are classified and never retried.
func (g *Gateway) SubmitBatch(ctx context.Context, calls []model.ActionRequest, nativeValue *big.Int) (model.TransactionResult, error) {
	data, err := dex.EncodeMulticall(calls)
	if err != nil {
		return model.TransactionResult{}, err
	}
	result, receipt, err := g.transact(ctx, g.cfg.PositionManager, data, nativeValue)
	if err != nil {
		return result, err
	}
	// The batch is final once mined; a receipt that cannot be decoded only loses the event list.
	events, err := dex.DecodePositionEvents(receipt.Logs, g.cfg.PositionManager)
	if err != nil {
		g.logger.Warn("decode receipt events failed",
			zap.String("tx", result.TxHash.Hex()),
			zap.Uint64("block", result.BlockNumber),
			zap.Error(err),
		)
		return result, nil
	}
	result.Events = events
	return result, nil
}

// Approve sends token.approve(spender, amount).
func (g *Gateway) Approve(ctx context.Context, token, spender common.Address, amount *big.Int) (model.TransactionResult, error) {
	data, err := dex.EncodeApprove(spender, amount)
	if err != nil {
		return model.TransactionResult{}, fmt.Errorf("encode approve: %w", err)
	}
	result, _, err := g.transact(ctx, token, data, nil)
	return result, err
}

func (g *Gateway) transact(ctx context.Context, to common.Address, data []byte, value *big.Int) (model.TransactionResult, *types.Receipt, error) {
	if g.cfg.PrivateKey == nil {
		return model.TransactionResult{}, nil, ErrReadOnly
	}
	if value == nil {
		value = new(big.Int)
	}

	g.sendMu.Lock()
	tx, err := g.signTx(ctx, to, data, value)
	if err == nil {
		err = g.backend.SendTransaction(ctx, tx)
		if err != nil {
			err = fmt.Errorf("send transaction: %w", err)
		}
	}
	g.sendMu.Unlock()
	if err != nil {
		return model.TransactionResult{}, nil, err
	}

	g.logger.Info("transaction sent",
		zap.String("tx", tx.Hash().Hex()),
		zap.String("to", to.Hex()),
		zap.Uint64("nonce", tx.Nonce()),
		zap.Stringer("value", value),
	)

	result := model.TransactionResult{TxHash: tx.Hash(), NativeValue: value}
	receipt, err := g.waitReceipt(ctx, tx.Hash())
	if err != nil {
		return result, nil, err
	}
	result.BlockNumber = receipt.BlockNumber.Uint64()
	result.GasUsed = receipt.GasUsed
	if receipt.EffectiveGasPrice != nil {
		result.GasCost = new(big.Int).Mul(receipt.EffectiveGasPrice, new(big.Int).SetUint64(receipt.GasUsed))
	}

	if receipt.Status == types.ReceiptStatusFailed {
		reason := g.replayReason(ctx, to, data, value, receipt.BlockNumber)
		g.logger.Warn("transaction reverted",
			zap.String("tx", tx.Hash().Hex()),
			zap.String("reason", reason),
		)
		return result, receipt, classifyRevert(reason)
	}
	return result, receipt, nil
}

func (g *Gateway) signTx(ctx context.Context, to common.Address, data []byte, value *big.Int) (*types.Transaction, error) {
	var (
		chainID *big.Int
		nonce   uint64
		tipCap  *big.Int
		header  *types.Header
		gas     uint64
	)
	if err := g.retry(ctx, func(ctx context.Context) error {
		var err error
		chainID, err = g.backend.ChainID(ctx)
		return err
	}); err != nil {
		return nil, fmt.Errorf("chain id: %w", err)
	}
	if err := g.retry(ctx, func(ctx context.Context) error {
		var err error
		nonce, err = g.backend.PendingNonceAt(ctx, g.from)
		return err
	}); err != nil {
		return nil, fmt.Errorf("pending nonce: %w", err)
	}
	if err := g.retry(ctx, func(ctx context.Context) error {
		var err error
		tipCap, err = g.backend.SuggestGasTipCap(ctx)
		return err
	}); err != nil {
		return nil, fmt.Errorf("gas tip cap: %w", err)
	}
	if err := g.retry(ctx, func(ctx context.Context) error {
		var err error
		header, err = g.backend.HeaderByNumber(ctx, nil)
		return err
	}); err != nil {
		return nil, fmt.Errorf("latest header: %w", err)
	}
	if err := g.retry(ctx, func(ctx context.Context) error {
		var err error
		gas, err = g.backend.EstimateGas(ctx, ethereum.CallMsg{From: g.from, To: &to, Value: value, Data: data})
		if isRevert(err) {
			return permanent(err)
		}
		return err
	}); err != nil {
		if isRevert(err) {
			return nil, classifyRevert(revertReason(err))
		}
		return nil, fmt.Errorf("estimate gas: %w", err)
	}

	baseFee := header.BaseFee
	if baseFee == nil {
		baseFee = new(big.Int)
	}
	feeCap := new(big.Int).Add(new(big.Int).Mul(baseFee, big.NewInt(2)), tipCap)

	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   chainID,
		Nonce:     nonce,
		GasTipCap: tipCap,
		GasFeeCap: feeCap,
		Gas:       gas + gas*gasHeadroom/100,
		To:        &to,
		Value:     value,
		Data:      data,
	})
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(chainID), g.cfg.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("sign transaction: %w", err)
	}
	return signed, nil
}

func (g *Gateway) waitReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	ctx, cancel := context.WithTimeout(ctx, g.cfg.ReceiptTimeout)
	defer cancel()

	ticker := time.NewTicker(g.cfg.PollInterval)
	defer ticker.Stop()
	for {
		receipt, err := g.backend.TransactionReceipt(ctx, hash)
		if err == nil && receipt != nil {
			return receipt, nil
		}
		if err != nil && !errors.Is(err, ethereum.NotFound) {
			g.logger.Debug("receipt poll failed", zap.String("tx", hash.Hex()), zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("wait receipt %s: %w", hash.Hex(), ctx.Err())
		case <-ticker.C:
		}
	}
}

// replayReason re-executes a reverted call at its block to recover the revert string.
func (g *Gateway) replayReason(ctx context.Context, to common.Address, data []byte, value *big.Int, block *big.Int) string {
	msg := ethereum.CallMsg{From: g.from, To: &to, Value: value, Data: data}
	_, err := g.backend.CallContract(ctx, msg, block)
	if err == nil {
		return "receipt status 0"
	}
	return revertReason(err)
}
