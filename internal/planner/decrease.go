package planner

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"liquidityPilot/internal/liquidity"
	"liquidityPilot/internal/model"
)

// PlanDecrease builds a DecreaseLiquidity request followed by the Collect that pays it out.
func (p *Planner) PlanDecrease(ctx context.Context, intent DecreaseIntent) ([]model.ActionRequest, error) {
	if intent.TokenID == nil {
		return nil, fmt.Errorf("token id is required")
	}
	if err := checkSlippage(intent.Slippage); err != nil {
		return nil, err
	}
	deadline, err := p.deadline(intent.MaxWait)
	if err != nil {
		return nil, err
	}

	position, err := p.ledger.Position(ctx, intent.TokenID)
	if err != nil {
		return nil, fmt.Errorf("position %s: %w", intent.TokenID, err)
	}
	if position.Liquidity == nil || position.Liquidity.Sign() <= 0 {
		return nil, fmt.Errorf("%w: position %s has no liquidity", model.ErrInsufficientInput, intent.TokenID)
	}

	removal, err := removalLiquidity(position.Liquidity, intent.Percentage)
	if err != nil {
		return nil, err
	}
	if removal.Sign() <= 0 {
		return nil, fmt.Errorf("%w: %s%% of %s rounds to zero liquidity", model.ErrInsufficientInput, intent.Percentage, position.Liquidity)
	}

	pool, err := p.freshPool(ctx, position.Pool)
	if err != nil {
		return nil, err
	}
	amount0, amount1, err := liquidity.AmountsFromLiquidity(removal, position.Range, pool)
	if err != nil {
		return nil, err
	}

	recipient := intent.Recipient
	if recipient == (common.Address{}) {
		recipient = position.Owner
	}

	decrease := model.ActionRequest{
		Kind:           model.ActionDecrease,
		Pool:           pool,
		TokenID:        new(big.Int).Set(intent.TokenID),
		Range:          position.Range,
		Liquidity:      removal,
		Amount0Desired: amount0,
		Amount1Desired: amount1,
		Amount0Min:     applySlippage(amount0, intent.Slippage),
		Amount1Min:     applySlippage(amount1, intent.Slippage),
		Recipient:      recipient,
		Deadline:       deadline,
	}
	collect := collectRequest(pool, tokenIDOf(position, intent.TokenID), position.Range, recipient, deadline)

	p.logger.Info("planned decrease",
		zap.String("token_id", intent.TokenID.String()),
		zap.String("percentage", intent.Percentage.String()),
		zap.String("liquidity", removal.String()),
		zap.String("amount0_min", decrease.Amount0Min.String()),
		zap.String("amount1_min", decrease.Amount1Min.String()),
	)
	return []model.ActionRequest{decrease, collect}, nil
}

// PlanCollect builds a Collect request for everything owed to a position.
func (p *Planner) PlanCollect(ctx context.Context, tokenID *big.Int, recipient common.Address, maxWait time.Duration) (model.ActionRequest, error) {
	if tokenID == nil {
		return model.ActionRequest{}, fmt.Errorf("token id is required")
	}
	deadline, err := p.deadline(maxWait)
	if err != nil {
		return model.ActionRequest{}, err
	}
	position, err := p.ledger.Position(ctx, tokenID)
	if err != nil {
		return model.ActionRequest{}, fmt.Errorf("position %s: %w", tokenID, err)
	}
	pool, err := p.gateway.PoolState(ctx, position.Pool)
	if err != nil {
		return model.ActionRequest{}, fmt.Errorf("pool state %s: %w", position.Pool.Hex(), err)
	}
	if recipient == (common.Address{}) {
		recipient = position.Owner
	}
	return collectRequest(pool, tokenIDOf(position, tokenID), position.Range, recipient, deadline), nil
}

// PlanClaimAll builds one Collect per position held by owner, for a single batch.
func (p *Planner) PlanClaimAll(ctx context.Context, owner, recipient common.Address, maxWait time.Duration) ([]model.ActionRequest, error) {
	deadline, err := p.deadline(maxWait)
	if err != nil {
		return nil, err
	}
	ids, err := p.ledger.TokenIDs(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("token ids of %s: %w", owner.Hex(), err)
	}
	if recipient == (common.Address{}) {
		recipient = owner
	}

	pools := make(map[common.Address]model.Pool)
	requests := make([]model.ActionRequest, 0, len(ids))
	for _, id := range ids {
		position, err := p.ledger.Position(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("position %s: %w", id, err)
		}
		pool, ok := pools[position.Pool]
		if !ok {
			pool, err = p.gateway.PoolState(ctx, position.Pool)
			if err != nil {
				return nil, fmt.Errorf("pool state %s: %w", position.Pool.Hex(), err)
			}
			pools[position.Pool] = pool
		}
		requests = append(requests, collectRequest(pool, tokenIDOf(position, id), position.Range, recipient, deadline))
	}

	p.logger.Info("planned claim all",
		zap.String("owner", owner.Hex()),
		zap.Int("positions", len(requests)),
	)
	return requests, nil
}

func collectRequest(pool model.Pool, tokenID *big.Int, r model.PriceRange, recipient common.Address, deadline time.Time) model.ActionRequest {
	return model.ActionRequest{
		Kind:       model.ActionCollect,
		Pool:       pool,
		TokenID:    new(big.Int).Set(tokenID),
		Range:      r,
		Amount0Max: new(big.Int).Set(model.MaxUint128),
		Amount1Max: new(big.Int).Set(model.MaxUint128),
		Recipient:  recipient,
		Deadline:   deadline,
	}
}

func tokenIDOf(position model.Position, requested *big.Int) *big.Int {
	if position.TokenID != nil {
		return position.TokenID
	}
	return requested
}
