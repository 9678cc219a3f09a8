package planner

import (
	"context"
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"liquidityPilot/internal/liquidity"
	"liquidityPilot/internal/model"
	"liquidityPilot/internal/tickmath"
)

// sizing is the liquidity and both desired amounts derived from a one-sided input.
type sizing struct {
	liquidity *big.Int
	amount0   *big.Int
	amount1   *big.Int
}

// PlanMint builds a Mint request for a new position.
func (p *Planner) PlanMint(ctx context.Context, intent MintIntent) (model.ActionRequest, error) {
	if err := checkSlippage(intent.Slippage); err != nil {
		return model.ActionRequest{}, err
	}
	deadline, err := p.deadline(intent.MaxWait)
	if err != nil {
		return model.ActionRequest{}, err
	}

	pool, err := p.freshPool(ctx, intent.Pool)
	if err != nil {
		return model.ActionRequest{}, err
	}

	r, err := ResolveRange(intent.PriceLower, intent.PriceUpper, pool)
	if err != nil {
		return model.ActionRequest{}, err
	}

	size, err := sizeFromInput(pool, r, intent.InputIndex, intent.Amount)
	if err != nil {
		return model.ActionRequest{}, err
	}

	req := model.ActionRequest{
		Kind:           model.ActionMint,
		Pool:           pool,
		Range:          r,
		Liquidity:      size.liquidity,
		Amount0Desired: size.amount0,
		Amount1Desired: size.amount1,
		Amount0Min:     applySlippage(size.amount0, intent.Slippage),
		Amount1Min:     applySlippage(size.amount1, intent.Slippage),
		Recipient:      intent.Recipient,
		Deadline:       deadline,
	}

	p.logger.Info("planned mint",
		zap.String("pool", pool.Address.Hex()),
		zap.Int32("tick_lower", r.TickLower),
		zap.Int32("tick_upper", r.TickUpper),
		zap.Int32("tick_current", pool.Tick),
		zap.String("liquidity", size.liquidity.String()),
		zap.String("amount0", size.amount0.String()),
		zap.String("amount1", size.amount1.String()),
	)
	return req, nil
}

// PlanIncrease builds an IncreaseLiquidity request over an existing position's range.
func (p *Planner) PlanIncrease(ctx context.Context, intent IncreaseIntent) (model.ActionRequest, error) {
	if intent.TokenID == nil {
		return model.ActionRequest{}, fmt.Errorf("token id is required")
	}
	if err := checkSlippage(intent.Slippage); err != nil {
		return model.ActionRequest{}, err
	}
	deadline, err := p.deadline(intent.MaxWait)
	if err != nil {
		return model.ActionRequest{}, err
	}

	position, err := p.ledger.Position(ctx, intent.TokenID)
	if err != nil {
		return model.ActionRequest{}, fmt.Errorf("position %s: %w", intent.TokenID, err)
	}
	pool, err := p.freshPool(ctx, position.Pool)
	if err != nil {
		return model.ActionRequest{}, err
	}

	size, err := sizeFromInput(pool, position.Range, intent.InputIndex, intent.Amount)
	if err != nil {
		return model.ActionRequest{}, err
	}

	req := model.ActionRequest{
		Kind:           model.ActionIncrease,
		Pool:           pool,
		TokenID:        new(big.Int).Set(intent.TokenID),
		Range:          position.Range,
		Liquidity:      size.liquidity,
		Amount0Desired: size.amount0,
		Amount1Desired: size.amount1,
		Amount0Min:     applySlippage(size.amount0, intent.Slippage),
		Amount1Min:     applySlippage(size.amount1, intent.Slippage),
		Recipient:      position.Owner,
		Deadline:       deadline,
	}

	p.logger.Info("planned increase",
		zap.String("token_id", intent.TokenID.String()),
		zap.String("liquidity", size.liquidity.String()),
		zap.String("amount0", size.amount0.String()),
		zap.String("amount1", size.amount1.String()),
	)
	return req, nil
}

// ResolveRange converts desired prices to spacing-aligned ticks for pool.
func ResolveRange(priceLower, priceUpper decimal.Decimal, pool model.Pool) (model.PriceRange, error) {
	lower, err := snap(priceLower, pool)
	if err != nil {
		return model.PriceRange{}, fmt.Errorf("lower price: %w", err)
	}
	upper, err := snap(priceUpper, pool)
	if err != nil {
		return model.PriceRange{}, fmt.Errorf("upper price: %w", err)
	}
	r := model.PriceRange{TickLower: lower, TickUpper: upper}
	if err := r.Validate(pool.TickSpacing); err != nil {
		return model.PriceRange{}, err
	}
	return r, nil
}

func snap(price decimal.Decimal, pool model.Pool) (int32, error) {
	tick, err := tickmath.PriceToTick(price, pool.Token0.Decimals, pool.Token1.Decimals)
	if err != nil {
		return 0, err
	}
	return tickmath.NearestUsableTick(tick, pool.TickSpacing)
}

// sizeFromInput derives liquidity from one side and the amount the pool will charge on the other.
func sizeFromInput(pool model.Pool, r model.PriceRange, inputIndex int, amount decimal.Decimal) (sizing, error) {
	if inputIndex != 0 && inputIndex != 1 {
		return sizing{}, fmt.Errorf("input index must be 0 or 1, got %d", inputIndex)
	}
	if pool.SqrtPriceX96 == nil {
		return sizing{}, fmt.Errorf("pool %s has no sqrt price", pool.Address.Hex())
	}
	desired, err := liquidity.ToRaw(amount, pool.TokenAt(inputIndex).Decimals)
	if err != nil {
		return sizing{}, err
	}
	if desired.Sign() <= 0 {
		return sizing{}, fmt.Errorf("%w: amount %s is zero in base units", model.ErrInsufficientInput, amount)
	}

	sqrtLower, err := tickmath.SqrtRatioAtTick(r.TickLower)
	if err != nil {
		return sizing{}, err
	}
	sqrtUpper, err := tickmath.SqrtRatioAtTick(r.TickUpper)
	if err != nil {
		return sizing{}, err
	}
	current := pool.SqrtPriceX96

	var liq *big.Int
	if inputIndex == 0 {
		// Below the range the whole position is token0, priced at the lower bound.
		liq, err = liquidity.LiquidityFromAmount0(desired, sqrtUpper, maxBig(current, sqrtLower))
	} else {
		// Above the range the whole position is token1, priced at the upper bound.
		liq, err = liquidity.LiquidityFromAmount1(desired, sqrtLower, minBig(current, sqrtUpper))
	}
	if err != nil {
		return sizing{}, err
	}
	if liq.Sign() <= 0 {
		return sizing{}, fmt.Errorf("%w: amount %s yields no liquidity", model.ErrInsufficientInput, amount)
	}

	amount0, amount1, err := liquidity.MintAmounts(liq, r, pool)
	if err != nil {
		return sizing{}, err
	}

	size := sizing{liquidity: liq}
	inRange := current.Cmp(sqrtLower) > 0 && current.Cmp(sqrtUpper) < 0
	if inputIndex == 0 {
		size.amount0, size.amount1 = desired, amount1
		if inRange && amount1.Sign() <= 0 {
			return sizing{}, fmt.Errorf("%w: derived amount1 is zero", model.ErrInsufficientInput)
		}
	} else {
		size.amount0, size.amount1 = amount0, desired
		if inRange && amount0.Sign() <= 0 {
			return sizing{}, fmt.Errorf("%w: derived amount0 is zero", model.ErrInsufficientInput)
		}
	}
	return size, nil
}

func maxBig(a, b *big.Int) *big.Int {
	if a.Cmp(b) >= 0 {
		return a
	}
	return b
}

func minBig(a, b *big.Int) *big.Int {
	if a.Cmp(b) <= 0 {
		return a
	}
	return b
}
