package planner

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"liquidityPilot/internal/liquidity"
	"liquidityPilot/internal/model"
	"liquidityPilot/internal/tickmath"
)

// Summary is a human-readable view of a position against the current pool price.
type Summary struct {
	TokenID      *big.Int         `json:"token_id"`
	Owner        common.Address   `json:"owner"`
	Pool         common.Address   `json:"pool"`
	Symbol0      string           `json:"symbol0"`
	Symbol1      string           `json:"symbol1"`
	Fee          uint32           `json:"fee"`
	Range        model.PriceRange `json:"range"`
	PriceLower   decimal.Decimal  `json:"price_lower"`
	PriceUpper   decimal.Decimal  `json:"price_upper"`
	PriceCurrent decimal.Decimal  `json:"price_current"`
	Liquidity    *big.Int         `json:"liquidity"`
	Amount0      decimal.Decimal  `json:"amount0"`
	Amount1      decimal.Decimal  `json:"amount1"`
	Owed0        decimal.Decimal  `json:"owed0"`
	Owed1        decimal.Decimal  `json:"owed1"`
	InRange      bool             `json:"in_range"`
	// PoolShare is the position's percentage of active pool liquidity. Zero when out of range.
	PoolShare   decimal.Decimal `json:"pool_share"`
	BlockNumber uint64          `json:"block_number"`
}

// Describe summarizes a position at the pool's current price.
func (p *Planner) Describe(ctx context.Context, tokenID *big.Int) (Summary, error) {
	if tokenID == nil {
		return Summary{}, fmt.Errorf("token id is required")
	}
	position, err := p.ledger.Position(ctx, tokenID)
	if err != nil {
		return Summary{}, fmt.Errorf("position %s: %w", tokenID, err)
	}
	pool, err := p.gateway.PoolState(ctx, position.Pool)
	if err != nil {
		return Summary{}, fmt.Errorf("pool state %s: %w", position.Pool.Hex(), err)
	}
	return Summarize(position, pool)
}

// Summarize computes a Summary from an already loaded position and pool.
func Summarize(position model.Position, pool model.Pool) (Summary, error) {
	d0, d1 := pool.Token0.Decimals, pool.Token1.Decimals
	lower, err := tickmath.TickToPrice(position.Range.TickLower, d0, d1)
	if err != nil {
		return Summary{}, err
	}
	upper, err := tickmath.TickToPrice(position.Range.TickUpper, d0, d1)
	if err != nil {
		return Summary{}, err
	}
	liq := position.Liquidity
	if liq == nil {
		liq = new(big.Int)
	}
	amount0, amount1, err := liquidity.AmountsFromLiquidity(liq, position.Range, pool)
	if err != nil {
		return Summary{}, err
	}

	inRange := pool.Tick >= position.Range.TickLower && pool.Tick < position.Range.TickUpper
	share := decimal.Zero
	if inRange && pool.Liquidity != nil && pool.Liquidity.Sign() > 0 {
		share = decimal.NewFromBigInt(liq, 0).
			Mul(hundred).
			DivRound(decimal.NewFromBigInt(pool.Liquidity, 0), 6)
	}

	return Summary{
		TokenID:      position.TokenID,
		Owner:        position.Owner,
		Pool:         pool.Address,
		Symbol0:      pool.Token0.Symbol,
		Symbol1:      pool.Token1.Symbol,
		Fee:          pool.Fee,
		Range:        position.Range,
		PriceLower:   lower,
		PriceUpper:   upper,
		PriceCurrent: tickmath.SqrtPriceX96ToPrice(pool.SqrtPriceX96, d0, d1),
		Liquidity:    liq,
		Amount0:      liquidity.FromRaw(amount0, d0),
		Amount1:      liquidity.FromRaw(amount1, d1),
		Owed0:        liquidity.FromRaw(position.AmountsOwed0, d0),
		Owed1:        liquidity.FromRaw(position.AmountsOwed1, d1),
		InRange:      inRange,
		PoolShare:    share,
		BlockNumber:  pool.BlockNumber,
	}, nil
}
