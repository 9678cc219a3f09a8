package liquidity

import (
	"fmt"
	"math/big"

	"github.com/holiman/uint256"

	"liquidityPilot/internal/model"
	"liquidityPilot/internal/tickmath"
)

var (
	q96        = new(uint256.Int).Lsh(uint256.NewInt(1), 96)
	maxUint128 = new(uint256.Int).SubUint64(new(uint256.Int).Lsh(uint256.NewInt(1), 128), 1)
)

// LiquidityFromAmount0 returns floor(amount0 * sqrtUpper * sqrtCurrent / (sqrtUpper - sqrtCurrent)).
// All sqrt prices are Q64.96.
func LiquidityFromAmount0(amount0, sqrtPriceUpperX96, sqrtPriceCurrentX96 *big.Int) (*big.Int, error) {
	amount, upper, current, err := toUint256(amount0, sqrtPriceUpperX96, sqrtPriceCurrentX96)
	if err != nil {
		return nil, err
	}
	if !upper.Gt(current) {
		return nil, fmt.Errorf("%w: upper sqrt price %s <= current %s", model.ErrDegenerateRange, sqrtPriceUpperX96, sqrtPriceCurrentX96)
	}

	intermediate, err := mulDiv(upper, current, q96)
	if err != nil {
		return nil, err
	}
	liquidity, err := mulDiv(amount, intermediate, new(uint256.Int).Sub(upper, current))
	if err != nil {
		return nil, err
	}
	return checkLiquidity(liquidity)
}

// LiquidityFromAmount1 returns floor(amount1 / (sqrtCurrent - sqrtLower)).
func LiquidityFromAmount1(amount1, sqrtPriceLowerX96, sqrtPriceCurrentX96 *big.Int) (*big.Int, error) {
	amount, lower, current, err := toUint256(amount1, sqrtPriceLowerX96, sqrtPriceCurrentX96)
	if err != nil {
		return nil, err
	}
	if !current.Gt(lower) {
		return nil, fmt.Errorf("%w: current sqrt price %s <= lower %s", model.ErrDegenerateRange, sqrtPriceCurrentX96, sqrtPriceLowerX96)
	}

	liquidity, err := mulDiv(amount, q96, new(uint256.Int).Sub(current, lower))
	if err != nil {
		return nil, err
	}
	return checkLiquidity(liquidity)
}

// AmountsFromLiquidity returns the token amounts liquidity is worth over r at the pool's current price,
// rounded down. This is what a decrease pays out.
func AmountsFromLiquidity(liquidity *big.Int, r model.PriceRange, pool model.Pool) (*big.Int, *big.Int, error) {
	return amountsForLiquidity(liquidity, r, pool, false)
}

// MintAmounts is AmountsFromLiquidity rounded up, matching what the pool charges to add liquidity.
func MintAmounts(liquidity *big.Int, r model.PriceRange, pool model.Pool) (*big.Int, *big.Int, error) {
	return amountsForLiquidity(liquidity, r, pool, true)
}

func amountsForLiquidity(liquidity *big.Int, r model.PriceRange, pool model.Pool, roundUp bool) (*big.Int, *big.Int, error) {
	if r.TickLower >= r.TickUpper {
		return nil, nil, fmt.Errorf("%w: tick lower %d >= tick upper %d", model.ErrDegenerateRange, r.TickLower, r.TickUpper)
	}
	if liquidity == nil || liquidity.Sign() < 0 {
		return nil, nil, fmt.Errorf("liquidity must be non-negative")
	}
	if pool.SqrtPriceX96 == nil {
		return nil, nil, fmt.Errorf("pool %s has no sqrt price", pool.Address.Hex())
	}

	liq, overflow := uint256.FromBig(liquidity)
	if overflow || liq.Gt(maxUint128) {
		return nil, nil, fmt.Errorf("liquidity %s overflows uint128", liquidity)
	}
	current, overflow := uint256.FromBig(pool.SqrtPriceX96)
	if overflow {
		return nil, nil, fmt.Errorf("sqrt price %s overflows uint256", pool.SqrtPriceX96)
	}
	lower, err := tickmath.GetSqrtRatioAtTick(r.TickLower)
	if err != nil {
		return nil, nil, err
	}
	upper, err := tickmath.GetSqrtRatioAtTick(r.TickUpper)
	if err != nil {
		return nil, nil, err
	}

	amount0, amount1 := new(uint256.Int), new(uint256.Int)
	switch {
	case !current.Gt(lower):
		amount0, err = Amount0Delta(lower, upper, liq, roundUp)
	case !current.Lt(upper):
		amount1, err = Amount1Delta(lower, upper, liq, roundUp)
	default:
		amount0, err = Amount0Delta(current, upper, liq, roundUp)
		if err == nil {
			amount1, err = Amount1Delta(lower, current, liq, roundUp)
		}
	}
	if err != nil {
		return nil, nil, err
	}
	return amount0.ToBig(), amount1.ToBig(), nil
}

// Amount0Delta returns liquidity * (sqrtB - sqrtA) / (sqrtA * sqrtB) in token0 base units.
func Amount0Delta(sqrtRatioAX96, sqrtRatioBX96, liquidity *uint256.Int, roundUp bool) (*uint256.Int, error) {
	if sqrtRatioAX96.Gt(sqrtRatioBX96) {
		sqrtRatioAX96, sqrtRatioBX96 = sqrtRatioBX96, sqrtRatioAX96
	}
	if sqrtRatioAX96.IsZero() {
		return nil, fmt.Errorf("sqrt ratio must be positive")
	}

	numerator1 := new(uint256.Int).Lsh(liquidity, 96)
	numerator2 := new(uint256.Int).Sub(sqrtRatioBX96, sqrtRatioAX96)

	if roundUp {
		partial, err := mulDivRoundingUp(numerator1, numerator2, sqrtRatioBX96)
		if err != nil {
			return nil, err
		}
		return divRoundingUp(partial, sqrtRatioAX96), nil
	}

	partial, err := mulDiv(numerator1, numerator2, sqrtRatioBX96)
	if err != nil {
		return nil, err
	}
	return partial.Div(partial, sqrtRatioAX96), nil
}

// Amount1Delta returns liquidity * (sqrtB - sqrtA) in token1 base units.
func Amount1Delta(sqrtRatioAX96, sqrtRatioBX96, liquidity *uint256.Int, roundUp bool) (*uint256.Int, error) {
	if sqrtRatioAX96.Gt(sqrtRatioBX96) {
		sqrtRatioAX96, sqrtRatioBX96 = sqrtRatioBX96, sqrtRatioAX96
	}
	diff := new(uint256.Int).Sub(sqrtRatioBX96, sqrtRatioAX96)
	if roundUp {
		return mulDivRoundingUp(liquidity, diff, q96)
	}
	return mulDiv(liquidity, diff, q96)
}

func mulDiv(a, b, denominator *uint256.Int) (*uint256.Int, error) {
	if denominator.IsZero() {
		return nil, fmt.Errorf("mulDiv: division by zero")
	}
	result, overflow := new(uint256.Int).MulDivOverflow(a, b, denominator)
	if overflow {
		return nil, fmt.Errorf("mulDiv: result overflows uint256")
	}
	return result, nil
}

func mulDivRoundingUp(a, b, denominator *uint256.Int) (*uint256.Int, error) {
	result, err := mulDiv(a, b, denominator)
	if err != nil {
		return nil, err
	}
	if !new(uint256.Int).MulMod(a, b, denominator).IsZero() {
		if result.Eq(new(uint256.Int).SetAllOne()) {
			return nil, fmt.Errorf("mulDiv: result overflows uint256")
		}
		result.AddUint64(result, 1)
	}
	return result, nil
}

func divRoundingUp(x, y *uint256.Int) *uint256.Int {
	quotient := new(uint256.Int).Div(x, y)
	if !new(uint256.Int).Mod(x, y).IsZero() {
		quotient.AddUint64(quotient, 1)
	}
	return quotient
}

func toUint256(amount, sqrtA, sqrtB *big.Int) (*uint256.Int, *uint256.Int, *uint256.Int, error) {
	if amount == nil || sqrtA == nil || sqrtB == nil {
		return nil, nil, nil, fmt.Errorf("amount and sqrt prices are required")
	}
	if amount.Sign() < 0 || sqrtA.Sign() < 0 || sqrtB.Sign() < 0 {
		return nil, nil, nil, fmt.Errorf("amount and sqrt prices must be non-negative")
	}
	a, overflowA := uint256.FromBig(amount)
	x, overflowX := uint256.FromBig(sqrtA)
	y, overflowY := uint256.FromBig(sqrtB)
	if overflowA || overflowX || overflowY {
		return nil, nil, nil, fmt.Errorf("amount or sqrt price overflows uint256")
	}
	return a, x, y, nil
}

func checkLiquidity(liquidity *uint256.Int) (*big.Int, error) {
	if liquidity.Gt(maxUint128) {
		return nil, fmt.Errorf("liquidity %s overflows uint128", liquidity.ToBig())
	}
	return liquidity.ToBig(), nil
}
