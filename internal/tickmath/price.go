package tickmath

import (
	"fmt"
	"math/big"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"

	"liquidityPilot/internal/model"
)

// PriceDigits is the number of significant digits kept when a fixed-point price is rendered as a decimal.
const PriceDigits int32 = 40

var q192 = new(big.Int).Lsh(big.NewInt(1), 192)

// PriceToTick returns the greatest tick whose price does not exceed price.
// price is the human price of token0 quoted in token1.
func PriceToTick(price decimal.Decimal, decimals0, decimals1 uint8) (int32, error) {
	sqrtPriceX96, err := PriceToSqrtPriceX96(price, decimals0, decimals1)
	if err != nil {
		return 0, err
	}
	sqrt, overflow := uint256.FromBig(sqrtPriceX96)
	if overflow || sqrt.Lt(MinSqrtRatio) || !sqrt.Lt(MaxSqrtRatio) {
		return 0, fmt.Errorf("%w: %s is outside the tick range", model.ErrInvalidPrice, price.String())
	}
	return GetTickAtSqrtRatio(sqrt)
}

// TickToPrice returns 1.0001^tick as a human price of token0 quoted in token1.
// The result is rounded up, so PriceToTick(TickToPrice(tick)) == tick.
func TickToPrice(tick int32, decimals0, decimals1 uint8) (decimal.Decimal, error) {
	sqrtRatio, err := SqrtRatioAtTick(tick)
	if err != nil {
		return decimal.Zero, err
	}
	return SqrtPriceX96ToPrice(sqrtRatio, decimals0, decimals1), nil
}

// PriceToSqrtPriceX96 returns floor(sqrt(rawPrice) * 2^96) where rawPrice is the price in base units.
func PriceToSqrtPriceX96(price decimal.Decimal, decimals0, decimals1 uint8) (*big.Int, error) {
	if price.Sign() <= 0 {
		return nil, fmt.Errorf("%w: %s", model.ErrInvalidPrice, price.String())
	}

	num := new(big.Int).Set(price.Coefficient())
	den := big.NewInt(1)
	exp := int64(price.Exponent()) + int64(decimals1) - int64(decimals0)
	if exp >= 0 {
		num.Mul(num, pow10(exp))
	} else {
		den = pow10(-exp)
	}

	num.Lsh(num, 192)
	num.Quo(num, den)
	return num.Sqrt(num), nil
}

// SqrtPriceX96ToPrice converts a Q64.96 sqrt price to a human price of token0 quoted in token1.
func SqrtPriceX96ToPrice(sqrtPriceX96 *big.Int, decimals0, decimals1 uint8) decimal.Decimal {
	num := new(big.Int).Mul(sqrtPriceX96, sqrtPriceX96)
	den := new(big.Int).Set(q192)
	if decimals0 >= decimals1 {
		num.Mul(num, pow10(int64(decimals0-decimals1)))
	} else {
		den.Mul(den, pow10(int64(decimals1-decimals0)))
	}
	return quotient(num, den, PriceDigits)
}

// NearestUsableTick rounds tick to the closest multiple of tickSpacing, halves rounding up,
// and keeps the result inside [MinTick, MaxTick].
func NearestUsableTick(tick, tickSpacing int32) (int32, error) {
	if tickSpacing <= 0 {
		return 0, fmt.Errorf("%w: %d", model.ErrInvalidSpacing, tickSpacing)
	}
	if tick < MinTick || tick > MaxTick {
		return 0, fmt.Errorf("%w: %d", model.ErrTickOutOfRange, tick)
	}

	spacing := int64(tickSpacing)
	rounded := floorDiv(2*int64(tick)+spacing, 2*spacing) * spacing
	if rounded < int64(MinTick) {
		rounded += spacing
	} else if rounded > int64(MaxTick) {
		rounded -= spacing
	}
	return int32(rounded), nil
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

func pow10(n int64) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(n), nil)
}

// quotient divides positive num by den keeping digits significant digits, rounding up at the last
// kept digit. A rounded-up price never falls below its tick, so PriceToTick maps it back to the same tick.
func quotient(num, den *big.Int, digits int32) decimal.Decimal {
	if num.Sign() == 0 {
		return decimal.Zero
	}
	places := digits + int32(len(den.String())) - int32(len(num.String()))
	if places < 0 {
		places = 0
	}
	scaled := new(big.Int).Mul(num, pow10(int64(places)))
	q, r := new(big.Int).QuoRem(scaled, den, new(big.Int))
	if r.Sign() != 0 {
		q.Add(q, big.NewInt(1))
	}
	return decimal.NewFromBigInt(q, -places)
}
