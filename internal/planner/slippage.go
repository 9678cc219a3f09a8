package planner

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"

	"liquidityPilot/internal/model"
)

var hundred = decimal.NewFromInt(100)

func checkSlippage(slippage decimal.Decimal) error {
	if slippage.IsNegative() || slippage.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return fmt.Errorf("%w: %s must be in [0, 1)", model.ErrInvalidSlippage, slippage)
	}
	return nil
}

// applySlippage returns floor(amount * (1 - slippage)).
func applySlippage(amount *big.Int, slippage decimal.Decimal) *big.Int {
	if amount == nil || amount.Sign() <= 0 {
		return new(big.Int)
	}
	keep := decimal.NewFromInt(1).Sub(slippage)
	return decimal.NewFromBigInt(amount, 0).Mul(keep).Floor().BigInt()
}

// removalLiquidity returns existing * percentage / 100 truncated, and exactly existing at 100%.
func removalLiquidity(existing *big.Int, percentage decimal.Decimal) (*big.Int, error) {
	if percentage.Sign() <= 0 || percentage.GreaterThan(hundred) {
		return nil, fmt.Errorf("%w: %s must be in (0, 100]", model.ErrInvalidPercentage, percentage)
	}
	if percentage.Equal(hundred) {
		return new(big.Int).Set(existing), nil
	}
	return decimal.NewFromBigInt(existing, 0).Mul(percentage).Shift(-2).Truncate(0).BigInt(), nil
}
