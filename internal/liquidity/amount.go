package liquidity

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

// ToRaw scales a human token amount to base units, truncating digits beyond the token's precision.
func ToRaw(amount decimal.Decimal, decimals uint8) (*big.Int, error) {
	if amount.IsNegative() {
		return nil, fmt.Errorf("amount %s must not be negative", amount)
	}
	return amount.Shift(int32(decimals)).Truncate(0).BigInt(), nil
}

// FromRaw converts base units back to a human token amount.
func FromRaw(raw *big.Int, decimals uint8) decimal.Decimal {
	if raw == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(raw, -int32(decimals))
}
