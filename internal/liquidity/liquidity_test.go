package liquidity

import (
	"math/big"
	"math/rand"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"liquidityPilot/internal/model"
	"liquidityPilot/internal/tickmath"
)

// Range [1800, 2200] snapped to spacing 10, 18/18 decimals.
var testRange = model.PriceRange{TickLower: 74960, TickUpper: 76970}

func bigFromString(t *testing.T, s string) *big.Int {
	t.Helper()
	v, ok := new(big.Int).SetString(s, 10)
	require.True(t, ok, s)
	return v
}

func sqrtAt(t *testing.T, tick int32) *big.Int {
	t.Helper()
	v, err := tickmath.SqrtRatioAtTick(tick)
	require.NoError(t, err)
	return v
}

func poolAt(t *testing.T, sqrtPrice string) model.Pool {
	return model.Pool{
		Token0:       model.Token{Decimals: 18, Symbol: "T0"},
		Token1:       model.Token{Decimals: 18, Symbol: "T1"},
		Fee:          500,
		TickSpacing:  10,
		SqrtPriceX96: bigFromString(t, sqrtPrice),
		Liquidity:    big.NewInt(0),
	}
}

const (
	sqrtPrice1700 = "3266660825699135434887405499641"
	sqrtPrice2000 = "3543191142285914205922034323214"
	sqrtPrice2300 = "3799649193200520420489001079519"
	oneEther      = "1000000000000000000"
)

func TestLiquidityFromAmount0Scenario(t *testing.T) {
	pool := poolAt(t, sqrtPrice2000)
	liq, err := LiquidityFromAmount0(bigFromString(t, oneEther), sqrtAt(t, testRange.TickUpper), pool.SqrtPriceX96)
	require.NoError(t, err)
	assert.Equal(t, "957030517345905702512", liq.String())

	amount0, amount1, err := MintAmounts(liq, testRange, pool)
	require.NoError(t, err)
	assert.Equal(t, oneEther, amount0.String())
	assert.Equal(t, "2194648967768993065487", amount1.String())

	amount0, amount1, err = AmountsFromLiquidity(liq, testRange, pool)
	require.NoError(t, err)
	assert.Equal(t, "999999999999999999", amount0.String())
	assert.Equal(t, "2194648967768993065486", amount1.String())
}

func TestLiquidityIsSameFromEitherSide(t *testing.T) {
	pool := poolAt(t, sqrtPrice2000)
	fromAmount0, err := LiquidityFromAmount0(bigFromString(t, oneEther), sqrtAt(t, testRange.TickUpper), pool.SqrtPriceX96)
	require.NoError(t, err)

	_, amount1, err := MintAmounts(fromAmount0, testRange, pool)
	require.NoError(t, err)
	require.Positive(t, amount1.Sign())

	fromAmount1, err := LiquidityFromAmount1(amount1, sqrtAt(t, testRange.TickLower), pool.SqrtPriceX96)
	require.NoError(t, err)
	assert.Equal(t, fromAmount0.String(), fromAmount1.String())
}

func TestAmount0RoundTripWithinOneUnit(t *testing.T) {
	pool := poolAt(t, sqrtPrice2000)
	upper := sqrtAt(t, testRange.TickUpper)
	rng := rand.New(rand.NewSource(11))
	scale := big.NewInt(1_000_000)

	for i := 0; i < 500; i++ {
		amount0 := new(big.Int).Mul(big.NewInt(rng.Int63n(1<<62)+1), scale)
		liq, err := LiquidityFromAmount0(amount0, upper, pool.SqrtPriceX96)
		require.NoError(t, err)

		back, _, err := AmountsFromLiquidity(liq, testRange, pool)
		require.NoError(t, err)
		diff := new(big.Int).Sub(amount0, back)
		assert.True(t, diff.Sign() >= 0 && diff.Cmp(big.NewInt(1)) <= 0, "amount0 %s came back as %s", amount0, back)

		charged, _, err := MintAmounts(liq, testRange, pool)
		require.NoError(t, err)
		assert.True(t, charged.Cmp(amount0) <= 0, "mint charges %s for %s", charged, amount0)
	}
}

func TestAmountsFromLiquidityRegimes(t *testing.T) {
	liq := bigFromString(t, "957030517345905702512")

	above := poolAt(t, sqrtPrice2300)
	amount0, amount1, err := AmountsFromLiquidity(liq, testRange, above)
	require.NoError(t, err)
	assert.Zero(t, amount0.Sign())
	assert.Positive(t, amount1.Sign())

	below := poolAt(t, sqrtPrice1700)
	amount0, amount1, err = AmountsFromLiquidity(liq, testRange, below)
	require.NoError(t, err)
	assert.Positive(t, amount0.Sign())
	assert.Zero(t, amount1.Sign())

	inside := poolAt(t, sqrtPrice2000)
	amount0, amount1, err = AmountsFromLiquidity(liq, testRange, inside)
	require.NoError(t, err)
	assert.Positive(t, amount0.Sign())
	assert.Positive(t, amount1.Sign())
}

func TestAmountsFromLiquidityAtBounds(t *testing.T) {
	liq := big.NewInt(1_000_000_000_000)

	atLower := poolAt(t, sqrtAt(t, testRange.TickLower).String())
	amount0, amount1, err := AmountsFromLiquidity(liq, testRange, atLower)
	require.NoError(t, err)
	assert.Positive(t, amount0.Sign())
	assert.Zero(t, amount1.Sign())

	atUpper := poolAt(t, sqrtAt(t, testRange.TickUpper).String())
	amount0, amount1, err = AmountsFromLiquidity(liq, testRange, atUpper)
	require.NoError(t, err)
	assert.Zero(t, amount0.Sign())
	assert.Positive(t, amount1.Sign())
}

func TestCompositionShiftsTowardToken1AsPriceRises(t *testing.T) {
	liq := bigFromString(t, "957030517345905702512")
	var prev0, prev1 *big.Int
	for tick := testRange.TickLower + 10; tick < testRange.TickUpper; tick += 100 {
		pool := poolAt(t, sqrtAt(t, tick).String())
		amount0, amount1, err := AmountsFromLiquidity(liq, testRange, pool)
		require.NoError(t, err)
		if prev0 != nil {
			assert.Equal(t, -1, amount0.Cmp(prev0), "amount0 must fall at tick %d", tick)
			assert.Equal(t, 1, amount1.Cmp(prev1), "amount1 must rise at tick %d", tick)
			// amount0/amount1 strictly decreases.
			lhs := new(big.Int).Mul(amount0, prev1)
			rhs := new(big.Int).Mul(prev0, amount1)
			assert.Equal(t, -1, lhs.Cmp(rhs), "ratio at tick %d", tick)
		}
		prev0, prev1 = amount0, amount1
	}
}

func TestDegenerateRange(t *testing.T) {
	current := bigFromString(t, sqrtPrice2000)
	amount := bigFromString(t, oneEther)

	_, err := LiquidityFromAmount0(amount, current, current)
	assert.ErrorIs(t, err, model.ErrDegenerateRange)
	_, err = LiquidityFromAmount0(amount, bigFromString(t, sqrtPrice1700), current)
	assert.ErrorIs(t, err, model.ErrDegenerateRange)

	_, err = LiquidityFromAmount1(amount, current, current)
	assert.ErrorIs(t, err, model.ErrDegenerateRange)
	_, err = LiquidityFromAmount1(amount, bigFromString(t, sqrtPrice2300), current)
	assert.ErrorIs(t, err, model.ErrDegenerateRange)

	_, _, err = AmountsFromLiquidity(big.NewInt(1), model.PriceRange{TickLower: 100, TickUpper: 100}, poolAt(t, sqrtPrice2000))
	assert.ErrorIs(t, err, model.ErrDegenerateRange)
}

func TestLiquidityOverflow(t *testing.T) {
	huge := new(big.Int).Lsh(big.NewInt(1), 200)
	_, err := LiquidityFromAmount0(huge, sqrtAt(t, testRange.TickUpper), bigFromString(t, sqrtPrice2000))
	require.Error(t, err)
	assert.NotErrorIs(t, err, model.ErrDegenerateRange)

	_, _, err = AmountsFromLiquidity(new(big.Int).Lsh(big.NewInt(1), 128), testRange, poolAt(t, sqrtPrice2000))
	assert.Error(t, err)
}

func TestToRawAndFromRaw(t *testing.T) {
	raw, err := ToRaw(decimal.RequireFromString("1.5"), 6)
	require.NoError(t, err)
	assert.Equal(t, "1500000", raw.String())

	raw, err = ToRaw(decimal.RequireFromString("0.1234567"), 6)
	require.NoError(t, err)
	assert.Equal(t, "123456", raw.String())

	raw, err = ToRaw(decimal.NewFromInt(1), 18)
	require.NoError(t, err)
	assert.Equal(t, oneEther, raw.String())

	_, err = ToRaw(decimal.NewFromInt(-1), 18)
	assert.Error(t, err)

	assert.True(t, FromRaw(big.NewInt(1500000), 6).Equal(decimal.RequireFromString("1.5")))
	assert.True(t, FromRaw(nil, 6).IsZero())
}
