package model

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Token describes one leg of a pool.
type Token struct {
	Address  common.Address `json:"address"`
	Decimals uint8          `json:"decimals"`
	Symbol   string         `json:"symbol,omitempty"`
	// WrappedNative marks the chain's native currency wrapped as an ERC20.
	WrappedNative bool `json:"wrapped_native,omitempty"`
}

// Pool is a per-block snapshot of a concentrated-liquidity pool.
type Pool struct {
	Address      common.Address `json:"address"`
	Token0       Token          `json:"token0"`
	Token1       Token          `json:"token1"`
	Fee          uint32         `json:"fee"`
	TickSpacing  int32          `json:"tick_spacing"`
	Tick         int32          `json:"tick"`
	SqrtPriceX96 *big.Int       `json:"sqrt_price_x96"`
	Liquidity    *big.Int       `json:"liquidity"`
	BlockNumber  uint64         `json:"block_number"`
	ObservedAt   time.Time      `json:"observed_at"`
}

// TokenAt returns token0 for index 0 and token1 otherwise.
func (p Pool) TokenAt(index int) Token {
	if index == 0 {
		return p.Token0
	}
	return p.Token1
}

// NativeIndex returns the index of the wrapped-native leg, or -1 when neither leg is native.
func (p Pool) NativeIndex() int {
	switch {
	case p.Token0.WrappedNative:
		return 0
	case p.Token1.WrappedNative:
		return 1
	default:
		return -1
	}
}

// Age reports how old the snapshot is relative to now.
func (p Pool) Age(now time.Time) time.Duration {
	if p.ObservedAt.IsZero() {
		return 0
	}
	return now.Sub(p.ObservedAt)
}
