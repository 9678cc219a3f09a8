package model

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Global tick bounds shared by every pool.
const (
	MinTick int32 = -887272
	MaxTick int32 = 887272
)

// PriceRange is a position's tick interval.
type PriceRange struct {
	TickLower int32 `json:"tick_lower"`
	TickUpper int32 `json:"tick_upper"`
}

// Validate checks ordering, spacing alignment and global bounds.
func (r PriceRange) Validate(tickSpacing int32) error {
	if tickSpacing <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidSpacing, tickSpacing)
	}
	if r.TickLower >= r.TickUpper {
		return fmt.Errorf("%w: tick lower %d >= tick upper %d", ErrDegenerateRange, r.TickLower, r.TickUpper)
	}
	if r.TickLower < MinTick || r.TickUpper > MaxTick {
		return fmt.Errorf("%w: [%d, %d]", ErrTickOutOfRange, r.TickLower, r.TickUpper)
	}
	if r.TickLower%tickSpacing != 0 || r.TickUpper%tickSpacing != 0 {
		return fmt.Errorf("%w: [%d, %d] not aligned to spacing %d", ErrInvalidSpacing, r.TickLower, r.TickUpper, tickSpacing)
	}
	return nil
}

// Position is a ledger-tracked claim on a price range.
type Position struct {
	TokenID      *big.Int       `json:"token_id"`
	Owner        common.Address `json:"owner"`
	Pool         common.Address `json:"pool"`
	Token0       common.Address `json:"token0"`
	Token1       common.Address `json:"token1"`
	Fee          uint32         `json:"fee"`
	Range        PriceRange     `json:"range"`
	Liquidity    *big.Int       `json:"liquidity"`
	AmountsOwed0 *big.Int       `json:"amounts_owed0"`
	AmountsOwed1 *big.Int       `json:"amounts_owed1"`
}

// Status is the logical lifecycle state of a position.
type Status int

const (
	StatusUnopened Status = iota
	StatusOpen
	StatusClosed
)

func (s Status) String() string {
	switch s {
	case StatusUnopened:
		return "unopened"
	case StatusOpen:
		return "open"
	case StatusClosed:
		return "closed"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// MarshalText encodes the status by name.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a status name written by MarshalText.
func (s *Status) UnmarshalText(text []byte) error {
	switch string(text) {
	case "unopened":
		*s = StatusUnopened
	case "open":
		*s = StatusOpen
	case "closed":
		*s = StatusClosed
	default:
		return fmt.Errorf("unknown position status %q", text)
	}
	return nil
}
