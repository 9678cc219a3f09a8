package model

import (
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// ActionKind identifies one call inside a batch.
type ActionKind string

const (
	ActionMint     ActionKind = "mint"
	ActionIncrease ActionKind = "increase"
	ActionDecrease ActionKind = "decrease"
	ActionCollect  ActionKind = "collect"

	// Appended by the orchestrator only.
	ActionRefundNative ActionKind = "refund_native"
	ActionUnwrapNative ActionKind = "unwrap_native"
	ActionSweepToken   ActionKind = "sweep_token"
)

// MaxUint128 is the collect bound meaning "everything owed".
var MaxUint128 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 128), big.NewInt(1))

// ActionRequest is a fully specified position-manager call. Fields that do not apply to Kind are left nil/zero.
type ActionRequest struct {
	Kind    ActionKind     `json:"kind"`
	Pool    Pool           `json:"pool"`
	TokenID *big.Int       `json:"token_id,omitempty"`
	Range   PriceRange     `json:"range"`
	Token   common.Address `json:"token,omitempty"`

	Liquidity      *big.Int `json:"liquidity,omitempty"`
	Amount0Desired *big.Int `json:"amount0_desired,omitempty"`
	Amount1Desired *big.Int `json:"amount1_desired,omitempty"`
	Amount0Min     *big.Int `json:"amount0_min,omitempty"`
	Amount1Min     *big.Int `json:"amount1_min,omitempty"`
	Amount0Max     *big.Int `json:"amount0_max,omitempty"`
	Amount1Max     *big.Int `json:"amount1_max,omitempty"`
	// Minimum bounds UnwrapNative and SweepToken payouts.
	Minimum *big.Int `json:"minimum,omitempty"`

	Recipient common.Address `json:"recipient"`
	Deadline  time.Time      `json:"deadline"`
}

// DeadlineUnix returns the deadline as the uint256 seconds value used on-chain.
func (r ActionRequest) DeadlineUnix() *big.Int {
	return big.NewInt(r.Deadline.Unix())
}

// Validate checks the invariants a request must hold at submission time.
func (r ActionRequest) Validate(now time.Time) error {
	switch r.Kind {
	case ActionMint, ActionIncrease, ActionDecrease:
		if !r.Deadline.After(now) {
			return fmt.Errorf("%s: %w (deadline %s)", r.Kind, ErrDeadlineExpired, r.Deadline.UTC().Format(time.RFC3339))
		}
	case ActionCollect:
		// collect takes no on-chain deadline; a planned one still bounds submission.
		if !r.Deadline.IsZero() && !r.Deadline.After(now) {
			return fmt.Errorf("%s: %w (deadline %s)", r.Kind, ErrDeadlineExpired, r.Deadline.UTC().Format(time.RFC3339))
		}
	}

	switch r.Kind {
	case ActionMint:
		if err := r.Range.Validate(r.Pool.TickSpacing); err != nil {
			return fmt.Errorf("mint: %w", err)
		}
		if r.Recipient == (common.Address{}) {
			return fmt.Errorf("mint: recipient is required")
		}
		return checkMins(r)
	case ActionIncrease:
		if r.TokenID == nil {
			return fmt.Errorf("increase: token id is required")
		}
		return checkMins(r)
	case ActionDecrease:
		if r.TokenID == nil {
			return fmt.Errorf("decrease: token id is required")
		}
		if r.Liquidity == nil || r.Liquidity.Sign() <= 0 {
			return fmt.Errorf("decrease: %w: liquidity must be positive", ErrInsufficientInput)
		}
		return checkMins(r)
	case ActionCollect:
		if r.TokenID == nil {
			return fmt.Errorf("collect: token id is required")
		}
		return nil
	case ActionRefundNative, ActionUnwrapNative, ActionSweepToken:
		return nil
	default:
		return fmt.Errorf("unsupported action kind %q", r.Kind)
	}
}

func checkMins(r ActionRequest) error {
	if !minWithin(r.Amount0Min, r.Amount0Desired) || !minWithin(r.Amount1Min, r.Amount1Desired) {
		return fmt.Errorf("%s: minimum amounts must not exceed desired amounts", r.Kind)
	}
	return nil
}

func minWithin(min, desired *big.Int) bool {
	if min == nil {
		return true
	}
	if desired == nil {
		return min.Sign() == 0
	}
	return min.Sign() >= 0 && min.Cmp(desired) <= 0
}
