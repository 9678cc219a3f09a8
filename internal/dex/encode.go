package dex

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"liquidityPilot/internal/model"
)

// Tuple field names follow the ABI component names in CamelCase.
type mintParams struct {
	Token0         common.Address
	Token1         common.Address
	Fee            *big.Int
	TickLower      *big.Int
	TickUpper      *big.Int
	Amount0Desired *big.Int
	Amount1Desired *big.Int
	Amount0Min     *big.Int
	Amount1Min     *big.Int
	Recipient      common.Address
	Deadline       *big.Int
}

type increaseLiquidityParams struct {
	TokenId        *big.Int
	Amount0Desired *big.Int
	Amount1Desired *big.Int
	Amount0Min     *big.Int
	Amount1Min     *big.Int
	Deadline       *big.Int
}

type decreaseLiquidityParams struct {
	TokenId    *big.Int
	Liquidity  *big.Int
	Amount0Min *big.Int
	Amount1Min *big.Int
	Deadline   *big.Int
}

type collectParams struct {
	TokenId    *big.Int
	Recipient  common.Address
	Amount0Max *big.Int
	Amount1Max *big.Int
}

// EncodeAction packs a single position-manager call.
func EncodeAction(req model.ActionRequest) ([]byte, error) {
	parsed, err := PositionManagerABI()
	if err != nil {
		return nil, fmt.Errorf("parse position manager abi: %w", err)
	}

	switch req.Kind {
	case model.ActionMint:
		return parsed.Pack("mint", mintParams{
			Token0:         req.Pool.Token0.Address,
			Token1:         req.Pool.Token1.Address,
			Fee:            new(big.Int).SetUint64(uint64(req.Pool.Fee)),
			TickLower:      big.NewInt(int64(req.Range.TickLower)),
			TickUpper:      big.NewInt(int64(req.Range.TickUpper)),
			Amount0Desired: orZero(req.Amount0Desired),
			Amount1Desired: orZero(req.Amount1Desired),
			Amount0Min:     orZero(req.Amount0Min),
			Amount1Min:     orZero(req.Amount1Min),
			Recipient:      req.Recipient,
			Deadline:       req.DeadlineUnix(),
		})
	case model.ActionIncrease:
		return parsed.Pack("increaseLiquidity", increaseLiquidityParams{
			TokenId:        orZero(req.TokenID),
			Amount0Desired: orZero(req.Amount0Desired),
			Amount1Desired: orZero(req.Amount1Desired),
			Amount0Min:     orZero(req.Amount0Min),
			Amount1Min:     orZero(req.Amount1Min),
			Deadline:       req.DeadlineUnix(),
		})
	case model.ActionDecrease:
		return parsed.Pack("decreaseLiquidity", decreaseLiquidityParams{
			TokenId:    orZero(req.TokenID),
			Liquidity:  orZero(req.Liquidity),
			Amount0Min: orZero(req.Amount0Min),
			Amount1Min: orZero(req.Amount1Min),
			Deadline:   req.DeadlineUnix(),
		})
	case model.ActionCollect:
		return parsed.Pack("collect", collectParams{
			TokenId:    orZero(req.TokenID),
			Recipient:  req.Recipient,
			Amount0Max: orMax(req.Amount0Max),
			Amount1Max: orMax(req.Amount1Max),
		})
	case model.ActionRefundNative:
		return parsed.Pack("refundETH")
	case model.ActionUnwrapNative:
		return parsed.Pack("unwrapWETH9", orZero(req.Minimum), req.Recipient)
	case model.ActionSweepToken:
		return parsed.Pack("sweepToken", req.Token, orZero(req.Minimum), req.Recipient)
	default:
		return nil, fmt.Errorf("encode: unsupported action kind %q", req.Kind)
	}
}

// EncodeMulticall packs every call in order into one multicall payload.
func EncodeMulticall(calls []model.ActionRequest) ([]byte, error) {
	if len(calls) == 0 {
		return nil, fmt.Errorf("encode multicall: no calls")
	}
	parsed, err := PositionManagerABI()
	if err != nil {
		return nil, fmt.Errorf("parse position manager abi: %w", err)
	}
	data := make([][]byte, 0, len(calls))
	for i, call := range calls {
		encoded, err := EncodeAction(call)
		if err != nil {
			return nil, fmt.Errorf("call %d (%s): %w", i, call.Kind, err)
		}
		data = append(data, encoded)
	}
	return parsed.Pack("multicall", data)
}

func orZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}

func orMax(v *big.Int) *big.Int {
	if v == nil {
		return model.MaxUint128
	}
	return v
}
