package dex

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"liquidityPilot/internal/model"
)

// FetchPosition reads positions(tokenId) and ownerOf(tokenId) at block.
// The returned Position has no Pool address; callers derive it from the factory.
func FetchPosition(ctx context.Context, caller ContractCaller, manager common.Address, tokenID *big.Int, block *big.Int) (model.Position, error) {
	if tokenID == nil {
		return model.Position{}, fmt.Errorf("token id is required")
	}
	parsed, err := PositionManagerABI()
	if err != nil {
		return model.Position{}, fmt.Errorf("parse position manager abi: %w", err)
	}

	values, err := callMethod(ctx, caller, manager, parsed, "positions", block, tokenID)
	if err != nil {
		return model.Position{}, err
	}
	if len(values) != 12 {
		return model.Position{}, fmt.Errorf("unexpected positions values: %d", len(values))
	}

	token0, err := asAddress(values[2])
	if err != nil {
		return model.Position{}, fmt.Errorf("token0: %w", err)
	}
	token1, err := asAddress(values[3])
	if err != nil {
		return model.Position{}, fmt.Errorf("token1: %w", err)
	}
	fee, err := asBigInt(values[4])
	if err != nil {
		return model.Position{}, fmt.Errorf("fee: %w", err)
	}
	lowerInt, err := asBigInt(values[5])
	if err != nil {
		return model.Position{}, fmt.Errorf("tick lower: %w", err)
	}
	lower, err := int24FromBig(lowerInt)
	if err != nil {
		return model.Position{}, fmt.Errorf("tick lower: %w", err)
	}
	upperInt, err := asBigInt(values[6])
	if err != nil {
		return model.Position{}, fmt.Errorf("tick upper: %w", err)
	}
	upper, err := int24FromBig(upperInt)
	if err != nil {
		return model.Position{}, fmt.Errorf("tick upper: %w", err)
	}
	liquidity, err := asBigInt(values[7])
	if err != nil {
		return model.Position{}, fmt.Errorf("liquidity: %w", err)
	}
	owed0, err := asBigInt(values[10])
	if err != nil {
		return model.Position{}, fmt.Errorf("tokens owed0: %w", err)
	}
	owed1, err := asBigInt(values[11])
	if err != nil {
		return model.Position{}, fmt.Errorf("tokens owed1: %w", err)
	}

	values, err = callMethod(ctx, caller, manager, parsed, "ownerOf", block, tokenID)
	if err != nil {
		return model.Position{}, err
	}
	owner, err := asAddress(values[0])
	if err != nil {
		return model.Position{}, fmt.Errorf("owner: %w", err)
	}

	return model.Position{
		TokenID:      new(big.Int).Set(tokenID),
		Owner:        owner,
		Token0:       token0,
		Token1:       token1,
		Fee:          uint32(fee.Uint64()),
		Range:        model.PriceRange{TickLower: lower, TickUpper: upper},
		Liquidity:    liquidity,
		AmountsOwed0: owed0,
		AmountsOwed1: owed1,
	}, nil
}

// FetchTokenIDs enumerates the position NFTs held by owner.
func FetchTokenIDs(ctx context.Context, caller ContractCaller, manager, owner common.Address, block *big.Int) ([]*big.Int, error) {
	parsed, err := PositionManagerABI()
	if err != nil {
		return nil, fmt.Errorf("parse position manager abi: %w", err)
	}
	values, err := callMethod(ctx, caller, manager, parsed, "balanceOf", block, owner)
	if err != nil {
		return nil, err
	}
	balance, err := asBigInt(values[0])
	if err != nil {
		return nil, fmt.Errorf("balance: %w", err)
	}
	if !balance.IsUint64() {
		return nil, fmt.Errorf("balance overflow: %s", balance.String())
	}

	count := balance.Uint64()
	ids := make([]*big.Int, 0, count)
	for i := uint64(0); i < count; i++ {
		values, err := callMethod(ctx, caller, manager, parsed, "tokenOfOwnerByIndex", block, owner, new(big.Int).SetUint64(i))
		if err != nil {
			return nil, err
		}
		id, err := asBigInt(values[0])
		if err != nil {
			return nil, fmt.Errorf("token id %d: %w", i, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// ClaimableFees simulates collect(tokenId, owner, max, max) from the owner and
// returns what a collect would pay out right now.
func ClaimableFees(ctx context.Context, caller ContractCaller, manager, owner common.Address, tokenID *big.Int) (*big.Int, *big.Int, error) {
	parsed, err := PositionManagerABI()
	if err != nil {
		return nil, nil, fmt.Errorf("parse position manager abi: %w", err)
	}
	params := collectParams{
		TokenId:    tokenID,
		Recipient:  owner,
		Amount0Max: model.MaxUint128,
		Amount1Max: model.MaxUint128,
	}
	values, err := callMethodFrom(ctx, caller, owner, manager, parsed, "collect", nil, params)
	if err != nil {
		return nil, nil, err
	}
	if len(values) != 2 {
		return nil, nil, fmt.Errorf("unexpected collect values: %d", len(values))
	}
	amounts, err := bigInts(values)
	if err != nil {
		return nil, nil, err
	}
	return amounts[0], amounts[1], nil
}
