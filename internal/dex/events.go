package dex

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"liquidityPilot/internal/model"
)

// DecodePositionEvents extracts position-manager events from receipt logs.
// Logs from other contracts, and unknown topics, are skipped.
func DecodePositionEvents(logs []*types.Log, manager common.Address) ([]model.PositionEvent, error) {
	parsed, err := PositionManagerABI()
	if err != nil {
		return nil, fmt.Errorf("parse position manager abi: %w", err)
	}

	topicToName := map[common.Hash]string{
		parsed.Events[model.EventIncreaseLiquidity].ID: model.EventIncreaseLiquidity,
		parsed.Events[model.EventDecreaseLiquidity].ID: model.EventDecreaseLiquidity,
		parsed.Events[model.EventCollect].ID:           model.EventCollect,
		parsed.Events[model.EventTransfer].ID:          model.EventTransfer,
	}

	var out []model.PositionEvent
	for _, log := range logs {
		if log == nil || log.Address != manager || len(log.Topics) == 0 {
			continue
		}
		name, ok := topicToName[log.Topics[0]]
		if !ok {
			continue
		}
		event, err := decodePositionEvent(parsed.Events[name], log)
		if err != nil {
			return nil, fmt.Errorf("decode %s (log %d): %w", name, log.Index, err)
		}
		out = append(out, event)
	}
	return out, nil
}

func decodePositionEvent(event abi.Event, log *types.Log) (model.PositionEvent, error) {
	indexedTopics, err := parseIndexedTopics(event, log.Topics)
	if err != nil {
		return model.PositionEvent{}, err
	}
	values, err := event.Inputs.NonIndexed().Unpack(log.Data)
	if err != nil {
		return model.PositionEvent{}, fmt.Errorf("unpack %s: %w", event.Name, err)
	}

	switch event.Name {
	case model.EventTransfer:
		var indexed struct {
			From    common.Address
			To      common.Address
			TokenId *big.Int
		}
		if err := abi.ParseTopics(&indexed, indexedArguments(event.Inputs), indexedTopics); err != nil {
			return model.PositionEvent{}, fmt.Errorf("parse topics: %w", err)
		}
		return model.PositionEvent{
			Name:    event.Name,
			TokenID: indexed.TokenId,
			From:    indexed.From,
			To:      indexed.To,
		}, nil
	case model.EventIncreaseLiquidity, model.EventDecreaseLiquidity:
		var indexed struct {
			TokenId *big.Int
		}
		if err := abi.ParseTopics(&indexed, indexedArguments(event.Inputs), indexedTopics); err != nil {
			return model.PositionEvent{}, fmt.Errorf("parse topics: %w", err)
		}
		if len(values) != 3 {
			return model.PositionEvent{}, fmt.Errorf("unexpected %s values: %d", event.Name, len(values))
		}
		amounts, err := bigInts(values)
		if err != nil {
			return model.PositionEvent{}, err
		}
		return model.PositionEvent{
			Name:      event.Name,
			TokenID:   indexed.TokenId,
			Liquidity: amounts[0],
			Amount0:   amounts[1],
			Amount1:   amounts[2],
		}, nil
	case model.EventCollect:
		var indexed struct {
			TokenId *big.Int
		}
		if err := abi.ParseTopics(&indexed, indexedArguments(event.Inputs), indexedTopics); err != nil {
			return model.PositionEvent{}, fmt.Errorf("parse topics: %w", err)
		}
		if len(values) != 3 {
			return model.PositionEvent{}, fmt.Errorf("unexpected collect values: %d", len(values))
		}
		recipient, err := asAddress(values[0])
		if err != nil {
			return model.PositionEvent{}, err
		}
		amounts, err := bigInts(values[1:])
		if err != nil {
			return model.PositionEvent{}, err
		}
		return model.PositionEvent{
			Name:      event.Name,
			TokenID:   indexed.TokenId,
			Recipient: recipient,
			Amount0:   amounts[0],
			Amount1:   amounts[1],
		}, nil
	default:
		return model.PositionEvent{}, fmt.Errorf("unsupported event name: %s", event.Name)
	}
}

func bigInts(values []interface{}) ([]*big.Int, error) {
	out := make([]*big.Int, 0, len(values))
	for _, v := range values {
		n, err := asBigInt(v)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

func parseIndexedTopics(event abi.Event, topics []common.Hash) ([]common.Hash, error) {
	indexedCount := len(indexedArguments(event.Inputs))
	if len(topics) != indexedCount+1 {
		return nil, fmt.Errorf("expected %d topics, got %d", indexedCount+1, len(topics))
	}
	return topics[1:], nil
}

func indexedArguments(args abi.Arguments) abi.Arguments {
	indexed := make(abi.Arguments, 0, len(args))
	for _, arg := range args {
		if arg.Indexed {
			indexed = append(indexed, arg)
		}
	}
	return indexed
}
