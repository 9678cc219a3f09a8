package model

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// PositionEvent is a decoded position-manager event from a transaction receipt.
type PositionEvent struct {
	Name      string         `json:"name"`
	TokenID   *big.Int       `json:"token_id"`
	Liquidity *big.Int       `json:"liquidity,omitempty"`
	Amount0   *big.Int       `json:"amount0,omitempty"`
	Amount1   *big.Int       `json:"amount1,omitempty"`
	Recipient common.Address `json:"recipient,omitempty"`
	From      common.Address `json:"from,omitempty"`
	To        common.Address `json:"to,omitempty"`
}

// Event names emitted by the position manager.
const (
	EventIncreaseLiquidity = "IncreaseLiquidity"
	EventDecreaseLiquidity = "DecreaseLiquidity"
	EventCollect           = "Collect"
	EventTransfer          = "Transfer"
)

// TransactionResult is what the gateway reports for a submitted batch.
type TransactionResult struct {
	TxHash      common.Hash     `json:"tx_hash"`
	BlockNumber uint64          `json:"block_number"`
	GasUsed     uint64          `json:"gas_used"`
	GasCost     *big.Int        `json:"gas_cost,omitempty"`
	NativeValue *big.Int        `json:"native_value,omitempty"`
	Events      []PositionEvent `json:"events"`
	Transitions []Transition    `json:"transitions,omitempty"`
}

// Transition records a position status change applied after a successful batch.
type Transition struct {
	TokenID *big.Int   `json:"token_id"`
	Action  ActionKind `json:"action"`
	From    Status     `json:"from"`
	To      Status     `json:"to"`
}

// MintedTokenIDs returns the ids of positions created in this transaction, in log order.
func (r TransactionResult) MintedTokenIDs() []*big.Int {
	var ids []*big.Int
	for _, ev := range r.Events {
		if ev.Name == EventTransfer && ev.From == (common.Address{}) && ev.TokenID != nil {
			ids = append(ids, ev.TokenID)
		}
	}
	return ids
}
