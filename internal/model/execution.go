package model

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Execution outcomes recorded in the journal.
const (
	ExecutionSucceeded = "succeeded"
	ExecutionReverted  = "reverted"
	ExecutionFailed    = "failed"
	ExecutionDryRun    = "dry_run"
)

// ExecutionRecord is one journal entry describing a submitted (or planned) batch.
type ExecutionRecord struct {
	Command    string             `json:"command"`
	Account    common.Address     `json:"account"`
	Status     string             `json:"status"`
	Error      string             `json:"error,omitempty"`
	Requests   []ActionRequest    `json:"requests"`
	Result     *TransactionResult `json:"result,omitempty"`
	RecordedAt time.Time          `json:"recorded_at"`
}
