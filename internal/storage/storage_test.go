package storage

import (
	"context"
	"errors"
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"liquidityPilot/internal/model"
)

func sampleRecord(status string) model.ExecutionRecord {
	return model.ExecutionRecord{
		Command: "decrease",
		Account: common.HexToAddress("0x5555555555555555555555555555555555555555"),
		Status:  status,
		Requests: []model.ActionRequest{
			{Kind: model.ActionDecrease, TokenID: big.NewInt(9), Liquidity: big.NewInt(1000)},
			{Kind: model.ActionCollect, TokenID: big.NewInt(9), Amount0Max: model.MaxUint128, Amount1Max: model.MaxUint128},
		},
		Result: &model.TransactionResult{
			TxHash:      common.HexToHash("0x01"),
			BlockNumber: 42,
			Transitions: []model.Transition{
				{TokenID: big.NewInt(9), Action: model.ActionDecrease, From: model.StatusOpen, To: model.StatusOpen},
			},
		},
		RecordedAt: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestJsonlJournalAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "executions.jsonl")
	journal := NewJsonlJournal(path)

	require.NoError(t, journal.Record(context.Background(), sampleRecord(model.ExecutionSucceeded)))
	require.NoError(t, journal.Record(context.Background(), sampleRecord(model.ExecutionReverted)))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], `"status":"succeeded"`)
	assert.Contains(t, lines[0], `"from":"open"`)

	records, err := ReadJsonl(path)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, model.ExecutionReverted, records[1].Status)
	assert.Equal(t, model.MaxUint128.String(), records[0].Requests[1].Amount0Max.String())
	assert.Equal(t, model.StatusOpen, records[0].Result.Transitions[0].To)
	assert.Equal(t, uint64(42), records[0].Result.BlockNumber)
}

func TestJsonlJournalExecutionStatus(t *testing.T) {
	path := filepath.Join(t.TempDir(), "executions.jsonl")
	journal := NewJsonlJournal(path)
	ctx := context.Background()

	_, found, err := journal.ExecutionStatus(ctx, "0x01")
	require.NoError(t, err)
	assert.False(t, found, "missing file")

	dryRun := sampleRecord(model.ExecutionDryRun)
	dryRun.Result = nil
	require.NoError(t, journal.Record(ctx, dryRun))
	require.NoError(t, journal.Record(ctx, sampleRecord(model.ExecutionFailed)))
	require.NoError(t, journal.Record(ctx, sampleRecord(model.ExecutionSucceeded)))

	var lookup StatusLookup = journal
	status, found, err := lookup.ExecutionStatus(ctx, common.HexToHash("0x01").Hex())
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, model.ExecutionSucceeded, status)

	_, found, err = journal.ExecutionStatus(ctx, "0x02")
	require.NoError(t, err)
	assert.False(t, found)

	_, _, err = journal.ExecutionStatus(ctx, "")
	assert.Error(t, err)

	records, err := ReadJsonl(path)
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, model.ExecutionDryRun, records[0].Status)
	assert.Nil(t, records[0].Result)
}

type failingJournal struct{ err error }

func (f failingJournal) Record(context.Context, model.ExecutionRecord) error { return f.err }

func TestMultiJournalJoinsErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "executions.jsonl")
	boom := errors.New("db down")
	multi := MultiJournal{NewJsonlJournal(path), nil, failingJournal{err: boom}}

	err := multi.Record(context.Background(), sampleRecord(model.ExecutionFailed))
	assert.ErrorIs(t, err, boom)

	records, readErr := ReadJsonl(path)
	require.NoError(t, readErr)
	assert.Len(t, records, 1)
}
