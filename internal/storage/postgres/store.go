package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"liquidityPilot/internal/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS executions (
	id BIGSERIAL PRIMARY KEY,
	command TEXT NOT NULL,
	account TEXT NOT NULL,
	status TEXT NOT NULL,
	error TEXT NOT NULL DEFAULT '',
	tx_hash TEXT,
	block_number BIGINT,
	gas_used BIGINT,
	requests JSONB NOT NULL,
	recorded_at TIMESTAMPTZ NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS executions_tx_hash_idx ON executions (tx_hash) WHERE tx_hash IS NOT NULL;
CREATE TABLE IF NOT EXISTS execution_events (
	tx_hash TEXT NOT NULL,
	event_index INT NOT NULL,
	name TEXT NOT NULL,
	token_id NUMERIC(78, 0),
	liquidity NUMERIC(78, 0),
	amount0 NUMERIC(78, 0),
	amount1 NUMERIC(78, 0),
	PRIMARY KEY (tx_hash, event_index)
);
`

// Store provides Postgres persistence for the execution journal.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// EnsureSchema creates the journal tables when missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, schema)
	return err
}

// Record inserts an execution and its decoded events in one batch.
func (s *Store) Record(ctx context.Context, record model.ExecutionRecord) error {
	requests, err := json.Marshal(record.Requests)
	if err != nil {
		return fmt.Errorf("marshal requests: %w", err)
	}

	var (
		txHash      *string
		blockNumber *int64
		gasUsed     *int64
		events      []model.PositionEvent
	)
	if record.Result != nil && record.Result.TxHash != (common.Hash{}) {
		hash := record.Result.TxHash.Hex()
		block := int64(record.Result.BlockNumber)
		gas := int64(record.Result.GasUsed)
		txHash, blockNumber, gasUsed = &hash, &block, &gas
		events = record.Result.Events
	}

	batch := &pgx.Batch{}
	batch.Queue(`
		INSERT INTO executions (
			command, account, status, error, tx_hash, block_number, gas_used, requests, recorded_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (tx_hash) WHERE tx_hash IS NOT NULL
		DO UPDATE SET
			status = EXCLUDED.status,
			error = EXCLUDED.error,
			block_number = EXCLUDED.block_number,
			gas_used = EXCLUDED.gas_used
	`,
		record.Command,
		record.Account.Hex(),
		record.Status,
		record.Error,
		txHash,
		blockNumber,
		gasUsed,
		requests,
		record.RecordedAt,
	)
	for i, ev := range events {
		batch.Queue(`
			INSERT INTO execution_events (tx_hash, event_index, name, token_id, liquidity, amount0, amount1)
			VALUES ($1, $2, $3, $4::text::numeric, $5::text::numeric, $6::text::numeric, $7::text::numeric)
			ON CONFLICT (tx_hash, event_index) DO NOTHING
		`,
			*txHash,
			i,
			ev.Name,
			numeric(ev.TokenID),
			numeric(ev.Liquidity),
			numeric(ev.Amount0),
			numeric(ev.Amount1),
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for i := 0; i < batch.Len(); i++ {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("record execution: %w", err)
		}
	}
	return nil
}

// ExecutionStatus returns the recorded status for a transaction hash.
func (s *Store) ExecutionStatus(ctx context.Context, txHash string) (string, bool, error) {
	if txHash == "" {
		return "", false, fmt.Errorf("tx hash required")
	}
	var status string
	row := s.pool.QueryRow(ctx, `SELECT status FROM executions WHERE tx_hash=$1`, txHash)
	if err := row.Scan(&status); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", false, nil
		}
		return "", false, err
	}
	return status, true, nil
}

// numeric renders a uint256 for a NUMERIC column; nil stays NULL.
func numeric(value *big.Int) *string {
	if value == nil {
		return nil
	}
	text := value.String()
	return &text
}
