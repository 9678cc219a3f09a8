package storage

import (
	"context"
	"errors"

	"liquidityPilot/internal/model"
)

// Journal is a sink for execution records.
type Journal interface {
	Record(ctx context.Context, record model.ExecutionRecord) error
}

// StatusLookup reports the recorded status of a transaction hash.
type StatusLookup interface {
	ExecutionStatus(ctx context.Context, txHash string) (string, bool, error)
}

// MultiJournal fans a record out to every sink and joins their errors.
type MultiJournal []Journal

func (m MultiJournal) Record(ctx context.Context, record model.ExecutionRecord) error {
	var errs []error
	for _, journal := range m {
		if journal == nil {
			continue
		}
		if err := journal.Record(ctx, record); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
