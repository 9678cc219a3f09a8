package lifecycle

import (
	"fmt"
	"math/big"
	"sync"

	"liquidityPilot/internal/model"
)

// Transition applies kind to a position in status from.
func Transition(from model.Status, kind model.ActionKind) (model.Status, error) {
	switch {
	case from == model.StatusUnopened && kind == model.ActionMint:
		return model.StatusOpen, nil
	case from == model.StatusOpen && (kind == model.ActionIncrease || kind == model.ActionDecrease || kind == model.ActionCollect):
		return model.StatusOpen, nil
	default:
		return from, fmt.Errorf("%w: cannot %s a %s position", model.ErrPositionNotOpen, kind, from)
	}
}

// Tracker holds the logical status of positions touched by this process.
// Positions it has not seen are assumed Open, since the ledger already knows them.
type Tracker struct {
	mu       sync.RWMutex
	statuses map[string]model.Status
}

func NewTracker() *Tracker {
	return &Tracker{statuses: make(map[string]model.Status)}
}

// Status returns the tracked status of tokenID.
func (t *Tracker) Status(tokenID *big.Int) model.Status {
	if tokenID == nil {
		return model.StatusUnopened
	}
	t.mu.RLock()
	status, ok := t.statuses[tokenID.String()]
	t.mu.RUnlock()
	if !ok {
		return model.StatusOpen
	}
	return status
}

// MarkClosed records an external burn.
func (t *Tracker) MarkClosed(tokenID *big.Int) {
	t.set(tokenID, model.StatusClosed)
}

func (t *Tracker) set(tokenID *big.Int, status model.Status) {
	if tokenID == nil {
		return
	}
	t.mu.Lock()
	t.statuses[tokenID.String()] = status
	t.mu.Unlock()
}
