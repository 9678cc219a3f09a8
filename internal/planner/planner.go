package planner

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"liquidityPilot/internal/model"
)

// Gateway provides fresh pool snapshots.
type Gateway interface {
	PoolState(ctx context.Context, pool common.Address) (model.Pool, error)
}

// Ledger is the read side of the position manager.
type Ledger interface {
	Position(ctx context.Context, tokenID *big.Int) (model.Position, error)
	TokenIDs(ctx context.Context, owner common.Address) ([]*big.Int, error)
}

// Options bound how a plan is allowed to age.
type Options struct {
	// MaxStaleness is the oldest pool snapshot accepted. Zero disables the check.
	MaxStaleness time.Duration
	// StaleRefetches is how many times a stale snapshot is re-read before giving up.
	StaleRefetches int
	// RefetchDelay is the wait before each re-read, roughly one block.
	RefetchDelay time.Duration
}

// Planner turns intents into fully specified ActionRequests.
type Planner struct {
	gateway Gateway
	ledger  Ledger
	opts    Options
	logger  *zap.Logger
	now     func() time.Time
}

// New builds a Planner.
func New(gateway Gateway, ledger Ledger, opts Options, logger *zap.Logger) *Planner {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.StaleRefetches < 0 {
		opts.StaleRefetches = 0
	}
	return &Planner{
		gateway: gateway,
		ledger:  ledger,
		opts:    opts,
		logger:  logger,
		now:     time.Now,
	}
}

// MintIntent describes a new position.
type MintIntent struct {
	Pool       common.Address
	PriceLower decimal.Decimal
	PriceUpper decimal.Decimal
	// InputIndex selects which token Amount is denominated in (0 or 1).
	InputIndex int
	Amount     decimal.Decimal
	Slippage   decimal.Decimal
	MaxWait    time.Duration
	Recipient  common.Address
}

// IncreaseIntent adds liquidity to an existing position.
type IncreaseIntent struct {
	TokenID    *big.Int
	InputIndex int
	Amount     decimal.Decimal
	Slippage   decimal.Decimal
	MaxWait    time.Duration
}

// DecreaseIntent removes a share of a position's liquidity.
type DecreaseIntent struct {
	TokenID *big.Int
	// Percentage is in (0, 100].
	Percentage decimal.Decimal
	Slippage   decimal.Decimal
	MaxWait    time.Duration
	// Recipient receives the collected tokens. Zero means the position owner.
	Recipient common.Address
}

func (p *Planner) deadline(maxWait time.Duration) (time.Time, error) {
	if maxWait <= 0 {
		return time.Time{}, fmt.Errorf("max wait must be positive, got %s", maxWait)
	}
	return p.now().Add(maxWait), nil
}

// freshPool reads the pool and re-reads it while the snapshot is older than MaxStaleness.
func (p *Planner) freshPool(ctx context.Context, address common.Address) (model.Pool, error) {
	for attempt := 0; ; attempt++ {
		pool, err := p.gateway.PoolState(ctx, address)
		if err != nil {
			return model.Pool{}, fmt.Errorf("pool state %s: %w", address.Hex(), err)
		}
		if p.opts.MaxStaleness <= 0 {
			return pool, nil
		}
		age := pool.Age(p.now())
		if age <= p.opts.MaxStaleness {
			return pool, nil
		}
		if attempt >= p.opts.StaleRefetches {
			return model.Pool{}, fmt.Errorf("%w: pool %s snapshot at block %d is %s old (max %s)",
				model.ErrStaleQuote, address.Hex(), pool.BlockNumber, age, p.opts.MaxStaleness)
		}
		p.logger.Debug("stale pool snapshot, refetching",
			zap.String("pool", address.Hex()),
			zap.Uint64("block", pool.BlockNumber),
			zap.Duration("age", age),
			zap.Int("attempt", attempt+1),
			zap.Duration("delay", p.opts.RefetchDelay),
		)
		if err := sleep(ctx, p.opts.RefetchDelay); err != nil {
			return model.Pool{}, err
		}
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
