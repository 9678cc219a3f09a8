package gateway

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"liquidityPilot/internal/dex"
	"liquidityPilot/internal/model"
)

// ErrReadOnly is returned by write operations when no signing key is configured.
var ErrReadOnly = errors.New("gateway has no signing key")

// Backend is the RPC surface the gateway needs; *chain.Client satisfies it.
type Backend interface {
	dex.ContractCaller
	ChainID(ctx context.Context) (*big.Int, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// Config holds deployment addresses and submission tuning.
type Config struct {
	PositionManager  common.Address
	Factory          common.Address
	PoolInitCodeHash common.Hash
	NativeTokens     []common.Address
	PrivateKey       *ecdsa.PrivateKey

	ReceiptTimeout time.Duration
	PollInterval   time.Duration
	MaxRetries     int
	RetryBackoff   time.Duration
}

// gas limit headroom over the estimate, in percent
const gasHeadroom = 20

// Gateway reads pool and position state and submits position-manager batches.
type Gateway struct {
	backend Backend
	cfg     Config
	from    common.Address
	native  map[common.Address]bool
	pools   *dex.PoolMetaCache
	tokens  *dex.TokenMetaCache
	logger  *zap.Logger

	// serializes nonce selection
	sendMu sync.Mutex
}

// New builds a gateway. A nil PrivateKey yields a read-only gateway.
func New(backend Backend, cfg Config, logger *zap.Logger) (*Gateway, error) {
	if backend == nil {
		return nil, fmt.Errorf("backend is nil")
	}
	if cfg.PositionManager == (common.Address{}) {
		return nil, fmt.Errorf("position manager address is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ReceiptTimeout <= 0 {
		cfg.ReceiptTimeout = 3 * time.Minute
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}

	native := make(map[common.Address]bool, len(cfg.NativeTokens))
	for _, addr := range cfg.NativeTokens {
		native[addr] = true
	}

	g := &Gateway{
		backend: backend,
		cfg:     cfg,
		native:  native,
		pools:   dex.NewPoolMetaCache(),
		tokens:  dex.NewTokenMetaCache(),
		logger:  logger,
	}
	if cfg.PrivateKey != nil {
		g.from = crypto.PubkeyToAddress(cfg.PrivateKey.PublicKey)
	}
	return g, nil
}

// Account returns the signing address, or the zero address for a read-only gateway.
func (g *Gateway) Account() common.Address {
	return g.from
}

// PositionManager returns the configured position manager address.
func (g *Gateway) PositionManager() common.Address {
	return g.cfg.PositionManager
}

func (g *Gateway) retry(ctx context.Context, fn func(context.Context) error) error {
	return withRetry(ctx, g.cfg.MaxRetries, g.cfg.RetryBackoff, fn)
}

// PoolState reads a pool snapshot with every mutable field pinned to the latest block.
func (g *Gateway) PoolState(ctx context.Context, pool common.Address) (model.Pool, error) {
	var header *types.Header
	if err := g.retry(ctx, func(ctx context.Context) error {
		var err error
		header, err = g.backend.HeaderByNumber(ctx, nil)
		return err
	}); err != nil {
		return model.Pool{}, fmt.Errorf("latest header: %w", err)
	}

	meta, err := g.poolMeta(ctx, pool)
	if err != nil {
		return model.Pool{}, err
	}

	var (
		token0, token1 model.Token
		slot           dex.PoolSlot
	)
	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		var err error
		token0, err = g.token(groupCtx, meta.Token0)
		return err
	})
	group.Go(func() error {
		var err error
		token1, err = g.token(groupCtx, meta.Token1)
		return err
	})
	group.Go(func() error {
		return g.retry(groupCtx, func(ctx context.Context) error {
			var err error
			slot, err = dex.FetchPoolSlot(ctx, g.backend, pool, header.Number)
			return err
		})
	})
	if err := group.Wait(); err != nil {
		return model.Pool{}, fmt.Errorf("pool %s state: %w", pool.Hex(), err)
	}

	snapshot := model.Pool{
		Address:      pool,
		Token0:       token0,
		Token1:       token1,
		Fee:          meta.Fee,
		TickSpacing:  meta.TickSpacing,
		Tick:         slot.Tick,
		SqrtPriceX96: slot.SqrtPriceX96,
		Liquidity:    slot.Liquidity,
		BlockNumber:  header.Number.Uint64(),
		ObservedAt:   time.Unix(int64(header.Time), 0),
	}
	g.logger.Debug("pool state",
		zap.String("pool", pool.Hex()),
		zap.Uint64("block", snapshot.BlockNumber),
		zap.Int32("tick", snapshot.Tick),
	)
	return snapshot, nil
}

func (g *Gateway) poolMeta(ctx context.Context, pool common.Address) (model.PoolMeta, error) {
	if meta, ok := g.pools.Get(pool); ok {
		return meta, nil
	}
	var meta model.PoolMeta
	if err := g.retry(ctx, func(ctx context.Context) error {
		var err error
		meta, err = dex.FetchPoolMeta(ctx, g.backend, pool)
		return err
	}); err != nil {
		return model.PoolMeta{}, fmt.Errorf("pool %s metadata: %w", pool.Hex(), err)
	}
	g.pools.Set(pool, meta)
	return meta, nil
}

// TokenInfo returns cached ERC20 metadata with the native flag applied.
func (g *Gateway) TokenInfo(ctx context.Context, address common.Address) (model.Token, error) {
	return g.token(ctx, address)
}

func (g *Gateway) token(ctx context.Context, address common.Address) (model.Token, error) {
	meta, ok := g.tokens.Get(address)
	if !ok {
		if err := g.retry(ctx, func(ctx context.Context) error {
			var err error
			meta, err = dex.FetchTokenMeta(ctx, g.backend, address, g.logger)
			return err
		}); err != nil {
			return model.Token{}, fmt.Errorf("token %s metadata: %w", address.Hex(), err)
		}
		g.tokens.Set(address, meta)
	}
	return model.Token{
		Address:       address,
		Decimals:      meta.Decimals,
		Symbol:        meta.Symbol,
		WrappedNative: g.native[address],
	}, nil
}

// Position reads a position from the position manager and attaches its pool address.
func (g *Gateway) Position(ctx context.Context, tokenID *big.Int) (model.Position, error) {
	var position model.Position
	if err := g.retry(ctx, func(ctx context.Context) error {
		var err error
		position, err = dex.FetchPosition(ctx, g.backend, g.cfg.PositionManager, tokenID, nil)
		if isRevert(err) {
			return permanent(err)
		}
		return err
	}); err != nil {
		return model.Position{}, fmt.Errorf("position %s: %w", tokenID, err)
	}
	position.Pool = dex.ComputePoolAddress(g.cfg.Factory, position.Token0, position.Token1, position.Fee, g.cfg.PoolInitCodeHash)
	return position, nil
}

// TokenIDs lists the position NFTs held by owner.
func (g *Gateway) TokenIDs(ctx context.Context, owner common.Address) ([]*big.Int, error) {
	var ids []*big.Int
	if err := g.retry(ctx, func(ctx context.Context) error {
		var err error
		ids, err = dex.FetchTokenIDs(ctx, g.backend, g.cfg.PositionManager, owner, nil)
		return err
	}); err != nil {
		return nil, fmt.Errorf("token ids of %s: %w", owner.Hex(), err)
	}
	return ids, nil
}

// ClaimableFees previews what collecting everything owed would pay out now.
func (g *Gateway) ClaimableFees(ctx context.Context, tokenID *big.Int, owner common.Address) (*big.Int, *big.Int, error) {
	var amount0, amount1 *big.Int
	if err := g.retry(ctx, func(ctx context.Context) error {
		var err error
		amount0, amount1, err = dex.ClaimableFees(ctx, g.backend, g.cfg.PositionManager, owner, tokenID)
		if isRevert(err) {
			return permanent(err)
		}
		return err
	}); err != nil {
		return nil, nil, fmt.Errorf("claimable fees of %s: %w", tokenID, err)
	}
	return amount0, amount1, nil
}

// Allowance reads token.allowance(owner, spender).
func (g *Gateway) Allowance(ctx context.Context, token, owner, spender common.Address) (*big.Int, error) {
	var allowance *big.Int
	if err := g.retry(ctx, func(ctx context.Context) error {
		var err error
		allowance, err = dex.FetchAllowance(ctx, g.backend, token, owner, spender)
		return err
	}); err != nil {
		return nil, fmt.Errorf("allowance of %s: %w", token.Hex(), err)
	}
	return allowance, nil
}

// PoolReserves reads both token balances held by the pool at the snapshot block,
// falling back to latest when the node has pruned that state.
func (g *Gateway) PoolReserves(ctx context.Context, pool model.Pool) (*big.Int, *big.Int, error) {
	read := func(block *big.Int) (*big.Int, *big.Int, error) {
		bal0, err := dex.FetchBalance(ctx, g.backend, pool.Token0.Address, pool.Address, block)
		if err != nil {
			return nil, nil, err
		}
		bal1, err := dex.FetchBalance(ctx, g.backend, pool.Token1.Address, pool.Address, block)
		if err != nil {
			return nil, nil, err
		}
		return bal0, bal1, nil
	}

	if pool.BlockNumber > 0 {
		bal0, bal1, err := read(new(big.Int).SetUint64(pool.BlockNumber))
		if err == nil {
			return bal0, bal1, nil
		}
		g.logger.Debug("pinned reserve read failed", zap.String("pool", pool.Address.Hex()), zap.Error(err))
	}
	bal0, bal1, err := read(nil)
	if err != nil {
		return nil, nil, fmt.Errorf("pool %s reserves: %w", pool.Address.Hex(), err)
	}
	return bal0, bal1, nil
}
