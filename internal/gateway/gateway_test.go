package gateway

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"liquidityPilot/internal/dex"
	"liquidityPilot/internal/model"
)

var (
	usdc    = common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48")
	weth    = common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2")
	pool    = common.HexToAddress("0x88e6A0c2dDD26FEEb64F039a2c41296FcB3f5640")
	manager = common.HexToAddress("0xC36442b4a4522E871399CD717aBDD847Ab11FE88")
)

type fakeBackend struct {
	mu        sync.Mutex
	responses map[string][]byte
	callErr   error

	header        *types.Header
	estimateErrs  []error
	estimateCalls int
	sent          []*types.Transaction
	receipt       *types.Receipt
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		responses: make(map[string][]byte),
		header:    &types.Header{Number: big.NewInt(100), Time: 1_700_000_000, BaseFee: big.NewInt(10_000_000_000)},
	}
}

func (f *fakeBackend) respond(t *testing.T, to common.Address, parsed abi.ABI, method string, args []interface{}, outputs ...interface{}) {
	t.Helper()
	input, err := parsed.Pack(method, args...)
	require.NoError(t, err)
	output, err := parsed.Methods[method].Outputs.Pack(outputs...)
	require.NoError(t, err)
	f.responses[to.Hex()+hexutil.Encode(input)] = output
}

func (f *fakeBackend) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if resp, ok := f.responses[msg.To.Hex()+hexutil.Encode(msg.Data)]; ok {
		return resp, nil
	}
	if f.callErr != nil {
		return nil, f.callErr
	}
	return nil, errors.New("execution reverted")
}

func (f *fakeBackend) ChainID(context.Context) (*big.Int, error) { return big.NewInt(1), nil }

func (f *fakeBackend) HeaderByNumber(context.Context, *big.Int) (*types.Header, error) {
	return f.header, nil
}

func (f *fakeBackend) PendingNonceAt(context.Context, common.Address) (uint64, error) { return 7, nil }

func (f *fakeBackend) SuggestGasTipCap(context.Context) (*big.Int, error) {
	return big.NewInt(1_500_000_000), nil
}

func (f *fakeBackend) EstimateGas(context.Context, ethereum.CallMsg) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.estimateCalls++
	if len(f.estimateErrs) > 0 {
		err := f.estimateErrs[0]
		f.estimateErrs = f.estimateErrs[1:]
		return 0, err
	}
	return 100_000, nil
}

func (f *fakeBackend) SendTransaction(_ context.Context, tx *types.Transaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, tx)
	return nil
}

func (f *fakeBackend) TransactionReceipt(_ context.Context, hash common.Hash) (*types.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.receipt == nil {
		return nil, ethereum.NotFound
	}
	receipt := *f.receipt
	receipt.TxHash = hash
	return &receipt, nil
}

func newTestGateway(t *testing.T, backend *fakeBackend, withKey bool) *Gateway {
	t.Helper()
	cfg := Config{
		PositionManager:  manager,
		Factory:          dex.DefaultFactory,
		PoolInitCodeHash: dex.DefaultPoolInitCodeHash,
		NativeTokens:     []common.Address{weth},
		ReceiptTimeout:   time.Second,
		PollInterval:     time.Millisecond,
		MaxRetries:       2,
		RetryBackoff:     time.Millisecond,
	}
	if withKey {
		key, err := crypto.GenerateKey()
		require.NoError(t, err)
		cfg.PrivateKey = key
	}
	g, err := New(backend, cfg, zap.NewNop())
	require.NoError(t, err)
	return g
}

func seedPool(t *testing.T, backend *fakeBackend) {
	t.Helper()
	poolABI, err := dex.V3PoolABI()
	require.NoError(t, err)
	erc20, err := dex.ERC20ABI()
	require.NoError(t, err)

	backend.respond(t, pool, poolABI, "token0", nil, usdc)
	backend.respond(t, pool, poolABI, "token1", nil, weth)
	backend.respond(t, pool, poolABI, "fee", nil, big.NewInt(500))
	backend.respond(t, pool, poolABI, "tickSpacing", nil, big.NewInt(10))
	backend.respond(t, pool, poolABI, "slot0", nil,
		big.NewInt(1_000_000), big.NewInt(200311), uint16(0), uint16(1), uint16(1), uint8(0), true)
	backend.respond(t, pool, poolABI, "liquidity", nil, big.NewInt(555))
	backend.respond(t, usdc, erc20, "decimals", nil, uint8(6))
	backend.respond(t, usdc, erc20, "symbol", nil, "USDC")
	backend.respond(t, weth, erc20, "decimals", nil, uint8(18))
	backend.respond(t, weth, erc20, "symbol", nil, "WETH")
}

func TestPoolStatePinsBlockAndFlagsNative(t *testing.T) {
	backend := newFakeBackend()
	seedPool(t, backend)
	g := newTestGateway(t, backend, false)

	snapshot, err := g.PoolState(context.Background(), pool)
	require.NoError(t, err)

	assert.Equal(t, pool, snapshot.Address)
	assert.Equal(t, usdc, snapshot.Token0.Address)
	assert.Equal(t, uint8(6), snapshot.Token0.Decimals)
	assert.Equal(t, "USDC", snapshot.Token0.Symbol)
	assert.False(t, snapshot.Token0.WrappedNative)
	assert.True(t, snapshot.Token1.WrappedNative)
	assert.Equal(t, 1, snapshot.NativeIndex())
	assert.Equal(t, uint32(500), snapshot.Fee)
	assert.Equal(t, int32(10), snapshot.TickSpacing)
	assert.Equal(t, int32(200311), snapshot.Tick)
	assert.Equal(t, "1000000", snapshot.SqrtPriceX96.String())
	assert.Equal(t, "555", snapshot.Liquidity.String())
	assert.Equal(t, uint64(100), snapshot.BlockNumber)
	assert.Equal(t, time.Unix(1_700_000_000, 0), snapshot.ObservedAt)
}

func TestPoolReserves(t *testing.T) {
	backend := newFakeBackend()
	seedPool(t, backend)
	erc20, err := dex.ERC20ABI()
	require.NoError(t, err)
	backend.respond(t, usdc, erc20, "balanceOf", []interface{}{pool}, big.NewInt(1_000))
	backend.respond(t, weth, erc20, "balanceOf", []interface{}{pool}, big.NewInt(2_000))

	g := newTestGateway(t, backend, false)
	snapshot, err := g.PoolState(context.Background(), pool)
	require.NoError(t, err)
	reserve0, reserve1, err := g.PoolReserves(context.Background(), snapshot)
	require.NoError(t, err)
	assert.Equal(t, "1000", reserve0.String())
	assert.Equal(t, "2000", reserve1.String())
}

func TestPositionAttachesPoolAddress(t *testing.T) {
	backend := newFakeBackend()
	parsed, err := dex.PositionManagerABI()
	require.NoError(t, err)
	owner := common.HexToAddress("0x5555555555555555555555555555555555555555")
	tokenID := big.NewInt(12)
	backend.respond(t, manager, parsed, "positions", []interface{}{tokenID},
		big.NewInt(0), common.Address{}, usdc, weth, big.NewInt(500),
		big.NewInt(200300), big.NewInt(201300), big.NewInt(42),
		big.NewInt(0), big.NewInt(0), big.NewInt(0), big.NewInt(0))
	backend.respond(t, manager, parsed, "ownerOf", []interface{}{tokenID}, owner)

	g := newTestGateway(t, backend, false)
	position, err := g.Position(context.Background(), tokenID)
	require.NoError(t, err)
	assert.Equal(t, pool, position.Pool)
	assert.Equal(t, owner, position.Owner)
	assert.Equal(t, "42", position.Liquidity.String())
}

func TestSubmitBatchDecodesReceipt(t *testing.T) {
	backend := newFakeBackend()
	parsed, err := dex.PositionManagerABI()
	require.NoError(t, err)

	data, err := parsed.Events["IncreaseLiquidity"].Inputs.NonIndexed().Pack(big.NewInt(1000), big.NewInt(1), big.NewInt(2))
	require.NoError(t, err)
	backend.receipt = &types.Receipt{
		Status:            types.ReceiptStatusSuccessful,
		BlockNumber:       big.NewInt(101),
		GasUsed:           90_000,
		EffectiveGasPrice: big.NewInt(2),
		Logs: []*types.Log{{
			Address: manager,
			Topics:  []common.Hash{parsed.Events["IncreaseLiquidity"].ID, common.BigToHash(big.NewInt(5))},
			Data:    data,
		}},
	}

	g := newTestGateway(t, backend, true)
	calls := []model.ActionRequest{
		{Kind: model.ActionCollect, TokenID: big.NewInt(5), Recipient: g.Account()},
	}
	result, err := g.SubmitBatch(context.Background(), calls, big.NewInt(3))
	require.NoError(t, err)

	require.Len(t, backend.sent, 1)
	tx := backend.sent[0]
	assert.Equal(t, manager, *tx.To())
	assert.Equal(t, "3", tx.Value().String())
	assert.Equal(t, uint64(7), tx.Nonce())
	assert.Equal(t, uint64(120_000), tx.Gas())
	assert.Equal(t, []byte(parsed.Methods["multicall"].ID), tx.Data()[:4])

	assert.Equal(t, tx.Hash(), result.TxHash)
	assert.Equal(t, uint64(101), result.BlockNumber)
	assert.Equal(t, "180000", result.GasCost.String())
	require.Len(t, result.Events, 1)
	assert.Equal(t, model.EventIncreaseLiquidity, result.Events[0].Name)
	assert.Equal(t, "5", result.Events[0].TokenID.String())
}

func TestSubmitBatchKeepsResultWhenEventsDoNotDecode(t *testing.T) {
	backend := newFakeBackend()
	parsed, err := dex.PositionManagerABI()
	require.NoError(t, err)
	backend.receipt = &types.Receipt{
		Status:            types.ReceiptStatusSuccessful,
		BlockNumber:       big.NewInt(102),
		GasUsed:           90_000,
		EffectiveGasPrice: big.NewInt(1),
		Logs: []*types.Log{{
			Address: manager,
			Topics:  []common.Hash{parsed.Events["DecreaseLiquidity"].ID},
		}},
	}

	g := newTestGateway(t, backend, true)
	calls := []model.ActionRequest{
		{Kind: model.ActionCollect, TokenID: big.NewInt(5), Recipient: g.Account()},
	}
	result, err := g.SubmitBatch(context.Background(), calls, nil)
	require.NoError(t, err)
	require.Len(t, backend.sent, 1)
	assert.Equal(t, backend.sent[0].Hash(), result.TxHash)
	assert.Equal(t, uint64(102), result.BlockNumber)
	assert.Empty(t, result.Events)
}

func TestSubmitBatchClassifiesReceiptRevert(t *testing.T) {
	backend := newFakeBackend()
	backend.callErr = errors.New("execution reverted: Price slippage check")
	backend.receipt = &types.Receipt{Status: types.ReceiptStatusFailed, BlockNumber: big.NewInt(101)}

	g := newTestGateway(t, backend, true)
	calls := []model.ActionRequest{{Kind: model.ActionCollect, TokenID: big.NewInt(5), Recipient: g.Account()}}
	result, err := g.SubmitBatch(context.Background(), calls, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrSlippageExceeded)
	assert.ErrorIs(t, err, model.ErrBatchReverted)
	assert.NotEqual(t, common.Hash{}, result.TxHash)
}

func TestSubmitBatchDoesNotRetryEstimateRevert(t *testing.T) {
	backend := newFakeBackend()
	backend.estimateErrs = []error{errors.New("execution reverted: Transaction too old")}

	g := newTestGateway(t, backend, true)
	calls := []model.ActionRequest{{Kind: model.ActionCollect, TokenID: big.NewInt(5), Recipient: g.Account()}}
	_, err := g.SubmitBatch(context.Background(), calls, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrDeadlineExpired)
	assert.Equal(t, 1, backend.estimateCalls)
	assert.Empty(t, backend.sent)
}

func TestSubmitBatchRetriesTransientEstimateFailure(t *testing.T) {
	backend := newFakeBackend()
	backend.estimateErrs = []error{errors.New("connection reset by peer")}
	backend.receipt = &types.Receipt{Status: types.ReceiptStatusSuccessful, BlockNumber: big.NewInt(101)}

	g := newTestGateway(t, backend, true)
	calls := []model.ActionRequest{{Kind: model.ActionCollect, TokenID: big.NewInt(5), Recipient: g.Account()}}
	_, err := g.SubmitBatch(context.Background(), calls, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, backend.estimateCalls)
	assert.Len(t, backend.sent, 1)
}

func TestSubmitBatchRequiresKey(t *testing.T) {
	g := newTestGateway(t, newFakeBackend(), false)
	calls := []model.ActionRequest{{Kind: model.ActionCollect, TokenID: big.NewInt(5)}}
	_, err := g.SubmitBatch(context.Background(), calls, nil)
	assert.ErrorIs(t, err, ErrReadOnly)
}

func TestClassifyRevert(t *testing.T) {
	cases := []struct {
		reason string
		want   error
	}{
		{"execution reverted: Price slippage check", model.ErrSlippageExceeded},
		{"execution reverted: Transaction too old", model.ErrDeadlineExpired},
		{"execution reverted: Not approved", model.ErrBatchReverted},
	}
	for _, tc := range cases {
		err := classifyRevert(tc.reason)
		assert.ErrorIs(t, err, tc.want, tc.reason)
		assert.ErrorIs(t, err, model.ErrBatchReverted, tc.reason)
	}
}

func TestWithRetry(t *testing.T) {
	attempts := 0
	err := withRetry(context.Background(), 3, time.Millisecond, func(context.Context) error {
		attempts++
		if attempts < 3 {
			return errors.New("transient")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)

	attempts = 0
	stop := errors.New("stop")
	err = withRetry(context.Background(), 3, time.Millisecond, func(context.Context) error {
		attempts++
		return permanent(stop)
	})
	assert.Equal(t, stop, err)
	assert.Equal(t, 1, attempts)

	attempts = 0
	err = withRetry(context.Background(), 1, time.Millisecond, func(context.Context) error {
		attempts++
		return errors.New("always")
	})
	assert.EqualError(t, err, "always")
	assert.Equal(t, 2, attempts)
}
