package lifecycle

import (
	"context"
	"fmt"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"liquidityPilot/internal/model"
)

var (
	testNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	owner   = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	other   = common.HexToAddress("0x00000000000000000000000000000000000000bb")
	usdc    = common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48")
	weth    = common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2")
	dai     = common.HexToAddress("0x6B175474E89094C44Da98b954EedeAC495271d0F")
)

type fakeGateway struct {
	calls  []model.ActionRequest
	value  *big.Int
	result model.TransactionResult
	err    error
	n      int
}

func (g *fakeGateway) SubmitBatch(_ context.Context, calls []model.ActionRequest, nativeValue *big.Int) (model.TransactionResult, error) {
	g.n++
	g.calls = calls
	g.value = nativeValue
	if g.err != nil {
		return model.TransactionResult{}, g.err
	}
	return g.result, nil
}

func erc20Pool() model.Pool {
	return model.Pool{
		Address:     common.HexToAddress("0x01"),
		Token0:      model.Token{Address: usdc, Decimals: 6},
		Token1:      model.Token{Address: dai, Decimals: 18},
		Fee:         500,
		TickSpacing: 10,
	}
}

func nativePool() model.Pool {
	return model.Pool{
		Address:     common.HexToAddress("0x02"),
		Token0:      model.Token{Address: usdc, Decimals: 6},
		Token1:      model.Token{Address: weth, Decimals: 18, WrappedNative: true},
		Fee:         500,
		TickSpacing: 10,
	}
}

func mintRequest(pool model.Pool) model.ActionRequest {
	return model.ActionRequest{
		Kind:           model.ActionMint,
		Pool:           pool,
		Range:          model.PriceRange{TickLower: 200000, TickUpper: 201000},
		Amount0Desired: big.NewInt(2_000_000_000),
		Amount1Desired: big.NewInt(1_000_000_000_000_000_000),
		Amount0Min:     big.NewInt(1_990_000_000),
		Amount1Min:     big.NewInt(995_000_000_000_000_000),
		Recipient:      owner,
		Deadline:       testNow.Add(10 * time.Minute),
	}
}

func decreaseRequest(pool model.Pool, tokenID int64) model.ActionRequest {
	return model.ActionRequest{
		Kind:           model.ActionDecrease,
		Pool:           pool,
		TokenID:        big.NewInt(tokenID),
		Range:          model.PriceRange{TickLower: 200000, TickUpper: 201000},
		Liquidity:      big.NewInt(1000),
		Amount0Desired: big.NewInt(10),
		Amount1Desired: big.NewInt(20),
		Amount0Min:     big.NewInt(9),
		Amount1Min:     big.NewInt(19),
		Recipient:      owner,
		Deadline:       testNow.Add(time.Minute),
	}
}

func collectRequest(pool model.Pool, tokenID int64, recipient common.Address) model.ActionRequest {
	return model.ActionRequest{
		Kind:       model.ActionCollect,
		Pool:       pool,
		TokenID:    big.NewInt(tokenID),
		Amount0Max: model.MaxUint128,
		Amount1Max: model.MaxUint128,
		Recipient:  recipient,
	}
}

func newTestOrchestrator(gw Gateway) *Orchestrator {
	return newTrackedOrchestrator(gw, NewTracker())
}

func newTrackedOrchestrator(gw Gateway, tracker *Tracker) *Orchestrator {
	o := New(gw, tracker, nil)
	o.now = func() time.Time { return testNow }
	return o
}

func kinds(calls []model.ActionRequest) []model.ActionKind {
	out := make([]model.ActionKind, 0, len(calls))
	for _, c := range calls {
		out = append(out, c.Kind)
	}
	return out
}

func TestExecuteMintOpensPosition(t *testing.T) {
	gw := &fakeGateway{result: model.TransactionResult{
		TxHash: common.HexToHash("0xabc"),
		Events: []model.PositionEvent{
			{Name: model.EventTransfer, From: common.Address{}, To: owner, TokenID: big.NewInt(42)},
			{Name: model.EventIncreaseLiquidity, TokenID: big.NewInt(42), Liquidity: big.NewInt(1000)},
		},
	}}
	tracker := NewTracker()
	o := newTrackedOrchestrator(gw, tracker)

	result, err := o.Execute(context.Background(), []model.ActionRequest{mintRequest(erc20Pool())})
	require.NoError(t, err)

	assert.Equal(t, []model.ActionKind{model.ActionMint}, kinds(gw.calls))
	assert.Zero(t, gw.value.Sign())
	require.Len(t, result.Transitions, 1)
	assert.Equal(t, "42", result.Transitions[0].TokenID.String())
	assert.Equal(t, model.StatusUnopened, result.Transitions[0].From)
	assert.Equal(t, model.StatusOpen, result.Transitions[0].To)
	assert.Equal(t, model.StatusOpen, tracker.Status(big.NewInt(42)))
}

func TestBundleNativeMintSendsValueAndRefunds(t *testing.T) {
	req := mintRequest(nativePool())
	batch, err := Bundle([]model.ActionRequest{req})
	require.NoError(t, err)

	assert.Equal(t, []model.ActionKind{model.ActionMint, model.ActionRefundNative}, kinds(batch.Calls))
	assert.Equal(t, req.Amount1Desired.String(), batch.NativeValue.String())
}

func TestBundleNativeIncreaseOnToken0(t *testing.T) {
	pool := nativePool()
	pool.Token0, pool.Token1 = model.Token{Address: weth, Decimals: 18, WrappedNative: true}, model.Token{Address: dai, Decimals: 18}
	req := mintRequest(pool)
	req.Kind = model.ActionIncrease
	req.TokenID = big.NewInt(5)

	batch, err := Bundle([]model.ActionRequest{req})
	require.NoError(t, err)
	assert.Equal(t, []model.ActionKind{model.ActionIncrease, model.ActionRefundNative}, kinds(batch.Calls))
	assert.Equal(t, req.Amount0Desired.String(), batch.NativeValue.String())
}

func TestBundleInsertsCollectAfterDecrease(t *testing.T) {
	batch, err := Bundle([]model.ActionRequest{decreaseRequest(erc20Pool(), 7)})
	require.NoError(t, err)

	require.Equal(t, []model.ActionKind{model.ActionDecrease, model.ActionCollect}, kinds(batch.Calls))
	collect := batch.Calls[1]
	assert.Equal(t, "7", collect.TokenID.String())
	assert.Equal(t, owner, collect.Recipient)
	assert.Equal(t, model.MaxUint128.String(), collect.Amount0Max.String())
	assert.Equal(t, model.MaxUint128.String(), collect.Amount1Max.String())
	assert.Zero(t, batch.NativeValue.Sign())
}

func TestBundleKeepsExistingCollect(t *testing.T) {
	batch, err := Bundle([]model.ActionRequest{
		decreaseRequest(erc20Pool(), 7),
		collectRequest(erc20Pool(), 7, other),
	})
	require.NoError(t, err)
	require.Equal(t, []model.ActionKind{model.ActionDecrease, model.ActionCollect}, kinds(batch.Calls))
	assert.Equal(t, other, batch.Calls[1].Recipient)
}

func TestBundleCollectForDifferentTokenStillInserts(t *testing.T) {
	batch, err := Bundle([]model.ActionRequest{
		decreaseRequest(erc20Pool(), 7),
		collectRequest(erc20Pool(), 8, owner),
	})
	require.NoError(t, err)
	assert.Equal(t, []model.ActionKind{model.ActionDecrease, model.ActionCollect, model.ActionCollect}, kinds(batch.Calls))
	assert.Equal(t, "7", batch.Calls[1].TokenID.String())
	assert.Equal(t, "8", batch.Calls[2].TokenID.String())
}

func TestBundleNativeDecreaseUnwrapsAndSweeps(t *testing.T) {
	pool := nativePool()
	batch, err := Bundle([]model.ActionRequest{
		decreaseRequest(pool, 7),
		collectRequest(pool, 7, owner),
	})
	require.NoError(t, err)

	require.Equal(t, []model.ActionKind{
		model.ActionDecrease,
		model.ActionCollect,
		model.ActionUnwrapNative,
		model.ActionSweepToken,
	}, kinds(batch.Calls))

	assert.Equal(t, common.Address{}, batch.Calls[1].Recipient)
	assert.Equal(t, owner, batch.Calls[2].Recipient)
	assert.Zero(t, batch.Calls[2].Minimum.Sign())
	assert.Equal(t, usdc, batch.Calls[3].Token)
	assert.Equal(t, owner, batch.Calls[3].Recipient)
	assert.Zero(t, batch.NativeValue.Sign())
}

func TestBundleClaimAllNative(t *testing.T) {
	pool := nativePool()
	batch, err := Bundle([]model.ActionRequest{
		collectRequest(pool, 1, owner),
		collectRequest(pool, 2, owner),
		collectRequest(erc20Pool(), 3, owner),
	})
	require.NoError(t, err)
	assert.Equal(t, []model.ActionKind{
		model.ActionCollect,
		model.ActionCollect,
		model.ActionCollect,
		model.ActionUnwrapNative,
		model.ActionSweepToken,
	}, kinds(batch.Calls))
	assert.Equal(t, owner, batch.Calls[2].Recipient)
}

func TestBundleRejects(t *testing.T) {
	_, err := Bundle(nil)
	assert.Error(t, err)

	_, err = Bundle([]model.ActionRequest{{Kind: model.ActionRefundNative}})
	assert.Error(t, err)

	pool := nativePool()
	_, err = Bundle([]model.ActionRequest{
		collectRequest(pool, 1, owner),
		collectRequest(pool, 2, other),
	})
	assert.Error(t, err)

	_, err = Bundle([]model.ActionRequest{collectRequest(pool, 1, common.Address{})})
	assert.Error(t, err)
}

func TestExecuteRejectsExpiredDeadline(t *testing.T) {
	gw := &fakeGateway{}
	o := newTestOrchestrator(gw)

	req := mintRequest(erc20Pool())
	req.Deadline = testNow.Add(-time.Second)
	_, err := o.Execute(context.Background(), []model.ActionRequest{req})
	assert.ErrorIs(t, err, model.ErrDeadlineExpired)
	assert.Zero(t, gw.n)
}

func TestExecuteRejectsMinAboveDesired(t *testing.T) {
	gw := &fakeGateway{}
	o := newTestOrchestrator(gw)

	req := mintRequest(erc20Pool())
	req.Amount0Min = new(big.Int).Add(req.Amount0Desired, big.NewInt(1))
	_, err := o.Execute(context.Background(), []model.ActionRequest{req})
	assert.Error(t, err)
	assert.Zero(t, gw.n)
}

func TestExecuteRejectsDecreaseMinAboveDesired(t *testing.T) {
	gw := &fakeGateway{}
	o := newTestOrchestrator(gw)

	req := decreaseRequest(erc20Pool(), 7)
	req.Amount0Min = big.NewInt(500)
	_, err := o.Execute(context.Background(), []model.ActionRequest{req})
	assert.ErrorContains(t, err, "minimum amounts must not exceed desired amounts")
	assert.Zero(t, gw.n)
}

func TestExecuteRejectsExpiredCollect(t *testing.T) {
	gw := &fakeGateway{}
	o := newTestOrchestrator(gw)

	req := collectRequest(erc20Pool(), 7, owner)
	req.Deadline = testNow.Add(-time.Second)
	_, err := o.Execute(context.Background(), []model.ActionRequest{req})
	assert.ErrorIs(t, err, model.ErrDeadlineExpired)
	assert.Zero(t, gw.n)

	req.Deadline = testNow.Add(time.Minute)
	_, err = o.Execute(context.Background(), []model.ActionRequest{req})
	require.NoError(t, err)
	assert.Equal(t, 1, gw.n)
}

func TestExecuteMarksBurnedPositionClosed(t *testing.T) {
	gw := &fakeGateway{result: model.TransactionResult{
		TxHash: common.HexToHash("0x2"),
		Events: []model.PositionEvent{
			{Name: model.EventDecreaseLiquidity, TokenID: big.NewInt(7), Liquidity: big.NewInt(1000)},
			{Name: model.EventTransfer, From: owner, To: common.Address{}, TokenID: big.NewInt(7)},
		},
	}}
	tracker := NewTracker()
	o := newTrackedOrchestrator(gw, tracker)

	_, err := o.Execute(context.Background(), []model.ActionRequest{decreaseRequest(erc20Pool(), 7)})
	require.NoError(t, err)
	assert.Equal(t, model.StatusClosed, tracker.Status(big.NewInt(7)))

	_, err = o.Execute(context.Background(), []model.ActionRequest{collectRequest(erc20Pool(), 7, owner)})
	assert.ErrorIs(t, err, model.ErrPositionNotOpen)
	assert.Equal(t, 1, gw.n)
}

func TestExecuteRejectsClosedPosition(t *testing.T) {
	gw := &fakeGateway{}
	tracker := NewTracker()
	tracker.MarkClosed(big.NewInt(7))
	o := newTrackedOrchestrator(gw, tracker)

	_, err := o.Execute(context.Background(), []model.ActionRequest{decreaseRequest(erc20Pool(), 7)})
	assert.ErrorIs(t, err, model.ErrPositionNotOpen)
	assert.Zero(t, gw.n)
}

func TestExecutePassesGatewayErrorsThrough(t *testing.T) {
	for _, sentinel := range []error{model.ErrSlippageExceeded, model.ErrBatchReverted, model.ErrDeadlineExpired} {
		gw := &fakeGateway{err: fmt.Errorf("tx 0xdead: %w", sentinel)}
		o := newTestOrchestrator(gw)

		_, err := o.Execute(context.Background(), []model.ActionRequest{mintRequest(erc20Pool())})
		assert.ErrorIs(t, err, sentinel)
		assert.Equal(t, 1, gw.n, "no retry on %v", sentinel)
	}
}

func TestExecuteDecreaseKeepsPositionOpen(t *testing.T) {
	gw := &fakeGateway{result: model.TransactionResult{TxHash: common.HexToHash("0x1")}}
	o := newTestOrchestrator(gw)

	result, err := o.Execute(context.Background(), []model.ActionRequest{decreaseRequest(erc20Pool(), 7)})
	require.NoError(t, err)
	require.Len(t, result.Transitions, 2)
	for _, tr := range result.Transitions {
		assert.Equal(t, model.StatusOpen, tr.From)
		assert.Equal(t, model.StatusOpen, tr.To)
	}
	assert.Equal(t, model.ActionDecrease, result.Transitions[0].Action)
	assert.Equal(t, model.ActionCollect, result.Transitions[1].Action)
}

func TestTransition(t *testing.T) {
	tests := []struct {
		from    model.Status
		kind    model.ActionKind
		want    model.Status
		wantErr bool
	}{
		{model.StatusUnopened, model.ActionMint, model.StatusOpen, false},
		{model.StatusOpen, model.ActionIncrease, model.StatusOpen, false},
		{model.StatusOpen, model.ActionDecrease, model.StatusOpen, false},
		{model.StatusOpen, model.ActionCollect, model.StatusOpen, false},
		{model.StatusUnopened, model.ActionIncrease, model.StatusUnopened, true},
		{model.StatusOpen, model.ActionMint, model.StatusOpen, true},
		{model.StatusClosed, model.ActionCollect, model.StatusClosed, true},
		{model.StatusClosed, model.ActionMint, model.StatusClosed, true},
	}
	for _, tt := range tests {
		got, err := Transition(tt.from, tt.kind)
		if tt.wantErr {
			assert.ErrorIs(t, err, model.ErrPositionNotOpen, "%s %s", tt.from, tt.kind)
		} else {
			assert.NoError(t, err)
		}
		assert.Equal(t, tt.want, got, "%s %s", tt.from, tt.kind)
	}
}
