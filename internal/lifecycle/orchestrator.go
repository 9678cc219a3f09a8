package lifecycle

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"liquidityPilot/internal/model"
)

// Gateway submits a batch of calls as one atomic transaction.
type Gateway interface {
	SubmitBatch(ctx context.Context, calls []model.ActionRequest, nativeValue *big.Int) (model.TransactionResult, error)
}

// Orchestrator bundles planned requests, submits them and tracks position status.
type Orchestrator struct {
	gateway Gateway
	tracker *Tracker
	logger  *zap.Logger
	now     func() time.Time
}

// New builds an Orchestrator. A nil tracker starts empty.
func New(gateway Gateway, tracker *Tracker, logger *zap.Logger) *Orchestrator {
	if tracker == nil {
		tracker = NewTracker()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		gateway: gateway,
		tracker: tracker,
		logger:  logger,
		now:     time.Now,
	}
}

// Execute validates, bundles and submits requests as one batch.
// Submission errors are returned wrapped but otherwise unchanged; nothing is retried here.
// On failure the returned result carries whatever the gateway reported, such as the tx hash.
func (o *Orchestrator) Execute(ctx context.Context, requests []model.ActionRequest) (model.TransactionResult, error) {
	now := o.now()
	for i, req := range requests {
		if err := req.Validate(now); err != nil {
			return model.TransactionResult{}, fmt.Errorf("request %d: %w", i, err)
		}
		if req.Kind == model.ActionMint {
			continue
		}
		if _, err := Transition(o.tracker.Status(req.TokenID), req.Kind); err != nil {
			return model.TransactionResult{}, fmt.Errorf("request %d (token %s): %w", i, req.TokenID, err)
		}
	}

	batch, err := Bundle(requests)
	if err != nil {
		return model.TransactionResult{}, err
	}

	o.logger.Info("submitting batch",
		zap.Int("requests", len(requests)),
		zap.Int("calls", len(batch.Calls)),
		zap.String("native_value", batch.NativeValue.String()),
	)

	result, err := o.gateway.SubmitBatch(ctx, batch.Calls, batch.NativeValue)
	if err != nil {
		o.logger.Warn("batch failed", zap.String("tx", result.TxHash.Hex()), zap.Error(err))
		return result, fmt.Errorf("submit batch: %w", err)
	}
	if result.NativeValue == nil {
		result.NativeValue = new(big.Int).Set(batch.NativeValue)
	}
	result.Transitions = o.apply(batch.Calls, result)

	o.logger.Info("batch confirmed",
		zap.String("tx", result.TxHash.Hex()),
		zap.Uint64("block", result.BlockNumber),
		zap.Int("events", len(result.Events)),
		zap.Int("transitions", len(result.Transitions)),
	)
	return result, nil
}

func (o *Orchestrator) apply(calls []model.ActionRequest, result model.TransactionResult) []model.Transition {
	minted := result.MintedTokenIDs()
	var transitions []model.Transition
	for _, call := range calls {
		var tokenID *big.Int
		from := model.StatusOpen
		switch call.Kind {
		case model.ActionMint:
			from = model.StatusUnopened
			if len(minted) > 0 {
				tokenID, minted = minted[0], minted[1:]
			} else {
				o.logger.Warn("mint confirmed without a Transfer event", zap.String("tx", result.TxHash.Hex()))
			}
		case model.ActionIncrease, model.ActionDecrease, model.ActionCollect:
			tokenID = call.TokenID
			from = o.tracker.Status(tokenID)
		default:
			continue
		}

		to, err := Transition(from, call.Kind)
		if err != nil {
			o.logger.Warn("unexpected transition", zap.Error(err))
			continue
		}
		o.tracker.set(tokenID, to)
		transitions = append(transitions, model.Transition{TokenID: tokenID, Action: call.Kind, From: from, To: to})
	}

	// A Transfer to the zero address is a burn.
	for _, ev := range result.Events {
		if ev.Name == model.EventTransfer && ev.To == (common.Address{}) && ev.TokenID != nil {
			o.tracker.MarkClosed(ev.TokenID)
			o.logger.Info("position burned", zap.String("token_id", ev.TokenID.String()))
		}
	}
	return transitions
}

// Batch is the exact call list and native value sent in one transaction.
type Batch struct {
	Calls       []model.ActionRequest `json:"calls"`
	NativeValue *big.Int              `json:"native_value"`
}

// Bundle orders requests into an atomic batch. It inserts a Collect after any Decrease lacking one
// and appends the refund, unwrap and sweep steps needed when a leg is the wrapped native token.
func Bundle(requests []model.ActionRequest) (Batch, error) {
	if len(requests) == 0 {
		return Batch{}, fmt.Errorf("no requests to submit")
	}

	b := &bundler{value: new(big.Int)}
	for i, req := range requests {
		switch req.Kind {
		case model.ActionMint, model.ActionIncrease:
			if native := req.Pool.NativeIndex(); native >= 0 {
				if desired := desiredAt(req, native); desired != nil {
					b.value.Add(b.value, desired)
				}
				b.refund = true
			}
			b.calls = append(b.calls, req)
		case model.ActionDecrease:
			if req.TokenID == nil {
				return Batch{}, fmt.Errorf("request %d: decrease without token id", i)
			}
			b.calls = append(b.calls, req)
			if i+1 < len(requests) && isCollectFor(requests[i+1], req.TokenID) {
				continue
			}
			if err := b.addCollect(model.ActionRequest{
				Kind:       model.ActionCollect,
				Pool:       req.Pool,
				TokenID:    new(big.Int).Set(req.TokenID),
				Range:      req.Range,
				Amount0Max: new(big.Int).Set(model.MaxUint128),
				Amount1Max: new(big.Int).Set(model.MaxUint128),
				Recipient:  req.Recipient,
				Deadline:   req.Deadline,
			}); err != nil {
				return Batch{}, err
			}
		case model.ActionCollect:
			if err := b.addCollect(req); err != nil {
				return Batch{}, err
			}
		case model.ActionRefundNative, model.ActionUnwrapNative, model.ActionSweepToken:
			return Batch{}, fmt.Errorf("request %d: %s steps are added by the orchestrator", i, req.Kind)
		default:
			return Batch{}, fmt.Errorf("request %d: unsupported action kind %q", i, req.Kind)
		}
	}
	return b.finish(), nil
}

type bundler struct {
	calls    []model.ActionRequest
	value    *big.Int
	refund   bool
	unwrapTo *common.Address
	sweep    []common.Address
}

// addCollect routes native collects through the position manager so they can be unwrapped.
func (b *bundler) addCollect(req model.ActionRequest) error {
	native := req.Pool.NativeIndex()
	if native < 0 {
		b.calls = append(b.calls, req)
		return nil
	}

	recipient := req.Recipient
	if recipient == (common.Address{}) {
		return fmt.Errorf("collect %s: recipient is required for a native pool", req.TokenID)
	}
	if b.unwrapTo != nil && *b.unwrapTo != recipient {
		return fmt.Errorf("collect %s: native collects in one batch must share a recipient", req.TokenID)
	}
	b.unwrapTo = &recipient

	other := req.Pool.TokenAt(1 - native).Address
	if !containsAddress(b.sweep, other) {
		b.sweep = append(b.sweep, other)
	}

	req.Recipient = common.Address{}
	b.calls = append(b.calls, req)
	return nil
}

func (b *bundler) finish() Batch {
	calls := b.calls
	if b.unwrapTo != nil {
		calls = append(calls, model.ActionRequest{
			Kind:      model.ActionUnwrapNative,
			Minimum:   new(big.Int),
			Recipient: *b.unwrapTo,
		})
		for _, token := range b.sweep {
			calls = append(calls, model.ActionRequest{
				Kind:      model.ActionSweepToken,
				Token:     token,
				Minimum:   new(big.Int),
				Recipient: *b.unwrapTo,
			})
		}
	}
	if b.refund {
		calls = append(calls, model.ActionRequest{Kind: model.ActionRefundNative})
	}
	return Batch{Calls: calls, NativeValue: b.value}
}

func desiredAt(req model.ActionRequest, index int) *big.Int {
	if index == 0 {
		return req.Amount0Desired
	}
	return req.Amount1Desired
}

func isCollectFor(req model.ActionRequest, tokenID *big.Int) bool {
	return req.Kind == model.ActionCollect && req.TokenID != nil && tokenID != nil && req.TokenID.Cmp(tokenID) == 0
}

func containsAddress(list []common.Address, addr common.Address) bool {
	for _, item := range list {
		if item == addr {
			return true
		}
	}
	return false
}
