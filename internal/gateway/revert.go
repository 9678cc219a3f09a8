package gateway

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"

	"liquidityPilot/internal/model"
)

// Revert strings raised by the position manager.
const (
	reasonSlippage = "Price slippage check"
	reasonDeadline = "Transaction too old"
)

// isRevert reports whether err came from contract execution rather than transport.
func isRevert(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "execution reverted")
}

// revertReason extracts the Error(string) payload from an RPC error when present.
func revertReason(err error) string {
	var dataErr rpc.DataError
	if errors.As(err, &dataErr) {
		if data, ok := dataErr.ErrorData().(string); ok {
			if raw, decodeErr := hexutil.Decode(data); decodeErr == nil {
				if reason, unpackErr := abi.UnpackRevert(raw); unpackErr == nil {
					return reason
				}
			}
		}
	}
	return err.Error()
}

// classifyRevert maps a revert reason onto the error taxonomy. Every result wraps ErrBatchReverted.
func classifyRevert(reason string) error {
	switch {
	case strings.Contains(reason, reasonSlippage):
		return fmt.Errorf("%w: %w: %s", model.ErrBatchReverted, model.ErrSlippageExceeded, reason)
	case strings.Contains(reason, reasonDeadline):
		return fmt.Errorf("%w: %w: %s", model.ErrBatchReverted, model.ErrDeadlineExpired, reason)
	default:
		return fmt.Errorf("%w: %s", model.ErrBatchReverted, reason)
	}
}
