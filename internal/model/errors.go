package model

import "errors"

var (
	// ErrInvalidPrice is returned for non-positive prices or prices whose tick falls outside the global range.
	ErrInvalidPrice = errors.New("invalid price")

	// ErrInvalidSpacing is returned when a tick spacing is zero or negative.
	ErrInvalidSpacing = errors.New("invalid tick spacing")

	// ErrTickOutOfRange is returned for ticks outside [MinTick, MaxTick].
	ErrTickOutOfRange = errors.New("tick out of range")

	// ErrDegenerateRange is returned when range math is undefined or a range collapses to a point.
	ErrDegenerateRange = errors.New("degenerate range")

	// ErrInsufficientInput is returned when a derived amount or liquidity is not positive.
	ErrInsufficientInput = errors.New("insufficient input")

	// ErrStaleQuote is returned when the pool snapshot is too old to trust.
	ErrStaleQuote = errors.New("stale quote")

	// ErrSlippageExceeded is reported when executed amounts fall outside the committed bounds.
	ErrSlippageExceeded = errors.New("slippage exceeded")

	// ErrBatchReverted is returned for any failure inside an atomic submission.
	ErrBatchReverted = errors.New("batch reverted")

	// ErrDeadlineExpired is returned when a request is submitted at or after its deadline.
	ErrDeadlineExpired = errors.New("deadline expired")

	// ErrInvalidSlippage is returned for slippage tolerances outside [0, 1).
	ErrInvalidSlippage = errors.New("invalid slippage tolerance")

	// ErrInvalidPercentage is returned for removal percentages outside (0, 100].
	ErrInvalidPercentage = errors.New("invalid percentage")

	// ErrPositionNotOpen is returned for lifecycle transitions the position status does not allow.
	ErrPositionNotOpen = errors.New("position not open")
)
