package amm

import (
	"errors"

	"github.com/aman-zulfiqar/solana-amm-pool/internal/fixedpoint"
)

var (
	ErrAlreadyInitialized    = errors.New("already initialized")
	ErrPositionNotFound      = errors.New("liquidity position not found")
	ErrInsufficientStake     = errors.New("insufficient stake")
	ErrInsufficientReserve   = errors.New("insufficient reserve")
	ErrInsufficientLiquidity = errors.New("insufficient liquidity")
	ErrSlippageExceeded      = errors.New("slippage exceeded")
	ErrPoolNotActive         = errors.New("pool not active")
	ErrInvalidAmount         = errors.New("invalid amount")
	ErrInvalidToken          = errors.New("invalid token")
	ErrInvalidFee            = errors.New("invalid fee")
	ErrWithdrawLocked        = errors.New("withdrawal locked")
	ErrPriceImpactTooHigh    = errors.New("price impact too high")

	// ErrStateConflict is returned by a StateStore when another writer
	// committed the pool since this controller last loaded it.
	ErrStateConflict = errors.New("pool state changed by another writer")

	// Arithmetic failures come from fixedpoint and are matched with errors.Is.
	ErrArithmeticOverflow = fixedpoint.ErrArithmeticOverflow
	ErrDivisionByZero     = fixedpoint.ErrDivisionByZero
)
