package server

import (
	"errors"
	"net/http"

	"github.com/aman-zulfiqar/solana-amm-pool/internal/amm"
	"github.com/aman-zulfiqar/solana-amm-pool/internal/fixedpoint"
	"github.com/aman-zulfiqar/solana-amm-pool/internal/flags"
	"github.com/aman-zulfiqar/solana-amm-pool/internal/registry"
	"github.com/labstack/echo/v4"
)

type errorKind struct {
	err  error
	kind string
	code int
}

// Checked in order; the first match wins.
var errorKinds = []errorKind{
	{registry.ErrPoolNotFound, "pool_not_found", http.StatusNotFound},
	{flags.ErrPaused, "pool_paused", http.StatusServiceUnavailable},
	{flags.ErrInvalidPool, "pool_not_found", http.StatusNotFound},
	{amm.ErrAlreadyInitialized, "already_initialized", http.StatusConflict},
	{amm.ErrPositionNotFound, "position_not_found", http.StatusNotFound},
	{amm.ErrInsufficientStake, "insufficient_stake", http.StatusUnprocessableEntity},
	{amm.ErrInsufficientReserve, "insufficient_reserve", http.StatusUnprocessableEntity},
	{amm.ErrInsufficientLiquidity, "insufficient_liquidity", http.StatusUnprocessableEntity},
	{amm.ErrSlippageExceeded, "slippage_exceeded", http.StatusConflict},
	{amm.ErrPoolNotActive, "pool_not_active", http.StatusConflict},
	{amm.ErrWithdrawLocked, "withdraw_locked", http.StatusLocked},
	{amm.ErrPriceImpactTooHigh, "price_impact_too_high", http.StatusUnprocessableEntity},
	{amm.ErrStateConflict, "state_conflict", http.StatusConflict},
	{fixedpoint.ErrArithmeticOverflow, "arithmetic_overflow", http.StatusBadRequest},
	{fixedpoint.ErrDivisionByZero, "division_by_zero", http.StatusBadRequest},
	{fixedpoint.ErrMalformedAmount, "invalid_amount", http.StatusBadRequest},
	{amm.ErrInvalidAmount, "invalid_amount", http.StatusBadRequest},
	{amm.ErrInvalidToken, "invalid_token", http.StatusBadRequest},
}

// classify maps a domain error to its kind and HTTP status.
func classify(err error) (string, int) {
	for _, k := range errorKinds {
		if errors.Is(err, k.err) {
			return k.kind, k.code
		}
	}
	return "internal", http.StatusInternalServerError
}

// NotFoundJSON returns a custom HTTP error handler that returns JSON responses
// This ensures all errors (including 404s) have consistent JSON format
func NotFoundJSON() echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		// Don't send response if already committed
		if c.Response().Committed {
			return
		}

		var he *echo.HTTPError
		if errors.As(err, &he) {
			_ = c.JSON(he.Code, ErrorResponse{
				Error: http.StatusText(he.Code),
				Code:  he.Code,
			})
			return
		}

		if kind, code := classify(err); code != http.StatusInternalServerError {
			_ = c.JSON(code, ErrorResponse{Error: err.Error(), Code: code, Kind: kind})
			return
		}

		_ = c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: "internal server error",
			Code:  http.StatusInternalServerError,
			Kind:  "internal",
		})
	}
}
