package server

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/aman-zulfiqar/solana-amm-pool/internal/amm"
	"github.com/aman-zulfiqar/solana-amm-pool/internal/fixedpoint"
	"github.com/aman-zulfiqar/solana-amm-pool/internal/flags"
	"github.com/aman-zulfiqar/solana-amm-pool/internal/registry"
	"github.com/aman-zulfiqar/solana-amm-pool/internal/storage"
	"github.com/gagliardetto/solana-go"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

const defaultSlippageBps = 50

// Handlers contains all dependencies for API endpoint handlers
type Handlers struct {
	Registry          *registry.Registry // Configured pools and their controllers
	Feed              storage.EventFeed  // Recent events (optional)
	Pauses            flags.Store        // Operator pause switches (optional)
	DevMode           bool               // Enable detailed error responses in development
	Logger            *logrus.Logger     // Structured logger
	MaxPriceImpactBps uint16             // Quote rejection threshold, 0 disables
	RequestTimeout    time.Duration      // Bound on store round-trips per request
}

// err returns a standardized JSON error response
// In dev mode, includes additional error details for debugging
func (h *Handlers) err(c echo.Context, code int, msg string, details any) error {
	resp := ErrorResponse{Error: msg, Code: code}
	if h.DevMode && details != nil {
		resp.Details = details
	}
	return c.JSON(code, resp)
}

// fail renders a domain error with its mapped status and kind.
func (h *Handlers) fail(c echo.Context, op string, err error) error {
	kind, code := classify(err)
	resp := ErrorResponse{Error: err.Error(), Code: code, Kind: kind}
	if code == http.StatusInternalServerError {
		h.log().WithError(err).WithField("op", op).Error("request failed")
		resp.Error = op + " failed"
		if h.DevMode {
			resp.Details = err.Error()
		}
	}
	return c.JSON(code, resp)
}

func (h *Handlers) log() *logrus.Logger {
	if h.Logger == nil {
		return logrus.StandardLogger()
	}
	return h.Logger
}

// withTimeout creates a context with timeout, defaulting to 10 seconds if duration <= 0
func (h *Handlers) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	d := h.RequestTimeout
	if d <= 0 {
		d = 10 * time.Second
	}
	return context.WithTimeout(ctx, d)
}

func (h *Handlers) pool(c echo.Context) (*registry.Pool, error) {
	return h.Registry.FindPoolByName(c.Param("pool"))
}

func parseDepositor(s string) (amm.Depositor, error) {
	return solana.PublicKeyFromBase58(strings.TrimSpace(s))
}

// Health returns a simple health check endpoint
func (h *Handlers) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{OK: true, Pools: h.Registry.PoolCount()})
}

// ListPools returns every configured pool with its current state.
func (h *Handlers) ListPools(c echo.Context) error {
	pools := h.Registry.GetAllPools()
	items := make([]PoolSummary, 0, len(pools))
	for _, p := range pools {
		items = append(items, PoolSummary{
			Name:       p.Name,
			TokenMintA: p.TokenMintA.String(),
			TokenMintB: p.TokenMintB.String(),
			State:      p.Controller.State(),
		})
	}
	return c.JSON(http.StatusOK, map[string]any{"items": items})
}

// FindPool resolves the pool trading the mint_a/mint_b pair, in either order.
func (h *Handlers) FindPool(c echo.Context) error {
	mintA, errA := solana.PublicKeyFromBase58(strings.TrimSpace(c.QueryParam("mint_a")))
	mintB, errB := solana.PublicKeyFromBase58(strings.TrimSpace(c.QueryParam("mint_b")))
	if errA != nil || errB != nil {
		return h.err(c, http.StatusBadRequest, "mint_a and mint_b must be base58 public keys", nil)
	}
	p, err := h.Registry.FindPoolByMints(mintA, mintB)
	if err != nil {
		return h.fail(c, "find pool", err)
	}
	return c.JSON(http.StatusOK, p.Controller.Info())
}

func (h *Handlers) GetPool(c echo.Context) error {
	p, err := h.pool(c)
	if err != nil {
		return h.fail(c, "get pool", err)
	}
	return c.JSON(http.StatusOK, p.Controller.Info())
}

// InitializeVault creates the vault for the :token side of the pool.
func (h *Handlers) InitializeVault(c echo.Context) error {
	p, err := h.pool(c)
	if err != nil {
		return h.fail(c, "initialize vault", err)
	}
	token, err := p.ParseToken(c.Param("token"))
	if err != nil {
		return h.fail(c, "initialize vault", err)
	}

	ctx, cancel := h.withTimeout(c.Request().Context())
	defer cancel()

	if err := p.Controller.InitializeVault(ctx, token); err != nil {
		return h.fail(c, "initialize vault", err)
	}
	return c.JSON(http.StatusCreated, p.Controller.Info())
}

func (h *Handlers) InitializePosition(c echo.Context) error {
	p, err := h.pool(c)
	if err != nil {
		return h.fail(c, "initialize position", err)
	}
	var req PositionRequest
	if err := c.Bind(&req); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid json", nil)
	}
	d, err := parseDepositor(req.Depositor)
	if err != nil {
		return h.err(c, http.StatusBadRequest, "invalid depositor", map[string]any{"depositor": err.Error()})
	}

	ctx, cancel := h.withTimeout(c.Request().Context())
	defer cancel()

	pos, err := p.Controller.InitializePosition(ctx, d)
	if err != nil {
		return h.fail(c, "initialize position", err)
	}
	return c.JSON(http.StatusCreated, pos)
}

func (h *Handlers) GetPosition(c echo.Context) error {
	p, err := h.pool(c)
	if err != nil {
		return h.fail(c, "get position", err)
	}
	d, err := parseDepositor(c.Param("depositor"))
	if err != nil {
		return h.err(c, http.StatusBadRequest, "invalid depositor", map[string]any{"depositor": err.Error()})
	}
	pos, err := p.Controller.Position(d)
	if err != nil {
		return h.fail(c, "get position", err)
	}
	return c.JSON(http.StatusOK, pos)
}

func (h *Handlers) ListPositions(c echo.Context) error {
	p, err := h.pool(c)
	if err != nil {
		return h.fail(c, "list positions", err)
	}
	return c.JSON(http.StatusOK, map[string]any{"items": p.Controller.Positions()})
}

func (h *Handlers) AddLiquidity(c echo.Context) error {
	return h.liquidity(c, "add liquidity", (*amm.Controller).AddLiquidity)
}

func (h *Handlers) RemoveLiquidity(c echo.Context) error {
	return h.liquidity(c, "remove liquidity", (*amm.Controller).RemoveLiquidity)
}

type liquidityOp func(*amm.Controller, context.Context, amm.Depositor, amm.Amount) (amm.LiquidityResult, error)

func (h *Handlers) liquidity(c echo.Context, op string, fn liquidityOp) error {
	p, err := h.pool(c)
	if err != nil {
		return h.fail(c, op, err)
	}
	var req LiquidityRequest
	if err := c.Bind(&req); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid json", map[string]any{"err": err.Error()})
	}
	d, err := parseDepositor(req.Depositor)
	if err != nil {
		return h.err(c, http.StatusBadRequest, "invalid depositor", map[string]any{"depositor": err.Error()})
	}

	ctx, cancel := h.withTimeout(c.Request().Context())
	defer cancel()

	res, err := fn(p.Controller, ctx, d, req.Amount)
	if err != nil {
		return h.fail(c, op, err)
	}
	return c.JSON(http.StatusOK, res)
}

// Swap executes a swap with the caller's minimum output.
func (h *Handlers) Swap(c echo.Context) error {
	p, err := h.pool(c)
	if err != nil {
		return h.fail(c, "swap", err)
	}
	var req SwapRequest
	if err := c.Bind(&req); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid json", map[string]any{"err": err.Error()})
	}
	token, err := p.ParseToken(req.InputToken)
	if err != nil {
		return h.fail(c, "swap", err)
	}

	ctx, cancel := h.withTimeout(c.Request().Context())
	defer cancel()

	res, err := p.Controller.Swap(ctx, amm.SwapRequest{
		InputToken:    token,
		InputAmount:   req.InputAmount,
		MinimumOutput: req.MinimumOutput,
	})
	if err != nil {
		return h.fail(c, "swap", err)
	}
	return c.JSON(http.StatusOK, res)
}

// Quote dry-runs a swap and derives a minimum output from slippage_bps
// (default 50). Quotes above the configured price impact are rejected.
func (h *Handlers) Quote(c echo.Context) error {
	p, err := h.pool(c)
	if err != nil {
		return h.fail(c, "quote", err)
	}
	token, err := p.ParseToken(c.QueryParam("input_token"))
	if err != nil {
		return h.fail(c, "quote", err)
	}
	amount, err := fixedpoint.ParseAmount(c.QueryParam("amount"))
	if err != nil {
		return h.fail(c, "quote", err)
	}
	slippage := uint16(defaultSlippageBps)
	if s := c.QueryParam("slippage_bps"); s != "" {
		n, err := strconv.ParseUint(s, 10, 16)
		if err != nil || n > amm.BpsDenominator {
			return h.err(c, http.StatusBadRequest, "invalid slippage_bps", map[string]any{"slippage_bps": "min 0 max 10000"})
		}
		slippage = uint16(n)
	}

	// One snapshot prices both the output and its impact
	res, err := p.Controller.QuoteSwap(amm.SwapRequest{InputToken: token, InputAmount: amount})
	if err != nil {
		return h.fail(c, "quote", err)
	}
	impact := res.PriceImpact()
	if h.MaxPriceImpactBps > 0 {
		if err := amm.ValidatePriceImpact(impact, h.MaxPriceImpactBps); err != nil {
			return h.fail(c, "quote", err)
		}
	}

	return c.JSON(http.StatusOK, QuoteResponse{
		SwapResult:    res,
		SlippageBps:   slippage,
		MinimumOutput: amm.MinimumOutput(res.OutputAmount, slippage),
		PriceImpact:   impact,
		FeeBps:        amm.FeeBps(p.Fee),
	})
}

func (h *Handlers) Price(c echo.Context) error {
	p, err := h.pool(c)
	if err != nil {
		return h.fail(c, "price", err)
	}
	aInB, bInA, err := p.Controller.QuotePrice()
	if err != nil {
		return h.fail(c, "price", err)
	}
	return c.JSON(http.StatusOK, PriceResponse{Pool: p.Name, AInB: aInB, BInA: bInA, State: p.Controller.State().String()})
}

func (h *Handlers) PriceImpact(c echo.Context) error {
	p, err := h.pool(c)
	if err != nil {
		return h.fail(c, "price impact", err)
	}
	token, err := p.ParseToken(c.QueryParam("input_token"))
	if err != nil {
		return h.fail(c, "price impact", err)
	}
	amount, err := fixedpoint.ParseAmount(c.QueryParam("amount"))
	if err != nil {
		return h.fail(c, "price impact", err)
	}
	impact, err := p.Controller.QuotePriceImpact(token, amount)
	if err != nil {
		return h.fail(c, "price impact", err)
	}
	return c.JSON(http.StatusOK, ImpactResponse{Pool: p.Name, InputToken: token, Amount: amount, PriceImpact: impact})
}

// RecentEvents returns the most recent events for a pool with optional limit parameter
// Accepts limit query parameter (default: 50, range: 1-100)
func (h *Handlers) RecentEvents(c echo.Context) error {
	if h.Feed == nil {
		return h.err(c, http.StatusServiceUnavailable, "event feed is not configured", nil)
	}
	p, err := h.pool(c)
	if err != nil {
		return h.fail(c, "recent events", err)
	}

	limit := 50
	if s := c.QueryParam("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			return h.err(c, http.StatusBadRequest, "invalid limit", map[string]any{"limit": "must be an integer"})
		}
		limit = n
	}
	if limit < 1 || limit > 100 {
		return h.err(c, http.StatusBadRequest, "invalid limit", map[string]any{"limit": "min 1 max 100"})
	}

	ctx, cancel := h.withTimeout(c.Request().Context())
	defer cancel()

	items, err := h.Feed.RecentEvents(ctx, p.Name, int64(limit))
	if err != nil {
		return h.fail(c, "recent events", err)
	}
	return c.JSON(http.StatusOK, map[string]any{"items": items})
}

// requireOpen rejects requests to a pool whose scope is paused.
func (h *Handlers) requireOpen(scope flags.Scope) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if h.Pauses == nil {
				return next(c)
			}
			ctx, cancel := h.withTimeout(c.Request().Context())
			defer cancel()

			p, err := h.Pauses.Get(ctx, c.Param("pool"))
			if err != nil {
				return h.fail(c, string(scope), err)
			}
			if p.Blocks(scope) {
				return h.fail(c, string(scope), fmt.Errorf("%s %w for %s: %s", p.Pool, flags.ErrPaused, scope, p.Reason))
			}
			return next(c)
		}
	}
}

func (h *Handlers) GetPause(c echo.Context) error {
	if h.Pauses == nil {
		return h.err(c, http.StatusServiceUnavailable, "pause store is not configured", nil)
	}
	p, err := h.pool(c)
	if err != nil {
		return h.fail(c, "get pause", err)
	}

	ctx, cancel := h.withTimeout(c.Request().Context())
	defer cancel()

	out, err := h.Pauses.Get(ctx, p.Name)
	if err != nil {
		return h.fail(c, "get pause", err)
	}
	return c.JSON(http.StatusOK, out)
}

// SetPause replaces the pool's pause switches. Sending both scopes false
// lifts the pause.
func (h *Handlers) SetPause(c echo.Context) error {
	if h.Pauses == nil {
		return h.err(c, http.StatusServiceUnavailable, "pause store is not configured", nil)
	}
	p, err := h.pool(c)
	if err != nil {
		return h.fail(c, "set pause", err)
	}
	var req PauseRequest
	if err := c.Bind(&req); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid json", nil)
	}

	ctx, cancel := h.withTimeout(c.Request().Context())
	defer cancel()

	out, err := h.Pauses.Set(ctx, flags.Pause{
		Pool:      p.Name,
		Swaps:     req.Swaps,
		Liquidity: req.Liquidity,
		Reason:    strings.TrimSpace(req.Reason),
	})
	if err != nil {
		return h.fail(c, "set pause", err)
	}
	h.log().WithFields(logrus.Fields{
		"pool":      out.Pool,
		"swaps":     out.Swaps,
		"liquidity": out.Liquidity,
		"reason":    out.Reason,
	}).Warn("pool pause updated")
	return c.JSON(http.StatusOK, out)
}
