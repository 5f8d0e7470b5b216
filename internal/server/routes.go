package server

import (
	"net/http"
	"time"

	"github.com/aman-zulfiqar/solana-amm-pool/internal/flags"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"
)

// RegisterRoutes configures all API routes, middleware, and error handlers
func RegisterRoutes(e *echo.Echo, h *Handlers, cfg ServerConfig) {
	e.HTTPErrorHandler = NotFoundJSON()

	e.Use(SetJSONContentType)
	e.Use(SetNoCacheHeaders)

	if cfg.APIKey != "" {
		e.Use(middleware.KeyAuthWithConfig(middleware.KeyAuthConfig{
			KeyLookup: "header:X-API-Key",
			Validator: func(key string, c echo.Context) (bool, error) {
				return key == cfg.APIKey, nil
			},
		}))
	}

	v1 := e.Group("/v1")
	v1.GET("/health", h.Health)
	v1.GET("/pools", h.ListPools)
	v1.GET("/pools/lookup", h.FindPool)

	pool := v1.Group("/pools/:pool")
	pool.GET("", h.GetPool)
	pool.POST("/vaults/:token", h.InitializeVault)
	pool.POST("/positions", h.InitializePosition)
	pool.GET("/positions", h.ListPositions)
	pool.GET("/positions/:depositor", h.GetPosition)
	pool.POST("/liquidity/add", h.AddLiquidity, h.requireOpen(flags.ScopeLiquidity))
	pool.POST("/liquidity/remove", h.RemoveLiquidity, h.requireOpen(flags.ScopeLiquidity))
	pool.GET("/quote", h.Quote)
	pool.GET("/price", h.Price)
	pool.GET("/impact", h.PriceImpact)
	pool.GET("/events", h.RecentEvents)
	pool.GET("/pause", h.GetPause)
	pool.PUT("/pause", h.SetPause)

	swapRate := cfg.SwapRateLimit
	if swapRate <= 0 {
		swapRate = 5
	}
	swapBurst := cfg.SwapRateBurst
	if swapBurst <= 0 {
		swapBurst = 10
	}
	pool.POST("/swap", h.Swap, h.requireOpen(flags.ScopeSwaps), middleware.RateLimiter(middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
		Rate:      rate.Limit(swapRate),
		Burst:     swapBurst,
		ExpiresIn: 2 * time.Minute,
	})))

	e.RouteNotFound("/*", func(c echo.Context) error {
		return c.JSON(http.StatusNotFound, ErrorResponse{Error: "not found", Code: http.StatusNotFound})
	})
}
