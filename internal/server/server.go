// Package server exposes the read-only HTML pages: ticker snapshot,
// account balance with unrealized P&L, and the SMA backtest.
//
// The package is split across server.go (handler struct, routing),
// handler.go (request handlers) and middleware.go.
package server

import (
	"context"
	"embed"
	"errors"
	"html/template"
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/r0nny8000/cb0t/internal/asset"
	"github.com/r0nny8000/cb0t/internal/config"
	"github.com/r0nny8000/cb0t/internal/kraken"
)

//go:embed templates/*.html
var templatesFS embed.FS

const (
	serviceName    = "cb0t"
	serviceVersion = "1.0.0"

	defaultPair      = "XXBTZEUR"
	defaultSMAWindow = 200
	chartSMAWindow   = 50
	chartTail        = 365

	requestIDContextKey = "request_id"
	requestIDHeaderKey  = "X-Request-ID"
)

// Exchange covers the market data and account calls the pages need.
type Exchange interface {
	GetOHLC(ctx context.Context, pair string, intervalMinutes, since int64) ([]kraken.Candle, error)
	GetTicker(ctx context.Context, pair string) (kraken.Ticker, error)
	GetAssetPairs(ctx context.Context, pair string) (map[string]kraken.AssetPair, error)
	GetBalance(ctx context.Context) (map[string]float64, error)
}

// CostBasisCalculator reconstructs the cost basis of a held amount. A nil
// result with nil error means the history was unavailable for the pair.
type CostBasisCalculator interface {
	Calculate(ctx context.Context, pair string, heldAmount decimal.Decimal) (*decimal.Decimal, error)
}

// Handler serves the HTTP surface.
type Handler struct {
	exchange  Exchange
	costBasis CostBasisCalculator
	cfg       *config.Config
	log       *slog.Logger
}

// New returns a Handler. log may be nil.
func New(exchange Exchange, costBasis CostBasisCalculator, cfg *config.Config, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{exchange: exchange, costBasis: costBasis, cfg: cfg, log: log}
}

// Router configures the gin engine with all routes and middleware.
func (h *Handler) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(requestIDMiddleware())
	router.Use(requestLogMiddleware(h.log))
	router.Use(gin.Recovery())
	router.SetHTMLTemplate(template.Must(template.ParseFS(templatesFS, "templates/*.html")))

	router.GET("/", h.Index)
	router.GET("/ticker", h.Ticker)
	router.GET("/balance", h.Balance)
	router.GET("/simulations", h.Simulations)
	router.GET("/env", h.Env)
	router.GET("/health", h.Health)

	return router
}

// isAssetDataError reports whether the error belongs to the asset data
// category, which is surfaced to the caller with its raw message.
func isAssetDataError(err error) bool {
	var assetErr *asset.Error
	return errors.As(err, &assetErr) ||
		errors.Is(err, kraken.ErrUnknownAsset) ||
		errors.Is(err, kraken.ErrUnknownAssetPair) ||
		errors.Is(err, kraken.ErrInvalidArguments)
}
