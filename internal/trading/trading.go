// Package trading places the recurring accumulation buys.
package trading

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/r0nny8000/cb0t/internal/asset"
	"github.com/r0nny8000/cb0t/internal/kraken"
)

// productionEnv is the only environment in which orders are actually sent.
const productionEnv = "PROD"

// Exchange covers the order-side calls the accumulator needs.
type Exchange interface {
	GetAssetPairs(ctx context.Context, pair string) (map[string]kraken.AssetPair, error)
	AddOrder(ctx context.Context, pair, side, orderType string, volume float64) (kraken.AddOrderResponse, error)
}

// Service accumulates assets with ATH-accelerated market buys.
type Service struct {
	exchange Exchange
	env      string
	log      *slog.Logger
}

// New returns a Service for the given environment flag. log may be nil.
func New(exchange Exchange, env string, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{exchange: exchange, env: env, log: log}
}

// Accumulate buys the asset for the given nominal EUR amount, accelerated
// by the distance to the all-time high. It reports whether an order was
// placed. Every failure, including the deliberate non-production guard, is
// contained here: logged with the pair and a condensed message, never
// propagated, so a scheduled run continues with the next asset.
func (s *Service) Accumulate(ctx context.Context, a *asset.Asset, euro float64) bool {
	if err := s.accumulate(ctx, a, euro); err != nil {
		s.log.Error("accumulate failed", "pair", a.Pair, "error", condense(err.Error()))
		return false
	}
	return true
}

func (s *Service) accumulate(ctx context.Context, a *asset.Asset, euro float64) error {
	s.log.Info("accumulating", "pair", a.Pair, "euro", euro)

	acceleratedEuro, err := a.Accelerate(ctx, euro)
	if err != nil {
		return err
	}
	price, err := a.Price(ctx)
	if err != nil {
		return err
	}
	if price <= 0 {
		return fmt.Errorf("invalid price %v", price)
	}
	volume := math.Round(acceleratedEuro/price*1e8) / 1e8

	pairs, err := s.exchange.GetAssetPairs(ctx, a.Pair)
	if err != nil {
		return err
	}
	pair, ok := pairs[a.Pair]
	if !ok {
		return fmt.Errorf("no asset pair information for %s", a.Pair)
	}
	if volume < pair.OrderMin {
		s.log.Info("volume below order minimum, increasing",
			"pair", a.Pair, "volume", volume, "ordermin", pair.OrderMin)
		volume = pair.OrderMin
	}

	s.log.Info("placing order", "pair", a.Pair, "volume", volume, "euro", acceleratedEuro)

	if s.env != productionEnv {
		return fmt.Errorf("not in production environment: %s", s.env)
	}

	tx, err := s.exchange.AddOrder(ctx, a.Pair, "buy", "market", volume)
	if err != nil {
		return err
	}
	s.log.Info("order created", "pair", a.Pair, "order", tx.Description.Order, "txid", strings.Join(tx.TransactionIDs, ","))
	return nil
}

func condense(msg string) string {
	return strings.Join(strings.Fields(msg), " ")
}
