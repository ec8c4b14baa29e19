// Package scheduler runs the periodic accumulation job.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/r0nny8000/cb0t/internal/asset"
	"github.com/r0nny8000/cb0t/internal/config"
)

// Accumulator places an accelerated buy for an asset and reports whether an
// order was placed.
type Accumulator interface {
	Accumulate(ctx context.Context, a *asset.Asset, euro float64) bool
}

// Scheduler evaluates the configured signals on a fixed interval and
// triggers accumulation when they fire.
type Scheduler struct {
	assets   []config.AssetConfig
	market   asset.MarketData
	trader   Accumulator
	interval time.Duration
	log      *slog.Logger
}

// New returns a Scheduler. log may be nil.
func New(assets []config.AssetConfig, market asset.MarketData, trader Accumulator, interval time.Duration, log *slog.Logger) *Scheduler {
	if log == nil {
		log = slog.Default()
	}
	return &Scheduler{assets: assets, market: market, trader: trader, interval: interval, log: log}
}

// Run ticks until the context is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	s.log.Info("scheduler started", "interval", s.interval, "assets", len(s.assets))
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.log.Info("scheduler stopped")
			return
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick evaluates every configured asset once and returns the number of
// assets accumulated. Each asset gets a fresh Asset instance so no derived
// column cache leaks across invocations; a failing signal evaluation skips
// that asset only.
func (s *Scheduler) Tick(ctx context.Context) int {
	accumulated := 0
	for _, ac := range s.assets {
		if ac.AmountEUR <= 0 {
			continue
		}
		a := asset.New(ac.Pair, s.market, s.log)

		buy, err := a.RSIBelow(ctx, ac.RSIThreshold)
		if err != nil {
			s.log.Error("signal evaluation failed", "pair", ac.Pair, "error", err)
			continue
		}
		if !buy {
			buy, err = a.BelowWeeklySMA(ctx, ac.SMAWindow)
			if err != nil {
				s.log.Error("signal evaluation failed", "pair", ac.Pair, "error", err)
				continue
			}
		}
		if !buy {
			continue
		}
		if s.trader.Accumulate(ctx, a, ac.AmountEUR) {
			accumulated++
		}
	}
	s.log.Info("accumulation tick finished", "accumulated", accumulated)
	return accumulated
}
