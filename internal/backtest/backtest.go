// Package backtest simulates the weekly SMA accumulation strategy over
// historical candles.
package backtest

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/thrasher-corp/gct-ta/indicators"

	"github.com/r0nny8000/cb0t/internal/kraken"
)

var (
	errNotEnoughData = errors.New("not enough candles for the sma window")
	errInvalidInput  = errors.New("window and amount must be positive")
)

// StrategyResult aggregates one simulated strategy.
type StrategyResult struct {
	Buys       int
	Invested   decimal.Decimal
	Units      decimal.Decimal
	FinalValue decimal.Decimal
	ReturnPct  decimal.Decimal
}

// Result compares plain periodic buying against buying only below the SMA.
type Result struct {
	Window      int
	Amount      float64
	Candles     int
	DCA         StrategyResult
	BelowSMA    StrategyResult
	FirstCandle int64
	LastCandle  int64
}

// Run simulates buying `amount` quote currency at every candle close (plain
// DCA) versus only when the close is below the window-SMA, over the portion
// of the series where the SMA is defined. Candles must be ordered oldest
// first.
func Run(candles []kraken.Candle, window int, amount float64) (*Result, error) {
	if window <= 0 || amount <= 0 {
		return nil, errInvalidInput
	}
	if len(candles) < window {
		return nil, fmt.Errorf("%w: have %d, need %d", errNotEnoughData, len(candles), window)
	}

	closes := make([]float64, len(candles))
	for i := range candles {
		closes[i] = candles[i].Close
	}
	sma := indicators.SMA(closes, window)

	amt := decimal.NewFromFloat(amount)
	var dca, filtered StrategyResult
	dca.Invested = decimal.Zero
	dca.Units = decimal.Zero
	filtered.Invested = decimal.Zero
	filtered.Units = decimal.Zero

	// Entries before window-1 are SMA warm-up and excluded from both
	// strategies so the comparison is fair.
	for i := window - 1; i < len(closes); i++ {
		price := decimal.NewFromFloat(closes[i])
		if price.Sign() <= 0 {
			continue
		}
		dca.Buys++
		dca.Invested = dca.Invested.Add(amt)
		dca.Units = dca.Units.Add(amt.Div(price))

		if closes[i] < sma[i] {
			filtered.Buys++
			filtered.Invested = filtered.Invested.Add(amt)
			filtered.Units = filtered.Units.Add(amt.Div(price))
		}
	}

	last := decimal.NewFromFloat(closes[len(closes)-1])
	finish(&dca, last)
	finish(&filtered, last)

	return &Result{
		Window:      window,
		Amount:      amount,
		Candles:     len(candles),
		DCA:         dca,
		BelowSMA:    filtered,
		FirstCandle: candles[0].Time,
		LastCandle:  candles[len(candles)-1].Time,
	}, nil
}

func finish(r *StrategyResult, lastClose decimal.Decimal) {
	r.FinalValue = r.Units.Mul(lastClose).Round(2)
	if r.Invested.Sign() > 0 {
		r.ReturnPct = r.FinalValue.Sub(r.Invested).
			Div(r.Invested).
			Mul(decimal.NewFromInt(100)).
			Round(2)
	} else {
		r.ReturnPct = decimal.Zero
	}
	r.Invested = r.Invested.Round(2)
	r.Units = r.Units.Round(8)
}
