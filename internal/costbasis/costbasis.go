// Package costbasis reconstructs how much was historically paid, fees
// included, for a currently held amount of an asset by walking the full
// trade history oldest first.
package costbasis

import (
	"context"
	"errors"
	"log/slog"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/r0nny8000/cb0t/internal/kraken"
)

// pageSize is the fixed Kraken trade history page size. A page with fewer
// entries signals the final page.
const pageSize = 50

// takerFeeUplift approximates the flat taker fee that would be paid to
// liquidate the position.
var takerFeeUplift = decimal.RequireFromString("1.004")

// TradeHistorian pages through the account's trade history.
type TradeHistorian interface {
	GetTradesHistory(ctx context.Context, ofs int64) (kraken.TradesHistory, error)
}

// Service reconstructs cost bases from a trade history provider.
type Service struct {
	trades TradeHistorian
	log    *slog.Logger
}

// New returns a Service. log may be nil.
func New(trades TradeHistorian, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{trades: trades, log: log}
}

// Calculate returns the total cost, in quote currency and including buy
// fees, of acquiring exactly heldAmount of the pair, reconstructed by FIFO
// consumption of the trade history. The figure carries the taker-fee uplift
// and is rounded to 2 decimal places.
//
// When the trade history provider reports an unknown asset the result is
// nil with no error; the condition is logged and recovered locally. Other
// errors propagate.
func (s *Service) Calculate(ctx context.Context, pair string, heldAmount decimal.Decimal) (*decimal.Decimal, error) {
	all, err := s.fetchAll(ctx)
	if err != nil {
		if errors.Is(err, kraken.ErrUnknownAsset) || errors.Is(err, kraken.ErrUnknownAssetPair) {
			s.log.Error("trade history unavailable", "pair", pair, "error", err)
			return nil, nil
		}
		return nil, err
	}

	trades := chronological(all, pair)
	s.log.Info("calculating cost basis", "pair", pair, "amount", heldAmount, "trades", len(trades))

	remaining := heldAmount
	cost := decimal.Zero

	for _, t := range trades {
		switch t.Type {
		case "buy":
			gross := t.Cost.Add(t.Fee)
			if remaining.LessThan(t.Vol) {
				// The trade is larger than what is still unaccounted for:
				// consume a pro-rata fraction and stop.
				cost = cost.Add(gross.Mul(remaining).Div(t.Vol))
				remaining = decimal.Zero
			} else {
				cost = cost.Add(gross)
				remaining = remaining.Sub(t.Vol)
			}
		case "sell":
			// A sale while holding means that much less of the earlier
			// buys is still held: it returns basis, but its own fee was a
			// real cost incurred on the position.
			remaining = remaining.Add(t.Vol)
			cost = cost.Sub(t.Cost).Add(t.Fee)
		}
		if remaining.IsZero() {
			break
		}
	}

	// remaining > 0 here means the history is incomplete relative to the
	// held amount; the partial reconstruction is returned as is.
	result := cost.Mul(takerFeeUplift).Round(2)
	return &result, nil
}

// fetchAll pages the trade history until a short page.
func (s *Service) fetchAll(ctx context.Context) (map[string]kraken.TradeInfo, error) {
	all := make(map[string]kraken.TradeInfo)
	for ofs := int64(0); ; ofs += pageSize {
		page, err := s.trades.GetTradesHistory(ctx, ofs)
		if err != nil {
			return nil, err
		}
		for id, t := range page.Trades {
			all[id] = t
		}
		if len(page.Trades) < pageSize {
			return all, nil
		}
	}
}

// chronological filters the trades to one pair and orders them oldest
// first. Kraken serves history newest first and the page merge loses order
// anyway, so the FIFO order is established explicitly; trade ids break
// timestamp ties for determinism.
func chronological(all map[string]kraken.TradeInfo, pair string) []kraken.TradeInfo {
	ids := make([]string, 0, len(all))
	for id, t := range all {
		if t.Pair == pair {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool {
		a, b := all[ids[i]], all[ids[j]]
		if a.Time != b.Time {
			return a.Time < b.Time
		}
		return ids[i] < ids[j]
	})

	trades := make([]kraken.TradeInfo, len(ids))
	for i, id := range ids {
		trades[i] = all[id]
	}
	return trades
}
