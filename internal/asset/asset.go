// Package asset evaluates technical indicators and trading signals for one
// currency pair over Kraken OHLC history.
package asset

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/r0nny8000/cb0t/internal/kraken"
)

// Interval identifies a candle interval.
type Interval string

// Supported candle intervals.
const (
	OneMin     Interval = "1m"
	FiveMin    Interval = "5m"
	FifteenMin Interval = "15m"
	ThirtyMin  Interval = "30m"
	OneHour    Interval = "1h"
	FourHour   Interval = "4h"
	OneDay     Interval = "1d"
	OneWeek    Interval = "1w"
	TwoWeek    Interval = "2w"
)

var intervalMinutes = map[Interval]int64{
	OneMin: 1, FiveMin: 5, FifteenMin: 15, ThirtyMin: 30,
	OneHour: 60, FourHour: 240, OneDay: 1440, OneWeek: 10080, TwoWeek: 21600,
}

// seriesLength is the maximum candle count Kraken serves per request.
const seriesLength = 720

const (
	defaultRSIWindow = 14
	weeklyMinutes    = 10080
)

// Error is the asset data error category: unknown assets or pairs, invalid
// interval arguments and unexpected candle counts. Transport failures are
// not wrapped in it.
type Error struct {
	Pair string
	msg  string
	err  error
}

func (e *Error) Error() string {
	if e.msg != "" {
		return fmt.Sprintf("%s: %s", e.Pair, e.msg)
	}
	return fmt.Sprintf("%s: %v", e.Pair, e.err)
}

func (e *Error) Unwrap() error { return e.err }

// MarketData supplies candles and live quotes.
type MarketData interface {
	GetOHLC(ctx context.Context, pair string, intervalMinutes, since int64) ([]kraken.Candle, error)
	GetTicker(ctx context.Context, pair string) (kraken.Ticker, error)
}

// Asset is one tradable pair with lazily fetched daily and weekly candle
// series. An Asset memoizes its series and derived columns, so instances
// must not be shared between concurrent invocations; construct a fresh one
// per request or job tick.
type Asset struct {
	Pair string

	market MarketData
	log    *slog.Logger
	now    func() time.Time

	daily  *Series
	weekly *Series
	ath    float64
	hasATH bool
}

// New returns an Asset for the given pair. log may be nil.
func New(pair string, market MarketData, log *slog.Logger) *Asset {
	if log == nil {
		log = slog.Default()
	}
	return &Asset{Pair: pair, market: market, log: log, now: time.Now}
}

// Daily returns the daily candle series, fetching it on first use.
func (a *Asset) Daily(ctx context.Context) (*Series, error) {
	if a.daily == nil {
		s, err := a.fetch(ctx, OneDay, seriesLength)
		if err != nil {
			return nil, err
		}
		a.daily = s
	}
	return a.daily, nil
}

// Weekly returns the weekly candle series, fetching it on first use.
func (a *Asset) Weekly(ctx context.Context) (*Series, error) {
	if a.weekly == nil {
		s, err := a.fetch(ctx, OneWeek, seriesLength)
		if err != nil {
			return nil, err
		}
		a.weekly = s
	}
	return a.weekly, nil
}

func (a *Asset) fetch(ctx context.Context, interval Interval, length int) (*Series, error) {
	minutes, ok := intervalMinutes[interval]
	if !ok {
		return nil, &Error{Pair: a.Pair, msg: fmt.Sprintf("unsupported interval %q", interval)}
	}

	since := a.now().Unix() - minutes*60*int64(length)
	candles, err := a.market.GetOHLC(ctx, a.Pair, minutes, since)
	if err != nil {
		if isAssetDataError(err) {
			return nil, &Error{Pair: a.Pair, err: err}
		}
		return nil, err
	}

	// Young assets do not have a full multi-year weekly history, so short
	// series are tolerated for weekly and coarser intervals.
	if len(candles) != length && minutes < weeklyMinutes {
		return nil, &Error{
			Pair: a.Pair,
			msg:  fmt.Sprintf("received %d candles for interval %s, expected %d", len(candles), interval, length),
		}
	}
	return NewSeries(candles), nil
}

// Price fetches the current live price from the ticker.
func (a *Asset) Price(ctx context.Context) (float64, error) {
	t, err := a.market.GetTicker(ctx, a.Pair)
	if err != nil {
		if isAssetDataError(err) {
			return 0, &Error{Pair: a.Pair, err: err}
		}
		return 0, err
	}
	return t.Last, nil
}

// RSIBelow reports whether the most recent daily RSI is below the threshold.
// With fewer than window+1 candles the last RSI is NaN and every comparison
// is false, so RSIBelow reports false.
func (a *Asset) RSIBelow(ctx context.Context, threshold float64) (bool, error) {
	d, err := a.Daily(ctx)
	if err != nil {
		return false, err
	}
	rsiCol := d.RSI(defaultRSIWindow)
	rsi := math.NaN()
	if len(rsiCol) > 0 {
		rsi = rsiCol[len(rsiCol)-1]
	}
	if rsi < threshold {
		a.log.Info("rsi below threshold", "pair", a.Pair, "rsi", rsi, "threshold", threshold)
		return true, nil
	}
	a.log.Info("rsi above threshold", "pair", a.Pair, "rsi", rsi, "threshold", threshold)
	return false, nil
}

// RSIAbove is the strict negation of RSIBelow.
func (a *Asset) RSIAbove(ctx context.Context, threshold float64) (bool, error) {
	below, err := a.RSIBelow(ctx, threshold)
	return !below, err
}

// BelowWeeklySMA reports whether the live price is below the most recent
// weekly SMA for the given window.
func (a *Asset) BelowWeeklySMA(ctx context.Context, window int) (bool, error) {
	w, err := a.Weekly(ctx)
	if err != nil {
		return false, err
	}
	w.SMA(window)
	sma := w.Last(smaColumn(window))

	price, err := a.Price(ctx)
	if err != nil {
		return false, err
	}
	if price < sma {
		a.log.Info("price below weekly sma", "pair", a.Pair, "price", price, "sma", sma, "window", window)
		return true, nil
	}
	a.log.Info("price above weekly sma", "pair", a.Pair, "price", price, "sma", sma, "window", window)
	return false, nil
}

// AboveWeeklySMA is the strict negation of BelowWeeklySMA.
func (a *Asset) AboveWeeklySMA(ctx context.Context, window int) (bool, error) {
	below, err := a.BelowWeeklySMA(ctx, window)
	return !below, err
}

// ATH returns the all-time high: the maximum high over the weekly series.
func (a *Asset) ATH(ctx context.Context) (float64, error) {
	if a.hasATH {
		return a.ath, nil
	}
	w, err := a.Weekly(ctx)
	if err != nil {
		return 0, err
	}
	max := 0.0
	for _, h := range w.High() {
		if h > max {
			max = h
		}
	}
	a.ath = max
	a.hasATH = true
	return max, nil
}

// Accelerate scales a nominal buy amount by the distance of the live price
// to the all-time high, rounded to 2 decimal places: the cheaper the asset
// relative to its ATH, the larger the result.
func (a *Asset) Accelerate(ctx context.Context, amount float64) (float64, error) {
	ath, err := a.ATH(ctx)
	if err != nil {
		return 0, err
	}
	price, err := a.Price(ctx)
	if err != nil {
		return 0, err
	}
	if price <= 0 {
		return 0, &Error{Pair: a.Pair, msg: fmt.Sprintf("cannot accelerate with price %v", price)}
	}
	return math.Round(ath/price*amount*100) / 100, nil
}

func isAssetDataError(err error) bool {
	return errors.Is(err, kraken.ErrUnknownAsset) ||
		errors.Is(err, kraken.ErrUnknownAssetPair) ||
		errors.Is(err, kraken.ErrInvalidArguments)
}
