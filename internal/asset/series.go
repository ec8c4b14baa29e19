package asset

import (
	"fmt"
	"math"

	"github.com/r0nny8000/cb0t/internal/kraken"
)

// Series is an ordered candle sequence for one (pair, interval) together
// with its derived columns. Candles are ascending by timestamp and never
// re-sorted. Derived columns are float64 slices aligned to the candles;
// undefined leading rows hold NaN. Column computation is idempotent: a
// column that already exists is returned as is.
type Series struct {
	Candles []kraken.Candle
	columns map[string][]float64
}

// NewSeries wraps candles in a series with an empty column cache.
func NewSeries(candles []kraken.Candle) *Series {
	return &Series{
		Candles: candles,
		columns: make(map[string][]float64),
	}
}

// Len returns the number of candles.
func (s *Series) Len() int { return len(s.Candles) }

// Close returns the close column.
func (s *Series) Close() []float64 {
	if col, ok := s.columns["close"]; ok {
		return col
	}
	col := make([]float64, len(s.Candles))
	for i := range s.Candles {
		col[i] = s.Candles[i].Close
	}
	s.columns["close"] = col
	return col
}

// High returns the high column.
func (s *Series) High() []float64 {
	if col, ok := s.columns["high"]; ok {
		return col
	}
	col := make([]float64, len(s.Candles))
	for i := range s.Candles {
		col[i] = s.Candles[i].High
	}
	s.columns["high"] = col
	return col
}

// Column returns a derived column if it has been computed.
func (s *Series) Column(name string) ([]float64, bool) {
	col, ok := s.columns[name]
	return col, ok
}

// Last returns the most recent value of a column, or NaN when the column is
// missing or empty.
func (s *Series) Last(name string) float64 {
	col, ok := s.columns[name]
	if !ok || len(col) == 0 {
		return math.NaN()
	}
	return col[len(col)-1]
}

// RSI computes the simple (non-exponential) relative strength index over the
// close column and caches the chain of derived columns: change, gain, loss,
// avg_gain, avg_loss, rs and rsi. The first `window` rows of rsi are NaN.
func (s *Series) RSI(window int) []float64 {
	if col, ok := s.columns["rsi"]; ok {
		return col
	}

	closes := s.Close()
	n := len(closes)

	change := nanSlice(n)
	for i := 1; i < n; i++ {
		change[i] = closes[i] - closes[i-1]
	}
	s.columns["change"] = change

	gain := nanSlice(n)
	loss := nanSlice(n)
	for i := 1; i < n; i++ {
		gain[i] = math.Max(change[i], 0)
		loss[i] = math.Max(-change[i], 0)
	}
	s.columns["gain"] = gain
	s.columns["loss"] = loss

	avgGain := rollingMean(gain, window)
	avgLoss := rollingMean(loss, window)
	s.columns["avg_gain"] = avgGain
	s.columns["avg_loss"] = avgLoss

	rs := nanSlice(n)
	rsi := nanSlice(n)
	for i := 0; i < n; i++ {
		g, l := avgGain[i], avgLoss[i]
		if math.IsNaN(g) || math.IsNaN(l) {
			continue
		}
		if l == 0 {
			rs[i] = math.Inf(1)
			rsi[i] = 100
			continue
		}
		rs[i] = g / l
		rsi[i] = 100 - 100/(1+rs[i])
	}
	s.columns["rs"] = rs
	s.columns["rsi"] = rsi
	return rsi
}

// SMA computes the trailing simple moving average of the close column and
// caches it as "sma_<window>". The first window-1 rows are NaN.
func (s *Series) SMA(window int) []float64 {
	name := smaColumn(window)
	if col, ok := s.columns[name]; ok {
		return col
	}
	col := rollingMean(s.Close(), window)
	s.columns[name] = col
	return col
}

func smaColumn(window int) string {
	return fmt.Sprintf("sma_%d", window)
}

func nanSlice(n int) []float64 {
	s := make([]float64, n)
	for i := range s {
		s[i] = math.NaN()
	}
	return s
}

// rollingMean is the arithmetic mean over the trailing `window` samples.
// A row is defined only when the full window is available and free of NaN.
func rollingMean(vals []float64, window int) []float64 {
	out := nanSlice(len(vals))
	if window <= 0 {
		return out
	}
	for i := window - 1; i < len(vals); i++ {
		sum := 0.0
		defined := true
		for j := i - window + 1; j <= i; j++ {
			if math.IsNaN(vals[j]) {
				defined = false
				break
			}
			sum += vals[j]
		}
		if defined {
			out[i] = sum / float64(window)
		}
	}
	return out
}
