package backtest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/r0nny8000/cb0t/internal/kraken"
)

func candlesFromCloses(closes ...float64) []kraken.Candle {
	candles := make([]kraken.Candle, len(closes))
	for i, c := range closes {
		candles[i] = kraken.Candle{Time: int64(i) * 604800, Close: c}
	}
	return candles
}

func TestRunConstantPrice(t *testing.T) {
	t.Parallel()
	closes := make([]float64, 60)
	for i := range closes {
		closes[i] = 100
	}

	result, err := Run(candlesFromCloses(closes...), 10, 8)
	require.NoError(t, err)

	// 51 tradable candles once the SMA warm-up is excluded.
	assert.Equal(t, 51, result.DCA.Buys)
	assert.Equal(t, "408.00", result.DCA.Invested.StringFixed(2))
	assert.Equal(t, "4.08000000", result.DCA.Units.StringFixed(8))
	assert.Equal(t, "408.00", result.DCA.FinalValue.StringFixed(2))
	assert.Equal(t, "0.00", result.DCA.ReturnPct.StringFixed(2))

	// At a constant price the close never drops below its own mean.
	assert.Equal(t, 0, result.BelowSMA.Buys)
	assert.Equal(t, "0.00", result.BelowSMA.Invested.StringFixed(2))
	assert.Equal(t, "0.00", result.BelowSMA.FinalValue.StringFixed(2))
	assert.Equal(t, "0.00", result.BelowSMA.ReturnPct.StringFixed(2))
}

func TestRunBuysOnlyBelowSMA(t *testing.T) {
	t.Parallel()
	result, err := Run(candlesFromCloses(100, 100, 90, 100), 2, 10)
	require.NoError(t, err)

	assert.Equal(t, 3, result.DCA.Buys)
	// Only the dip at 90 sits below its 2-candle mean of 95.
	assert.Equal(t, 1, result.BelowSMA.Buys)
	assert.Equal(t, "10.00", result.BelowSMA.Invested.StringFixed(2))
	// 10/90 units at a final close of 100.
	assert.Equal(t, "11.11", result.BelowSMA.FinalValue.StringFixed(2))
}

func TestRunReturnComputation(t *testing.T) {
	t.Parallel()
	// Price doubles after the first tradable candle: buying at 100 and 200
	// with a final close of 200.
	result, err := Run(candlesFromCloses(100, 100, 200), 2, 100)
	require.NoError(t, err)

	assert.Equal(t, 2, result.DCA.Buys)
	assert.Equal(t, "200.00", result.DCA.Invested.StringFixed(2))
	// 1 + 0.5 units at 200 = 300, a 50% return.
	assert.Equal(t, "300.00", result.DCA.FinalValue.StringFixed(2))
	assert.Equal(t, "50.00", result.DCA.ReturnPct.StringFixed(2))
}

func TestRunResultMetadata(t *testing.T) {
	t.Parallel()
	candles := candlesFromCloses(100, 100, 100, 100)
	result, err := Run(candles, 2, 8)
	require.NoError(t, err)

	assert.Equal(t, 2, result.Window)
	assert.Equal(t, 8.0, result.Amount)
	assert.Equal(t, 4, result.Candles)
	assert.Equal(t, candles[0].Time, result.FirstCandle)
	assert.Equal(t, candles[3].Time, result.LastCandle)
}

func TestRunNotEnoughCandles(t *testing.T) {
	t.Parallel()
	_, err := Run(candlesFromCloses(100, 100), 10, 8)
	require.Error(t, err)
	assert.ErrorIs(t, err, errNotEnoughData)
}

func TestRunInvalidInput(t *testing.T) {
	t.Parallel()
	candles := candlesFromCloses(100, 100, 100)

	_, err := Run(candles, 0, 8)
	assert.ErrorIs(t, err, errInvalidInput)

	_, err = Run(candles, 2, 0)
	assert.ErrorIs(t, err, errInvalidInput)

	_, err = Run(candles, 2, -1)
	assert.ErrorIs(t, err, errInvalidInput)
}

func TestRunSkipsZeroPriceCandles(t *testing.T) {
	t.Parallel()
	// A zero close would divide by zero; the candle is skipped entirely.
	result, err := Run(candlesFromCloses(100, 100, 0, 100), 2, 10)
	require.NoError(t, err)
	assert.Equal(t, 2, result.DCA.Buys)
}
