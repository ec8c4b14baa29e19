package costbasis

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/r0nny8000/cb0t/internal/kraken"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// historyStub serves canned trade history pages.
type historyStub struct {
	pages   []map[string]kraken.TradeInfo
	err     error
	ofsSeen []int64
}

func (h *historyStub) GetTradesHistory(_ context.Context, ofs int64) (kraken.TradesHistory, error) {
	h.ofsSeen = append(h.ofsSeen, ofs)
	if h.err != nil {
		return kraken.TradesHistory{}, h.err
	}
	idx := int(ofs / pageSize)
	if idx >= len(h.pages) {
		return kraken.TradesHistory{}, nil
	}
	return kraken.TradesHistory{Trades: h.pages[idx]}, nil
}

func trade(pair, typ string, t float64, vol, cost, fee string) kraken.TradeInfo {
	return kraken.TradeInfo{
		Pair: pair,
		Type: typ,
		Time: t,
		Vol:  decimal.RequireFromString(vol),
		Cost: decimal.RequireFromString(cost),
		Fee:  decimal.RequireFromString(fee),
	}
}

// threeBuys is the canonical buy history: chronological volumes 1.0, 0.5 and
// 0.8 BTC. The map keys are deliberately out of order relative to the
// timestamps.
func threeBuys() map[string]kraken.TradeInfo {
	return map[string]kraken.TradeInfo{
		"T-C": trade("XXBTZEUR", "buy", 1700000300, "0.8", "32000.0", "320.0"),
		"T-A": trade("XXBTZEUR", "buy", 1700000100, "1.0", "45000.0", "450.0"),
		"T-B": trade("XXBTZEUR", "buy", 1700000200, "0.5", "20000.0", "200.0"),
	}
}

func calculate(t *testing.T, stub *historyStub, pair, held string) *decimal.Decimal {
	t.Helper()
	result, err := New(stub, testLogger()).Calculate(context.Background(), pair, decimal.RequireFromString(held))
	require.NoError(t, err)
	return result
}

func TestCalculateSingleBuyRoundTrip(t *testing.T) {
	t.Parallel()
	stub := &historyStub{pages: []map[string]kraken.TradeInfo{{
		"T-A": trade("XXBTZEUR", "buy", 1700000100, "1.0", "45000.0", "450.0"),
	}}}

	result := calculate(t, stub, "XXBTZEUR", "1.0")
	require.NotNil(t, result)
	// (45000 + 450) * 1.004
	assert.Equal(t, "45631.80", result.StringFixed(2))
}

func TestCalculateProRataSplit(t *testing.T) {
	t.Parallel()
	stub := &historyStub{pages: []map[string]kraken.TradeInfo{{
		"T-A": trade("XXBTZEUR", "buy", 1700000100, "1.0", "45000.0", "450.0"),
	}}}

	result := calculate(t, stub, "XXBTZEUR", "0.7")
	require.NotNil(t, result)
	// 45450 * 0.7 * 1.004
	assert.Equal(t, "31942.26", result.StringFixed(2))
}

func TestCalculateThreeBuysWithSplit(t *testing.T) {
	t.Parallel()
	stub := &historyStub{pages: []map[string]kraken.TradeInfo{threeBuys()}}

	result := calculate(t, stub, "XXBTZEUR", "2.0")
	require.NotNil(t, result)
	// 45450 + 20200 + 32320*0.5/0.8, then the taker uplift.
	assert.Equal(t, "86193.40", result.StringFixed(2))
}

func TestCalculateTwoBuysWithSplit(t *testing.T) {
	t.Parallel()
	stub := &historyStub{pages: []map[string]kraken.TradeInfo{threeBuys()}}

	result := calculate(t, stub, "XXBTZEUR", "1.2")
	require.NotNil(t, result)
	// 45450 + 20200*0.2/0.5, then the taker uplift.
	assert.Equal(t, "53744.12", result.StringFixed(2))
}

func TestCalculateWithSell(t *testing.T) {
	t.Parallel()
	stub := &historyStub{pages: []map[string]kraken.TradeInfo{{
		"T-A": trade("XXBTZEUR", "buy", 1700000100, "2.0", "80000.0", "800.0"),
		"T-B": trade("XXBTZEUR", "sell", 1700000200, "0.5", "25000.0", "250.0"),
		"T-C": trade("XXBTZEUR", "buy", 1700000300, "1.5", "60000.0", "600.0"),
	}}}

	result := calculate(t, stub, "XXBTZEUR", "2.5")
	require.NotNil(t, result)
	// The sell returns 25000 of basis but its 250 fee stays a cost, and it
	// frees 0.5 of volume so 1.0 of the later buy is still held:
	// (80800 - 25000 + 250 + 60600/1.5) * 1.004.
	assert.Equal(t, "96835.80", result.StringFixed(2))
}

func TestCalculateEmptyHistory(t *testing.T) {
	t.Parallel()
	stub := &historyStub{}

	result := calculate(t, stub, "XXBTZEUR", "1.0")
	require.NotNil(t, result)
	assert.Equal(t, "0.00", result.StringFixed(2))
}

func TestCalculateIgnoresOtherPairs(t *testing.T) {
	t.Parallel()
	page := threeBuys()
	page["T-ETH"] = trade("XETHZEUR", "buy", 1700000050, "10.0", "20000.0", "200.0")
	stub := &historyStub{pages: []map[string]kraken.TradeInfo{page}}

	result := calculate(t, stub, "XXBTZEUR", "2.0")
	require.NotNil(t, result)
	assert.Equal(t, "86193.40", result.StringFixed(2))
}

func TestCalculateUnknownAssetReturnsNil(t *testing.T) {
	t.Parallel()
	stub := &historyStub{
		err: fmt.Errorf("kraken: Query:Unknown asset: %w", kraken.ErrUnknownAsset),
	}

	result, err := New(stub, testLogger()).Calculate(context.Background(), "NOPEEUR", decimal.NewFromInt(1))
	require.NoError(t, err)
	assert.Nil(t, result)
}

func TestCalculateOtherErrorsPropagate(t *testing.T) {
	t.Parallel()
	transportErr := errors.New("connection reset")
	stub := &historyStub{err: transportErr}

	_, err := New(stub, testLogger()).Calculate(context.Background(), "XXBTZEUR", decimal.NewFromInt(1))
	assert.ErrorIs(t, err, transportErr)
}

func TestCalculatePaginates(t *testing.T) {
	t.Parallel()
	// A full first page forces a second fetch at the next offset.
	first := make(map[string]kraken.TradeInfo, pageSize)
	for i := 0; i < pageSize; i++ {
		first[fmt.Sprintf("T-ETH-%02d", i)] = trade("XETHZEUR", "buy", float64(1700001000+i), "0.1", "200.0", "2.0")
	}
	stub := &historyStub{pages: []map[string]kraken.TradeInfo{first, threeBuys()}}

	result := calculate(t, stub, "XXBTZEUR", "2.0")
	require.NotNil(t, result)
	assert.Equal(t, []int64{0, 50}, stub.ofsSeen)
	assert.Equal(t, "86193.40", result.StringFixed(2))
}

func TestCalculateMonotoneInHeldAmount(t *testing.T) {
	t.Parallel()
	previous := decimal.Zero
	for _, held := range []string{"0.3", "0.9", "1.4", "2.0", "2.3"} {
		stub := &historyStub{pages: []map[string]kraken.TradeInfo{threeBuys()}}
		result := calculate(t, stub, "XXBTZEUR", held)
		require.NotNil(t, result, held)
		assert.True(t, result.GreaterThanOrEqual(previous),
			"held %s: %s < %s", held, result, previous)
		previous = *result
	}
}

func TestCalculateIncompleteHistory(t *testing.T) {
	t.Parallel()
	// More held than ever bought: the partial reconstruction is returned.
	stub := &historyStub{pages: []map[string]kraken.TradeInfo{{
		"T-A": trade("XXBTZEUR", "buy", 1700000100, "1.0", "45000.0", "450.0"),
	}}}

	result := calculate(t, stub, "XXBTZEUR", "5.0")
	require.NotNil(t, result)
	assert.Equal(t, "45631.80", result.StringFixed(2))
}
