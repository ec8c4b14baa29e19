package server

import (
	"encoding/json"
	"html/template"
	"math"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/r0nny8000/cb0t/internal/asset"
	"github.com/r0nny8000/cb0t/internal/backtest"
)

// Index handles GET / requests.
func (h *Handler) Index(c *gin.Context) {
	c.HTML(http.StatusOK, "index.html", gin.H{
		"Env": h.cfg.Environment,
	})
}

// Ticker handles GET /ticker requests: a snapshot of the pair with a weekly
// candlestick chart and 50-SMA overlay.
func (h *Handler) Ticker(c *gin.Context) {
	ctx := c.Request.Context()
	pair := c.DefaultQuery("pair", defaultPair)

	ticker, err := h.exchange.GetTicker(ctx, pair)
	if err != nil {
		h.handleError(c, err)
		return
	}
	pairs, err := h.exchange.GetAssetPairs(ctx, pair)
	if err != nil {
		h.handleError(c, err)
		return
	}

	const weeklyMinutes = 10080
	since := time.Now().Unix() - weeklyMinutes*60*720
	candles, err := h.exchange.GetOHLC(ctx, pair, weeklyMinutes, since)
	if err != nil {
		h.handleError(c, err)
		return
	}
	if len(candles) > chartTail {
		candles = candles[len(candles)-chartTail:]
	}

	series := asset.NewSeries(candles)
	sma := series.SMA(chartSMAWindow)

	chart := struct {
		Times []string   `json:"times"`
		Open  []float64  `json:"open"`
		High  []float64  `json:"high"`
		Low   []float64  `json:"low"`
		Close []float64  `json:"close"`
		SMA   []*float64 `json:"sma"`
	}{}
	for i, candle := range candles {
		chart.Times = append(chart.Times, time.Unix(candle.Time, 0).UTC().Format("2006-01-02"))
		chart.Open = append(chart.Open, candle.Open)
		chart.High = append(chart.High, candle.High)
		chart.Low = append(chart.Low, candle.Low)
		chart.Close = append(chart.Close, candle.Close)
		if math.IsNaN(sma[i]) {
			chart.SMA = append(chart.SMA, nil)
		} else {
			v := sma[i]
			chart.SMA = append(chart.SMA, &v)
		}
	}
	chartJSON, err := json.Marshal(chart)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.HTML(http.StatusOK, "ticker.html", gin.H{
		"Pair":   pair,
		"Ticker": ticker,
		"Pairs":  pairs,
		"Chart":  template.JS(chartJSON),
	})
}

// balanceRow is one rendered balance line.
type balanceRow struct {
	Asset            string
	Amount           string
	Value            string
	CostBasis        string
	AveragePrice     string
	UnrealizedPnL    string
	UnrealizedPnLPct string
}

// Balance handles GET /balance requests: the account balance enriched with
// cost basis and unrealized P&L per asset.
func (h *Handler) Balance(c *gin.Context) {
	ctx := c.Request.Context()

	accountBalance, err := h.exchange.GetBalance(ctx)
	if err != nil {
		h.handleError(c, err)
		return
	}

	codes := make([]string, 0, len(accountBalance))
	for code := range accountBalance {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	rows := make([]balanceRow, 0, len(codes))
	for _, code := range codes {
		amount := accountBalance[code]
		if amount == 0 {
			continue
		}

		if code == "ZEUR" {
			rows = append(rows, balanceRow{
				Asset:  code,
				Amount: money(amount),
			})
			continue
		}

		pair, ok := h.cfg.BalancePair(code)
		if !ok {
			h.log.Warn("no asset pair configured for balance asset, skipping", "asset", code)
			continue
		}

		ticker, err := h.exchange.GetTicker(ctx, pair)
		if err != nil {
			h.handleError(c, err)
			return
		}
		value := ticker.Last * amount

		costBasis, err := h.costBasis.Calculate(ctx, pair, decimal.NewFromFloat(amount))
		if err != nil {
			h.handleError(c, err)
			return
		}

		row := balanceRow{
			Asset:            code,
			Amount:           strconv.FormatFloat(amount, 'f', 8, 64),
			Value:            money(value),
			CostBasis:        "n/a",
			AveragePrice:     "n/a",
			UnrealizedPnL:    "n/a",
			UnrealizedPnLPct: "n/a",
		}
		if costBasis != nil {
			cb, _ := costBasis.Float64()
			row.CostBasis = money(cb)
			if amount > 0 {
				row.AveragePrice = money(cb / amount)
			}
			pnl := value - cb
			row.UnrealizedPnL = money(pnl)
			if cb > 0 {
				row.UnrealizedPnLPct = money(pnl/cb*100) + "%"
			} else {
				row.UnrealizedPnLPct = "0.00%"
			}
		}
		rows = append(rows, row)
	}

	c.HTML(http.StatusOK, "balance.html", gin.H{"Rows": rows})
}

// Simulations handles GET /simulations requests: a historical weekly SMA
// accumulation backtest for the pair.
func (h *Handler) Simulations(c *gin.Context) {
	ctx := c.Request.Context()
	pair := c.DefaultQuery("pair", defaultPair)

	window := defaultSMAWindow
	if raw := c.Query("window"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v <= 0 {
			c.String(http.StatusBadRequest, "window must be a positive integer")
			return
		}
		window = v
	}
	amount := 8.0
	if raw := c.Query("amount"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || v <= 0 {
			c.String(http.StatusBadRequest, "amount must be a positive number")
			return
		}
		amount = v
	}

	const weeklyMinutes = 10080
	since := time.Now().Unix() - weeklyMinutes*60*720
	candles, err := h.exchange.GetOHLC(ctx, pair, weeklyMinutes, since)
	if err != nil {
		h.handleError(c, err)
		return
	}

	result, err := backtest.Run(candles, window, amount)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.HTML(http.StatusOK, "simulations.html", gin.H{
		"Pair":   pair,
		"Result": result,
		"From":   time.Unix(result.FirstCandle, 0).UTC().Format("2006-01-02"),
		"To":     time.Unix(result.LastCandle, 0).UTC().Format("2006-01-02"),
	})
}

// Env handles GET /env requests.
func (h *Handler) Env(c *gin.Context) {
	c.HTML(http.StatusOK, "env.html", gin.H{"Env": h.cfg.Environment})
}

// Health handles GET /health requests.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "OK",
		"service":   serviceName,
		"version":   serviceVersion,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// handleError maps an error to a response: asset data errors carry their
// raw message to the caller, anything else is logged and hidden behind a
// generic message.
func (h *Handler) handleError(c *gin.Context, err error) {
	if isAssetDataError(err) {
		h.log.Error("asset data error",
			"request_id", c.GetString(requestIDContextKey),
			"path", c.Request.URL.Path,
			"error", err)
		c.String(http.StatusInternalServerError, err.Error())
		return
	}
	h.log.Error("request failed",
		"request_id", c.GetString(requestIDContextKey),
		"path", c.Request.URL.Path,
		"error", err)
	c.String(http.StatusInternalServerError, "internal server error")
}

func money(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
