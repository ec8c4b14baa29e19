package kraken

import "github.com/shopspring/decimal"

// Candle is one OHLC observation. Kraken returns candles oldest first.
type Candle struct {
	Time   int64
	Open   float64
	High   float64
	Low    float64
	Close  float64
	VWAP   float64
	Volume float64
	Count  int64
}

// Ticker is a flattened ticker snapshot for a single pair.
type Ticker struct {
	Ask    float64
	Bid    float64
	Last   float64
	Volume float64
	VWAP   float64
	Trades int64
	Low    float64
	High   float64
	Open   float64
}

// tickerResponse holds ticker information before it is put into the Ticker
// struct. Kraken encodes most values as arrays of strings.
type tickerResponse struct {
	Ask    []string `json:"a"`
	Bid    []string `json:"b"`
	Last   []string `json:"c"`
	Volume []string `json:"v"`
	VWAP   []string `json:"p"`
	Trades []int64  `json:"t"`
	Low    []string `json:"l"`
	High   []string `json:"h"`
	Open   string   `json:"o"`
}

// AssetPair holds tradable asset pair information.
type AssetPair struct {
	Altname      string  `json:"altname"`
	WSName       string  `json:"wsname"`
	Base         string  `json:"base"`
	Quote        string  `json:"quote"`
	PairDecimals int     `json:"pair_decimals"`
	LotDecimals  int     `json:"lot_decimals"`
	OrderMin     float64 `json:"ordermin,string"`
}

// TradesHistory is one page of the authenticated trade history, at most
// 50 entries per page.
type TradesHistory struct {
	Trades map[string]TradeInfo `json:"trades"`
	Count  int64                `json:"count"`
}

// TradeInfo is a single historical fill. Monetary fields are decoded into
// decimals straight from Kraken's string encoding so that downstream
// accounting never passes through binary floating point.
type TradeInfo struct {
	OrderTxID string          `json:"ordertxid"`
	Pair      string          `json:"pair"`
	Time      float64         `json:"time"`
	Type      string          `json:"type"`
	OrderType string          `json:"ordertype"`
	Price     decimal.Decimal `json:"price"`
	Cost      decimal.Decimal `json:"cost"`
	Fee       decimal.Decimal `json:"fee"`
	Vol       decimal.Decimal `json:"vol"`
}

// AddOrderResponse is returned when an order has been accepted.
type AddOrderResponse struct {
	Description    OrderDescription `json:"descr"`
	TransactionIDs []string         `json:"txid"`
}

// OrderDescription represents an order description.
type OrderDescription struct {
	Close string `json:"close"`
	Order string `json:"order"`
}
