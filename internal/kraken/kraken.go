// Package kraken implements the subset of the Kraken spot REST API the bot
// consumes: public market data, account balance, trade history and order
// placement.
package kraken

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
	"time"
)

const (
	krakenAPIURL     = "https://api.kraken.com"
	krakenAPIVersion = "0"

	krakenAssetPairs   = "AssetPairs"
	krakenTicker       = "Ticker"
	krakenOHLC         = "OHLC"
	krakenBalance      = "Balance"
	krakenTradeHistory = "TradesHistory"
	krakenOrderPlace   = "AddOrder"
)

// Sentinel errors derived from Kraken's error categories. Use errors.Is to
// match them on returned errors.
var (
	ErrUnknownAsset     = errors.New("unknown asset")
	ErrUnknownAssetPair = errors.New("unknown asset pair")
	ErrInvalidArguments = errors.New("invalid arguments")

	errNoCredentials = errors.New("kraken: api credentials not set")
)

// Client is a Kraken REST client. Construct it with NewClient and share one
// instance; all methods are safe for concurrent use.
type Client struct {
	// BaseURL may be overridden in tests.
	BaseURL string

	apiKey     string
	apiSecret  string
	httpClient *http.Client
	log        *slog.Logger
	nonce      atomic.Int64
}

// NewClient returns a client. httpClient and log may be nil, in which case
// a default client with a 30s timeout and slog.Default are used.
func NewClient(apiKey, apiSecret string, httpClient *http.Client, log *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if log == nil {
		log = slog.Default()
	}
	c := &Client{
		BaseURL:    krakenAPIURL,
		apiKey:     apiKey,
		apiSecret:  apiSecret,
		httpClient: httpClient,
		log:        log,
	}
	c.nonce.Store(time.Now().UnixNano())
	return c
}

// GetOHLC returns candles for a pair, oldest first. The interval is given in
// minutes and since in epoch seconds; Kraken returns at most 720 candles per
// request.
func (c *Client) GetOHLC(ctx context.Context, pair string, intervalMinutes, since int64) ([]Candle, error) {
	values := url.Values{}
	values.Set("pair", pair)
	values.Set("interval", strconv.FormatInt(intervalMinutes, 10))
	values.Set("since", strconv.FormatInt(since, 10))

	var response struct {
		Error  []string                   `json:"error"`
		Result map[string]json.RawMessage `json:"result"`
	}

	path := fmt.Sprintf("%s/%s/public/%s?%s", c.BaseURL, krakenAPIVersion, krakenOHLC, values.Encode())
	if err := c.sendHTTPRequest(ctx, path, &response); err != nil {
		return nil, err
	}
	if err := c.apiError(response.Error); err != nil {
		return nil, err
	}

	// The result holds the candle rows under the pair key next to a "last"
	// cursor entry.
	raw, ok := response.Result[pair]
	if !ok {
		for key, v := range response.Result {
			if key != "last" {
				raw = v
				break
			}
		}
	}
	if raw == nil {
		return nil, nil
	}

	var rows [][]any
	if err := json.Unmarshal(raw, &rows); err != nil {
		return nil, fmt.Errorf("kraken: decoding ohlc rows: %w", err)
	}

	candles := make([]Candle, 0, len(rows))
	for _, row := range rows {
		if len(row) < 8 {
			return nil, fmt.Errorf("kraken: ohlc row has %d fields, expected 8", len(row))
		}
		candles = append(candles, Candle{
			Time:   int64(toFloat(row[0])),
			Open:   toFloat(row[1]),
			High:   toFloat(row[2]),
			Low:    toFloat(row[3]),
			Close:  toFloat(row[4]),
			VWAP:   toFloat(row[5]),
			Volume: toFloat(row[6]),
			Count:  int64(toFloat(row[7])),
		})
	}
	return candles, nil
}

// GetTicker returns a ticker snapshot for a pair. Last is the price of the
// most recent closed trade.
func (c *Client) GetTicker(ctx context.Context, pair string) (Ticker, error) {
	values := url.Values{}
	values.Set("pair", pair)

	var response struct {
		Error  []string                  `json:"error"`
		Result map[string]tickerResponse `json:"result"`
	}

	var t Ticker
	path := fmt.Sprintf("%s/%s/public/%s?%s", c.BaseURL, krakenAPIVersion, krakenTicker, values.Encode())
	if err := c.sendHTTPRequest(ctx, path, &response); err != nil {
		return t, err
	}
	if err := c.apiError(response.Error); err != nil {
		return t, err
	}

	for _, y := range response.Result {
		t.Ask = firstFloat(y.Ask)
		t.Bid = firstFloat(y.Bid)
		t.Last = firstFloat(y.Last)
		t.Volume = secondFloat(y.Volume)
		t.VWAP = secondFloat(y.VWAP)
		if len(y.Trades) > 1 {
			t.Trades = y.Trades[1]
		}
		t.Low = secondFloat(y.Low)
		t.High = secondFloat(y.High)
		t.Open, _ = strconv.ParseFloat(y.Open, 64)
	}
	return t, nil
}

// GetAssetPairs returns tradable pair information, including the minimum
// order volume.
func (c *Client) GetAssetPairs(ctx context.Context, pair string) (map[string]AssetPair, error) {
	values := url.Values{}
	values.Set("pair", pair)

	var response struct {
		Error  []string             `json:"error"`
		Result map[string]AssetPair `json:"result"`
	}

	path := fmt.Sprintf("%s/%s/public/%s?%s", c.BaseURL, krakenAPIVersion, krakenAssetPairs, values.Encode())
	if err := c.sendHTTPRequest(ctx, path, &response); err != nil {
		return nil, err
	}
	return response.Result, c.apiError(response.Error)
}

// GetBalance returns the account balance as asset code to amount.
func (c *Client) GetBalance(ctx context.Context) (map[string]float64, error) {
	var response struct {
		Error  []string          `json:"error"`
		Result map[string]string `json:"result"`
	}

	if err := c.sendAuthenticatedHTTPRequest(ctx, krakenBalance, url.Values{}, &response); err != nil {
		return nil, err
	}
	if err := c.apiError(response.Error); err != nil {
		return nil, err
	}

	result := make(map[string]float64, len(response.Result))
	for currency, balance := range response.Result {
		v, err := strconv.ParseFloat(balance, 64)
		if err != nil {
			return nil, fmt.Errorf("kraken: parsing balance for %s: %w", currency, err)
		}
		result[currency] = v
	}
	return result, nil
}

// GetTradesHistory returns one page of the account's trade history starting
// at the given offset, at most 50 entries.
func (c *Client) GetTradesHistory(ctx context.Context, ofs int64) (TradesHistory, error) {
	params := url.Values{}
	params.Set("ofs", strconv.FormatInt(ofs, 10))

	var response struct {
		Error  []string      `json:"error"`
		Result TradesHistory `json:"result"`
	}

	if err := c.sendAuthenticatedHTTPRequest(ctx, krakenTradeHistory, params, &response); err != nil {
		return response.Result, err
	}
	return response.Result, c.apiError(response.Error)
}

// AddOrder places an order.
func (c *Client) AddOrder(ctx context.Context, pair, side, orderType string, volume float64) (AddOrderResponse, error) {
	params := url.Values{
		"pair":      {pair},
		"type":      {side},
		"ordertype": {orderType},
		"volume":    {strconv.FormatFloat(volume, 'f', -1, 64)},
	}

	var response struct {
		Error  []string         `json:"error"`
		Result AddOrderResponse `json:"result"`
	}

	if err := c.sendAuthenticatedHTTPRequest(ctx, krakenOrderPlace, params, &response); err != nil {
		return response.Result, err
	}
	return response.Result, c.apiError(response.Error)
}

// apiError parses the error array of a response envelope. Entries carry a
// severity prefix: W is logged as a warning, anything else terminates the
// call with the first error returned.
//
//	<char-severity code><string-error category>:<string-error type>
func (c *Client) apiError(errs []string) error {
	for _, e := range errs {
		if e == "" {
			continue
		}
		if e[0] == 'W' {
			c.log.Warn("kraken api warning", "message", e[1:])
			continue
		}
		return classifyError(e)
	}
	return nil
}

func classifyError(e string) error {
	msg := strings.TrimPrefix(e, "E")
	switch {
	case strings.Contains(e, "Unknown asset pair"):
		return fmt.Errorf("kraken: %s: %w", msg, ErrUnknownAssetPair)
	case strings.Contains(e, "Unknown asset"):
		return fmt.Errorf("kraken: %s: %w", msg, ErrUnknownAsset)
	case strings.Contains(e, "Invalid arguments"):
		return fmt.Errorf("kraken: %s: %w", msg, ErrInvalidArguments)
	}
	return fmt.Errorf("kraken api error: %s", msg)
}

func (c *Client) sendHTTPRequest(ctx context.Context, path string, result any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("kraken: unexpected status %s", resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(result)
}

// sendAuthenticatedHTTPRequest signs and POSTs a private API request. The
// signature is HMAC-SHA512 over the URI path and the SHA256 of nonce+POST
// data, keyed with the base64-decoded API secret.
func (c *Client) sendAuthenticatedHTTPRequest(ctx context.Context, method string, params url.Values, result any) error {
	if c.apiKey == "" || c.apiSecret == "" {
		return errNoCredentials
	}

	path := fmt.Sprintf("/%s/private/%s", krakenAPIVersion, method)
	nonce := strconv.FormatInt(c.nonce.Add(1), 10)
	params.Set("nonce", nonce)

	secret, err := base64.StdEncoding.DecodeString(c.apiSecret)
	if err != nil {
		return fmt.Errorf("kraken: decoding api secret: %w", err)
	}

	encoded := params.Encode()
	shasum := sha256.Sum256([]byte(nonce + encoded))
	mac := hmac.New(sha512.New, secret)
	mac.Write(append([]byte(path), shasum[:]...))
	signature := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, strings.NewReader(encoded))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("API-Key", c.apiKey)
	req.Header.Set("API-Sign", signature)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("kraken: unexpected status %s", resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(result)
}

func toFloat(v any) float64 {
	switch x := v.(type) {
	case float64:
		return x
	case string:
		f, _ := strconv.ParseFloat(x, 64)
		return f
	case json.Number:
		f, _ := x.Float64()
		return f
	}
	return 0
}

func firstFloat(vals []string) float64 {
	if len(vals) == 0 {
		return 0
	}
	f, _ := strconv.ParseFloat(vals[0], 64)
	return f
}

func secondFloat(vals []string) float64 {
	if len(vals) < 2 {
		return 0
	}
	f, _ := strconv.ParseFloat(vals[1], 64)
	return f
}
