// Package kraken is the concrete exchange.Adapter implementation for
// Kraken Futures, adapted from the teacher's exchange-native REST/WS
// client: the same rate-limited HTTP client and JSON envelope handling,
// generalized to perpetual-futures endpoints (klines, depth, funding,
// open interest) instead of the teacher's spot ticker/orderbook calls.
package kraken

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sawpanic/pumpshort/internal/budget"
	"github.com/sawpanic/pumpshort/internal/circuitbreaker"
	"github.com/sawpanic/pumpshort/internal/exchange"
	"github.com/sawpanic/pumpshort/internal/ratelimit"
)

// Config tunes the client's HTTP behavior.
type Config struct {
	BaseURL        string
	RequestTimeout time.Duration
	RateLimitRPS   float64
	RateLimitBurst int
	UserAgent      string
}

// DefaultConfig mirrors the teacher's defaults, pointed at the futures host.
func DefaultConfig() Config {
	return Config{
		BaseURL:        "https://futures.kraken.com/derivatives/api/v3",
		RequestTimeout: 10 * time.Second,
		RateLimitRPS:   1.0,
		RateLimitBurst: 2,
		UserAgent:      "pumpshort/1.0 (+exchange-adapter)",
	}
}

// Client implements exchange.Adapter over Kraken Futures' public REST
// endpoints, guarded by a per-call-class rate limiter and circuit
// breaker.
type Client struct {
	cfg        Config
	httpClient *http.Client
	limiters   *ratelimit.Manager
	breakers   *circuitbreaker.Manager
	budgets    *budget.Manager
}

var _ exchange.Adapter = (*Client)(nil)

// callClasses are the circuitbreaker.Manager keys this adapter registers.
const (
	classTicker    = "ticker"
	classKlines    = "klines"
	classOrderbook = "orderbook"
	classFunding   = "funding"
	classOI        = "open_interest"
)

// NewClient wires an adapter with its own rate limiter and circuit
// breaker manager, registering one breaker per call class (spec.md §6).
// budgets may be nil, in which case no daily request ceiling is enforced.
func NewClient(cfg Config, breakers *circuitbreaker.Manager, budgets *budget.Manager) *Client {
	if cfg.BaseURL == "" {
		cfg = DefaultConfig()
	}
	c := &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: cfg.RequestTimeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 50,
				IdleConnTimeout:     30 * time.Second,
			},
		},
		limiters: ratelimit.NewManager(),
		breakers: breakers,
		budgets:  budgets,
	}
	for _, class := range []string{classTicker, classKlines, classOrderbook, classFunding, classOI} {
		c.limiters.AddCallClass(class, cfg.RateLimitRPS, cfg.RateLimitBurst)
	}
	for class, bcfg := range circuitbreaker.DefaultConfigs() {
		breakers.InitializeClass(class, bcfg, nil)
	}
	return c
}

func (c *Client) get(ctx context.Context, callClass, path string, params url.Values, out interface{}) error {
	if c.budgets != nil {
		if err := c.budgets.Consume(callClass); err != nil {
			var exhausted *budget.ExhaustedError
			if errors.As(err, &exhausted) {
				return fmt.Errorf("%s: %w", callClass, err)
			}
			// WarningError: still within budget, proceed.
		}
	}
	if err := c.limiters.Wait(ctx, callClass); err != nil {
		return fmt.Errorf("%s: rate limit wait: %w", callClass, err)
	}

	_, err := c.breakers.Execute(callClass, func() (interface{}, error) {
		full := fmt.Sprintf("%s%s", c.cfg.BaseURL, path)
		if len(params) > 0 {
			full = fmt.Sprintf("%s?%s", full, params.Encode())
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, full, nil)
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}
		req.Header.Set("User-Agent", c.cfg.UserAgent)
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("request: %w", err)
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("read body: %w", err)
		}
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("http %d: %s", resp.StatusCode, string(body))
		}
		if err := json.Unmarshal(body, out); err != nil {
			return nil, fmt.Errorf("decode: %w", err)
		}
		return nil, nil
	})
	if err != nil {
		return fmt.Errorf("%s: %w", callClass, err)
	}
	return nil
}

type tickerEntry struct {
	Symbol string  `json:"symbol"`
	Last   float64 `json:"last"`
	Vol24h float64 `json:"vol24h"`
	TimeMs int64   `json:"time_ms"`
}

type tickersResponse struct {
	Tickers []tickerEntry `json:"tickers"`
}

// ListSymbols returns every tradable perpetual symbol (spec.md §6). It
// shares the ticker call class's breaker since both hit the same
// /tickers endpoint.
func (c *Client) ListSymbols(ctx context.Context) ([]exchange.Symbol, error) {
	var resp tickersResponse
	if err := c.get(ctx, classTicker, "/tickers", nil, &resp); err != nil {
		return nil, err
	}
	out := make([]exchange.Symbol, 0, len(resp.Tickers))
	for _, t := range resp.Tickers {
		out = append(out, exchange.Symbol(t.Symbol))
	}
	return out, nil
}

// BatchTicker returns last_price/24h_volume/ts_ms for every symbol in
// one call (spec.md §6), so the Snapshot Store's poll loop stays a
// single outbound request per tick.
func (c *Client) BatchTicker(ctx context.Context) (map[exchange.Symbol]exchange.Ticker, error) {
	var resp tickersResponse
	if err := c.get(ctx, classTicker, "/tickers", nil, &resp); err != nil {
		return nil, err
	}
	out := make(map[exchange.Symbol]exchange.Ticker, len(resp.Tickers))
	for _, t := range resp.Tickers {
		out[exchange.Symbol(t.Symbol)] = exchange.Ticker{
			LastPrice:   t.Last,
			Volume24h:   t.Vol24h,
			TimestampMs: t.TimeMs,
		}
	}
	return out, nil
}

type klineEntry struct {
	Time   int64   `json:"time"`
	Open   float64 `json:"o"`
	High   float64 `json:"h"`
	Low    float64 `json:"l"`
	Close  float64 `json:"c"`
	Volume float64 `json:"volume"`
}

type klinesResponse struct {
	Candles []klineEntry `json:"candles"`
}

// Klines returns up to limit OHLCV bars for symbol at interval
// (spec.md §6).
func (c *Client) Klines(ctx context.Context, symbol exchange.Symbol, interval exchange.Interval, limit int) ([]exchange.Kline, error) {
	params := url.Values{}
	params.Set("symbol", string(symbol))
	params.Set("interval", string(interval))
	params.Set("limit", strconv.Itoa(limit))

	var resp klinesResponse
	if err := c.get(ctx, classKlines, "/charts", params, &resp); err != nil {
		return nil, err
	}
	out := make([]exchange.Kline, 0, len(resp.Candles))
	for _, k := range resp.Candles {
		out = append(out, exchange.Kline{
			T:      time.UnixMilli(k.Time),
			Open:   k.Open,
			High:   k.High,
			Low:    k.Low,
			Close:  k.Close,
			Volume: k.Volume,
		})
	}
	return out, nil
}

type orderbookResponse struct {
	Bids [][2]float64 `json:"bids"`
	Asks [][2]float64 `json:"asks"`
}

// OrderbookDepth returns up to limit levels of bid/ask depth
// (spec.md §6).
func (c *Client) OrderbookDepth(ctx context.Context, symbol exchange.Symbol, limit int) (exchange.Orderbook, error) {
	params := url.Values{}
	params.Set("symbol", string(symbol))
	params.Set("limit", strconv.Itoa(limit))

	var resp orderbookResponse
	if err := c.get(ctx, classOrderbook, "/orderbook", params, &resp); err != nil {
		return exchange.Orderbook{}, err
	}
	return exchange.Orderbook{
		Bids: levelsFrom(resp.Bids),
		Asks: levelsFrom(resp.Asks),
	}, nil
}

func levelsFrom(raw [][2]float64) []exchange.Level {
	out := make([]exchange.Level, len(raw))
	for i, pq := range raw {
		out[i] = exchange.Level{Price: pq[0], Qty: pq[1]}
	}
	return out
}

type fundingResponse struct {
	RatePct float64 `json:"fundingRate"`
	NextTS  int64   `json:"nextFundingTime"`
}

// FundingRate returns the current funding rate and next settlement time
// (spec.md §6).
func (c *Client) FundingRate(ctx context.Context, symbol exchange.Symbol) (exchange.Funding, error) {
	params := url.Values{}
	params.Set("symbol", string(symbol))

	var resp fundingResponse
	if err := c.get(ctx, classFunding, "/fundingrates", params, &resp); err != nil {
		return exchange.Funding{}, err
	}
	return exchange.Funding{RatePct: resp.RatePct, NextTS: time.UnixMilli(resp.NextTS)}, nil
}

type openInterestResponse struct {
	Contracts    float64 `json:"openInterest"`
	ContractSize float64 `json:"contractSize"`
}

// OpenInterest returns the current open-interest reading (spec.md §6).
func (c *Client) OpenInterest(ctx context.Context, symbol exchange.Symbol) (exchange.OpenInterest, error) {
	params := url.Values{}
	params.Set("symbol", string(symbol))

	var resp openInterestResponse
	if err := c.get(ctx, classOI, "/openinterest", params, &resp); err != nil {
		return exchange.OpenInterest{}, err
	}
	return exchange.OpenInterest{Contracts: resp.Contracts, ContractSize: resp.ContractSize}, nil
}
