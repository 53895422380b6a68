package kraken

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/pumpshort/internal/budget"
	"github.com/sawpanic/pumpshort/internal/circuitbreaker"
	"github.com/sawpanic/pumpshort/internal/exchange"
)

func newTestClient(t *testing.T, mux *http.ServeMux) (*Client, *httptest.Server) {
	srv := httptest.NewServer(mux)
	cfg := Config{
		BaseURL:        srv.URL,
		RequestTimeout: time.Second,
		RateLimitRPS:   1000,
		RateLimitBurst: 1000,
		UserAgent:      "test",
	}
	client := NewClient(cfg, circuitbreaker.NewManager(zerolog.Nop()), nil)
	t.Cleanup(srv.Close)
	return client, srv
}

func TestClient_BatchTicker(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/tickers", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"tickers":[{"symbol":"PI_XBTUSD","last":50000.5,"vol24h":1200,"time_ms":1690000000000}]}`))
	})
	client, _ := newTestClient(t, mux)

	tickers, err := client.BatchTicker(context.Background())
	require.NoError(t, err)
	require.Contains(t, tickers, exchange.Symbol("PI_XBTUSD"))
	assert.Equal(t, 50000.5, tickers["PI_XBTUSD"].LastPrice)
}

func TestClient_ListSymbols(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/tickers", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"tickers":[{"symbol":"PI_XBTUSD"},{"symbol":"PI_ETHUSD"}]}`))
	})
	client, _ := newTestClient(t, mux)

	symbols, err := client.ListSymbols(context.Background())
	require.NoError(t, err)
	assert.ElementsMatch(t, []exchange.Symbol{"PI_XBTUSD", "PI_ETHUSD"}, symbols)
}

func TestClient_Klines(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/charts", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"candles":[{"time":1690000000000,"o":100,"h":110,"l":95,"c":105,"volume":42}]}`))
	})
	client, _ := newTestClient(t, mux)

	klines, err := client.Klines(context.Background(), "PI_XBTUSD", exchange.Interval1m, 1)
	require.NoError(t, err)
	require.Len(t, klines, 1)
	assert.Equal(t, 105.0, klines[0].Close)
}

func TestClient_OrderbookDepth(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/orderbook", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"bids":[[100.5,2]],"asks":[[101,3]]}`))
	})
	client, _ := newTestClient(t, mux)

	book, err := client.OrderbookDepth(context.Background(), "PI_XBTUSD", 10)
	require.NoError(t, err)
	require.Len(t, book.Bids, 1)
	assert.Equal(t, 100.5, book.Bids[0].Price)
	assert.Equal(t, 3.0, book.Asks[0].Qty)
}

func TestClient_FundingRateAndOpenInterest(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/fundingrates", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"fundingRate":0.01,"nextFundingTime":1690003600000}`))
	})
	mux.HandleFunc("/openinterest", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"openInterest":1500,"contractSize":1}`))
	})
	client, _ := newTestClient(t, mux)

	funding, err := client.FundingRate(context.Background(), "PI_XBTUSD")
	require.NoError(t, err)
	assert.Equal(t, 0.01, funding.RatePct)

	oi, err := client.OpenInterest(context.Background(), "PI_XBTUSD")
	require.NoError(t, err)
	assert.Equal(t, 1500.0, oi.Contracts)
}

func TestClient_ExhaustedBudgetShortCircuitsBeforeRequest(t *testing.T) {
	hit := false
	mux := http.NewServeMux()
	mux.HandleFunc("/tickers", func(w http.ResponseWriter, r *http.Request) {
		hit = true
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"tickers":[]}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	cfg := Config{
		BaseURL:        srv.URL,
		RequestTimeout: time.Second,
		RateLimitRPS:   1000,
		RateLimitBurst: 1000,
		UserAgent:      "test",
	}
	budgets := budget.NewManager()
	budgets.AddCallClass("ticker", 0, 0, 0.8)
	client := NewClient(cfg, circuitbreaker.NewManager(zerolog.Nop()), budgets)

	_, err := client.BatchTicker(context.Background())
	assert.Error(t, err)
	assert.False(t, hit, "exhausted budget should short-circuit before the HTTP call")
}

func TestClient_HTTPErrorPropagates(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/tickers", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	client, _ := newTestClient(t, mux)

	_, err := client.BatchTicker(context.Background())
	assert.Error(t, err)
}
