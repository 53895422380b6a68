package kraken

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/sawpanic/pumpshort/internal/exchange"
)

// StreamConfig tunes the trade WebSocket.
type StreamConfig struct {
	URL               string
	HandshakeTimeout  time.Duration
	PingInterval      time.Duration
}

// DefaultStreamConfig matches the teacher's WebSocket defaults.
func DefaultStreamConfig() StreamConfig {
	return StreamConfig{
		URL:              "wss://futures.kraken.com/ws/v1",
		HandshakeTimeout: 30 * time.Second,
		PingInterval:     30 * time.Second,
	}
}

// Stream implements exchange.TradeStream over a single Kraken Futures
// WebSocket connection, adapted from the teacher's WebSocketClient: one
// connection, a read loop forwarding decoded trades onto a channel, and
// a ping loop for liveness. Simplified to the one channel type this
// module needs instead of the teacher's pluggable handler registry.
type Stream struct {
	cfg StreamConfig
	log zerolog.Logger
}

var _ exchange.TradeStream = (*Stream)(nil)

// NewStream wraps a StreamConfig, filling any unset field from
// DefaultStreamConfig.
func NewStream(cfg StreamConfig, log zerolog.Logger) *Stream {
	defaults := DefaultStreamConfig()
	if cfg.URL == "" {
		cfg.URL = defaults.URL
	}
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = defaults.HandshakeTimeout
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = defaults.PingInterval
	}
	return &Stream{cfg: cfg, log: log.With().Str("component", "kraken_stream").Logger()}
}

type subscribeRequest struct {
	Event        string   `json:"event"`
	FeedName     string   `json:"feed"`
	ProductIDs   []string `json:"product_ids"`
}

type tradeMessage struct {
	Feed      string `json:"feed"`
	ProductID string `json:"product_id"`
	Price     string `json:"price"`
	Qty       string `json:"qty"`
	Time      int64  `json:"time"`
}

// Subscribe dials the feed, subscribes symbols to the trade channel, and
// streams decoded Trades until ctx is cancelled or the connection drops.
func (s *Stream) Subscribe(ctx context.Context, symbols []exchange.Symbol) (<-chan exchange.Trade, error) {
	dialer := websocket.Dialer{HandshakeTimeout: s.cfg.HandshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, s.cfg.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("kraken stream dial: %w", err)
	}

	productIDs := make([]string, len(symbols))
	for i, sym := range symbols {
		productIDs[i] = string(sym)
	}
	sub := subscribeRequest{Event: "subscribe", FeedName: "trade", ProductIDs: productIDs}
	if err := conn.WriteJSON(sub); err != nil {
		conn.Close()
		return nil, fmt.Errorf("kraken stream subscribe: %w", err)
	}

	out := make(chan exchange.Trade, 256)
	go s.readLoop(ctx, conn, out)
	go s.pingLoop(ctx, conn)

	return out, nil
}

func (s *Stream) readLoop(ctx context.Context, conn *websocket.Conn, out chan<- exchange.Trade) {
	defer close(out)
	defer conn.Close()

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				s.log.Warn().Err(err).Msg("kraken stream read failed")
			}
			return
		}

		var msg tradeMessage
		if err := json.Unmarshal(raw, &msg); err != nil || msg.Feed != "trade" {
			continue
		}
		trade, ok := parseTrade(msg)
		if !ok {
			continue
		}

		select {
		case out <- trade:
		case <-ctx.Done():
			return
		}
	}
}

func parseTrade(msg tradeMessage) (exchange.Trade, bool) {
	price, err := strconv.ParseFloat(msg.Price, 64)
	if err != nil {
		return exchange.Trade{}, false
	}
	qty, err := strconv.ParseFloat(msg.Qty, 64)
	if err != nil {
		return exchange.Trade{}, false
	}
	return exchange.Trade{
		Symbol: exchange.Symbol(msg.ProductID),
		Price:  price,
		Qty:    qty,
		Time:   time.UnixMilli(msg.Time),
	}, true
}

func (s *Stream) pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(s.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
