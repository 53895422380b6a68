// Package core wires every subsystem the service needs into one
// long-lived object: the exchange adapter, cooldown/memory/classifier
// stores, the analyzer suite, the signal orchestrator, and the metrics
// and ops-HTTP surfaces. This replaces the teacher's package-level
// singletons (cmd/cryptorun/main.go builds everything inline in main)
// with a single struct cmd/pumpshort constructs once and shuts down once.
package core

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/sawpanic/pumpshort/internal/analyzer"
	"github.com/sawpanic/pumpshort/internal/broadcaster"
	"github.com/sawpanic/pumpshort/internal/budget"
	"github.com/sawpanic/pumpshort/internal/circuitbreaker"
	"github.com/sawpanic/pumpshort/internal/classifier"
	"github.com/sawpanic/pumpshort/internal/config"
	"github.com/sawpanic/pumpshort/internal/cooldown"
	"github.com/sawpanic/pumpshort/internal/exchange"
	"github.com/sawpanic/pumpshort/internal/exchange/kraken"
	"github.com/sawpanic/pumpshort/internal/httpserver"
	"github.com/sawpanic/pumpshort/internal/memory"
	"github.com/sawpanic/pumpshort/internal/memory/postgres"
	"github.com/sawpanic/pumpshort/internal/metrics"
	"github.com/sawpanic/pumpshort/internal/orchestrator"
	"github.com/sawpanic/pumpshort/internal/outcome"
	"github.com/sawpanic/pumpshort/internal/pumpdetector"
	"github.com/sawpanic/pumpshort/internal/snapshotstore"
)

// exchangeCallClasses are the five request classes internal/circuitbreaker
// and internal/budget both key off of.
var exchangeCallClasses = []string{"ticker", "klines", "orderbook", "funding", "open_interest"}

// defaultDailyCallBudget caps each call class well above what the poll
// loop's default interval could plausibly exhaust, leaving headroom for
// the orchestrator's burst of per-symbol analyzer calls during a pump.
const defaultDailyCallBudget = 50_000

// Core owns every wired subsystem for the lifetime of one process.
type Core struct {
	cfg     *config.ServiceConfig
	log     zerolog.Logger
	startAt time.Time

	adapter   exchange.Adapter
	stream    exchange.TradeStream
	snapshots *snapshotstore.Store
	cooldowns cooldown.Store
	orch      *orchestrator.Orchestrator
	classify  classifier.Classifier
	memStore  *memory.Store
	pgManager *postgres.Manager
	tracker   *outcome.Tracker
	metrics   *metrics.Registry
	http      *httpserver.Server

	pollInterval  time.Duration
	lastPollOK    atomic.Bool
}

// New wires every subsystem from cfg but does not yet start polling or
// serving; call Run to begin.
func New(cfg *config.ServiceConfig, log zerolog.Logger) (*Core, error) {
	breakers := circuitbreaker.NewManager(log)
	for class, breakerCfg := range circuitbreaker.DefaultConfigs() {
		breakers.InitializeClass(class, breakerCfg, nil)
	}

	budgets := budget.NewManager()
	for _, class := range exchangeCallClasses {
		budgets.AddCallClass(class, defaultDailyCallBudget, 0, 0.8)
	}

	adapter := kraken.NewClient(kraken.Config{
		BaseURL:        cfg.Exchange.BaseURL,
		RequestTimeout: cfg.Exchange.RequestTimeout,
		RateLimitRPS:   cfg.Exchange.RateLimitRPS,
		RateLimitBurst: cfg.Exchange.RateLimitBurst,
		UserAgent:      cfg.Exchange.UserAgent,
	}, breakers, budgets)

	var stream exchange.TradeStream
	if cfg.Exchange.StreamURL != "" {
		stream = kraken.NewStream(kraken.StreamConfig{URL: cfg.Exchange.StreamURL}, log)
	}

	cooldownPolicy, err := cfg.Cooldown.Resolve()
	if err != nil {
		return nil, fmt.Errorf("core: resolve cooldown policy: %w", err)
	}

	var cooldownStore cooldown.Store
	if cfg.Cooldown.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.Cooldown.RedisAddr, DB: cfg.Cooldown.RedisDB})
		cooldownStore = cooldown.NewRedisStore(client, cfg.Cooldown.TTL)
	} else {
		cooldownStore = cooldown.NewMemoryStore()
	}

	pgManager, err := postgres.NewManager(postgres.Config{
		DSN:          cfg.Memory.PostgresDSN,
		MaxOpenConns: cfg.Memory.MaxOpenConns,
		MaxIdleConns: cfg.Memory.MaxOpenConns,
		QueryTimeout: 5 * time.Second,
		Enabled:      true,
	})
	if err != nil {
		return nil, fmt.Errorf("core: connect memory store: %w", err)
	}
	memStore := memory.NewStore(pgManager.Repository())

	outcomeCfg, err := cfg.Outcome.Resolve()
	if err != nil {
		return nil, fmt.Errorf("core: resolve outcome config: %w", err)
	}

	snapshots := snapshotstore.New(snapshotstore.Config{RetentionWindow: cfg.Snapshot.RetentionWindow})
	broadcast := broadcaster.NewLogBroadcaster(log)
	classify := classifier.NewDiffOfMeansClassifier()

	market := &marketData{adapter: adapter, snapshots: snapshots}
	tracker := outcome.NewTracker(log, memStore, market, outcomeCfg)

	reg := metrics.New(prometheus.DefaultRegisterer)

	orch := orchestrator.New(orchestrator.Dependencies{
		Cooldown:    cooldownStore,
		Policy:      cooldownPolicy,
		Broadcaster: broadcast,
		Market:      market,
		Analyzers:   analyzer.NewSuite(log),
		Memory:      memStore,
		Classifier:  classify,
		Tracker:     tracker,
		Log:         log,
	}, context.Background())

	c := &Core{
		cfg:          cfg,
		log:          log,
		startAt:      time.Now(),
		adapter:      adapter,
		stream:       stream,
		snapshots:    snapshots,
		cooldowns:    cooldownStore,
		orch:         orch,
		classify:     classify,
		memStore:     memStore,
		pgManager:    pgManager,
		tracker:      tracker,
		metrics:      reg,
		pollInterval: cfg.Exchange.PollInterval,
	}
	c.http = httpserver.New(httpserver.Config{Addr: cfg.HTTPServer.Addr}, c, log)
	return c, nil
}

// Run starts the ops HTTP server and the ticker poll loop; it blocks
// until ctx is cancelled.
func (c *Core) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := c.http.Start(); err != nil {
			errCh <- err
		}
	}()

	pollCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go c.pollLoop(pollCtx)
	if c.stream != nil {
		go c.streamLoop(pollCtx)
	}

	select {
	case <-ctx.Done():
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		return c.http.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

// Close releases the memory store's connection pool. Call after Run
// returns.
func (c *Core) Close() error {
	return c.pgManager.Close()
}

func (c *Core) pollLoop(ctx context.Context) {
	interval := c.pollInterval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.pollOnce(ctx)
		}
	}
}

// streamLoop subscribes to the live trade feed and feeds every tick
// straight into the Snapshot Store and Pump Detector, giving CONFIRMING
// actors (internal/orchestrator) a finer-grained price refresh than the
// poll loop's fixed interval can provide, per spec.md §6's trade/ticker
// stream contract.
func (c *Core) streamLoop(ctx context.Context) {
	symbols, err := c.adapter.ListSymbols(ctx)
	if err != nil {
		c.log.Warn().Err(err).Msg("list symbols failed; trade stream disabled")
		return
	}

	trades, err := c.stream.Subscribe(ctx, symbols)
	if err != nil {
		c.log.Warn().Err(err).Msg("trade stream subscribe failed")
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case trade, ok := <-trades:
			if !ok {
				return
			}
			c.handleTrade(ctx, trade)
		}
	}
}

func (c *Core) handleTrade(ctx context.Context, trade exchange.Trade) {
	c.snapshots.Insert(string(trade.Symbol), snapshotstore.Snapshot{
		Timestamp: trade.Time,
		Price:     trade.Price,
		Volume:    trade.Qty,
	})

	recentFast := c.snapshots.Recent(string(trade.Symbol), 5*time.Minute, trade.Time)
	recentElite := c.snapshots.Recent(string(trade.Symbol), 20*time.Minute, trade.Time)
	event := pumpdetector.Detect(string(trade.Symbol), recentFast, recentElite, trade.Time)
	if event == nil {
		return
	}
	c.metrics.RecordPumpEvent(event.Kind.String())
	c.orch.HandlePumpEvent(ctx, *event)
}

func (c *Core) pollOnce(ctx context.Context) {
	timer := c.metrics.StartExchangeCall("ticker")
	tickers, err := c.adapter.BatchTicker(ctx)
	timer.Stop(err)
	c.lastPollOK.Store(err == nil)
	if err != nil {
		c.log.Warn().Err(err).Msg("batch ticker poll failed")
		return
	}

	now := time.Now()
	for symbol, tick := range tickers {
		c.snapshots.Insert(string(symbol), snapshotstore.Snapshot{
			Timestamp: now,
			Price:     tick.LastPrice,
			Volume:    tick.Volume24h,
		})

		recentFast := c.snapshots.Recent(string(symbol), 5*time.Minute, now)
		recentElite := c.snapshots.Recent(string(symbol), 20*time.Minute, now)
		event := pumpdetector.Detect(string(symbol), recentFast, recentElite, now)
		if event == nil {
			continue
		}
		c.metrics.RecordPumpEvent(event.Kind.String())
		c.orch.HandlePumpEvent(ctx, *event)
	}
}
