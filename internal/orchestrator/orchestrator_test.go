package orchestrator

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/pumpshort/internal/analyzer"
	"github.com/sawpanic/pumpshort/internal/broadcaster"
	"github.com/sawpanic/pumpshort/internal/classifier"
	"github.com/sawpanic/pumpshort/internal/cooldown"
	"github.com/sawpanic/pumpshort/internal/memory"
	"github.com/sawpanic/pumpshort/internal/outcome"
	"github.com/sawpanic/pumpshort/internal/pumpdetector"
)

type fakeMarket struct {
	price float64
}

func (f *fakeMarket) Price(ctx context.Context, symbol string) (float64, error) {
	return f.price, nil
}

func (f *fakeMarket) AnalyzerInput(ctx context.Context, symbol string, event pumpdetector.PumpEvent, entryPrice float64, now time.Time) (analyzer.Input, error) {
	return analyzer.Input{Symbol: symbol, PumpPct: event.PumpPct, EntryPrice: entryPrice, Now: now}, nil
}

type recordingBroadcaster struct {
	mu       sync.Mutex
	messages []string
}

func (b *recordingBroadcaster) Broadcast(ctx context.Context, text string, keyboard []broadcaster.Button, opts broadcaster.Options) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.messages = append(b.messages, text)
	return nil
}

func (b *recordingBroadcaster) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.messages)
}

type fakeRepo struct {
	mu      sync.Mutex
	rows    []memory.SignalRow
	updates []memory.OutcomeUpdate
}

func (r *fakeRepo) RecordSignal(ctx context.Context, row memory.SignalRow) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row.ID = "sig-1"
	r.rows = append(r.rows, row)
	return row.ID, nil
}

func (r *fakeRepo) UpdateOutcome(ctx context.Context, id string, upd memory.OutcomeUpdate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates = append(r.updates, upd)
	return nil
}

func (r *fakeRepo) RowsForSymbol(ctx context.Context, symbol string) ([]memory.SignalRow, error) {
	return nil, nil
}

func (r *fakeRepo) SimilarSignals(ctx context.Context, pumpPct, combinedScore, pumpBand, scoreBand float64, limit int) ([]memory.SimilarSignal, error) {
	return nil, nil
}

func (r *fakeRepo) Unfinalized(ctx context.Context) ([]memory.SignalRow, error) {
	return nil, nil
}

func newTestDeps(price float64) (Dependencies, *recordingBroadcaster, *fakeRepo) {
	bc := &recordingBroadcaster{}
	repo := &fakeRepo{}
	memStore := memory.NewStore(repo)
	market := &fakeMarket{price: price}
	tracker := outcome.NewTracker(zerolog.Nop(), memStore, market, outcome.Config{Mode: outcome.ModeScheduled})

	return Dependencies{
		Cooldown:    cooldown.NewMemoryStore(),
		Policy:      cooldown.CooldownPolicyDefault(),
		Broadcaster: bc,
		Market:      market,
		Analyzers:   analyzer.NewSuite(zerolog.Nop()),
		Memory:      memStore,
		Classifier:  classifier.NewDiffOfMeansClassifier(),
		Tracker:     tracker,
		Log:         zerolog.Nop(),
	}, bc, repo
}

func testEvent(symbol string, peak float64) pumpdetector.PumpEvent {
	return pumpdetector.PumpEvent{
		Symbol:         symbol,
		Kind:           pumpdetector.KindFast,
		PumpPct:        12,
		ElapsedMinutes: 3,
		PriceStart:     100,
		PricePeak:      peak,
		CurrentPrice:   peak,
		DetectedAt:     time.Now(),
	}
}

func TestHandlePumpEvent_NewSymbolNotifiesAndAcquires(t *testing.T) {
	deps, bc, _ := newTestDeps(90)
	o := New(deps, context.Background())

	o.HandlePumpEvent(context.Background(), testEvent("BTCUSDT", 112))

	assert.Equal(t, 1, bc.count())

	entry, err := deps.Cooldown.Get(context.Background(), "BTCUSDT")
	require.NoError(t, err)
	assert.Equal(t, 112.0, entry.LastNotifiedPeak)
	assert.Equal(t, pumpdetector.KindFast.String(), entry.LastNotifiedTier)
}

func TestHandlePumpEvent_RunningActorWithoutQualifyingReplaceIsIgnored(t *testing.T) {
	deps, bc, _ := newTestDeps(90)
	o := New(deps, context.Background())

	o.mu.Lock()
	_, cancel := context.WithCancel(context.Background())
	o.actors["ETHUSDT"] = &actorHandle{cancel: cancel}
	o.mu.Unlock()
	require.NoError(t, deps.Cooldown.Set(context.Background(), "ETHUSDT", cooldown.Entry{
		LastNotifiedPeak: 100,
		LastNotifiedTier: pumpdetector.KindFast.String(),
		LastNotifyTime:   time.Now(),
		ActiveAnalysis:   true,
	}))

	// 2% above the last notified peak does not clear ShouldReplace's 5%
	// bar, so the running actor must be left alone.
	o.HandlePumpEvent(context.Background(), testEvent("ETHUSDT", 102))

	assert.Equal(t, 0, bc.count())
	o.mu.Lock()
	_, stillRunning := o.actors["ETHUSDT"]
	o.mu.Unlock()
	assert.True(t, stillRunning)
}

func TestHandlePumpEvent_ReplacesOnQualifyingHigherPeak(t *testing.T) {
	deps, bc, _ := newTestDeps(90)
	o := New(deps, context.Background())

	cancelled := false
	o.mu.Lock()
	o.actors["SOLUSDT"] = &actorHandle{cancel: func() { cancelled = true }}
	o.mu.Unlock()
	require.NoError(t, deps.Cooldown.Set(context.Background(), "SOLUSDT", cooldown.Entry{
		LastNotifiedPeak: 100,
		LastNotifiedTier: pumpdetector.KindFast.String(),
		LastNotifyTime:   time.Now(),
		ActiveAnalysis:   true,
	}))

	// 6% above the last notified peak clears ShouldReplace's 5% bar, so
	// the running actor is cancelled. It stays under the default policy's
	// 10% repeat threshold, so the replacement actor starts without a new
	// notification and the recorded peak is unchanged.
	o.HandlePumpEvent(context.Background(), testEvent("SOLUSDT", 106))

	assert.True(t, cancelled)
	assert.Equal(t, 0, bc.count())

	entry, err := deps.Cooldown.Get(context.Background(), "SOLUSDT")
	require.NoError(t, err)
	assert.Equal(t, 100.0, entry.LastNotifiedPeak)
}

func TestScoreAtAndEmitSignal_RecordsRowAndBroadcasts(t *testing.T) {
	deps, bc, repo := newTestDeps(95)
	o := New(deps, context.Background())
	event := testEvent("BTCUSDT", 112)

	tk, ok := o.scoreAt(context.Background(), event, 95)
	require.True(t, ok)
	assert.Len(t, tk.Analyzers, 10)

	o.emitSignal(context.Background(), event, tk, 95, event.PriceStart)

	require.Len(t, repo.rows, 1)
	row := repo.rows[0]
	assert.Equal(t, "BTCUSDT", row.Symbol)
	assert.Equal(t, 95.0, row.EntryPrice)
	assert.Greater(t, row.SLPrice, row.EntryPrice)
	assert.Equal(t, 1, bc.count())
}

func TestTierRankAndParseTier(t *testing.T) {
	assert.Greater(t, tierRank(pumpdetector.KindFast), tierRank(pumpdetector.KindElite))
	assert.Greater(t, tierRank(pumpdetector.KindElite), tierRank(pumpdetector.KindNone))
	assert.Equal(t, pumpdetector.KindFast, parseTier("FAST"))
	assert.Equal(t, pumpdetector.KindElite, parseTier("ELITE"))
	assert.Equal(t, pumpdetector.KindNone, parseTier("anything else"))
}
