package outcome

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/pumpshort/internal/memory"
)

type fixedPriceReader struct{ price float64 }

func (f fixedPriceReader) Price(ctx context.Context, symbol string) (float64, error) {
	return f.price, nil
}

type recordingRepo struct {
	updates []memory.OutcomeUpdate
}

func (r *recordingRepo) RecordSignal(ctx context.Context, row memory.SignalRow) (string, error) {
	return "sig-1", nil
}
func (r *recordingRepo) UpdateOutcome(ctx context.Context, id string, upd memory.OutcomeUpdate) error {
	r.updates = append(r.updates, upd)
	return nil
}
func (r *recordingRepo) RowsForSymbol(ctx context.Context, symbol string) ([]memory.SignalRow, error) {
	return nil, nil
}
func (r *recordingRepo) SimilarSignals(ctx context.Context, pumpPct, combinedScore, pumpBand, scoreBand float64, limit int) ([]memory.SimilarSignal, error) {
	return nil, nil
}
func (r *recordingRepo) Unfinalized(ctx context.Context) ([]memory.SignalRow, error) {
	return nil, nil
}

func TestTrackerScheduledModeFinalizesImmediatelyWhenHorizonsArePast(t *testing.T) {
	repo := &recordingRepo{}
	store := memory.NewStore(repo)
	tracker := NewTracker(zerolog.Nop(), store, fixedPriceReader{price: 90}, Config{Mode: ModeScheduled})

	levels := testLevels()
	emittedAt := time.Now().Add(-5 * time.Hour)

	tracker.Track(context.Background(), "sig-1", "XBTUSD", levels, emittedAt)

	require.NotEmpty(t, repo.updates)
	last := repo.updates[len(repo.updates)-1]
	require.NotNil(t, last.FinalResult)
	assert.Equal(t, memory.WinTP3, *last.FinalResult)
	assert.True(t, last.Finalize)
}

func TestTrackerFinalizeOnceGuardPreventsDoubleWrite(t *testing.T) {
	repo := &recordingRepo{}
	store := memory.NewStore(repo)
	tracker := NewTracker(zerolog.Nop(), store, fixedPriceReader{price: 90}, DefaultConfig())

	assert.True(t, tracker.tryFinalize("sig-1"))
	assert.False(t, tracker.tryFinalize("sig-1"))
}
