package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRepo struct {
	rows     []SignalRow
	similar  []SimilarSignal
	recorded []SignalRow
	updated  map[string]OutcomeUpdate
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{updated: make(map[string]OutcomeUpdate)}
}

func (f *fakeRepo) RecordSignal(ctx context.Context, row SignalRow) (string, error) {
	row.ID = "fake-id"
	f.recorded = append(f.recorded, row)
	return row.ID, nil
}

func (f *fakeRepo) UpdateOutcome(ctx context.Context, id string, upd OutcomeUpdate) error {
	f.updated[id] = upd
	return nil
}

func (f *fakeRepo) RowsForSymbol(ctx context.Context, symbol string) ([]SignalRow, error) {
	return f.rows, nil
}

func (f *fakeRepo) SimilarSignals(ctx context.Context, pumpPct, combinedScore, pumpBand, scoreBand float64, limit int) ([]SimilarSignal, error) {
	return f.similar, nil
}

func (f *fakeRepo) Unfinalized(ctx context.Context) ([]SignalRow, error) {
	var out []SignalRow
	for _, r := range f.rows {
		if !r.Finalized {
			out = append(out, r)
		}
	}
	return out, nil
}

func TestStoreRecordSignalReturnsID(t *testing.T) {
	repo := newFakeRepo()
	store := NewStore(repo)

	id, err := store.RecordSignal(context.Background(), SignalRow{Symbol: "XBTUSD"})
	require.NoError(t, err)
	assert.Equal(t, "fake-id", id)
	assert.Len(t, repo.recorded, 1)
}

func TestStoreIntelligenceDerivesFromRepository(t *testing.T) {
	repo := newFakeRepo()
	repo.rows = []SignalRow{
		{Symbol: "XBTUSD", FinalResult: WinTP1, Finalized: true, CreatedAt: time.Now()},
	}
	store := NewStore(repo)

	ci, err := store.Intelligence(context.Background(), "XBTUSD")
	require.NoError(t, err)
	assert.Equal(t, 1, ci.TotalSignals)
	assert.Equal(t, 1.0, ci.WinRate)
}

func TestStoreOverlayCombinesIntelligenceAndSimilarity(t *testing.T) {
	repo := newFakeRepo()
	repo.rows = []SignalRow{
		{Symbol: "XBTUSD", FinalResult: WinTP1, Finalized: true, CreatedAt: time.Now()},
	}
	store := NewStore(repo)

	result, err := store.Overlay(context.Background(), "XBTUSD", OverlayInput{PumpPct: 10, CombinedScore: 7, Hour: 9})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, result.Score, 0.0)
	assert.LessOrEqual(t, result.Score, 10.0)
}

func TestStoreResumeUnfinalized(t *testing.T) {
	repo := newFakeRepo()
	repo.rows = []SignalRow{
		{ID: "a", Finalized: true},
		{ID: "b", Finalized: false},
	}
	store := NewStore(repo)

	rows, err := store.ResumeUnfinalized(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "b", rows[0].ID)
}
