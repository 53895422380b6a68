package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/pumpshort/internal/memory"
	"github.com/sawpanic/pumpshort/internal/memory/postgres"
)

func newMockRepo(t *testing.T) (memory.Repository, sqlmock.Sqlmock, func()) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	sqlxDB := sqlx.NewDb(mockDB, "postgres")
	repo := postgres.NewRepo(sqlxDB, 2*time.Second)
	return repo, mock, func() { mockDB.Close() }
}

func TestRecordSignalReturnsGeneratedID(t *testing.T) {
	repo, mock, closeFn := newMockRepo(t)
	defer closeFn()

	row := memory.SignalRow{
		Symbol:         "XBTUSD",
		CreatedAt:      time.Date(2026, 7, 29, 12, 0, 0, 0, time.UTC),
		PumpPct:        12.5,
		AnalyzerScores: memory.AnalyzerScores{"orderbook_pressure": 7.5},
		CombinedScore:  7.1,
		Tier:           "A",
	}

	mock.ExpectQuery("INSERT INTO signal_memory").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("generated-id"))

	id, err := repo.RecordSignal(context.Background(), row)
	require.NoError(t, err)
	assert.Equal(t, "generated-id", id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateOutcomeNotFound(t *testing.T) {
	repo, mock, closeFn := newMockRepo(t)
	defer closeFn()

	mock.ExpectExec("UPDATE signal_memory SET").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateOutcome(context.Background(), "missing-id", memory.OutcomeUpdate{})
	assert.ErrorContains(t, err, "not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateOutcomeAppliesPartialFields(t *testing.T) {
	repo, mock, closeFn := newMockRepo(t)
	defer closeFn()

	mock.ExpectExec("UPDATE signal_memory SET").
		WillReturnResult(sqlmock.NewResult(0, 1))

	price5m := 101.5
	err := repo.UpdateOutcome(context.Background(), "row-id", memory.OutcomeUpdate{Price5m: &price5m})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSimilarSignalsMapsFinalResultToIsWin(t *testing.T) {
	repo, mock, closeFn := newMockRepo(t)
	defer closeFn()

	rows := sqlmock.NewRows([]string{"pump_pct", "combined_score", "final_result"}).
		AddRow(11.0, 7.2, "WIN_TP1").
		AddRow(9.5, 6.8, "LOSS_SL")

	mock.ExpectQuery("SELECT pump_pct, combined_score, final_result").WillReturnRows(rows)

	similar, err := repo.SimilarSignals(context.Background(), 10.0, 7.0, 10.0, 2.0, 50)
	require.NoError(t, err)
	require.Len(t, similar, 2)
	assert.True(t, similar[0].IsWin)
	assert.False(t, similar[1].IsWin)
}
