// Package postgres implements memory.Repository against PostgreSQL via
// sqlx and lib/pq, following the upsert-with-RETURNING pattern of
// internal/persistence/postgres/premove_repo.go.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/sawpanic/pumpshort/internal/memory"
)

// Repo implements memory.Repository.
type Repo struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewRepo wraps db with per-query timeout.
func NewRepo(db *sqlx.DB, timeout time.Duration) memory.Repository {
	return &Repo{db: db, timeout: timeout}
}

type signalRecord struct {
	ID             string    `db:"id"`
	Symbol         string    `db:"symbol"`
	CreatedAt      time.Time `db:"created_at"`
	PumpPct        float64   `db:"pump_pct"`
	PumpElapsedMin float64   `db:"pump_elapsed_min"`
	EntryPrice     float64   `db:"entry_price"`
	PeakPrice      float64   `db:"peak_price"`
	StartPrice     float64   `db:"start_price"`
	SLPrice        float64   `db:"sl_price"`
	TP1Price       float64   `db:"tp1_price"`
	TP2Price       float64   `db:"tp2_price"`
	TP3Price       float64   `db:"tp3_price"`
	AnalyzerScores []byte    `db:"analyzer_scores"`
	CombinedScore  float64   `db:"combined_score"`
	MLProbability  float64   `db:"ml_probability"`
	Tier           string    `db:"tier"`

	Price5m        *float64 `db:"price_5m"`
	Price15m       *float64 `db:"price_15m"`
	Price30m       *float64 `db:"price_30m"`
	Price1h        *float64 `db:"price_1h"`
	Price4h        *float64 `db:"price_4h"`
	HitTP1         bool     `db:"hit_tp1"`
	HitTP2         bool     `db:"hit_tp2"`
	HitTP3         bool     `db:"hit_tp3"`
	HitSL          bool     `db:"hit_sl"`
	MaxProfitPct   float64  `db:"max_profit_pct"`
	MaxDrawdownPct float64  `db:"max_drawdown_pct"`
	FinalResult    *string  `db:"final_result"`
	Finalized      bool     `db:"finalized"`
}

// RecordSignal inserts a new signal row (spec.md §4.6.1 step 1).
func (r *Repo) RecordSignal(ctx context.Context, row memory.SignalRow) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	scoresJSON, err := json.Marshal(row.AnalyzerScores)
	if err != nil {
		return "", fmt.Errorf("marshal analyzer scores: %w", err)
	}

	id := row.ID
	if id == "" {
		id = uuid.NewString()
	}

	const query = `
		INSERT INTO signal_memory
		(id, symbol, created_at, pump_pct, pump_elapsed_min, entry_price, peak_price,
		 start_price, sl_price, tp1_price, tp2_price, tp3_price, analyzer_scores,
		 combined_score, ml_probability, tier, finalized)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, false)
		RETURNING id`

	var returnedID string
	err = r.db.QueryRowxContext(ctx, query,
		id, row.Symbol, row.CreatedAt, row.PumpPct, row.PumpElapsedMin, row.EntryPrice,
		row.PeakPrice, row.StartPrice, row.SLPrice, row.TPPrices[0], row.TPPrices[1],
		row.TPPrices[2], scoresJSON, row.CombinedScore, row.MLProbability, row.Tier).
		Scan(&returnedID)
	if err != nil {
		return "", fmt.Errorf("insert signal memory: %w", err)
	}

	return returnedID, nil
}

// UpdateOutcome applies a partial outcome patch (spec.md §4.6.1 step 2).
// Only the fields present in upd are written, via COALESCE against the
// existing row so repeated scheduled samples never clobber earlier ones.
func (r *Repo) UpdateOutcome(ctx context.Context, id string, upd memory.OutcomeUpdate) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var finalResult *string
	if upd.FinalResult != nil {
		s := string(*upd.FinalResult)
		finalResult = &s
	}

	const query = `
		UPDATE signal_memory SET
			price_5m        = COALESCE($2, price_5m),
			price_15m       = COALESCE($3, price_15m),
			price_30m       = COALESCE($4, price_30m),
			price_1h        = COALESCE($5, price_1h),
			price_4h        = COALESCE($6, price_4h),
			hit_tp1         = COALESCE($7, hit_tp1),
			hit_tp2         = COALESCE($8, hit_tp2),
			hit_tp3         = COALESCE($9, hit_tp3),
			hit_sl          = COALESCE($10, hit_sl),
			max_profit_pct  = COALESCE($11, max_profit_pct),
			max_drawdown_pct = COALESCE($12, max_drawdown_pct),
			final_result    = COALESCE($13, final_result),
			finalized       = finalized OR $14
		WHERE id = $1`

	res, err := r.db.ExecContext(ctx, query,
		id, upd.Price5m, upd.Price15m, upd.Price30m, upd.Price1h, upd.Price4h,
		upd.HitTP1, upd.HitTP2, upd.HitTP3, upd.HitSL,
		upd.MaxProfitPct, upd.MaxDrawdownPct, finalResult, upd.Finalize)
	if err != nil {
		return fmt.Errorf("update outcome: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("signal memory row %s not found", id)
	}
	return nil
}

// RowsForSymbol returns every row for symbol, oldest first.
func (r *Repo) RowsForSymbol(ctx context.Context, symbol string) ([]memory.SignalRow, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	const query = `SELECT * FROM signal_memory WHERE symbol = $1 ORDER BY created_at ASC`

	var records []signalRecord
	if err := r.db.SelectContext(ctx, &records, query, symbol); err != nil {
		return nil, fmt.Errorf("select rows for symbol: %w", err)
	}

	rows := make([]memory.SignalRow, 0, len(records))
	for _, rec := range records {
		row, err := rec.toSignalRow()
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// SimilarSignals returns finalized rows across all symbols within the
// given pump/score bands, used by the smart overlay's similarity step.
func (r *Repo) SimilarSignals(ctx context.Context, pumpPct, combinedScore, pumpBand, scoreBand float64, limit int) ([]memory.SimilarSignal, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	const query = `
		SELECT pump_pct, combined_score, final_result
		FROM signal_memory
		WHERE finalized = true
		  AND ABS(pump_pct - $1) < $2
		  AND ABS(combined_score - $3) < $4
		ORDER BY created_at DESC
		LIMIT $5`

	rows, err := r.db.QueryxContext(ctx, query, pumpPct, pumpBand, combinedScore, scoreBand, limit)
	if err != nil {
		return nil, fmt.Errorf("select similar signals: %w", err)
	}
	defer rows.Close()

	var out []memory.SimilarSignal
	for rows.Next() {
		var pump, score float64
		var finalResult string
		if err := rows.Scan(&pump, &score, &finalResult); err != nil {
			return nil, fmt.Errorf("scan similar signal: %w", err)
		}
		out = append(out, memory.SimilarSignal{
			PumpPct: pump,
			Score:   score,
			IsWin:   memory.FinalResult(finalResult).IsWin(),
		})
	}
	return out, rows.Err()
}

// Unfinalized returns rows still awaiting outcome sampling.
func (r *Repo) Unfinalized(ctx context.Context) ([]memory.SignalRow, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	const query = `SELECT * FROM signal_memory WHERE finalized = false ORDER BY created_at ASC`

	var records []signalRecord
	if err := r.db.SelectContext(ctx, &records, query); err != nil {
		return nil, fmt.Errorf("select unfinalized rows: %w", err)
	}

	rows := make([]memory.SignalRow, 0, len(records))
	for _, rec := range records {
		row, err := rec.toSignalRow()
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func (rec signalRecord) toSignalRow() (memory.SignalRow, error) {
	var scores memory.AnalyzerScores
	if len(rec.AnalyzerScores) > 0 {
		if err := json.Unmarshal(rec.AnalyzerScores, &scores); err != nil {
			return memory.SignalRow{}, fmt.Errorf("unmarshal analyzer scores: %w", err)
		}
	}

	row := memory.SignalRow{
		ID:             rec.ID,
		Symbol:         rec.Symbol,
		CreatedAt:      rec.CreatedAt,
		PumpPct:        rec.PumpPct,
		PumpElapsedMin: rec.PumpElapsedMin,
		EntryPrice:     rec.EntryPrice,
		PeakPrice:      rec.PeakPrice,
		StartPrice:     rec.StartPrice,
		SLPrice:        rec.SLPrice,
		TPPrices:       [3]float64{rec.TP1Price, rec.TP2Price, rec.TP3Price},
		AnalyzerScores: scores,
		CombinedScore:  rec.CombinedScore,
		MLProbability:  rec.MLProbability,
		Tier:           rec.Tier,
		HitTP1:         rec.HitTP1,
		HitTP2:         rec.HitTP2,
		HitTP3:         rec.HitTP3,
		HitSL:          rec.HitSL,
		MaxProfitPct:   rec.MaxProfitPct,
		MaxDrawdownPct: rec.MaxDrawdownPct,
		Finalized:      rec.Finalized,
	}
	if rec.Price5m != nil {
		row.Price5m = *rec.Price5m
	}
	if rec.Price15m != nil {
		row.Price15m = *rec.Price15m
	}
	if rec.Price30m != nil {
		row.Price30m = *rec.Price30m
	}
	if rec.Price1h != nil {
		row.Price1h = *rec.Price1h
	}
	if rec.Price4h != nil {
		row.Price4h = *rec.Price4h
	}
	if rec.FinalResult != nil {
		row.FinalResult = memory.FinalResult(*rec.FinalResult)
	}
	return row, nil
}
