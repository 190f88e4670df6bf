package storage

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/kovalyov-valentin/crypto-news-scraper/internal/model"
	"github.com/lib/pq"
	"github.com/samber/lo"
)

// Журнал прогонов пайплайна
type RunPostgresStorage struct {
	db *sqlx.DB
}

func NewRunPostgresStorage(db *sqlx.DB) *RunPostgresStorage {
	return &RunPostgresStorage{db: db}
}

// Сохраняет итог прогона. Реализует orchestrator.Reporter
func (s *RunPostgresStorage) Report(ctx context.Context, summary model.RunSummary) error {
	conn, err := s.db.Connx(ctx)
	if err != nil {
		return &PersistError{Op: "save run", Err: err}
	}
	defer conn.Close()

	if _, err := conn.ExecContext(
		ctx,
		`INSERT INTO runs (id, started_at, finished_at, found, stored, duplicate, skipped, parse_failed, fetch_failed, persist_failed, failed, errors)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO NOTHING`,
		summary.ID,
		summary.StartedAt.UTC(),
		summary.FinishedAt.UTC(),
		summary.Found,
		summary.Stored,
		summary.Duplicate,
		summary.Skipped,
		summary.ParseFailed,
		summary.FetchFailed,
		summary.PersistFailed,
		summary.Failed,
		pq.StringArray(lo.Ternary(summary.Errors == nil, []string{}, summary.Errors)),
	); err != nil {
		return &PersistError{Op: "save run", Err: err}
	}

	return nil
}

// Последние прогоны, свежие первыми
func (s *RunPostgresStorage) Recent(ctx context.Context, limit int) ([]model.RunSummary, error) {
	if limit <= 0 || limit > maxQueryLimit {
		limit = maxQueryLimit
	}

	conn, err := s.db.Connx(ctx)
	if err != nil {
		return nil, &PersistError{Op: "list runs", Err: err}
	}
	defer conn.Close()

	var runs []dbRun
	if err := conn.SelectContext(
		ctx,
		&runs,
		`SELECT id, started_at, finished_at, found, stored, duplicate, skipped, parse_failed, fetch_failed, persist_failed, failed, errors
		FROM runs ORDER BY started_at DESC LIMIT $1`,
		limit,
	); err != nil {
		return nil, &PersistError{Op: "list runs", Err: err}
	}

	return lo.Map(runs, func(run dbRun, _ int) model.RunSummary {
		return model.RunSummary{
			ID:            run.ID,
			StartedAt:     run.StartedAt,
			FinishedAt:    run.FinishedAt,
			Found:         run.Found,
			Stored:        run.Stored,
			Duplicate:     run.Duplicate,
			Skipped:       run.Skipped,
			ParseFailed:   run.ParseFailed,
			FetchFailed:   run.FetchFailed,
			PersistFailed: run.PersistFailed,
			Failed:        run.Failed,
			Errors:        []string(run.Errors),
		}
	}), nil
}

type dbRun struct {
	ID            string         `db:"id"`
	StartedAt     time.Time      `db:"started_at"`
	FinishedAt    time.Time      `db:"finished_at"`
	Found         int            `db:"found"`
	Stored        int            `db:"stored"`
	Duplicate     int            `db:"duplicate"`
	Skipped       int            `db:"skipped"`
	ParseFailed   int            `db:"parse_failed"`
	FetchFailed   int            `db:"fetch_failed"`
	PersistFailed int            `db:"persist_failed"`
	Failed        bool           `db:"failed"`
	Errors        pq.StringArray `db:"errors"`
}
