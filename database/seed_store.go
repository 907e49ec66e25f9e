package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"orderly/normalization"
)

// UpsertSeedRows сохраняет справочник канонических имен.
// Строки уже слиты через normalization.MergeSeed, поэтому здесь просто замена по entity_id.
func (db *CurationDB) UpsertSeedRows(ctx context.Context, rows []normalization.SeedRow) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	err := withRetry(ctx, db.retry, "upsert seed rows", func() error {
		tx, err := db.conn.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		defer tx.Rollback()

		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO ref_entity_names(entity_id, canonical_name, source, effective_from, version)
			VALUES(?, ?, ?, ?, ?)
			ON CONFLICT(entity_id) DO UPDATE SET
				canonical_name = excluded.canonical_name,
				source = excluded.source,
				effective_from = excluded.effective_from,
				version = excluded.version
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare seed upsert: %w", err)
		}
		defer stmt.Close()

		for _, row := range rows {
			if _, err := stmt.ExecContext(ctx, row.EntityID, row.CanonicalName, string(row.Source), row.EffectiveFrom, row.Version); err != nil {
				return fmt.Errorf("failed to upsert seed row %s: %w", row.EntityID, err)
			}
		}
		return tx.Commit()
	})
	if err != nil {
		return 0, err
	}
	return len(rows), nil
}

// ListSeedRows возвращает справочник, упорядоченный по entity_id
func (db *CurationDB) ListSeedRows(ctx context.Context) ([]normalization.SeedRow, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT entity_id, canonical_name, source, effective_from, version
		FROM ref_entity_names
		ORDER BY entity_id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query seed rows: %w", err)
	}
	defer rows.Close()

	result := []normalization.SeedRow{}
	for rows.Next() {
		var row normalization.SeedRow
		var source string
		if err := rows.Scan(&row.EntityID, &row.CanonicalName, &source, &row.EffectiveFrom, &row.Version); err != nil {
			return nil, fmt.Errorf("failed to scan seed row: %w", err)
		}
		row.Source = normalization.SeedSource(source)
		result = append(result, row)
	}
	return result, rows.Err()
}

// CurationRun сводка одного пакетного прогона
type CurationRun struct {
	RunID      string                   `json:"run_id"`
	Kind       normalization.EntityKind `json:"kind"`
	StartedAt  time.Time                `json:"started_at"`
	FinishedAt time.Time                `json:"finished_at"`
	Records    int                      `json:"records"`
	Failures   int                      `json:"failures"`
	Skipped    int                      `json:"skipped"`
}

// RunFromBatch строит сводку прогона из результата BatchProcessor
func RunFromBatch(kind normalization.EntityKind, result *normalization.BatchResult) CurationRun {
	return CurationRun{
		RunID:      result.RunID,
		Kind:       kind,
		StartedAt:  result.StartedAt,
		FinishedAt: result.FinishedAt,
		Records:    len(result.Records),
		Failures:   len(result.Failures),
		Skipped:    result.Skipped,
	}
}

// SaveCurationRun сохраняет сводку прогона
func (db *CurationDB) SaveCurationRun(ctx context.Context, run CurationRun) error {
	return withRetry(ctx, db.retry, "save curation run", func() error {
		_, err := db.conn.ExecContext(ctx, `
			INSERT OR REPLACE INTO curation_runs(run_id, kind, started_at, finished_at, records, failures, skipped)
			VALUES(?, ?, ?, ?, ?, ?, ?)
		`, run.RunID, string(run.Kind),
			run.StartedAt.UTC().Format(time.RFC3339Nano), run.FinishedAt.UTC().Format(time.RFC3339Nano),
			run.Records, run.Failures, run.Skipped)
		if err != nil {
			return fmt.Errorf("failed to save run %s: %w", run.RunID, err)
		}
		return nil
	})
}

// LatestRun возвращает последний прогон по виду сущностей, nil если прогонов не было
func (db *CurationDB) LatestRun(ctx context.Context, kind normalization.EntityKind) (*CurationRun, error) {
	var run CurationRun
	var kindValue, startedAt, finishedAt string
	err := db.conn.QueryRowContext(ctx, `
		SELECT run_id, kind, started_at, finished_at, records, failures, skipped
		FROM curation_runs
		WHERE kind = ?
		ORDER BY finished_at DESC
		LIMIT 1
	`, string(kind)).Scan(&run.RunID, &kindValue, &startedAt, &finishedAt, &run.Records, &run.Failures, &run.Skipped)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query latest run: %w", err)
	}

	run.Kind = normalization.EntityKind(kindValue)
	run.StartedAt = parseTimestamp(startedAt)
	run.FinishedAt = parseTimestamp(finishedAt)
	return &run, nil
}
