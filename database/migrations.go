package database

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const migrationsTableName = "schema_migrations"

// migration одна именованная миграция схемы
type migration struct {
	name       string
	statements []string
}

// curationMigrations применяются по порядку, каждая ровно один раз
var curationMigrations = []migration{
	{
		name: "001_line_items",
		statements: []string{
			`CREATE TABLE IF NOT EXISTS line_items (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				order_id TEXT NOT NULL DEFAULT '',
				entity_id TEXT NOT NULL,
				kind TEXT NOT NULL DEFAULT 'sku',
				raw_text TEXT NOT NULL,
				created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
			)`,
			`CREATE INDEX IF NOT EXISTS idx_line_items_entity ON line_items(kind, entity_id)`,
		},
	},
	{
		name: "002_curation_records",
		statements: []string{
			`CREATE TABLE IF NOT EXISTS curation_records (
				entity_id TEXT PRIMARY KEY,
				kind TEXT NOT NULL DEFAULT 'sku',
				run_id TEXT NOT NULL DEFAULT '',
				raw_aliases TEXT NOT NULL DEFAULT '[]',
				best_match_text TEXT NOT NULL DEFAULT '',
				match_score REAL NOT NULL DEFAULT 0,
				runner_up_score REAL NOT NULL DEFAULT 0,
				final_canonical_name TEXT,
				decision TEXT NOT NULL,
				canonical_tokens TEXT NOT NULL DEFAULT '[]',
				alternative_names TEXT NOT NULL DEFAULT '[]',
				ranked_aliases TEXT NOT NULL DEFAULT '[]',
				total_occurrences INTEGER NOT NULL DEFAULT 0,
				reviewed_by TEXT NOT NULL DEFAULT '',
				reviewed_at TEXT,
				updated_at TEXT NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_curation_records_decision ON curation_records(kind, decision)`,
		},
	},
	{
		name: "003_ref_entity_names",
		statements: []string{
			`CREATE TABLE IF NOT EXISTS ref_entity_names (
				entity_id TEXT PRIMARY KEY,
				canonical_name TEXT NOT NULL,
				source TEXT NOT NULL,
				effective_from TEXT NOT NULL DEFAULT '',
				version TEXT NOT NULL DEFAULT ''
			)`,
		},
	},
	{
		name: "004_curation_runs",
		statements: []string{
			`CREATE TABLE IF NOT EXISTS curation_runs (
				run_id TEXT PRIMARY KEY,
				kind TEXT NOT NULL,
				started_at TEXT NOT NULL,
				finished_at TEXT NOT NULL,
				records INTEGER NOT NULL DEFAULT 0,
				failures INTEGER NOT NULL DEFAULT 0,
				skipped INTEGER NOT NULL DEFAULT 0
			)`,
		},
	},
}

// applyMigrations создает таблицу учета и применяет недостающие миграции в транзакциях
func applyMigrations(db *sql.DB) error {
	_, err := db.Exec(fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			name TEXT PRIMARY KEY,
			applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`, migrationsTableName))
	if err != nil {
		return fmt.Errorf("failed to ensure %s table: %w", migrationsTableName, err)
	}

	for _, m := range curationMigrations {
		applied, err := isMigrationApplied(db, m.name)
		if err != nil {
			return err
		}
		if applied {
			continue
		}

		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("failed to begin migration %s: %w", m.name, err)
		}
		for _, stmt := range m.statements {
			if _, err := tx.Exec(stmt); err != nil {
				tx.Rollback()
				return fmt.Errorf("failed to apply migration %s: %w", m.name, err)
			}
		}
		query := fmt.Sprintf(`INSERT INTO %s(name, applied_at) VALUES(?, ?)`, migrationsTableName)
		if _, err := tx.Exec(query, m.name, time.Now().UTC()); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to mark migration %s as applied: %w", m.name, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %s: %w", m.name, err)
		}
	}
	return nil
}

func isMigrationApplied(db *sql.DB, name string) (bool, error) {
	var appliedAt sql.NullTime
	query := fmt.Sprintf(`SELECT applied_at FROM %s WHERE name = ?`, migrationsTableName)
	err := db.QueryRow(query, name).Scan(&appliedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check migration %s: %w", name, err)
	}
	return appliedAt.Valid, nil
}
