package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"BulletinTracker/internal/domain"
)

// schemaVersion is bumped on any incompatible layout change. A mismatched
// store refuses to start instead of migrating silently.
const schemaVersion = 1

var sqliteDDL = []string{
	`CREATE TABLE IF NOT EXISTS bulletins (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		year INTEGER NOT NULL,
		month INTEGER NOT NULL,
		fiscal_year INTEGER NOT NULL,
		bulletin_date TIMESTAMP NOT NULL,
		source_url TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL,
		UNIQUE (year, month)
	)`,
	`CREATE TABLE IF NOT EXISTS category_entries (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		bulletin_id INTEGER NOT NULL REFERENCES bulletins (id) ON DELETE CASCADE,
		category TEXT NOT NULL,
		country TEXT NOT NULL,
		chart TEXT NOT NULL,
		status TEXT NOT NULL,
		priority_date TIMESTAMP,
		notes TEXT NOT NULL DEFAULT '',
		UNIQUE (bulletin_id, category, country, chart)
	)`,
	`CREATE TABLE IF NOT EXISTS forecasts (
		category TEXT NOT NULL,
		country TEXT NOT NULL,
		chart TEXT NOT NULL,
		target_year INTEGER NOT NULL,
		target_month INTEGER NOT NULL,
		predicted_date TIMESTAMP NOT NULL,
		confidence REAL NOT NULL,
		model_id TEXT NOT NULL,
		produced_at TIMESTAMP NOT NULL,
		features_hash TEXT NOT NULL,
		PRIMARY KEY (category, country, chart, target_year, target_month)
	)`,
	`CREATE TABLE IF NOT EXISTS schema_info (
		version INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_entries_series
		ON category_entries (category, country, chart)`,
}

var postgresDDL = []string{
	`CREATE TABLE IF NOT EXISTS bulletins (
		id BIGSERIAL PRIMARY KEY,
		year INTEGER NOT NULL,
		month INTEGER NOT NULL,
		fiscal_year INTEGER NOT NULL,
		bulletin_date TIMESTAMP NOT NULL,
		source_url TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL,
		UNIQUE (year, month)
	)`,
	`CREATE TABLE IF NOT EXISTS category_entries (
		id BIGSERIAL PRIMARY KEY,
		bulletin_id BIGINT NOT NULL REFERENCES bulletins (id) ON DELETE CASCADE,
		category TEXT NOT NULL,
		country TEXT NOT NULL,
		chart TEXT NOT NULL,
		status TEXT NOT NULL,
		priority_date TIMESTAMP,
		notes TEXT NOT NULL DEFAULT '',
		UNIQUE (bulletin_id, category, country, chart)
	)`,
	`CREATE TABLE IF NOT EXISTS forecasts (
		category TEXT NOT NULL,
		country TEXT NOT NULL,
		chart TEXT NOT NULL,
		target_year INTEGER NOT NULL,
		target_month INTEGER NOT NULL,
		predicted_date TIMESTAMP NOT NULL,
		confidence DOUBLE PRECISION NOT NULL,
		model_id TEXT NOT NULL,
		produced_at TIMESTAMP NOT NULL,
		features_hash TEXT NOT NULL,
		PRIMARY KEY (category, country, chart, target_year, target_month)
	)`,
	`CREATE TABLE IF NOT EXISTS schema_info (
		version INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_entries_series
		ON category_entries (category, country, chart)`,
}

// ensureSchema creates missing tables and verifies the stored version.
func ensureSchema(ctx context.Context, db *sql.DB, ddl []string) error {
	for _, stmt := range ddl {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %v: %w", err, domain.ErrStorage)
		}
	}

	var version int
	err := db.QueryRowContext(ctx, `SELECT version FROM schema_info`).Scan(&version)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		stmt := fmt.Sprintf(`INSERT INTO schema_info (version) VALUES (%d)`, schemaVersion)
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("write schema version: %v: %w", err, domain.ErrStorage)
		}
	case err != nil:
		return fmt.Errorf("read schema version: %v: %w", err, domain.ErrStorage)
	case version != schemaVersion:
		return fmt.Errorf("schema version %d, want %d: %w", version, schemaVersion, domain.ErrStorage)
	}

	return nil
}
