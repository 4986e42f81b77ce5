// Package storage implements the bulletin repository over database/sql
// with an embedded SQLite backend and a Postgres server backend.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"BulletinTracker/internal/config"
	"BulletinTracker/internal/domain"
	"BulletinTracker/internal/ports"
)

// SQLRepository persists bulletins, entries, and forecasts. Both backends
// share the same query set; only placeholders, DDL, and id retrieval vary.
type SQLRepository struct {
	db       *sql.DB
	builder  sq.StatementBuilderType
	postgres bool
	now      func() time.Time
}

var _ ports.BulletinRepository = (*SQLRepository)(nil)

// Open selects the backend from configuration, connects, and verifies the
// schema. The returned repository is a process singleton.
func Open(ctx context.Context, cfg config.StorageConfig) (*SQLRepository, error) {
	var (
		driver   string
		builder  sq.StatementBuilderType
		ddl      []string
		postgres bool
	)

	switch cfg.Backend {
	case config.BackendEmbedded:
		driver = "sqlite3"
		builder = sq.StatementBuilder.PlaceholderFormat(sq.Question)
		ddl = sqliteDDL
	case config.BackendServer:
		driver = "postgres"
		builder = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
		ddl = postgresDDL
		postgres = true
	default:
		return nil, fmt.Errorf("unknown storage backend %q: %w", cfg.Backend, domain.ErrConfig)
	}

	db, err := sql.Open(driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %v: %w", cfg.Backend, err, domain.ErrStorage)
	}

	if !postgres {
		if _, err := db.ExecContext(ctx, `PRAGMA foreign_keys = ON`); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("enable foreign keys: %v: %w", err, domain.ErrStorage)
		}
	}

	if err := ensureSchema(ctx, db, ddl); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &SQLRepository{
		db:       db,
		builder:  builder,
		postgres: postgres,
		now:      func() time.Time { return time.Now().UTC() },
	}, nil
}

// Close releases the underlying connection pool.
func (r *SQLRepository) Close() error {
	return r.db.Close()
}

// Ping verifies connectivity.
func (r *SQLRepository) Ping(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping store: %v: %w", err, domain.ErrStorage)
	}
	return nil
}

// UpsertBulletin writes the bulletin and replaces its child entries in one
// transaction. Re-running with identical content preserves created_at and
// entity counts; only updated_at moves.
func (r *SQLRepository) UpsertBulletin(ctx context.Context, b domain.Bulletin, entries []domain.CategoryEntry) (int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin upsert: %v: %w", err, domain.ErrStorage)
	}
	defer func() { _ = tx.Rollback() }()

	now := r.now()

	bulletinID, err := r.upsertBulletinRow(ctx, tx, b, now)
	if err != nil {
		return 0, err
	}

	del := r.builder.Delete("category_entries").Where(sq.Eq{"bulletin_id": bulletinID})
	query, args, err := del.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build entry delete: %v: %w", err, domain.ErrStorage)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return 0, fmt.Errorf("clear entries: %v: %w", err, domain.ErrStorage)
	}

	for _, entry := range entries {
		ins := r.builder.Insert("category_entries").
			Columns("bulletin_id", "category", "country", "chart", "status", "priority_date", "notes").
			Values(bulletinID, entry.Category, entry.Country, entry.Chart, entry.Status,
				nullableTime(entry.PriorityDate), entry.Notes)
		query, args, err := ins.ToSql()
		if err != nil {
			return 0, fmt.Errorf("build entry insert: %v: %w", err, domain.ErrStorage)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return 0, fmt.Errorf("insert entry %s/%s/%s: %v: %w",
				entry.Category, entry.Country, entry.Chart, err, domain.ErrStorage)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit upsert: %v: %w", err, domain.ErrStorage)
	}

	return bulletinID, nil
}

func (r *SQLRepository) upsertBulletinRow(ctx context.Context, tx *sql.Tx, b domain.Bulletin, now time.Time) (int64, error) {
	sel := r.builder.Select("id").From("bulletins").
		Where(sq.Eq{"year": b.Year, "month": b.Month})
	query, args, err := sel.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build bulletin lookup: %v: %w", err, domain.ErrStorage)
	}

	var existingID int64
	err = tx.QueryRowContext(ctx, query, args...).Scan(&existingID)
	switch {
	case err == nil:
		upd := r.builder.Update("bulletins").
			Set("fiscal_year", b.FiscalYear).
			Set("bulletin_date", b.BulletinDate).
			Set("source_url", b.SourceURL).
			Set("updated_at", now).
			Where(sq.Eq{"id": existingID})
		query, args, err := upd.ToSql()
		if err != nil {
			return 0, fmt.Errorf("build bulletin update: %v: %w", err, domain.ErrStorage)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return 0, fmt.Errorf("update bulletin %d-%02d: %v: %w", b.Year, b.Month, err, domain.ErrStorage)
		}
		return existingID, nil

	case errors.Is(err, sql.ErrNoRows):
		ins := r.builder.Insert("bulletins").
			Columns("year", "month", "fiscal_year", "bulletin_date", "source_url", "created_at", "updated_at").
			Values(b.Year, b.Month, b.FiscalYear, b.BulletinDate, b.SourceURL, now, now)

		if r.postgres {
			query, args, err := ins.Suffix("RETURNING id").ToSql()
			if err != nil {
				return 0, fmt.Errorf("build bulletin insert: %v: %w", err, domain.ErrStorage)
			}
			var id int64
			if err := tx.QueryRowContext(ctx, query, args...).Scan(&id); err != nil {
				return 0, fmt.Errorf("insert bulletin %d-%02d: %v: %w", b.Year, b.Month, err, domain.ErrStorage)
			}
			return id, nil
		}

		query, args, err := ins.ToSql()
		if err != nil {
			return 0, fmt.Errorf("build bulletin insert: %v: %w", err, domain.ErrStorage)
		}
		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return 0, fmt.Errorf("insert bulletin %d-%02d: %v: %w", b.Year, b.Month, err, domain.ErrStorage)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return 0, fmt.Errorf("bulletin id: %v: %w", err, domain.ErrStorage)
		}
		return id, nil

	default:
		return 0, fmt.Errorf("lookup bulletin %d-%02d: %v: %w", b.Year, b.Month, err, domain.ErrStorage)
	}
}

// GetBulletin returns the bulletin for (year, month) or nil when absent.
func (r *SQLRepository) GetBulletin(ctx context.Context, year, month int) (*domain.Bulletin, error) {
	sel := r.bulletinSelect().Where(sq.Eq{"year": year, "month": month})
	query, args, err := sel.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build bulletin query: %v: %w", err, domain.ErrStorage)
	}

	b, err := scanBulletin(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get bulletin %d-%02d: %v: %w", year, month, err, domain.ErrStorage)
	}
	return b, nil
}

// ListBulletins returns bulletins for the fiscal-year range ordered by
// (year, month).
func (r *SQLRepository) ListBulletins(ctx context.Context, fyFrom, fyTo int) ([]domain.Bulletin, error) {
	sel := r.bulletinSelect().
		Where(sq.And{sq.GtOrEq{"fiscal_year": fyFrom}, sq.LtOrEq{"fiscal_year": fyTo}}).
		OrderBy("year", "month")
	query, args, err := sel.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build bulletin list: %v: %w", err, domain.ErrStorage)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list bulletins: %v: %w", err, domain.ErrStorage)
	}
	defer rows.Close()

	var bulletins []domain.Bulletin
	for rows.Next() {
		b, err := scanBulletin(rows)
		if err != nil {
			return nil, fmt.Errorf("scan bulletin: %v: %w", err, domain.ErrStorage)
		}
		bulletins = append(bulletins, *b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate bulletins: %v: %w", err, domain.ErrStorage)
	}

	return bulletins, nil
}

// ListEntries returns the child entries of one bulletin.
func (r *SQLRepository) ListEntries(ctx context.Context, bulletinID int64) ([]domain.CategoryEntry, error) {
	sel := r.builder.
		Select("id", "bulletin_id", "category", "country", "chart", "status", "priority_date", "notes").
		From("category_entries").
		Where(sq.Eq{"bulletin_id": bulletinID}).
		OrderBy("category", "country", "chart")
	query, args, err := sel.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build entry list: %v: %w", err, domain.ErrStorage)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list entries: %v: %w", err, domain.ErrStorage)
	}
	defer rows.Close()

	var entries []domain.CategoryEntry
	for rows.Next() {
		var (
			entry    domain.CategoryEntry
			category string
			country  string
			chart    string
			status   string
			date     sql.NullTime
		)
		if err := rows.Scan(&entry.ID, &entry.BulletinID, &category, &country, &chart, &status, &date, &entry.Notes); err != nil {
			return nil, fmt.Errorf("scan entry: %v: %w", err, domain.ErrStorage)
		}
		if entry.Category, err = domain.ParseCategory(category); err != nil {
			return nil, err
		}
		if entry.Country, err = domain.ParseCountry(country); err != nil {
			return nil, err
		}
		if entry.Chart, err = domain.ParseChart(chart); err != nil {
			return nil, err
		}
		if entry.Status, err = domain.ParseStatus(status); err != nil {
			return nil, err
		}
		if date.Valid {
			d := date.Time.UTC()
			entry.PriorityDate = &d
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entries: %v: %w", err, domain.ErrStorage)
	}

	return entries, nil
}

// DeleteEntry removes one entry by id.
func (r *SQLRepository) DeleteEntry(ctx context.Context, entryID int64) error {
	del := r.builder.Delete("category_entries").Where(sq.Eq{"id": entryID})
	query, args, err := del.ToSql()
	if err != nil {
		return fmt.Errorf("build entry delete: %v: %w", err, domain.ErrStorage)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("delete entry %d: %v: %w", entryID, err, domain.ErrStorage)
	}
	return nil
}

// GetSeries returns one cutoff series ordered ascending by bulletin month.
func (r *SQLRepository) GetSeries(ctx context.Context, key domain.SeriesKey, fyFrom, fyTo int) ([]domain.SeriesPoint, error) {
	sel := r.builder.
		Select("b.bulletin_date", "e.status", "e.priority_date").
		From("category_entries e").
		Join("bulletins b ON b.id = e.bulletin_id").
		Where(sq.Eq{"e.category": key.Category, "e.country": key.Country, "e.chart": key.Chart}).
		Where(sq.And{sq.GtOrEq{"b.fiscal_year": fyFrom}, sq.LtOrEq{"b.fiscal_year": fyTo}}).
		OrderBy("b.year", "b.month")
	query, args, err := sel.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build series query: %v: %w", err, domain.ErrStorage)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("series %s: %v: %w", key, err, domain.ErrStorage)
	}
	defer rows.Close()

	var points []domain.SeriesPoint
	for rows.Next() {
		var (
			point  domain.SeriesPoint
			status string
			date   sql.NullTime
		)
		if err := rows.Scan(&point.BulletinDate, &status, &date); err != nil {
			return nil, fmt.Errorf("scan series point: %v: %w", err, domain.ErrStorage)
		}
		if point.Status, err = domain.ParseStatus(status); err != nil {
			return nil, err
		}
		point.BulletinDate = point.BulletinDate.UTC()
		if date.Valid {
			d := date.Time.UTC()
			point.PriorityDate = &d
		}
		points = append(points, point)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate series: %v: %w", err, domain.ErrStorage)
	}

	return points, nil
}

// GetStats summarizes the whole store.
func (r *SQLRepository) GetStats(ctx context.Context) (*domain.StoreStats, error) {
	stats := &domain.StoreStats{}

	row := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*), MIN(bulletin_date), MAX(bulletin_date), MAX(updated_at) FROM bulletins`)
	var earliest, latest, ingested sql.NullString
	if err := row.Scan(&stats.BulletinCount, &earliest, &latest, &ingested); err != nil {
		return nil, fmt.Errorf("bulletin stats: %v: %w", err, domain.ErrStorage)
	}
	// SQLite returns MIN/MAX of a timestamp column as text, so both backends
	// are scanned as strings and parsed here.
	targets := []**time.Time{&stats.Earliest, &stats.Latest, &stats.LastIngestAt}
	for i, raw := range []sql.NullString{earliest, latest, ingested} {
		if !raw.Valid {
			continue
		}
		t, err := time.Parse(time.RFC3339Nano, strings.Replace(raw.String, " ", "T", 1))
		if err != nil {
			return nil, fmt.Errorf("bulletin stats: %v: %w", err, domain.ErrStorage)
		}
		t = t.UTC()
		*targets[i] = &t
	}

	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM category_entries`).Scan(&stats.EntryCount); err != nil {
		return nil, fmt.Errorf("entry stats: %v: %w", err, domain.ErrStorage)
	}

	return stats, nil
}

// PutForecast stores or replaces a forecast for its key.
func (r *SQLRepository) PutForecast(ctx context.Context, f domain.Forecast) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin forecast write: %v: %w", err, domain.ErrStorage)
	}
	defer func() { _ = tx.Rollback() }()

	del := r.builder.Delete("forecasts").Where(sq.Eq{
		"category":     f.Key.Category,
		"country":      f.Key.Country,
		"chart":        f.Key.Chart,
		"target_year":  f.TargetYear,
		"target_month": f.TargetMonth,
	})
	query, args, err := del.ToSql()
	if err != nil {
		return fmt.Errorf("build forecast delete: %v: %w", err, domain.ErrStorage)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("clear forecast: %v: %w", err, domain.ErrStorage)
	}

	ins := r.builder.Insert("forecasts").
		Columns("category", "country", "chart", "target_year", "target_month",
			"predicted_date", "confidence", "model_id", "produced_at", "features_hash").
		Values(f.Key.Category, f.Key.Country, f.Key.Chart, f.TargetYear, f.TargetMonth,
			f.PredictedDate, f.Confidence, f.ModelID, f.ProducedAt, f.FeaturesHash)
	query, args, err = ins.ToSql()
	if err != nil {
		return fmt.Errorf("build forecast insert: %v: %w", err, domain.ErrStorage)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert forecast: %v: %w", err, domain.ErrStorage)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit forecast: %v: %w", err, domain.ErrStorage)
	}

	return nil
}

// GetForecast returns the stored forecast for the key or nil when absent.
func (r *SQLRepository) GetForecast(ctx context.Context, key domain.SeriesKey, targetYear, targetMonth int) (*domain.Forecast, error) {
	sel := r.builder.
		Select("predicted_date", "confidence", "model_id", "produced_at", "features_hash").
		From("forecasts").
		Where(sq.Eq{
			"category":     key.Category,
			"country":      key.Country,
			"chart":        key.Chart,
			"target_year":  targetYear,
			"target_month": targetMonth,
		})
	query, args, err := sel.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build forecast query: %v: %w", err, domain.ErrStorage)
	}

	f := domain.Forecast{Key: key, TargetYear: targetYear, TargetMonth: targetMonth}
	err = r.db.QueryRowContext(ctx, query, args...).
		Scan(&f.PredictedDate, &f.Confidence, &f.ModelID, &f.ProducedAt, &f.FeaturesHash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get forecast %s: %v: %w", key, err, domain.ErrStorage)
	}

	f.PredictedDate = f.PredictedDate.UTC()
	f.ProducedAt = f.ProducedAt.UTC()
	return &f, nil
}

func (r *SQLRepository) bulletinSelect() sq.SelectBuilder {
	return r.builder.
		Select("id", "year", "month", "fiscal_year", "bulletin_date", "source_url", "created_at", "updated_at").
		From("bulletins")
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBulletin(row rowScanner) (*domain.Bulletin, error) {
	var b domain.Bulletin
	if err := row.Scan(&b.ID, &b.Year, &b.Month, &b.FiscalYear,
		&b.BulletinDate, &b.SourceURL, &b.CreatedAt, &b.UpdatedAt); err != nil {
		return nil, err
	}
	b.BulletinDate = b.BulletinDate.UTC()
	b.CreatedAt = b.CreatedAt.UTC()
	b.UpdatedAt = b.UpdatedAt.UTC()
	return &b, nil
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}
