package ports

import (
	"context"
	"time"

	"BulletinTracker/internal/domain"
	"BulletinTracker/internal/planner"
)

// BulletinFetcher streams bulletin pages for a set of candidates.
type BulletinFetcher interface {
	Fetch(ctx context.Context, candidates []planner.Candidate) <-chan FetchResult
	Verify(ctx context.Context, candidate planner.Candidate) error
}

// FetchResult carries one downloaded page or its terminal failure.
type FetchResult struct {
	Candidate planner.Candidate
	Status    int
	Body      []byte
	Err       error
	Retries   int
}

// BulletinParser turns raw HTML into a bulletin with its cutoff entries.
type BulletinParser interface {
	Parse(body []byte, candidate planner.Candidate) (*ParsedBulletin, error)
}

// ParsedBulletin is the parser output before normalization.
type ParsedBulletin struct {
	Bulletin   domain.Bulletin
	Entries    []domain.CategoryEntry
	CellsSeen  int
	CellsDated int
	Warnings   []string
}

// BulletinRepository persists bulletins, entries, and forecasts behind a
// backend-agnostic contract.
type BulletinRepository interface {
	UpsertBulletin(ctx context.Context, b domain.Bulletin, entries []domain.CategoryEntry) (int64, error)
	GetBulletin(ctx context.Context, year, month int) (*domain.Bulletin, error)
	ListBulletins(ctx context.Context, fyFrom, fyTo int) ([]domain.Bulletin, error)
	ListEntries(ctx context.Context, bulletinID int64) ([]domain.CategoryEntry, error)
	DeleteEntry(ctx context.Context, entryID int64) error
	GetSeries(ctx context.Context, key domain.SeriesKey, fyFrom, fyTo int) ([]domain.SeriesPoint, error)
	GetStats(ctx context.Context) (*domain.StoreStats, error)
	PutForecast(ctx context.Context, f domain.Forecast) error
	GetForecast(ctx context.Context, key domain.SeriesKey, targetYear, targetMonth int) (*domain.Forecast, error)
	Ping(ctx context.Context) error
	Close() error
}

// Scheduler drives the periodic monthly refresh.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
