package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"BulletinTracker/internal/config"
	"BulletinTracker/internal/domain"
)

func openTestRepository(t *testing.T) *SQLRepository {
	t.Helper()

	repo, err := Open(context.Background(), config.StorageConfig{
		Backend: config.BackendEmbedded,
		DSN:     filepath.Join(t.TempDir(), "test.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func testBulletin(year, month int) domain.Bulletin {
	return domain.Bulletin{
		Year:         year,
		Month:        month,
		FiscalYear:   domain.FiscalYear(year, month),
		BulletinDate: time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC),
		SourceURL:    "https://example.org/bulletin",
	}
}

func testEntries() []domain.CategoryEntry {
	date := time.Date(2020, time.January, 1, 0, 0, 0, 0, time.UTC)
	return []domain.CategoryEntry{
		{Category: domain.CategoryEB2, Country: domain.CountryIndia,
			Chart: domain.ChartFinalAction, Status: domain.StatusDated, PriorityDate: &date},
		{Category: domain.CategoryEB1, Country: domain.CountryWorldwide,
			Chart: domain.ChartFinalAction, Status: domain.StatusCurrent, Notes: "see section D"},
	}
}

func TestUpsertBulletinIdempotent(t *testing.T) {
	t.Parallel()

	repo := openTestRepository(t)
	ctx := context.Background()

	first := time.Date(2023, time.September, 8, 12, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return first }

	id, err := repo.UpsertBulletin(ctx, testBulletin(2023, 10), testEntries())
	require.NoError(t, err)
	require.NotZero(t, id)

	second := first.Add(48 * time.Hour)
	repo.now = func() time.Time { return second }

	again, err := repo.UpsertBulletin(ctx, testBulletin(2023, 10), testEntries())
	require.NoError(t, err)
	require.Equal(t, id, again, "re-upsert must reuse the bulletin row")

	b, err := repo.GetBulletin(ctx, 2023, 10)
	require.NoError(t, err)
	require.NotNil(t, b)
	require.True(t, b.CreatedAt.Equal(first), "created_at must survive re-upsert, got %s", b.CreatedAt)
	require.True(t, b.UpdatedAt.Equal(second), "updated_at must move on re-upsert, got %s", b.UpdatedAt)

	entries, err := repo.ListEntries(ctx, id)
	require.NoError(t, err)
	require.Len(t, entries, 2, "entries must be replaced, not duplicated")
}

func TestGetBulletinAbsent(t *testing.T) {
	t.Parallel()

	repo := openTestRepository(t)

	b, err := repo.GetBulletin(context.Background(), 1999, 1)
	require.NoError(t, err)
	require.Nil(t, b)
}

func TestListBulletinsRangeAndOrder(t *testing.T) {
	t.Parallel()

	repo := openTestRepository(t)
	ctx := context.Background()

	// Inserted out of order across fiscal years 2023 and 2024.
	for _, ym := range [][2]int{{2023, 11}, {2022, 10}, {2023, 10}, {2023, 1}} {
		_, err := repo.UpsertBulletin(ctx, testBulletin(ym[0], ym[1]), nil)
		require.NoError(t, err)
	}

	bulletins, err := repo.ListBulletins(ctx, 2024, 2024)
	require.NoError(t, err)
	require.Len(t, bulletins, 2)
	require.Equal(t, 10, bulletins[0].Month)
	require.Equal(t, 11, bulletins[1].Month)

	all, err := repo.ListBulletins(ctx, 2023, 2024)
	require.NoError(t, err)
	require.Len(t, all, 4)
	require.Equal(t, 2022, all[0].Year)
}

func TestListEntriesRoundTrip(t *testing.T) {
	t.Parallel()

	repo := openTestRepository(t)
	ctx := context.Background()

	id, err := repo.UpsertBulletin(ctx, testBulletin(2023, 10), testEntries())
	require.NoError(t, err)

	entries, err := repo.ListEntries(ctx, id)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	// Ordered by category, so EB-1 before EB-2.
	require.Equal(t, domain.CategoryEB1, entries[0].Category)
	require.Equal(t, domain.StatusCurrent, entries[0].Status)
	require.Nil(t, entries[0].PriorityDate)
	require.Equal(t, "see section D", entries[0].Notes)

	require.Equal(t, domain.CategoryEB2, entries[1].Category)
	require.Equal(t, domain.CountryIndia, entries[1].Country)
	require.Equal(t, domain.ChartFinalAction, entries[1].Chart)
	require.NotNil(t, entries[1].PriorityDate)
	require.True(t, entries[1].PriorityDate.Equal(time.Date(2020, time.January, 1, 0, 0, 0, 0, time.UTC)))
}

func TestDeleteEntry(t *testing.T) {
	t.Parallel()

	repo := openTestRepository(t)
	ctx := context.Background()

	id, err := repo.UpsertBulletin(ctx, testBulletin(2023, 10), testEntries())
	require.NoError(t, err)

	entries, err := repo.ListEntries(ctx, id)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	require.NoError(t, repo.DeleteEntry(ctx, entries[0].ID))

	remaining, err := repo.ListEntries(ctx, id)
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	require.Equal(t, entries[1].ID, remaining[0].ID)
}

func TestGetSeries(t *testing.T) {
	t.Parallel()

	repo := openTestRepository(t)
	ctx := context.Background()
	key := domain.SeriesKey{Category: domain.CategoryEB2, Country: domain.CountryIndia, Chart: domain.ChartFinalAction}

	months := []struct {
		year, month int
		cutoff      time.Time
	}{
		{2023, 11, time.Date(2012, time.February, 1, 0, 0, 0, 0, time.UTC)},
		{2023, 10, time.Date(2012, time.January, 1, 0, 0, 0, 0, time.UTC)},
		{2023, 12, time.Date(2012, time.March, 1, 0, 0, 0, 0, time.UTC)},
	}
	for _, m := range months {
		cutoff := m.cutoff
		entries := []domain.CategoryEntry{
			{Category: key.Category, Country: key.Country, Chart: key.Chart,
				Status: domain.StatusDated, PriorityDate: &cutoff},
			// Same months carry other series that must not leak in.
			{Category: domain.CategoryEB1, Country: domain.CountryWorldwide,
				Chart: domain.ChartFinalAction, Status: domain.StatusCurrent},
		}
		_, err := repo.UpsertBulletin(ctx, testBulletin(m.year, m.month), entries)
		require.NoError(t, err)
	}

	points, err := repo.GetSeries(ctx, key, 2024, 2024)
	require.NoError(t, err)
	require.Len(t, points, 3)

	for i := 1; i < len(points); i++ {
		require.True(t, points[i-1].BulletinDate.Before(points[i].BulletinDate),
			"series must ascend by bulletin month")
	}
	require.True(t, points[0].PriorityDate.Equal(months[1].cutoff))
	require.True(t, points[2].PriorityDate.Equal(months[2].cutoff))
}

func TestGetStats(t *testing.T) {
	t.Parallel()

	repo := openTestRepository(t)
	ctx := context.Background()

	empty, err := repo.GetStats(ctx)
	require.NoError(t, err)
	require.Zero(t, empty.BulletinCount)
	require.Nil(t, empty.Earliest)
	require.Nil(t, empty.LastIngestAt)

	_, err = repo.UpsertBulletin(ctx, testBulletin(2023, 10), testEntries())
	require.NoError(t, err)
	_, err = repo.UpsertBulletin(ctx, testBulletin(2023, 11), nil)
	require.NoError(t, err)

	stats, err := repo.GetStats(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, stats.BulletinCount)
	require.Equal(t, 2, stats.EntryCount)
	require.NotNil(t, stats.Earliest)
	require.True(t, stats.Earliest.Equal(time.Date(2023, time.October, 1, 0, 0, 0, 0, time.UTC)))
	require.NotNil(t, stats.Latest)
	require.True(t, stats.Latest.Equal(time.Date(2023, time.November, 1, 0, 0, 0, 0, time.UTC)))
	require.NotNil(t, stats.LastIngestAt)
}

func TestPutForecastReplaces(t *testing.T) {
	t.Parallel()

	repo := openTestRepository(t)
	ctx := context.Background()
	key := domain.SeriesKey{Category: domain.CategoryEB2, Country: domain.CountryIndia, Chart: domain.ChartFinalAction}

	absent, err := repo.GetForecast(ctx, key, 2024, 1)
	require.NoError(t, err)
	require.Nil(t, absent)

	forecast := domain.Forecast{
		Key:           key,
		TargetYear:    2024,
		TargetMonth:   1,
		PredictedDate: time.Date(2012, time.April, 1, 0, 0, 0, 0, time.UTC),
		Confidence:    0.8,
		ModelID:       "tree-ensemble-v1",
		ProducedAt:    time.Date(2023, time.December, 1, 0, 0, 0, 0, time.UTC),
		FeaturesHash:  "abc123",
	}
	require.NoError(t, repo.PutForecast(ctx, forecast))

	forecast.PredictedDate = time.Date(2012, time.May, 1, 0, 0, 0, 0, time.UTC)
	forecast.Confidence = 0.6
	require.NoError(t, repo.PutForecast(ctx, forecast))

	got, err := repo.GetForecast(ctx, key, 2024, 1)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.True(t, got.PredictedDate.Equal(forecast.PredictedDate))
	require.Equal(t, 0.6, got.Confidence)
	require.Equal(t, "tree-ensemble-v1", got.ModelID)
	require.Equal(t, "abc123", got.FeaturesHash)
}

func TestOpenRejectsUnknownBackend(t *testing.T) {
	t.Parallel()

	_, err := Open(context.Background(), config.StorageConfig{Backend: "mongo", DSN: "whatever"})
	require.ErrorIs(t, err, domain.ErrConfig)
}
