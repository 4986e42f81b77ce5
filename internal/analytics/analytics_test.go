package analytics

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"BulletinTracker/internal/domain"
	"BulletinTracker/internal/ports"
)

func testKey() domain.SeriesKey {
	return domain.SeriesKey{
		Category: domain.CategoryEB2,
		Country:  domain.CountryIndia,
		Chart:    domain.ChartFinalAction,
	}
}

// seriesFromDeltas builds monthly dated points whose cutoff moves by the
// given day deltas, starting October 2022.
func seriesFromDeltas(deltas ...float64) []domain.SeriesPoint {
	points := make([]domain.SeriesPoint, 0, len(deltas)+1)
	bulletin := time.Date(2022, time.October, 1, 0, 0, 0, 0, time.UTC)
	cutoff := time.Date(2012, time.January, 1, 0, 0, 0, 0, time.UTC)

	d := cutoff
	points = append(points, domain.SeriesPoint{BulletinDate: bulletin, Status: domain.StatusDated, PriorityDate: &d})
	for _, delta := range deltas {
		bulletin = bulletin.AddDate(0, 1, 0)
		cutoff = cutoff.Add(time.Duration(delta*24) * time.Hour)
		c := cutoff
		points = append(points, domain.SeriesPoint{BulletinDate: bulletin, Status: domain.StatusDated, PriorityDate: &c})
	}
	return points
}

func TestSummarizeEmptySeries(t *testing.T) {
	t.Parallel()

	summary := Summarize(testKey(), nil, 0)
	require.Zero(t, summary.Observations)
	require.Equal(t, domain.TrendStable, summary.TrendDirection)
	require.Zero(t, summary.MeanMonthlyDays)
}

func TestSummarizeSinglePoint(t *testing.T) {
	t.Parallel()

	summary := Summarize(testKey(), seriesFromDeltas(), 0)
	require.Equal(t, 1, summary.Observations)
	require.Equal(t, domain.TrendStable, summary.TrendDirection)
	require.Zero(t, summary.TotalAdvancementDays)
}

func TestSummarizeSkipsUndatedPoints(t *testing.T) {
	t.Parallel()

	points := seriesFromDeltas(10, 10)
	points = append(points, domain.SeriesPoint{
		BulletinDate: time.Date(2023, time.January, 1, 0, 0, 0, 0, time.UTC),
		Status:       domain.StatusCurrent,
	})

	summary := Summarize(testKey(), points, 0)
	require.Equal(t, 3, summary.Observations)
}

func TestSummarizeAdvancing(t *testing.T) {
	t.Parallel()

	summary := Summarize(testKey(), seriesFromDeltas(10, 12, 8, 11, 9), 0)
	require.Equal(t, domain.TrendAdvancing, summary.TrendDirection)
	require.InDelta(t, 50.0, summary.TotalAdvancementDays, 0.001)
	require.InDelta(t, 10.0, summary.MeanMonthlyDays, 0.001)
}

func TestSummarizeRetrogressing(t *testing.T) {
	t.Parallel()

	summary := Summarize(testKey(), seriesFromDeltas(-30, -20, 5, -25), 0)
	require.Equal(t, domain.TrendRetrogressing, summary.TrendDirection)
	require.Less(t, summary.MeanMonthlyDays, 0.0)
}

func TestSummarizeStable(t *testing.T) {
	t.Parallel()

	summary := Summarize(testKey(), seriesFromDeltas(1, 2, 0, 1, -1), 0)
	require.Equal(t, domain.TrendStable, summary.TrendDirection)
	require.Less(t, summary.Volatility, stableVolatility)
}

func TestSummarizeSteadyAdvance(t *testing.T) {
	t.Parallel()

	deltas := []float64{30, 45, 20, 30, 40, 35, 25, 30, 40, 50, 30, 25}
	summary := Summarize(testKey(), seriesFromDeltas(deltas...), 0)
	require.Equal(t, domain.TrendAdvancing, summary.TrendDirection)
	require.InDelta(t, 33.33, summary.MeanMonthlyDays, 0.01)
}

func TestSummarizeMixed(t *testing.T) {
	t.Parallel()

	// Large mean without the advancing share, too few negatives to
	// retrogress, too volatile to be stable.
	summary := Summarize(testKey(), seriesFromDeltas(20, 20, -10, -10, 30), 0)
	require.Equal(t, domain.TrendMixed, summary.TrendDirection)
}

func TestSummarizeWindowTrimsHistory(t *testing.T) {
	t.Parallel()

	// Old retrogression followed by recent steady advancement.
	summary := Summarize(testKey(), seriesFromDeltas(-60, -60, 10, 10, 10, 10, 10), 5)
	require.Equal(t, 5, summary.Observations)
	require.Equal(t, domain.TrendAdvancing, summary.TrendDirection)
	require.InDelta(t, 40.0, summary.TotalAdvancementDays, 0.001)
}

func TestSummarizeWindowBounds(t *testing.T) {
	t.Parallel()

	points := seriesFromDeltas(10, 10)
	summary := Summarize(testKey(), points, 12)
	require.Equal(t, 3, summary.Observations, "window larger than history keeps everything")
	require.Equal(t, points[0].BulletinDate, summary.StartDate)
	require.Equal(t, points[2].BulletinDate, summary.EndDate)
}

func TestSeasonalFactors(t *testing.T) {
	t.Parallel()

	// Two Novembers and two Decembers; January and February observed once.
	deltas := []float64{20, 10, 5, 5, 40, 10}
	months := []int{11, 12, 1, 2, 11, 12}
	mean := 15.0

	factors := seasonalFactors(deltas, months, mean)

	require.NotNil(t, factors[11])
	require.InDelta(t, 2.0, *factors[11], 0.001)
	require.NotNil(t, factors[12])
	require.InDelta(t, 10.0/15.0, *factors[12], 0.001)
	require.Nil(t, factors[1], "single observation is not enough")
	require.Nil(t, factors[3], "unobserved month stays nil")
}

func TestSeasonalFactorsZeroMean(t *testing.T) {
	t.Parallel()

	factors := seasonalFactors([]float64{5, -5, 5, -5}, []int{1, 1, 2, 2}, 0)
	for m := 1; m <= 12; m++ {
		require.Nil(t, factors[m])
	}
}

type seriesStubRepo struct {
	ports.BulletinRepository
	series map[domain.SeriesKey][]domain.SeriesPoint
}

func (r *seriesStubRepo) GetSeries(_ context.Context, key domain.SeriesKey, _, _ int) ([]domain.SeriesPoint, error) {
	return r.series[key], nil
}

func TestCompareCategories(t *testing.T) {
	t.Parallel()

	advancing := testKey()
	stable := domain.SeriesKey{Category: domain.CategoryF1, Country: domain.CountryMexico, Chart: domain.ChartFinalAction}

	repo := &seriesStubRepo{series: map[domain.SeriesKey][]domain.SeriesPoint{
		advancing: seriesFromDeltas(10, 12, 8, 11, 9),
		stable:    seriesFromDeltas(1, 0, -1, 1),
	}}

	results, err := New(repo).CompareCategories(context.Background(), []domain.SeriesKey{advancing, stable}, 0)
	require.NoError(t, err)
	require.Len(t, results, 2)
	require.Equal(t, domain.TrendAdvancing, results[advancing].TrendDirection)
	require.Equal(t, domain.TrendStable, results[stable].TrendDirection)
}
