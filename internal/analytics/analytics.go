// Package analytics derives advancement statistics from stored cutoff
// series.
package analytics

import (
	"context"
	"math"
	"sync"

	"golang.org/x/sync/errgroup"

	"BulletinTracker/internal/domain"
	"BulletinTracker/internal/ports"
)

// Trend classification thresholds, in days per month.
const (
	advancingShare     = 0.70
	advancingMeanDays  = 5.0
	retrogressingShare = 0.40
	stableMeanDays     = 5.0
	stableVolatility   = 10.0
)

// Analyzer computes trend summaries over repository series.
type Analyzer struct {
	repository ports.BulletinRepository
}

// New constructs an analyzer over the repository.
func New(repository ports.BulletinRepository) *Analyzer {
	return &Analyzer{repository: repository}
}

// AnalyzeSeries summarizes one series over the trailing window (in months;
// zero means the full history). Series with no dated observations return a
// stable zero summary rather than an error.
func (a *Analyzer) AnalyzeSeries(ctx context.Context, key domain.SeriesKey, windowMonths int) (*domain.TrendSummary, error) {
	points, err := a.repository.GetSeries(ctx, key, 0, 9999)
	if err != nil {
		return nil, err
	}

	return Summarize(key, points, windowMonths), nil
}

// CompareCategories applies AnalyzeSeries to every key in parallel.
func (a *Analyzer) CompareCategories(ctx context.Context, keys []domain.SeriesKey, windowMonths int) (map[domain.SeriesKey]*domain.TrendSummary, error) {
	var mu sync.Mutex
	results := make(map[domain.SeriesKey]*domain.TrendSummary, len(keys))

	group, groupCtx := errgroup.WithContext(ctx)
	for _, key := range keys {
		k := key
		group.Go(func() error {
			summary, err := a.AnalyzeSeries(groupCtx, k, windowMonths)
			if err != nil {
				return err
			}
			mu.Lock()
			results[k] = summary
			mu.Unlock()
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return nil, err
	}

	return results, nil
}

// Summarize computes the trend summary for already-loaded series points.
func Summarize(key domain.SeriesKey, points []domain.SeriesPoint, windowMonths int) *domain.TrendSummary {
	summary := &domain.TrendSummary{
		Key:             key,
		WindowMonths:    windowMonths,
		TrendDirection:  domain.TrendStable,
		SeasonalFactors: map[int]*float64{},
	}

	dated := make([]domain.SeriesPoint, 0, len(points))
	for _, point := range points {
		if point.Status == domain.StatusDated && point.PriorityDate != nil {
			dated = append(dated, point)
		}
	}
	if windowMonths > 0 && len(dated) > windowMonths {
		dated = dated[len(dated)-windowMonths:]
	}

	summary.Observations = len(dated)
	if len(dated) == 0 {
		return summary
	}

	summary.StartDate = dated[0].BulletinDate
	summary.EndDate = dated[len(dated)-1].BulletinDate

	deltas := make([]float64, 0, len(dated)-1)
	deltaMonths := make([]int, 0, len(dated)-1)
	for i := 1; i < len(dated); i++ {
		days := dated[i].PriorityDate.Sub(*dated[i-1].PriorityDate).Hours() / 24
		deltas = append(deltas, days)
		deltaMonths = append(deltaMonths, int(dated[i].BulletinDate.Month()))
	}
	if len(deltas) == 0 {
		return summary
	}

	total := 0.0
	for _, delta := range deltas {
		total += delta
	}
	mean := total / float64(len(deltas))

	summary.TotalAdvancementDays = total
	summary.MeanMonthlyDays = mean
	summary.Volatility = populationStddev(deltas, mean)
	summary.TrendDirection = classify(deltas, mean, summary.Volatility)
	summary.SeasonalFactors = seasonalFactors(deltas, deltaMonths, mean)

	return summary
}

func classify(deltas []float64, mean, volatility float64) domain.TrendDirection {
	nonNegative := 0
	negative := 0
	for _, delta := range deltas {
		if delta >= 0 {
			nonNegative++
		} else {
			negative++
		}
	}

	count := float64(len(deltas))
	switch {
	case float64(nonNegative)/count > advancingShare && mean > advancingMeanDays:
		return domain.TrendAdvancing
	case float64(negative)/count > retrogressingShare:
		return domain.TrendRetrogressing
	case math.Abs(mean) <= stableMeanDays && volatility < stableVolatility:
		return domain.TrendStable
	default:
		return domain.TrendMixed
	}
}

// seasonalFactors returns per-month ratios of the month's mean delta to the
// overall mean. Months with fewer than two observations stay nil.
func seasonalFactors(deltas []float64, months []int, mean float64) map[int]*float64 {
	factors := make(map[int]*float64, 12)
	for m := 1; m <= 12; m++ {
		factors[m] = nil
	}
	if mean == 0 {
		return factors
	}

	sums := map[int]float64{}
	counts := map[int]int{}
	for i, delta := range deltas {
		sums[months[i]] += delta
		counts[months[i]]++
	}

	for m := 1; m <= 12; m++ {
		if counts[m] < 2 {
			continue
		}
		factor := (sums[m] / float64(counts[m])) / mean
		factors[m] = &factor
	}

	return factors
}

func populationStddev(values []float64, mean float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, value := range values {
		diff := value - mean
		sum += diff * diff
	}
	return math.Sqrt(sum / float64(len(values)))
}
