// Package forecast predicts cutoff movement with two interchangeable
// regressor variants.
package forecast

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"strings"

	"BulletinTracker/internal/analytics"
	"BulletinTracker/internal/domain"
)

// FeatureSchemaVersion guards saved model artifacts against incompatible
// feature layouts.
const FeatureSchemaVersion = 1

// MinObservations is the floor below which only the null forecaster runs.
const MinObservations = 12

// countryFactors are documented constants of the domain model, reflecting
// per-country demand pressure. They are never adjusted during training.
var countryFactors = map[domain.Country]float64{
	domain.CountryIndia:       0.3,
	domain.CountryChina:       0.5,
	domain.CountryMexico:      0.7,
	domain.CountryPhilippines: 0.7,
	domain.CountryWorldwide:   1.0,
}

// categoryFactors scale the expected movement per category. Constants of
// the domain model, like countryFactors.
var categoryFactors = map[domain.Category]float64{
	domain.CategoryEB1:             1.0,
	domain.CategoryEB2:             0.8,
	domain.CategoryEB3:             0.6,
	domain.CategoryEB3OtherWorkers: 0.5,
	domain.CategoryEB4:             0.7,
	domain.CategoryEB5:             0.9,
	domain.CategoryF1:              0.6,
	domain.CategoryF2A:             0.8,
	domain.CategoryF2B:             0.5,
	domain.CategoryF3:              0.4,
	domain.CategoryF4:              0.3,
}

var trendOrdinals = map[domain.TrendDirection]float64{
	domain.TrendRetrogressing: -1,
	domain.TrendMixed:         0,
	domain.TrendStable:        0,
	domain.TrendAdvancing:     1,
}

// featureCount: fiscal year, 12 month one-hots, days since epoch,
// last-3 mean, last-12 mean, volatility, trend ordinal, seasonal factor,
// country factor, employment indicator, category factor.
const featureCount = 22

// buildFeatures encodes the prediction context for one target month given
// the dated history up to that point.
func buildFeatures(key domain.SeriesKey, history []domain.SeriesPoint, targetYear, targetMonth int) []float64 {
	features := make([]float64, 0, featureCount)

	features = append(features, float64(domain.FiscalYear(targetYear, targetMonth))/1000)

	for m := 1; m <= 12; m++ {
		if m == targetMonth {
			features = append(features, 1)
		} else {
			features = append(features, 0)
		}
	}

	last := history[len(history)-1]
	features = append(features, float64(last.BulletinDate.Unix())/86400/10000)

	features = append(features, trailingMeanDelta(history, 3)/30)
	features = append(features, trailingMeanDelta(history, 12)/30)

	summary := analytics.Summarize(key, history, 0)
	features = append(features, summary.Volatility/30)
	features = append(features, trendOrdinals[summary.TrendDirection])

	seasonal := 1.0
	if factor := summary.SeasonalFactors[targetMonth]; factor != nil {
		seasonal = *factor
	}
	features = append(features, seasonal)

	features = append(features, countryFactors[key.Country])
	if key.Category.IsEmployment() {
		features = append(features, 1)
	} else {
		features = append(features, 0)
	}
	features = append(features, categoryFactors[key.Category])

	return features
}

// trailingMeanDelta averages the last n month-over-month deltas in days.
func trailingMeanDelta(history []domain.SeriesPoint, n int) float64 {
	var deltas []float64
	for i := 1; i < len(history); i++ {
		days := history[i].PriorityDate.Sub(*history[i-1].PriorityDate).Hours() / 24
		deltas = append(deltas, days)
	}
	if len(deltas) == 0 {
		return 0
	}
	if len(deltas) > n {
		deltas = deltas[len(deltas)-n:]
	}

	sum := 0.0
	for _, delta := range deltas {
		sum += delta
	}
	return sum / float64(len(deltas))
}

// featuresHash fingerprints the canonical feature encoding so forecast
// consumers can detect staleness.
func featuresHash(features []float64) string {
	var builder strings.Builder
	fmt.Fprintf(&builder, "v%d:", FeatureSchemaVersion)
	for _, value := range features {
		fmt.Fprintf(&builder, "%.6f,", value)
	}
	digest := sha256.Sum256([]byte(builder.String()))
	return hex.EncodeToString(digest[:])
}

func clampDays(days float64) float64 {
	return math.Max(-365, math.Min(365, days))
}

func clamp01(value float64) float64 {
	return math.Max(0, math.Min(1, value))
}
