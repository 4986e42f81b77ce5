package forecast

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"BulletinTracker/internal/domain"
	"BulletinTracker/internal/ports"
)

// Forecaster trains a regressor per series on demand and projects the next
// cutoff.
type Forecaster struct {
	repository ports.BulletinRepository
	registry   *Registry
	logger     *slog.Logger
	now        func() time.Time
}

// New constructs a forecaster over the repository using the built-in model
// registry.
func New(repository ports.BulletinRepository, logger *slog.Logger) *Forecaster {
	return &Forecaster{
		repository: repository,
		registry:   NewRegistry(),
		logger:     logger.With("component", "forecaster"),
		now:        time.Now,
	}
}

// Predict forecasts the cutoff of one series for the target month using the
// named model variant. Series with too few dated observations fall back to a
// zero-confidence hold at the last observed cutoff.
func (f *Forecaster) Predict(ctx context.Context, key domain.SeriesKey, targetYear, targetMonth int, modelName string) (*domain.Forecast, error) {
	if targetMonth < 1 || targetMonth > 12 {
		return nil, fmt.Errorf("target month %d out of range: %w", targetMonth, domain.ErrValidation)
	}

	points, err := f.repository.GetSeries(ctx, key, 0, 9999)
	if err != nil {
		return nil, err
	}

	dated := make([]domain.SeriesPoint, 0, len(points))
	for _, point := range points {
		if point.Status == domain.StatusDated && point.PriorityDate != nil {
			dated = append(dated, point)
		}
	}

	if len(dated) < MinObservations {
		f.logger.Info("falling back to null forecaster",
			"series", key.String(), "observations", len(dated))
		return f.nullForecast(key, dated, targetYear, targetMonth), nil
	}

	model, err := f.registry.Resolve(modelName)
	if err != nil {
		return nil, err
	}

	examples := buildExamples(key, dated)
	metrics, err := model.Train(examples)
	if err != nil {
		return nil, fmt.Errorf("train %s for %s: %w", model.ID(), key.String(), err)
	}
	f.logger.Debug("model trained",
		"series", key.String(), "model", model.ID(),
		"examples", len(examples), "mae_days", metrics.MAEDays, "rmse_days", metrics.RMSEDays)

	features := buildFeatures(key, dated, targetYear, targetMonth)
	delta, confidence, err := model.PredictDelta(features)
	if err != nil {
		return nil, fmt.Errorf("predict %s for %s: %w", model.ID(), key.String(), err)
	}

	last := dated[len(dated)-1]
	predicted := last.PriorityDate.AddDate(0, 0, int(clampDays(delta)))

	return &domain.Forecast{
		Key:           key,
		TargetYear:    targetYear,
		TargetMonth:   targetMonth,
		PredictedDate: predicted,
		Confidence:    clamp01(confidence),
		ModelID:       model.ID(),
		ProducedAt:    f.now(),
		FeaturesHash:  featuresHash(features),
	}, nil
}

// PredictAndStore runs Predict and persists the result for later retrieval.
func (f *Forecaster) PredictAndStore(ctx context.Context, key domain.SeriesKey, targetYear, targetMonth int, modelName string) (*domain.Forecast, error) {
	forecast, err := f.Predict(ctx, key, targetYear, targetMonth, modelName)
	if err != nil {
		return nil, err
	}
	if err := f.repository.PutForecast(ctx, *forecast); err != nil {
		return nil, err
	}
	return forecast, nil
}

// nullForecast holds the last observed cutoff with zero confidence. Series
// with no dated history at all predict the first of the target month.
func (f *Forecaster) nullForecast(key domain.SeriesKey, dated []domain.SeriesPoint, targetYear, targetMonth int) *domain.Forecast {
	predicted := time.Date(targetYear, time.Month(targetMonth), 1, 0, 0, 0, 0, time.UTC)
	if len(dated) > 0 {
		predicted = *dated[len(dated)-1].PriorityDate
	}

	return &domain.Forecast{
		Key:           key,
		TargetYear:    targetYear,
		TargetMonth:   targetMonth,
		PredictedDate: predicted,
		Confidence:    0,
		ModelID:       NullModelID,
		ProducedAt:    f.now(),
	}
}

// buildExamples walks the history chronologically, pairing each prefix with
// the day delta that followed it.
func buildExamples(key domain.SeriesKey, dated []domain.SeriesPoint) []Example {
	examples := make([]Example, 0, len(dated)-1)
	for i := 1; i < len(dated); i++ {
		prefix := dated[:i]
		next := dated[i]
		features := buildFeatures(key, prefix,
			next.BulletinDate.Year(), int(next.BulletinDate.Month()))
		delta := next.PriorityDate.Sub(*dated[i-1].PriorityDate).Hours() / 24
		examples = append(examples, Example{Features: features, Delta: clampDays(delta)})
	}
	return examples
}
