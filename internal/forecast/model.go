package forecast

import (
	"fmt"
	"math"

	"BulletinTracker/internal/domain"
)

// NullModelID marks forecasts produced without enough observations.
const NullModelID = "null-forecaster"

// Example is one training observation: the encoded context and the signed
// day delta that followed it.
type Example struct {
	Features []float64
	Delta    float64
}

// TrainMetrics reports hold-out accuracy of a trained model.
type TrainMetrics struct {
	MAEDays      float64
	RMSEDays     float64
	HeldOutSplit float64
}

// Model is the contract both regressor variants implement. PredictDelta
// returns a signed day delta and a confidence in [0,1].
type Model interface {
	ID() string
	Train(examples []Example) (*TrainMetrics, error)
	PredictDelta(features []float64) (float64, float64, error)
	Save(path string) error
	Load(path string) error
}

// Registry keeps a mapping from model names to their constructors.
type Registry struct {
	models map[string]func() Model
}

// NewRegistry builds a registry with both built-in variants.
func NewRegistry() *Registry {
	registry := &Registry{models: map[string]func() Model{}}
	registry.Register("tree", func() Model { return NewTreeEnsemble() })
	registry.Register("logistic", func() Model { return NewLogisticMagnitude() })
	return registry
}

// Register adds or replaces a model constructor.
func (r *Registry) Register(name string, build func() Model) {
	if r.models == nil {
		r.models = map[string]func() Model{}
	}
	r.models[name] = build
}

// Resolve returns a fresh model by name or an error if it is absent.
func (r *Registry) Resolve(name string) (Model, error) {
	if build, ok := r.models[name]; ok {
		return build(), nil
	}
	return nil, fmt.Errorf("model %s is not registered: %w", name, domain.ErrConfig)
}

// evaluate computes MAE/RMSE of the model over examples.
func evaluate(model Model, examples []Example) (mae, rmse float64, err error) {
	if len(examples) == 0 {
		return 0, 0, nil
	}

	var absSum, sqSum float64
	for _, example := range examples {
		predicted, _, err := model.PredictDelta(example.Features)
		if err != nil {
			return 0, 0, err
		}
		diff := predicted - example.Delta
		if diff < 0 {
			diff = -diff
		}
		absSum += diff
		sqSum += diff * diff
	}

	n := float64(len(examples))
	return absSum / n, math.Sqrt(sqSum / n), nil
}
