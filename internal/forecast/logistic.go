package forecast

import (
	"encoding/json"
	"fmt"
	"math"

	"BulletinTracker/internal/domain"
)

const (
	logisticEpochs       = 400
	logisticLearningRate = 0.05

	classRetrogress = 0
	classStable     = 1
	classAdvance    = 2
	classTotal      = 3

	// stableBandDays bounds the deltas labeled as the stable class during
	// training.
	stableBandDays = 3.0

	// magnitudeErrorScale normalizes the per-class regression error when
	// converting it into a confidence discount.
	magnitudeErrorScale = 90.0
)

// LogisticMagnitude predicts movement in two stages: a one-vs-rest logistic
// classifier picks advance, stable, or retrogress, and a per-class linear
// regressor sizes the move in days. The stable class always predicts zero.
type LogisticMagnitude struct {
	ClassWeights [classTotal][]float64 `json:"class_weights"`
	Magnitudes   [classTotal][]float64 `json:"magnitudes"`
	ClassMAE     [classTotal]float64   `json:"class_mae"`
	trained      bool
}

var _ Model = (*LogisticMagnitude)(nil)

// NewLogisticMagnitude returns an untrained two-stage model.
func NewLogisticMagnitude() *LogisticMagnitude {
	return &LogisticMagnitude{}
}

// ID implements Model.
func (l *LogisticMagnitude) ID() string {
	return "logistic-magnitude-v1"
}

// Train fits both stages on a chronological 80/20 split.
func (l *LogisticMagnitude) Train(examples []Example) (*TrainMetrics, error) {
	if len(examples) < 4 {
		return nil, fmt.Errorf("%d examples is not enough to train: %w", len(examples), domain.ErrValidation)
	}

	split := int(float64(len(examples)) * 0.8)
	if split < 1 {
		split = 1
	}
	if split >= len(examples) {
		split = len(examples) - 1
	}
	train, holdOut := examples[:split], examples[split:]

	width := len(train[0].Features) + 1
	for class := 0; class < classTotal; class++ {
		l.ClassWeights[class] = trainLogistic(train, class, width)
		l.Magnitudes[class], l.ClassMAE[class] = trainMagnitude(train, class, width)
	}
	l.trained = true

	mae, rmse, err := evaluate(l, holdOut)
	if err != nil {
		return nil, err
	}
	return &TrainMetrics{MAEDays: mae, RMSEDays: rmse, HeldOutSplit: 0.2}, nil
}

// PredictDelta classifies the direction, then sizes it. Confidence combines
// the class probability with the class regressor's training error.
func (l *LogisticMagnitude) PredictDelta(features []float64) (float64, float64, error) {
	if !l.trained && l.ClassWeights[classStable] == nil {
		return 0, 0, fmt.Errorf("logistic model is not trained: %w", domain.ErrValidation)
	}

	bestClass := classStable
	bestScore := math.Inf(-1)
	var total float64
	scores := [classTotal]float64{}
	for class := 0; class < classTotal; class++ {
		score := sigmoid(dot(l.ClassWeights[class], features))
		scores[class] = score
		total += score
		if score > bestScore {
			bestScore = score
			bestClass = class
		}
	}

	probability := 1.0
	if total > 0 {
		probability = scores[bestClass] / total
	}
	confidence := probability * (1 - clamp01(l.ClassMAE[bestClass]/magnitudeErrorScale))

	if bestClass == classStable {
		return 0, clamp01(confidence), nil
	}

	delta := dot(l.Magnitudes[bestClass], features)
	if bestClass == classAdvance && delta < 0 {
		delta = 0
	}
	if bestClass == classRetrogress && delta > 0 {
		delta = 0
	}
	return clampDays(delta), clamp01(confidence), nil
}

// Save writes the trained weights as a versioned JSON artifact.
func (l *LogisticMagnitude) Save(path string) error {
	return saveArtifact(path, l.ID(), l)
}

// Load restores weights from a saved artifact, rejecting incompatible
// feature schemas.
func (l *LogisticMagnitude) Load(path string) error {
	if err := loadArtifact(path, l.ID(), l); err != nil {
		return err
	}
	l.trained = true
	return nil
}

func classOf(delta float64) int {
	switch {
	case delta > stableBandDays:
		return classAdvance
	case delta < -stableBandDays:
		return classRetrogress
	default:
		return classStable
	}
}

// trainLogistic fits a one-vs-rest binary classifier for the class by
// gradient descent.
func trainLogistic(examples []Example, class, width int) []float64 {
	weights := make([]float64, width)
	for epoch := 0; epoch < logisticEpochs; epoch++ {
		for _, example := range examples {
			target := 0.0
			if classOf(example.Delta) == class {
				target = 1.0
			}
			predicted := sigmoid(dot(weights, example.Features))
			gradientStep(weights, example.Features, predicted-target)
		}
	}
	return weights
}

// trainMagnitude fits a least-squares regressor over the class members and
// reports their mean absolute error.
func trainMagnitude(examples []Example, class, width int) ([]float64, float64) {
	members := make([]Example, 0, len(examples))
	for _, example := range examples {
		if classOf(example.Delta) == class {
			members = append(members, example)
		}
	}

	weights := make([]float64, width)
	if len(members) == 0 {
		return weights, 0
	}

	for epoch := 0; epoch < logisticEpochs; epoch++ {
		for _, example := range members {
			predicted := dot(weights, example.Features)
			gradientStep(weights, example.Features, (predicted-example.Delta)/magnitudeErrorScale)
		}
	}

	var absSum float64
	for _, example := range members {
		absSum += math.Abs(dot(weights, example.Features) - example.Delta)
	}
	return weights, absSum / float64(len(members))
}

// gradientStep applies one scaled descent update. weights[0] is the bias.
func gradientStep(weights, features []float64, gradient float64) {
	weights[0] -= logisticLearningRate * gradient
	for i, value := range features {
		if i+1 >= len(weights) {
			break
		}
		weights[i+1] -= logisticLearningRate * gradient * value
	}
}

// dot applies the weights to the features with weights[0] as the bias.
func dot(weights, features []float64) float64 {
	if len(weights) == 0 {
		return 0
	}
	sum := weights[0]
	for i, value := range features {
		if i+1 >= len(weights) {
			break
		}
		sum += weights[i+1] * value
	}
	return sum
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

// MarshalJSON keeps the artifact payload to the trained weights only.
func (l *LogisticMagnitude) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		ClassWeights [classTotal][]float64 `json:"class_weights"`
		Magnitudes   [classTotal][]float64 `json:"magnitudes"`
		ClassMAE     [classTotal]float64   `json:"class_mae"`
	}{ClassWeights: l.ClassWeights, Magnitudes: l.Magnitudes, ClassMAE: l.ClassMAE})
}

// UnmarshalJSON restores the trained weights.
func (l *LogisticMagnitude) UnmarshalJSON(data []byte) error {
	var payload struct {
		ClassWeights [classTotal][]float64 `json:"class_weights"`
		Magnitudes   [classTotal][]float64 `json:"magnitudes"`
		ClassMAE     [classTotal]float64   `json:"class_mae"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return err
	}
	l.ClassWeights = payload.ClassWeights
	l.Magnitudes = payload.Magnitudes
	l.ClassMAE = payload.ClassMAE
	return nil
}
