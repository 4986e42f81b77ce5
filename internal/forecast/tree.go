package forecast

import (
	"encoding/json"
	"fmt"
	"math"
	"math/rand"
	"sort"

	"BulletinTracker/internal/domain"
)

const (
	treeCount    = 25
	treeMaxDepth = 5
	treeMinLeaf  = 2
)

// TreeEnsemble is a bootstrap ensemble of depth-limited regression trees.
// Confidence is derived from the spread of member predictions.
type TreeEnsemble struct {
	Trees []*treeNode `json:"trees"`
	seed  int64
}

var _ Model = (*TreeEnsemble)(nil)

// treeNode is a binary regression tree node. Leaves carry Value and have
// a nil Left/Right pair.
type treeNode struct {
	Feature   int       `json:"feature"`
	Threshold float64   `json:"threshold"`
	Value     float64   `json:"value"`
	Left      *treeNode `json:"left,omitempty"`
	Right     *treeNode `json:"right,omitempty"`
}

// NewTreeEnsemble returns an untrained ensemble with a fixed seed so runs
// are reproducible.
func NewTreeEnsemble() *TreeEnsemble {
	return &TreeEnsemble{seed: 1}
}

// ID implements Model.
func (t *TreeEnsemble) ID() string {
	return "tree-ensemble-v1"
}

// Train fits the ensemble on a chronological 80/20 split and reports
// hold-out accuracy over the trailing 20%.
func (t *TreeEnsemble) Train(examples []Example) (*TrainMetrics, error) {
	if len(examples) < treeMinLeaf*2 {
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

	rng := rand.New(rand.NewSource(t.seed))
	t.Trees = make([]*treeNode, 0, treeCount)
	for i := 0; i < treeCount; i++ {
		sample := bootstrap(train, rng)
		t.Trees = append(t.Trees, growTree(sample, 0))
	}

	mae, rmse, err := evaluate(t, holdOut)
	if err != nil {
		return nil, err
	}
	return &TrainMetrics{MAEDays: mae, RMSEDays: rmse, HeldOutSplit: 0.2}, nil
}

// PredictDelta averages the member trees. Confidence shrinks as member
// predictions disagree.
func (t *TreeEnsemble) PredictDelta(features []float64) (float64, float64, error) {
	if len(t.Trees) == 0 {
		return 0, 0, fmt.Errorf("tree ensemble is not trained: %w", domain.ErrValidation)
	}

	predictions := make([]float64, 0, len(t.Trees))
	sum := 0.0
	for _, tree := range t.Trees {
		value := tree.predict(features)
		predictions = append(predictions, value)
		sum += value
	}

	mean := sum / float64(len(predictions))
	var sqSum float64
	for _, value := range predictions {
		diff := value - mean
		sqSum += diff * diff
	}
	spread := math.Sqrt(sqSum / float64(len(predictions)))

	return clampDays(mean), clamp01(1 - spread/30), nil
}

// Save writes the trained trees as a versioned JSON artifact.
func (t *TreeEnsemble) Save(path string) error {
	return saveArtifact(path, t.ID(), t)
}

// Load restores trees from a saved artifact, rejecting incompatible
// feature schemas.
func (t *TreeEnsemble) Load(path string) error {
	return loadArtifact(path, t.ID(), t)
}

func (n *treeNode) predict(features []float64) float64 {
	node := n
	for node.Left != nil && node.Right != nil {
		if node.Feature < len(features) && features[node.Feature] <= node.Threshold {
			node = node.Left
		} else {
			node = node.Right
		}
	}
	return node.Value
}

func bootstrap(examples []Example, rng *rand.Rand) []Example {
	sample := make([]Example, len(examples))
	for i := range sample {
		sample[i] = examples[rng.Intn(len(examples))]
	}
	return sample
}

func growTree(examples []Example, depth int) *treeNode {
	if depth >= treeMaxDepth || len(examples) < treeMinLeaf*2 {
		return &treeNode{Value: meanDelta(examples)}
	}

	feature, threshold, ok := bestSplit(examples)
	if !ok {
		return &treeNode{Value: meanDelta(examples)}
	}

	var left, right []Example
	for _, example := range examples {
		if example.Features[feature] <= threshold {
			left = append(left, example)
		} else {
			right = append(right, example)
		}
	}
	if len(left) < treeMinLeaf || len(right) < treeMinLeaf {
		return &treeNode{Value: meanDelta(examples)}
	}

	return &treeNode{
		Feature:   feature,
		Threshold: threshold,
		Left:      growTree(left, depth+1),
		Right:     growTree(right, depth+1),
	}
}

// bestSplit scans every feature for the threshold that minimizes the summed
// variance of the two halves.
func bestSplit(examples []Example) (feature int, threshold float64, ok bool) {
	bestScore := math.Inf(1)
	featureTotal := len(examples[0].Features)

	for f := 0; f < featureTotal; f++ {
		values := make([]float64, 0, len(examples))
		for _, example := range examples {
			values = append(values, example.Features[f])
		}
		sort.Float64s(values)

		for i := 1; i < len(values); i++ {
			if values[i] == values[i-1] {
				continue
			}
			candidate := (values[i] + values[i-1]) / 2

			var left, right []float64
			for _, example := range examples {
				if example.Features[f] <= candidate {
					left = append(left, example.Delta)
				} else {
					right = append(right, example.Delta)
				}
			}
			if len(left) < treeMinLeaf || len(right) < treeMinLeaf {
				continue
			}

			score := sumSquares(left) + sumSquares(right)
			if score < bestScore {
				bestScore = score
				feature = f
				threshold = candidate
				ok = true
			}
		}
	}

	return feature, threshold, ok
}

func meanDelta(examples []Example) float64 {
	if len(examples) == 0 {
		return 0
	}
	sum := 0.0
	for _, example := range examples {
		sum += example.Delta
	}
	return sum / float64(len(examples))
}

func sumSquares(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	mean := 0.0
	for _, value := range values {
		mean += value
	}
	mean /= float64(len(values))

	sum := 0.0
	for _, value := range values {
		diff := value - mean
		sum += diff * diff
	}
	return sum
}

// MarshalJSON keeps the artifact payload to the trained trees only.
func (t *TreeEnsemble) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Trees []*treeNode `json:"trees"`
	}{Trees: t.Trees})
}

// UnmarshalJSON restores the trained trees.
func (t *TreeEnsemble) UnmarshalJSON(data []byte) error {
	var payload struct {
		Trees []*treeNode `json:"trees"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return err
	}
	t.Trees = payload.Trees
	return nil
}
