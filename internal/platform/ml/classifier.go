package ml

import (
	"context"
	"errors"
	"fmt"
	"math"
)

// Classifier is a frozen, pre-trained classification model. Implementations
// must be safe for concurrent use; they are loaded once at startup and
// shared by every request.
type Classifier interface {
	// Classes returns the label set in probability-vector order.
	Classes() []string
	// PredictProba returns one probability per class for the vector.
	PredictProba(ctx context.Context, v FeatureVector) ([]float64, error)
}

// Prediction is the arg-max label of a probability distribution.
type Prediction struct {
	Label         string
	Index         int
	Probabilities []float64
}

// Confidence is the probability of the predicted label in [0, 1].
func (p Prediction) Confidence() float64 {
	if p.Index < 0 || p.Index >= len(p.Probabilities) {
		return 0
	}
	return p.Probabilities[p.Index]
}

// ConfidencePercent is the confidence expressed as a percentage rounded to
// two decimals.
func (p Prediction) ConfidencePercent() float64 {
	return Round(p.Confidence()*100, 2)
}

// Predict runs c on v and picks the most probable class. The first class
// wins on equal probabilities. Classifier failures are reported as
// ErrInference.
func Predict(ctx context.Context, c Classifier, v FeatureVector) (Prediction, error) {
	probs, err := c.PredictProba(ctx, v)
	if err != nil {
		if errors.Is(err, ErrInference) || errors.Is(err, ErrSchemaMismatch) {
			return Prediction{}, err
		}
		return Prediction{}, fmt.Errorf("%w: %v", ErrInference, err)
	}
	classes := c.Classes()
	if len(probs) != len(classes) || len(probs) == 0 {
		return Prediction{}, fmt.Errorf("%w: %d probabilities for %d classes", ErrInference, len(probs), len(classes))
	}
	best := 0
	for i := 1; i < len(probs); i++ {
		if probs[i] > probs[best] {
			best = i
		}
	}
	return Prediction{Label: classes[best], Index: best, Probabilities: probs}, nil
}

// Round rounds x half away from zero to the given number of decimals.
func Round(x float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(x*p) / p
}

// SoftmaxModel is a multinomial linear model: one weight row and intercept
// per class, normalized with softmax.
type SoftmaxModel struct {
	classes    []string
	weights    [][]float64
	intercepts []float64
}

// NewSoftmaxModel checks that weights form a len(classes) x features matrix.
func NewSoftmaxModel(classes []string, weights [][]float64, intercepts []float64, features int) (*SoftmaxModel, error) {
	if len(classes) == 0 {
		return nil, fmt.Errorf("%w: model has no classes", ErrSchemaMismatch)
	}
	if len(weights) != len(classes) {
		return nil, fmt.Errorf("%w: %d weight rows for %d classes", ErrSchemaMismatch, len(weights), len(classes))
	}
	for i, row := range weights {
		if len(row) != features {
			return nil, fmt.Errorf("%w: weight row %d has %d values, schema has %d features", ErrSchemaMismatch, i, len(row), features)
		}
	}
	if intercepts == nil {
		intercepts = make([]float64, len(classes))
	}
	if len(intercepts) != len(classes) {
		return nil, fmt.Errorf("%w: %d intercepts for %d classes", ErrSchemaMismatch, len(intercepts), len(classes))
	}
	return &SoftmaxModel{classes: classes, weights: weights, intercepts: intercepts}, nil
}

func (m *SoftmaxModel) Classes() []string { return m.classes }

func (m *SoftmaxModel) PredictProba(_ context.Context, v FeatureVector) ([]float64, error) {
	logits := make([]float64, len(m.classes))
	maxLogit := math.Inf(-1)
	for c, row := range m.weights {
		if len(row) != len(v.Values) {
			return nil, fmt.Errorf("%w: vector has %d features, model expects %d", ErrSchemaMismatch, len(v.Values), len(row))
		}
		z := m.intercepts[c]
		for i, w := range row {
			z += w * v.Values[i]
		}
		logits[c] = z
		if z > maxLogit {
			maxLogit = z
		}
	}
	var sum float64
	for c := range logits {
		logits[c] = math.Exp(logits[c] - maxLogit)
		sum += logits[c]
	}
	for c := range logits {
		logits[c] /= sum
	}
	return logits, nil
}
