package risk

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edtriage/triage/internal/platform/ml"
)

type fixedClassifier struct {
	classes []string
	probs   []float64
	err     error
	seen    ml.FeatureVector
}

func (f *fixedClassifier) Classes() []string { return f.classes }

func (f *fixedClassifier) PredictProba(_ context.Context, v ml.FeatureVector) ([]float64, error) {
	f.seen = v
	return f.probs, f.err
}

var schema = ml.Schema{"Age", "Gender_Male", "Heart_Rate", "Oxygen", "Chest_Pain", "Seizure", "Diabetes"}

func newScorer(t *testing.T, importances []float64, c ml.Classifier) *Scorer {
	t.Helper()
	s, err := New(schema, importances, c)
	require.NoError(t, err)
	return s
}

func TestScore_LabelAndConfidence(t *testing.T) {
	c := &fixedClassifier{classes: []string{"High", "Low", "Medium"}, probs: []float64{0.87654, 0.1, 0.02346}}
	s := newScorer(t, make([]float64, len(schema)), c)

	a, err := s.Score(context.Background(), ml.ClinicalRecord{"Age": 60, "Gender": "Male", "Risk": "Low"}, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, "High", a.Label)
	assert.Equal(t, 87.65, a.Confidence)
	assert.Empty(t, a.ContributingFactors)
	assert.NotNil(t, a.ContributingFactors)

	gm, _ := c.seen.Value("Gender_Male")
	assert.Equal(t, 1.0, gm)
	assert.Equal(t, len(schema), c.seen.Len())
}

func TestScore_FactorsFilteredSortedAndCapped(t *testing.T) {
	c := &fixedClassifier{classes: []string{"High"}, probs: []float64{1}}
	importances := []float64{0.5, 1, 0.1, 0.2, 40, 25, 25}
	s := newScorer(t, importances, c)

	rec := ml.ClinicalRecord{
		"Age":        80,  // 40
		"Heart_Rate": 150, // 15
		"Oxygen":     50,  // 10, not above threshold
		"Chest_Pain": true,
		"Seizure":    true,
		"Diabetes":   1,
	}
	a, err := s.Score(context.Background(), rec, Options{TopN: 4, Threshold: 10})
	require.NoError(t, err)

	want := []Factor{
		{"Age", 40},
		{"Chest_Pain", 40},
		{"Seizure", 25},
		{"Diabetes", 25},
	}
	require.Len(t, a.ContributingFactors, len(want))
	for i, f := range want {
		assert.Equal(t, f.Feature, a.ContributingFactors[i].Feature, "position %d", i)
		assert.InDelta(t, f.Contribution, a.ContributingFactors[i].Contribution, 1e-9)
	}
}

func TestScore_AllBelowThresholdIsEmpty(t *testing.T) {
	c := &fixedClassifier{classes: []string{"Low"}, probs: []float64{1}}
	s := newScorer(t, []float64{0.1, 0.1, 0.05, 0.1, 10, 10, 10}, c)

	a, err := s.Score(context.Background(), ml.ClinicalRecord{"Age": 30, "Chest_Pain": true}, DefaultOptions())
	require.NoError(t, err)
	assert.Empty(t, a.ContributingFactors)
}

func TestScore_InferenceFailure(t *testing.T) {
	c := &fixedClassifier{classes: []string{"Low"}, err: errors.New("model crashed")}
	s := newScorer(t, make([]float64, len(schema)), c)

	_, err := s.Score(context.Background(), ml.ClinicalRecord{}, DefaultOptions())
	assert.True(t, errors.Is(err, ml.ErrInference))
}

func TestScore_InvalidInput(t *testing.T) {
	c := &fixedClassifier{classes: []string{"Low"}, probs: []float64{1}}
	s := newScorer(t, make([]float64, len(schema)), c)

	_, err := s.Score(context.Background(), []ml.ClinicalRecord{{}, {}}, DefaultOptions())
	assert.True(t, errors.Is(err, ml.ErrInvalidInputShape))
}

func TestNew_Errors(t *testing.T) {
	c := &fixedClassifier{classes: []string{"Low"}, probs: []float64{1}}
	_, err := New(schema, []float64{1}, c)
	assert.True(t, errors.Is(err, ml.ErrSchemaMismatch))

	_, err = New(ml.Schema{}, nil, c)
	assert.True(t, errors.Is(err, ml.ErrSchemaMismatch))

	_, err = NewScorer(ml.LoadedModel{})
	assert.True(t, errors.Is(err, ml.ErrSchemaMismatch))
}
