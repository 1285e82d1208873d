package department

import (
	"context"
	"errors"
	"math"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edtriage/triage/internal/platform/ml"
)

const dim = 11

// unit returns the basis vector for department i. Dimension 10 is never used
// by a description and lets tests build low-similarity queries.
func unit(i int) []float32 {
	v := make([]float32, dim)
	v[i] = 1
	return v
}

type fakeEmbedder struct {
	query []float32
	err   error
	calls atomic.Int32
}

func (f *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = f.query
		for j, d := range Descriptions {
			if d.Text == t {
				out[i] = unit(j)
			}
		}
	}
	return out, nil
}

type recordingClassifier struct {
	classes []string
	probs   []float64
	seen    ml.FeatureVector
}

func (r *recordingClassifier) Classes() []string { return r.classes }

func (r *recordingClassifier) PredictProba(_ context.Context, v ml.FeatureVector) ([]float64, error) {
	r.seen = v
	return r.probs, nil
}

func structuredModel(clf ml.Classifier) ml.LoadedModel {
	return ml.LoadedModel{
		Artifact: &ml.Artifact{
			Name:   "department",
			Schema: ml.Schema{"Age", "Gender_Male", "Chest_Pain", "Risk_High", "Risk_Medium"},
		},
		Classifier: clf,
	}
}

func newTestClassifier(t *testing.T, emb *fakeEmbedder, clf ml.Classifier) *Classifier {
	t.Helper()
	ix, err := BuildIndex(context.Background(), emb)
	require.NoError(t, err)
	if clf == nil {
		clf = &recordingClassifier{classes: []string{Cardiology, GeneralMedicine}, probs: []float64{0.5, 0.5}}
	}
	c, err := New(structuredModel(clf), emb, ix, DefaultConfig())
	require.NoError(t, err)
	return c
}

func TestClassifyText_CriticalOverride(t *testing.T) {
	emb := &fakeEmbedder{query: unit(3)}
	c := newTestClassifier(t, emb, nil)
	before := emb.calls.Load()

	for _, text := range []string{
		"Patient went into CARDIAC ARREST in the waiting room",
		"found Unconscious, breathing shallow",
		"child is not breathing",
		"massive bleeding from the leg",
	} {
		res, err := c.ClassifyText(context.Background(), text)
		require.NoError(t, err, text)
		assert.Equal(t, Emergency, res.Label, text)
		assert.Equal(t, 1.0, res.Confidence, text)
		assert.Equal(t, TriageLevelCritical, res.TriageLevel, text)
	}
	assert.Equal(t, before, emb.calls.Load(), "override must bypass the embedder")
}

func TestClassifyText_NearestDescription(t *testing.T) {
	q := make([]float32, dim)
	q[2], q[3] = 0.8, 0.6
	c := newTestClassifier(t, &fakeEmbedder{query: q}, nil)

	res, err := c.ClassifyText(context.Background(), "tightness in my chest and my heart is racing")
	require.NoError(t, err)
	assert.Equal(t, Cardiology, res.Label)
	assert.InDelta(t, 0.8, res.Confidence, 1e-6)
	assert.Empty(t, res.TriageLevel)
	assert.Empty(t, res.Nearest)
}

func TestClassifyText_ConfidenceFloorFallback(t *testing.T) {
	q := make([]float32, dim)
	q[3], q[10] = 2, 5
	c := newTestClassifier(t, &fakeEmbedder{query: q}, nil)

	res, err := c.ClassifyText(context.Background(), "feeling off since yesterday")
	require.NoError(t, err)
	assert.Equal(t, GeneralMedicine, res.Label)
	assert.Equal(t, Neurology, res.Nearest)
	assert.InDelta(t, ml.Round(2/math.Sqrt(29), 3), res.Confidence, 1e-9)
	assert.Less(t, res.Confidence, DefaultConfidenceFloor)
}

func TestClassifyText_BlankInput(t *testing.T) {
	emb := &fakeEmbedder{query: unit(0)}
	c := newTestClassifier(t, emb, nil)
	before := emb.calls.Load()

	_, err := c.ClassifyText(context.Background(), "  \n\t ")
	assert.True(t, errors.Is(err, ml.ErrEmptyInput))
	assert.Equal(t, before, emb.calls.Load())
}

func TestClassifyText_EmbedderFailure(t *testing.T) {
	emb := &fakeEmbedder{query: unit(0)}
	c := newTestClassifier(t, emb, nil)
	emb.err = errors.New("connection refused")
	_, err := c.ClassifyText(context.Background(), "mild cough")
	assert.True(t, errors.Is(err, ml.ErrInference))
	assert.False(t, errors.Is(err, ml.ErrInferenceTimeout))

	emb.err = ml.ErrInferenceTimeout
	_, err = c.ClassifyText(context.Background(), "mild cough")
	assert.True(t, errors.Is(err, ml.ErrInference))
}

func TestClassifyRecord_UsesRiskAsFeature(t *testing.T) {
	rc := &recordingClassifier{classes: []string{Cardiology, GeneralMedicine}, probs: []float64{0.8765, 0.1235}}
	c := newTestClassifier(t, &fakeEmbedder{query: unit(0)}, rc)

	rec := ml.ClinicalRecord{"Age": 61, "Gender": "Male", "Chest_Pain": true, "Department": "Neurology"}
	res, err := c.ClassifyRecord(context.Background(), rec, "High")
	require.NoError(t, err)
	assert.Equal(t, Cardiology, res.Label)
	assert.Equal(t, 87.65, res.Confidence)
	assert.Equal(t, []float64{61, 1, 1, 1, 0}, rc.seen.Values)
	_, mutated := rec[ml.LabelRisk]
	assert.False(t, mutated, "caller's record must not be modified")
}

func TestClassifyRecord_LowRiskIsBaseline(t *testing.T) {
	rc := &recordingClassifier{classes: []string{GeneralMedicine}, probs: []float64{1}}
	c := newTestClassifier(t, &fakeEmbedder{query: unit(0)}, rc)

	_, err := c.ClassifyRecord(context.Background(), ml.ClinicalRecord{"Age": 30, "Gender": "Female"}, "Low")
	require.NoError(t, err)
	assert.Equal(t, []float64{30, 0, 0, 0, 0}, rc.seen.Values)
}

func TestNew_RejectsUnknownModelLabel(t *testing.T) {
	emb := &fakeEmbedder{query: unit(0)}
	ix, err := BuildIndex(context.Background(), emb)
	require.NoError(t, err)

	rc := &recordingClassifier{classes: []string{Cardiology, "Dermatology"}, probs: []float64{0.5, 0.5}}
	_, err = New(structuredModel(rc), emb, ix, DefaultConfig())
	assert.True(t, errors.Is(err, ml.ErrSchemaMismatch))

	cfg := DefaultConfig()
	cfg.DefaultLabel = "Triage"
	_, err = New(structuredModel(&recordingClassifier{classes: []string{Cardiology}}), emb, ix, cfg)
	assert.True(t, errors.Is(err, ml.ErrSchemaMismatch))
}

func TestNewIndex_Validation(t *testing.T) {
	_, err := NewIndex([]string{Emergency}, nil)
	assert.True(t, errors.Is(err, ml.ErrSchemaMismatch))

	_, err = NewIndex([]string{Emergency, Cardiology}, [][]float32{{1, 0}, {1}})
	assert.True(t, errors.Is(err, ml.ErrSchemaMismatch))

	_, err = NewIndex([]string{"Dermatology"}, [][]float32{{1}})
	assert.True(t, errors.Is(err, ml.ErrSchemaMismatch))

	ix, err := NewIndex([]string{Emergency, Cardiology}, [][]float32{{1, 0}, {0, 1}})
	require.NoError(t, err)
	_, _, err = ix.Nearest([]float32{1, 0, 0})
	assert.True(t, errors.Is(err, ml.ErrInference))
}

func TestLabels(t *testing.T) {
	assert.Len(t, Labels(), 10)
	assert.True(t, IsValid(GeneralMedicine))
	assert.False(t, IsValid("general_medicine"))

	got, ok := Canonical("general medicine")
	assert.True(t, ok)
	assert.Equal(t, GeneralMedicine, got)
	_, ok = Canonical("dermatology")
	assert.False(t, ok)
}
