package ml

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubClassifier struct {
	classes []string
	probs   []float64
	err     error
	delay   time.Duration
}

func (s *stubClassifier) Classes() []string { return s.classes }

func (s *stubClassifier) PredictProba(ctx context.Context, _ FeatureVector) ([]float64, error) {
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	return s.probs, s.err
}

func TestPredict_ArgMaxFirstWins(t *testing.T) {
	c := &stubClassifier{classes: []string{"High", "Low", "Medium"}, probs: []float64{0.4, 0.4, 0.2}}
	p, err := Predict(context.Background(), c, FeatureVector{})
	require.NoError(t, err)
	assert.Equal(t, "High", p.Label)
	assert.InDelta(t, 40.0, p.ConfidencePercent(), 1e-9)
}

func TestPredict_WrapsFailures(t *testing.T) {
	c := &stubClassifier{classes: []string{"A"}, err: errors.New("boom")}
	_, err := Predict(context.Background(), c, FeatureVector{})
	assert.True(t, errors.Is(err, ErrInference))

	c = &stubClassifier{classes: []string{"A", "B"}, probs: []float64{1}}
	_, err = Predict(context.Background(), c, FeatureVector{})
	assert.True(t, errors.Is(err, ErrInference))
}

func TestRound(t *testing.T) {
	assert.Equal(t, 87.35, Round(87.3456, 2))
	assert.Equal(t, 0.456, Round(0.45649, 3))
	assert.Equal(t, 1.0, Round(0.9999, 2))
}

func TestSoftmaxModel(t *testing.T) {
	m, err := NewSoftmaxModel([]string{"A", "B"}, [][]float64{{1, 0}, {0, 1}}, nil, 2)
	require.NoError(t, err)
	probs, err := m.PredictProba(context.Background(), FeatureVector{Values: []float64{2, 0}})
	require.NoError(t, err)
	assert.InDelta(t, 1.0, probs[0]+probs[1], 1e-12)
	assert.Greater(t, probs[0], probs[1])

	_, err = NewSoftmaxModel([]string{"A", "B"}, [][]float64{{1, 0}}, nil, 2)
	assert.True(t, errors.Is(err, ErrSchemaMismatch))
}

func TestLoadArtifact(t *testing.T) {
	a, err := LoadArtifact(filepath.Join("testdata", "risk_model.json"))
	require.NoError(t, err)
	assert.Equal(t, "risk", a.Name)
	assert.Len(t, a.Importances, len(a.Schema))

	c, err := a.Classifier(nil)
	require.NoError(t, err)
	v, err := Encode(ClinicalRecord{"Chest_Pain": true, "Heart_Rate": 130, "Oxygen": 88}, a.Schema, EncoderConfig{})
	require.NoError(t, err)
	p, err := Predict(context.Background(), c, v)
	require.NoError(t, err)
	assert.Equal(t, "High", p.Label)
}

func TestLoadArtifact_Missing(t *testing.T) {
	_, err := LoadArtifact(filepath.Join("testdata", "nope.json"))
	assert.True(t, errors.Is(err, ErrSchemaMismatch))
}

func TestParseArtifact_Inconsistent(t *testing.T) {
	cases := []string{
		`{"name":"x","schema":[],"classes":["A"],"model":{"type":"softmax"}}`,
		`{"name":"x","schema":["a"],"classes":[],"model":{"type":"softmax"}}`,
		`{"name":"x","schema":["a"],"classes":["A"],"feature_importances":[1,2],"model":{"type":"softmax","weights":[[1]]}}`,
		`{"name":"x","schema":["a"],"classes":["A"],"model":{"type":"tree"}}`,
		`{"name":"x","schema":["a"],"classes":["A"],"model":{"type":"remote"}}`,
		`{"name":"x","unknown":1}`,
	}
	for _, c := range cases {
		_, err := ParseArtifact(strings.NewReader(c))
		assert.True(t, errors.Is(err, ErrSchemaMismatch), c)
	}
}

func TestLoadModels(t *testing.T) {
	path := filepath.Join("testdata", "risk_model.json")
	m, err := LoadModels(context.Background(), ModelPaths{Risk: path, Department: path}, nil, time.Second)
	require.NoError(t, err)
	assert.Equal(t, []string{"High", "Low", "Medium"}, m.Risk.Classifier.Classes())

	_, err = LoadModels(context.Background(), ModelPaths{Risk: path, Department: "missing.json"}, nil, time.Second)
	assert.True(t, errors.Is(err, ErrSchemaMismatch))
}

func TestLoadModels_Canceled(t *testing.T) {
	path := filepath.Join("testdata", "risk_model.json")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	m, err := LoadModels(ctx, ModelPaths{Risk: path, Department: path}, nil, time.Second)
	assert.Nil(t, m)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestRemoteClassifier(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/predict", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"classes":["High","Low"],"probabilities":[[0.7,0.3]]}`))
	}))
	defer srv.Close()

	c := NewRemoteClassifier(resty.New().SetBaseURL(srv.URL), "risk", "/predict", []string{"High", "Low"})
	p, err := Predict(context.Background(), c, FeatureVector{Schema: Schema{"a"}, Values: []float64{1}})
	require.NoError(t, err)
	assert.Equal(t, "High", p.Label)
	assert.InDelta(t, 70.0, p.ConfidencePercent(), 1e-9)

	c = NewRemoteClassifier(resty.New().SetBaseURL(srv.URL), "risk", "/predict", []string{"Low", "High"})
	_, err = c.PredictProba(context.Background(), FeatureVector{})
	assert.True(t, errors.Is(err, ErrSchemaMismatch))
}

func TestRemoteClassifier_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewRemoteClassifier(resty.New().SetBaseURL(srv.URL), "risk", "/predict", []string{"A"})
	_, err := c.PredictProba(context.Background(), FeatureVector{})
	assert.True(t, errors.Is(err, ErrInference))
}

func TestWithTimeout(t *testing.T) {
	slow := &stubClassifier{classes: []string{"A"}, probs: []float64{1}, delay: 200 * time.Millisecond}
	_, err := WithTimeout(slow, 20*time.Millisecond).PredictProba(context.Background(), FeatureVector{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInferenceTimeout))
	assert.True(t, errors.Is(err, ErrInference))

	fast := &stubClassifier{classes: []string{"A"}, probs: []float64{1}}
	probs, err := WithTimeout(fast, time.Second).PredictProba(context.Background(), FeatureVector{})
	require.NoError(t, err)
	assert.Equal(t, []float64{1}, probs)
}
