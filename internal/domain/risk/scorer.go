// Package risk scores a patient's clinical risk with the frozen risk model
// and explains the score with weighted feature contributions.
package risk

import (
	"context"
	"fmt"
	"sort"

	"github.com/edtriage/triage/internal/platform/ml"
)

const (
	DefaultTopN      = 8
	DefaultThreshold = 10.0
)

// Factor is one feature's approximate influence on the prediction:
// its encoded value times its global importance. It is not a per-instance
// attribution.
type Factor struct {
	Feature      string  `json:"feature"`
	Contribution float64 `json:"contribution"`
}

type Assessment struct {
	Label               string   `json:"label"`
	Confidence          float64  `json:"confidence"`
	ContributingFactors []Factor `json:"contributing_factors"`
}

type Options struct {
	TopN      int
	Threshold float64
}

func DefaultOptions() Options {
	return Options{TopN: DefaultTopN, Threshold: DefaultThreshold}
}

// Scorer is immutable after construction and shared by all requests.
type Scorer struct {
	encoder     *ml.Encoder
	importances []float64
	classifier  ml.Classifier
}

// NewScorer builds a scorer from the risk artifact. The artifact must carry
// one importance per schema feature.
func NewScorer(m ml.LoadedModel) (*Scorer, error) {
	if m.Artifact == nil {
		return nil, fmt.Errorf("%w: risk artifact missing", ml.ErrSchemaMismatch)
	}
	return New(m.Artifact.Schema, m.Artifact.Importances, m.Classifier)
}

func New(schema ml.Schema, importances []float64, classifier ml.Classifier) (*Scorer, error) {
	enc, err := ml.NewEncoder(schema, ml.EncoderConfig{
		Categorical: []string{"Gender"},
		Labels:      []string{ml.LabelRisk, ml.LabelDepartment},
	})
	if err != nil {
		return nil, err
	}
	if len(importances) != len(schema) {
		return nil, fmt.Errorf("%w: %d importances for %d risk features", ml.ErrSchemaMismatch, len(importances), len(schema))
	}
	if classifier == nil {
		return nil, fmt.Errorf("%w: risk classifier missing", ml.ErrSchemaMismatch)
	}
	return &Scorer{
		encoder:     enc,
		importances: append([]float64(nil), importances...),
		classifier:  classifier,
	}, nil
}

// Classes returns the risk labels the model can emit.
func (s *Scorer) Classes() []string { return s.classifier.Classes() }

// Score encodes record against the risk schema, predicts the risk label and
// returns at most opts.TopN factors whose contribution exceeds
// opts.Threshold, largest first. Equal contributions keep schema order.
func (s *Scorer) Score(ctx context.Context, record any, opts Options) (*Assessment, error) {
	vec, err := s.encoder.Encode(record)
	if err != nil {
		return nil, err
	}
	pred, err := ml.Predict(ctx, s.classifier, vec)
	if err != nil {
		return nil, fmt.Errorf("risk: %w", err)
	}
	return &Assessment{
		Label:               pred.Label,
		Confidence:          pred.ConfidencePercent(),
		ContributingFactors: s.factors(vec, opts),
	}, nil
}

func (s *Scorer) factors(vec ml.FeatureVector, opts Options) []Factor {
	out := make([]Factor, 0, opts.TopN)
	for i, name := range vec.Schema {
		c := vec.Values[i] * s.importances[i]
		if c > opts.Threshold {
			out = append(out, Factor{Feature: name, Contribution: c})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Contribution > out[j].Contribution
	})
	if opts.TopN >= 0 && len(out) > opts.TopN {
		out = out[:opts.TopN]
	}
	return out
}
