// Package department recommends the treating department, either from a
// structured clinical record and the predicted risk, or from a free-text
// symptom description.
package department

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/edtriage/triage/internal/platform/ml"
)

const DefaultConfidenceFloor = 0.45

type Config struct {
	// ConfidenceFloor is the minimum similarity trusted on the free-text
	// path. Below it the label becomes DefaultLabel.
	ConfidenceFloor float64
	DefaultLabel    string
}

func DefaultConfig() Config {
	return Config{ConfidenceFloor: DefaultConfidenceFloor, DefaultLabel: GeneralMedicine}
}

// Result is a department decision. On the structured path Confidence is a
// percentage; on the free-text path it is the raw top similarity in [-1, 1]
// even when the label was replaced by the default.
type Result struct {
	Label       string  `json:"assigned_department"`
	Confidence  float64 `json:"confidence"`
	TriageLevel string  `json:"triage_level,omitempty"`
	// Nearest is the best-matching department when a low-confidence match
	// was replaced by the default label.
	Nearest string `json:"nearest_department,omitempty"`
}

type Classifier struct {
	encoder  *ml.Encoder
	model    ml.Classifier
	embedder ml.Embedder
	index    *Index
	cfg      Config
}

// New wires the structured model and the free-text index. Every class of
// the structured model must be a known department.
func New(model ml.LoadedModel, embedder ml.Embedder, index *Index, cfg Config) (*Classifier, error) {
	if model.Artifact == nil || model.Classifier == nil {
		return nil, fmt.Errorf("%w: department model missing", ml.ErrSchemaMismatch)
	}
	enc, err := ml.NewEncoder(model.Artifact.Schema, ml.EncoderConfig{
		Categorical: []string{"Gender", ml.LabelRisk},
		Labels:      []string{ml.LabelDepartment},
	})
	if err != nil {
		return nil, err
	}
	for _, cls := range model.Classifier.Classes() {
		if !IsValid(cls) {
			return nil, fmt.Errorf("%w: department model emits unknown label %q", ml.ErrSchemaMismatch, cls)
		}
	}
	if embedder == nil || index == nil {
		return nil, fmt.Errorf("%w: embedding index missing", ml.ErrSchemaMismatch)
	}
	if !IsValid(cfg.DefaultLabel) {
		return nil, fmt.Errorf("%w: default department %q is not a known department", ml.ErrSchemaMismatch, cfg.DefaultLabel)
	}
	return &Classifier{encoder: enc, model: model.Classifier, embedder: embedder, index: index, cfg: cfg}, nil
}

// ClassifyRecord runs the structured path. riskLabel is the output of the
// risk stage and is one-hot encoded as Risk_<label>.
func (c *Classifier) ClassifyRecord(ctx context.Context, record ml.ClinicalRecord, riskLabel string) (*Result, error) {
	in := record.Clone()
	if riskLabel != "" {
		in[ml.LabelRisk] = riskLabel
	}
	vec, err := c.encoder.Encode(in)
	if err != nil {
		return nil, err
	}
	pred, err := ml.Predict(ctx, c.model, vec)
	if err != nil {
		return nil, fmt.Errorf("department: %w", err)
	}
	if !IsValid(pred.Label) {
		return nil, fmt.Errorf("%w: department model returned %q", ml.ErrSchemaMismatch, pred.Label)
	}
	return &Result{Label: pred.Label, Confidence: pred.ConfidencePercent()}, nil
}

// ClassifyText runs the free-text path: critical phrases first, then
// nearest department description with a confidence floor.
func (c *Classifier) ClassifyText(ctx context.Context, text string) (*Result, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: symptom text is blank", ml.ErrEmptyInput)
	}
	if r, ok := criticalOverride(text); ok {
		return r, nil
	}

	vecs, err := c.embedder.Embed(ctx, []string{text})
	if err != nil {
		if errors.Is(err, ml.ErrInference) {
			return nil, fmt.Errorf("department: %w", err)
		}
		return nil, fmt.Errorf("department: %w: %v", ml.ErrInference, err)
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("%w: %d embeddings for one text", ml.ErrInference, len(vecs))
	}
	label, sim, err := c.index.Nearest(vecs[0])
	if err != nil {
		return nil, err
	}

	r := &Result{Label: label, Confidence: ml.Round(sim, 3)}
	if sim < c.cfg.ConfidenceFloor {
		r.Nearest = label
		r.Label = c.cfg.DefaultLabel
	}
	return r, nil
}

func criticalOverride(text string) (*Result, bool) {
	lower := strings.ToLower(text)
	for _, phrase := range CriticalPhrases {
		if strings.Contains(lower, phrase) {
			return &Result{Label: Emergency, Confidence: 1.0, TriageLevel: TriageLevelCritical}, true
		}
	}
	return nil, false
}
