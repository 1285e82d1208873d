package ml

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/go-resty/resty/v2"
)

// Model types understood by Artifact.Classifier.
const (
	ModelSoftmax = "softmax"
	ModelRemote  = "remote"
)

// Artifact is a frozen model bundle as exported by the training pipeline:
// the feature schema, the class labels, optional per-feature importances and
// the model parameters (or the endpoint serving them).
type Artifact struct {
	Name        string    `json:"name"`
	Version     string    `json:"version"`
	Schema      Schema    `json:"schema"`
	Classes     []string  `json:"classes"`
	Importances []float64 `json:"feature_importances,omitempty"`
	Model       ModelSpec `json:"model"`
}

// ModelSpec holds the parameters for one of the supported model types.
type ModelSpec struct {
	Type       string      `json:"type"`
	Weights    [][]float64 `json:"weights,omitempty"`
	Intercepts []float64   `json:"intercepts,omitempty"`
	Endpoint   string      `json:"endpoint,omitempty"`
}

// LoadArtifact reads and validates an artifact file. A missing or corrupt
// file is reported as ErrSchemaMismatch.
func LoadArtifact(path string) (*Artifact, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open artifact %s: %v", ErrSchemaMismatch, path, err)
	}
	defer f.Close()

	a, err := ParseArtifact(f)
	if err != nil {
		return nil, fmt.Errorf("artifact %s: %w", path, err)
	}
	return a, nil
}

// ParseArtifact decodes and validates an artifact.
func ParseArtifact(r io.Reader) (*Artifact, error) {
	var a Artifact
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&a); err != nil {
		return nil, fmt.Errorf("%w: decode artifact: %v", ErrSchemaMismatch, err)
	}
	if err := a.Validate(); err != nil {
		return nil, err
	}
	return &a, nil
}

// Validate checks internal consistency of the bundle.
func (a *Artifact) Validate() error {
	if err := a.Schema.Validate(); err != nil {
		return err
	}
	if len(a.Classes) == 0 {
		return fmt.Errorf("%w: artifact %q has no classes", ErrSchemaMismatch, a.Name)
	}
	if a.Importances != nil && len(a.Importances) != len(a.Schema) {
		return fmt.Errorf("%w: %d importances for %d features", ErrSchemaMismatch, len(a.Importances), len(a.Schema))
	}
	switch a.Model.Type {
	case ModelSoftmax:
		_, err := NewSoftmaxModel(a.Classes, a.Model.Weights, a.Model.Intercepts, len(a.Schema))
		return err
	case ModelRemote:
		if a.Model.Endpoint == "" {
			return fmt.Errorf("%w: remote model %q has no endpoint", ErrSchemaMismatch, a.Name)
		}
		return nil
	default:
		return fmt.Errorf("%w: unknown model type %q", ErrSchemaMismatch, a.Model.Type)
	}
}

// Classifier builds the frozen classifier described by the artifact. client
// is only used by remote models and may be nil otherwise.
func (a *Artifact) Classifier(client *resty.Client) (Classifier, error) {
	switch a.Model.Type {
	case ModelSoftmax:
		return NewSoftmaxModel(a.Classes, a.Model.Weights, a.Model.Intercepts, len(a.Schema))
	case ModelRemote:
		if client == nil {
			client = resty.New()
		}
		return NewRemoteClassifier(client, a.Name, a.Model.Endpoint, a.Classes), nil
	default:
		return nil, fmt.Errorf("%w: unknown model type %q", ErrSchemaMismatch, a.Model.Type)
	}
}
