package department

import (
	"context"
	"fmt"

	"github.com/edtriage/triage/internal/platform/ml"
)

// Index holds the embedded department descriptions. It is built once at
// startup and read concurrently afterwards.
type Index struct {
	labels  []string
	vectors [][]float32
}

// BuildIndex embeds every department description in a single call.
func BuildIndex(ctx context.Context, embedder ml.Embedder) (*Index, error) {
	texts := make([]string, len(Descriptions))
	labels := make([]string, len(Descriptions))
	for i, d := range Descriptions {
		texts[i] = d.Text
		labels[i] = d.Label
	}
	vecs, err := embedder.Embed(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed department descriptions: %w", err)
	}
	return NewIndex(labels, vecs)
}

// NewIndex validates that there is one non-empty vector per label and that
// all vectors share a dimension.
func NewIndex(labels []string, vectors [][]float32) (*Index, error) {
	if len(labels) == 0 || len(labels) != len(vectors) {
		return nil, fmt.Errorf("%w: %d description vectors for %d departments", ml.ErrSchemaMismatch, len(vectors), len(labels))
	}
	dim := len(vectors[0])
	for i, v := range vectors {
		if len(v) == 0 || len(v) != dim {
			return nil, fmt.Errorf("%w: description vector %d has dimension %d, want %d", ml.ErrSchemaMismatch, i, len(v), dim)
		}
		if !IsValid(labels[i]) {
			return nil, fmt.Errorf("%w: unknown department %q", ml.ErrSchemaMismatch, labels[i])
		}
	}
	return &Index{labels: labels, vectors: vectors}, nil
}

// Nearest returns the description with the highest cosine similarity to q.
// The first label wins on ties.
func (ix *Index) Nearest(q []float32) (string, float64, error) {
	if len(q) != len(ix.vectors[0]) {
		return "", 0, fmt.Errorf("%w: query embedding has dimension %d, index has %d", ml.ErrInference, len(q), len(ix.vectors[0]))
	}
	best, bestSim := 0, ml.CosineSimilarity(q, ix.vectors[0])
	for i := 1; i < len(ix.vectors); i++ {
		if s := ml.CosineSimilarity(q, ix.vectors[i]); s > bestSim {
			best, bestSim = i, s
		}
	}
	return ix.labels[best], bestSim, nil
}
