package ml

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/go-resty/resty/v2"
)

// Embedder maps texts into a shared semantic vector space.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

type embedRequest struct {
	Inputs    []string `json:"inputs"`
	Normalize bool     `json:"normalize"`
	Truncate  bool     `json:"truncate"`
}

// HTTPEmbedder calls a sentence-embedding server speaking the
// text-embeddings-inference protocol (POST /embed).
type HTTPEmbedder struct {
	client *resty.Client
	model  string
}

// NewHTTPEmbedder creates an embedder for the server at baseURL. Failed
// calls are not retried here; the caller decides whether to retry.
func NewHTTPEmbedder(baseURL, model string, timeout time.Duration) *HTTPEmbedder {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	return &HTTPEmbedder{client: client, model: model}
}

// Model returns the embedding model name, used to namespace cached vectors.
func (e *HTTPEmbedder) Model() string { return e.model }

func (e *HTTPEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	var out [][]float32
	resp, err := e.client.R().
		SetContext(ctx).
		SetBody(embedRequest{Inputs: texts, Normalize: true, Truncate: true}).
		SetResult(&out).
		Post("/embed")
	if err != nil {
		return nil, fmt.Errorf("%w: embed: %v", ErrInference, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("%w: embed returned status %d", ErrInference, resp.StatusCode())
	}
	if len(out) != len(texts) {
		return nil, fmt.Errorf("%w: %d embeddings for %d texts", ErrInference, len(out), len(texts))
	}
	return out, nil
}

// CosineSimilarity returns the cosine of the angle between a and b, or 0
// when either is a zero vector or the dimensions differ.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
