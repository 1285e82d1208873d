package ml

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// WithTimeout bounds every PredictProba call of c by d. A call still running
// at the deadline fails with ErrInferenceTimeout.
func WithTimeout(c Classifier, d time.Duration) Classifier {
	if d <= 0 {
		return c
	}
	return &timeoutClassifier{next: c, timeout: d}
}

type timeoutClassifier struct {
	next    Classifier
	timeout time.Duration
}

func (t *timeoutClassifier) Classes() []string { return t.next.Classes() }

func (t *timeoutClassifier) PredictProba(ctx context.Context, v FeatureVector) ([]float64, error) {
	return bounded(ctx, t.timeout, func(ctx context.Context) ([]float64, error) {
		return t.next.PredictProba(ctx, v)
	})
}

// EmbedderWithTimeout bounds every Embed call of e by d.
func EmbedderWithTimeout(e Embedder, d time.Duration) Embedder {
	if d <= 0 {
		return e
	}
	return &timeoutEmbedder{next: e, timeout: d}
}

type timeoutEmbedder struct {
	next    Embedder
	timeout time.Duration
}

func (t *timeoutEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return bounded(ctx, t.timeout, func(ctx context.Context) ([][]float32, error) {
		return t.next.Embed(ctx, texts)
	})
}

type result[T any] struct {
	val T
	err error
}

// bounded runs fn in its own goroutine so that calls ignoring ctx still
// return to the caller at the deadline.
func bounded[T any](ctx context.Context, d time.Duration, fn func(context.Context) (T, error)) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	done := make(chan result[T], 1)
	go func() {
		v, err := fn(ctx)
		done <- result[T]{val: v, err: err}
	}()

	var zero T
	select {
	case r := <-done:
		if r.err != nil && errors.Is(r.err, context.DeadlineExceeded) {
			return zero, fmt.Errorf("%w: after %s", ErrInferenceTimeout, d)
		}
		return r.val, r.err
	case <-ctx.Done():
		if ctx.Err() == context.DeadlineExceeded {
			return zero, fmt.Errorf("%w: after %s", ErrInferenceTimeout, d)
		}
		return zero, fmt.Errorf("%w: %v", ErrInference, ctx.Err())
	}
}
