package ml

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/sync/errgroup"
)

// LoadedModel pairs an artifact with the classifier built from it.
type LoadedModel struct {
	Artifact   *Artifact
	Classifier Classifier
}

// Models holds every frozen model the process serves. It is built once at
// startup and only read afterwards.
type Models struct {
	Risk       LoadedModel
	Department LoadedModel
}

// ModelPaths names the artifact files to load.
type ModelPaths struct {
	Risk       string
	Department string
}

// LoadModels loads all artifacts concurrently and fails if any of them is
// missing or inconsistent, or if ctx ends first. Each classifier is bounded
// by timeout.
func LoadModels(ctx context.Context, paths ModelPaths, client *resty.Client, timeout time.Duration) (*Models, error) {
	var m Models
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		lm, err := loadOne(gctx, paths.Risk, client, timeout)
		if err != nil {
			return fmt.Errorf("risk model: %w", err)
		}
		m.Risk = lm
		return nil
	})
	g.Go(func() error {
		lm, err := loadOne(gctx, paths.Department, client, timeout)
		if err != nil {
			return fmt.Errorf("department model: %w", err)
		}
		m.Department = lm
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &m, nil
}

func loadOne(ctx context.Context, path string, client *resty.Client, timeout time.Duration) (LoadedModel, error) {
	if err := ctx.Err(); err != nil {
		return LoadedModel{}, err
	}
	a, err := LoadArtifact(path)
	if err != nil {
		return LoadedModel{}, err
	}
	if err := ctx.Err(); err != nil {
		return LoadedModel{}, err
	}
	c, err := a.Classifier(client)
	if err != nil {
		return LoadedModel{}, err
	}
	return LoadedModel{Artifact: a, Classifier: WithTimeout(c, timeout)}, nil
}
