package ml

import (
	"context"
	"fmt"

	"github.com/go-resty/resty/v2"
)

type predictRequest struct {
	Model     string      `json:"model"`
	Features  []string    `json:"features"`
	Instances [][]float64 `json:"instances"`
}

type predictResponse struct {
	Classes       []string    `json:"classes"`
	Probabilities [][]float64 `json:"probabilities"`
}

// RemoteClassifier delegates prediction to a model server that hosts the
// trained estimator and exposes predict_proba over HTTP.
type RemoteClassifier struct {
	client   *resty.Client
	model    string
	endpoint string
	classes  []string
}

func NewRemoteClassifier(client *resty.Client, model, endpoint string, classes []string) *RemoteClassifier {
	return &RemoteClassifier{client: client, model: model, endpoint: endpoint, classes: classes}
}

func (c *RemoteClassifier) Classes() []string { return c.classes }

func (c *RemoteClassifier) PredictProba(ctx context.Context, v FeatureVector) ([]float64, error) {
	var out predictResponse
	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(predictRequest{Model: c.model, Features: v.Schema, Instances: [][]float64{v.Values}}).
		SetResult(&out).
		Post(c.endpoint)
	if err != nil {
		return nil, fmt.Errorf("%w: call %s: %v", ErrInference, c.endpoint, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("%w: %s returned status %d", ErrInference, c.endpoint, resp.StatusCode())
	}
	if len(out.Probabilities) != 1 {
		return nil, fmt.Errorf("%w: expected one probability row, got %d", ErrInference, len(out.Probabilities))
	}
	if len(out.Classes) > 0 {
		if len(out.Classes) != len(c.classes) {
			return nil, fmt.Errorf("%w: server reports %d classes, artifact has %d", ErrSchemaMismatch, len(out.Classes), len(c.classes))
		}
		for i := range out.Classes {
			if out.Classes[i] != c.classes[i] {
				return nil, fmt.Errorf("%w: class %d is %q on server, %q in artifact", ErrSchemaMismatch, i, out.Classes[i], c.classes[i])
			}
		}
	}
	return out.Probabilities[0], nil
}
