package ml

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Label columns that must never leak into classifier input.
const (
	LabelRisk       = "Risk"
	LabelDepartment = "Department"
)

// EncoderConfig describes how records are turned into vectors for one model.
type EncoderConfig struct {
	// Categorical fields are one-hot encoded as "<field>_<value>". Baseline
	// categories are absent from the schema, which gives the drop-first
	// convention used at training time.
	Categorical []string
	// Labels are removed from the record before encoding.
	Labels []string
}

// Encoder aligns clinical records to a fixed model schema. It is immutable
// and safe for concurrent use.
type Encoder struct {
	schema      Schema
	index       map[string]int
	categorical map[string]bool
	labels      []string
}

// NewEncoder validates the schema and builds an encoder for it.
func NewEncoder(schema Schema, cfg EncoderConfig) (*Encoder, error) {
	if err := schema.Validate(); err != nil {
		return nil, err
	}
	cat := make(map[string]bool, len(cfg.Categorical))
	for _, f := range cfg.Categorical {
		cat[f] = true
	}
	return &Encoder{
		schema:      append(Schema(nil), schema...),
		index:       schema.index(),
		categorical: cat,
		labels:      append([]string(nil), cfg.Labels...),
	}, nil
}

// Schema returns the encoder's feature schema.
func (e *Encoder) Schema() Schema { return e.schema }

// Encode normalizes input to a single record and returns a vector whose
// length and order equal the schema. Missing features are zero and columns
// outside the schema are ignored.
func (e *Encoder) Encode(input any) (FeatureVector, error) {
	rec, err := normalize(input)
	if err != nil {
		return FeatureVector{}, err
	}
	for _, l := range e.labels {
		delete(rec, l)
	}

	// Scalars first, then categoricals. A raw categorical owns every
	// "<field>_<value>" column, so pre-encoded columns for it are reset.
	values := make([]float64, len(e.schema))
	var cats []string
	for key, raw := range rec {
		if e.categorical[key] {
			cats = append(cats, key)
			continue
		}
		i, ok := e.index[key]
		if !ok {
			continue
		}
		f, err := toFloat(raw)
		if err != nil {
			return FeatureVector{}, fmt.Errorf("%w: feature %q: %v", ErrInvalidInputShape, key, err)
		}
		values[i] = f
	}
	for _, key := range cats {
		prefix := key + "_"
		for i, name := range e.schema {
			if strings.HasPrefix(name, prefix) {
				values[i] = 0
			}
		}
		cat, ok := categoryValue(rec[key])
		if !ok {
			continue
		}
		if i, ok := e.index[prefix+cat]; ok {
			values[i] = 1
		}
	}
	return FeatureVector{Schema: e.schema, Values: values}, nil
}

// Encode is a convenience for one-off encoding against schema.
func Encode(input any, schema Schema, cfg EncoderConfig) (FeatureVector, error) {
	enc, err := NewEncoder(schema, cfg)
	if err != nil {
		return FeatureVector{}, err
	}
	return enc.Encode(input)
}

func categoryValue(v any) (string, bool) {
	switch c := v.(type) {
	case nil:
		return "", false
	case string:
		c = strings.TrimSpace(c)
		return c, c != ""
	case fmt.Stringer:
		s := strings.TrimSpace(c.String())
		return s, s != ""
	default:
		return fmt.Sprint(c), true
	}
}

func toFloat(v any) (float64, error) {
	switch n := v.(type) {
	case nil:
		return 0, nil
	case bool:
		if n {
			return 1, nil
		}
		return 0, nil
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int8:
		return float64(n), nil
	case int16:
		return float64(n), nil
	case int32:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case uint:
		return float64(n), nil
	case uint8:
		return float64(n), nil
	case uint16:
		return float64(n), nil
	case uint32:
		return float64(n), nil
	case uint64:
		return float64(n), nil
	case json.Number:
		return n.Float64()
	case string:
		s := strings.TrimSpace(n)
		switch strings.ToLower(s) {
		case "":
			return 0, nil
		case "true":
			return 1, nil
		case "false":
			return 0, nil
		}
		return strconv.ParseFloat(s, 64)
	default:
		return 0, fmt.Errorf("unsupported value type %T", v)
	}
}
