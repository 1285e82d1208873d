package ml

import (
	"fmt"
	"strings"
)

// Schema is the ordered list of feature names a trained classifier expects.
// It is captured at training time and shipped inside the model artifact.
type Schema []string

// Validate reports ErrSchemaMismatch for an empty schema, blank feature
// names or duplicated names.
func (s Schema) Validate() error {
	if len(s) == 0 {
		return fmt.Errorf("%w: schema is empty", ErrSchemaMismatch)
	}
	seen := make(map[string]struct{}, len(s))
	for i, name := range s {
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("%w: feature %d has no name", ErrSchemaMismatch, i)
		}
		if _, dup := seen[name]; dup {
			return fmt.Errorf("%w: feature %q listed twice", ErrSchemaMismatch, name)
		}
		seen[name] = struct{}{}
	}
	return nil
}

func (s Schema) index() map[string]int {
	idx := make(map[string]int, len(s))
	for i, name := range s {
		idx[name] = i
	}
	return idx
}

// FeatureVector is a numeric row aligned to a Schema. Values[i] is the value
// of Schema[i].
type FeatureVector struct {
	Schema Schema
	Values []float64
}

// Len returns the number of features.
func (v FeatureVector) Len() int { return len(v.Values) }

// Value returns the value of the named feature.
func (v FeatureVector) Value(name string) (float64, bool) {
	for i, n := range v.Schema {
		if n == name {
			return v.Values[i], true
		}
	}
	return 0, false
}
