package ml

import "fmt"

// ClinicalRecord is a per-request mapping of named clinical attributes:
// demographics, vitals, and boolean symptom/comorbidity flags.
type ClinicalRecord map[string]any

// Clone returns a shallow copy so callers can add derived inputs (such as
// the predicted risk label) without mutating the original record.
func (r ClinicalRecord) Clone() ClinicalRecord {
	out := make(ClinicalRecord, len(r)+1)
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Table is a tabular record batch: named columns and one slice of values per
// row. Only single-row tables can be encoded.
type Table struct {
	Columns []string
	Rows    [][]any
}

// normalize reduces any supported input shape to a single ClinicalRecord.
// Supported shapes are ClinicalRecord, map[string]any, a single-row Table and
// a one-element []ClinicalRecord.
func normalize(input any) (ClinicalRecord, error) {
	switch in := input.(type) {
	case ClinicalRecord:
		if in == nil {
			return nil, fmt.Errorf("%w: nil record", ErrInvalidInputShape)
		}
		return in.Clone(), nil
	case map[string]any:
		if in == nil {
			return nil, fmt.Errorf("%w: nil record", ErrInvalidInputShape)
		}
		return ClinicalRecord(in).Clone(), nil
	case Table:
		return tableRow(&in)
	case *Table:
		if in == nil {
			return nil, fmt.Errorf("%w: nil table", ErrInvalidInputShape)
		}
		return tableRow(in)
	case []ClinicalRecord:
		if len(in) != 1 {
			return nil, fmt.Errorf("%w: batch of %d records, expected exactly one", ErrInvalidInputShape, len(in))
		}
		return normalize(in[0])
	default:
		return nil, fmt.Errorf("%w: unsupported input type %T", ErrInvalidInputShape, input)
	}
}

func tableRow(t *Table) (ClinicalRecord, error) {
	if len(t.Rows) != 1 {
		return nil, fmt.Errorf("%w: table has %d rows, expected exactly one", ErrInvalidInputShape, len(t.Rows))
	}
	row := t.Rows[0]
	if len(row) != len(t.Columns) {
		return nil, fmt.Errorf("%w: row has %d values for %d columns", ErrInvalidInputShape, len(row), len(t.Columns))
	}
	rec := make(ClinicalRecord, len(t.Columns))
	for i, col := range t.Columns {
		rec[col] = row[i]
	}
	return rec, nil
}
