package dataset

import (
	"encoding/json"
	"math"
	"sort"
	"strconv"

	"github.com/YuminosukeSato/tabml/pkg/errors"
)

// FromRecord builds a one-row dataset with the columns of schema from a
// decoded JSON object. "" and null are missing. Numeric fields accept JSON
// numbers and numeric strings; text fields accept strings, numbers and
// booleans. Keys outside the schema are ignored; a schema column absent from
// the record is a ColumnNotFoundError.
func FromRecord(record map[string]any, schema Schema) (*Dataset, error) {
	cols := make([]*Column, len(schema))
	for i, f := range schema {
		v, ok := record[f.Name]
		if !ok {
			return nil, errors.NewColumnNotFoundError(f.Name, recordKeys(record))
		}
		col, err := recordColumn(f, v)
		if err != nil {
			return nil, err
		}
		cols[i] = col
	}
	return New(cols...)
}

func recordColumn(f Field, v any) (*Column, error) {
	if f.Kind == Text {
		s, ok := textValue(v)
		if !ok {
			return nil, errors.NewValueError("FromRecord", "field '"+f.Name+"' must be a string")
		}
		return NewTextColumn(f.Name, []string{s}), nil
	}

	x, ok := numericValue(v)
	if !ok {
		return nil, errors.NewValueError("FromRecord", "field '"+f.Name+"' must be a number")
	}
	return NewNumericColumn(f.Name, []float64{x}), nil
}

func textValue(v any) (string, bool) {
	switch t := v.(type) {
	case nil:
		return "", true
	case string:
		return t, true
	case bool:
		return strconv.FormatBool(t), true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case json.Number:
		return t.String(), true
	default:
		return "", false
	}
}

func numericValue(v any) (float64, bool) {
	switch t := v.(type) {
	case nil:
		return math.NaN(), true
	case float64:
		return t, true
	case int:
		return float64(t), true
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	case string:
		if IsMissingToken(t) {
			return math.NaN(), true
		}
		return parseFloat(t)
	default:
		return 0, false
	}
}

func recordKeys(record map[string]any) []string {
	keys := make([]string, 0, len(record))
	for k := range record {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
