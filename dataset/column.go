package dataset

import (
	"math"
	"strconv"
	"strings"

	"github.com/YuminosukeSato/tabml/pkg/errors"
)

// Kind is the primitive type tag of a column.
type Kind int

const (
	// Numeric columns hold float64 values.
	Numeric Kind = iota
	// Text columns hold strings and are treated as categorical.
	Text
)

func (k Kind) String() string {
	if k == Numeric {
		return "numeric"
	}
	return "text"
}

// MarshalText encodes the kind by name.
func (k Kind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// UnmarshalText decodes "numeric" or "text".
func (k *Kind) UnmarshalText(b []byte) error {
	switch string(b) {
	case "numeric":
		*k = Numeric
	case "text":
		*k = Text
	default:
		return errors.NewValueError("Kind.UnmarshalText", "unknown column kind '"+string(b)+"'")
	}
	return nil
}

// naTokens are the cells read as missing, matching the default NA set of pandas.read_csv.
var naTokens = map[string]struct{}{
	"": {}, "#N/A": {}, "#N/A N/A": {}, "#NA": {}, "-1.#IND": {}, "-1.#QNAN": {},
	"-NaN": {}, "-nan": {}, "1.#IND": {}, "1.#QNAN": {}, "<NA>": {}, "N/A": {},
	"NA": {}, "NULL": {}, "NaN": {}, "None": {}, "n/a": {}, "nan": {}, "null": {},
}

// IsMissingToken reports whether a raw cell counts as missing.
func IsMissingToken(s string) bool {
	_, ok := naTokens[strings.TrimSpace(s)]
	return ok
}

// Column is one named, typed column of a Dataset.
//
// Raw keeps the cell text as read. For numeric columns Values holds the parsed
// numbers with NaN in missing slots; for text columns Values is nil.
type Column struct {
	Name    string
	Kind    Kind
	Raw     []string
	Values  []float64
	Missing []bool
}

// Len returns the number of rows.
func (c *Column) Len() int { return len(c.Raw) }

// IsMissing reports whether row i is missing.
func (c *Column) IsMissing(i int) bool { return c.Missing[i] }

// Float returns row i of a numeric column (NaN when missing).
func (c *Column) Float(i int) float64 {
	if c.Kind != Numeric {
		return math.NaN()
	}
	return c.Values[i]
}

// Value returns the raw text of row i.
func (c *Column) Value(i int) string { return c.Raw[i] }

// CountMissing returns the number of missing rows.
func (c *Column) CountMissing() int {
	n := 0
	for _, m := range c.Missing {
		if m {
			n++
		}
	}
	return n
}

// Distinct returns the number of distinct non-missing values. Numeric columns
// compare parsed values, so "1" and "1.0" are the same value.
func (c *Column) Distinct() int {
	if c.Kind == Numeric {
		seen := make(map[float64]struct{})
		for i, v := range c.Values {
			if !c.Missing[i] {
				seen[v] = struct{}{}
			}
		}
		return len(seen)
	}
	seen := make(map[string]struct{})
	for i, v := range c.Raw {
		if !c.Missing[i] {
			seen[v] = struct{}{}
		}
	}
	return len(seen)
}

// Take returns a new column holding rows idx in the given order.
func (c *Column) Take(idx []int) *Column {
	out := &Column{
		Name:    c.Name,
		Kind:    c.Kind,
		Raw:     make([]string, len(idx)),
		Missing: make([]bool, len(idx)),
	}
	if c.Kind == Numeric {
		out.Values = make([]float64, len(idx))
	}
	for j, i := range idx {
		out.Raw[j] = c.Raw[i]
		out.Missing[j] = c.Missing[i]
		if c.Kind == Numeric {
			out.Values[j] = c.Values[i]
		}
	}
	return out
}

// NewTextColumn builds a text column from raw cells.
func NewTextColumn(name string, raw []string) *Column {
	c := &Column{Name: name, Kind: Text, Raw: raw, Missing: make([]bool, len(raw))}
	for i, s := range raw {
		c.Missing[i] = IsMissingToken(s)
	}
	return c
}

// NewNumericColumn builds a numeric column from values; NaN marks a missing row.
func NewNumericColumn(name string, values []float64) *Column {
	c := &Column{
		Name:    name,
		Kind:    Numeric,
		Raw:     make([]string, len(values)),
		Values:  values,
		Missing: make([]bool, len(values)),
	}
	for i, v := range values {
		if math.IsNaN(v) {
			c.Missing[i] = true
			continue
		}
		c.Raw[i] = strconv.FormatFloat(v, 'f', -1, 64)
	}
	return c
}

// parseFloat parses a cell the way the CSV reader does for numeric columns.
func parseFloat(s string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// InferColumn types raw cells. The column is numeric when the share of
// non-missing cells that parse as float64 is at least threshold; an
// all-missing column is numeric. Cells that fail to parse in a numeric column
// become missing and a DataConversionWarning is sent to warn.
func InferColumn(name string, raw []string, threshold float64, warn errors.Warner) *Column {
	values := make([]float64, len(raw))
	missing := make([]bool, len(raw))
	present, parsed := 0, 0
	for i, s := range raw {
		if IsMissingToken(s) {
			missing[i] = true
			values[i] = math.NaN()
			continue
		}
		if v, ok := parseFloat(s); ok && math.IsNaN(v) {
			missing[i] = true
			values[i] = v
			continue
		}
		present++
		if v, ok := parseFloat(s); ok {
			values[i] = v
			parsed++
		} else {
			values[i] = math.NaN()
		}
	}

	if present > 0 && float64(parsed)/float64(present) < threshold {
		return &Column{Name: name, Kind: Text, Raw: raw, Missing: missing}
	}

	if coerced := present - parsed; coerced > 0 {
		for i, v := range values {
			if !missing[i] && math.IsNaN(v) {
				missing[i] = true
			}
		}
		errors.Warn(warn, errors.NewDataConversionWarning(name, "text", "numeric",
			strconv.Itoa(coerced)+" unparsable values set to missing"))
	}
	return &Column{Name: name, Kind: Numeric, Raw: raw, Values: values, Missing: missing}
}
