// Package dataset holds the in-memory tabular data model: named, typed,
// equal-length columns read from CSV or built from a single JSON record.
package dataset

import (
	"github.com/YuminosukeSato/tabml/pkg/errors"
)

// Field is the schema entry of one column.
type Field struct {
	Name string `json:"name"`
	Kind Kind   `json:"kind"`
}

// Schema is the ordered list of column names and kinds.
type Schema []Field

// Names returns the column names in order.
func (s Schema) Names() []string {
	names := make([]string, len(s))
	for i, f := range s {
		names[i] = f.Name
	}
	return names
}

// Lookup returns the field with the given name.
func (s Schema) Lookup(name string) (Field, bool) {
	for _, f := range s {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Dataset is an ordered set of equal-length columns.
type Dataset struct {
	columns []*Column
	index   map[string]int
	rows    int
}

// New builds a dataset. All columns must have the same length and unique names.
func New(columns ...*Column) (*Dataset, error) {
	d := &Dataset{columns: columns, index: make(map[string]int, len(columns))}
	for i, c := range columns {
		if i == 0 {
			d.rows = c.Len()
		} else if c.Len() != d.rows {
			return nil, errors.NewDimensionError("dataset.New", d.rows, c.Len(), 0)
		}
		if _, dup := d.index[c.Name]; dup {
			return nil, errors.NewValueError("dataset.New", "duplicate column name '"+c.Name+"'")
		}
		d.index[c.Name] = i
	}
	return d, nil
}

// NumRows returns the number of rows.
func (d *Dataset) NumRows() int { return d.rows }

// NumCols returns the number of columns.
func (d *Dataset) NumCols() int { return len(d.columns) }

// Columns returns the columns in order. The slice must not be modified.
func (d *Dataset) Columns() []*Column { return d.columns }

// Names returns the column names in order.
func (d *Dataset) Names() []string {
	names := make([]string, len(d.columns))
	for i, c := range d.columns {
		names[i] = c.Name
	}
	return names
}

// Column looks a column up by its exact name.
func (d *Dataset) Column(name string) (*Column, bool) {
	i, ok := d.index[name]
	if !ok {
		return nil, false
	}
	return d.columns[i], true
}

// Schema returns the names and kinds of all columns.
func (d *Dataset) Schema() Schema {
	s := make(Schema, len(d.columns))
	for i, c := range d.columns {
		s[i] = Field{Name: c.Name, Kind: c.Kind}
	}
	return s
}

// Select returns a dataset with the named columns in the given order.
func (d *Dataset) Select(names ...string) (*Dataset, error) {
	cols := make([]*Column, 0, len(names))
	for _, n := range names {
		c, ok := d.Column(n)
		if !ok {
			return nil, errors.NewColumnNotFoundError(n, d.Names())
		}
		cols = append(cols, c)
	}
	out, err := New(cols...)
	if err != nil {
		return nil, err
	}
	if len(cols) == 0 {
		out.rows = d.rows
	}
	return out, nil
}

// Drop returns a dataset without the named column.
func (d *Dataset) Drop(name string) *Dataset {
	cols := make([]*Column, 0, len(d.columns))
	for _, c := range d.columns {
		if c.Name != name {
			cols = append(cols, c)
		}
	}
	out := &Dataset{columns: cols, index: make(map[string]int, len(cols)), rows: d.rows}
	for i, c := range cols {
		out.index[c.Name] = i
	}
	return out
}

// Take returns the rows idx, in that order, as a new dataset.
func (d *Dataset) Take(idx []int) *Dataset {
	cols := make([]*Column, len(d.columns))
	for i, c := range d.columns {
		cols[i] = c.Take(idx)
	}
	out := &Dataset{columns: cols, index: make(map[string]int, len(cols)), rows: len(idx)}
	for i, c := range cols {
		out.index[c.Name] = i
	}
	return out
}
