package dataset

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/tobgu/qframe"
	qcsv "github.com/tobgu/qframe/config/csv"
	"github.com/tobgu/qframe/config/newqf"
	"github.com/tobgu/qframe/types"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/YuminosukeSato/tabml/pkg/errors"
)

// ReadOptions controls CSV reading.
type ReadOptions struct {
	// Delimiter separates fields. If 0, ',' is used (LoadCSV sniffs it from the extension).
	Delimiter rune
	// NumericThreshold is the minimum share of parsable non-missing cells for a
	// column to be numeric. 0 means 1.0 (every cell must parse).
	NumericThreshold float64
	// Warner receives DataConversionWarning when cells are coerced to missing.
	Warner errors.Warner
}

// Option configures ReadCSV and LoadCSV.
type Option func(*ReadOptions)

// WithDelimiter overrides the field delimiter.
func WithDelimiter(d rune) Option { return func(o *ReadOptions) { o.Delimiter = d } }

// WithNumericThreshold sets the numeric inference threshold.
func WithNumericThreshold(t float64) Option {
	return func(o *ReadOptions) { o.NumericThreshold = t }
}

// WithWarner routes conversion warnings to w.
func WithWarner(w errors.Warner) Option { return func(o *ReadOptions) { o.Warner = w } }

// LoadCSV reads a dataset from a file. A ".tsv" file is read tab-separated.
func LoadCSV(path string, opts ...Option) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewFileNotFoundError(path)
		}
		return nil, errors.NewUnexpectedFailure("open dataset", err)
	}
	defer f.Close()

	return ReadCSV(f, append([]Option{WithDelimiter(sniffDelimiter(path))}, opts...)...)
}

func sniffDelimiter(path string) rune {
	if strings.EqualFold(filepath.Ext(path), ".tsv") {
		return '\t'
	}
	return ','
}

// ReadCSV parses a header row followed by data rows and infers each column's kind.
//
// Input is decoded as UTF-8 (a leading BOM is dropped; UTF-16 with a BOM is
// converted); input that is not valid UTF-8 is decoded as Windows-1252.
// Cells are read as strings by qframe; kinds are decided afterwards by
// InferColumn. A row whose field count differs from the header is a ValueError.
func ReadCSV(r io.Reader, opts ...Option) (*Dataset, error) {
	o := ReadOptions{Delimiter: ',', NumericThreshold: 1.0}
	for _, opt := range opts {
		opt(&o)
	}
	if o.NumericThreshold <= 0 {
		o.NumericThreshold = 1.0
	}

	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.NewUnexpectedFailure("read dataset", err)
	}
	text, err := decodeText(raw)
	if err != nil {
		return nil, errors.NewUnexpectedFailure("decode dataset", err)
	}

	n, err := countFields(text, byte(o.Delimiter))
	if err != nil {
		return nil, err
	}

	// ヘッダー行もデータとして読み、列名は自前で決める
	positional := make([]string, n)
	typs := make(map[string]string, n)
	for j := range positional {
		positional[j] = "c" + strconv.Itoa(j)
		typs[positional[j]] = string(types.String)
	}
	qf := qframe.ReadCSV(bytes.NewReader(text),
		qcsv.Delimiter(byte(o.Delimiter)),
		qcsv.Headers(positional),
		qcsv.Types(typs),
		qcsv.IgnoreEmptyLines(true),
	)
	if qf.Err != nil {
		return nil, errors.NewValueError("ReadCSV", qf.Err.Error())
	}

	cells := make([][]string, n)
	for j, key := range positional {
		view, err := qf.StringView(key)
		if err != nil {
			return nil, errors.NewUnexpectedFailure("read dataset", err)
		}
		cells[j] = make([]string, view.Len())
		for i := range cells[j] {
			if v := view.ItemAt(i); v != nil {
				cells[j][i] = *v
			}
		}
	}
	if len(cells) == 0 || len(cells[0]) == 0 {
		return nil, errors.NewValueError("ReadCSV", "no columns to parse from file")
	}

	header := make([]string, n)
	for j := range cells {
		header[j] = cells[j][0]
		cells[j] = cells[j][1:]
	}
	names := headerNames(header)

	cols := make([]*Column, n)
	for j, name := range names {
		cols[j] = InferColumn(name, cells[j], o.NumericThreshold, o.Warner)
	}
	return New(cols...)
}

// countFields returns the number of columns of the header line.
func countFields(text []byte, delim byte) (int, error) {
	line := text
	if i := bytes.IndexByte(text, '\n'); i >= 0 {
		line = text[:i]
	}
	line = bytes.TrimRight(line, "\r")
	if len(bytes.TrimSpace(line)) == 0 {
		return 0, errors.NewValueError("ReadCSV", "no columns to parse from file")
	}
	hq := qframe.ReadCSV(bytes.NewReader(append(line, '\n')),
		qcsv.Delimiter(delim),
		qcsv.RenameDuplicateColumns(true),
		qcsv.MissingColumnNameAlias("Unnamed"),
	)
	if hq.Err != nil {
		return 0, errors.NewValueError("ReadCSV", hq.Err.Error())
	}
	return len(hq.ColumnNames()), nil
}

// headerNames fills blank names with "Unnamed: i" and suffixes repeats with
// ".1", ".2", ... so every column name is unique.
func headerNames(header []string) []string {
	names := make([]string, len(header))
	used := make(map[string]bool, len(header))
	counts := make(map[string]int)
	for i, h := range header {
		name := strings.TrimSpace(h)
		if name == "" {
			name = "Unnamed: " + strconv.Itoa(i)
		}
		base := name
		for used[name] {
			counts[base]++
			name = base + "." + strconv.Itoa(counts[base])
		}
		used[name] = true
		names[i] = name
	}
	return names
}

func decodeText(b []byte) ([]byte, error) {
	if utf8.Valid(b) || hasUTF16BOM(b) {
		out, _, err := transform.Bytes(unicode.BOMOverride(transform.Nop), b)
		return out, err
	}
	out, _, err := transform.Bytes(charmap.Windows1252.NewDecoder(), b)
	return out, err
}

func hasUTF16BOM(b []byte) bool {
	return len(b) >= 2 && (b[0] == 0xFE && b[1] == 0xFF || b[0] == 0xFF && b[1] == 0xFE)
}

// WriteCSV writes the header and the raw cells of every row.
func (d *Dataset) WriteCSV(w io.Writer) error {
	data := make(map[string]interface{}, d.NumCols())
	for _, c := range d.columns {
		data[c.Name] = c.Raw
	}
	qf := qframe.New(data, newqf.ColumnOrder(d.Names()...))
	if qf.Err != nil {
		return errors.NewUnexpectedFailure("write csv", qf.Err)
	}
	if err := qf.ToCSV(w); err != nil {
		return errors.NewUnexpectedFailure("write csv", err)
	}
	return nil
}
