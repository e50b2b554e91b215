// Package chart はデータセットの2列から折れ線・棒・散布図を描画する
//
// 画像はPNGとしてメモリ上に描画され、base64文字列でも取得できる。
// 描画にはgonum/plotを使う。
package chart

import (
	"bytes"
	"encoding/base64"
	"sort"
	"strconv"
	"strings"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/YuminosukeSato/tabml/dataset"
	"github.com/YuminosukeSato/tabml/pkg/errors"
	"github.com/YuminosukeSato/tabml/pkg/log"
)

// Kind はグラフの種類
type Kind string

// サポートするグラフの種類
const (
	Line    Kind = "line"
	Bar     Kind = "bar"
	Scatter Kind = "scatter"
)

// Kinds lists the supported kinds in display order.
var Kinds = []Kind{Line, Bar, Scatter}

// ParseKind validates s as a chart kind (case-sensitive).
func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds {
		if string(k) == s {
			return k, nil
		}
	}
	supported := make([]string, len(Kinds))
	for i, k := range Kinds {
		supported[i] = string(k)
	}
	return "", errors.NewUnsupportedChartKindError(s, supported)
}

// Options は画像サイズ（インチ）
type Options struct {
	WidthIn  float64 `mapstructure:"width_in" yaml:"width_in"`
	HeightIn float64 `mapstructure:"height_in" yaml:"height_in"`
}

// DefaultOptions is a 10 × 6 inch figure.
func DefaultOptions() Options {
	return Options{WidthIn: 10, HeightIn: 6}
}

// Title returns "<Kind> Plot: <y> vs <x>".
func Title(kind Kind, x, y string) string {
	k := string(kind)
	return strings.ToUpper(k[:1]) + k[1:] + " Plot: " + y + " vs " + x
}

// Render draws column y against column x of ds and returns PNG bytes.
// Rows where x or y is missing are skipped. y must be numeric.
func Render(ds *dataset.Dataset, kind Kind, x, y string, opts Options, logger log.Logger) ([]byte, error) {
	logger = log.OrNop(logger)
	if _, err := ParseKind(string(kind)); err != nil {
		return nil, err
	}
	xs, ok := ds.Column(x)
	if !ok {
		return nil, errors.NewColumnNotFoundError(x, ds.Names())
	}
	ys, ok := ds.Column(y)
	if !ok {
		return nil, errors.NewColumnNotFoundError(y, ds.Names())
	}
	if ys.Kind != dataset.Numeric {
		return nil, errors.NewValueError("chart.Render", "y column '"+y+"' must be numeric")
	}

	rows := make([]int, 0, ds.NumRows())
	for i := 0; i < ds.NumRows(); i++ {
		if !xs.IsMissing(i) && !ys.IsMissing(i) {
			rows = append(rows, i)
		}
	}
	if len(rows) == 0 {
		return nil, errors.NewValueError("chart.Render", "no rows with both '"+x+"' and '"+y+"' present")
	}

	p := plot.New()
	p.Title.Text = Title(kind, x, y)
	p.X.Label.Text = x
	p.Y.Label.Text = y

	var err error
	switch kind {
	case Line:
		err = addLine(p, xs, ys, rows)
	case Bar:
		err = addBar(p, xs, ys, rows)
	case Scatter:
		err = addScatter(p, xs, ys, rows)
	}
	if err != nil {
		return nil, errors.NewUnexpectedFailure("draw "+string(kind)+" chart", err)
	}

	if opts.WidthIn <= 0 || opts.HeightIn <= 0 {
		opts = DefaultOptions()
	}
	w, err := p.WriterTo(vg.Length(opts.WidthIn)*vg.Inch, vg.Length(opts.HeightIn)*vg.Inch, "png")
	if err != nil {
		return nil, errors.NewUnexpectedFailure("render png", err)
	}
	var buf bytes.Buffer
	if _, err := w.WriteTo(&buf); err != nil {
		return nil, errors.NewUnexpectedFailure("encode png", err)
	}

	logger.Debug("Chart rendered",
		log.ChartKindKey, string(kind),
		log.SamplesKey, len(rows),
	)
	return buf.Bytes(), nil
}

// RenderBase64 is Render with the PNG encoded as standard base64.
func RenderBase64(ds *dataset.Dataset, kind Kind, x, y string, opts Options, logger log.Logger) (string, error) {
	png, err := Render(ds, kind, x, y, opts, logger)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(png), nil
}

// group は x の値ごとの y の平均
type group struct {
	label string
	x     float64
	sum   float64
	n     int
}

func (g *group) mean() float64 { return g.sum / float64(g.n) }

// groupByX averages y per distinct x. Numeric x groups are sorted by value,
// text groups keep the order of first appearance.
func groupByX(xs, ys *dataset.Column, rows []int) []*group {
	index := make(map[string]*group)
	var groups []*group
	for _, i := range rows {
		key := xs.Raw[i]
		xv := 0.0
		if xs.Kind == dataset.Numeric {
			xv = xs.Float(i)
			key = strconv.FormatFloat(xv, 'g', -1, 64)
		}
		g, ok := index[key]
		if !ok {
			g = &group{label: key, x: xv}
			index[key] = g
			groups = append(groups, g)
		}
		g.sum += ys.Float(i)
		g.n++
	}
	if xs.Kind == dataset.Numeric {
		sort.SliceStable(groups, func(a, b int) bool { return groups[a].x < groups[b].x })
	} else {
		for k, g := range groups {
			g.x = float64(k)
		}
	}
	return groups
}

func nominal(p *plot.Plot, groups []*group) {
	names := make([]string, len(groups))
	for i, g := range groups {
		names[i] = g.label
	}
	p.NominalX(names...)
}

func addLine(p *plot.Plot, xs, ys *dataset.Column, rows []int) error {
	groups := groupByX(xs, ys, rows)
	pts := make(plotter.XYs, len(groups))
	for i, g := range groups {
		pts[i] = plotter.XY{X: g.x, Y: g.mean()}
	}
	l, err := plotter.NewLine(pts)
	if err != nil {
		return err
	}
	l.LineStyle.Width = vg.Points(2)
	p.Add(l)
	if xs.Kind != dataset.Numeric {
		nominal(p, groups)
	}
	return nil
}

func addBar(p *plot.Plot, xs, ys *dataset.Column, rows []int) error {
	groups := groupByX(xs, ys, rows)
	values := make(plotter.Values, len(groups))
	for i, g := range groups {
		values[i] = g.mean()
	}
	width := vg.Points(400 / float64(len(groups)))
	if width > vg.Points(40) {
		width = vg.Points(40)
	}
	bars, err := plotter.NewBarChart(values, width)
	if err != nil {
		return err
	}
	p.Add(bars)
	nominal(p, groups)
	return nil
}

func addScatter(p *plot.Plot, xs, ys *dataset.Column, rows []int) error {
	var groups []*group
	position := make(map[string]float64)
	pts := make(plotter.XYs, len(rows))
	for k, i := range rows {
		xv := 0.0
		if xs.Kind == dataset.Numeric {
			xv = xs.Float(i)
		} else {
			pos, ok := position[xs.Raw[i]]
			if !ok {
				pos = float64(len(groups))
				position[xs.Raw[i]] = pos
				groups = append(groups, &group{label: xs.Raw[i], x: pos})
			}
			xv = pos
		}
		pts[k] = plotter.XY{X: xv, Y: ys.Float(i)}
	}
	s, err := plotter.NewScatter(pts)
	if err != nil {
		return err
	}
	s.GlyphStyle.Radius = vg.Points(3)
	p.Add(s)
	if xs.Kind != dataset.Numeric {
		nominal(p, groups)
	}
	return nil
}
