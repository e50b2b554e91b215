package interpreter

import (
	"math"
	"strconv"
	"strings"
	"testing"

	"github.com/YuminosukeSato/tabml/dataset"
	"github.com/YuminosukeSato/tabml/pkg/errors"
	"github.com/YuminosukeSato/tabml/pkg/log"
)

func schemaOf(fields ...string) dataset.Schema {
	// "name:n" is numeric, "name:t" is text
	s := make(dataset.Schema, len(fields))
	for i, f := range fields {
		name, kind, _ := strings.Cut(f, ":")
		s[i] = dataset.Field{Name: name, Kind: dataset.Numeric}
		if kind == "t" {
			s[i].Kind = dataset.Text
		}
	}
	return s
}

func TestSelectTarget(t *testing.T) {
	tests := []struct {
		name      string
		schema    dataset.Schema
		requested string
		want      string
		wantRule  Rule
		wantCode  string
	}{
		{
			name:     "exact keyword beats everything",
			schema:   schemaOf("total_sales:n", "price:n", "TARGET:t", "z:n"),
			want:     "TARGET",
			wantRule: RuleKeyword,
		},
		{
			name:     "first keyword column in dataset order",
			schema:   schemaOf("a:n", "Class:t", "label:n"),
			want:     "Class",
			wantRule: RuleKeyword,
		},
		{
			name:     "substring before numeric fallback",
			schema:   schemaOf("id:n", "total_sales:n", "region:t"),
			want:     "total_sales",
			wantRule: RuleSubstring,
		},
		{
			name:     "substring keyword order decides",
			schema:   schemaOf("final_score:n", "unit_cost:n", "house_price:n"),
			want:     "house_price",
			wantRule: RuleSubstring,
		},
		{
			name:     "first column in order among one keyword's matches",
			schema:   schemaOf("Sales_2023:n", "sales_2024:n"),
			want:     "Sales_2023",
			wantRule: RuleSubstring,
		},
		{
			name:     "exact keyword is not a substring rule",
			schema:   schemaOf("targeted:t", "a:n", "b:n"),
			want:     "b",
			wantRule: RuleLastNumeric,
		},
		{
			name:     "last numeric column",
			schema:   schemaOf("a:t", "b:n", "c:n"),
			want:     "c",
			wantRule: RuleLastNumeric,
		},
		{
			name:     "last numeric skips trailing text",
			schema:   schemaOf("b:n", "c:n", "d:t"),
			want:     "c",
			wantRule: RuleLastNumeric,
		},
		{
			name:     "no numeric and no keyword",
			schema:   schemaOf("name:t", "city:t"),
			wantCode: errors.CodeNoTargetFound,
		},
		{
			name:     "empty schema",
			schema:   dataset.Schema{},
			wantCode: errors.CodeNoTargetFound,
		},
		{
			name:      "explicit name",
			schema:    schemaOf("a:n", "b:t"),
			requested: "b",
			want:      "b",
			wantRule:  RuleExplicit,
		},
		{
			name:      "explicit name is case-sensitive",
			schema:    schemaOf("Target:n"),
			requested: "target",
			wantCode:  errors.CodeColumnNotFound,
		},
		{
			name:      "bad explicit name is never rescued",
			schema:    schemaOf("target:n", "price:n"),
			requested: "missing",
			wantCode:  errors.CodeColumnNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, rule, err := selectTarget(tt.schema, tt.requested)
			if tt.wantCode != "" {
				if errors.Code(err) != tt.wantCode {
					t.Fatalf("expected %s, got %v", tt.wantCode, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want || rule != tt.wantRule {
				t.Errorf("selectTarget() = (%q, %s), want (%q, %s)", got, rule, tt.want, tt.wantRule)
			}

			public, err := SelectTarget(tt.schema, tt.requested)
			if err != nil || public != got {
				t.Errorf("SelectTarget() = (%q, %v), want %q", public, err, got)
			}
		})
	}
}

func TestSelectTargetColumnNotFoundNamesColumn(t *testing.T) {
	_, err := SelectTarget(schemaOf("a:n"), "price")
	var cnf *errors.ColumnNotFoundError
	if !errors.As(err, &cnf) {
		t.Fatalf("expected *ColumnNotFoundError, got %T", err)
	}
	if cnf.Column != "price" {
		t.Errorf("error should name the requested column, got %q", cnf.Column)
	}
}

func TestSelectTargetTargetAnyCase(t *testing.T) {
	for _, name := range []string{"target", "Target", "TARGET", "tArGeT"} {
		schema := schemaOf("price:n", name+":t", "revenue:n", "z:n")
		got, err := SelectTarget(schema, Auto)
		if err != nil || got != name {
			t.Errorf("SelectTarget with %q = (%q, %v)", name, got, err)
		}
	}
}

func TestCleanRows(t *testing.T) {
	nan := math.NaN()
	target := dataset.NewNumericColumn("y", []float64{1, nan, 3, nan, 5})
	features, err := dataset.New(dataset.NewTextColumn("f", []string{"a", "b", "", "d", "e"}))
	if err != nil {
		t.Fatal(err)
	}

	logger, _ := log.NewTestLogger(log.LevelInfo)
	cleaned, err := CleanRows(features, target, logger)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cleaned.Target.Len() != 3 || cleaned.Features.NumRows() != 3 {
		t.Fatalf("expected 3 samples, got target=%d features=%d", cleaned.Target.Len(), cleaned.Features.NumRows())
	}
	want := []float64{1, 3, 5}
	for i, v := range want {
		if cleaned.Target.Float(i) != v {
			t.Errorf("target[%d] = %v, want %v", i, cleaned.Target.Float(i), v)
		}
	}
	f, _ := cleaned.Features.Column("f")
	if got := f.Raw; got[0] != "a" || got[1] != "" || got[2] != "e" {
		t.Errorf("features not filtered identically: %v", got)
	}
	if !f.IsMissing(1) {
		t.Error("feature-side missing values must be kept for imputation")
	}
	if cleaned.Dropped != 2 {
		t.Errorf("Dropped = %d, want 2", cleaned.Dropped)
	}

	if !logger.ContainsField(log.DroppedRowsKey, 2.0) || !logger.ContainsField(log.SamplesKey, 3.0) {
		t.Error("expected removed-row and sample counts in the log")
	}
}

func TestCleanRowsAllMissing(t *testing.T) {
	target := dataset.NewTextColumn("y", []string{"", "NA", "null"})
	features, _ := dataset.New(dataset.NewNumericColumn("x", []float64{1, 2, 3}))

	_, err := CleanRows(features, target, nil)
	if errors.Code(err) != errors.CodeEmptyTrainingSet {
		t.Fatalf("expected EmptyTrainingSet, got %v", err)
	}
}

func TestCleanRowsLengthMismatch(t *testing.T) {
	target := dataset.NewNumericColumn("y", []float64{1, 2})
	features, _ := dataset.New(dataset.NewNumericColumn("x", []float64{1, 2, 3}))

	_, err := CleanRows(features, target, nil)
	if errors.Code(err) != errors.CodeDimensionMismatch {
		t.Fatalf("expected DimensionError, got %v", err)
	}
}

func TestClassifyProblem(t *testing.T) {
	seq := make([]float64, 1000)
	for i := range seq {
		seq[i] = float64(i)
	}
	eleven := make([]float64, 11)
	for i := range eleven {
		eleven[i] = float64(i)
	}

	tests := []struct {
		name      string
		target    *dataset.Column
		threshold int
		want      ProblemType
	}{
		{"few distinct numeric", dataset.NewNumericColumn("y", []float64{1, 2, 1, 2, 3}), 0, Classification},
		{"all distinct numeric", dataset.NewNumericColumn("y", seq), 0, Regression},
		{"text", dataset.NewTextColumn("y", []string{"cat", "dog", "cat"}), 0, Classification},
		{"exactly ten distinct", dataset.NewNumericColumn("y", eleven[:10]), 0, Classification},
		{"eleven distinct", dataset.NewNumericColumn("y", eleven), 0, Regression},
		{"custom threshold", dataset.NewNumericColumn("y", eleven), 20, Classification},
		{"missing values are not distinct values", dataset.NewNumericColumn("y", []float64{1, math.NaN(), 2}), 1, Regression},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClassifyProblem(tt.target, tt.threshold); got != tt.want {
				t.Errorf("ClassifyProblem() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestInterpret(t *testing.T) {
	var b strings.Builder
	b.WriteString("id,region,total_sales\n")
	for i := 0; i < 30; i++ {
		sales := strconv.Itoa(100 + i*7)
		if i%10 == 3 {
			sales = ""
		}
		b.WriteString(strconv.Itoa(i) + ",r" + strconv.Itoa(i%3) + "," + sales + "\n")
	}
	ds, err := dataset.ReadCSV(strings.NewReader(b.String()))
	if err != nil {
		t.Fatal(err)
	}

	logger, _ := log.NewTestLogger(log.LevelDebug)
	res, err := New(logger).Interpret(ds, Auto)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if res.Target != "total_sales" || res.Rule != RuleSubstring {
		t.Errorf("target = %q (%s)", res.Target, res.Rule)
	}
	if res.Problem != Regression {
		t.Errorf("problem = %s, want regression", res.Problem)
	}
	if res.Dropped != 3 || res.X.NumRows() != 27 || res.Y.Len() != 27 {
		t.Errorf("unexpected cleaned shape: dropped=%d X=%d y=%d", res.Dropped, res.X.NumRows(), res.Y.Len())
	}
	if strings.Join(res.Features, ",") != "id,region" {
		t.Errorf("features = %v", res.Features)
	}
	if !logger.ContainsField(log.TargetRuleKey, "substring") {
		t.Error("expected the selection rule in the log")
	}

	strict := New(nil, WithClassificationThreshold(100))
	res, err = strict.Interpret(ds, "total_sales")
	if err != nil {
		t.Fatal(err)
	}
	if res.Problem != Classification || res.Rule != RuleExplicit {
		t.Errorf("got %s via %s with threshold 100", res.Problem, res.Rule)
	}
}

func TestInterpretEmptyTrainingSet(t *testing.T) {
	ds, err := dataset.ReadCSV(strings.NewReader("x,target\n1,\n2,\n"))
	if err != nil {
		t.Fatal(err)
	}
	_, err = New(nil).Interpret(ds, Auto)
	if errors.Code(err) != errors.CodeEmptyTrainingSet {
		t.Fatalf("expected EmptyTrainingSet, got %v", err)
	}
}
