// Package interpreter turns a raw dataset into a supervised learning task:
// it picks the target column, drops rows whose target is missing and decides
// between regression and classification.
//
// The flow is SelectTarget -> CleanRows -> ClassifyProblem; Interpreter.Interpret
// runs all three and logs each decision through the logger it was given.
package interpreter

import (
	"strings"

	"github.com/YuminosukeSato/tabml/dataset"
	"github.com/YuminosukeSato/tabml/pkg/errors"
	"github.com/YuminosukeSato/tabml/pkg/log"
)

// ProblemType is the kind of supervised task.
type ProblemType string

const (
	Regression     ProblemType = "regression"
	Classification ProblemType = "classification"
)

// Auto requests heuristic target selection.
const Auto = ""

// DefaultClassificationThreshold is the largest distinct-value count of a
// numeric target that is still treated as classification.
const DefaultClassificationThreshold = 10

// Rule names the selection rule that produced a target column.
type Rule string

const (
	RuleExplicit    Rule = "explicit"
	RuleKeyword     Rule = "keyword"
	RuleSubstring   Rule = "substring"
	RuleLastNumeric Rule = "last_numeric"
)

var (
	// targetKeywords match a whole column name, case-insensitively.
	targetKeywords = []string{"target", "label", "output", "prediction", "class"}
	// substringKeywords are tried in order; the first with any match wins.
	substringKeywords = []string{"price", "cost", "revenue", "sales", "total", "final"}
)

// SelectTarget picks the target column from schema.
//
// A non-empty requested name must exist exactly (case-sensitive), otherwise
// the result is a ColumnNotFoundError; auto-selectable columns never replace
// a bad explicit name. With Auto the rules are, first match wins:
// an exact keyword name, then a keyword substring, then the last numeric
// column. When nothing matches the result is a NoTargetFoundError.
func SelectTarget(schema dataset.Schema, requested string) (string, error) {
	name, _, err := selectTarget(schema, requested)
	return name, err
}

func selectTarget(schema dataset.Schema, requested string) (string, Rule, error) {
	if requested != Auto {
		if _, ok := schema.Lookup(requested); ok {
			return requested, RuleExplicit, nil
		}
		return "", "", errors.NewColumnNotFoundError(requested, schema.Names())
	}

	lower := make([]string, len(schema))
	for i, f := range schema {
		lower[i] = strings.ToLower(f.Name)
	}

	for i, name := range lower {
		for _, kw := range targetKeywords {
			if name == kw {
				return schema[i].Name, RuleKeyword, nil
			}
		}
	}

	for _, kw := range substringKeywords {
		for i, name := range lower {
			if strings.Contains(name, kw) {
				return schema[i].Name, RuleSubstring, nil
			}
		}
	}

	for i := len(schema) - 1; i >= 0; i-- {
		if schema[i].Kind == dataset.Numeric {
			return schema[i].Name, RuleLastNumeric, nil
		}
	}

	return "", "", errors.NewNoTargetFoundError(schema.Names())
}

// Cleaned is the row-filtered training set.
type Cleaned struct {
	Features *dataset.Dataset
	Target   *dataset.Column
	// Dropped counts rows removed because the target was missing.
	Dropped int
}

// CleanRows keeps the rows whose target is present, in their original order,
// and filters the features identically. Missing feature values are kept for
// imputation. When no row survives the result is an EmptyTrainingSetError.
func CleanRows(features *dataset.Dataset, target *dataset.Column, logger log.Logger) (*Cleaned, error) {
	logger = log.OrNop(logger)
	if features.NumRows() != target.Len() {
		return nil, errors.NewDimensionError("CleanRows", target.Len(), features.NumRows(), 0)
	}

	keep := make([]int, 0, target.Len())
	for i := 0; i < target.Len(); i++ {
		if !target.IsMissing(i) {
			keep = append(keep, i)
		}
	}
	dropped := target.Len() - len(keep)

	logger.Info("Rows with missing target removed",
		log.TargetKey, target.Name,
		log.DroppedRowsKey, dropped,
		log.SamplesKey, len(keep),
	)

	if len(keep) == 0 {
		return nil, errors.NewEmptyTrainingSetError(target.Name, dropped)
	}

	return &Cleaned{
		Features: features.Take(keep),
		Target:   target.Take(keep),
		Dropped:  dropped,
	}, nil
}

// ClassifyProblem returns Classification for a text target or for a target
// with at most threshold distinct non-missing values, and Regression
// otherwise. A threshold <= 0 means DefaultClassificationThreshold.
//
// A numeric rating column such as 1..10 is therefore classification.
func ClassifyProblem(target *dataset.Column, threshold int) ProblemType {
	if threshold <= 0 {
		threshold = DefaultClassificationThreshold
	}
	if target.Kind != dataset.Numeric || target.Distinct() <= threshold {
		return Classification
	}
	return Regression
}

// Result is the interpreted training task.
type Result struct {
	Target   string
	Rule     Rule
	Features []string
	X        *dataset.Dataset
	Y        *dataset.Column
	Problem  ProblemType
	Dropped  int
}

// Interpreter runs target selection, row cleaning and problem detection.
type Interpreter struct {
	threshold int
	logger    log.Logger
}

// Option configures an Interpreter.
type Option func(*Interpreter)

// WithClassificationThreshold overrides DefaultClassificationThreshold.
func WithClassificationThreshold(n int) Option {
	return func(in *Interpreter) { in.threshold = n }
}

// New returns an Interpreter logging to logger (nil discards).
func New(logger log.Logger, opts ...Option) *Interpreter {
	in := &Interpreter{
		threshold: DefaultClassificationThreshold,
		logger:    log.OrNop(logger).With(log.ComponentKey, "interpreter"),
	}
	for _, o := range opts {
		o(in)
	}
	return in
}

// Interpret splits ds into features and target for requested (Auto for heuristics).
func (in *Interpreter) Interpret(ds *dataset.Dataset, requested string) (*Result, error) {
	target, rule, err := selectTarget(ds.Schema(), requested)
	if err != nil {
		in.logger.Debug("Target selection failed", log.ColumnsKey, ds.Names())
		return nil, err
	}
	in.logger.Info("Target column selected",
		log.OperationKey, log.OperationInterpret,
		log.TargetKey, target,
		log.TargetRuleKey, string(rule),
	)

	col, _ := ds.Column(target)
	cleaned, err := CleanRows(ds.Drop(target), col, in.logger)
	if err != nil {
		return nil, err
	}

	problem := ClassifyProblem(cleaned.Target, in.threshold)
	in.logger.Info("Problem type detected",
		log.ProblemTypeKey, string(problem),
		log.DistinctValuesKey, cleaned.Target.Distinct(),
	)

	return &Result{
		Target:   target,
		Rule:     rule,
		Features: cleaned.Features.Names(),
		X:        cleaned.Features,
		Y:        cleaned.Target,
		Problem:  problem,
		Dropped:  cleaned.Dropped,
	}, nil
}
