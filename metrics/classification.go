package metrics

import (
	"math"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/tabml/pkg/errors"
)

// Accuracy は正解率を計算する。ラベルは同じ値かどうかだけで比較する。
func Accuracy(yTrue, yPred mat.Vector) (float64, error) {
	n, err := checkPair("Accuracy", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	correct := 0
	for i := 0; i < n; i++ {
		if yTrue.AtVec(i) == yPred.AtVec(i) {
			correct++
		}
	}
	return float64(correct) / float64(n), nil
}

// ConfusionMatrix は nClasses × nClasses の混同行列を返す。
// 行が真のクラス、列が予測クラスで、ラベルは 0..nClasses-1 の整数で表す。
func ConfusionMatrix(yTrue, yPred mat.Vector, nClasses int) (*mat.Dense, error) {
	n, err := checkPair("ConfusionMatrix", yTrue, yPred)
	if err != nil {
		return nil, err
	}
	if nClasses < 1 {
		return nil, errors.NewValueError("ConfusionMatrix", "nClasses must be positive")
	}
	cm := mat.NewDense(nClasses, nClasses, nil)
	for i := 0; i < n; i++ {
		t, err := classIndex("ConfusionMatrix", yTrue.AtVec(i), nClasses)
		if err != nil {
			return nil, err
		}
		p, err := classIndex("ConfusionMatrix", yPred.AtVec(i), nClasses)
		if err != nil {
			return nil, err
		}
		cm.Set(t, p, cm.At(t, p)+1)
	}
	return cm, nil
}

func classIndex(op string, v float64, nClasses int) (int, error) {
	k := int(v)
	if float64(k) != v || k < 0 || k >= nClasses {
		return 0, errors.NewValueError(op, "labels must be class indices in [0, nClasses)")
	}
	return k, nil
}

// ClassScores は1クラス分（または平均）の指標
type ClassScores struct {
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1-score"`
	Support   int     `json:"support"`
}

// Report は sklearn.metrics.classification_report(output_dict=True) に相当する
type Report struct {
	Classes     map[string]ClassScores `json:"classes"`
	Accuracy    float64                `json:"accuracy"`
	MacroAvg    ClassScores            `json:"macro avg"`
	WeightedAvg ClassScores            `json:"weighted avg"`
}

// ClassificationReport computes per-class precision, recall and F1 plus
// their macro and support-weighted averages. yTrue and yPred hold class
// indices into labels.
//
// A class that is never predicted has undefined precision, and a class with
// no true samples has undefined recall. Both are reported as 0 and an
// UndefinedMetricWarning is sent to warn.
func ClassificationReport(yTrue, yPred mat.Vector, labels []string, warn errors.Warner) (*Report, error) {
	cm, err := ConfusionMatrix(yTrue, yPred, len(labels))
	if err != nil {
		return nil, err
	}
	n := yTrue.Len()
	k := len(labels)

	report := &Report{Classes: make(map[string]ClassScores, k)}
	var noPredicted, noTrue []string
	correct := 0.0
	for c := 0; c < k; c++ {
		tp := cm.At(c, c)
		correct += tp
		predicted := mat.Sum(cm.ColView(c))
		actual := mat.Sum(cm.RowView(c))

		s := ClassScores{Support: int(actual)}
		if predicted > 0 {
			s.Precision = tp / predicted
		} else {
			noPredicted = append(noPredicted, labels[c])
		}
		if actual > 0 {
			s.Recall = tp / actual
		} else {
			noTrue = append(noTrue, labels[c])
		}
		s.F1 = f1(s.Precision, s.Recall)
		report.Classes[labels[c]] = s

		report.MacroAvg.Precision += s.Precision / float64(k)
		report.MacroAvg.Recall += s.Recall / float64(k)
		report.MacroAvg.F1 += s.F1 / float64(k)

		w := actual / float64(n)
		report.WeightedAvg.Precision += s.Precision * w
		report.WeightedAvg.Recall += s.Recall * w
		report.WeightedAvg.F1 += s.F1 * w
	}
	report.MacroAvg.Support = n
	report.WeightedAvg.Support = n
	report.Accuracy = correct / float64(n)

	if len(noPredicted) > 0 {
		errors.Warn(warn, errors.NewUndefinedMetricWarning("precision",
			"no predicted samples for labels "+quoteList(noPredicted), 0))
	}
	if len(noTrue) > 0 {
		errors.Warn(warn, errors.NewUndefinedMetricWarning("recall",
			"no true samples for labels "+quoteList(noTrue), 0))
	}
	return report, nil
}

func f1(p, r float64) float64 {
	if p+r == 0 || math.IsNaN(p+r) {
		return 0
	}
	return 2 * p * r / (p + r)
}

func quoteList(items []string) string {
	return "['" + strings.Join(items, "', '") + "']"
}
