package trainer

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/YuminosukeSato/tabml/interpreter"
	"github.com/YuminosukeSato/tabml/metrics"
	"github.com/YuminosukeSato/tabml/pkg/errors"
	"github.com/YuminosukeSato/tabml/sklearn/model_selection"
)

// Metrics は評価指標。回帰ならmse/rmse/mae/r2、分類ならaccuracyとレポートが入る。
type Metrics struct {
	*metrics.RegressionScores

	Accuracy        *float64                  `json:"accuracy,omitempty"`
	Report          *metrics.Report           `json:"classification_report,omitempty"`
	CrossValidation *model_selection.CVResult `json:"cross_validation,omitempty"`
}

// Metadata is the JSON sidecar written next to every model.
type Metadata struct {
	ModelID            string                  `json:"model_id"`
	TargetColumn       string                  `json:"target_column"`
	ProblemType        interpreter.ProblemType `json:"problem_type"`
	Features           []string                `json:"features"`
	Metrics            *Metrics                `json:"metrics"`
	TrainingDuration   string                  `json:"training_duration"`
	Timestamp          string                  `json:"timestamp"`
	NSamples           int                     `json:"n_samples"`
	DroppedRows        int                     `json:"dropped_rows"`
	OriginalFilename   string                  `json:"original_filename,omitempty"`
	FeatureImportances map[string]float64      `json:"feature_importances,omitempty"`
}

func stem(modelPath string) string {
	return strings.TrimSuffix(modelPath, filepath.Ext(modelPath))
}

// MetadataPath returns "<model path without extension>_metadata.json".
func MetadataPath(modelPath string) string { return stem(modelPath) + "_metadata.json" }

// CSVPath returns "<model path without extension>.csv".
func CSVPath(modelPath string) string { return stem(modelPath) + ".csv" }

// checkOutput rejects model paths whose sidecar files would collide with
// the model itself or overwrite the input.
func checkOutput(input, output string) error {
	if output == "" {
		return errors.NewValueError("trainer.Run", "model path is empty")
	}
	if strings.EqualFold(filepath.Ext(output), ".csv") {
		return errors.NewValueError("trainer.Run",
			"model path '"+output+"' must not end in .csv: the training data copy is written to "+CSVPath(output))
	}
	if filepath.Clean(output) == filepath.Clean(input) {
		return errors.NewValueError("trainer.Run", "model path '"+output+"' is the input file")
	}
	return nil
}

// ReadMetadata loads the sidecar of modelPath.
func ReadMetadata(modelPath string) (*Metadata, error) {
	path := MetadataPath(modelPath)
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewFileNotFoundError(path)
		}
		return nil, errors.NewUnexpectedFailure("read metadata", err)
	}
	var m Metadata
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, errors.NewUnexpectedFailure("decode metadata", err)
	}
	return &m, nil
}

// artifacts は1回の学習の出力を一時ファイルに書き溜め、全部そろってから置き換える
type artifacts struct {
	staged []staged
}

type staged struct {
	tmp, path string
	backup    string // 置き換え前のファイルの退避先
}

// stage writes path's content to a temporary file in the same directory.
// Nothing at path changes until commit.
func (a *artifacts) stage(path string, fn func(w io.Writer) error) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return errors.NewUnexpectedFailure("create "+filepath.Base(path), err)
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	if err = fn(tmp); err != nil {
		return err
	}
	if err = tmp.Close(); err != nil {
		return errors.NewUnexpectedFailure("close "+filepath.Base(path), err)
	}
	a.staged = append(a.staged, staged{tmp: tmp.Name(), path: path})
	return nil
}

// commit renames every staged file into place. Existing files are moved
// aside first; if any rename fails, the files of earlier runs are restored.
func (a *artifacts) commit() error {
	for _, s := range a.staged {
		if info, err := os.Lstat(s.path); err == nil && info.IsDir() {
			a.discard()
			return errors.NewUnexpectedFailure("replace "+filepath.Base(s.path),
				errors.New(s.path+" is a directory"))
		}
	}
	for i := range a.staged {
		s := &a.staged[i]
		if _, err := os.Lstat(s.path); err == nil {
			s.backup = s.tmp + ".prev"
			if err := os.Rename(s.path, s.backup); err != nil {
				s.backup = ""
				a.restore(i)
				return errors.NewUnexpectedFailure("replace "+filepath.Base(s.path), err)
			}
		}
		if err := os.Rename(s.tmp, s.path); err != nil {
			a.restore(i + 1)
			return errors.NewUnexpectedFailure("rename "+filepath.Base(s.path), err)
		}
	}
	for _, s := range a.staged {
		if s.backup != "" {
			_ = os.Remove(s.backup)
		}
	}
	a.staged = nil
	return nil
}

// restore undoes the first n renames of commit and drops every temp file.
func (a *artifacts) restore(n int) {
	for i, s := range a.staged {
		if i < n {
			_ = os.Remove(s.path)
		}
		if s.backup != "" {
			_ = os.Rename(s.backup, s.path)
		}
	}
	a.discard()
}

// discard removes temp files that were never committed.
func (a *artifacts) discard() {
	for _, s := range a.staged {
		_ = os.Remove(s.tmp)
	}
	a.staged = nil
}

func writeJSON(v any) func(w io.Writer) error {
	return func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(v); err != nil {
			return errors.NewUnexpectedFailure("encode metadata", err)
		}
		return nil
	}
}
