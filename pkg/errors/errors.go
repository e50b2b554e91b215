// Package errors はtabml全体のエラーハンドリングと警告システムを提供します。
// scikit-learnの警告・例外システムにインスパイアされており、構造化されたエラー情報を提供します。
// 全てのエラーはcockroachdb/errorsでスタックトレースが付与され、コマンド境界で
// 構造化ペイロードとして呼び出し元に返されます。
package errors

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
)

// ===========================================================================
//
//	警告ハンドリング
//
// ===========================================================================

// Warner は警告の出力先です。log.Logger はこのインターフェースを満たします。
type Warner interface {
	Warn(msg string, fields ...any)
}

// Warn は警告を出力先に書き出します。
// 警告はグローバルな状態を持たず、呼び出し元が渡したハンドルにのみ流れます。
// sinkがnilの場合は何もしません。
func Warn(sink Warner, w error) {
	if sink == nil || w == nil {
		return
	}
	sink.Warn(w.Error(), "warning.type", warningType(w))
}

func warningType(w error) string {
	switch w.(type) {
	case *DataConversionWarning:
		return "DataConversionWarning"
	case *UndefinedMetricWarning:
		return "UndefinedMetricWarning"
	default:
		return "Warning"
	}
}

// ===========================================================================
//
//	scikit-learn互換の警告型
//
// ===========================================================================

// DataConversionWarning はデータの型が暗黙的に変換された場合に発生する警告です。
type DataConversionWarning struct {
	Column   string
	FromType string
	ToType   string
	Reason   string
}

func (w *DataConversionWarning) Error() string {
	if w.Column != "" {
		return fmt.Sprintf("column '%s' converted from %s to %s. Reason: %s", w.Column, w.FromType, w.ToType, w.Reason)
	}
	return fmt.Sprintf("data converted from %s to %s. Reason: %s", w.FromType, w.ToType, w.Reason)
}

// MarshalZerologObject はzerologのイベントに構造化された警告情報を追加します。
func (w *DataConversionWarning) MarshalZerologObject(e *zerolog.Event) {
	e.Str("column", w.Column).
		Str("from_type", w.FromType).
		Str("to_type", w.ToType).
		Str("reason", w.Reason).
		Str("type", "DataConversionWarning")
}

// NewDataConversionWarning は新しいDataConversionWarningを作成します。
func NewDataConversionWarning(column, from, to, reason string) *DataConversionWarning {
	return &DataConversionWarning{Column: column, FromType: from, ToType: to, Reason: reason}
}

// UndefinedMetricWarning は評価指標が計算できない場合に発生する警告です。
// 例えば、適合率(precision)を計算する際に、あるクラスの予測が一つもなかった場合など。
type UndefinedMetricWarning struct {
	Metric    string
	Condition string
	Result    float64 // この条件で返される値
}

func (w *UndefinedMetricWarning) Error() string {
	return fmt.Sprintf("'%s' is ill-defined and being set to %f due to %s.", w.Metric, w.Result, w.Condition)
}

// NewUndefinedMetricWarning は新しいUndefinedMetricWarningを作成します。
func NewUndefinedMetricWarning(metric, condition string, result float64) *UndefinedMetricWarning {
	return &UndefinedMetricWarning{Metric: metric, Condition: condition, Result: result}
}

// ===========================================================================
//
//	データセット解釈のエラー型
//
// ===========================================================================

// ColumnNotFoundError は明示的に指定されたカラムがデータセットに存在しない場合のエラーです。
type ColumnNotFoundError struct {
	Column    string
	Available []string
}

func (e *ColumnNotFoundError) Error() string {
	return fmt.Sprintf("tabml: column '%s' not found in dataset (available: %s)", e.Column, strings.Join(e.Available, ", "))
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *ColumnNotFoundError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("column", e.Column).
		Strs("available", e.Available).
		Str("type", "ColumnNotFoundError")
}

// NewColumnNotFoundError は新しいColumnNotFoundErrorを作成し、スタックトレースを付与します。
func NewColumnNotFoundError(column string, available []string) error {
	return errors.WithStack(&ColumnNotFoundError{Column: column, Available: available})
}

// NoTargetFoundError はターゲットカラムの自動選択が全てのルールで失敗した場合のエラーです。
type NoTargetFoundError struct {
	Columns []string
}

func (e *NoTargetFoundError) Error() string {
	return fmt.Sprintf("tabml: could not automatically identify a suitable target column among [%s]", strings.Join(e.Columns, ", "))
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *NoTargetFoundError) MarshalZerologObject(event *zerolog.Event) {
	event.Strs("columns", e.Columns).
		Str("type", "NoTargetFoundError")
}

// NewNoTargetFoundError は新しいNoTargetFoundErrorを作成し、スタックトレースを付与します。
func NewNoTargetFoundError(columns []string) error {
	return errors.WithStack(&NoTargetFoundError{Columns: columns})
}

// EmptyTrainingSetError はターゲット欠損行を除去した結果、学習に使える行が残らない場合のエラーです。
type EmptyTrainingSetError struct {
	Target  string
	Dropped int
}

func (e *EmptyTrainingSetError) Error() string {
	return fmt.Sprintf("tabml: no usable rows left after removing %d rows with missing target '%s'", e.Dropped, e.Target)
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *EmptyTrainingSetError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("target", e.Target).
		Int("dropped", e.Dropped).
		Str("type", "EmptyTrainingSetError")
}

// NewEmptyTrainingSetError は新しいEmptyTrainingSetErrorを作成し、スタックトレースを付与します。
func NewEmptyTrainingSetError(target string, dropped int) error {
	return errors.WithStack(&EmptyTrainingSetError{Target: target, Dropped: dropped})
}

// ===========================================================================
//
//	コマンド境界のエラー型
//
// ===========================================================================

// UnsupportedChartKindError はサポートされていないグラフ種別が指定された場合のエラーです。
type UnsupportedChartKindError struct {
	Kind      string
	Supported []string
}

func (e *UnsupportedChartKindError) Error() string {
	return fmt.Sprintf("tabml: unsupported graph type: %s (supported: %s)", e.Kind, strings.Join(e.Supported, ", "))
}

// NewUnsupportedChartKindError は新しいUnsupportedChartKindErrorを作成し、スタックトレースを付与します。
func NewUnsupportedChartKindError(kind string, supported []string) error {
	return errors.WithStack(&UnsupportedChartKindError{Kind: kind, Supported: supported})
}

// FileNotFoundError は入力ファイルが存在しない場合のエラーです。
type FileNotFoundError struct {
	Path string
}

func (e *FileNotFoundError) Error() string {
	return fmt.Sprintf("tabml: input file '%s' does not exist", e.Path)
}

// NewFileNotFoundError は新しいFileNotFoundErrorを作成し、スタックトレースを付与します。
func NewFileNotFoundError(path string) error {
	return errors.WithStack(&FileNotFoundError{Path: path})
}

// InvalidArgumentCountError は位置引数の数が不正な場合のエラーです。
type InvalidArgumentCountError struct {
	Command string
	Usage   string
	Min     int
	Max     int
	Got     int
}

func (e *InvalidArgumentCountError) Error() string {
	want := fmt.Sprintf("%d", e.Min)
	if e.Max != e.Min {
		want = fmt.Sprintf("%d to %d", e.Min, e.Max)
	}
	return fmt.Sprintf("tabml: %s expects %s arguments, got %d. Usage: %s", e.Command, want, e.Got, e.Usage)
}

// NewInvalidArgumentCountError は新しいInvalidArgumentCountErrorを作成し、スタックトレースを付与します。
func NewInvalidArgumentCountError(command, usage string, minArgs, maxArgs, got int) error {
	return errors.WithStack(&InvalidArgumentCountError{Command: command, Usage: usage, Min: minArgs, Max: maxArgs, Got: got})
}

// UnexpectedFailure は下位レイヤー（I/O、ライブラリ）のエラーを包むキャッチオール型です。
type UnexpectedFailure struct {
	Op  string
	Err error
}

func (e *UnexpectedFailure) Error() string {
	return fmt.Sprintf("tabml: %s: %v", e.Op, e.Err)
}

func (e *UnexpectedFailure) Unwrap() error {
	return e.Err
}

// NewUnexpectedFailure は既存のエラーをUnexpectedFailureで包み、スタックトレースを付与します。
// errがnilの場合はnilを返します。
func NewUnexpectedFailure(op string, err error) error {
	if err == nil {
		return nil
	}
	return errors.WithStack(&UnexpectedFailure{Op: op, Err: err})
}

// ===========================================================================
//
//	構造化されたエラー型
//
// ===========================================================================

// NotFittedError はモデルが未学習の状態で `Predict` や `Transform` を呼び出した場合のエラーです。
type NotFittedError struct {
	ModelName string
	Method    string
}

func (e *NotFittedError) Error() string {
	return fmt.Sprintf("tabml: %s: this model is not fitted yet. Call Fit() before using %s()", e.ModelName, e.Method)
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *NotFittedError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("model_name", e.ModelName).
		Str("method", e.Method).
		Str("type", "NotFittedError")
}

// NewNotFittedError は新しいNotFittedErrorを作成し、スタックトレースを付与します。
func NewNotFittedError(modelName, method string) error {
	return errors.WithStack(&NotFittedError{ModelName: modelName, Method: method})
}

// DimensionError は入力データの次元が期待値と異なる場合のエラーです。
type DimensionError struct {
	Op       string
	Expected int
	Got      int
	Axis     int // 0 for rows, 1 for columns/features
}

func (e *DimensionError) Error() string {
	return fmt.Sprintf("tabml: %s: dimension mismatch on axis %d (%s). Expected %d, got %d", e.Op, e.Axis, axisName(e.Axis), e.Expected, e.Got)
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *DimensionError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("operation", e.Op).
		Int("expected", e.Expected).
		Int("got", e.Got).
		Int("axis", e.Axis).
		Str("axis_name", axisName(e.Axis)).
		Str("type", "DimensionError")
}

func axisName(axis int) string {
	if axis == 0 {
		return "rows"
	}
	return "features"
}

// NewDimensionError は新しいDimensionErrorを作成し、スタックトレースを付与します。
func NewDimensionError(op string, expected, got, axis int) error {
	return errors.WithStack(&DimensionError{Op: op, Expected: expected, Got: got, Axis: axis})
}

// ValueError は引数の値が不適切または不正な場合に発生するエラーです。
type ValueError struct {
	Op      string
	Message string
}

func (e *ValueError) Error() string {
	return fmt.Sprintf("tabml: %s: %s", e.Op, e.Message)
}

// NewValueError は新しいValueErrorを作成し、スタックトレースを付与します。
func NewValueError(op, message string) error {
	return errors.WithStack(&ValueError{Op: op, Message: message})
}

// ModelError は機械学習モデルに関する一般的なエラーです。
type ModelError struct {
	Op   string
	Kind string
	Err  error
}

func (e *ModelError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("tabml: %s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("tabml: %s: %s", e.Op, e.Kind)
}

func (e *ModelError) Unwrap() error {
	return e.Err
}

// NewModelError は新しいModelErrorを作成し、スタックトレースを付与します。
func NewModelError(op, kind string, err error) error {
	return errors.WithStack(&ModelError{Op: op, Kind: kind, Err: err})
}

// ===========================================================================
//
//	エラーコード
//
// ===========================================================================

// 構造化ペイロードとログで使われる安定したエラーコード。
const (
	CodeColumnNotFound       = "COLUMN_NOT_FOUND"
	CodeNoTargetFound        = "NO_TARGET_FOUND"
	CodeEmptyTrainingSet     = "EMPTY_TRAINING_SET"
	CodeUnsupportedChartKind = "UNSUPPORTED_CHART_KIND"
	CodeFileNotFound         = "FILE_NOT_FOUND"
	CodeInvalidArgumentCount = "INVALID_ARGUMENT_COUNT"
	CodeNotFitted            = "NOT_FITTED"
	CodeDimensionMismatch    = "DIMENSION_MISMATCH"
	CodeInvalidInput         = "INVALID_INPUT"
	CodePanic                = "PANIC"
	CodeUnexpectedFailure    = "UNEXPECTED_FAILURE"
)

// Code はエラーチェーンを辿り、最初に見つかった既知のエラー型のコードを返します。
// 既知の型が見つからない場合はCodeUnexpectedFailureを返します。
func Code(err error) string {
	var (
		colErr   *ColumnNotFoundError
		noTarget *NoTargetFoundError
		empty    *EmptyTrainingSetError
		chart    *UnsupportedChartKindError
		notFound *FileNotFoundError
		argc     *InvalidArgumentCountError
		fitted   *NotFittedError
		dim      *DimensionError
		value    *ValueError
		panicErr *PanicError
	)
	switch {
	case err == nil:
		return ""
	case As(err, &colErr):
		return CodeColumnNotFound
	case As(err, &noTarget):
		return CodeNoTargetFound
	case As(err, &empty):
		return CodeEmptyTrainingSet
	case As(err, &chart):
		return CodeUnsupportedChartKind
	case As(err, &notFound):
		return CodeFileNotFound
	case As(err, &argc):
		return CodeInvalidArgumentCount
	case As(err, &fitted):
		return CodeNotFitted
	case As(err, &dim):
		return CodeDimensionMismatch
	case As(err, &value):
		return CodeInvalidInput
	case As(err, &panicErr):
		return CodePanic
	default:
		return CodeUnexpectedFailure
	}
}

// ===========================================================================
//
//	cockroachdb/errors ラッパー関数
//
// ===========================================================================

// Is はエラーが特定のターゲットエラーかどうかを判定します。
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As はエラーが特定の型にキャスト可能かどうかを判定します。
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// Wrap は既存のエラーをメッセージ付きでラップします。
func Wrap(err error, message string) error {
	return errors.Wrap(err, message)
}

// Wrapf は既存のエラーをフォーマット文字列でラップします。
func Wrapf(err error, format string, args ...interface{}) error {
	return errors.Wrapf(err, format, args...)
}

// New は新しいエラーを作成します。
func New(message string) error {
	return errors.New(message)
}

// Newf は新しいフォーマット済みエラーを作成します。
func Newf(format string, args ...interface{}) error {
	return errors.Newf(format, args...)
}

// WithStack はエラーにスタックトレースを付与します。
func WithStack(err error) error {
	return errors.WithStack(err)
}

// Detail はスタックトレースを含むエラーの詳細表現を返します。
// 予測失敗時のtracebackフィールドに使われます。
func Detail(err error) string {
	if err == nil {
		return ""
	}
	return fmt.Sprintf("%+v", err)
}

// ===========================================================================
//
//	共通エラー変数
//
// ===========================================================================

var (
	// ErrEmptyData は空のデータが渡された場合のエラーです。
	ErrEmptyData = New("empty data")
)
