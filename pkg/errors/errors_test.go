package errors

import (
	"fmt"
	"strings"
	"testing"
)

func TestNewModelError(t *testing.T) {
	tests := []struct {
		name    string
		op      string
		kind    string
		err     error
		wantMsg string
	}{
		{
			name:    "with original error",
			op:      "Fit",
			kind:    "invalid input",
			err:     fmt.Errorf("test error"),
			wantMsg: "tabml: Fit: invalid input: test error",
		},
		{
			name:    "without original error",
			op:      "Predict",
			kind:    "not fitted",
			err:     nil,
			wantMsg: "tabml: Predict: not fitted",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewModelError(tt.op, tt.kind, tt.err)

			if err.Error() != tt.wantMsg {
				t.Errorf("Error() = %v, want %v", err.Error(), tt.wantMsg)
			}

			// スタックトレースの存在確認
			formatted := fmt.Sprintf("%+v", err)
			if !strings.Contains(formatted, "errors_test.go") {
				t.Error("Expected stack trace to contain test file name")
			}

			var modelErr *ModelError
			if !As(err, &modelErr) {
				t.Error("Error should be castable to *ModelError")
			}
		})
	}
}

func TestNewDimensionError(t *testing.T) {
	err := NewDimensionError("Predict", 10, 3, 1)

	want := "tabml: Predict: dimension mismatch on axis 1 (features). Expected 10, got 3"
	if err.Error() != want {
		t.Errorf("Error() = %v, want %v", err.Error(), want)
	}

	var dimErr *DimensionError
	if !As(err, &dimErr) {
		t.Error("Error should be castable to *DimensionError")
	}
}

func TestDomainErrorMessages(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "column not found",
			err:  NewColumnNotFoundError("price", []string{"a", "b"}),
			want: "tabml: column 'price' not found in dataset (available: a, b)",
		},
		{
			name: "no target found",
			err:  NewNoTargetFoundError([]string{"name", "city"}),
			want: "tabml: could not automatically identify a suitable target column among [name, city]",
		},
		{
			name: "empty training set",
			err:  NewEmptyTrainingSetError("y", 4),
			want: "tabml: no usable rows left after removing 4 rows with missing target 'y'",
		},
		{
			name: "unsupported chart kind",
			err:  NewUnsupportedChartKindError("pie", []string{"line", "bar", "scatter"}),
			want: "tabml: unsupported graph type: pie (supported: line, bar, scatter)",
		},
		{
			name: "file not found",
			err:  NewFileNotFoundError("data.csv"),
			want: "tabml: input file 'data.csv' does not exist",
		},
		{
			name: "argument count range",
			err:  NewInvalidArgumentCountError("train", "tabml train <input> <output> [target]", 2, 3, 1),
			want: "tabml: train expects 2 to 3 arguments, got 1. Usage: tabml train <input> <output> [target]",
		},
		{
			name: "argument count exact",
			err:  NewInvalidArgumentCountError("predict", "tabml predict <model> <input>", 2, 2, 0),
			want: "tabml: predict expects 2 arguments, got 0. Usage: tabml predict <model> <input>",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"column not found", NewColumnNotFoundError("x", nil), CodeColumnNotFound},
		{"no target", NewNoTargetFoundError(nil), CodeNoTargetFound},
		{"empty", NewEmptyTrainingSetError("y", 1), CodeEmptyTrainingSet},
		{"chart", NewUnsupportedChartKindError("pie", nil), CodeUnsupportedChartKind},
		{"file", NewFileNotFoundError("a.csv"), CodeFileNotFound},
		{"argc", NewInvalidArgumentCountError("graph", "", 4, 4, 2), CodeInvalidArgumentCount},
		{"not fitted", NewNotFittedError("Pipeline", "Predict"), CodeNotFitted},
		{"dimension", NewDimensionError("Fit", 1, 2, 0), CodeDimensionMismatch},
		{"value", NewValueError("FromRecord", "bad"), CodeInvalidInput},
		{"wrapped domain error", Wrap(NewColumnNotFoundError("x", nil), "train"), CodeColumnNotFound},
		{"unexpected wrapping domain error", NewUnexpectedFailure("load", NewFileNotFoundError("a")), CodeFileNotFound},
		{"plain", fmt.Errorf("boom"), CodeUnexpectedFailure},
		{"unexpected", NewUnexpectedFailure("write model", fmt.Errorf("disk full")), CodeUnexpectedFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Code(tt.err); got != tt.want {
				t.Errorf("Code() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNewUnexpectedFailure(t *testing.T) {
	if NewUnexpectedFailure("op", nil) != nil {
		t.Fatal("wrapping nil should return nil")
	}

	cause := fmt.Errorf("permission denied")
	err := NewUnexpectedFailure("write metadata", cause)
	if !Is(err, cause) {
		t.Error("UnexpectedFailure should unwrap to its cause")
	}
	if want := "tabml: write metadata: permission denied"; err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
	if !strings.Contains(Detail(err), "errors_test.go") {
		t.Error("Detail should include the stack trace")
	}
}

type recordingWarner struct {
	messages []string
	fields   [][]any
}

func (r *recordingWarner) Warn(msg string, fields ...any) {
	r.messages = append(r.messages, msg)
	r.fields = append(r.fields, fields)
}

func TestWarn(t *testing.T) {
	sink := &recordingWarner{}
	Warn(sink, NewUndefinedMetricWarning("precision", "no predicted samples", 0))
	Warn(sink, NewDataConversionWarning("age", "text", "float64", "unparsable cells set to missing"))
	Warn(nil, NewUndefinedMetricWarning("recall", "no true samples", 0))

	if len(sink.messages) != 2 {
		t.Fatalf("expected 2 warnings, got %d", len(sink.messages))
	}
	if !strings.Contains(sink.messages[0], "'precision' is ill-defined") {
		t.Errorf("unexpected message: %s", sink.messages[0])
	}
	if sink.fields[1][1] != "DataConversionWarning" {
		t.Errorf("expected warning type field, got %v", sink.fields[1])
	}
}

func TestRecover(t *testing.T) {
	t.Run("panic becomes PanicError", func(t *testing.T) {
		fn := func() (err error) {
			defer Recover(&err, "train")
			panic("index out of range")
		}
		err := fn()
		var panicErr *PanicError
		if !As(err, &panicErr) {
			t.Fatalf("expected *PanicError, got %T", err)
		}
		if panicErr.Operation != "train" || panicErr.StackTrace == "" {
			t.Errorf("unexpected panic error: %+v", panicErr)
		}
		if Code(err) != CodePanic {
			t.Errorf("Code() = %q, want %q", Code(err), CodePanic)
		}
	})

	t.Run("no panic leaves error untouched", func(t *testing.T) {
		fn := func() (err error) {
			defer Recover(&err, "train")
			return nil
		}
		if err := fn(); err != nil {
			t.Fatalf("expected nil, got %v", err)
		}
	})

	t.Run("existing error is kept", func(t *testing.T) {
		original := fmt.Errorf("original error")
		fn := func() (err error) {
			defer Recover(&err, "predict")
			err = original
			panic("late panic")
		}
		err := fn()
		if !Is(err, original) {
			t.Error("original error should remain in the chain")
		}
		if !strings.Contains(err.Error(), "panic in predict") {
			t.Errorf("missing panic info: %s", err.Error())
		}
	})
}

func TestSafeExecute(t *testing.T) {
	if err := SafeExecute("ok", func() error { return nil }); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	want := fmt.Errorf("plain failure")
	if err := SafeExecute("fail", func() error { return want }); err != want {
		t.Errorf("expected the function error to be returned unchanged, got %v", err)
	}

	err := SafeExecute("boom", func() error {
		var m map[string]int
		m["x"] = 1
		return nil
	})
	var panicErr *PanicError
	if !As(err, &panicErr) {
		t.Fatalf("expected *PanicError, got %T", err)
	}
}
