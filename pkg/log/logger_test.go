package log

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]interface{} {
	t.Helper()
	var entries []map[string]interface{}
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]interface{}
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Fatalf("invalid JSON line %q: %v", line, err)
		}
		entries = append(entries, entry)
	}
	return entries
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    Level
		wantErr bool
	}{
		{"debug", LevelDebug, false},
		{"INFO", LevelInfo, false},
		{"", LevelInfo, false},
		{"warning", LevelWarn, false},
		{"error", LevelError, false},
		{"verbose", LevelInfo, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestZerologJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Options{Level: LevelInfo, Format: FormatJSON}, &buf)

	logger.Debug("hidden")
	logger.With(ComponentKey, "trainer").Info("Training started", SamplesKey, 10)
	logger.Error("Training failed", errors.New("boom"), ErrorCodeKey, "UnexpectedFailure")

	entries := decodeLines(t, &buf)
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d: %s", len(entries), buf.String())
	}
	if entries[0]["message"] != "Training started" || entries[0][ComponentKey] != "trainer" {
		t.Errorf("unexpected info entry: %v", entries[0])
	}
	if entries[0][SamplesKey] != 10.0 {
		t.Errorf("expected samples field, got %v", entries[0][SamplesKey])
	}
	if entries[1]["error"] != "boom" {
		t.Errorf("expected error field, got %v", entries[1]["error"])
	}
	if s, _ := entries[1][StacktraceKey].(string); s == "" {
		t.Error("expected a stack trace on the error entry")
	}
	if entries[1][ErrorCodeKey] != "UnexpectedFailure" {
		t.Errorf("expected error code field, got %v", entries[1][ErrorCodeKey])
	}
}

func TestZerologConsole(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Options{Level: LevelDebug, Format: FormatConsole}, &buf)
	logger.Debug("Target selected", TargetKey, "price")

	out := buf.String()
	if !strings.Contains(out, "Target selected") || !strings.Contains(out, "price") {
		t.Errorf("unexpected console output: %q", out)
	}
}

func TestSlogBackend(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Options{Level: LevelWarn, Backend: BackendSlog}, &buf)

	logger.Info("hidden")
	logger.Warn("Cross-validation skipped", SamplesKey, 3)
	logger.Error("Prediction failed", errors.New("bad record"))

	entries := decodeLines(t, &buf)
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d: %s", len(entries), buf.String())
	}
	if entries[0]["severity"] != "WARN" || entries[0]["message"] != "Cross-validation skipped" {
		t.Errorf("unexpected warn entry: %v", entries[0])
	}
	if entries[1][ErrAttrKey] != "bad record" {
		t.Errorf("expected error attribute, got %v", entries[1][ErrAttrKey])
	}
	if s, _ := entries[1][StacktraceKey].(string); s == "" {
		t.Error("expected ErrFmtHandler to add a stack trace")
	}
}

func TestEnabled(t *testing.T) {
	ctx := context.Background()
	for _, backend := range []string{BackendZerolog, BackendSlog} {
		logger := New(Options{Level: LevelWarn, Backend: backend, Format: FormatJSON}, &bytes.Buffer{})
		if logger.Enabled(ctx, LevelInfo) {
			t.Errorf("%s: info should be disabled at warn level", backend)
		}
		if !logger.Enabled(ctx, LevelError) {
			t.Errorf("%s: error should be enabled at warn level", backend)
		}
	}
	if Nop().Enabled(ctx, LevelError) {
		t.Error("nop logger should never be enabled")
	}
	if OrNop(nil) == nil {
		t.Error("OrNop(nil) should return a usable logger")
	}
}

func TestTestLogger(t *testing.T) {
	testLogger, buffer := NewTestLogger(LevelInfo)

	testLogger.Debug("debug message")
	testLogger.Info("info message", "number", 42)
	testLogger.With(ModelNameKey, "RandomForestRegressor").Warn("warning message", OperationKey, OperationFit)
	testLogger.Error("error message", fmt.Errorf("test error"), ErrorCodeKey, "TEST")

	if buffer.Len() == 0 {
		t.Fatal("Expected log output, got empty string")
	}
	if testLogger.ContainsMessage("debug message") {
		t.Error("debug message should be filtered at info level")
	}
	if !testLogger.ContainsField("number", 42.0) { // JSON unmarshaling converts numbers to float64
		t.Error("Expected field number=42 not found")
	}
	if !testLogger.ContainsField(ModelNameKey, "RandomForestRegressor") {
		t.Error("With fields should be carried into records")
	}
	if !testLogger.ContainsField(ErrAttrKey, "test error") {
		t.Error("leading error should be stored under the error key")
	}

	entries, err := testLogger.GetLogEntries()
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 3 {
		t.Errorf("Expected 3 log entries, got %d", len(entries))
	}

	testLogger.Clear()
	if buffer.Len() != 0 {
		t.Error("Clear should empty the buffer")
	}
}
