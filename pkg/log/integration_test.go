package log

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"testing"

	lcerrors "github.com/YuminosukeSato/lcgen/pkg/errors"
)

// TestLoggerInterface tests the Logger interface implementation
func TestLoggerInterface(t *testing.T) {
	testLogger, buffer := NewTestLogger(LevelDebug)

	testLogger.Debug("debug message", "key1", "value1", "number", 42)
	testLogger.Info("info message", OperationKey, OperationTrain)
	testLogger.Warn("warning message", ErrorCodeKey, ErrorNumericInstability)
	testLogger.Error("error message", fmt.Errorf("disk full"), CheckpointPathKey, "/tmp/x_best.gob")

	if buffer.String() == "" {
		t.Fatal("Expected log output, got empty string")
	}

	for _, msg := range []string{"debug message", "info message", "warning message", "error message"} {
		if !testLogger.ContainsMessage(msg) {
			t.Errorf("%q not found in output", msg)
		}
	}

	if !testLogger.ContainsField("key1", "value1") {
		t.Error("Expected field key1=value1 not found")
	}
	if !testLogger.ContainsField("number", 42.0) { // JSON unmarshaling converts numbers to float64
		t.Error("Expected field number=42 not found")
	}
	if !testLogger.ContainsField(ErrAttrKey, "disk full") {
		t.Error("Expected leading error stored under error key")
	}
}

// TestLoggerWith tests the With method for context-aware logging
func TestLoggerWith(t *testing.T) {
	testLogger, _ := NewTestLogger(LevelDebug)

	runLogger := testLogger.With(
		RunIDKey, "run-1",
		ModelNameKey, "time-context-mlp",
	)
	runLogger.Info("Epoch finished", EpochKey, 1, LossKey, 0.5)

	entries := testLogger.EntriesWithMessage("Epoch finished")
	if len(entries) != 1 {
		t.Fatalf("Expected 1 entry, got %d", len(entries))
	}
	if entries[0][RunIDKey] != "run-1" || entries[0][ModelNameKey] != "time-context-mlp" {
		t.Errorf("context fields missing: %v", entries[0])
	}
	if entries[0][LossKey] != 0.5 {
		t.Errorf("loss = %v, want 0.5", entries[0][LossKey])
	}
}

// TestLoggerEnabled tests the Enabled method
func TestLoggerEnabled(t *testing.T) {
	testLogger, _ := NewTestLogger(LevelInfo)
	ctx := context.Background()

	if !testLogger.Enabled(ctx, LevelInfo) {
		t.Error("Logger should be enabled for Info level")
	}
	if !testLogger.Enabled(ctx, LevelError) {
		t.Error("Logger should be enabled for Error level")
	}
	if testLogger.Enabled(ctx, LevelDebug) {
		t.Error("Logger should not be enabled for Debug level")
	}

	testLogger.Debug("this should not appear")
	testLogger.Info("this should appear")

	if testLogger.ContainsMessage("this should not appear") {
		t.Error("Debug message should not appear when level is Info")
	}
	if !testLogger.ContainsMessage("this should appear") {
		t.Error("Info message should appear when level is Info")
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in     string
		want   Level
		wantOK bool
	}{
		{"debug", LevelDebug, true},
		{"info", LevelInfo, true},
		{"", LevelInfo, true},
		{"warn", LevelWarn, true},
		{"error", LevelError, true},
		{"verbose", LevelInfo, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseLevel(tt.in)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("ParseLevel(%q) = %v, %v; want %v, %v", tt.in, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestZerologLoggerJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewZerologLogger(&buf, FormatJSON, LevelInfo)

	logger.Debug("hidden")
	logger.With(RunIDKey, "abc").Info("Epoch finished",
		EpochKey, 2,
		LossKey, 0.25,
		PhaseKey, PhaseTraining,
	)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("Expected 1 line (debug filtered), got %d: %q", len(lines), buf.String())
	}
	var entry map[string]interface{}
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if entry["message"] != "Epoch finished" || entry["level"] != "info" {
		t.Errorf("unexpected entry %v", entry)
	}
	if entry[RunIDKey] != "abc" || entry[EpochKey] != 2.0 || entry[LossKey] != 0.25 {
		t.Errorf("fields missing: %v", entry)
	}
	if !logger.Enabled(context.Background(), LevelWarn) || logger.Enabled(context.Background(), LevelDebug) {
		t.Error("Enabled does not follow the configured level")
	}
}

func TestZerologLoggerErrorWithStack(t *testing.T) {
	var buf bytes.Buffer
	logger := NewZerologLogger(&buf, FormatJSON, LevelDebug)

	err := lcerrors.NewShapeMismatchError("dataset.New", "flux", []int{2, 3}, "time", []int{2, 4})
	logger.Error("Load failed", err, PathKey, "in.json")

	out := buf.String()
	for _, want := range []string{`"error":"lcgen: dataset.New: shape mismatch`, `"type":"ShapeMismatchError"`, `"data.path":"in.json"`} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %s: %s", want, out)
		}
	}
}

func TestSlogLoggerStacktrace(t *testing.T) {
	var buf bytes.Buffer
	logger := NewSlogLogger(SetupLoggerTo(&buf, "debug"))

	logger.Error("Checkpoint write failed", lcerrors.NewCheckpointError("write checkpoint", "/x", fmt.Errorf("denied")))

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("invalid JSON: %v (%s)", err, buf.String())
	}
	if entry["severity"] != "ERROR" || entry["message"] != "Checkpoint write failed" {
		t.Errorf("unexpected entry %v", entry)
	}
	if _, ok := entry[StacktraceAttrKey]; !ok {
		t.Errorf("stacktrace attribute missing: %v", entry)
	}
}

func TestRouteWarnings(t *testing.T) {
	testLogger, _ := NewTestLogger(LevelDebug)
	RouteWarnings(testLogger)
	defer RouteWarnings(nil)

	lcerrors.Warn(lcerrors.NewMaskGenerationExhausted(100, 60, 1000, 90, 60))

	if !testLogger.ContainsField(ErrorCodeKey, ErrorMaskExhausted) {
		t.Error("Expected routed mask exhaustion warning")
	}
	if !testLogger.ContainsField(BlockSizeKey, 60.0) {
		t.Error("Expected block size on routed warning")
	}
}

func TestSetLoggerGlobal(t *testing.T) {
	prev := GetLogger()
	defer SetLogger(prev)

	testLogger, _ := NewTestLogger(LevelInfo)
	SetLogger(testLogger)
	GetLoggerWithName("checkpoint").Info("saved")

	if !testLogger.ContainsField(ComponentKey, "checkpoint") {
		t.Error("Expected component field from GetLoggerWithName")
	}
}

// TestLoggerProviderIntegration tests the LoggerProvider interface
func TestLoggerProviderIntegration(t *testing.T) {
	provider, buffer := NewTestLoggerProvider(LevelDebug)

	provider.GetLogger().Info("provider test message")
	provider.GetLoggerWithName("train").Info("named logger message")

	lines := buffer.String()
	for _, want := range []string{"provider test message", "named logger message", `"ml.component":"train"`} {
		if !strings.Contains(lines, want) {
			t.Errorf("%s not found", want)
		}
	}
}

// TestConcurrentLogging tests thread safety of logging
func TestConcurrentLogging(t *testing.T) {
	testLogger, _ := NewTestLogger(LevelInfo)

	const goroutines, perGoroutine = 4, 5
	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < perGoroutine; j++ {
				testLogger.Info(fmt.Sprintf("goroutine %d message %d", id, j), "goroutine_id", id)
			}
		}(i)
	}
	wg.Wait()

	entries, err := testLogger.GetLogEntries()
	if err != nil {
		t.Fatalf("Failed to parse log entries: %v", err)
	}
	if len(entries) != goroutines*perGoroutine {
		t.Errorf("Expected %d log entries, got %d", goroutines*perGoroutine, len(entries))
	}
}

// BenchmarkLogging benchmarks logging performance
func BenchmarkLogging(b *testing.B) {
	var buf bytes.Buffer
	logger := NewZerologLogger(&buf, FormatJSON, LevelInfo)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		logger.Info("benchmark message",
			IterationKey, i,
			LossKey, 0.1,
		)
	}
}
