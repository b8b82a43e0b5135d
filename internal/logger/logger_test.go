package logger

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestNew(t *testing.T) {
	log := New()
	if log.GetLevel() == zerolog.Disabled {
		t.Error("Expected logger to be enabled")
	}
}

func TestNewWithOptions_Writer(t *testing.T) {
	buf := &bytes.Buffer{}
	log := NewWithOptions(Options{Out: buf})

	log.Info().Msg("test message")

	output := buf.String()
	if output == "" {
		t.Error("Expected log output, got empty string")
	}
	if !strings.Contains(output, "test message") {
		t.Errorf("Expected output to contain 'test message', got: %s", output)
	}
}

func TestNewWithOptions_JSONAndLevel(t *testing.T) {
	buf := &bytes.Buffer{}
	log := NewWithOptions(Options{Level: "warn", JSON: true, Out: buf})

	log.Info().Msg("hidden")
	log.Warn().Str("ad_group", "A").Msg("shown")

	output := buf.String()
	if strings.Contains(output, "hidden") {
		t.Errorf("info message should be filtered at warn level, got: %s", output)
	}
	if !strings.Contains(output, `"ad_group":"A"`) {
		t.Errorf("Expected JSON field in output, got: %s", output)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  zerolog.Level
	}{
		{"", zerolog.InfoLevel},
		{"debug", zerolog.DebugLevel},
		{" WARN ", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"nonsense", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := ParseLevel(tt.input); got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestWithContext(t *testing.T) {
	log := New()
	ctx := context.Background()

	ctxWithLogger := WithContext(ctx, log)

	if ctxWithLogger.Value(LoggerKey) == nil {
		t.Error("Expected logger in context, got nil")
	}
}

func TestFromContext(t *testing.T) {
	buf := &bytes.Buffer{}
	testLog := NewWithOptions(Options{JSON: true, Out: buf})
	ctx := WithContext(context.Background(), testLog)

	retrievedLog := FromContext(ctx)
	retrievedLog.Info().Msg("test")

	if buf.Len() == 0 {
		t.Error("Expected log output from retrieved logger")
	}
}

func TestFromContext_DefaultLogger(t *testing.T) {
	ctx := context.Background()

	// Should return a default logger when none is in context
	log := FromContext(ctx)

	if log.GetLevel() == zerolog.Disabled {
		t.Error("Expected default logger to be enabled")
	}
}

func TestWithFields(t *testing.T) {
	buf := &bytes.Buffer{}
	log := NewWithOptions(Options{JSON: true, Out: buf})

	fields := map[string]interface{}{
		"run_id": "123",
		"stage":  "render",
	}

	logWithFields := WithFields(log, fields)
	logWithFields.Info().Msg("test message")

	output := buf.String()
	if !strings.Contains(output, "run_id") || !strings.Contains(output, "123") {
		t.Errorf("Expected output to contain run_id field, got: %s", output)
	}
	if !strings.Contains(output, "stage") || !strings.Contains(output, "render") {
		t.Errorf("Expected output to contain stage field, got: %s", output)
	}
}

func TestKeyword(t *testing.T) {
	buf := &bytes.Buffer{}
	log := Keyword(NewWithOptions(Options{JSON: true, Out: buf}), "Main - Exact", "sport detergent")
	log.Info().Msg("rendered")

	output := buf.String()
	if !strings.Contains(output, "Main - Exact") || !strings.Contains(output, "sport detergent") {
		t.Errorf("Expected ad group and keyword fields, got: %s", output)
	}
}
