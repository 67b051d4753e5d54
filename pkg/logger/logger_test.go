package logger

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestParseLogLevel(t *testing.T) {
	tests := map[string]LogLevel{
		"debug":   DEBUG,
		"INFO":    INFO,
		"warning": WARN,
		"warn":    WARN,
		"error":   ERROR,
		"":        INFO,
		"verbose": INFO,
	}
	for input, want := range tests {
		if got := parseLogLevel(input); got != want {
			t.Fatalf("parseLogLevel(%q) = %d, want %d", input, got, want)
		}
	}
}

func TestAppLogger_FiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	l := NewLoggerWithWriter("warn", &buf)

	l.Info("hidden message")
	l.Debug("hidden debug")
	l.Warn("visible warning", "book_id", "b1")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("expected info/debug to be filtered, got %s", out)
	}
	if !strings.Contains(out, "visible warning") || !strings.Contains(out, "book_id=b1") {
		t.Fatalf("unexpected output: %s", out)
	}
}

func TestAppLogger_ErrorIncludesCause(t *testing.T) {
	var buf bytes.Buffer
	l := NewLoggerWithWriter("info", &buf)

	l.Error("save failed", errors.New("boom"), "user_id", "u1", "dangling")

	out := buf.String()
	if !strings.Contains(out, "error=boom") {
		t.Fatalf("expected error field, got %s", out)
	}
	if !strings.Contains(out, "user_id=u1") {
		t.Fatalf("expected user_id field, got %s", out)
	}
	if strings.Contains(out, "BADKEY") {
		t.Fatalf("expected dangling key to be dropped, got %s", out)
	}
}
