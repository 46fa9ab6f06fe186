package logging

import (
	"bytes"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want LogLevel
	}{
		{"debug", LevelDebug},
		{"info", LevelInfo},
		{"", LevelInfo},
		{"warn", LevelWarn},
		{"warning", LevelWarn},
		{"error", LevelError},
		{"nonsense", LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	Init(LevelWarn, &buf)

	Debug("Test", "debug message")
	Info("Test", "info message")
	Warn("Test", "warn message")

	out := buf.String()
	if strings.Contains(out, "debug message") || strings.Contains(out, "info message") {
		t.Errorf("messages below the filter level leaked: %s", out)
	}
	if !strings.Contains(out, "warn message") {
		t.Errorf("expected warn message in output: %s", out)
	}
}

func TestSubsystemAndErrorAttrs(t *testing.T) {
	var buf bytes.Buffer
	Init(LevelDebug, &buf)

	Info("Fleet", "machine %s ready", "machine-1")
	Error("Fleet", assertError("boom"), "probe failed")

	out := buf.String()
	if !strings.Contains(out, "subsystem=Fleet") {
		t.Errorf("expected subsystem attribute: %s", out)
	}
	if !strings.Contains(out, "machine machine-1 ready") {
		t.Errorf("expected formatted message: %s", out)
	}
	if !strings.Contains(out, "error=boom") {
		t.Errorf("expected error attribute: %s", out)
	}
}

type assertError string

func (e assertError) Error() string { return string(e) }
