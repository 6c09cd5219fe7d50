package logger

import (
	"bytes"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  Level
	}{
		{"debug", DebugLevel},
		{"INFO", InfoLevel},
		{"warn", WarnLevel},
		{"error", ErrorLevel},
		{"bogus", InfoLevel},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.input); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter(&buf, "warn", "json")
	t.Cleanup(func() { defaultLogger = nil })

	Info("hidden %d", 1)
	Warn("shown %d", 2)

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info line written at warn level: %q", out)
	}
	if !strings.Contains(out, "[WARN] shown 2") {
		t.Errorf("warn line missing: %q", out)
	}
}

func TestForStage(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter(&buf, "debug", "json")
	t.Cleanup(func() { defaultLogger = nil })

	ForStage("aggregate").Info("wrote %d buckets", 3)
	if !strings.Contains(buf.String(), "[INFO] [aggregate] wrote 3 buckets") {
		t.Errorf("unexpected output: %q", buf.String())
	}
}

func TestUninitializedIsSilent(t *testing.T) {
	defaultLogger = nil
	Info("nothing")
	ForStage("build").Error("nothing")
}
