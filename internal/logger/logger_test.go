package logger

import (
	"bytes"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]Level{
		"trace":   TraceLevel,
		"DEBUG":   DebugLevel,
		"":        InfoLevel,
		"warning": WarnLevel,
		"error":   ErrorLevel,
	}
	for in, want := range cases {
		got, err := ParseLevel(in)
		if err != nil {
			t.Fatalf("ParseLevel(%q): %v", in, err)
		}
		if got != want {
			t.Fatalf("ParseLevel(%q) = %s, want %s", in, got, want)
		}
	}
	if _, err := ParseLevel("loud"); err == nil {
		t.Fatalf("expected error for unknown level")
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(nil)

	SetLevel(WarnLevel)
	defer SetLevel(InfoLevel)

	Info("[Test] hidden %d", 1)
	Warn("[Test] shown %d", 2)
	Sync()

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("info line should be filtered at warn level: %q", out)
	}
	if !strings.Contains(out, "[Test] shown 2") {
		t.Fatalf("expected warn line, got %q", out)
	}
}

func TestTraceRequiresTraceLevel(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(nil)

	SetLevel(DebugLevel)
	Trace("quiet")
	SetLevel(TraceLevel)
	Trace("loud")
	SetLevel(InfoLevel)
	Sync()

	out := buf.String()
	if strings.Contains(out, "quiet") {
		t.Fatalf("trace should be off at debug level: %q", out)
	}
	if !strings.Contains(out, "[TRACE] loud") {
		t.Fatalf("expected trace line, got %q", out)
	}
	if GetLevel() != InfoLevel {
		t.Fatalf("expected level reset to info")
	}
}
