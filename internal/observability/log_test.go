package observability

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestSnip(t *testing.T) {
	tests := []struct {
		in   string
		max  int
		want string
	}{
		{"hello", 10, "hello"},
		{"hello", 3, "hel…"},
		{"héllo", 2, "hé…"},
		{"anything", 0, ""},
	}
	for _, tt := range tests {
		if got := Snip(tt.in, tt.max); got != tt.want {
			t.Errorf("Snip(%q, %d) = %q, want %q", tt.in, tt.max, got, tt.want)
		}
	}
}

func TestRedactForLog(t *testing.T) {
	got := RedactForLog("key sk-abcdefghijklmnopqrstuvwxyz from dev@example.com")
	if strings.Contains(got, "sk-abc") || strings.Contains(got, "dev@example.com") {
		t.Errorf("RedactForLog left secrets: %q", got)
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]zerolog.Level{
		"debug":   zerolog.DebugLevel,
		"WARN":    zerolog.WarnLevel,
		"warning": zerolog.WarnLevel,
		"error":   zerolog.ErrorLevel,
		"":        zerolog.InfoLevel,
		"bogus":   zerolog.InfoLevel,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNewWritesStructuredLines(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, "info")
	l.Debug().Msg("hidden")
	l.Info().Str("component", "test").Msg("visible")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("got %d lines, want 1: %q", len(lines), buf.String())
	}
	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("line is not JSON: %v", err)
	}
	if entry["message"] != "visible" || entry["component"] != "test" {
		t.Errorf("unexpected entry %v", entry)
	}
	if _, ok := entry["time"]; !ok {
		t.Error("entry missing timestamp")
	}
}
