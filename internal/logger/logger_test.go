package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		if err := json.Unmarshal([]byte(line), &m); err != nil {
			t.Fatalf("log line is not JSON: %v\n%s", err, line)
		}
		out = append(out, m)
	}
	return out
}

func TestLogger_WritesStructuredFields(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, LevelInfo, "dex-prices", func(context.Context) string { return "abc123" })

	log.Info(context.Background(), "quote computed", "venue", "DDEX", "total", 1.5)

	lines := decodeLines(t, &buf)
	if len(lines) != 1 {
		t.Fatalf("expected 1 line, got %d", len(lines))
	}
	entry := lines[0]
	if entry["msg"] != "quote computed" {
		t.Errorf("unexpected msg: %v", entry["msg"])
	}
	if entry["service"] != "dex-prices" {
		t.Errorf("expected service field, got %v", entry["service"])
	}
	if entry["venue"] != "DDEX" {
		t.Errorf("expected venue=DDEX, got %v", entry["venue"])
	}
	if entry["trace_id"] != "abc123" {
		t.Errorf("expected trace id, got %v", entry["trace_id"])
	}
}

func TestLogger_RespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, LevelWarn, "svc", nil)

	ctx := context.Background()
	log.Debug(ctx, "hidden")
	log.Info(ctx, "hidden")
	log.Warn(ctx, "shown")
	log.Errorc(ctx, 1, "shown too")

	if got := len(decodeLines(t, &buf)); got != 2 {
		t.Fatalf("expected 2 lines at warn level, got %d", got)
	}
}

func TestLogger_DanglingKey(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, LevelDebug, "svc", nil)

	log.Debug(context.Background(), "odd args", "lonely")

	lines := decodeLines(t, &buf)
	if lines[0]["!BADKEY"] != "lonely" {
		t.Errorf("expected dangling key to be preserved, got %v", lines[0])
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]Level{
		"debug":   LevelDebug,
		"WARN":    LevelWarn,
		"warning": LevelWarn,
		"error":   LevelError,
		"":        LevelInfo,
		"verbose": LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
