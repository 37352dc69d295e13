package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestNewHandlerFormats(t *testing.T) {
	var buf bytes.Buffer
	slog.New(NewHandler(&buf, "info", "json")).Info("ranked", "documents", 3)
	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("json handler output %q: %v", buf.String(), err)
	}
	if entry["msg"] != "ranked" || entry["documents"] != float64(3) {
		t.Errorf("entry = %v", entry)
	}

	buf.Reset()
	slog.New(NewHandler(&buf, "info", "text")).Info("ranked")
	if !strings.Contains(buf.String(), "msg=ranked") {
		t.Errorf("text handler output = %q", buf.String())
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARN":    slog.LevelWarn,
		"error":   slog.LevelError,
		"info":    slog.LevelInfo,
		"unknown": slog.LevelInfo,
		"":        slog.LevelInfo,
	}
	for in, want := range tests {
		if got := parseLevel(in); got != want {
			t.Errorf("parseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestRequestIDAddedFromContext(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(NewHandler(&buf, "debug", "text")).With("component", "search-handler")

	log.InfoContext(WithRequestID(context.Background(), "req-42"), "search completed")
	log.InfoContext(context.Background(), "startup")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("lines = %d, want 2:\n%s", len(lines), buf.String())
	}
	if !strings.Contains(lines[0], "request_id=req-42") || !strings.Contains(lines[0], "component=search-handler") {
		t.Errorf("first line = %q", lines[0])
	}
	if strings.Contains(lines[1], "request_id") {
		t.Errorf("second line has a request id: %q", lines[1])
	}
}

func TestRequestIDFromEmptyContext(t *testing.T) {
	if got := RequestIDFromContext(context.Background()); got != "" {
		t.Errorf("RequestIDFromContext() = %q, want empty", got)
	}
}
