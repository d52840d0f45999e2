package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestPrettyHandlerFormatsComponentAndAttrs(t *testing.T) {
	var buf bytes.Buffer
	lvl := new(slog.LevelVar)
	lvl.Set(slog.LevelInfo)
	logger := slog.New(newPrettyHandler(&buf, lvl))

	logger = logger.With(String(FieldComponent, "scanner"))
	logger.Info("file hashed", String(FieldPath, "/photos/a.jpg"), Int64("size", 42))

	line := buf.String()
	if !strings.Contains(line, "INFO scanner: file hashed") {
		t.Fatalf("unexpected line: %q", line)
	}
	if !strings.Contains(line, "path=/photos/a.jpg") {
		t.Fatalf("expected path attr, got %q", line)
	}
	if !strings.Contains(line, "size=42") {
		t.Fatalf("expected size attr, got %q", line)
	}
}

func TestPrettyHandlerQuotesValuesWithSpaces(t *testing.T) {
	var buf bytes.Buffer
	lvl := new(slog.LevelVar)
	lvl.Set(slog.LevelInfo)
	logger := slog.New(newPrettyHandler(&buf, lvl))

	logger.Info("scan", String("root", "/photos/2010 - Photos"))
	if !strings.Contains(buf.String(), `root="/photos/2010 - Photos"`) {
		t.Fatalf("expected quoted value, got %q", buf.String())
	}
}

func TestPrettyHandlerRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	lvl := new(slog.LevelVar)
	lvl.Set(slog.LevelWarn)
	handler := newPrettyHandler(&buf, lvl)

	if handler.Enabled(context.Background(), slog.LevelInfo) {
		t.Fatal("info should be disabled at warn level")
	}
	rec := slog.NewRecord(time.Now(), slog.LevelInfo, "hidden", 0)
	if err := handler.Handle(context.Background(), rec); err != nil {
		t.Fatalf("Handle returned error: %v", err)
	}
	if buf.Len() != 0 {
		t.Fatalf("expected no output below level, got %q", buf.String())
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := New(Options{Format: "yaml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}
