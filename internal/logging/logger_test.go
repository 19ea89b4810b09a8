package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestPrettyHandlerRendersComponentAndFields(t *testing.T) {
	var buf bytes.Buffer
	lvl := new(slog.LevelVar)
	lvl.Set(slog.LevelInfo)
	logger := slog.New(newPrettyHandler(&buf, lvl, false))

	WithComponent(logger, "coordinator").Info("conversion started",
		Int64(FieldBookID, 42),
		String(FieldFormat, "EPUB"),
	)

	line := buf.String()
	if !strings.Contains(line, "coordinator: conversion started") {
		t.Fatalf("missing component prefix: %q", line)
	}
	if !strings.Contains(line, "book_id=42") || !strings.Contains(line, "format=EPUB") {
		t.Fatalf("missing fields: %q", line)
	}
}

func TestPrettyHandlerQuotesValuesWithSpaces(t *testing.T) {
	var buf bytes.Buffer
	lvl := new(slog.LevelVar)
	logger := slog.New(newPrettyHandler(&buf, lvl, false))

	logger.Info("msg", String("title", "A Tale of Two Cities"))
	if !strings.Contains(buf.String(), `title="A Tale of Two Cities"`) {
		t.Fatalf("expected quoted value: %q", buf.String())
	}
}

func TestJSONHandlerUsesCanonicalKeys(t *testing.T) {
	var buf bytes.Buffer
	lvl := new(slog.LevelVar)
	logger := slog.New(newJSONHandler(&buf, lvl, false))

	logger.Warn("library unreadable", String(FieldErrorHint, "check metadata.db permissions"))

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("unmarshal log record: %v", err)
	}
	if record["level"] != "warn" {
		t.Fatalf("unexpected level: %v", record["level"])
	}
	if record["msg"] != "library unreadable" {
		t.Fatalf("unexpected msg: %v", record["msg"])
	}
	if _, ok := record["ts"]; !ok {
		t.Fatal("expected ts key")
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := New(Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestNopLoggerDiscards(t *testing.T) {
	logger := NewNop()
	if logger.Enabled(context.Background(), slog.LevelError) {
		t.Fatal("nop logger should be disabled")
	}
}
