package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"
)

func TestWithLogger_FromContext(t *testing.T) {
	ctx := context.Background()
	if FromContext(ctx) == nil {
		t.Fatal("FromContext should fall back to default logger")
	}

	l := Discard()
	ctx = WithLogger(ctx, l)
	if FromContext(ctx) != l {
		t.Error("FromContext should return the stored logger")
	}
}

func TestRunID(t *testing.T) {
	ctx := context.Background()
	if RunIDFromContext(ctx) != "" {
		t.Error("empty context should have no run id")
	}

	ctx = WithRunID(ctx, "01HZX3")
	if got := RunIDFromContext(ctx); got != "01HZX3" {
		t.Errorf("RunIDFromContext() = %q", got)
	}
}

func TestL_AddsRunID(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(slog.NewJSONHandler(&buf, nil))

	ctx := WithRunID(WithLogger(context.Background(), base), "run-1")
	L(ctx).Info("hello")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("Failed to parse JSON log: %v", err)
	}
	if entry["run_id"] != "run-1" {
		t.Errorf("run_id = %v", entry["run_id"])
	}
}

func TestCtx(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(slog.NewJSONHandler(&buf, nil))

	Ctx(context.Background(), base).Info("no run")
	var entry map[string]any
	_ = json.Unmarshal(buf.Bytes(), &entry)
	if _, ok := entry["run_id"]; ok {
		t.Error("run_id should be absent without a run")
	}

	buf.Reset()
	Ctx(WithRunID(context.Background(), "r2"), base).Info("run")
	entry = nil
	_ = json.Unmarshal(buf.Bytes(), &entry)
	if entry["run_id"] != "r2" {
		t.Errorf("run_id = %v", entry["run_id"])
	}

	if Ctx(context.Background(), nil) == nil {
		t.Error("Ctx with nil base should return a logger")
	}
}
