package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestNewJSON(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Options{Level: "debug", Format: "json", Output: &buf})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	logger.Debug("hello", "k", "v")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected JSON output, got %q: %v", buf.String(), err)
	}
	if entry["msg"] != "hello" || entry["k"] != "v" {
		t.Errorf("unexpected entry %v", entry)
	}
}

func TestAutoFormatNonTerminalIsJSON(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Options{Format: "auto", Output: &buf})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	logger.Info("ping")
	if !strings.HasPrefix(strings.TrimSpace(buf.String()), "{") {
		t.Errorf("expected JSON for non-terminal writer, got %q", buf.String())
	}
}

func TestLevelFilters(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Options{Level: "warn", Format: "console", Output: &buf})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	logger.Info("dropped")
	logger.Warn("kept")
	if strings.Contains(buf.String(), "dropped") || !strings.Contains(buf.String(), "kept") {
		t.Errorf("unexpected output %q", buf.String())
	}
}

func TestInvalidOptions(t *testing.T) {
	if _, err := New(Options{Level: "loud"}); err == nil {
		t.Error("expected error for unknown level")
	}
	if _, err := New(Options{Format: "xml"}); err == nil {
		t.Error("expected error for unknown format")
	}
}

func TestFromContext(t *testing.T) {
	var buf bytes.Buffer
	base, _ := New(Options{Format: "json", Output: &buf})

	ctx := WithStage(WithVideo(WithRun(context.Background(), "run-1"), "vid"), "correction")
	FromContext(ctx, base).Info("stage done")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if entry[FieldRunID] != "run-1" || entry[FieldVideoID] != "vid" || entry[FieldStage] != "correction" {
		t.Errorf("missing context fields in %v", entry)
	}
}

func TestFromContextNilLogger(t *testing.T) {
	if FromContext(context.Background(), nil) == nil {
		t.Error("expected non-nil logger")
	}
}

func TestErrorAttr(t *testing.T) {
	if got := ErrorAttr(errors.New("boom")); got.Key != "error" || got.Value.String() != "boom" {
		t.Errorf("unexpected attr %v", got)
	}
	if got := ErrorAttr(nil); got.Value.String() != "<nil>" {
		t.Errorf("unexpected nil attr %v", got)
	}
}
