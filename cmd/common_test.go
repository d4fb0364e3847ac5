/*
Copyright © 2025 Valentyn Solomko <valentyn.solomko@gmail.com>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/valpere/vidscribe/internal/config"
)

func TestLoadConfigAppliesLogFlags(t *testing.T) {
	t.Setenv("VIDSCRIBE_LOG_LEVEL", "")
	t.Setenv("VIDSCRIBE_DATA_DIR", t.TempDir())
	prevPath, prevLevel, prevFormat := configPath, logLevel, logFormat
	t.Cleanup(func() { configPath, logLevel, logFormat = prevPath, prevLevel, prevFormat })
	configPath, logLevel, logFormat = "", "debug", "json"

	cfg, logger, err := loadConfig()
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.LogLevel != "debug" || cfg.LogFormat != "json" {
		t.Errorf("flags not applied: %q/%q", cfg.LogLevel, cfg.LogFormat)
	}
	if !logger.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("expected debug logging enabled")
	}
}

func TestLoadConfigRejectsBadLogLevel(t *testing.T) {
	t.Setenv("VIDSCRIBE_DATA_DIR", t.TempDir())
	prevPath, prevLevel := configPath, logLevel
	t.Cleanup(func() { configPath, logLevel = prevPath, prevLevel })
	configPath, logLevel = "", "loud"

	if _, _, err := loadConfig(); err == nil {
		t.Fatal("expected error for unknown log level")
	}
}

func TestOpenRunLedger(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))

	db := openRunLedger(&config.Config{LedgerPath: filepath.Join(t.TempDir(), "db", "vidscribe.db")}, logger)
	if db == nil {
		t.Fatalf("expected ledger, logs: %s", logs.String())
	}
	db.Close()

	blocker := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(blocker, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if db := openRunLedger(&config.Config{LedgerPath: filepath.Join(blocker, "vidscribe.db")}, logger); db != nil {
		db.Close()
		t.Fatal("expected no ledger under a regular file")
	}
	if !strings.Contains(logs.String(), "ledger unavailable") {
		t.Errorf("expected warning, got %q", logs.String())
	}
}
