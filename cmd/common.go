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
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"github.com/valpere/vidscribe/internal/artifact"
	"github.com/valpere/vidscribe/internal/completion"
	"github.com/valpere/vidscribe/internal/config"
	"github.com/valpere/vidscribe/internal/logging"
	"github.com/valpere/vidscribe/internal/model"
	"github.com/valpere/vidscribe/internal/prompt"
	"github.com/valpere/vidscribe/internal/stage"
	"github.com/valpere/vidscribe/internal/store"
)

// loadConfig resolves configuration and applies the persistent log flags.
func loadConfig() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(configPath, config.DotenvPaths()...)
	if err != nil {
		return nil, nil, err
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if logFormat != "" {
		cfg.LogFormat = logFormat
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}

	logger, err := logging.New(logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat, Output: os.Stderr})
	if err != nil {
		return nil, nil, err
	}
	if _, err := config.ParseRetention(cfg.PromptCacheRetention); err != nil {
		logger.Warn("prompt cache retention ignored", logging.ErrorAttr(err))
	}
	return cfg, logger, nil
}

func buildResolver(cfg *config.Config) (*model.Resolver, error) {
	overrides, err := model.LoadOverrides(cfg.ModelsFile)
	if err != nil {
		return nil, err
	}
	return model.NewResolver(overrides...)
}

// buildClient wires every backend; a missing key only fails calls routed to it.
func buildClient(cfg *config.Config, logger *slog.Logger) *completion.Client {
	httpClient := &http.Client{}
	backends := []completion.Backend{
		completion.NewOpenAIBackend(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, httpClient),
		completion.NewOpenRouterBackend(cfg.OpenRouterAPIKey, cfg.OpenRouterBaseURL, httpClient),
		completion.NewGeminiBackend(cfg.GeminiAPIKey, "", httpClient),
		completion.NewOllamaBackend(cfg.OllamaBaseURL, httpClient),
	}
	return completion.NewClient(backends,
		completion.WithRequestTimeout(cfg.RequestTimeout),
		completion.WithRetryMaxAttempts(cfg.RetryMaxAttempts),
		completion.WithJitter(cfg.RetryJitter),
		completion.WithLogger(logger),
	)
}

// buildPrompts layers the prompts directory, when set, over the embedded defaults.
func buildPrompts(dir string) prompt.Provider {
	if dir == "" {
		return prompt.Embedded()
	}
	return prompt.Layered{prompt.NewDirProvider(dir), prompt.Embedded()}
}

func buildArtifactStore(cfg *config.Config) (*artifact.Store, error) {
	suffix, err := artifact.TranslatedSuffix(cfg.TargetLanguage, cfg.TargetVariant)
	if err != nil {
		return nil, err
	}
	return artifact.NewStore(cfg.DataDir, artifact.WithTranslatedSuffix(suffix)), nil
}

func buildTarget(cfg *config.Config) (stage.Target, error) {
	return stage.NewTarget(cfg.TargetLanguage, cfg.TargetVariant)
}

func openLedger(cfg *config.Config) (*store.Store, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.LedgerPath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create ledger directory: %w", err)
	}
	db, err := store.New(cfg.LedgerPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger: %w", err)
	}
	return db, nil
}

// openRunLedger is openLedger for the run command: a ledger that cannot be
// opened is logged and skipped, never fatal.
func openRunLedger(cfg *config.Config, logger *slog.Logger) *store.Store {
	db, err := openLedger(cfg)
	if err != nil {
		logger.Warn("ledger unavailable, run will not be recorded",
			slog.String("path", cfg.LedgerPath),
			logging.ErrorAttr(err),
		)
		return nil
	}
	return db
}
