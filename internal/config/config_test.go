package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, b := range bindings {
		for _, name := range b.envs {
			t.Setenv(name, "")
			os.Unsetenv(name)
		}
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.OpenAIBaseURL != "https://api.openai.com/v1" {
		t.Errorf("unexpected openai base url %q", cfg.OpenAIBaseURL)
	}
	if cfg.PromptCacheShards != 1 || cfg.PromptVersion != "v1" {
		t.Errorf("unexpected cache defaults %+v", cfg)
	}
	if cfg.RequestTimeout != 60*time.Second {
		t.Errorf("expected 60s timeout, got %s", cfg.RequestTimeout)
	}
	if cfg.TargetLanguage != "tr-TR" || cfg.TargetVariant != "istanbul" {
		t.Errorf("unexpected target %q/%q", cfg.TargetLanguage, cfg.TargetVariant)
	}
	if cfg.Retention() != 0 {
		t.Errorf("expected caching disabled, got %s", cfg.Retention())
	}
	if cfg.RetryMaxAttempts != 3 || cfg.RetryJitter {
		t.Errorf("unexpected retry defaults %d/%v", cfg.RetryMaxAttempts, cfg.RetryJitter)
	}
	if got := cfg.SubtitleLanguageList(); len(got) != 4 || got[0] != "en" {
		t.Errorf("unexpected subtitle languages %v", got)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestLoadPrecedence(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()

	cfgPath := filepath.Join(dir, "vidscribe.toml")
	cfgBody := "prompt_version = \"v7\"\nprompt_cache_shards = 4\ndata_dir = \"/srv/file\"\n"
	if err := os.WriteFile(cfgPath, []byte(cfgBody), 0o644); err != nil {
		t.Fatal(err)
	}
	envPath := filepath.Join(dir, ".env")
	envBody := "PROMPT_CACHE_SHARDS=8\nVIDSCRIBE_DATA_DIR=/srv/dotenv\nOPENAI_API_KEY=sk-dotenv\n"
	if err := os.WriteFile(envPath, []byte(envBody), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("VIDSCRIBE_DATA_DIR", "/srv/env")

	cfg, err := Load(cfgPath, filepath.Join(dir, "missing.env"), envPath)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.PromptVersion != "v7" {
		t.Errorf("config file value lost: %q", cfg.PromptVersion)
	}
	if cfg.PromptCacheShards != 8 {
		t.Errorf(".env should override config file, got %d", cfg.PromptCacheShards)
	}
	if cfg.DataDir != "/srv/env" {
		t.Errorf("process env should win, got %q", cfg.DataDir)
	}
	if cfg.OpenAIAPIKey != "sk-dotenv" {
		t.Errorf("expected key from .env, got %q", cfg.OpenAIAPIKey)
	}
}

func TestLoadGeminiKeyFallback(t *testing.T) {
	clearEnv(t)
	t.Setenv("GOOGLE_API_KEY", "g-key")
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.GeminiAPIKey != "g-key" {
		t.Errorf("expected GOOGLE_API_KEY fallback, got %q", cfg.GeminiAPIKey)
	}

	t.Setenv("GEMINI_API_KEY", "primary")
	cfg, err = Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.GeminiAPIKey != "primary" {
		t.Errorf("expected GEMINI_API_KEY to win, got %q", cfg.GeminiAPIKey)
	}
}

func TestLoadRetrySettingsFromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("VIDSCRIBE_RETRY_ATTEMPTS", "5")
	t.Setenv("VIDSCRIBE_RETRY_JITTER", "true")
	t.Setenv("VIDSCRIBE_SUBTITLE_LANGUAGES", " de, ,de-DE ")
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.RetryMaxAttempts != 5 || !cfg.RetryJitter {
		t.Errorf("unexpected retry settings %d/%v", cfg.RetryMaxAttempts, cfg.RetryJitter)
	}
	got := cfg.SubtitleLanguageList()
	if len(got) != 2 || got[0] != "de" || got[1] != "de-DE" {
		t.Errorf("unexpected subtitle languages %q", got)
	}
}

func TestLoadMissingConfigFile(t *testing.T) {
	clearEnv(t)
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestParseRetention(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{"", 0, false},
		{"0", 0, false},
		{"300", 300 * time.Second, false},
		{"30s", 30 * time.Second, false},
		{"15m", 15 * time.Minute, false},
		{"24h", 24 * time.Hour, false},
		{"7d", 7 * 24 * time.Hour, false},
		{"1.5h", 90 * time.Minute, false},
		{" 2M ", 2 * time.Minute, false},
		{"abc", 0, true},
		{"-5s", 0, true},
		{"5w", 0, true},
		{"1.2.3h", 0, true},
		{"h", 0, true},
		{"infs", 0, true},
		{"9223372036", 9223372036 * time.Second, false},
		{"106751d", 106751 * 24 * time.Hour, false},
		{"10000000000", 0, true},
		{"99999999999999999999", 0, true},
		{"300000d", 0, true},
		{"9999999999999999d", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseRetention(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseRetention(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseRetention(%q) = %s, want %s", tt.in, got, tt.want)
			}
		})
	}
}

func TestRetentionIgnoresInvalid(t *testing.T) {
	cfg := Config{PromptCacheRetention: "forever"}
	if cfg.Retention() != 0 {
		t.Errorf("invalid retention should disable caching")
	}
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			PromptCacheShards: 1,
			RequestTimeout:    time.Minute,
			RetryMaxAttempts:  3,
			OverflowPolicy:    "truncate",
			TargetLanguage:    "tr-TR",
			DataDir:           "./data",
		}
	}
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(*Config) {}, false},
		{"zero shards", func(c *Config) { c.PromptCacheShards = 0 }, true},
		{"zero timeout", func(c *Config) { c.RequestTimeout = 0 }, true},
		{"zero attempts", func(c *Config) { c.RetryMaxAttempts = 0 }, true},
		{"unknown policy", func(c *Config) { c.OverflowPolicy = "drop" }, true},
		{"empty policy defaults", func(c *Config) { c.OverflowPolicy = "" }, false},
		{"bad language", func(c *Config) { c.TargetLanguage = "not a tag!" }, true},
		{"missing data dir", func(c *Config) { c.DataDir = " " }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			if err := cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
