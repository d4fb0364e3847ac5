// Package config loads vidscribe settings from defaults, an optional config
// file, .env files and the process environment, in increasing precedence.
//
// Configuration is read once by the command layer; no other package reads
// the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"golang.org/x/text/language"

	"github.com/valpere/vidscribe/internal/passage"
)

// Config is the resolved configuration.
type Config struct {
	OpenAIAPIKey      string `mapstructure:"openai_api_key"`
	OpenRouterAPIKey  string `mapstructure:"openrouter_api_key"`
	GeminiAPIKey      string `mapstructure:"gemini_api_key"`
	OpenAIBaseURL     string `mapstructure:"openai_base_url"`
	OpenRouterBaseURL string `mapstructure:"openrouter_base_url"`
	OllamaBaseURL     string `mapstructure:"ollama_base_url"`

	PromptCacheRetention string        `mapstructure:"prompt_cache_retention"`
	PromptCacheShards    int           `mapstructure:"prompt_cache_shards"`
	PromptVersion        string        `mapstructure:"prompt_version"`
	RequestTimeout       time.Duration `mapstructure:"request_timeout"`
	RetryMaxAttempts     int           `mapstructure:"retry_max_attempts"`
	RetryJitter          bool          `mapstructure:"retry_jitter"`

	DataDir    string `mapstructure:"data_dir"`
	PromptsDir string `mapstructure:"prompts_dir"`
	ModelsFile string `mapstructure:"models_file"`
	LedgerPath string `mapstructure:"ledger_path"`

	SourceLanguage string `mapstructure:"source_language"`
	TargetLanguage string `mapstructure:"target_language"`
	TargetVariant  string `mapstructure:"target_variant"`
	OverflowPolicy string `mapstructure:"overflow_policy"`
	YTDLPPath      string `mapstructure:"ytdlp_path"`
	// SubtitleLanguages is a comma-separated preference list for yt-dlp.
	SubtitleLanguages string `mapstructure:"subtitle_languages"`

	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`
}

type binding struct {
	key  string
	envs []string
	def  any
}

var bindings = []binding{
	{"openai_api_key", []string{"OPENAI_API_KEY"}, ""},
	{"openrouter_api_key", []string{"OPENROUTER_API_KEY"}, ""},
	{"gemini_api_key", []string{"GEMINI_API_KEY", "GOOGLE_API_KEY"}, ""},
	{"openai_base_url", []string{"OPENAI_BASE_URL"}, "https://api.openai.com/v1"},
	{"openrouter_base_url", []string{"OPENROUTER_BASE_URL"}, "https://openrouter.ai/api/v1"},
	{"ollama_base_url", []string{"OLLAMA_BASE_URL"}, "http://localhost:11434"},
	{"prompt_cache_retention", []string{"PROMPT_CACHE_RETENTION"}, "0"},
	{"prompt_cache_shards", []string{"PROMPT_CACHE_SHARDS"}, 1},
	{"prompt_version", []string{"PROMPT_VERSION"}, "v1"},
	{"request_timeout", []string{"VIDSCRIBE_REQUEST_TIMEOUT"}, "60s"},
	{"retry_max_attempts", []string{"VIDSCRIBE_RETRY_ATTEMPTS"}, 3},
	{"retry_jitter", []string{"VIDSCRIBE_RETRY_JITTER"}, false},
	{"data_dir", []string{"VIDSCRIBE_DATA_DIR"}, "./data"},
	{"prompts_dir", []string{"VIDSCRIBE_PROMPTS_DIR"}, ""},
	{"models_file", []string{"VIDSCRIBE_MODELS_FILE"}, ""},
	{"ledger_path", []string{"VIDSCRIBE_LEDGER"}, "./data/vidscribe.db"},
	{"source_language", []string{"VIDSCRIBE_SOURCE_LANGUAGE"}, "en"},
	{"target_language", []string{"VIDSCRIBE_TARGET_LANGUAGE"}, "tr-TR"},
	{"target_variant", []string{"VIDSCRIBE_TARGET_VARIANT"}, "istanbul"},
	{"overflow_policy", []string{"VIDSCRIBE_OVERFLOW_POLICY"}, "truncate"},
	{"ytdlp_path", []string{"VIDSCRIBE_YTDLP"}, "yt-dlp"},
	{"subtitle_languages", []string{"VIDSCRIBE_SUBTITLE_LANGUAGES"}, "en,en-orig,en-US,en-GB"},
	{"log_level", []string{"VIDSCRIBE_LOG_LEVEL"}, "info"},
	{"log_format", []string{"VIDSCRIBE_LOG_FORMAT"}, "auto"},
}

// DotenvPaths returns the .env locations searched by default: the working
// directory, then the directory holding the executable.
func DotenvPaths() []string {
	var paths []string
	if wd, err := os.Getwd(); err == nil {
		paths = append(paths, filepath.Join(wd, ".env"))
	}
	if exe, err := os.Executable(); err == nil {
		paths = append(paths, filepath.Join(filepath.Dir(exe), ".env"))
	}
	return paths
}

// Load resolves the configuration. path may be empty. The first existing
// file among dotenv is merged above the config file and below the process
// environment.
func Load(path string, dotenv ...string) (*Config, error) {
	v := viper.New()
	for _, b := range bindings {
		v.SetDefault(b.key, b.def)
		args := append([]string{b.key}, b.envs...)
		if err := v.BindEnv(args...); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", b.key, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	values, err := readDotenv(dotenv)
	if err != nil {
		return nil, err
	}
	if len(values) > 0 {
		if err := v.MergeConfigMap(values); err != nil {
			return nil, fmt.Errorf("failed to merge .env values: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

// readDotenv maps the first existing .env file onto config keys.
func readDotenv(paths []string) (map[string]any, error) {
	for _, p := range paths {
		if p == "" {
			continue
		}
		if _, err := os.Stat(p); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("failed to stat %s: %w", p, err)
		}

		env := viper.New()
		env.SetConfigFile(p)
		env.SetConfigType("env")
		if err := env.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", p, err)
		}

		values := make(map[string]any)
		for _, b := range bindings {
			for _, name := range b.envs {
				if key := strings.ToLower(name); env.IsSet(key) {
					values[b.key] = env.GetString(key)
					break
				}
			}
		}
		return values, nil
	}
	return nil, nil
}

// Retention returns the parsed cache retention. Unparseable values disable
// caching rather than failing the run.
func (c *Config) Retention() time.Duration {
	d, _ := ParseRetention(c.PromptCacheRetention)
	return d
}

// SubtitleLanguageList splits SubtitleLanguages, dropping empty entries.
func (c *Config) SubtitleLanguageList() []string {
	var out []string
	for _, lang := range strings.Split(c.SubtitleLanguages, ",") {
		if lang = strings.TrimSpace(lang); lang != "" {
			out = append(out, lang)
		}
	}
	return out
}

// Validate reports settings that would make every run fail.
func (c *Config) Validate() error {
	if c.PromptCacheShards < 1 {
		return fmt.Errorf("prompt_cache_shards must be positive, got %d", c.PromptCacheShards)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("request_timeout must be positive, got %s", c.RequestTimeout)
	}
	if c.RetryMaxAttempts < 1 {
		return fmt.Errorf("retry_max_attempts must be positive, got %d", c.RetryMaxAttempts)
	}
	if _, err := passage.ParsePolicy(c.OverflowPolicy); err != nil {
		return err
	}
	if c.SourceLanguage != "" {
		if _, err := language.Parse(c.SourceLanguage); err != nil {
			return fmt.Errorf("invalid source_language %q: %w", c.SourceLanguage, err)
		}
	}
	if _, err := language.Parse(c.TargetLanguage); err != nil {
		return fmt.Errorf("invalid target_language %q: %w", c.TargetLanguage, err)
	}
	if strings.TrimSpace(c.DataDir) == "" {
		return errors.New("data_dir is required")
	}
	return nil
}
