package model

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestResolver_BuiltinTableIsTotal(t *testing.T) {
	r, err := NewResolver()
	if err != nil {
		t.Fatalf("NewResolver failed: %v", err)
	}

	for _, a := range r.Aliases() {
		got, err := r.Resolve(a.Name)
		if err != nil {
			t.Errorf("Resolve(%q) failed: %v", a.Name, err)
			continue
		}
		if err := got.Validate(); err != nil {
			t.Errorf("alias %q invalid: %v", a.Name, err)
		}
		if got.Model == "" || got.Backend == "" {
			t.Errorf("alias %q has missing fields: %+v", a.Name, got)
		}
	}
}

func TestResolver_SymbolicAliases(t *testing.T) {
	r, _ := NewResolver()

	tests := []struct {
		name    string
		model   string
		backend Backend
		effort  string
	}{
		{"gpt5-low", "gpt-5", BackendOpenAI, "low"},
		{"gpt5-medium", "gpt-5", BackendOpenAI, "medium"},
		{"gpt5-high", "gpt-5", BackendOpenAI, "high"},
		{"gpt40", "gpt-4o", BackendOpenAI, ""},
		{"GPT4o-Mini", "gpt-4o-mini", BackendOpenAI, ""},
		{"gemini-flash", "gemini-2.5-flash", BackendGemini, ""},
		{"or-qwen", "qwen/qwen2.5-72b-instruct", BackendOpenRouter, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := r.Resolve(tt.name)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if a.Model != tt.model {
				t.Errorf("expected model %q, got %q", tt.model, a.Model)
			}
			if a.Backend != tt.backend {
				t.Errorf("expected backend %q, got %q", tt.backend, a.Backend)
			}
			if a.Params.ReasoningEffort != tt.effort {
				t.Errorf("expected effort %q, got %q", tt.effort, a.Params.ReasoningEffort)
			}
		})
	}
}

func TestResolver_PassThrough(t *testing.T) {
	r, _ := NewResolver()

	tests := []struct {
		input   string
		model   string
		backend Backend
	}{
		{"gpt-4.1-mini", "gpt-4.1-mini", BackendOpenAI},
		{"gemini-2.0-flash", "gemini-2.0-flash", BackendGemini},
		{"mistralai/mistral-nemo:free", "mistralai/mistral-nemo:free", BackendOpenRouter},
		{"openrouter:openai/gpt-4o", "openai/gpt-4o", BackendOpenRouter},
		{"gemini:gemini-exp", "gemini-exp", BackendGemini},
		{"llama3.1:8b", "llama3.1:8b", BackendOllama},
		{"ollama:mistral", "mistral", BackendOllama},
		{"o3-mini", "o3-mini", BackendOpenAI},
		{"o1", "o1", BackendOpenAI},
		{"openai:davinci-002", "davinci-002", BackendOpenAI},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			a, err := r.Resolve(tt.input)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if a.Model != tt.model || a.Backend != tt.backend {
				t.Errorf("Resolve(%q) = %s/%s, want %s/%s", tt.input, a.Backend, a.Model, tt.backend, tt.model)
			}
			if err := a.Validate(); err != nil {
				t.Errorf("pass-through alias invalid: %v", err)
			}
		})
	}
}

func TestResolver_PassThroughReasoningDefault(t *testing.T) {
	r, _ := NewResolver()

	a, err := r.Resolve("gpt-5-mini")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.Params.ReasoningEffort != "low" {
		t.Errorf("expected low effort for reasoning pass-through, got %q", a.Params.ReasoningEffort)
	}
	if a.Params.Temperature != nil {
		t.Error("expected no temperature for reasoning model")
	}
}

func TestResolver_Unknown(t *testing.T) {
	r, _ := NewResolver()

	for _, name := range []string{
		"", "gpt 5", "Not A Model!", "/leading-slash", "a/b/c",
		"gpt5-lo", "banana", "GPT5-LOWW", "o3mini", "gemini",
	} {
		_, err := r.Resolve(name)
		var unknown *UnknownModelError
		if !errors.As(err, &unknown) {
			t.Errorf("Resolve(%q): expected UnknownModelError, got %v", name, err)
			continue
		}
		if len(unknown.Known) == 0 {
			t.Error("expected known aliases in error")
		}
	}
}

func TestNewResolver_RejectsInvalidOverride(t *testing.T) {
	_, err := NewResolver(Alias{Name: "broken", Backend: "carrier-pigeon", Model: "x"})
	if err == nil {
		t.Error("expected error for unsupported backend")
	}
}

func TestLoadOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "models.toml")
	content := `
[aliases.fast]
backend = "openrouter"
model = "mistralai/mistral-nemo"
temperature = 0.2

[aliases.gpt5-low]
model = "gpt-5"
reasoning_effort = "medium"
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write models file: %v", err)
	}

	overrides, err := LoadOverrides(path)
	if err != nil {
		t.Fatalf("LoadOverrides failed: %v", err)
	}
	if len(overrides) != 2 {
		t.Fatalf("expected 2 overrides, got %d", len(overrides))
	}

	r, err := NewResolver(overrides...)
	if err != nil {
		t.Fatalf("NewResolver failed: %v", err)
	}

	fast, err := r.Resolve("fast")
	if err != nil {
		t.Fatalf("Resolve(fast) failed: %v", err)
	}
	if fast.Backend != BackendOpenRouter || fast.Params.Temperature == nil || *fast.Params.Temperature != 0.2 {
		t.Errorf("unexpected fast alias: %+v", fast)
	}

	low, _ := r.Resolve("gpt5-low")
	if low.Params.ReasoningEffort != "medium" {
		t.Errorf("expected override to replace builtin, got effort %q", low.Params.ReasoningEffort)
	}
}

func TestLoadOverrides_EmptyPath(t *testing.T) {
	overrides, err := LoadOverrides("")
	if err != nil || overrides != nil {
		t.Errorf("expected nil, nil for empty path; got %v, %v", overrides, err)
	}
}

func TestLoadOverrides_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "models.toml")
	os.WriteFile(path, []byte("[aliases.bad]\nbackend = \"openai\"\n"), 0644)

	if _, err := LoadOverrides(path); err == nil {
		t.Error("expected error for alias without model")
	}
}
