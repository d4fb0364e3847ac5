// Package model maps user-facing model names to concrete backend
// configurations.
//
// Resolution is a pure lookup over a static table plus the input string.
// Names missing from the table pass through when they carry a backend prefix
// ("ollama:mistral") or have the shape of a known model family; anything else
// is an UnknownModelError.
package model

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// Backend identifies the endpoint family a model is served from.
type Backend string

const (
	BackendOpenAI     Backend = "openai"
	BackendOpenRouter Backend = "openrouter"
	BackendGemini     Backend = "gemini"
	BackendOllama     Backend = "ollama"
)

// Backends lists every supported endpoint family.
var Backends = []Backend{BackendOpenAI, BackendOpenRouter, BackendGemini, BackendOllama}

func (b Backend) valid() bool {
	for _, known := range Backends {
		if b == known {
			return true
		}
	}
	return false
}

// Params are the fixed invocation parameters attached to an alias.
type Params struct {
	ReasoningEffort string   `toml:"reasoning_effort" json:"reasoning_effort,omitempty"`
	Temperature     *float64 `toml:"temperature" json:"temperature,omitempty"`
	MaxOutputTokens int      `toml:"max_output_tokens" json:"max_output_tokens,omitempty"`
}

// Alias is a resolved model configuration.
type Alias struct {
	Name    string  `json:"name"`
	Backend Backend `json:"backend"`
	Model   string  `json:"model"`
	Params  Params  `json:"params"`
}

var reasoningEfforts = map[string]struct{}{
	"minimal": {}, "low": {}, "medium": {}, "high": {},
}

// Validate reports missing or malformed fields.
func (a Alias) Validate() error {
	if strings.TrimSpace(a.Name) == "" {
		return fmt.Errorf("alias name is required")
	}
	if !a.Backend.valid() {
		return fmt.Errorf("alias %q: unsupported backend %q", a.Name, a.Backend)
	}
	if strings.TrimSpace(a.Model) == "" {
		return fmt.Errorf("alias %q: model identifier is required", a.Name)
	}
	if effort := a.Params.ReasoningEffort; effort != "" {
		if _, ok := reasoningEfforts[effort]; !ok {
			return fmt.Errorf("alias %q: unsupported reasoning effort %q", a.Name, effort)
		}
	}
	if t := a.Params.Temperature; t != nil && (*t < 0 || *t > 2) {
		return fmt.Errorf("alias %q: temperature %.2f out of range [0, 2]", a.Name, *t)
	}
	if a.Params.MaxOutputTokens < 0 {
		return fmt.Errorf("alias %q: max_output_tokens must not be negative", a.Name)
	}
	return nil
}

// UnknownModelError is returned for names that match no alias and are not
// valid pass-through identifiers.
type UnknownModelError struct {
	Name  string
	Known []string
}

func (e *UnknownModelError) Error() string {
	return fmt.Sprintf("unknown model %q (known aliases: %s)", e.Name, strings.Join(e.Known, ", "))
}

// passThroughRe accepts identifiers such as "gpt-4.1-mini",
// "gemini-2.5-flash" or "qwen/qwen2.5-72b-instruct:free".
var passThroughRe = regexp.MustCompile(`^[a-z0-9][a-z0-9._:-]*(/[a-z0-9][a-z0-9._:-]*)?$`)

func zero() *float64 {
	v := 0.0
	return &v
}

func builtinAliases() map[string]Alias {
	table := []Alias{
		{Name: "gpt40", Backend: BackendOpenAI, Model: "gpt-4o", Params: Params{Temperature: zero()}},
		{Name: "gpt-40", Backend: BackendOpenAI, Model: "gpt-4o", Params: Params{Temperature: zero()}},
		{Name: "gpt4o", Backend: BackendOpenAI, Model: "gpt-4o", Params: Params{Temperature: zero()}},
		{Name: "gpt4o-mini", Backend: BackendOpenAI, Model: "gpt-4o-mini", Params: Params{Temperature: zero()}},
		{Name: "gpt-4o-mini", Backend: BackendOpenAI, Model: "gpt-4o-mini", Params: Params{Temperature: zero()}},
		{Name: "gpt5-low", Backend: BackendOpenAI, Model: "gpt-5", Params: Params{ReasoningEffort: "low"}},
		{Name: "gpt5-medium", Backend: BackendOpenAI, Model: "gpt-5", Params: Params{ReasoningEffort: "medium"}},
		{Name: "gpt5-high", Backend: BackendOpenAI, Model: "gpt-5", Params: Params{ReasoningEffort: "high"}},
		{Name: "gpt5-nano", Backend: BackendOpenAI, Model: "gpt-5-nano", Params: Params{ReasoningEffort: "minimal"}},
		{Name: "gpt-5-nano", Backend: BackendOpenAI, Model: "gpt-5-nano", Params: Params{ReasoningEffort: "minimal"}},
		{Name: "gpt5-1", Backend: BackendOpenAI, Model: "gpt-5.1", Params: Params{ReasoningEffort: "low"}},
		{Name: "gemini-flash", Backend: BackendGemini, Model: "gemini-2.5-flash", Params: Params{Temperature: zero()}},
		{Name: "gemini-pro", Backend: BackendGemini, Model: "gemini-2.5-pro", Params: Params{Temperature: zero()}},
		{Name: "or-gemini-flash", Backend: BackendOpenRouter, Model: "google/gemini-2.5-flash", Params: Params{Temperature: zero()}},
		{Name: "or-qwen", Backend: BackendOpenRouter, Model: "qwen/qwen2.5-72b-instruct", Params: Params{Temperature: zero()}},
		{Name: "ollama-gemma", Backend: BackendOllama, Model: "gemma3:12b", Params: Params{Temperature: zero()}},
		{Name: "ollama-qwen", Backend: BackendOllama, Model: "qwen3:14b", Params: Params{Temperature: zero()}},
	}
	out := make(map[string]Alias, len(table))
	for _, a := range table {
		out[a.Name] = a
	}
	return out
}

// Resolver looks aliases up in a read-only table.
type Resolver struct {
	table map[string]Alias
}

// NewResolver returns a resolver over the built-in alias table merged with
// the optional overrides. Overrides replace built-ins sharing a name.
func NewResolver(overrides ...Alias) (*Resolver, error) {
	table := builtinAliases()
	for _, a := range overrides {
		a.Name = normalizeName(a.Name)
		if err := a.Validate(); err != nil {
			return nil, err
		}
		table[a.Name] = a
	}
	return &Resolver{table: table}, nil
}

// Resolve maps name to an Alias.
func (r *Resolver) Resolve(name string) (Alias, error) {
	key := normalizeName(name)
	if a, ok := r.table[key]; ok {
		return a, nil
	}
	if a, ok := passThrough(key); ok {
		a.Name = strings.TrimSpace(name)
		return a, nil
	}
	return Alias{}, &UnknownModelError{Name: name, Known: r.names()}
}

// Aliases returns the table entries sorted by name.
func (r *Resolver) Aliases() []Alias {
	out := make([]Alias, 0, len(r.table))
	for _, a := range r.table {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (r *Resolver) names() []string {
	names := make([]string, 0, len(r.table))
	for name := range r.table {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func passThrough(id string) (Alias, bool) {
	backend := Backend("")
	for _, b := range Backends {
		if prefix := string(b) + ":"; strings.HasPrefix(id, prefix) {
			backend = b
			id = strings.TrimPrefix(id, prefix)
			break
		}
	}
	if !passThroughRe.MatchString(id) {
		return Alias{}, false
	}
	if backend == "" {
		if !familyShaped(id) {
			return Alias{}, false
		}
		backend = inferBackend(id)
	}
	a := Alias{Backend: backend, Model: id}
	if backend == BackendOpenAI && isReasoningModel(id) {
		a.Params.ReasoningEffort = "low"
	} else {
		a.Params.Temperature = zero()
	}
	return a, true
}

// familyShaped reports whether an unprefixed id names a model family the
// backends serve. Bare words are rejected so alias typos never reach the
// network.
func familyShaped(id string) bool {
	switch {
	case strings.HasPrefix(id, "gpt-"), strings.HasPrefix(id, "gemini-"):
		return true
	case strings.Contains(id, "/"), strings.Contains(id, ":"):
		return true
	}
	for _, family := range []string{"o1", "o3", "o4"} {
		if id == family || strings.HasPrefix(id, family+"-") {
			return true
		}
	}
	return false
}

func inferBackend(id string) Backend {
	switch {
	case strings.Contains(id, "/"):
		return BackendOpenRouter
	case strings.HasPrefix(id, "gemini-"):
		return BackendGemini
	case strings.Contains(id, ":"):
		// Local model tags look like "qwen3:14b".
		return BackendOllama
	default:
		return BackendOpenAI
	}
}

func isReasoningModel(id string) bool {
	return strings.HasPrefix(id, "gpt-5") || strings.HasPrefix(id, "o1") ||
		strings.HasPrefix(id, "o3") || strings.HasPrefix(id, "o4")
}
