package model

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

type overrideFile struct {
	Aliases map[string]overrideEntry `toml:"aliases"`
}

type overrideEntry struct {
	Backend         string   `toml:"backend"`
	Model           string   `toml:"model"`
	ReasoningEffort string   `toml:"reasoning_effort"`
	Temperature     *float64 `toml:"temperature"`
	MaxOutputTokens int      `toml:"max_output_tokens"`
}

// LoadOverrides reads alias definitions from a TOML file of the form
//
//	[aliases.fast]
//	backend = "openrouter"
//	model = "mistralai/mistral-nemo"
//	temperature = 0.2
//
// An empty path yields no overrides.
func LoadOverrides(path string) ([]Alias, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("models file not found: %s", path)
		}
		return nil, fmt.Errorf("failed to read models file: %w", err)
	}
	var parsed overrideFile
	if err := toml.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse models file %s: %w", path, err)
	}

	names := make([]string, 0, len(parsed.Aliases))
	for name := range parsed.Aliases {
		names = append(names, name)
	}
	sort.Strings(names)

	aliases := make([]Alias, 0, len(names))
	for _, name := range names {
		entry := parsed.Aliases[name]
		a := Alias{
			Name:    normalizeName(name),
			Backend: Backend(strings.ToLower(strings.TrimSpace(entry.Backend))),
			Model:   strings.TrimSpace(entry.Model),
			Params: Params{
				ReasoningEffort: strings.ToLower(strings.TrimSpace(entry.ReasoningEffort)),
				Temperature:     entry.Temperature,
				MaxOutputTokens: entry.MaxOutputTokens,
			},
		}
		if a.Backend == "" {
			a.Backend = inferBackend(a.Model)
		}
		if err := a.Validate(); err != nil {
			return nil, fmt.Errorf("models file %s: %w", path, err)
		}
		aliases = append(aliases, a)
	}
	return aliases, nil
}
