package stage

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// Target is the translation language and regional variant.
type Target struct {
	Tag     language.Tag
	Variant string
}

// NewTarget parses a BCP 47 tag such as "tr-TR".
func NewTarget(tag, variant string) (Target, error) {
	t, err := language.Parse(strings.TrimSpace(tag))
	if err != nil {
		return Target{}, fmt.Errorf("invalid target language %q: %w", tag, err)
	}
	return Target{Tag: t, Variant: strings.TrimSpace(variant)}, nil
}

// Describe renders the target for the model, e.g. "Turkish (Istanbul)".
func (t Target) Describe() string {
	base, _ := t.Tag.Base()
	name := display.English.Languages().Name(base)
	if name == "" {
		name = base.String()
	}
	switch {
	case t.Variant != "":
		return fmt.Sprintf("%s (%s)", name, cases.Title(language.English).String(t.Variant))
	default:
		if region, conf := t.Tag.Region(); conf == language.Exact {
			return fmt.Sprintf("%s (%s)", name, display.English.Regions().Name(region))
		}
		return name
	}
}
