// Package stage implements the four model-backed transformation steps of a
// run: extraction, correction, translation and dialogue.
//
// Each stage loads its template from a prompt.Provider on every invocation,
// sends one completion request, and returns a new artifact. Stages never
// touch the filesystem; persisting output is the orchestrator's job.
package stage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/valpere/vidscribe/internal/artifact"
	"github.com/valpere/vidscribe/internal/completion"
	"github.com/valpere/vidscribe/internal/logging"
	"github.com/valpere/vidscribe/internal/model"
	"github.com/valpere/vidscribe/internal/passage"
	"github.com/valpere/vidscribe/internal/prompt"
)

// Name identifies a stage.
type Name string

const (
	Extraction  Name = "extraction"
	Correction  Name = "correction"
	Translation Name = "translation"
	Dialogue    Name = "dialogue"
)

// Order is the fixed stage sequence.
var Order = []Name{Extraction, Correction, Translation, Dialogue}

// ParseName accepts a stage name (case-insensitive).
func ParseName(s string) (Name, error) {
	n := Name(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Order {
		if n == known {
			return n, nil
		}
	}
	return "", fmt.Errorf("unknown stage %q (want extraction, correction, translation or dialogue)", s)
}

// userPrefix introduces the input text in every user message.
const userPrefix = "the passage is:\n"

// ErrEmptyInput is returned when the input artifact has no text.
var ErrEmptyInput = errors.New("input artifact is empty")

// Completer sends one completion request. *completion.Client satisfies it.
type Completer interface {
	Complete(ctx context.Context, req completion.Request) (string, error)
}

// CacheSettings carry the advisory cache configuration for a run.
type CacheSettings struct {
	PromptVersion string
	Retention     time.Duration
	Shards        int
}

// RunContext is the immutable identity and configuration of one run. It is
// passed by value so stages cannot alter it.
type RunContext struct {
	RunID           string
	VideoID         string
	SourceURL       string
	MaxPassageChars int
	Model           model.Alias
	Cache           CacheSettings
	Target          Target
	Policy          passage.Policy
}

// Stage turns one artifact into the next.
type Stage interface {
	Name() Name
	Input() artifact.Kind
	Output() artifact.Kind
	Run(ctx context.Context, rc RunContext, in artifact.Artifact) (artifact.Artifact, error)
}

// Deps are shared by every stage.
type Deps struct {
	Completer Completer
	Prompts   prompt.Provider
	Logger    *slog.Logger
}

func (d Deps) logger() *slog.Logger {
	if d.Logger == nil {
		return logging.NewNop()
	}
	return d.Logger
}

// Pipeline returns the four stages in order.
func Pipeline(deps Deps) []Stage {
	return []Stage{
		NewExtraction(deps),
		NewCorrection(deps),
		NewTranslation(deps),
		NewDialogue(deps),
	}
}

// complete loads template, appends extra system lines, and sends text.
func (d Deps) complete(ctx context.Context, rc RunContext, name Name, template, extra, text string) (string, error) {
	system, err := d.Prompts.Load(template)
	if err != nil {
		return "", err
	}
	if extra != "" {
		system += "\n\n" + extra
	}
	return d.Completer.Complete(ctx, completion.Request{
		Stage:  string(name),
		System: system,
		User:   userPrefix + text,
		Model:  rc.Model,
		Cache: completion.CacheOptions{
			Stage:         string(name),
			PromptVersion: rc.Cache.PromptVersion,
			Retention:     rc.Cache.Retention,
			Shards:        rc.Cache.Shards,
		},
	})
}

func output(name Name, kind artifact.Kind, content string, in artifact.Artifact) artifact.Artifact {
	return artifact.Artifact{
		Kind:    kind,
		Content: content,
		Lineage: artifact.Lineage{
			Stage:      string(name),
			Source:     in.Kind,
			SourcePath: in.Path,
		},
	}
}

func checkInput(in artifact.Artifact, want artifact.Kind) error {
	if in.Kind != want {
		return fmt.Errorf("expected %s input, got %s", want, in.Kind)
	}
	if strings.TrimSpace(in.Content) == "" {
		return fmt.Errorf("%s: %w", in.Kind, ErrEmptyInput)
	}
	return nil
}
