package stage

import (
	"context"
	"log/slog"
	"regexp"

	"github.com/valpere/vidscribe/internal/artifact"
	"github.com/valpere/vidscribe/internal/logging"
	"github.com/valpere/vidscribe/internal/prompt"
)

var (
	hostTurnRe  = regexp.MustCompile(`(?m)^\s*\**Host\**\s*:`)
	guestTurnRe = regexp.MustCompile(`(?m)^\s*\**Guest\**\s*:`)
)

// DialogueStage restructures the translated passage into Host/Guest turns.
type DialogueStage struct {
	deps Deps
}

func NewDialogue(deps Deps) *DialogueStage { return &DialogueStage{deps: deps} }

func (s *DialogueStage) Name() Name            { return Dialogue }
func (s *DialogueStage) Input() artifact.Kind  { return artifact.Translated }
func (s *DialogueStage) Output() artifact.Kind { return artifact.Dialogue }

func (s *DialogueStage) Run(ctx context.Context, rc RunContext, in artifact.Artifact) (artifact.Artifact, error) {
	if err := checkInput(in, artifact.Translated); err != nil {
		return artifact.Artifact{}, err
	}
	text, err := s.deps.complete(ctx, rc, Dialogue, prompt.Dialogue, "", in.Content)
	if err != nil {
		return artifact.Artifact{}, err
	}
	if !HasTurns(text) {
		logging.FromContext(ctx, s.deps.logger()).Warn("dialogue output lacks Host/Guest turns",
			slog.String(logging.FieldEventType, "dialogue_format"),
		)
	}
	return output(Dialogue, artifact.Dialogue, text, in), nil
}

// HasTurns reports whether text contains both a Host: and a Guest: line.
func HasTurns(text string) bool {
	return hostTurnRe.MatchString(text) && guestTurnRe.MatchString(text)
}
