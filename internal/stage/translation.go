package stage

import (
	"context"
	"fmt"

	"github.com/valpere/vidscribe/internal/artifact"
	"github.com/valpere/vidscribe/internal/prompt"
)

// TranslationStage renders the corrected passage in the run's target
// language and variant.
type TranslationStage struct {
	deps Deps
}

func NewTranslation(deps Deps) *TranslationStage { return &TranslationStage{deps: deps} }

func (s *TranslationStage) Name() Name            { return Translation }
func (s *TranslationStage) Input() artifact.Kind  { return artifact.Corrected }
func (s *TranslationStage) Output() artifact.Kind { return artifact.Translated }

func (s *TranslationStage) Run(ctx context.Context, rc RunContext, in artifact.Artifact) (artifact.Artifact, error) {
	if err := checkInput(in, artifact.Corrected); err != nil {
		return artifact.Artifact{}, err
	}
	extra := fmt.Sprintf("Target language: %s [%s].", rc.Target.Describe(), rc.Target.Tag)
	text, err := s.deps.complete(ctx, rc, Translation, prompt.Translate, extra, in.Content)
	if err != nil {
		return artifact.Artifact{}, err
	}
	return output(Translation, artifact.Translated, text, in), nil
}
