package stage

import (
	"context"

	"github.com/valpere/vidscribe/internal/artifact"
	"github.com/valpere/vidscribe/internal/prompt"
)

// CorrectionStage fixes recognition errors in the passage.
type CorrectionStage struct {
	deps Deps
}

func NewCorrection(deps Deps) *CorrectionStage { return &CorrectionStage{deps: deps} }

func (s *CorrectionStage) Name() Name            { return Correction }
func (s *CorrectionStage) Input() artifact.Kind  { return artifact.Passage }
func (s *CorrectionStage) Output() artifact.Kind { return artifact.Corrected }

func (s *CorrectionStage) Run(ctx context.Context, rc RunContext, in artifact.Artifact) (artifact.Artifact, error) {
	if err := checkInput(in, artifact.Passage); err != nil {
		return artifact.Artifact{}, err
	}
	text, err := s.deps.complete(ctx, rc, Correction, prompt.Modify, "", in.Content)
	if err != nil {
		return artifact.Artifact{}, err
	}
	return output(Correction, artifact.Corrected, text, in), nil
}
