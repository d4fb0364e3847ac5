package stage

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/valpere/vidscribe/internal/artifact"
	"github.com/valpere/vidscribe/internal/logging"
	"github.com/valpere/vidscribe/internal/passage"
	"github.com/valpere/vidscribe/internal/prompt"
)

// DefaultSelectionInputLimit bounds the transcript sent for model selection.
const DefaultSelectionInputLimit = 400_000

// ExtractionStage bounds the raw transcript to a passage. Transcripts within
// the limit pass through without a model call.
type ExtractionStage struct {
	deps                Deps
	selectionInputLimit int
}

// ExtractionOption customizes the extraction stage.
type ExtractionOption func(*ExtractionStage)

// WithSelectionInputLimit caps the transcript size accepted by PolicyModel.
func WithSelectionInputLimit(n int) ExtractionOption {
	return func(s *ExtractionStage) {
		if n > 0 {
			s.selectionInputLimit = n
		}
	}
}

func NewExtraction(deps Deps, opts ...ExtractionOption) *ExtractionStage {
	s := &ExtractionStage{deps: deps, selectionInputLimit: DefaultSelectionInputLimit}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *ExtractionStage) Name() Name            { return Extraction }
func (s *ExtractionStage) Input() artifact.Kind  { return artifact.RawTranscript }
func (s *ExtractionStage) Output() artifact.Kind { return artifact.Passage }

func (s *ExtractionStage) Run(ctx context.Context, rc RunContext, in artifact.Artifact) (artifact.Artifact, error) {
	if err := checkInput(in, artifact.RawTranscript); err != nil {
		return artifact.Artifact{}, err
	}
	compact := passage.Compact(in.Content)
	limit := rc.MaxPassageChars
	length := passage.Len(compact)
	if limit <= 0 || length <= limit {
		return output(Extraction, artifact.Passage, compact, in), nil
	}

	logger := logging.FromContext(ctx, s.deps.logger())
	switch rc.Policy {
	case passage.PolicyReject:
		return artifact.Artifact{}, &passage.OverLimitError{Length: length, Limit: limit}

	case passage.PolicyModel:
		if length > s.selectionInputLimit {
			return artifact.Artifact{}, &passage.OverLimitError{Length: length, Limit: s.selectionInputLimit}
		}
		extra := fmt.Sprintf("The selected passage must not exceed %d characters.", limit)
		selected, err := s.deps.complete(ctx, rc, Extraction, prompt.Extract, extra, compact)
		if err != nil {
			return artifact.Artifact{}, err
		}
		bounded := passage.Truncate(passage.Compact(selected), limit)
		if passage.Len(selected) > limit {
			logger.Warn("model selection exceeded passage limit, truncated",
				slog.Int("limit", limit),
				slog.Int("length", passage.Len(selected)),
			)
		}
		return output(Extraction, artifact.Passage, bounded, in), nil

	default:
		truncated := passage.Truncate(compact, limit)
		logger.Warn("transcript truncated to passage limit",
			slog.Int("limit", limit),
			slog.Int("length", length),
			slog.Int("kept", passage.Len(truncated)),
		)
		return output(Extraction, artifact.Passage, truncated, in), nil
	}
}
