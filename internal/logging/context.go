package logging

import (
	"context"
	"log/slog"
)

const (
	// FieldComponent is the structured key for component names.
	FieldComponent = "component"
	// FieldRunID is the structured key for run identifiers.
	FieldRunID = "run_id"
	// FieldVideoID is the structured key for video identifiers.
	FieldVideoID = "video_id"
	// FieldStage is the structured key for pipeline stage names.
	FieldStage = "stage"
	// FieldEventType classifies lifecycle events (stage_start, stage_skip, ...).
	FieldEventType = "event_type"
	// FieldPath is the structured key for artifact paths.
	FieldPath = "path"
)

// Lifecycle event types.
const (
	EventRunStart      = "run_start"
	EventRunComplete   = "run_complete"
	EventRunFailure    = "run_failure"
	EventStageStart    = "stage_start"
	EventStageSkip     = "stage_skip"
	EventStageComplete = "stage_complete"
	EventStageFailure  = "stage_failure"
)

type ctxKey int

const (
	runKey ctxKey = iota
	videoKey
	stageKey
)

// WithRun stamps ctx with a run identifier.
func WithRun(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runKey, runID)
}

// WithVideo stamps ctx with a video identifier.
func WithVideo(ctx context.Context, videoID string) context.Context {
	return context.WithValue(ctx, videoKey, videoID)
}

// WithStage stamps ctx with a stage name.
func WithStage(ctx context.Context, stage string) context.Context {
	return context.WithValue(ctx, stageKey, stage)
}

// ContextFields extracts the attributes stamped on ctx.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 3)
	if v, ok := ctx.Value(runKey).(string); ok && v != "" {
		fields = append(fields, slog.String(FieldRunID, v))
	}
	if v, ok := ctx.Value(videoKey).(string); ok && v != "" {
		fields = append(fields, slog.String(FieldVideoID, v))
	}
	if v, ok := ctx.Value(stageKey).(string); ok && v != "" {
		fields = append(fields, slog.String(FieldStage, v))
	}
	return fields
}

// FromContext returns logger augmented with the fields stamped on ctx.
func FromContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	args := make([]any, 0, len(fields))
	for _, f := range fields {
		args = append(args, f)
	}
	return logger.With(args...)
}
