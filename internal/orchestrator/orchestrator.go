// Package orchestrator runs the stage sequence for one video: acquisition,
// then extraction, correction, translation and dialogue, persisting each
// artifact before the next stage starts.
//
// A stage whose output artifact already exists is skipped and the stored
// artifact is threaded into the next stage, so a rerun after a failure
// resumes from the last persisted artifact. The orchestrator never retries a
// stage; the first failure ends the run.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/valpere/vidscribe/internal/acquire"
	"github.com/valpere/vidscribe/internal/artifact"
	"github.com/valpere/vidscribe/internal/logging"
	"github.com/valpere/vidscribe/internal/model"
	"github.com/valpere/vidscribe/internal/passage"
	"github.com/valpere/vidscribe/internal/stage"
	"github.com/valpere/vidscribe/internal/store"
)

// Acquirer fetches the source media and its transcript.
type Acquirer interface {
	FetchVideo(ctx context.Context, url, dir, videoID string) (string, error)
	FetchTranscript(ctx context.Context, url string) (string, error)
}

// Ledger records run lineage. *store.Store satisfies it.
type Ledger interface {
	StartRun(ctx context.Context, r store.Run) error
	RecordStage(ctx context.Context, e store.StageEvent) error
	FinishRun(ctx context.Context, runID, status, errMsg string) error
}

// LanguageDetector reports the ISO 639-1 code of a text's language.
// *detector.Detector satisfies it.
type LanguageDetector interface {
	DetectISO(text string) (string, bool)
}

// Deps are the collaborators of an Orchestrator. Ledger, Detector and Logger
// are optional.
type Deps struct {
	Acquirer Acquirer
	Store    *artifact.Store
	Stages   []stage.Stage
	Ledger   Ledger
	Detector LanguageDetector
	Logger   *slog.Logger
}

// Settings configure every run started by the orchestrator.
type Settings struct {
	MaxPassageChars int
	Model           model.Alias
	Cache           stage.CacheSettings
	Target          stage.Target
	Policy          passage.Policy

	// From forces the named stage and every later stage to run again,
	// replacing their artifacts. Empty means resume.
	From stage.Name
	// SkipVideo skips the media download; only the transcript is fetched.
	SkipVideo bool
	// SourceLanguage is the expected transcript language (ISO 639-1). A
	// mismatch is logged, never fatal. Empty disables the check.
	SourceLanguage string

	// NewRunID generates run identifiers; defaults to UUIDv4.
	NewRunID func() string
}

// StageError names the stage that failed and the artifact it was producing.
type StageError struct {
	Stage stage.Name
	Path  string
	Err   error
}

func (e *StageError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("stage %s failed: %v", e.Stage, e.Err)
	}
	return fmt.Sprintf("stage %s failed (artifact %s): %v", e.Stage, e.Path, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// Result describes a finished or halted run.
type Result struct {
	RunID          string
	VideoID        string
	VideoPath      string
	TranscriptPath string
	// TranscriptLanguage is the detected transcript language, if checked.
	TranscriptLanguage string
	Artifacts          map[artifact.Kind]string
	Ran                []stage.Name
	Skipped            []stage.Name
}

type Orchestrator struct {
	deps     Deps
	settings Settings
	logger   *slog.Logger
}

// New validates that the stages form a chain starting at the raw transcript.
func New(deps Deps, settings Settings) (*Orchestrator, error) {
	if deps.Acquirer == nil {
		return nil, errors.New("orchestrator: acquirer required")
	}
	if deps.Store == nil {
		return nil, errors.New("orchestrator: artifact store required")
	}
	if len(deps.Stages) == 0 {
		return nil, errors.New("orchestrator: no stages configured")
	}
	want := artifact.RawTranscript
	for _, s := range deps.Stages {
		if s.Input() != want {
			return nil, fmt.Errorf("orchestrator: stage %s consumes %s, previous stage produces %s", s.Name(), s.Input(), want)
		}
		want = s.Output()
	}
	if settings.From != "" && indexOf(deps.Stages, settings.From) < 0 {
		return nil, fmt.Errorf("orchestrator: unknown stage %q", settings.From)
	}
	if settings.NewRunID == nil {
		settings.NewRunID = func() string { return uuid.NewString() }
	}
	return &Orchestrator{
		deps:     deps,
		settings: settings,
		logger:   logging.NewComponentLogger(deps.Logger, "orchestrator"),
	}, nil
}

func indexOf(stages []stage.Stage, name stage.Name) int {
	for i, s := range stages {
		if s.Name() == name {
			return i
		}
	}
	return -1
}

// Run executes the pipeline for url.
func (o *Orchestrator) Run(ctx context.Context, url string) (*Result, error) {
	videoID, err := acquire.ExtractVideoID(url)
	if err != nil {
		return nil, &acquire.AcquisitionError{Op: "parse url", URL: url, Err: err}
	}

	lock, err := o.deps.Store.Lock(videoID)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := lock.Release(); err != nil {
			o.logger.Warn("failed to release video lock", slog.String(logging.FieldVideoID, videoID), logging.ErrorAttr(err))
		}
	}()

	rc := stage.RunContext{
		RunID:           o.settings.NewRunID(),
		VideoID:         videoID,
		SourceURL:       url,
		MaxPassageChars: o.settings.MaxPassageChars,
		Model:           o.settings.Model,
		Cache:           o.settings.Cache,
		Target:          o.settings.Target,
		Policy:          o.settings.Policy,
	}
	ctx = logging.WithVideo(logging.WithRun(ctx, rc.RunID), videoID)
	logger := logging.FromContext(ctx, o.logger)

	result := &Result{
		RunID:     rc.RunID,
		VideoID:   videoID,
		Artifacts: make(map[artifact.Kind]string),
	}

	o.startRun(ctx, rc)
	logger.Info("run started",
		slog.String(logging.FieldEventType, logging.EventRunStart),
		slog.String("model", rc.Model.Model),
		slog.String("backend", string(rc.Model.Backend)),
	)

	err = o.run(ctx, rc, result)
	if err != nil {
		o.finishRun(ctx, rc.RunID, store.RunFailed, err.Error())
		logger.Error("run failed",
			slog.String(logging.FieldEventType, logging.EventRunFailure),
			logging.ErrorAttr(err),
		)
		return result, err
	}
	o.finishRun(ctx, rc.RunID, store.RunCompleted, "")
	logger.Info("run completed",
		slog.String(logging.FieldEventType, logging.EventRunComplete),
		slog.Int("ran", len(result.Ran)),
		slog.Int("skipped", len(result.Skipped)),
	)
	return result, nil
}

func (o *Orchestrator) run(ctx context.Context, rc stage.RunContext, result *Result) error {
	if !o.settings.SkipVideo {
		videoPath, err := o.ensureVideo(ctx, rc)
		if err != nil {
			return err
		}
		result.VideoPath = videoPath
	}

	current, err := o.ensureTranscript(ctx, rc)
	if err != nil {
		return err
	}
	result.TranscriptPath = current.Path
	result.Artifacts[artifact.RawTranscript] = current.Path
	result.TranscriptLanguage = o.checkLanguage(ctx, current.Content)

	from := -1
	if o.settings.From != "" {
		from = indexOf(o.deps.Stages, o.settings.From)
		// Downstream artifacts no longer match the artifact being replaced;
		// drop them so a failure cannot leave a stale chain behind.
		for _, s := range o.deps.Stages[from+1:] {
			if err := o.deps.Store.Remove(rc.VideoID, s.Output()); err != nil {
				return err
			}
		}
	}

	for i, s := range o.deps.Stages {
		if err := ctx.Err(); err != nil {
			return &StageError{Stage: s.Name(), Err: err}
		}
		forced := from >= 0 && i >= from
		next, skipped, err := o.runStage(ctx, rc, s, current, forced)
		if err != nil {
			return err
		}
		result.Artifacts[next.Kind] = next.Path
		if skipped {
			result.Skipped = append(result.Skipped, s.Name())
		} else {
			result.Ran = append(result.Ran, s.Name())
		}
		current = next
	}
	return nil
}

func (o *Orchestrator) ensureVideo(ctx context.Context, rc stage.RunContext) (string, error) {
	logger := logging.FromContext(ctx, o.logger)
	path, ok, err := o.deps.Store.FindVideo(rc.VideoID)
	if err != nil {
		return "", err
	}
	if ok {
		logger.Info("video already downloaded", slog.String(logging.FieldPath, path))
		return path, nil
	}
	path, err = o.deps.Acquirer.FetchVideo(ctx, rc.SourceURL, o.deps.Store.VideoDir(), rc.VideoID)
	if err != nil {
		return "", err
	}
	logger.Info("video downloaded", slog.String(logging.FieldPath, path))
	return path, nil
}

func (o *Orchestrator) ensureTranscript(ctx context.Context, rc stage.RunContext) (artifact.Artifact, error) {
	logger := logging.FromContext(ctx, o.logger)
	ok, err := o.deps.Store.Exists(rc.VideoID, artifact.RawTranscript)
	if err != nil {
		return artifact.Artifact{}, err
	}
	if !ok {
		text, err := o.deps.Acquirer.FetchTranscript(ctx, rc.SourceURL)
		if err != nil {
			return artifact.Artifact{}, err
		}
		if _, err := o.deps.Store.Write(rc.VideoID, artifact.RawTranscript, text); err != nil {
			return artifact.Artifact{}, err
		}
		logger.Info("transcript saved", slog.Int("chars", passage.Len(text)))
	}
	return o.deps.Store.Read(rc.VideoID, artifact.RawTranscript)
}

func (o *Orchestrator) checkLanguage(ctx context.Context, text string) string {
	if o.deps.Detector == nil || o.settings.SourceLanguage == "" {
		return ""
	}
	logger := logging.FromContext(ctx, o.logger)
	detected, ok := o.deps.Detector.DetectISO(text)
	if !ok {
		logger.Debug("transcript language undetermined")
		return ""
	}
	if !strings.EqualFold(detected, o.settings.SourceLanguage) {
		logger.Warn("transcript language differs from expected source language",
			slog.String("detected", detected),
			slog.String("expected", o.settings.SourceLanguage),
		)
	}
	return detected
}

// runStage returns the stage's output artifact, reusing the stored one when
// present and not forced.
func (o *Orchestrator) runStage(ctx context.Context, rc stage.RunContext, s stage.Stage, in artifact.Artifact, forced bool) (artifact.Artifact, bool, error) {
	ctx = logging.WithStage(ctx, string(s.Name()))
	logger := logging.FromContext(ctx, o.logger)

	path, err := o.deps.Store.Path(rc.VideoID, s.Output())
	if err != nil {
		return artifact.Artifact{}, false, &StageError{Stage: s.Name(), Err: err}
	}

	if !forced {
		exists, err := o.deps.Store.Exists(rc.VideoID, s.Output())
		if err != nil {
			return artifact.Artifact{}, false, &StageError{Stage: s.Name(), Path: path, Err: err}
		}
		if exists {
			stored, err := o.deps.Store.Read(rc.VideoID, s.Output())
			if err != nil {
				return artifact.Artifact{}, false, &StageError{Stage: s.Name(), Path: path, Err: err}
			}
			stored.Lineage = artifact.Lineage{Stage: string(s.Name()), Source: in.Kind, SourcePath: in.Path}
			logger.Info("stage skipped, artifact exists",
				slog.String(logging.FieldEventType, logging.EventStageSkip),
				slog.String(logging.FieldPath, path),
			)
			o.recordStage(ctx, rc, s, stored, store.StageSkipped, 0, nil)
			return stored, true, nil
		}
	}

	logger.Info("stage started",
		slog.String(logging.FieldEventType, logging.EventStageStart),
		slog.Int("input_chars", passage.Len(in.Content)),
	)
	start := time.Now()
	out, err := s.Run(ctx, rc, in)
	if err == nil {
		out.Path, err = o.deps.Store.Write(rc.VideoID, s.Output(), out.Content)
	}
	elapsed := time.Since(start)
	if err != nil {
		logger.Error("stage failed",
			slog.String(logging.FieldEventType, logging.EventStageFailure),
			slog.String(logging.FieldPath, path),
			logging.ErrorAttr(err),
		)
		failed := artifact.Artifact{Kind: s.Output(), Lineage: artifact.Lineage{Stage: string(s.Name()), Source: in.Kind, SourcePath: in.Path}}
		o.recordStage(ctx, rc, s, failed, store.StageFailed, elapsed, err)
		return artifact.Artifact{}, false, &StageError{Stage: s.Name(), Path: path, Err: err}
	}

	logger.Info("stage completed",
		slog.String(logging.FieldEventType, logging.EventStageComplete),
		slog.String(logging.FieldPath, out.Path),
		slog.Int("output_chars", passage.Len(out.Content)),
		slog.Duration("elapsed", elapsed),
	)
	o.recordStage(ctx, rc, s, out, store.StageCompleted, elapsed, nil)
	return out, false, nil
}

// Ledger failures are logged and never fail the run: the artifacts on disk
// remain the source of truth for resumption.

func (o *Orchestrator) startRun(ctx context.Context, rc stage.RunContext) {
	if o.deps.Ledger == nil {
		return
	}
	err := o.deps.Ledger.StartRun(ctx, store.Run{
		ID:              rc.RunID,
		VideoID:         rc.VideoID,
		SourceURL:       rc.SourceURL,
		ModelAlias:      rc.Model.Name,
		Model:           rc.Model.Model,
		Backend:         string(rc.Model.Backend),
		PromptVersion:   rc.Cache.PromptVersion,
		MaxPassageChars: rc.MaxPassageChars,
	})
	if err != nil {
		logging.FromContext(ctx, o.logger).Warn("ledger start failed", logging.ErrorAttr(err))
	}
}

func (o *Orchestrator) recordStage(ctx context.Context, rc stage.RunContext, s stage.Stage, a artifact.Artifact, status string, elapsed time.Duration, stageErr error) {
	if o.deps.Ledger == nil {
		return
	}
	e := store.StageEvent{
		RunID:      rc.RunID,
		Stage:      string(s.Name()),
		Status:     status,
		SourceKind: a.Lineage.Source.String(),
		SourcePath: a.Lineage.SourcePath,
		OutputKind: s.Output().String(),
		OutputPath: a.Path,
		Chars:      passage.Len(a.Content),
		Latency:    elapsed,
	}
	if a.Content != "" {
		e.ContentSHA256 = store.Fingerprint(a.Content)
	}
	if stageErr != nil {
		e.Error = stageErr.Error()
	}
	if err := o.deps.Ledger.RecordStage(ctx, e); err != nil {
		logging.FromContext(ctx, o.logger).Warn("ledger record failed", logging.ErrorAttr(err))
	}
}

func (o *Orchestrator) finishRun(ctx context.Context, runID, status, errMsg string) {
	if o.deps.Ledger == nil {
		return
	}
	// Record the outcome even when ctx was cancelled.
	if err := o.deps.Ledger.FinishRun(context.WithoutCancel(ctx), runID, status, errMsg); err != nil {
		logging.FromContext(ctx, o.logger).Warn("ledger finish failed", logging.ErrorAttr(err))
	}
}

// ArtifactStatus describes one artifact on disk.
type ArtifactStatus struct {
	Kind    artifact.Kind
	Path    string
	Exists  bool
	Size    int64
	ModTime time.Time
}

// StatusReport lists a video's artifacts and the stage a resume would start at.
type StatusReport struct {
	VideoID   string
	VideoPath string
	Artifacts []ArtifactStatus
	// NextStage is empty when every stage artifact exists.
	NextStage stage.Name
}

// Status inspects the artifacts for videoID without running anything.
func (o *Orchestrator) Status(videoID string) (*StatusReport, error) {
	report := &StatusReport{VideoID: videoID}
	videoPath, ok, err := o.deps.Store.FindVideo(videoID)
	if err != nil {
		return nil, err
	}
	if ok {
		report.VideoPath = videoPath
	}

	present := make(map[artifact.Kind]bool)
	for _, kind := range artifact.Kinds {
		path, err := o.deps.Store.Path(videoID, kind)
		if err != nil {
			return nil, err
		}
		st := ArtifactStatus{Kind: kind, Path: path}
		if info, err := os.Stat(path); err == nil && info.Size() > 0 {
			st.Exists = true
			st.Size = info.Size()
			st.ModTime = info.ModTime()
		} else if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, &artifact.IOError{Op: "stat", Path: path, Err: err}
		}
		present[kind] = st.Exists
		report.Artifacts = append(report.Artifacts, st)
	}

	for _, s := range o.deps.Stages {
		if !present[s.Output()] {
			report.NextStage = s.Name()
			break
		}
	}
	return report, nil
}
