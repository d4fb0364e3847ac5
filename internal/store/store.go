// Package store keeps a sqlite ledger of pipeline runs and the stage events
// that produced each artifact.
package store

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"
	_ "modernc.org/sqlite"
)

// Run statuses.
const (
	RunRunning   = "running"
	RunCompleted = "completed"
	RunFailed    = "failed"
)

// Stage event statuses.
const (
	StageCompleted = "completed"
	StageSkipped   = "skipped"
	StageFailed    = "failed"
)

type Store struct {
	db *sql.DB
}

// New opens (creating if needed) the ledger at dbPath.
func New(dbPath string) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "" && dir != "." {
		if _, err := os.Stat(dir); err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One writer; avoids SQLITE_BUSY between the run and its stage events.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to migrate: %w", err)
	}

	return s, nil
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		video_id TEXT NOT NULL,
		source_url TEXT NOT NULL,
		model_alias TEXT NOT NULL,
		model TEXT NOT NULL,
		backend TEXT NOT NULL,
		prompt_version TEXT NOT NULL,
		max_passage_chars INTEGER NOT NULL,
		status TEXT NOT NULL DEFAULT 'running',
		error TEXT,
		started_at TIMESTAMP NOT NULL,
		finished_at TIMESTAMP
	);

	-- stage_events records one row per stage per run, with the lineage of the
	-- artifact it produced or reused
	CREATE TABLE IF NOT EXISTS stage_events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		stage TEXT NOT NULL,
		status TEXT NOT NULL,
		source_kind TEXT,
		source_path TEXT,
		output_kind TEXT,
		output_path TEXT,
		content_sha256 TEXT,
		chars INTEGER DEFAULT 0,
		latency_ms INTEGER DEFAULT 0,
		error TEXT,
		created_at TIMESTAMP NOT NULL,
		FOREIGN KEY (run_id) REFERENCES runs(id)
	);

	CREATE INDEX IF NOT EXISTS idx_runs_video ON runs(video_id, started_at);
	CREATE INDEX IF NOT EXISTS idx_events_run ON stage_events(run_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Run is one row of the runs table.
type Run struct {
	ID              string
	VideoID         string
	SourceURL       string
	ModelAlias      string
	Model           string
	Backend         string
	PromptVersion   string
	MaxPassageChars int
	Status          string
	Error           string
	StartedAt       time.Time
	FinishedAt      time.Time
}

// StageEvent is one row of the stage_events table.
type StageEvent struct {
	RunID         string
	Stage         string
	Status        string
	SourceKind    string
	SourcePath    string
	OutputKind    string
	OutputPath    string
	ContentSHA256 string
	Chars         int
	Latency       time.Duration
	Error         string
	CreatedAt     time.Time
}

// StartRun inserts a running row for r.
func (s *Store) StartRun(ctx context.Context, r Run) error {
	if r.StartedAt.IsZero() {
		r.StartedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, video_id, source_url, model_alias, model, backend, prompt_version, max_passage_chars, status, started_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.VideoID, r.SourceURL, r.ModelAlias, r.Model, r.Backend, r.PromptVersion, r.MaxPassageChars, RunRunning, r.StartedAt.UTC())
	return err
}

// FinishRun sets the terminal status of a run.
func (s *Store) FinishRun(ctx context.Context, runID, status, errMsg string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, error = ?, finished_at = ? WHERE id = ?`,
		status, nullString(errMsg), time.Now().UTC(), runID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("run not found: %s", runID)
	}
	return nil
}

// RecordStage appends a stage event.
func (s *Store) RecordStage(ctx context.Context, e StageEvent) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO stage_events (run_id, stage, status, source_kind, source_path, output_kind, output_path, content_sha256, chars, latency_ms, error, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.RunID, e.Stage, e.Status, nullString(e.SourceKind), nullString(e.SourcePath), nullString(e.OutputKind), nullString(e.OutputPath),
		nullString(e.ContentSHA256), e.Chars, e.Latency.Milliseconds(), nullString(e.Error), e.CreatedAt.UTC())
	return err
}

// GetRun returns a run by id.
func (s *Store) GetRun(ctx context.Context, runID string) (*Run, error) {
	row := s.db.QueryRowContext(ctx, selectRuns+` WHERE id = ?`, runID)
	r, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("run not found: %s", runID)
	}
	return r, err
}

const selectRuns = `SELECT id, video_id, source_url, model_alias, model, backend, prompt_version, max_passage_chars, status, error, started_at, finished_at FROM runs`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (*Run, error) {
	var (
		r        Run
		errMsg   sql.NullString
		finished sql.NullTime
	)
	if err := sc.Scan(&r.ID, &r.VideoID, &r.SourceURL, &r.ModelAlias, &r.Model, &r.Backend, &r.PromptVersion,
		&r.MaxPassageChars, &r.Status, &errMsg, &r.StartedAt, &finished); err != nil {
		return nil, err
	}
	r.Error = errMsg.String
	if finished.Valid {
		r.FinishedAt = finished.Time
	}
	return &r, nil
}

// ListRuns returns runs newest first, optionally filtered by video id.
// limit <= 0 returns everything.
func (s *Store) ListRuns(ctx context.Context, videoID string, limit int) ([]Run, error) {
	query := selectRuns
	var args []any
	if videoID != "" {
		query += ` WHERE video_id = ?`
		args = append(args, videoID)
	}
	query += ` ORDER BY started_at DESC, id DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, rows.Err()
}

// ListStageEvents returns the events of a run in insertion order.
func (s *Store) ListStageEvents(ctx context.Context, runID string) ([]StageEvent, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, stage, status, source_kind, source_path, output_kind, output_path, content_sha256, chars, latency_ms, error, created_at
		 FROM stage_events WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []StageEvent
	for rows.Next() {
		var (
			e                                               StageEvent
			srcKind, srcPath, outKind, outPath, sha, errMsg sql.NullString
			latencyMs                                       int64
		)
		if err := rows.Scan(&e.RunID, &e.Stage, &e.Status, &srcKind, &srcPath, &outKind, &outPath, &sha, &e.Chars, &latencyMs, &errMsg, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.SourceKind, e.SourcePath = srcKind.String, srcPath.String
		e.OutputKind, e.OutputPath = outKind.String, outPath.String
		e.ContentSHA256, e.Error = sha.String, errMsg.String
		e.Latency = time.Duration(latencyMs) * time.Millisecond
		events = append(events, e)
	}
	return events, rows.Err()
}

// Stats summarises the ledger.
type Stats struct {
	TotalRuns      int
	CompletedRuns  int
	FailedRuns     int
	RunningRuns    int
	StageEvents    int
	SkippedStages  int
	DistinctVideos int
}

// Stats returns summary statistics for the ledger.
func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{}

	err := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN status = 'completed' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = 'failed' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = 'running' THEN 1 ELSE 0 END), 0),
			COUNT(DISTINCT video_id)
		FROM runs`).Scan(
		&stats.TotalRuns,
		&stats.CompletedRuns,
		&stats.FailedRuns,
		&stats.RunningRuns,
		&stats.DistinctVideos,
	)
	if err != nil {
		return nil, err
	}

	err = s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN status = 'skipped' THEN 1 ELSE 0 END), 0)
		FROM stage_events`).Scan(&stats.StageEvents, &stats.SkippedStages)
	if err != nil {
		return nil, err
	}
	return stats, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Fingerprint returns the hex sha256 of text after trimming and NFC
// normalization, so equivalent artifacts compare equal.
func Fingerprint(text string) string {
	sum := sha256.Sum256([]byte(normalizeText(text)))
	return hex.EncodeToString(sum[:])
}

func normalizeText(text string) string {
	return norm.NFC.String(strings.TrimSpace(text))
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
