package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func sampleRun(id, video string) Run {
	return Run{
		ID:              id,
		VideoID:         video,
		SourceURL:       "https://youtu.be/" + video,
		ModelAlias:      "gpt5-low",
		Model:           "gpt-5",
		Backend:         "openai",
		PromptVersion:   "v1",
		MaxPassageChars: 6000,
	}
}

func TestStore_New_InvalidPath(t *testing.T) {
	_, err := New("/nonexistent/path/test.db")
	if err == nil {
		t.Error("expected error for invalid path")
	}
}

func TestStore_RunLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.StartRun(ctx, sampleRun("run-1", "vid")); err != nil {
		t.Fatalf("StartRun failed: %v", err)
	}
	r, err := s.GetRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}
	if r.Status != RunRunning || r.Model != "gpt-5" || r.MaxPassageChars != 6000 {
		t.Errorf("unexpected run %+v", r)
	}
	if !r.FinishedAt.IsZero() {
		t.Errorf("expected no finish time, got %v", r.FinishedAt)
	}

	if err := s.FinishRun(ctx, "run-1", RunFailed, "correction: http 401"); err != nil {
		t.Fatalf("FinishRun failed: %v", err)
	}
	r, _ = s.GetRun(ctx, "run-1")
	if r.Status != RunFailed || r.Error != "correction: http 401" || r.FinishedAt.IsZero() {
		t.Errorf("unexpected finished run %+v", r)
	}
}

func TestStore_FinishRunUnknown(t *testing.T) {
	s := newTestStore(t)
	if err := s.FinishRun(context.Background(), "missing", RunCompleted, ""); err == nil {
		t.Error("expected error for unknown run")
	}
}

func TestStore_StageEvents(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	if err := s.StartRun(ctx, sampleRun("run-1", "vid")); err != nil {
		t.Fatal(err)
	}

	events := []StageEvent{
		{RunID: "run-1", Stage: "extraction", Status: StageSkipped, OutputKind: "passage", OutputPath: "/d/output/vid_passage.txt"},
		{RunID: "run-1", Stage: "correction", Status: StageCompleted, SourceKind: "passage", SourcePath: "/d/output/vid_passage.txt",
			OutputKind: "corrected", OutputPath: "/d/output/vid_corrected.txt", ContentSHA256: Fingerprint("x"), Chars: 1, Latency: 1500 * time.Millisecond},
		{RunID: "run-1", Stage: "translation", Status: StageFailed, Error: "boom"},
	}
	for _, e := range events {
		if err := s.RecordStage(ctx, e); err != nil {
			t.Fatalf("RecordStage failed: %v", err)
		}
	}

	got, err := s.ListStageEvents(ctx, "run-1")
	if err != nil {
		t.Fatalf("ListStageEvents failed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 events, got %d", len(got))
	}
	if got[1].Stage != "correction" || got[1].SourcePath != "/d/output/vid_passage.txt" || got[1].Latency != 1500*time.Millisecond {
		t.Errorf("unexpected event %+v", got[1])
	}
	if got[2].Error != "boom" || got[2].OutputPath != "" {
		t.Errorf("unexpected failure event %+v", got[2])
	}
}

func TestStore_ListRuns(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Now().Add(-time.Hour)
	for i, id := range []string{"a", "b", "c"} {
		r := sampleRun(id, "vid")
		if id == "c" {
			r.VideoID = "other"
		}
		r.StartedAt = base.Add(time.Duration(i) * time.Minute)
		if err := s.StartRun(ctx, r); err != nil {
			t.Fatal(err)
		}
	}

	all, err := s.ListRuns(ctx, "", 0)
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if len(all) != 3 || all[0].ID != "c" {
		t.Errorf("expected newest first, got %+v", all)
	}

	vid, _ := s.ListRuns(ctx, "vid", 0)
	if len(vid) != 2 {
		t.Errorf("expected 2 runs for vid, got %d", len(vid))
	}

	limited, _ := s.ListRuns(ctx, "", 1)
	if len(limited) != 1 {
		t.Errorf("expected limit to apply, got %d", len(limited))
	}
}

func TestStore_Stats(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	_ = s.StartRun(ctx, sampleRun("a", "vid"))
	_ = s.StartRun(ctx, sampleRun("b", "vid"))
	_ = s.StartRun(ctx, sampleRun("c", "other"))
	_ = s.FinishRun(ctx, "a", RunCompleted, "")
	_ = s.FinishRun(ctx, "b", RunFailed, "x")
	_ = s.RecordStage(ctx, StageEvent{RunID: "a", Stage: "extraction", Status: StageSkipped})
	_ = s.RecordStage(ctx, StageEvent{RunID: "a", Stage: "correction", Status: StageCompleted})

	stats, err := s.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	want := Stats{TotalRuns: 3, CompletedRuns: 1, FailedRuns: 1, RunningRuns: 1, StageEvents: 2, SkippedStages: 1, DistinctVideos: 2}
	if *stats != want {
		t.Errorf("expected %+v, got %+v", want, *stats)
	}
}

func TestFingerprint(t *testing.T) {
	// "é" precomposed vs e + combining acute.
	if Fingerprint("caf\u00e9") != Fingerprint("  cafe\u0301\n") {
		t.Error("expected NFC-equivalent text to share a fingerprint")
	}
	if Fingerprint("a") == Fingerprint("b") {
		t.Error("expected distinct fingerprints")
	}
	if len(Fingerprint("x")) != 64 {
		t.Errorf("expected 64 hex chars, got %d", len(Fingerprint("x")))
	}
}
