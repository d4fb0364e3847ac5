package artifact

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestPathLayout(t *testing.T) {
	s := NewStore("/data/")
	if s.Root() != filepath.Clean("/data") {
		t.Errorf("unexpected root %q", s.Root())
	}
	tests := []struct {
		kind Kind
		want string
	}{
		{RawTranscript, "/data/transcript/abc123.txt"},
		{Passage, "/data/output/abc123_passage.txt"},
		{Corrected, "/data/output/abc123_corrected.txt"},
		{Translated, "/data/output/abc123_tr_istanbul.txt"},
		{Dialogue, "/data/output/abc123_dialogue.txt"},
	}
	for _, tt := range tests {
		got, err := s.Path("abc123", tt.kind)
		if err != nil {
			t.Fatalf("Path(%s): %v", tt.kind, err)
		}
		if got != filepath.FromSlash(tt.want) {
			t.Errorf("Path(%s) = %q, want %q", tt.kind, got, tt.want)
		}
	}

	seen := map[string]Kind{}
	for _, k := range Kinds {
		p, _ := s.Path("abc123", k)
		if prev, dup := seen[p]; dup {
			t.Errorf("kinds %s and %s share path %q", prev, k, p)
		}
		seen[p] = k
	}
}

func TestPathRejectsUnsafeIDs(t *testing.T) {
	s := NewStore(t.TempDir())
	for _, id := range []string{"", ".", "..", "a/b", `a\b`} {
		if _, err := s.Path(id, Passage); err == nil {
			t.Errorf("expected error for id %q", id)
		}
	}
}

func TestTranslatedSuffix(t *testing.T) {
	tests := []struct {
		tag, variant, want string
	}{
		{"tr-TR", "istanbul", "tr_istanbul"},
		{"tr", "Istanbul", "tr_istanbul"},
		{"de-AT", "", "de_at"},
		{"es", "", "es"},
	}
	for _, tt := range tests {
		got, err := TranslatedSuffix(tt.tag, tt.variant)
		if err != nil {
			t.Fatalf("TranslatedSuffix(%q, %q): %v", tt.tag, tt.variant, err)
		}
		if got != tt.want {
			t.Errorf("TranslatedSuffix(%q, %q) = %q, want %q", tt.tag, tt.variant, got, tt.want)
		}
	}
	if _, err := TranslatedSuffix("not a tag!", ""); err == nil {
		t.Error("expected error for invalid tag")
	}
}

func TestWriteReadRoundTrip(t *testing.T) {
	s := NewStore(t.TempDir())
	path, err := s.Write("vid", Corrected, "hello world")
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	a, err := s.Read("vid", Corrected)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if a.Content != "hello world" || a.Path != path || a.Kind != Corrected {
		t.Errorf("unexpected artifact %+v", a)
	}
	ok, err := s.Exists("vid", Corrected)
	if err != nil || !ok {
		t.Errorf("expected artifact to exist, got %v, %v", ok, err)
	}
}

func TestReadNotFound(t *testing.T) {
	s := NewStore(t.TempDir())
	_, err := s.Read("vid", Dialogue)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	ok, err := s.Exists("vid", Dialogue)
	if err != nil || ok {
		t.Errorf("expected absent, got %v, %v", ok, err)
	}
}

func TestExistsTreatsEmptyAsAbsent(t *testing.T) {
	s := NewStore(t.TempDir())
	p, _ := s.Path("vid", Passage)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if ok, _ := s.Exists("vid", Passage); ok {
		t.Error("expected empty file to count as absent")
	}
}

func TestWriteCrashKeepsPriorArtifact(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir)
	if _, err := s.Write("vid", Translated, "previous valid content"); err != nil {
		t.Fatalf("Write: %v", err)
	}

	crash := errors.New("simulated crash")
	s.writeContent = func(f *os.File, content []byte) error {
		_, _ = f.Write(content[:len(content)/2])
		return crash
	}
	_, err := s.Write("vid", Translated, "new content that never lands")
	var ioErr *IOError
	if !errors.As(err, &ioErr) || !errors.Is(err, crash) {
		t.Fatalf("expected IOError wrapping crash, got %v", err)
	}

	a, err := s.Read("vid", Translated)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if a.Content != "previous valid content" {
		t.Errorf("expected prior content, got %q", a.Content)
	}

	entries, _ := os.ReadDir(filepath.Join(dir, "output"))
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".tmp-") {
			t.Errorf("temporary file left behind: %s", e.Name())
		}
	}
}

func TestWriteCrashWithoutPriorLeavesNothing(t *testing.T) {
	s := NewStore(t.TempDir())
	s.writeContent = func(f *os.File, content []byte) error {
		_, _ = f.Write(content[:1])
		return errors.New("disk full")
	}
	if _, err := s.Write("vid", Dialogue, "Host: hi"); err == nil {
		t.Fatal("expected error")
	}
	if _, err := s.Read("vid", Dialogue); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected no artifact, got %v", err)
	}
}

func TestRemove(t *testing.T) {
	s := NewStore(t.TempDir())
	if _, err := s.Write("vid", Passage, "x"); err != nil {
		t.Fatal(err)
	}
	if err := s.Remove("vid", Passage); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if err := s.Remove("vid", Passage); err != nil {
		t.Fatalf("second Remove: %v", err)
	}
	if ok, _ := s.Exists("vid", Passage); ok {
		t.Error("expected artifact removed")
	}
}

func TestFindVideo(t *testing.T) {
	s := NewStore(t.TempDir())
	if _, ok, err := s.FindVideo("vid"); err != nil || ok {
		t.Fatalf("expected no video, got %v, %v", ok, err)
	}
	if err := os.MkdirAll(s.VideoDir(), 0o755); err != nil {
		t.Fatal(err)
	}
	partial := filepath.Join(s.VideoDir(), "vid.mp4.part")
	if err := os.WriteFile(partial, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := s.FindVideo("vid"); ok {
		t.Error("expected partial download ignored")
	}
	full, _ := s.VideoPath("vid", ".webm")
	if err := os.WriteFile(full, []byte("video"), 0o644); err != nil {
		t.Fatal(err)
	}
	got, ok, err := s.FindVideo("vid")
	if err != nil || !ok || got != full {
		t.Errorf("expected %q, got %q, %v, %v", full, got, ok, err)
	}
}

func TestLockExclusive(t *testing.T) {
	s := NewStore(t.TempDir())
	first, err := s.Lock("vid")
	if err != nil {
		t.Fatalf("Lock: %v", err)
	}
	if _, err := s.Lock("vid"); !errors.Is(err, ErrLocked) {
		t.Errorf("expected ErrLocked, got %v", err)
	}
	if err := first.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}
	again, err := s.Lock("vid")
	if err != nil {
		t.Fatalf("expected lock after release, got %v", err)
	}
	_ = again.Release()
}

func TestParseKind(t *testing.T) {
	for _, k := range Kinds {
		got, err := ParseKind(k.String())
		if err != nil || got != k {
			t.Errorf("ParseKind(%q) = %v, %v", k.String(), got, err)
		}
	}
	if _, err := ParseKind("summary"); err == nil {
		t.Error("expected error for unknown kind")
	}
}
