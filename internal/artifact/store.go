package artifact

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gofrs/flock"
	"golang.org/x/text/language"
)

const (
	videoDir      = "video"
	transcriptDir = "transcript"
	outputDir     = "output"
	lockDir       = ".locks"

	// DefaultTranslatedSuffix names the translated artifact when no target is set.
	DefaultTranslatedSuffix = "tr_istanbul"
)

// Store maps (video id, kind) to paths under root.
type Store struct {
	root             string
	translatedSuffix string

	// writeContent fills the temporary file; replaced in tests to simulate
	// a crash mid-write.
	writeContent func(f *os.File, content []byte) error
}

// Option customizes a Store.
type Option func(*Store)

// WithTranslatedSuffix names the translated artifact output/<id>_<suffix>.txt.
func WithTranslatedSuffix(suffix string) Option {
	return func(s *Store) {
		if suffix = strings.TrimSpace(suffix); suffix != "" {
			s.translatedSuffix = suffix
		}
	}
}

// NewStore returns a store rooted at root. The directory is created lazily.
func NewStore(root string, opts ...Option) *Store {
	s := &Store{
		root:             filepath.Clean(root),
		translatedSuffix: DefaultTranslatedSuffix,
		writeContent:     writeAll,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Root returns the store's base directory.
func (s *Store) Root() string { return s.root }

// TranslatedSuffix derives the translated file suffix from a BCP 47 tag and
// a regional variant: ("tr-TR", "istanbul") -> "tr_istanbul".
func TranslatedSuffix(tag, variant string) (string, error) {
	t, err := language.Parse(strings.TrimSpace(tag))
	if err != nil {
		return "", fmt.Errorf("invalid target language %q: %w", tag, err)
	}
	base, _ := t.Base()
	suffix := strings.ToLower(base.String())
	if v := sanitizeSegment(variant); v != "" {
		suffix += "_" + v
	} else if region, conf := t.Region(); conf == language.Exact {
		suffix += "_" + strings.ToLower(region.String())
	}
	return suffix, nil
}

func sanitizeSegment(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '-' || r == '_' || r == ' ':
			b.WriteRune('_')
		}
	}
	return strings.Trim(b.String(), "_")
}

func validateID(videoID string) error {
	if videoID == "" || videoID == "." || videoID == ".." || strings.ContainsAny(videoID, `/\`) {
		return fmt.Errorf("invalid video id %q", videoID)
	}
	return nil
}

// Path returns the canonical path for kind.
func (s *Store) Path(videoID string, kind Kind) (string, error) {
	if err := validateID(videoID); err != nil {
		return "", err
	}
	switch kind {
	case RawTranscript:
		return filepath.Join(s.root, transcriptDir, videoID+".txt"), nil
	case Passage:
		return filepath.Join(s.root, outputDir, videoID+"_passage.txt"), nil
	case Corrected:
		return filepath.Join(s.root, outputDir, videoID+"_corrected.txt"), nil
	case Translated:
		return filepath.Join(s.root, outputDir, videoID+"_"+s.translatedSuffix+".txt"), nil
	case Dialogue:
		return filepath.Join(s.root, outputDir, videoID+"_dialogue.txt"), nil
	default:
		return "", fmt.Errorf("unknown artifact kind %d", int(kind))
	}
}

// VideoDir is where downloaded media is placed.
func (s *Store) VideoDir() string {
	return filepath.Join(s.root, videoDir)
}

// VideoPath returns video/<id>.<ext>.
func (s *Store) VideoPath(videoID, ext string) (string, error) {
	if err := validateID(videoID); err != nil {
		return "", err
	}
	ext = strings.TrimPrefix(strings.TrimSpace(ext), ".")
	if ext == "" {
		ext = "mp4"
	}
	return filepath.Join(s.VideoDir(), videoID+"."+ext), nil
}

// FindVideo returns the previously downloaded media file for videoID, if any.
// Partial downloads are ignored.
func (s *Store) FindVideo(videoID string) (string, bool, error) {
	if err := validateID(videoID); err != nil {
		return "", false, err
	}
	pattern := filepath.Join(s.VideoDir(), videoID+".*")
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return "", false, &IOError{Op: "glob", Path: pattern, Err: err}
	}
	sort.Strings(matches)
	for _, m := range matches {
		if strings.HasSuffix(m, ".part") || strings.HasSuffix(m, ".ytdl") {
			continue
		}
		if info, err := os.Stat(m); err == nil && info.Mode().IsRegular() && info.Size() > 0 {
			return m, true, nil
		}
	}
	return "", false, nil
}

// Write persists content atomically at the canonical path for kind and
// returns that path. An existing artifact is replaced only once the new
// content is fully on disk.
func (s *Store) Write(videoID string, kind Kind, content string) (string, error) {
	dest, err := s.Path(videoID, kind)
	if err != nil {
		return "", err
	}
	if err := s.writeAtomic(dest, []byte(content)); err != nil {
		return "", err
	}
	return dest, nil
}

func (s *Store) writeAtomic(dest string, content []byte) error {
	dir := filepath.Dir(dest)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return &IOError{Op: "mkdir", Path: dir, Err: err}
	}
	tmp, err := os.CreateTemp(dir, ".tmp-"+filepath.Base(dest)+"-*")
	if err != nil {
		return &IOError{Op: "create", Path: dest, Err: err}
	}
	tmpPath := tmp.Name()
	fail := func(op string, err error) error {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return &IOError{Op: op, Path: dest, Err: err}
	}

	if err := s.writeContent(tmp, content); err != nil {
		return fail("write", err)
	}
	if err := tmp.Sync(); err != nil {
		return fail("sync", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return &IOError{Op: "close", Path: dest, Err: err}
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		_ = os.Remove(tmpPath)
		return &IOError{Op: "chmod", Path: dest, Err: err}
	}
	if err := os.Rename(tmpPath, dest); err != nil {
		_ = os.Remove(tmpPath)
		return &IOError{Op: "rename", Path: dest, Err: err}
	}
	// Best effort: persist the directory entry.
	_ = syncDir(dir)
	return nil
}

func writeAll(f *os.File, content []byte) error {
	_, err := f.Write(content)
	return err
}

func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer d.Close()
	return d.Sync()
}

// Read loads the artifact for kind, or ErrNotFound.
func (s *Store) Read(videoID string, kind Kind) (Artifact, error) {
	p, err := s.Path(videoID, kind)
	if err != nil {
		return Artifact{}, err
	}
	data, err := os.ReadFile(p)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Artifact{}, fmt.Errorf("%s for %s: %w", kind, videoID, ErrNotFound)
		}
		return Artifact{}, &IOError{Op: "read", Path: p, Err: err}
	}
	return Artifact{Kind: kind, Content: string(data), Path: p}, nil
}

// Exists reports whether a non-empty artifact is present for kind. An empty
// file is treated as absent so that it is regenerated.
func (s *Store) Exists(videoID string, kind Kind) (bool, error) {
	p, err := s.Path(videoID, kind)
	if err != nil {
		return false, err
	}
	info, err := os.Stat(p)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, &IOError{Op: "stat", Path: p, Err: err}
	}
	return info.Mode().IsRegular() && info.Size() > 0, nil
}

// Remove deletes the artifact for kind. A missing file is not an error.
func (s *Store) Remove(videoID string, kind Kind) error {
	p, err := s.Path(videoID, kind)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return &IOError{Op: "remove", Path: p, Err: err}
	}
	return nil
}

// Lock is an advisory per-video lock held for the duration of a run.
type Lock struct {
	fl *flock.Flock
}

// Lock takes the per-video lock without blocking. It returns ErrLocked when
// another run holds it.
func (s *Store) Lock(videoID string) (*Lock, error) {
	if err := validateID(videoID); err != nil {
		return nil, err
	}
	dir := filepath.Join(s.root, lockDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, &IOError{Op: "mkdir", Path: dir, Err: err}
	}
	path := filepath.Join(dir, videoID+".lock")
	fl := flock.New(path)
	ok, err := fl.TryLock()
	if err != nil {
		return nil, &IOError{Op: "lock", Path: path, Err: err}
	}
	if !ok {
		return nil, fmt.Errorf("%s: %w", videoID, ErrLocked)
	}
	return &Lock{fl: fl}, nil
}

// Release drops the lock. Safe on a nil receiver.
func (l *Lock) Release() error {
	if l == nil || l.fl == nil {
		return nil
	}
	return l.fl.Unlock()
}
